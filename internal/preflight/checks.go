package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"tabshot/internal/config"
	"tabshot/internal/deps"
	"tabshot/internal/fileutil"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	err := fileutil.CheckDirectoryAccess(path)
	switch {
	case err == nil:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
	case errors.Is(err, os.ErrNotExist):
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
	case errors.Is(err, fileutil.ErrNotDirectory):
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
}

// CheckBrowser verifies the capture browser: the DevTools endpoint when
// attaching to a running browser, otherwise the local binary.
func CheckBrowser(ctx context.Context, cfg config.Browser) Result {
	if strings.TrimSpace(cfg.RemoteURL) != "" {
		return CheckDevTools(ctx, cfg.RemoteURL)
	}
	status := deps.CheckBrowser(cfg.ExecPath)
	if !status.Available {
		return Result{Name: "Browser", Detail: status.Detail}
	}
	return Result{Name: "Browser", Passed: true, Detail: status.Command}
}

// CheckDevTools verifies that a remote DevTools endpoint answers /json/version.
func CheckDevTools(ctx context.Context, remoteURL string) Result {
	const name = "Browser (remote)"

	base, err := devToolsBase(remoteURL)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/json/version", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("DevTools check failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("DevTools check failed (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "DevTools reachable"}
}

// devToolsBase maps ws://host:port/devtools/... (or http://host:port) to
// http://host:port.
func devToolsBase(remoteURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(remoteURL))
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid remote url %q", remoteURL)
	}
	scheme := "http"
	if parsed.Scheme == "wss" || parsed.Scheme == "https" {
		scheme = "https"
	}
	return scheme + "://" + parsed.Host, nil
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "DevTools request timed out (browser unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "DevTools request timed out (browser unreachable)"
	}
	return err.Error()
}
