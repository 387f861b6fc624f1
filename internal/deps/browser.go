package deps

import (
	"os/exec"
	"strings"
)

// browserCandidates mirrors the executable names chromedp searches for on Linux.
var browserCandidates = []string{
	"headless_shell",
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"google-chrome-beta",
	"google-chrome-unstable",
}

// ResolveBrowserPath returns configured when set, otherwise the first
// Chrome/Chromium binary found on PATH. It returns "" when none exists.
func ResolveBrowserPath(configured string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	for _, name := range browserCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// CheckBrowser reports the browser binary the daemon will launch.
func CheckBrowser(configured string) Status {
	path := ResolveBrowserPath(configured)
	status := checkBinary(Requirement{
		Name:        "Chrome",
		Command:     path,
		Description: "Renders pages for thumbnail capture",
	})
	if path == "" {
		status.Detail = "no Chrome or Chromium binary on PATH; set browser.exec_path or browser.remote_url"
	}
	return status
}
