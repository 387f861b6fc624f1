package browser

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"tabshot/internal/config"
	"tabshot/internal/logging"
)

//go:embed agent.js
var agentScript string

// ErrUnknownTab is returned for tabs that were never opened or are already closed.
var ErrUnknownTab = errors.New("unknown tab")

type chromeTab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Chrome drives a Chrome/Chromium instance over the DevTools protocol.
type Chrome struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	headless      bool
	logger        *slog.Logger

	mu   sync.Mutex
	tabs map[TabID]*chromeTab
}

// NewChrome launches a browser, or attaches to one when cfg.RemoteURL is set.
func NewChrome(ctx context.Context, cfg config.Browser, logger *slog.Logger) (*Chrome, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), cfg.RemoteURL)
	} else {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		opts = append(opts,
			chromedp.Flag("headless", cfg.Headless),
			chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		)
		if cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
		}
		if cfg.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Chrome{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		headless:      cfg.Headless,
		logger:        logging.NewComponentLogger(logger, "chrome"),
		tabs:          make(map[TabID]*chromeTab),
	}, nil
}

// OpenTab creates a new page target.
func (c *Chrome) OpenTab(ctx context.Context) (TabID, error) {
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx)
	stop()
	if err != nil {
		cancel()
		return "", fmt.Errorf("open tab: %w", err)
	}
	attached := chromedp.FromContext(tabCtx).Target
	if attached == nil {
		cancel()
		return "", errors.New("open tab: no target attached")
	}
	id := TabID(attached.TargetID)

	c.mu.Lock()
	c.tabs[id] = &chromeTab{ctx: tabCtx, cancel: cancel}
	c.mu.Unlock()
	c.logger.Debug("tab opened", logging.String("tab", string(id)))
	return id, nil
}

// CloseTab closes the page target.
func (c *Chrome) CloseTab(_ context.Context, id TabID) error {
	c.mu.Lock()
	tab, ok := c.tabs[id]
	delete(c.tabs, id)
	c.mu.Unlock()
	if !ok {
		return ErrUnknownTab
	}
	tab.cancel()
	c.logger.Debug("tab closed", logging.String("tab", string(id)))
	return nil
}

// Navigate loads url in the tab and waits for the load event or ctx.
func (c *Chrome) Navigate(ctx context.Context, id TabID, url string) error {
	return c.run(ctx, id, chromedp.Navigate(url))
}

// Title returns the document title.
func (c *Chrome) Title(ctx context.Context, id TabID) (string, error) {
	var title string
	if err := c.run(ctx, id, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// State reports visibility and window information for the tab. Headless
// windows have no OS focus and are reported as focused.
func (c *Chrome) State(ctx context.Context, id TabID) (TabState, error) {
	var (
		state      TabState
		visibility string
		hasFocus   bool
	)
	err := c.run(ctx, id,
		chromedp.ActionFunc(func(ctx context.Context) error {
			windowID, bounds, err := cdpbrowser.GetWindowForTarget().WithTargetID(c.targetOf(ctx)).Do(ctx)
			if err != nil {
				return err
			}
			state.WindowID = int64(windowID)
			if bounds != nil {
				state.Minimized = bounds.WindowState == cdpbrowser.WindowStateMinimized
			}
			return nil
		}),
		chromedp.Evaluate(`document.visibilityState`, &visibility),
		chromedp.Evaluate(`document.hasFocus()`, &hasFocus),
	)
	if err != nil {
		return TabState{}, fmt.Errorf("tab state: %w", err)
	}
	state.Active = visibility == "visible"
	state.Focused = hasFocus || c.headless
	return state, nil
}

// ActiveTab returns the visible tab among those opened by this instance in windowID.
func (c *Chrome) ActiveTab(ctx context.Context, windowID int64) (TabID, error) {
	c.mu.Lock()
	ids := make([]TabID, 0, len(c.tabs))
	for id := range c.tabs {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		state, err := c.State(ctx, id)
		if err != nil {
			continue
		}
		if state.WindowID == windowID && state.Active {
			return id, nil
		}
	}
	return "", nil
}

// Activate brings the tab to the front of its window.
func (c *Chrome) Activate(ctx context.Context, id TabID) error {
	return c.run(ctx, id, page.BringToFront())
}

// CaptureVisible screenshots the tab's viewport as JPEG at quality 80.
func (c *Chrome) CaptureVisible(ctx context.Context, id TabID) ([]byte, error) {
	var data []byte
	err := c.run(ctx, id, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		data, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithQuality(80).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// InjectAgent installs the in-page renderer.
func (c *Chrome) InjectAgent(ctx context.Context, id TabID) error {
	var ok bool
	if err := c.run(ctx, id, chromedp.Evaluate(agentScript, &ok)); err != nil {
		return err
	}
	if !ok {
		return errors.New("capture agent did not initialise")
	}
	return nil
}

// RequestRender asks the injected agent for a PNG data URL of the page.
func (c *Chrome) RequestRender(ctx context.Context, id TabID) (string, error) {
	var dataURL string
	err := c.run(ctx, id, chromedp.Evaluate(`window.__tabshotAgent.render()`, &dataURL,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		return "", err
	}
	return dataURL, nil
}

// Close shuts down every tab and the browser.
func (c *Chrome) Close() error {
	c.mu.Lock()
	for id, tab := range c.tabs {
		tab.cancel()
		delete(c.tabs, id)
	}
	c.mu.Unlock()
	c.browserCancel()
	c.allocCancel()
	return nil
}

func (c *Chrome) targetOf(ctx context.Context) target.ID {
	if cc := chromedp.FromContext(ctx); cc != nil && cc.Target != nil {
		return cc.Target.TargetID
	}
	return ""
}

// run executes actions on the tab, bounded by the caller's ctx.
func (c *Chrome) run(ctx context.Context, id TabID, actions ...chromedp.Action) error {
	c.mu.Lock()
	tab, ok := c.tabs[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTab, id)
	}

	runCtx, cancel := context.WithCancel(tab.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
