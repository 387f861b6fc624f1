package browser

import (
	"context"
	"time"
)

// TabID identifies a browser tab (a DevTools page target).
type TabID string

// TabState describes the visibility of a tab at the moment it is queried.
type TabState struct {
	Active    bool
	WindowID  int64
	Minimized bool
	Focused   bool
}

// Platform is the browser surface the capture strategies drive.
type Platform interface {
	State(ctx context.Context, tab TabID) (TabState, error)
	// ActiveTab returns the tab currently in front of windowID, or "" when unknown.
	ActiveTab(ctx context.Context, windowID int64) (TabID, error)
	Activate(ctx context.Context, tab TabID) error
	// CaptureVisible grabs the rendered viewport of an active tab.
	CaptureVisible(ctx context.Context, tab TabID) ([]byte, error)
	// InjectAgent installs the in-page renderer. Repeated injection is a no-op.
	InjectAgent(ctx context.Context, tab TabID) error
	// RequestRender asks the injected agent for a data URL of the current page.
	RequestRender(ctx context.Context, tab TabID) (string, error)
}

// Tabs manages the lifecycle of capture tabs.
type Tabs interface {
	OpenTab(ctx context.Context) (TabID, error)
	// Navigate loads url and returns once the page has loaded or ctx ends.
	Navigate(ctx context.Context, tab TabID, url string) error
	Title(ctx context.Context, tab TabID) (string, error)
	CloseTab(ctx context.Context, tab TabID) error
}

// Browser is a Platform that also owns its tabs.
type Browser interface {
	Platform
	Tabs
	Close() error
}

// Options controls a single capture.
type Options struct {
	// ForceActive brings the tab to the front before capturing and restores
	// the previously active tab afterwards.
	ForceActive    bool
	VisibleTimeout time.Duration
	InPageTimeout  time.Duration
	ActivateSettle time.Duration
}

// Image is a raw capture and the strategy that produced it.
type Image struct {
	Data     []byte
	Strategy string
}
