package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// FakePage scripts how a Fake browser behaves for one URL.
type FakePage struct {
	Title string
	// LoadDelay blocks Navigate until it elapses or the caller's ctx ends.
	LoadDelay time.Duration
	// Visible is the viewport capture result. Nil fails the strategy.
	Visible []byte
	// Rendered is the in-page render result as a data URL. Empty fails the strategy.
	Rendered string
	// Hang makes every capture strategy block until its timeout.
	Hang bool
}

// Fake is an in-memory Browser for tests and dry runs.
type Fake struct {
	mu      sync.Mutex
	pages   map[string]FakePage
	tabs    map[TabID]string
	next    int
	active  TabID
	state   TabState
	OpenErr error
	// ActivateErr, when set, is returned for activations of the listed tabs.
	ActivateErr map[TabID]error
	Closed      []TabID
	Activity    []string
}

// NewFake returns a Fake whose tabs are active and focused.
func NewFake(pages map[string]FakePage) *Fake {
	if pages == nil {
		pages = map[string]FakePage{}
	}
	return &Fake{
		pages: pages,
		tabs:  make(map[TabID]string),
		state: TabState{Active: true, Focused: true, WindowID: 1},
	}
}

// SetState overrides the state reported for every tab.
func (f *Fake) SetState(state TabState) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
}

// SetActive marks tab as the active tab of its window.
func (f *Fake) SetActive(tab TabID) {
	f.mu.Lock()
	f.active = tab
	f.mu.Unlock()
}

func (f *Fake) record(entry string) {
	f.mu.Lock()
	f.Activity = append(f.Activity, entry)
	f.mu.Unlock()
}

// Log returns a copy of the recorded calls.
func (f *Fake) Log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Activity...)
}

// OpenTabs reports tabs not yet closed.
func (f *Fake) OpenTabs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tabs)
}

func (f *Fake) page(tab TabID) (FakePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url, ok := f.tabs[tab]
	if !ok {
		return FakePage{}, fmt.Errorf("%w: %s", ErrUnknownTab, tab)
	}
	return f.pages[url], nil
}

func (f *Fake) OpenTab(context.Context) (TabID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return "", f.OpenErr
	}
	f.next++
	id := TabID(fmt.Sprintf("tab-%d", f.next))
	f.tabs[id] = ""
	f.Activity = append(f.Activity, "open "+string(id))
	return id, nil
}

func (f *Fake) Navigate(ctx context.Context, tab TabID, url string) error {
	f.mu.Lock()
	if _, ok := f.tabs[tab]; !ok {
		f.mu.Unlock()
		return ErrUnknownTab
	}
	f.tabs[tab] = url
	page := f.pages[url]
	f.Activity = append(f.Activity, "navigate "+url)
	f.mu.Unlock()

	if page.LoadDelay > 0 {
		select {
		case <-time.After(page.LoadDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *Fake) Title(_ context.Context, tab TabID) (string, error) {
	page, err := f.page(tab)
	if err != nil {
		return "", err
	}
	return page.Title, nil
}

func (f *Fake) CloseTab(_ context.Context, tab TabID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tabs[tab]; !ok {
		return ErrUnknownTab
	}
	delete(f.tabs, tab)
	f.Closed = append(f.Closed, tab)
	f.Activity = append(f.Activity, "close "+string(tab))
	return nil
}

func (f *Fake) State(_ context.Context, tab TabID) (TabState, error) {
	if _, err := f.page(tab); err != nil {
		return TabState{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *Fake) ActiveTab(context.Context, int64) (TabID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *Fake) Activate(_ context.Context, tab TabID) error {
	f.mu.Lock()
	if err := f.ActivateErr[tab]; err != nil {
		f.mu.Unlock()
		f.record("activate-failed " + string(tab))
		return err
	}
	f.active = tab
	f.mu.Unlock()
	f.record("activate " + string(tab))
	return nil
}

func (f *Fake) CaptureVisible(ctx context.Context, tab TabID) ([]byte, error) {
	page, err := f.page(tab)
	if err != nil {
		return nil, err
	}
	f.record("visible " + string(tab))
	if page.Hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if page.Visible == nil {
		return nil, errors.New("visible capture unavailable")
	}
	return page.Visible, nil
}

func (f *Fake) InjectAgent(_ context.Context, tab TabID) error {
	_, err := f.page(tab)
	return err
}

func (f *Fake) RequestRender(ctx context.Context, tab TabID) (string, error) {
	page, err := f.page(tab)
	if err != nil {
		return "", err
	}
	f.record("render " + string(tab))
	if page.Hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if page.Rendered == "" {
		return "", errors.New("in-page render failed")
	}
	return page.Rendered, nil
}

func (f *Fake) Close() error { return nil }

var _ Browser = (*Fake)(nil)
var _ Browser = (*Chrome)(nil)
