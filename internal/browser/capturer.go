package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tabshot/internal/imaging"
	"tabshot/internal/logging"
	"tabshot/internal/services"
)

const (
	StrategyForceActive = "force_active"
	StrategyVisible     = "visible"
	StrategyInPage      = "in_page"

	defaultVisibleTimeout = 5 * time.Second
	defaultInPageTimeout  = 10 * time.Second
)

var strategyAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tabshot_capture_strategy_total",
		Help: "Capture strategy attempts by strategy and result.",
	},
	[]string{"strategy", "result"},
)

type strategy struct {
	name       string
	applicable func(ctx context.Context, p Platform, tab TabID, state TabState, opts Options) bool
	timeout    func(opts Options) time.Duration
	run        func(ctx context.Context, p Platform, tab TabID, state TabState, opts Options, logger *slog.Logger) ([]byte, error)
}

var strategies = []strategy{
	{
		name: StrategyForceActive,
		applicable: func(_ context.Context, _ Platform, _ TabID, _ TabState, opts Options) bool {
			return opts.ForceActive
		},
		timeout: visibleTimeout,
		run:     captureForceActive,
	},
	{
		name: StrategyVisible,
		applicable: func(_ context.Context, _ Platform, _ TabID, state TabState, _ Options) bool {
			return state.Active && !state.Minimized && state.Focused
		},
		timeout: visibleTimeout,
		run: func(ctx context.Context, p Platform, tab TabID, _ TabState, _ Options, _ *slog.Logger) ([]byte, error) {
			return p.CaptureVisible(ctx, tab)
		},
	},
	{
		name: StrategyInPage,
		applicable: func(context.Context, Platform, TabID, TabState, Options) bool {
			return true
		},
		timeout: func(opts Options) time.Duration {
			if opts.InPageTimeout > 0 {
				return opts.InPageTimeout
			}
			return defaultInPageTimeout
		},
		run: captureInPage,
	},
}

func visibleTimeout(opts Options) time.Duration {
	if opts.VisibleTimeout > 0 {
		return opts.VisibleTimeout
	}
	return defaultVisibleTimeout
}

// Capturer obtains a raw raster of a tab by trying strategies in order until
// one succeeds.
type Capturer struct {
	platform Platform
	logger   *slog.Logger
}

// NewCapturer wraps platform with the ordered fallback strategies.
func NewCapturer(platform Platform, logger *slog.Logger) *Capturer {
	return &Capturer{platform: platform, logger: logging.NewComponentLogger(logger, "browser")}
}

// Capture returns the first successful capture of tab. A strategy that fails
// or exceeds its timeout falls through to the next applicable one; when none
// are left the error wraps services.ErrCaptureUnavailable and the last cause.
func (c *Capturer) Capture(ctx context.Context, tab TabID, opts Options) (Image, error) {
	logger := logging.WithContext(ctx, c.logger)

	state, err := c.platform.State(ctx, tab)
	if err != nil {
		// Without state only the in-page renderer is safe to try.
		logger.Debug("tab state unavailable", logging.Error(err))
		state = TabState{}
	}

	var lastErr error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return Image{}, err
		}
		if !s.applicable(ctx, c.platform, tab, state, opts) {
			continue
		}
		data, err := runWithTimeout(ctx, s.timeout(opts), func(runCtx context.Context) ([]byte, error) {
			return s.run(runCtx, c.platform, tab, state, opts, logger)
		})
		if err == nil {
			strategyAttempts.WithLabelValues(s.name, "ok").Inc()
			logger.Debug("capture strategy succeeded", logging.String("strategy", s.name), logging.Int("bytes", len(data)))
			return Image{Data: data, Strategy: s.name}, nil
		}
		if ctx.Err() != nil {
			return Image{}, ctx.Err()
		}
		lastErr = err
		strategyAttempts.WithLabelValues(s.name, services.Kind(err)).Inc()
		logger.Debug("capture strategy failed, falling back",
			logging.String("strategy", s.name),
			logging.String(logging.FieldEventType, "capture_strategy_failed"),
			logging.Error(err),
		)
	}
	if lastErr == nil {
		lastErr = errors.New("no capture strategy applicable")
	}
	return Image{}, services.Wrap(services.ErrCaptureUnavailable, "browser", "capture", "all strategies failed", lastErr)
}

// runWithTimeout bounds fn by timeout even if fn ignores its context.
func runWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := fn(runCtx)
		done <- result{data: data, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && len(res.data) == 0 {
			return nil, errors.New("capture returned no data")
		}
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, services.Wrap(services.ErrCaptureTimeout, "browser", "capture", fmt.Sprintf("timed out after %s", timeout), res.err)
		}
		return res.data, res.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrCaptureTimeout, "browser", "capture", fmt.Sprintf("timed out after %s", timeout), nil)
	}
}

// captureForceActive brings tab to the front for the capture and then puts
// the previously active tab back. A failed restore leaves the capture intact.
func captureForceActive(ctx context.Context, p Platform, tab TabID, state TabState, opts Options, logger *slog.Logger) ([]byte, error) {
	previous, err := p.ActiveTab(ctx, state.WindowID)
	if err != nil {
		previous = ""
	}
	if previous != tab {
		if err := p.Activate(ctx, tab); err != nil {
			return nil, fmt.Errorf("activate tab: %w", err)
		}
		if opts.ActivateSettle > 0 {
			select {
			case <-time.After(opts.ActivateSettle):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	data, err := p.CaptureVisible(ctx, tab)
	if previous != "" && previous != tab {
		restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		if restoreErr := p.Activate(restoreCtx, previous); restoreErr != nil {
			logging.WarnWithContext(logger, "previous tab not restored", "tab_restore_failed",
				logging.String("tab", string(previous)),
				logging.Error(restoreErr),
				logging.String(logging.FieldErrorHint, "the browser window may show the captured tab; switch back manually"),
				logging.String(logging.FieldImpact, "capture kept, tab focus changed"),
			)
		}
		cancel()
	}
	return data, err
}

func captureInPage(ctx context.Context, p Platform, tab TabID, _ TabState, _ Options, _ *slog.Logger) ([]byte, error) {
	if err := p.InjectAgent(ctx, tab); err != nil {
		return nil, fmt.Errorf("inject capture agent: %w", err)
	}
	dataURL, err := p.RequestRender(ctx, tab)
	if err != nil {
		return nil, fmt.Errorf("in-page render: %w", err)
	}
	data, _, err := imaging.DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	return data, nil
}
