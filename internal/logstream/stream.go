package logstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tabshot/internal/api"
	"tabshot/internal/ipc"
	"tabshot/internal/logs"
)

// EventClient captures the IPC event feed used when the HTTP API is off.
type EventClient interface {
	Events(req ipc.EventsRequest) (*ipc.EventsResponse, error)
}

// TailClient captures the IPC log tail contract.
type TailClient interface {
	LogTail(req ipc.LogTailRequest) (*ipc.LogTailResponse, error)
}

// Options controls stream behavior.
type Options struct {
	// Since resumes after a known sequence. Zero starts at the oldest
	// buffered event.
	Since  uint64
	Lines  int
	Follow bool
	Wait   time.Duration
	// Filter narrows Lines to one batch, one thumbnail or a minimum level.
	// Events ignore it.
	Filter logs.Filter
}

func (o Options) wait() time.Duration {
	if o.Wait > 0 {
		return o.Wait
	}
	return 20 * time.Second
}

// Events emits capture events from the HTTP API when available, falling back
// to IPC. It returns true when at least one event was emitted.
func Events(
	ctx context.Context,
	apiClient *logs.EventClient,
	fallback EventClient,
	opts Options,
	onEvent func(api.Event),
) (bool, error) {
	printed, err := streamAPI(ctx, apiClient, opts, onEvent)
	if err == nil || !logs.IsAPIUnavailable(err) {
		return printed, err
	}
	if printed {
		return printed, err
	}
	if fallback == nil {
		return false, logs.ErrAPIUnavailable
	}
	return streamIPC(ctx, fallback, opts, onEvent)
}

func streamAPI(ctx context.Context, client *logs.EventClient, opts Options, onEvent func(api.Event)) (bool, error) {
	query := logs.EventQuery{Since: opts.Since, Limit: opts.Lines}
	printed := false
	for {
		if opts.Follow {
			query.Wait = opts.wait()
		}
		resp, err := client.Fetch(ctx, query)
		if err != nil {
			if printed && errors.Is(err, context.Canceled) {
				return printed, nil
			}
			return printed, err
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		query.Since = resp.Next
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
	}
}

func streamIPC(ctx context.Context, client EventClient, opts Options, onEvent func(api.Event)) (bool, error) {
	req := ipc.EventsRequest{Since: opts.Since, Limit: opts.Lines}
	printed := false
	for {
		if opts.Follow {
			req.WaitMillis = int(opts.wait() / time.Millisecond)
		}
		resp, err := client.Events(req)
		if err != nil {
			return printed, fmt.Errorf("fetch events: %w", err)
		}
		if resp == nil {
			return printed, errors.New("events response missing")
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		req.Since = resp.Next
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
	}
}

// Lines emits daemon log lines over IPC, starting with the last opts.Lines
// lines. It returns true when at least one line was emitted.
func Lines(ctx context.Context, client TailClient, opts Options, onLine func(string)) (bool, error) {
	if client == nil {
		return false, errors.New("log tail requires a daemon connection")
	}
	initialLimit := max(opts.Lines, 0)
	offset := int64(-1)
	if initialLimit == 0 {
		offset = 0
	}

	limit := initialLimit
	waitMillis := 1000
	printed := false
	for {
		resp, err := client.LogTail(ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     opts.Follow,
			WaitMillis: waitMillis,
			BatchID:    opts.Filter.BatchID,
			Identity:   opts.Filter.Identity,
			Level:      opts.Filter.MinLevel,
		})
		if err != nil {
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return printed, errors.New("log tail response missing")
		}
		for _, line := range resp.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		offset = resp.Offset
		limit = 0
		if !opts.Follow {
			return printed, nil
		}
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
	}
}
