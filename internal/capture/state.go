package capture

import (
	"errors"
	"time"

	"tabshot/internal/services"
)

type state struct {
	running         bool
	cancelRequested bool
	batchID         string
	current         string
	processed       int
	failed          int
	total           int
	lastError       string
	startedAt       time.Time
}

// Status is a point-in-time view of the orchestrator. When idle it describes
// the last finished batch.
type Status struct {
	Running         bool      `json:"running"`
	CancelRequested bool      `json:"cancel_requested"`
	BatchID         string    `json:"batch_id,omitempty"`
	Current         string    `json:"current,omitempty"`
	Processed       int       `json:"processed"`
	Failed          int       `json:"failed"`
	Total           int       `json:"total"`
	LastError       string    `json:"last_error,omitempty"`
	StartedAt       time.Time `json:"started_at,omitzero"`
}

func (s state) status() Status {
	return Status{
		Running:         s.running,
		CancelRequested: s.cancelRequested,
		BatchID:         s.batchID,
		Current:         s.current,
		Processed:       s.processed,
		Failed:          s.failed,
		Total:           s.total,
		LastError:       s.lastError,
		StartedAt:       s.startedAt,
	}
}

// Status returns the running batch, or the last one when idle.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.running {
		return o.state.status()
	}
	return o.last
}

func (o *Orchestrator) snapshot() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.status()
}

func (o *Orchestrator) cancelRequested() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.cancelRequested
}

func (o *Orchestrator) setCurrent(url string) {
	o.mu.Lock()
	o.state.current = url
	o.mu.Unlock()
}

func (o *Orchestrator) progress(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.processed++
	if err != nil {
		o.state.failed++
		if !errors.Is(err, services.ErrCancelled) {
			o.state.lastError = err.Error()
		}
	}
}

// finish returns the orchestrator to idle and releases waiters.
func (o *Orchestrator) finish(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.state.lastError = err.Error()
	}
	o.state.current = ""
	last := o.state.status()
	last.Running = false
	o.last = last
	o.state = state{}
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	if o.done != nil {
		close(o.done)
		o.done = nil
	}
}
