package index

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/folio/pkg/adapter"
	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// ErrAlreadyIndexing rejects a Run while another Run is in progress
var ErrAlreadyIndexing = goerr.New("indexing already running")

// defaultInterval is the fixed polling cadence for job status
const defaultInterval = 2 * time.Second

// Monitor drives the backend indexing job: it issues the start request, then
// polls status until the job reaches done or error. Poll failures are
// swallowed and retried on the next tick; only the initial start call's
// failure is terminal.
type Monitor struct {
	backend    adapter.Backend
	interval   time.Duration
	onProgress func(status *model.IndexStatus)

	mu      sync.Mutex
	running bool
	state   model.IndexState
	status  *model.IndexStatus
	summary string
}

type MonitorOption func(*Monitor)

// WithInterval overrides the polling cadence
func WithInterval(d time.Duration) MonitorOption {
	return func(x *Monitor) {
		x.interval = d
	}
}

// WithOnProgress registers a callback invoked with every polled snapshot,
// including the terminal one
func WithOnProgress(fn func(status *model.IndexStatus)) MonitorOption {
	return func(x *Monitor) {
		x.onProgress = fn
	}
}

func NewMonitor(backend adapter.Backend, opts ...MonitorOption) *Monitor {
	x := &Monitor{
		backend:  backend,
		interval: defaultInterval,
		state:    model.IndexStateIdle,
	}

	for _, opt := range opts {
		opt(x)
	}

	return x
}

// Run starts the indexing job and blocks until it reaches a terminal state
// or ctx is cancelled. The returned status is the terminal snapshot. A
// backend that reports the job as already running is watched, not failed.
func (x *Monitor) Run(ctx context.Context) (*model.IndexStatus, error) {
	x.mu.Lock()
	if x.running {
		x.mu.Unlock()
		return nil, ErrAlreadyIndexing
	}
	x.running = true
	x.state = model.IndexStateIndexing
	x.status = &model.IndexStatus{State: model.IndexStateIndexing}
	x.summary = ""
	x.mu.Unlock()

	defer func() {
		x.mu.Lock()
		x.running = false
		x.mu.Unlock()
	}()

	ack, err := x.backend.StartIndex(ctx)
	if err != nil {
		// Start failure is terminal; the polling loop is never entered
		status := &model.IndexStatus{State: model.IndexStateError, Error: err.Error()}
		x.finish(status)
		return status, goerr.Wrap(err, "failed to start indexing")
	}
	if ack.AlreadyRunning() {
		logging.From(ctx).Info("indexing already in progress, following it")
	}

	ticker := time.NewTicker(x.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, goerr.Wrap(ctx.Err(), "indexing watch cancelled")
		case <-ticker.C:
		}

		status, err := x.backend.IndexStatus(ctx)
		if err != nil {
			logging.From(ctx).Warn("status poll failed, retrying on next tick", "error", err)
			continue
		}

		// A snapshot that raced with cancellation is discarded, not applied
		if ctx.Err() != nil {
			return nil, goerr.Wrap(ctx.Err(), "indexing watch cancelled")
		}

		x.apply(status)

		if status.State.Terminal() {
			x.finish(status)
			return status, nil
		}
	}
}

func (x *Monitor) apply(status *model.IndexStatus) {
	x.mu.Lock()
	x.status = status
	x.mu.Unlock()

	if x.onProgress != nil {
		x.onProgress(status)
	}
}

func (x *Monitor) finish(status *model.IndexStatus) {
	x.mu.Lock()
	x.state = status.State
	x.status = status
	x.summary = status.Summary()
	x.mu.Unlock()
}

// State returns the job state as last observed
func (x *Monitor) State() model.IndexState {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.state
}

// Status returns the most recent snapshot
func (x *Monitor) Status() *model.IndexStatus {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.status
}

// Summary returns the recorded terminal message, empty while running
func (x *Monitor) Summary() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.summary
}
