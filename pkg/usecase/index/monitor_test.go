package index_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/folio/pkg/adapter/mock"
	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/usecase/index"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestRunFollowsJobToCompletion(t *testing.T) {
	snapshots := []*model.IndexStatus{
		{State: model.IndexStateIndexing, CurrentPaper: "attention.pdf", PapersDone: 1, TotalPapers: 3, TotalChunks: 40},
		{State: model.IndexStateIndexing, CurrentPaper: "bert.pdf", PapersDone: 2, TotalPapers: 3, TotalChunks: 80},
		{State: model.IndexStateDone, PapersDone: 3, TotalPapers: 3, TotalChunks: 120},
	}

	var mu sync.Mutex
	polls := 0
	backend := &mock.Backend{
		StartIndexFn: func(ctx context.Context) (*model.IndexAck, error) {
			return &model.IndexAck{Status: model.IndexAckStarted}, nil
		},
		IndexStatusFn: func(ctx context.Context) (*model.IndexStatus, error) {
			mu.Lock()
			defer mu.Unlock()
			s := snapshots[polls]
			polls++
			return s, nil
		},
	}

	var seen []*model.IndexStatus
	monitor := index.NewMonitor(backend,
		index.WithInterval(time.Millisecond),
		index.WithOnProgress(func(status *model.IndexStatus) {
			seen = append(seen, status)
		}),
	)

	status, err := monitor.Run(context.Background())
	gt.NoError(t, err)
	gt.V(t, status).NotNil()
	gt.Equal(t, status.State, model.IndexStateDone)

	gt.Equal(t, monitor.State(), model.IndexStateDone)
	gt.Equal(t, monitor.Summary(), "Indexed 3 papers (120 chunks)")

	gt.A(t, seen).Length(3)
	gt.Equal(t, seen[0].CurrentPaper, "attention.pdf")
	gt.Equal(t, seen[2].State, model.IndexStateDone)

	// The job reached a terminal state, so polling stopped at exactly three calls
	mu.Lock()
	gt.Equal(t, polls, 3)
	mu.Unlock()
}

func TestRunStartFailureIsTerminal(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	backend := &mock.Backend{
		StartIndexFn: func(ctx context.Context) (*model.IndexAck, error) {
			return nil, goerr.New("backend unreachable")
		},
		IndexStatusFn: func(ctx context.Context) (*model.IndexStatus, error) {
			mu.Lock()
			defer mu.Unlock()
			polls++
			return &model.IndexStatus{State: model.IndexStateIndexing}, nil
		},
	}

	monitor := index.NewMonitor(backend, index.WithInterval(time.Millisecond))

	status, err := monitor.Run(context.Background())
	gt.Error(t, err)
	gt.V(t, status).NotNil()
	gt.Equal(t, status.State, model.IndexStateError)
	gt.Equal(t, monitor.State(), model.IndexStateError)
	gt.S(t, monitor.Summary()).Contains("Indexing failed:")

	// A failed start never enters the polling loop
	mu.Lock()
	gt.Equal(t, polls, 0)
	mu.Unlock()
}

func TestRunFollowsJobStartedElsewhere(t *testing.T) {
	backend := &mock.Backend{
		StartIndexFn: func(ctx context.Context) (*model.IndexAck, error) {
			return &model.IndexAck{
				Status:  model.IndexAckAlreadyRunning,
				Message: "Indexing already in progress",
			}, nil
		},
		IndexStatusFn: func(ctx context.Context) (*model.IndexStatus, error) {
			return &model.IndexStatus{State: model.IndexStateDone, PapersDone: 5, TotalChunks: 200}, nil
		},
	}

	monitor := index.NewMonitor(backend, index.WithInterval(time.Millisecond))

	status, err := monitor.Run(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, status.State, model.IndexStateDone)
	gt.Equal(t, monitor.Summary(), "Indexed 5 papers (200 chunks)")
}

func TestRunSwallowsPollErrors(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	backend := &mock.Backend{
		StartIndexFn: func(ctx context.Context) (*model.IndexAck, error) {
			return &model.IndexAck{Status: model.IndexAckStarted}, nil
		},
		IndexStatusFn: func(ctx context.Context) (*model.IndexStatus, error) {
			mu.Lock()
			defer mu.Unlock()
			polls++
			if polls < 3 {
				return nil, goerr.New("connection reset")
			}
			return &model.IndexStatus{State: model.IndexStateDone, PapersDone: 1, TotalChunks: 12}, nil
		},
	}

	monitor := index.NewMonitor(backend, index.WithInterval(time.Millisecond))

	status, err := monitor.Run(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, status.State, model.IndexStateDone)

	mu.Lock()
	gt.Equal(t, polls, 3)
	mu.Unlock()
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	polls := 0
	backend := &mock.Backend{
		StartIndexFn: func(ctx context.Context) (*model.IndexAck, error) {
			return &model.IndexAck{Status: model.IndexAckStarted}, nil
		},
		IndexStatusFn: func(ctx context.Context) (*model.IndexStatus, error) {
			mu.Lock()
			defer mu.Unlock()
			polls++
			if polls == 2 {
				cancel()
			}
			return &model.IndexStatus{State: model.IndexStateIndexing, PapersDone: 1, TotalPapers: 9}, nil
		},
	}

	monitor := index.NewMonitor(backend, index.WithInterval(time.Millisecond))

	status, err := monitor.Run(ctx)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, context.Canceled))
	gt.V(t, status).Nil()
	gt.Equal(t, monitor.Summary(), "")
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	backend := &mock.Backend{
		StartIndexFn: func(ctx context.Context) (*model.IndexAck, error) {
			close(started)
			return &model.IndexAck{Status: model.IndexAckStarted}, nil
		},
		IndexStatusFn: func(ctx context.Context) (*model.IndexStatus, error) {
			return &model.IndexStatus{State: model.IndexStateIndexing}, nil
		},
	}

	monitor := index.NewMonitor(backend, index.WithInterval(time.Millisecond))

	var wg sync.WaitGroup
	var runErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, runErr = monitor.Run(ctx)
	}()

	<-started
	_, err := monitor.Run(ctx)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, index.ErrAlreadyIndexing))

	cancel()
	wg.Wait()
	gt.Error(t, runErr)
	gt.True(t, errors.Is(runErr, context.Canceled))
}

func TestRunAgainAfterTerminal(t *testing.T) {
	backend := &mock.Backend{
		StartIndexFn: func(ctx context.Context) (*model.IndexAck, error) {
			return &model.IndexAck{Status: model.IndexAckStarted}, nil
		},
		IndexStatusFn: func(ctx context.Context) (*model.IndexStatus, error) {
			return &model.IndexStatus{State: model.IndexStateDone, PapersDone: 2, TotalChunks: 64}, nil
		},
	}

	monitor := index.NewMonitor(backend, index.WithInterval(time.Millisecond))

	for i := 0; i < 2; i++ {
		status, err := monitor.Run(context.Background())
		gt.NoError(t, err)
		gt.Equal(t, status.State, model.IndexStateDone)
	}
	gt.Equal(t, monitor.Summary(), "Indexed 2 papers (64 chunks)")
}
