package library

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/m-mizutani/folio/pkg/adapter"
	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// ErrNotReady gates question sending until papers are indexed
var ErrNotReady = goerr.New("no indexed papers to search")

// Coordinator owns the in-memory view of the paper library: the paper list,
// the aggregate chunk count, and the readiness flag. The list is always
// rebuilt wholesale from the backend, never patched in place.
type Coordinator struct {
	backend adapter.Backend

	mu          sync.Mutex
	papers      []*model.Paper
	totalChunks int
	ready       bool
	health      *model.Health
	stats       *model.Stats
}

func NewCoordinator(backend adapter.Backend) *Coordinator {
	return &Coordinator{
		backend: backend,
	}
}

// Bootstrap fetches health, stats and the paper list concurrently. Readiness
// and counters come from the backend's own view, not local bookkeeping.
func (x *Coordinator) Bootstrap(ctx context.Context) error {
	var (
		health *model.Health
		stats  *model.Stats
		papers []*model.Paper
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := x.backend.Health(gCtx)
		if err != nil {
			return err
		}
		health = resp
		return nil
	})
	g.Go(func() error {
		resp, err := x.backend.Stats(gCtx)
		if err != nil {
			return err
		}
		stats = resp
		return nil
	})
	g.Go(func() error {
		resp, err := x.backend.Papers(gCtx)
		if err != nil {
			return err
		}
		papers = resp
		return nil
	})

	if err := g.Wait(); err != nil {
		return goerr.Wrap(err, "failed to bootstrap library")
	}

	// A response that arrived after cancellation must not be applied
	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "bootstrap cancelled")
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.health = health
	x.stats = stats
	x.papers = papers
	x.ready = health.Ready()
	x.totalChunks = stats.TotalChunks

	return nil
}

// Refresh replaces the paper list with the backend's current view.
func (x *Coordinator) Refresh(ctx context.Context) error {
	papers, err := x.backend.Papers(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to refresh paper list")
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.papers = papers

	return nil
}

// Upload sends a PDF to the backend. On success the returned chunk count is
// added to the running total, the paper list is re-fetched, and the library
// becomes ready. On failure nothing is mutated.
func (x *Coordinator) Upload(ctx context.Context, filename string, data io.Reader) (*model.UploadResult, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, goerr.Wrap(model.ErrNotPDF, "upload rejected", goerr.V("filename", filename))
	}

	result, err := x.backend.Upload(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	x.mu.Lock()
	x.totalChunks += result.ChunkCount
	x.ready = true
	x.mu.Unlock()

	// The list refresh is a follow-up sync; the upload itself already succeeded
	if err := x.Refresh(ctx); err != nil {
		logging.From(ctx).Warn("paper list refresh after upload failed", "error", err)
	}

	return result, nil
}

// Delete removes a paper and then re-derives the list, the chunk count and
// readiness from the backend. The removed chunk count is not known locally,
// so nothing is subtracted.
func (x *Coordinator) Delete(ctx context.Context, filename string) (*model.DeleteResult, error) {
	result, err := x.backend.DeletePaper(ctx, filename)
	if err != nil {
		return nil, err
	}

	if err := x.Refresh(ctx); err != nil {
		logging.From(ctx).Warn("paper list refresh after delete failed", "error", err)
	}
	if err := x.RefreshHealth(ctx); err != nil {
		logging.From(ctx).Warn("health refresh after delete failed", "error", err)
	}

	return result, nil
}

// RefreshHealth re-fetches health and updates readiness and the chunk count
// from the backend's collection count.
func (x *Coordinator) RefreshHealth(ctx context.Context) error {
	health, err := x.backend.Health(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to refresh health")
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.health = health
	x.ready = health.Ready()
	x.totalChunks = health.CollectionCount

	return nil
}

// HandleIndexDone applies a terminal indexing snapshot: counters come from
// the job result and the paper list is re-fetched.
func (x *Coordinator) HandleIndexDone(ctx context.Context, status *model.IndexStatus) {
	if status == nil || status.State != model.IndexStateDone {
		return
	}

	x.mu.Lock()
	x.totalChunks = status.TotalChunks
	x.ready = status.PapersDone > 0 || status.TotalChunks > 0
	x.mu.Unlock()

	if err := x.Refresh(ctx); err != nil {
		logging.From(ctx).Warn("paper list refresh after indexing failed", "error", err)
	}
}

// RequireReady reports whether questions can be sent. It is handed to the
// chat session as its readiness gate.
func (x *Coordinator) RequireReady(ctx context.Context) error {
	if !x.Ready() {
		return ErrNotReady
	}
	return nil
}

func (x *Coordinator) Ready() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.ready
}

func (x *Coordinator) TotalChunks() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.totalChunks
}

// Papers returns a copy of the current paper list.
func (x *Coordinator) Papers() []*model.Paper {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]*model.Paper{}, x.papers...)
}

func (x *Coordinator) Health() *model.Health {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.health
}

func (x *Coordinator) Stats() *model.Stats {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.stats
}
