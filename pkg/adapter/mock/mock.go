// Package mock provides a function-field Backend implementation for tests.
package mock

import (
	"context"
	"io"

	"github.com/m-mizutani/folio/pkg/adapter"
	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Backend implements adapter.Backend. Set only the functions a test needs;
// unset operations fail loudly.
type Backend struct {
	QueryFn       func(ctx context.Context, question string, nResults int) (*model.Answer, error)
	AgentFn       func(ctx context.Context, mode model.AgentMode, question string, nResults int) (*model.Answer, error)
	StartIndexFn  func(ctx context.Context) (*model.IndexAck, error)
	IndexStatusFn func(ctx context.Context) (*model.IndexStatus, error)
	HealthFn      func(ctx context.Context) (*model.Health, error)
	StatsFn       func(ctx context.Context) (*model.Stats, error)
	PapersFn      func(ctx context.Context) ([]*model.Paper, error)
	UploadFn      func(ctx context.Context, filename string, r io.Reader) (*model.UploadResult, error)
	DeletePaperFn func(ctx context.Context, filename string) (*model.DeleteResult, error)
}

var _ adapter.Backend = &Backend{}

func (x *Backend) Query(ctx context.Context, question string, nResults int) (*model.Answer, error) {
	if x.QueryFn == nil {
		return nil, goerr.New("Query is not implemented")
	}
	return x.QueryFn(ctx, question, nResults)
}

func (x *Backend) Agent(ctx context.Context, mode model.AgentMode, question string, nResults int) (*model.Answer, error) {
	if x.AgentFn == nil {
		return nil, goerr.New("Agent is not implemented")
	}
	return x.AgentFn(ctx, mode, question, nResults)
}

func (x *Backend) StartIndex(ctx context.Context) (*model.IndexAck, error) {
	if x.StartIndexFn == nil {
		return nil, goerr.New("StartIndex is not implemented")
	}
	return x.StartIndexFn(ctx)
}

func (x *Backend) IndexStatus(ctx context.Context) (*model.IndexStatus, error) {
	if x.IndexStatusFn == nil {
		return nil, goerr.New("IndexStatus is not implemented")
	}
	return x.IndexStatusFn(ctx)
}

func (x *Backend) Health(ctx context.Context) (*model.Health, error) {
	if x.HealthFn == nil {
		return nil, goerr.New("Health is not implemented")
	}
	return x.HealthFn(ctx)
}

func (x *Backend) Stats(ctx context.Context) (*model.Stats, error) {
	if x.StatsFn == nil {
		return nil, goerr.New("Stats is not implemented")
	}
	return x.StatsFn(ctx)
}

func (x *Backend) Papers(ctx context.Context) ([]*model.Paper, error) {
	if x.PapersFn == nil {
		return nil, goerr.New("Papers is not implemented")
	}
	return x.PapersFn(ctx)
}

func (x *Backend) Upload(ctx context.Context, filename string, r io.Reader) (*model.UploadResult, error) {
	if x.UploadFn == nil {
		return nil, goerr.New("Upload is not implemented")
	}
	return x.UploadFn(ctx, filename, r)
}

func (x *Backend) DeletePaper(ctx context.Context, filename string) (*model.DeleteResult, error) {
	if x.DeletePaperFn == nil {
		return nil, goerr.New("DeletePaper is not implemented")
	}
	return x.DeletePaperFn(ctx, filename)
}
