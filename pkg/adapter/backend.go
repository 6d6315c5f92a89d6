package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Backend is the interface for the paper analysis API
type Backend interface {
	// Query asks a question over the indexed papers via plain retrieval
	Query(ctx context.Context, question string, nResults int) (*model.Answer, error)
	// Agent runs one of the research agents over the indexed papers
	Agent(ctx context.Context, mode model.AgentMode, question string, nResults int) (*model.Answer, error)
	// StartIndex asks the backend to index its papers directory
	StartIndex(ctx context.Context) (*model.IndexAck, error)
	// IndexStatus returns the current indexing job snapshot
	IndexStatus(ctx context.Context) (*model.IndexStatus, error)
	// Health returns backend liveness and collection state
	Health(ctx context.Context) (*model.Health, error)
	// Stats returns collection statistics
	Stats(ctx context.Context) (*model.Stats, error)
	// Papers lists all indexed papers
	Papers(ctx context.Context) ([]*model.Paper, error)
	// Upload sends a single PDF for immediate indexing
	Upload(ctx context.Context, filename string, r io.Reader) (*model.UploadResult, error)
	// DeletePaper removes an indexed paper and its chunks
	DeletePaper(ctx context.Context, filename string) (*model.DeleteResult, error)
}

// HTTPBackend implements Backend against the HTTP API
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

type BackendOption func(*HTTPBackend)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(client *http.Client) BackendOption {
	return func(x *HTTPBackend) {
		x.client = client
	}
}

// WithTimeout sets the per-request timeout. Generation can take minutes on
// local models, so the default is generous.
func WithTimeout(d time.Duration) BackendOption {
	return func(x *HTTPBackend) {
		x.client.Timeout = d
	}
}

func NewBackend(baseURL string, opts ...BackendOption) *HTTPBackend {
	x := &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}

	for _, opt := range opts {
		opt(x)
	}

	return x
}

type queryRequest struct {
	Question string `json:"question"`
	NResults int    `json:"n_results"`
}

type queryResponse struct {
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Sources  []model.Source `json:"sources"`
}

func (x *HTTPBackend) Query(ctx context.Context, question string, nResults int) (*model.Answer, error) {
	var resp queryResponse
	req := &queryRequest{Question: question, NResults: nResults}
	if err := x.do(ctx, http.MethodPost, "/query", req, &resp); err != nil {
		return nil, err
	}

	return &model.Answer{
		Question: resp.Question,
		Text:     resp.Answer,
		Sources:  resp.Sources,
		Mode:     model.ModeQA,
	}, nil
}

type agentRequest struct {
	Question  string `json:"question"`
	AgentType string `json:"agent_type"`
	NResults  int    `json:"n_results"`
}

type agentResponse struct {
	Question  string         `json:"question"`
	Analysis  string         `json:"analysis"`
	Sources   []model.Source `json:"sources"`
	AgentType string         `json:"agent_type"`
}

func (x *HTTPBackend) Agent(ctx context.Context, mode model.AgentMode, question string, nResults int) (*model.Answer, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	var resp agentResponse
	req := &agentRequest{Question: question, AgentType: string(mode), NResults: nResults}
	if err := x.do(ctx, http.MethodPost, "/agent", req, &resp); err != nil {
		return nil, err
	}

	return &model.Answer{
		Question: resp.Question,
		Text:     resp.Analysis,
		Sources:  resp.Sources,
		Mode:     model.AgentMode(resp.AgentType),
	}, nil
}

func (x *HTTPBackend) StartIndex(ctx context.Context) (*model.IndexAck, error) {
	var ack model.IndexAck
	if err := x.do(ctx, http.MethodPost, "/index", nil, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (x *HTTPBackend) IndexStatus(ctx context.Context) (*model.IndexStatus, error) {
	var status model.IndexStatus
	if err := x.do(ctx, http.MethodGet, "/index/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (x *HTTPBackend) Health(ctx context.Context) (*model.Health, error) {
	var health model.Health
	if err := x.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (x *HTTPBackend) Stats(ctx context.Context) (*model.Stats, error) {
	var stats model.Stats
	if err := x.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

type papersResponse struct {
	Papers []*model.Paper `json:"papers"`
	Total  int            `json:"total"`
}

func (x *HTTPBackend) Papers(ctx context.Context) ([]*model.Paper, error) {
	var resp papersResponse
	if err := x.do(ctx, http.MethodGet, "/papers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Papers, nil
}

func (x *HTTPBackend) Upload(ctx context.Context, filename string, r io.Reader) (*model.UploadResult, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build multipart form")
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, goerr.Wrap(err, "failed to read upload payload", goerr.V("filename", filename))
	}
	if err := form.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to finalize multipart form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+"/upload", body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build upload request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call backend", goerr.V("path", "/upload"))
	}
	defer resp.Body.Close()

	var result model.UploadResult
	if err := decode(resp, "/upload", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (x *HTTPBackend) DeletePaper(ctx context.Context, filename string) (*model.DeleteResult, error) {
	var result model.DeleteResult
	path := "/papers/" + url.PathEscape(filename)
	if err := x.do(ctx, http.MethodDelete, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do sends a JSON request and decodes the JSON reply into out.
func (x *HTTPBackend) do(ctx context.Context, method, path string, in, out any) error {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal request", goerr.V("path", path))
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+path, payload)
	if err != nil {
		return goerr.Wrap(err, "failed to build request", goerr.V("path", path))
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to call backend", goerr.V("path", path))
	}
	defer resp.Body.Close()

	return decode(resp, path, out)
}

// decode reads the response body, converting non-2xx replies into errors
// carrying the backend's detail message.
func decode(resp *http.Response, path string, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerr.Wrap(err, "failed to read response", goerr.V("path", path))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := errorDetail(raw)
		if msg == "" {
			msg = fmt.Sprintf("backend returned status %d", resp.StatusCode)
		}

		if resp.StatusCode == http.StatusNotFound {
			return goerr.Wrap(model.ErrPaperNotFound, msg, goerr.V("path", path))
		}
		return goerr.New(msg, goerr.V("path", path), goerr.V("status", resp.StatusCode))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return goerr.Wrap(err, "failed to decode response", goerr.V("path", path))
	}
	return nil
}

// errorDetail extracts the "detail" field FastAPI-style error bodies carry.
func errorDetail(raw []byte) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.Detail
}
