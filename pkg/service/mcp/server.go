package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/folio/pkg/adapter"
	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server exposes the paper library over the Model Context Protocol so
// external agents can query it as a set of tools.
type Server struct {
	backend adapter.Backend
	srv     *mcp.Server
}

type askPapersParams struct {
	Question string `json:"question" jsonschema:"Question to answer from the indexed papers"`
	NResults int    `json:"n_results,omitempty" jsonschema:"Number of passages to retrieve"`
}

type researchAgentParams struct {
	Question string `json:"question"`
	Mode     string `json:"mode"`
	NResults int    `json:"n_results,omitempty"`
}

// researchAgentSchema spells out the tool input so clients see the valid
// modes in the schema description. Mode values are still checked in the
// handler so rejections carry a readable message.
func researchAgentSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"question": {Type: "string", Description: "Research question to analyze"},
			"mode":     {Type: "string", Description: "Analysis mode: synthesize, trends or gaps"},
			"n_results": {
				Type:        "integer",
				Description: "Number of passages to retrieve",
			},
		},
		Required: []string{"question", "mode"},
	}
}

// NewServer builds the MCP server and registers the library tools.
func NewServer(backend adapter.Backend) *Server {
	x := &Server{
		backend: backend,
		srv: mcp.NewServer(&mcp.Implementation{
			Name:    "folio",
			Version: "0.1.0",
		}, nil),
	}

	mcp.AddTool(x.srv, &mcp.Tool{
		Name:        "ask_papers",
		Description: "Answer a question from the indexed research papers with cited sources",
	}, x.askPapers)

	mcp.AddTool(x.srv, &mcp.Tool{
		Name:        "research_agent",
		Description: "Run a cross-paper analysis: synthesize findings, survey trends, or find research gaps",
		InputSchema: researchAgentSchema(),
	}, x.researchAgent)

	mcp.AddTool(x.srv, &mcp.Tool{
		Name:        "list_papers",
		Description: "List the papers currently in the library",
	}, x.listPapers)

	mcp.AddTool(x.srv, &mcp.Tool{
		Name:        "library_status",
		Description: "Report backend health, readiness and chunk counts",
	}, x.libraryStatus)

	return x
}

// Run serves MCP over stdio until ctx is cancelled.
func (x *Server) Run(ctx context.Context) error {
	return x.srv.Run(ctx, &mcp.StdioTransport{})
}

// Handler serves MCP over streamable HTTP.
func (x *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return x.srv
	}, nil)
}

func (x *Server) askPapers(ctx context.Context, req *mcp.CallToolRequest, params *askPapersParams) (*mcp.CallToolResult, any, error) {
	nResults := params.NResults
	if nResults <= 0 {
		nResults = model.ModeQA.DefaultResults()
	}

	answer, err := x.backend.Query(ctx, params.Question, nResults)
	if err != nil {
		return errResult(err), nil, nil
	}

	return textResult(renderAnswer(answer)), nil, nil
}

func (x *Server) researchAgent(ctx context.Context, req *mcp.CallToolRequest, params *researchAgentParams) (*mcp.CallToolResult, any, error) {
	mode := model.AgentMode(params.Mode)
	if err := mode.Validate(); err != nil {
		return errResult(err), nil, nil
	}
	if !mode.Agentic() {
		return errResult(goerr.Wrap(model.ErrInvalidAgentMode,
			"use ask_papers for direct questions", goerr.V("mode", mode))), nil, nil
	}

	nResults := params.NResults
	if nResults <= 0 {
		nResults = mode.DefaultResults()
	}

	answer, err := x.backend.Agent(ctx, mode, params.Question, nResults)
	if err != nil {
		return errResult(err), nil, nil
	}

	return textResult(renderAnswer(answer)), nil, nil
}

func (x *Server) listPapers(ctx context.Context, req *mcp.CallToolRequest, params *struct{}) (*mcp.CallToolResult, any, error) {
	papers, err := x.backend.Papers(ctx)
	if err != nil {
		return errResult(err), nil, nil
	}

	body, err := json.MarshalIndent(papers, "", "  ")
	if err != nil {
		return errResult(err), nil, nil
	}

	return textResult(string(body)), nil, nil
}

func (x *Server) libraryStatus(ctx context.Context, req *mcp.CallToolRequest, params *struct{}) (*mcp.CallToolResult, any, error) {
	health, err := x.backend.Health(ctx)
	if err != nil {
		return errResult(err), nil, nil
	}

	stats, err := x.backend.Stats(ctx)
	if err != nil {
		return errResult(err), nil, nil
	}

	body, err := json.MarshalIndent(map[string]any{
		"ready":            health.Ready(),
		"status":           health.Status,
		"ollama_connected": health.OllamaConnected,
		"total_chunks":     stats.TotalChunks,
		"collection_name":  stats.CollectionName,
		"embedding_model":  stats.EmbeddingModel,
		"llm_model":        stats.LLMModel,
	}, "", "  ")
	if err != nil {
		return errResult(err), nil, nil
	}

	return textResult(string(body)), nil, nil
}

// renderAnswer formats an answer with its cited sources as plain text.
func renderAnswer(answer *model.Answer) string {
	var sb strings.Builder
	sb.WriteString(answer.Text)

	if len(answer.Sources) > 0 {
		sb.WriteString("\n\nSources:\n")
		for i, src := range answer.Sources {
			sb.WriteString(fmt.Sprintf("%d. %s", i+1, src.Source))
			if src.Section != "" {
				sb.WriteString(" / " + src.Section)
			}
			sb.WriteString(fmt.Sprintf(" (relevance %d%%)\n", src.Relevance()))
		}
	}

	return sb.String()
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: err.Error()},
		},
	}
}
