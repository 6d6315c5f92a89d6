package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/usecase/library"
	"github.com/m-mizutani/folio/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func statusCommand() *cli.Command {
	var (
		cfg    config
		asJSON bool
	)

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "json",
		Usage:       "Emit the status as JSON",
		Destination: &asJSON,
	})

	return &cli.Command{
		Name:  "status",
		Usage: "Show backend health and library statistics",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			backend := cfg.newBackend()
			coordinator := library.NewCoordinator(backend)
			if err := coordinator.Bootstrap(ctx); err != nil {
				return err
			}

			// A failed probe here just means no job line, not a failed command
			job, err := backend.IndexStatus(ctx)
			if err != nil {
				logging.From(ctx).Debug("failed to fetch index status", "error", err)
				job = nil
			}

			health := coordinator.Health()
			stats := coordinator.Stats()
			w := c.Root().Writer

			if asJSON {
				out := map[string]any{
					"status":           health.Status,
					"ollama_connected": health.OllamaConnected,
					"rag_initialized":  health.RAGInitialized,
					"ready":            coordinator.Ready(),
					"papers":           len(coordinator.Papers()),
					"total_chunks":     stats.TotalChunks,
					"collection_name":  stats.CollectionName,
					"embedding_model":  stats.EmbeddingModel,
					"llm_model":        stats.LLMModel,
				}
				if job != nil {
					out["index_state"] = job.State
					if job.State == model.IndexStateIndexing {
						out["index_progress"] = fmt.Sprintf("%d/%d", job.PapersDone, job.TotalPapers)
					}
				}
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return goerr.Wrap(err, "failed to marshal status")
				}
				fmt.Fprintf(w, "%s\n", string(data))
				return nil
			}

			fmt.Fprintf(w, "Backend:    %s (%s)\n", cfg.BaseURL, health.Status)
			fmt.Fprintf(w, "Ollama:     connected=%v model=%s\n", health.OllamaConnected, stats.LLMModel)
			fmt.Fprintf(w, "Embedding:  %s\n", stats.EmbeddingModel)
			fmt.Fprintf(w, "Collection: %s (%d chunks, %d papers)\n", stats.CollectionName, stats.TotalChunks, len(coordinator.Papers()))
			if job != nil {
				switch job.State {
				case model.IndexStateIndexing:
					fmt.Fprintf(w, "Indexing:   %s (%d/%d papers, %d chunks)\n", job.CurrentPaper, job.PapersDone, job.TotalPapers, job.TotalChunks)
				case model.IndexStateError:
					fmt.Fprintf(w, "Indexing:   failed: %s\n", job.Error)
				}
			}
			if coordinator.Ready() {
				fmt.Fprintf(w, "Search:     ready\n")
			} else {
				fmt.Fprintf(w, "Search:     not ready, run 'folio index'\n")
			}
			return nil
		},
	}
}
