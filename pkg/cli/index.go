package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/usecase/index"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func indexCommand() *cli.Command {
	var (
		cfg      config
		interval time.Duration
		noWait   bool
	)

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags,
		&cli.DurationFlag{
			Name:        "interval",
			Usage:       "Polling interval while waiting for the indexing job",
			Sources:     cli.EnvVars("FOLIO_POLL_INTERVAL"),
			Value:       2 * time.Second,
			Destination: &interval,
		},
		&cli.BoolFlag{
			Name:        "no-wait",
			Usage:       "Start the indexing job without waiting for it to finish",
			Destination: &noWait,
		},
	)

	return &cli.Command{
		Name:  "index",
		Usage: "Index the backend's papers directory and wait for completion",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if noWait {
				ack, err := cfg.newBackend().StartIndex(ctx)
				if err != nil {
					return err
				}
				if ack.AlreadyRunning() {
					fmt.Fprintf(w, "Indexing is already running; 'folio index' follows it.\n")
					return nil
				}
				fmt.Fprintf(w, "Indexing started, check progress with 'folio status'.\n")
				return nil
			}

			// Ctrl-C stops following the job, not the job itself
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := newSpinner(" starting indexing...")
			s.Start()
			defer s.Stop()

			monitor := index.NewMonitor(cfg.newBackend(),
				index.WithInterval(interval),
				index.WithOnProgress(func(status *model.IndexStatus) {
					s.Suffix = progressSuffix(status)
				}),
			)

			status, err := monitor.Run(ctx)
			s.Stop()

			if err != nil {
				if errors.Is(err, context.Canceled) {
					fmt.Fprintf(w, "Stopped watching. The backend keeps indexing; run 'folio index' again to follow it.\n")
					return nil
				}
				return err
			}

			fmt.Fprintf(w, "%s\n", monitor.Summary())
			if status.State == model.IndexStateError {
				return goerr.New("indexing failed", goerr.V("error", status.Error))
			}
			return nil
		},
	}
}

func progressSuffix(status *model.IndexStatus) string {
	if status.CurrentPaper == "" {
		return fmt.Sprintf(" indexing... (%d/%d papers, %d chunks)", status.PapersDone, status.TotalPapers, status.TotalChunks)
	}
	return fmt.Sprintf(" indexing %s (%d/%d papers, %d chunks)", status.CurrentPaper, status.PapersDone, status.TotalPapers, status.TotalChunks)
}
