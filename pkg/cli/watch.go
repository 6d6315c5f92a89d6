package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/service/watch"
	"github.com/m-mizutani/folio/pkg/usecase/library"
	"github.com/m-mizutani/folio/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func watchCommand() *cli.Command {
	var (
		cfg      config
		debounce time.Duration
	)

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, policyFlags(&cfg)...)
	flags = append(flags, &cli.DurationFlag{
		Name:        "debounce",
		Usage:       "How long a file must stay quiet before it is uploaded",
		Sources:     cli.EnvVars("FOLIO_DEBOUNCE"),
		Value:       500 * time.Millisecond,
		Destination: &debounce,
	})

	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch a directory and upload PDFs dropped into it",
		ArgsUsage: "<dir>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			dir := c.Args().First()
			if dir == "" {
				return goerr.New("directory to watch is required", goerr.V("usage", "folio watch <dir>"))
			}

			gate, err := cfg.newPolicy(ctx)
			if err != nil {
				return err
			}

			coordinator := library.NewCoordinator(cfg.newBackend())
			if err := coordinator.Bootstrap(ctx); err != nil {
				logging.From(ctx).Warn("failed to reach backend", "baseURL", cfg.BaseURL, "error", err)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := c.Root().Writer
			svc := watch.New(dir, coordinator,
				watch.WithGate(gate),
				watch.WithDebounce(debounce),
				watch.WithOnUpload(func(result *model.UploadResult) {
					fmt.Fprintf(w, "uploaded %s: %d pages, %d chunks\n", result.Filename, result.PageCount, result.ChunkCount)
				}),
			)

			fmt.Fprintf(w, "Watching %s for PDFs, Ctrl-C to stop.\n", dir)
			return svc.Run(ctx)
		},
	}
}
