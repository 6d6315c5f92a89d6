package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/folio/pkg/usecase/library"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func deleteCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a paper from the library",
		ArgsUsage: "<filename>",
		Flags:     globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			filename := c.Args().First()
			if filename == "" {
				return goerr.New("filename is required", goerr.V("usage", "folio delete <filename>"))
			}

			coordinator := library.NewCoordinator(cfg.newBackend())
			result, err := coordinator.Delete(ctx, filename)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Deleted %s (%d chunks removed), %d chunks remain.\n",
				result.Filename, result.ChunksRemoved, coordinator.TotalChunks())
			return nil
		},
	}
}
