package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/folio/pkg/usecase/history"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func forgetCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:      "forget",
		Usage:     "Delete a saved conversation",
		ArgsUsage: "<conversation-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			id := c.Args().First()
			if id == "" {
				return goerr.New("conversation ID is required", goerr.V("usage", "folio forget <conversation-id>"))
			}

			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}

			removed, err := history.Forget(ctx, store, id)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Deleted %q (%s).\n", removed.Title, shortID(removed.ID))
			return nil
		},
	}
}
