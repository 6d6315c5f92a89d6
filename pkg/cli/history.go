package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/folio/pkg/usecase/history"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg    config
		offset int64
		limit  int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "offset",
			Usage:       "Offset for pagination",
			Value:       0,
			Sources:     cli.EnvVars("FOLIO_LIST_OFFSET"),
			Destination: &offset,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of conversations to list",
			Value:       50,
			Sources:     cli.EnvVars("FOLIO_LIST_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "List saved conversations, newest first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}

			conversations, err := history.List(ctx, store, int(offset), int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to list conversations")
			}

			w := c.Root().Writer
			if len(conversations) == 0 {
				fmt.Fprintf(w, "No saved conversations.\n")
				return nil
			}
			for _, conv := range conversations {
				fmt.Fprintf(w, "%s\t%s\t%3d msgs\t%s\n",
					shortID(conv.ID), conv.UpdatedAt.Format("2006-01-02 15:04"), len(conv.Messages), conv.Title)
			}
			return nil
		},
	}
}
