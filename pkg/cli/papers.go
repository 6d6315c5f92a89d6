package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func papersCommand() *cli.Command {
	var (
		cfg    config
		asJSON bool
	)

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "json",
		Usage:       "Emit the paper list as JSON",
		Destination: &asJSON,
	})

	return &cli.Command{
		Name:  "papers",
		Usage: "List indexed papers",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			papers, err := cfg.newBackend().Papers(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list papers")
			}

			w := c.Root().Writer
			if asJSON {
				data, err := json.MarshalIndent(papers, "", "  ")
				if err != nil {
					return goerr.Wrap(err, "failed to marshal papers")
				}
				fmt.Fprintf(w, "%s\n", string(data))
				return nil
			}

			if len(papers) == 0 {
				fmt.Fprintf(w, "No papers indexed.\n")
				return nil
			}
			for _, p := range papers {
				title := p.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Fprintf(w, "%s\t%d pages\t%d chunks\t%s\n", p.Filename, p.PageCount, p.ChunkCount, title)
			}
			return nil
		},
	}
}
