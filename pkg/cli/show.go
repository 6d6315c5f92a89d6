package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/usecase/history"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func showCommand() *cli.Command {
	var (
		cfg    config
		format string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "format",
			Aliases:     []string{"f"},
			Usage:       "Output format: text, json or yaml",
			Sources:     cli.EnvVars("FOLIO_FORMAT"),
			Value:       "text",
			Destination: &format,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:      "show",
		Usage:     "Show a saved conversation",
		ArgsUsage: "<conversation-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			id := c.Args().First()
			if id == "" {
				return goerr.New("conversation ID is required", goerr.V("usage", "folio show <conversation-id>"))
			}

			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}

			conv, err := history.Find(ctx, store, id)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			switch format {
			case "json":
				data, err := json.MarshalIndent(conv, "", "  ")
				if err != nil {
					return goerr.Wrap(err, "failed to marshal conversation")
				}
				fmt.Fprintf(w, "%s\n", string(data))

			case "yaml":
				data, err := yaml.Marshal(conv)
				if err != nil {
					return goerr.Wrap(err, "failed to marshal conversation")
				}
				fmt.Fprintf(w, "%s", string(data))

			case "text":
				printConversation(w, conv)

			default:
				return goerr.New("unknown format", goerr.V("format", format))
			}
			return nil
		},
	}
}

func printConversation(w io.Writer, conv *model.Conversation) {
	fmt.Fprintf(w, "%s\n", conv.Title)
	fmt.Fprintf(w, "ID: %s  Updated: %s\n\n", conv.ID, conv.UpdatedAt.Format(time.RFC3339))

	for _, msg := range conv.Messages {
		label := "You"
		if msg.Role == model.RoleAssistant {
			label = "Assistant"
		}
		if msg.AgentMode != "" {
			label = fmt.Sprintf("%s [%s]", label, msg.AgentMode)
		}
		fmt.Fprintf(w, "%s:\n%s\n", label, msg.Content)
		if len(msg.Sources) > 0 {
			fmt.Fprintf(w, "  sources:")
			for _, src := range msg.Sources {
				fmt.Fprintf(w, " %s(%d%%)", src.Source, src.Relevance())
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}
}
