package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/usecase/chat"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// askCommand answers a single question and exits. Nothing is persisted
// unless --save is given; use "chat" for conversations worth keeping.
func askCommand() *cli.Command {
	var (
		cfg  config
		save bool
	)

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, chatFlags(&cfg)...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "save",
		Usage:       "Persist the exchange to the conversation history",
		Sources:     cli.EnvVars("FOLIO_SAVE"),
		Destination: &save,
	})

	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask a one-off question about the indexed papers",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return goerr.New("question is required", goerr.V("usage", "folio ask <question>"))
			}

			w := c.Root().Writer
			if save {
				return askAndSave(ctx, w, &cfg, question)
			}

			backend := cfg.newBackend()
			mode := cfg.agentMode()
			nResults := int(cfg.NResults)
			if nResults <= 0 {
				nResults = mode.DefaultResults()
			}

			s := newSpinner(" thinking...")
			s.Start()

			var answer *model.Answer
			if mode.Agentic() {
				answer, err = backend.Agent(ctx, mode, question, nResults)
			} else {
				answer, err = backend.Query(ctx, question, nResults)
			}
			s.Stop()
			if err != nil {
				return err
			}

			printAnswer(w, answer.Text, answer.Sources)
			return nil
		},
	}
}

// askAndSave runs the question through a session so the exchange lands in
// the conversation history with a derived title, like a one-turn chat.
func askAndSave(ctx context.Context, w io.Writer, cfg *config, question string) error {
	store, err := cfg.newStore(ctx)
	if err != nil {
		return err
	}

	session, err := chat.New(chat.NewInput{
		Backend:  cfg.newBackend(),
		Store:    store,
		Mode:     cfg.agentMode(),
		NResults: int(cfg.NResults),
	})
	if err != nil {
		return err
	}

	s := newSpinner(" thinking...")
	s.Start()
	reply, err := session.Send(ctx, question)
	s.Stop()
	if err != nil {
		return err
	}

	printAnswer(w, reply.Content, reply.Sources)
	if conv := session.Active(); conv != nil {
		fmt.Fprintf(w, "\nSaved as %s, see it again with 'folio show %s'.\n", shortID(conv.ID), shortID(conv.ID))
	}
	return nil
}

func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	return s
}

func printAnswer(w io.Writer, text string, sources []model.Source) {
	fmt.Fprintf(w, "%s\n", text)
	if len(sources) == 0 {
		return
	}
	fmt.Fprintf(w, "\nSources:\n")
	for i, src := range sources {
		heading := src.Source
		if src.Section != "" {
			heading += " · " + src.Section
		}
		fmt.Fprintf(w, "%d. %s (relevance %d%%)\n", i+1, heading, src.Relevance())
	}
}
