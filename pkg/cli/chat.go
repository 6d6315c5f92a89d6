package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/repository"
	"github.com/m-mizutani/folio/pkg/usecase/chat"
	"github.com/m-mizutani/folio/pkg/usecase/history"
	"github.com/m-mizutani/folio/pkg/usecase/library"
	"github.com/m-mizutani/folio/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, chatFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat over the indexed paper library",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			backend := cfg.newBackend()
			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			coordinator := library.NewCoordinator(backend)
			if err := coordinator.Bootstrap(ctx); err != nil {
				logging.From(ctx).Warn("failed to reach backend", "baseURL", cfg.BaseURL, "error", err)
				fmt.Fprintf(w, "warning: backend at %s is not responding, answers will fail until it is up\n", cfg.BaseURL)
			}

			session, err := chat.New(chat.NewInput{
				Backend:    backend,
				Store:      store,
				Mode:       cfg.agentMode(),
				NResults:   int(cfg.NResults),
				ReadyCheck: coordinator.RequireReady,
			})
			if err != nil {
				return err
			}

			return runChatLoop(ctx, w, session, store, coordinator)
		},
	}
}

func runChatLoop(ctx context.Context, w io.Writer, session *chat.Session, store repository.ConversationStore, coordinator *library.Coordinator) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          chatPrompt(session.Mode()),
		HistoryFile:     readlineHistoryFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    chatCompleter(),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to open interactive prompt")
	}
	defer rl.Close()

	if coordinator.Ready() {
		fmt.Fprintf(w, "Library ready (%d chunks indexed).\n", coordinator.TotalChunks())
	} else {
		fmt.Fprintf(w, "No papers indexed yet. Run 'folio index', or 'folio upload' some PDFs first.\n")
	}
	fmt.Fprintf(w, "Type /help for commands, /exit to quit.\n\n")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			// Ctrl-C clears the current line; on an empty line it quits.
			if len(line) == 0 {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read input")
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := runChatDirective(ctx, w, rl, line, session, store)
			if err != nil {
				fmt.Fprintf(w, "error: %s\n", err.Error())
			}
			if quit {
				break
			}
			continue
		}

		reply, err := askWithSpinner(ctx, session, line)
		if err != nil {
			switch {
			case errors.Is(err, library.ErrNotReady):
				fmt.Fprintf(w, "No indexed papers to search. Run 'folio index' and try again.\n")
			case errors.Is(err, chat.ErrSessionBusy), errors.Is(err, chat.ErrEmptyMessage):
				// Input rejections are silent, the prompt just comes back
			default:
				fmt.Fprintf(w, "error: %s\n", err.Error())
			}
			continue
		}

		fmt.Fprintf(w, "\n%s\n", reply.Content)
		if n := len(reply.Sources); n > 0 {
			fmt.Fprintf(w, "\n(%d sources, /sources to inspect)\n", n)
		}
		fmt.Fprintln(w)
	}

	return nil
}

// askWithSpinner runs session.Send behind a terminal spinner. The spinner
// writes to stderr so piped stdout stays clean.
func askWithSpinner(ctx context.Context, session *chat.Session, text string) (*model.Message, error) {
	s := newSpinner(" thinking...")
	s.Start()
	defer s.Stop()

	return session.Send(ctx, text)
}

func runChatDirective(ctx context.Context, w io.Writer, rl *readline.Instance, line string, session *chat.Session, store repository.ConversationStore) (bool, error) {
	fields := strings.Fields(line)
	directive, args := fields[0], fields[1:]

	switch directive {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		printChatHelp(w)

	case "/new":
		if err := session.StartNew(ctx); err != nil {
			return false, err
		}
		fmt.Fprintf(w, "Started a new conversation.\n")

	case "/list":
		conversations, err := history.List(ctx, store, 0, 20)
		if err != nil {
			return false, err
		}
		if len(conversations) == 0 {
			fmt.Fprintf(w, "No saved conversations.\n")
			break
		}
		active := session.Active()
		for _, conv := range conversations {
			marker := " "
			if active != nil && active.ID == conv.ID {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %s  %s  %3d msgs  %s\n",
				marker, shortID(conv.ID), conv.UpdatedAt.Format("2006-01-02 15:04"), len(conv.Messages), conv.Title)
		}

	case "/resume":
		if len(args) == 0 {
			return false, goerr.New("usage: /resume <conversation-id>")
		}
		conv, err := history.Find(ctx, store, args[0])
		if err != nil {
			return false, err
		}
		if err := session.Resume(ctx, conv.ID); err != nil {
			return false, err
		}
		fmt.Fprintf(w, "Resumed %q (%d messages).\n", conv.Title, len(session.Messages()))

	case "/delete":
		if len(args) == 0 {
			return false, goerr.New("usage: /delete <conversation-id>")
		}
		conv, err := history.Find(ctx, store, args[0])
		if err != nil {
			return false, err
		}
		if err := session.Discard(ctx, conv.ID); err != nil {
			return false, err
		}
		fmt.Fprintf(w, "Deleted %q.\n", conv.Title)

	case "/mode":
		if len(args) == 0 {
			fmt.Fprintf(w, "Current mode: %s (available: %s)\n", session.Mode(), joinModes())
			break
		}
		if err := session.SetMode(model.AgentMode(args[0])); err != nil {
			return false, err
		}
		rl.SetPrompt(chatPrompt(session.Mode()))
		fmt.Fprintf(w, "Mode set to %s.\n", session.Mode())

	case "/sources":
		sources := session.Sources()
		if len(sources) == 0 {
			fmt.Fprintf(w, "No sources yet, ask a question first.\n")
			break
		}
		for i, src := range sources {
			heading := src.Source
			if src.Section != "" {
				heading += " · " + src.Section
			}
			fmt.Fprintf(w, "%d. %s (relevance %d%%)\n   %s\n", i+1, heading, src.Relevance(), excerpt(src.Text, 160))
		}

	default:
		return false, goerr.New("unknown command, try /help", goerr.V("command", directive))
	}

	return false, nil
}

func printChatHelp(w io.Writer) {
	fmt.Fprint(w, `Commands:
  /new                  start a new conversation
  /list                 list saved conversations
  /resume <id>          resume a conversation (ID prefix is enough)
  /delete <id>          delete a conversation
  /mode [name]          show or switch the answer mode
  /sources              show sources behind the last answer
  /help                 show this help
  /exit                 quit
`)
}

func chatPrompt(mode model.AgentMode) string {
	return fmt.Sprintf("folio[%s]> ", mode)
}

func chatCompleter() *readline.PrefixCompleter {
	modes := make([]readline.PrefixCompleterInterface, 0, len(model.AgentModes()))
	for _, m := range model.AgentModes() {
		modes = append(modes, readline.PcItem(string(m)))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("/new"),
		readline.PcItem("/list"),
		readline.PcItem("/resume"),
		readline.PcItem("/delete"),
		readline.PcItem("/mode", modes...),
		readline.PcItem("/sources"),
		readline.PcItem("/help"),
		readline.PcItem("/exit"),
	)
}

// readlineHistoryFile keeps prompt history next to the conversation store.
// An empty path disables persistent history rather than failing the REPL.
func readlineHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".folio", "readline_history")
}

func joinModes() string {
	modes := model.AgentModes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func shortID(id model.ConversationID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
