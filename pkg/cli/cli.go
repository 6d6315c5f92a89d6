package cli

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/folio/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	// Load .env if present so local setups need no exported variables
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "folio",
		Usage: "Chat with your local research paper library",
		Commands: []*cli.Command{
			chatCommand(),
			askCommand(),
			indexCommand(),
			statusCommand(),
			papersCommand(),
			uploadCommand(),
			deleteCommand(),
			historyCommand(),
			showCommand(),
			forgetCommand(),
			watchCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
