package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/folio/pkg/service/mcp"
	"github.com/m-mizutani/folio/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var (
		cfg  config
		addr string
	)

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, &cli.StringFlag{
		Name:        "addr",
		Usage:       "Serve MCP over HTTP on this address instead of stdio",
		Sources:     cli.EnvVars("FOLIO_MCP_ADDR"),
		Destination: &addr,
	})

	return &cli.Command{
		Name:  "mcp",
		Usage: "Expose the paper library as MCP tools",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// Logs go to stderr, stdio stays clean for the MCP protocol
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := mcp.NewServer(cfg.newBackend())

			if addr != "" {
				httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = httpSrv.Shutdown(shutdownCtx)
				}()

				logging.From(ctx).Info("serving MCP over HTTP", "addr", addr)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "MCP server failed", goerr.V("addr", addr))
				}
				return nil
			}

			logging.From(ctx).Info("serving MCP over stdio")
			return srv.Run(ctx)
		},
	}
}
