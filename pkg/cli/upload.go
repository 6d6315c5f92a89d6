package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/folio/pkg/policy"
	"github.com/m-mizutani/folio/pkg/usecase/library"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func uploadCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, policyFlags(&cfg)...)

	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload PDF files into the library",
		ArgsUsage: "<file.pdf>...",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return err
			}

			files := c.Args().Slice()
			if len(files) == 0 {
				return goerr.New("at least one PDF file is required", goerr.V("usage", "folio upload <file.pdf>..."))
			}

			gate, err := cfg.newPolicy(ctx)
			if err != nil {
				return err
			}

			coordinator := library.NewCoordinator(cfg.newBackend())
			w := c.Root().Writer

			// One bad file does not abort the batch
			var failed int
			for _, path := range files {
				if err := uploadOne(ctx, w, coordinator, gate, path); err != nil {
					failed++
					fmt.Fprintf(w, "failed %s: %s\n", path, err.Error())
				}
			}
			if failed > 0 {
				return goerr.New("some uploads failed", goerr.V("failed", failed), goerr.V("total", len(files)))
			}

			fmt.Fprintf(w, "Library now holds %d chunks.\n", coordinator.TotalChunks())
			return nil
		},
	}
}

func uploadOne(ctx context.Context, w io.Writer, coordinator *library.Coordinator, gate *policy.Gate, path string) error {
	// The backend only accepts PDFs, reject everything else before the
	// policy gate sees it
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return goerr.New("only PDF files can be uploaded", goerr.V("file", path))
	}

	stat, err := os.Stat(path)
	if err != nil {
		return goerr.Wrap(err, "cannot read file")
	}

	input := &policy.UploadInput{
		Filename: filepath.Base(path),
		Size:     stat.Size(),
		Path:     path,
	}
	if err := gate.Admit(ctx, input); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return goerr.Wrap(err, "cannot open file")
	}
	defer f.Close()

	result, err := coordinator.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "uploaded %s: %d pages, %d chunks\n", result.Filename, result.PageCount, result.ChunkCount)
	return nil
}
