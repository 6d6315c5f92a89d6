package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/policy"
	"github.com/m-mizutani/folio/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Uploader sends one PDF to the backend.
type Uploader interface {
	Upload(ctx context.Context, filename string, data io.Reader) (*model.UploadResult, error)
}

const defaultDebounce = 500 * time.Millisecond

// Service watches a drop directory and uploads PDFs that appear in it.
// Writes are debounced per file so a PDF still being copied is not uploaded
// half-finished, and a content digest prevents re-uploading unchanged files.
type Service struct {
	dir      string
	uploader Uploader
	gate     *policy.Gate
	debounce time.Duration
	onUpload func(result *model.UploadResult)

	// seen maps path to the digest last uploaded; only the Run loop touches it
	seen map[string]string
}

type Option func(*Service)

// WithGate applies an upload admission policy to every candidate file
func WithGate(gate *policy.Gate) Option {
	return func(x *Service) {
		x.gate = gate
	}
}

// WithDebounce overrides how long a file must stay quiet before upload
func WithDebounce(d time.Duration) Option {
	return func(x *Service) {
		x.debounce = d
	}
}

// WithOnUpload registers a callback invoked after each successful upload
func WithOnUpload(fn func(result *model.UploadResult)) Option {
	return func(x *Service) {
		x.onUpload = fn
	}
}

func New(dir string, uploader Uploader, opts ...Option) *Service {
	x := &Service{
		dir:      dir,
		uploader: uploader,
		debounce: defaultDebounce,
		seen:     map[string]string{},
	}

	for _, opt := range opts {
		opt(x)
	}

	return x
}

// Run watches the drop directory until ctx is cancelled. PDFs already in
// the directory are uploaded on startup.
func (x *Service) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return goerr.Wrap(err, "failed to create watcher")
	}
	defer w.Close()

	if err := w.Add(x.dir); err != nil {
		return goerr.Wrap(err, "failed to watch directory", goerr.V("dir", x.dir))
	}

	logger := logging.From(ctx)
	logger.Info("watching for papers", "dir", x.dir)

	x.sweep(ctx)

	ready := make(chan string, 16)
	timers := map[string]*time.Timer{}
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher stopped")
			return nil

		case path := <-ready:
			delete(timers, path)
			x.process(ctx, path)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isPDF(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			if t, ok := timers[ev.Name]; ok {
				t.Reset(x.debounce)
				continue
			}
			path := ev.Name
			timers[path] = time.AfterFunc(x.debounce, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", watchErr)
		}
	}
}

// sweep uploads PDFs already present when the watcher starts.
func (x *Service) sweep(ctx context.Context) {
	_ = filepath.WalkDir(x.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isPDF(path) {
			return nil
		}
		x.process(ctx, path)
		return nil
	})
}

func (x *Service) process(ctx context.Context, path string) {
	logger := logging.From(ctx)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		// The file may have been removed between the event and the upload
		return
	}

	digest, err := fileDigest(path)
	if err != nil {
		logger.Warn("failed to hash file", "path", path, "error", err)
		return
	}
	if x.seen[path] == digest {
		logger.Debug("unchanged since last upload", "path", path)
		return
	}

	filename := filepath.Base(path)
	if err := x.gate.Admit(ctx, &policy.UploadInput{
		Filename: filename,
		Size:     info.Size(),
		Path:     path,
	}); err != nil {
		logger.Warn("upload denied", "path", path, "error", err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		logger.Warn("failed to open file", "path", path, "error", err)
		return
	}
	defer f.Close()

	result, err := x.uploader.Upload(ctx, filename, f)
	if err != nil {
		logger.Warn("upload failed", "path", path, "error", err)
		return
	}

	x.seen[path] = digest
	logger.Info("paper uploaded", "filename", result.Filename, "chunks", result.ChunkCount)

	if x.onUpload != nil {
		x.onUpload(result)
	}
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
