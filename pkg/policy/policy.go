package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/folio/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// ErrUploadDenied means an admission policy rejected the file
var ErrUploadDenied = goerr.New("upload denied by policy")

// regoPrintHook implements print.Hook so Rego print() statements surface in logs
type regoPrintHook struct{}

func (h *regoPrintHook) Print(ctx print.Context, message string) error {
	logging.Default().Info("rego print", "message", message)
	return nil
}

// UploadInput is the document handed to the upload admission policy.
type UploadInput struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Path     string `json:"path"`
}

// Gate evaluates upload admission rules written in Rego. Policies live in
// package upload and deny by adding human-readable reasons to the deny set;
// an empty set admits the file.
type Gate struct {
	upload *rego.PreparedEvalQuery
}

// New loads all .rego files from dir and prepares the data.upload query.
// An empty dir or a dir without policy files yields a gate that admits
// everything.
func New(ctx context.Context, dir string) (*Gate, error) {
	if dir == "" {
		return &Gate{}, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files")
	}
	if len(files) == 0 {
		return &Gate{}, nil
	}

	options := make([]func(*rego.Rego), 0, len(files)+1)
	options = append(options, rego.Query("data.upload"))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare upload policy")
	}

	return &Gate{upload: &prepared}, nil
}

// Admit evaluates the upload policy for one candidate file. It returns
// ErrUploadDenied carrying the policy's reasons when any deny rule fires.
func (x *Gate) Admit(ctx context.Context, input *UploadInput) error {
	if x == nil || x.upload == nil {
		return nil
	}

	rs, err := x.upload.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&regoPrintHook{}))
	if err != nil {
		return goerr.Wrap(err, "failed to evaluate upload policy")
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return goerr.New("invalid upload policy result", goerr.V("value", rs[0].Expressions[0].Value))
	}

	denied, ok := data["deny"].([]any)
	if !ok || len(denied) == 0 {
		return nil
	}

	reasons := make([]string, 0, len(denied))
	for _, d := range denied {
		reasons = append(reasons, fmt.Sprintf("%v", d))
	}

	return goerr.Wrap(ErrUploadDenied, strings.Join(reasons, "; "),
		goerr.V("filename", input.Filename))
}
