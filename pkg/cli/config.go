package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/m-mizutani/folio/pkg/adapter"
	"github.com/m-mizutani/folio/pkg/model"
	"github.com/m-mizutani/folio/pkg/policy"
	"github.com/m-mizutani/folio/pkg/repository"
	"github.com/m-mizutani/folio/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values shared across commands
type config struct {
	ConfigPath string

	// Backend
	BaseURL string
	Timeout time.Duration

	// Conversation store
	HistoryPath string
	Project     string
	Database    string
	Bucket      string

	// Chat defaults
	Mode     string
	NResults int64

	// Upload admission
	PolicyDir string

	// Logging
	LogLevel  string
	LogFormat string
}

// fileConfig is the YAML config file schema. Field names mirror the flag
// names, timeout is a duration string ("120s").
type fileConfig struct {
	BaseURL   string `yaml:"base_url"`
	Timeout   string `yaml:"timeout"`
	History   string `yaml:"history"`
	Project   string `yaml:"project"`
	Database  string `yaml:"database"`
	Bucket    string `yaml:"bucket"`
	Mode      string `yaml:"mode"`
	NResults  int64  `yaml:"n_results"`
	Policy    string `yaml:"policy"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Validate checks value constraints before any dependency is built.
func (cfg *config) Validate() error {
	modes := make([]any, 0, 4)
	for _, m := range model.AgentModes() {
		modes = append(modes, string(m))
	}

	return validation.ValidateStruct(cfg,
		validation.Field(&cfg.BaseURL, validation.Required),
		validation.Field(&cfg.Mode, validation.In(modes...)),
		validation.Field(&cfg.NResults, validation.Min(0), validation.Max(50)),
		validation.Field(&cfg.LogFormat, validation.In("console", "json")),
	)
}

// setup overlays the config file, validates the result, and installs the
// logger into ctx. Logs go to stderr; stdout belongs to command output.
func (cfg *config) setup(ctx context.Context, c *cli.Command) (context.Context, error) {
	if err := cfg.loadFile(c.IsSet); err != nil {
		return ctx, err
	}
	if err := cfg.Validate(); err != nil {
		return ctx, goerr.Wrap(err, "invalid configuration")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

// loadFile reads the YAML config file (if any) with environment variables
// expanded, and fills in fields whose flags were not set on the command
// line or environment. Precedence: flag/env over file over default.
func (cfg *config) loadFile(isSet func(string) bool) error {
	if cfg.ConfigPath == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.ConfigPath))
	}

	var file fileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.ConfigPath))
	}

	return cfg.apply(&file, isSet)
}

func (cfg *config) apply(file *fileConfig, isSet func(string) bool) error {
	if file.BaseURL != "" && !isSet("base-url") {
		cfg.BaseURL = file.BaseURL
	}
	if file.Timeout != "" && !isSet("timeout") {
		d, err := time.ParseDuration(file.Timeout)
		if err != nil {
			return goerr.Wrap(err, "invalid timeout in config file", goerr.V("timeout", file.Timeout))
		}
		cfg.Timeout = d
	}
	if file.History != "" && !isSet("history") {
		cfg.HistoryPath = file.History
	}
	if file.Project != "" && !isSet("project") {
		cfg.Project = file.Project
	}
	if file.Database != "" && !isSet("database") {
		cfg.Database = file.Database
	}
	if file.Bucket != "" && !isSet("bucket") {
		cfg.Bucket = file.Bucket
	}
	if file.Mode != "" && !isSet("mode") {
		cfg.Mode = file.Mode
	}
	if file.NResults > 0 && !isSet("n-results") {
		cfg.NResults = file.NResults
	}
	if file.Policy != "" && !isSet("policy") {
		cfg.PolicyDir = file.Policy
	}
	if file.LogLevel != "" && !isSet("log-level") {
		cfg.LogLevel = file.LogLevel
	}
	if file.LogFormat != "" && !isSet("log-format") {
		cfg.LogFormat = file.LogFormat
	}
	return nil
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Path to a YAML config file",
			Sources:     cli.EnvVars("FOLIO_CONFIG"),
			Destination: &cfg.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Aliases:     []string{"u"},
			Usage:       "Backend API base URL",
			Value:       "http://localhost:8000",
			Sources:     cli.EnvVars("FOLIO_BASE_URL"),
			Destination: &cfg.BaseURL,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Per-request timeout for backend calls",
			Value:       120 * time.Second,
			Sources:     cli.EnvVars("FOLIO_TIMEOUT"),
			Destination: &cfg.Timeout,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("FOLIO_LOG_LEVEL"),
			Destination: &cfg.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("FOLIO_LOG_FORMAT"),
			Destination: &cfg.LogFormat,
		},
	}
}

// storeFlags returns flags selecting where conversations are persisted
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "history",
			Usage:       "Path to the local conversation history file",
			Sources:     cli.EnvVars("FOLIO_HISTORY"),
			Destination: &cfg.HistoryPath,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID (enables the Firestore store)",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.Project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.Database,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for conversation contents",
			Sources:     cli.EnvVars("FOLIO_BUCKET"),
			Destination: &cfg.Bucket,
		},
	}
}

// chatFlags returns flags controlling how questions are asked
func chatFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "mode",
			Aliases:     []string{"m"},
			Usage:       "Agent mode (qa, synthesize, trends, gaps)",
			Value:       string(model.ModeQA),
			Sources:     cli.EnvVars("FOLIO_MODE"),
			Destination: &cfg.Mode,
		},
		&cli.IntFlag{
			Name:        "n-results",
			Aliases:     []string{"n"},
			Usage:       "Number of passages to retrieve (0 = mode default)",
			Sources:     cli.EnvVars("FOLIO_N_RESULTS"),
			Destination: &cfg.NResults,
		},
	}
}

// policyFlags returns flags for upload admission policies
func policyFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Directory of Rego upload admission policies",
			Sources:     cli.EnvVars("FOLIO_POLICY"),
			Destination: &cfg.PolicyDir,
		},
	}
}

// newBackend creates the backend API client
func (cfg *config) newBackend() adapter.Backend {
	opts := []adapter.BackendOption{}
	if cfg.Timeout > 0 {
		opts = append(opts, adapter.WithTimeout(cfg.Timeout))
	}
	return adapter.NewBackend(cfg.BaseURL, opts...)
}

// newStore creates the conversation store: Firestore with Cloud Storage
// contents when a project is configured, the local file store otherwise.
func (cfg *config) newStore(ctx context.Context) (repository.ConversationStore, error) {
	if cfg.Project != "" {
		if cfg.Bucket == "" {
			return nil, goerr.New("bucket is required when project is set")
		}

		contents, err := adapter.NewStorage(ctx, cfg.Bucket)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage")
		}

		store, err := repository.NewFirestore(ctx, cfg.Project, cfg.Database, contents)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create firestore store")
		}
		return store, nil
	}

	return repository.NewFile(cfg.historyFile()), nil
}

func (cfg *config) historyFile() string {
	if cfg.HistoryPath != "" {
		return cfg.HistoryPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".folio", "history.json")
	}
	return filepath.Join(home, ".folio", "history.json")
}

// newPolicy loads the upload admission gate
func (cfg *config) newPolicy(ctx context.Context) (*policy.Gate, error) {
	gate, err := policy.New(ctx, cfg.PolicyDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load upload policy")
	}
	return gate, nil
}

// agentMode returns the configured mode as a model value
func (cfg *config) agentMode() model.AgentMode {
	return model.AgentMode(cfg.Mode)
}
