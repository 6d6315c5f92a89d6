package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
)

func validConfig() config {
	return config{
		BaseURL:   "http://localhost:8000",
		Mode:      "qa",
		NResults:  5,
		LogFormat: "console",
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := validConfig()
		gt.NoError(t, cfg.Validate())
	})

	t.Run("missing base URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.BaseURL = ""
		gt.Error(t, cfg.Validate())
	})

	t.Run("unknown mode", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "translate"
		gt.Error(t, cfg.Validate())
	})

	t.Run("n-results out of range", func(t *testing.T) {
		cfg := validConfig()
		cfg.NResults = 500
		gt.Error(t, cfg.Validate())
	})

	t.Run("negative n-results", func(t *testing.T) {
		cfg := validConfig()
		cfg.NResults = -1
		gt.Error(t, cfg.Validate())
	})

	t.Run("unknown log format", func(t *testing.T) {
		cfg := validConfig()
		cfg.LogFormat = "xml"
		gt.Error(t, cfg.Validate())
	})
}

func TestConfigFile(t *testing.T) {
	noFlags := func(string) bool { return false }

	t.Run("fills unset fields", func(t *testing.T) {
		cfg := validConfig()
		file := &fileConfig{
			BaseURL: "http://papers.internal:9000",
			Timeout: "30s",
			Mode:    "synthesize",
		}

		gt.NoError(t, cfg.apply(file, noFlags))
		gt.Equal(t, cfg.BaseURL, "http://papers.internal:9000")
		gt.Equal(t, cfg.Timeout, 30*time.Second)
		gt.Equal(t, cfg.Mode, "synthesize")
	})

	t.Run("flags win over the file", func(t *testing.T) {
		cfg := validConfig()
		file := &fileConfig{BaseURL: "http://papers.internal:9000", Mode: "synthesize"}
		set := func(name string) bool { return name == "base-url" }

		gt.NoError(t, cfg.apply(file, set))
		gt.Equal(t, cfg.BaseURL, "http://localhost:8000")
		gt.Equal(t, cfg.Mode, "synthesize")
	})

	t.Run("bad timeout", func(t *testing.T) {
		cfg := validConfig()
		gt.Error(t, cfg.apply(&fileConfig{Timeout: "soon"}, noFlags))
	})

	t.Run("loads yaml with env expansion", func(t *testing.T) {
		t.Setenv("TEST_FOLIO_HOST", "papers.internal")
		path := filepath.Join(t.TempDir(), "folio.yml")
		body := "base_url: http://${TEST_FOLIO_HOST}:9000\nn_results: 8\n"
		gt.NoError(t, os.WriteFile(path, []byte(body), 0600))

		cfg := validConfig()
		cfg.ConfigPath = path
		gt.NoError(t, cfg.loadFile(noFlags))
		gt.Equal(t, cfg.BaseURL, "http://papers.internal:9000")
		gt.Equal(t, cfg.NResults, 8)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		cfg := validConfig()
		cfg.ConfigPath = filepath.Join(t.TempDir(), "absent.yml")
		gt.Error(t, cfg.loadFile(noFlags))
	})

	t.Run("no path is a no-op", func(t *testing.T) {
		cfg := validConfig()
		gt.NoError(t, cfg.loadFile(noFlags))
		gt.Equal(t, cfg.BaseURL, "http://localhost:8000")
	})
}

func TestHistoryFile(t *testing.T) {
	cfg := config{HistoryPath: "/tmp/custom.json"}
	gt.Equal(t, cfg.historyFile(), "/tmp/custom.json")

	cfg = config{}
	gt.S(t, cfg.historyFile()).Contains(".folio")
}

func TestNewStoreDefaultsToFile(t *testing.T) {
	cfg := config{HistoryPath: filepath.Join(t.TempDir(), "history.json")}

	store, err := cfg.newStore(context.Background())
	gt.NoError(t, err)
	gt.V(t, store).NotNil()
}

func TestNewStoreFirestoreRequiresBucket(t *testing.T) {
	cfg := config{Project: "some-project"}

	_, err := cfg.newStore(context.Background())
	gt.Error(t, err)
}
