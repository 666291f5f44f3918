package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/imagecrawler/internal/model"
)

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("loads yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "crawler-config.yaml")
		content := `maxDepth: 2
timeout: 5000
imageFilter: [jpg, png]
minSize: 1024
downloadImages: false
outputFormat: csv
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		if err := f.Apply(cfg); err != nil {
			t.Fatalf("apply: %v", err)
		}

		if cfg.MaxDepth != 2 {
			t.Errorf("expected MaxDepth 2, got %d", cfg.MaxDepth)
		}
		if cfg.Timeout != 5*time.Second {
			t.Errorf("expected Timeout 5s, got %v", cfg.Timeout)
		}
		if len(cfg.ImageFilter) != 2 || cfg.ImageFilter[0] != "jpg" {
			t.Errorf("unexpected ImageFilter %v", cfg.ImageFilter)
		}
		if cfg.MinSize != 1024 {
			t.Errorf("expected MinSize 1024, got %d", cfg.MinSize)
		}
		if cfg.Download {
			t.Error("expected Download to be false")
		}
		if cfg.Format != model.FormatCSV {
			t.Errorf("expected csv format, got %v", cfg.Format)
		}
		// Keys absent from the file keep their defaults.
		if cfg.MaxConcurrent != DefaultMaxConcurrent {
			t.Errorf("expected MaxConcurrent default, got %d", cfg.MaxConcurrent)
		}
		if !cfg.Headless {
			t.Error("expected Headless default to be kept")
		}
	})

	t.Run("loads json", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "crawler-config.json")
		content := `{
  "maxDepth": 3,
  "maxConcurrent": 4,
  "includeHiddenImages": true,
  "excludeDataUri": true
}`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		if err := f.Apply(cfg); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if cfg.MaxDepth != 3 || cfg.MaxConcurrent != 4 {
			t.Errorf("unexpected depth/concurrency: %d/%d", cfg.MaxDepth, cfg.MaxConcurrent)
		}
		if !cfg.IncludeHiddenImages || !cfg.ExcludeDataURI {
			t.Error("expected boolean keys to be applied")
		}
	})

	t.Run("invalid format is rejected", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("outputFormat: xml\n"), 0600); err != nil {
			t.Fatal(err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := f.Apply(NewConfig()); !errors.Is(err, model.ErrUnknownFormat) {
			t.Errorf("expected ErrUnknownFormat, got %v", err)
		}
	})

	t.Run("malformed yaml returns error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "broken.yaml")
		if err := os.WriteFile(path, []byte("maxDepth: [1, 2\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestFileApplyNil(t *testing.T) {
	t.Parallel()

	var f *File
	cfg := NewConfig()
	if err := f.Apply(cfg); err != nil {
		t.Errorf("expected nil file to be a no-op, got %v", err)
	}
}

func TestFindConfigFileExplicitPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("maxDepth: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if got := FindConfigFile(path); got != path {
		t.Errorf("expected %q, got %q", path, got)
	}
	if got := FindConfigFile(path + ".missing"); got != "" {
		t.Errorf("expected empty path for missing explicit file, got %q", got)
	}
}
