package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/imagecrawler/internal/model"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// Changes to defaults must be intentional, so each one is pinned here.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default MaxDepth is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxDepth != 4 {
			t.Errorf("expected MaxDepth to be 4, got %d", cfg.MaxDepth)
		}
	})

	t.Run("default MaxConcurrent is 3", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxConcurrent != 3 {
			t.Errorf("expected MaxConcurrent to be 3, got %d", cfg.MaxConcurrent)
		}
	})

	t.Run("default Timeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected Timeout to be 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("default MaxPages is 1000", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 1000 {
			t.Errorf("expected MaxPages to be 1000, got %d", cfg.MaxPages)
		}
	})

	t.Run("default switches", func(t *testing.T) {
		t.Parallel()
		if !cfg.Headless || !cfg.Download || !cfg.WaitForImages || !cfg.DetectLazyLoad || !cfg.IncludeBackgrounds {
			t.Errorf("expected headless, download, wait, lazy-load and backgrounds on: %+v", cfg)
		}
		if cfg.IncludeHiddenImages || cfg.CaptureScreenshots || cfg.ExcludeDataURI {
			t.Errorf("expected hidden images, screenshots and data uri exclusion off: %+v", cfg)
		}
	})

	t.Run("default output", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputDir != "./images" {
			t.Errorf("expected OutputDir ./images, got %q", cfg.OutputDir)
		}
		if cfg.OutputFile != "images_report.json" {
			t.Errorf("expected OutputFile images_report.json, got %q", cfg.OutputFile)
		}
		if cfg.Format != model.FormatJSON {
			t.Errorf("expected json format, got %v", cfg.Format)
		}
	})

	t.Run("default engine is chrome with one worker", func(t *testing.T) {
		t.Parallel()
		if cfg.Engine != EngineChrome {
			t.Errorf("expected engine %q, got %q", EngineChrome, cfg.Engine)
		}
		if cfg.Workers != 1 {
			t.Errorf("expected 1 worker, got %d", cfg.Workers)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.SeedURL = "https://example.com/"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing seed", mutate: func(c *Config) { c.SeedURL = "" }, wantErr: ErrNoTarget},
		{name: "relative seed", mutate: func(c *Config) { c.SeedURL = "/index.html" }, wantErr: ErrInvalidTarget},
		{name: "ftp seed", mutate: func(c *Config) { c.SeedURL = "ftp://example.com/" }, wantErr: ErrInvalidTarget},
		{name: "zero depth", mutate: func(c *Config) { c.MaxDepth = 0 }, wantErr: ErrInvalidDepth},
		{name: "zero concurrency", mutate: func(c *Config) { c.MaxConcurrent = 0 }, wantErr: ErrInvalidConcurrency},
		{name: "zero max pages", mutate: func(c *Config) { c.MaxPages = 0 }, wantErr: ErrInvalidMaxPages},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: ErrInvalidWorkers},
		{name: "negative min size", mutate: func(c *Config) { c.MinSize = -1 }, wantErr: ErrInvalidMinSize},
		{name: "negative rate", mutate: func(c *Config) { c.RateLimit = -1 }, wantErr: ErrInvalidRateLimit},
		{name: "empty output file", mutate: func(c *Config) { c.OutputFile = "" }, wantErr: ErrNoOutputFile},
		{name: "download without dir", mutate: func(c *Config) { c.OutputDir = "" }, wantErr: ErrNoOutputDir},
		{name: "report escapes output dir", mutate: func(c *Config) { c.OutputFile = "../x.json" }, wantErr: ErrOutputFileOutsideDir},
		{name: "absolute report in download mode", mutate: func(c *Config) { c.OutputFile = "/tmp/x.json" }, wantErr: ErrOutputFileOutsideDir},
		{name: "nested report inside output dir", mutate: func(c *Config) { c.OutputFile = "reports/x.json" }},
		{
			name:   "catalogue mode report anywhere",
			mutate: func(c *Config) { c.Download = false; c.OutputFile = "../x.json" },
		},
		{
			name:   "catalogue mode without dir",
			mutate: func(c *Config) { c.OutputDir = ""; c.Download = false },
		},
		{name: "unknown engine", mutate: func(c *Config) { c.Engine = "firefox" }, wantErr: ErrUnknownEngine},
		{
			name:    "static engine with screenshots",
			mutate:  func(c *Config) { c.Engine = EngineStatic; c.CaptureScreenshots = true },
			wantErr: ErrScreenshotNeedsBrowser,
		},
		{
			name:    "tor and proxy",
			mutate:  func(c *Config) { c.UseTor = true; c.ProxyAddress = "127.0.0.1:9050" },
			wantErr: ErrConflictingProxy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigReportPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		file       string
		download   bool
		screenshot bool
		want       string
	}{
		{name: "download mode", download: true, want: filepath.Join("out", "report.json")},
		{name: "screenshots only", screenshot: true, want: filepath.Join("out", "report.json")},
		{name: "catalogue mode", want: "report.json"},
		{name: "parent path stays in output dir", file: "../report.json", download: true, want: filepath.Join("out", "report.json")},
		{name: "cleaned nested path", file: "a/../b/report.json", download: true, want: filepath.Join("out", "b", "report.json")},
		{name: "catalogue mode keeps parent path", file: "../report.json", want: "../report.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			cfg.OutputDir = "out"
			cfg.OutputFile = "report.json"
			if tt.file != "" {
				cfg.OutputFile = tt.file
			}
			cfg.Download = tt.download
			cfg.CaptureScreenshots = tt.screenshot

			if got := cfg.ReportPath(); got != tt.want {
				t.Errorf("ReportPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigNormalizedFilter(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.ImageFilter = []string{" JPG", ".png", "", "WebP "}

	got := cfg.NormalizedFilter()
	want := []string{"jpg", "png", "webp"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestConfigReportConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Timeout = 45 * time.Second

	rc := cfg.ReportConfig()
	if rc.Timeout != 45000 {
		t.Errorf("expected timeout in milliseconds, got %d", rc.Timeout)
	}
	if rc.MaxDepth != cfg.MaxDepth || rc.MaxConcurrent != cfg.MaxConcurrent {
		t.Errorf("unexpected report config: %+v", rc)
	}
}
