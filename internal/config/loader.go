package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/imagecrawler/internal/model"
)

// DefaultConfigFile is the configuration file name searched for by FindConfigFile.
const DefaultConfigFile = "crawler-config.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the on-disk configuration format.
// Keys use the same camelCase names as the JSON config files written by
// earlier versions of the crawler. JSON is a subset of YAML, so both
// crawler-config.json and crawler-config.yaml load through the same path.
//
// Every field is a pointer so that Apply can tell "not set" from a zero value.
type File struct {
	MaxDepth            *int     `yaml:"maxDepth"`
	MaxConcurrent       *int     `yaml:"maxConcurrent"`
	MaxPages            *int     `yaml:"maxPages"`
	Timeout             *int64   `yaml:"timeout"` // milliseconds
	Headless            *bool    `yaml:"headless"`
	DownloadImages      *bool    `yaml:"downloadImages"`
	OutputDir           *string  `yaml:"outputDir"`
	OutputFile          *string  `yaml:"outputFile"`
	OutputFormat        *string  `yaml:"outputFormat"`
	CaptureScreenshots  *bool    `yaml:"captureScreenshots"`
	WaitForImages       *bool    `yaml:"waitForImages"`
	DetectLazyLoad      *bool    `yaml:"detectLazyLoad"`
	IncludeBackgrounds  *bool    `yaml:"includeBackgrounds"`
	IncludeHiddenImages *bool    `yaml:"includeHiddenImages"`
	ExcludeDataURI      *bool    `yaml:"excludeDataUri"`
	ImageFilter         []string `yaml:"imageFilter"`
	MinSize             *int64   `yaml:"minSize"`
	UserAgent           *string  `yaml:"userAgent"`
	Engine              *string  `yaml:"engine"`
	Workers             *int     `yaml:"workers"`
	RespectRobots       *bool    `yaml:"respectRobots"`
	RateLimit           *float64 `yaml:"rateLimit"`
	Proxy               *string  `yaml:"proxy"`
	InspectEXIF         *bool    `yaml:"inspectExif"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cf, nil
}

// Apply overlays every key set in the file onto cfg.
func (f *File) Apply(cfg *Config) error {
	if f == nil {
		return nil
	}

	setInt(&cfg.MaxDepth, f.MaxDepth)
	setInt(&cfg.MaxConcurrent, f.MaxConcurrent)
	setInt(&cfg.MaxPages, f.MaxPages)
	setInt(&cfg.Workers, f.Workers)
	setBool(&cfg.Headless, f.Headless)
	setBool(&cfg.Download, f.DownloadImages)
	setBool(&cfg.CaptureScreenshots, f.CaptureScreenshots)
	setBool(&cfg.WaitForImages, f.WaitForImages)
	setBool(&cfg.DetectLazyLoad, f.DetectLazyLoad)
	setBool(&cfg.IncludeBackgrounds, f.IncludeBackgrounds)
	setBool(&cfg.IncludeHiddenImages, f.IncludeHiddenImages)
	setBool(&cfg.ExcludeDataURI, f.ExcludeDataURI)
	setBool(&cfg.RespectRobots, f.RespectRobots)
	setBool(&cfg.InspectEXIF, f.InspectEXIF)
	setString(&cfg.OutputDir, f.OutputDir)
	setString(&cfg.OutputFile, f.OutputFile)
	setString(&cfg.UserAgent, f.UserAgent)
	setString(&cfg.Engine, f.Engine)
	setString(&cfg.ProxyAddress, f.Proxy)

	if f.Timeout != nil {
		cfg.Timeout = time.Duration(*f.Timeout) * time.Millisecond
	}
	if f.MinSize != nil {
		cfg.MinSize = *f.MinSize
	}
	if f.RateLimit != nil {
		cfg.RateLimit = *f.RateLimit
	}
	if f.ImageFilter != nil {
		cfg.ImageFilter = append([]string(nil), f.ImageFilter...)
	}
	if f.OutputFormat != nil {
		format, err := model.ParseFormat(*f.OutputFormat)
		if err != nil {
			return err
		}
		cfg.Format = format
	}
	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for crawler-config.yaml, then crawler-config.json, in the current directory
// 3. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		for _, name := range []string{DefaultConfigFile, "crawler-config.json"} {
			candidate := filepath.Join(cwd, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}
