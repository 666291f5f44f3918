package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/imagecrawler/internal/config"
	"github.com/nao1215/imagecrawler/internal/model"
)

// NewAdvancedCmd creates the advanced command.
func NewAdvancedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advanced <url>",
		Short: "Crawl with every option available",
		Long: `Advanced exposes every crawl option.

Settings are resolved in this order, later ones winning:
  1. Built-in defaults
  2. The configuration file (--config, or crawler-config.yaml /
     crawler-config.json in the current directory, or config.yaml in
     $XDG_CONFIG_HOME/imagecrawler)
  3. Flags given on the command line

Without --no-download, images are written under --output-dir together
with the report. With --no-download, only a catalogue of image references
is written to --output, in json, csv, txt or markdown.

Examples:
  # Catalogue the images of a site as CSV without downloading anything
  imagecrawler advanced --no-download -f csv -o images.csv https://example.com

  # Only large JPEG and PNG files, no inline data URIs
  imagecrawler advanced --filter jpg,jpeg,png --min-size 40000 --exclude-data-uri https://example.com

  # Crawl without a browser, politely, through Tor
  imagecrawler advanced --engine static --robots --rate 2 --tor https://example.com

  # Use a configuration file written by "imagecrawler init"
  imagecrawler advanced --config crawler-config.yaml https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runAdvancedCmd,
	}

	// Crawl scope
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum crawl depth (the seed page is depth 1)")
	cmd.Flags().IntP("concurrent", "c", config.DefaultMaxConcurrent,
		"Number of pages processed in parallel")
	cmd.Flags().Int("max-pages", config.DefaultMaxPages,
		"Maximum number of pages to visit")
	cmd.Flags().IntP("timeout", "t", int(config.DefaultTimeout.Milliseconds()),
		"Navigation and network-idle timeout in milliseconds")

	// Output
	cmd.Flags().StringP("output", "o", config.DefaultOutputFile,
		"Report or catalogue file name")
	cmd.Flags().StringP("format", "f", model.FormatJSON.String(),
		"Output format: json, csv, txt or markdown")
	cmd.Flags().String("output-dir", config.DefaultOutputDir,
		"Directory for downloaded images, screenshots and the report")
	cmd.Flags().Bool("no-download", false,
		"Only catalogue image references, do not download")
	cmd.Flags().Bool("screenshot", false,
		"Save a full-page screenshot of every page")
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the history database")

	// Page handling
	cmd.Flags().String("engine", config.EngineChrome,
		"Page engine: chrome (rendered) or static (raw HTML, no JavaScript)")
	cmd.Flags().Bool("no-headless", false, "Show the browser window")
	cmd.Flags().Bool("no-wait-images", false, "Do not wait for images to finish loading")
	cmd.Flags().Bool("no-lazy-load", false, "Do not trigger lazy-loaded images")
	cmd.Flags().Bool("no-backgrounds", false, "Ignore CSS background images")
	cmd.Flags().Bool("hidden-images", false, "Include images that are not displayed")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent for pages and images")

	// Filtering
	cmd.Flags().StringSlice("filter", nil,
		"Allowed image extensions, comma separated (e.g. jpg,png,webp)")
	cmd.Flags().Int64("min-size", 0,
		"Minimum data URI size in bytes, or pixel area for remote images")
	cmd.Flags().Bool("exclude-data-uri", false, "Skip inline data URI images")

	// Downloads
	cmd.Flags().Int("workers", config.DefaultWorkers,
		"Concurrent downloads per page (1 keeps document order)")
	cmd.Flags().Float64("rate", 0,
		"Maximum image requests per second per host (0 = unlimited)")
	cmd.Flags().Bool("exif", false, "Read EXIF metadata of downloaded images into the report")

	// Politeness and transport
	cmd.Flags().Bool("robots", false, "Skip pages disallowed by robots.txt")
	cmd.Flags().String("proxy", "",
		"Route all traffic through a SOCKS5 proxy (e.g. 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false, "Start an embedded Tor daemon and route all traffic through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Operations
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address during the crawl (e.g. :9090)")
	cmd.Flags().String("config", "",
		"Configuration file path")
	cmd.Flags().BoolP("quiet", "q", false, "Only print errors")

	return cmd
}

// runAdvancedCmd executes the advanced command.
func runAdvancedCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildAdvancedConfig(cmd, args)
	if err != nil {
		return err
	}
	return runCrawl(cmd, cfg)
}

// buildAdvancedConfig resolves defaults, the config file and the flags
// into a Config. Only flags the user actually set override the file.
func buildAdvancedConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.SeedURL = args[0]

	flags := cmd.Flags()
	var err error

	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}
	// An explicitly given file must exist; the default locations are optional.
	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		if err := file.Apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	intFlags := map[string]*int{
		"depth":      &cfg.MaxDepth,
		"concurrent": &cfg.MaxConcurrent,
		"max-pages":  &cfg.MaxPages,
		"workers":    &cfg.Workers,
	}
	for name, dst := range intFlags {
		if flags.Changed(name) {
			if *dst, err = flags.GetInt(name); err != nil {
				return nil, err
			}
		}
	}

	stringFlags := map[string]*string{
		"output":       &cfg.OutputFile,
		"output-dir":   &cfg.OutputDir,
		"engine":       &cfg.Engine,
		"user-agent":   &cfg.UserAgent,
		"proxy":        &cfg.ProxyAddress,
		"metrics-addr": &cfg.MetricsAddr,
	}
	for name, dst := range stringFlags {
		if flags.Changed(name) {
			if *dst, err = flags.GetString(name); err != nil {
				return nil, err
			}
		}
	}

	boolFlags := map[string]*bool{
		"screenshot":       &cfg.CaptureScreenshots,
		"hidden-images":    &cfg.IncludeHiddenImages,
		"exclude-data-uri": &cfg.ExcludeDataURI,
		"robots":           &cfg.RespectRobots,
		"tor":              &cfg.UseTor,
		"exif":             &cfg.InspectEXIF,
		"quiet":            &cfg.Quiet,
	}
	for name, dst := range boolFlags {
		if flags.Changed(name) {
			if *dst, err = flags.GetBool(name); err != nil {
				return nil, err
			}
		}
	}

	// --no-* flags switch off a setting that is on by default.
	negatedFlags := map[string]*bool{
		"no-download":    &cfg.Download,
		"no-headless":    &cfg.Headless,
		"no-wait-images": &cfg.WaitForImages,
		"no-lazy-load":   &cfg.DetectLazyLoad,
		"no-backgrounds": &cfg.IncludeBackgrounds,
		"no-history":     &cfg.SaveHistory,
	}
	for name, dst := range negatedFlags {
		if flags.Changed(name) {
			off, err := flags.GetBool(name)
			if err != nil {
				return nil, err
			}
			*dst = !off
		}
	}

	if flags.Changed("timeout") {
		ms, err := flags.GetInt("timeout")
		if err != nil {
			return nil, err
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	if flags.Changed("format") {
		name, err := flags.GetString("format")
		if err != nil {
			return nil, err
		}
		if cfg.Format, err = model.ParseFormat(name); err != nil {
			return nil, err
		}
	}
	if flags.Changed("filter") {
		if cfg.ImageFilter, err = flags.GetStringSlice("filter"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("min-size") {
		if cfg.MinSize, err = flags.GetInt64("min-size"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("rate") {
		if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("tor-timeout") {
		if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
