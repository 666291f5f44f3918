package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/imagecrawler/internal/config"
)

const (
	// quickReportFile is the report name of the default command.
	quickReportFile = "crawler-report.json"

	// quickConcurrency is the page concurrency of the default command.
	quickConcurrency = 4
)

// NewRootCmd creates the root command. Given a URL it runs a download
// crawl with the quick-start settings; every other option lives on the
// advanced subcommand.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imagecrawler <url> [output-dir]",
		Short: "Harvest every image a website references",
		Long: `imagecrawler crawls a website and collects every image it references:
<img> tags, srcset candidates, lazy-load attributes, CSS backgrounds, SVG
images, <picture> sources, video posters, embedded objects and favicons.

Given only a URL, it downloads the images of the site into ./images and
writes crawler-report.json next to them. Use "imagecrawler advanced" for
catalogue mode, output formats, filters, proxies and the rest.

Examples:
  # Download the images of a site into ./images
  imagecrawler https://example.com

  # Crawl two levels deep into ./shots, with page screenshots
  imagecrawler -d 2 --screenshot https://example.com ./shots`,
		Version:       getVersion(),
		Args:          cobra.RangeArgs(0, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRootCmd,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum crawl depth (the seed page is depth 1)")
	cmd.Flags().Bool("screenshot", false, "Save a full-page screenshot of every page")
	cmd.Flags().Bool("no-headless", false, "Show the browser window")
	cmd.Flags().BoolP("quiet", "q", false, "Only print errors")

	cmd.AddCommand(NewAdvancedCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// runRootCmd executes the quick-start crawl.
func runRootCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	cfg := config.NewConfig()
	cfg.SeedURL = args[0]
	if len(args) > 1 {
		cfg.OutputDir = args[1]
	}
	cfg.Download = true
	cfg.OutputFile = quickReportFile
	cfg.MaxConcurrent = quickConcurrency

	var err error
	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return err
	}
	cfg.CaptureScreenshots, err = cmd.Flags().GetBool("screenshot")
	if err != nil {
		return err
	}
	noHeadless, err := cmd.Flags().GetBool("no-headless")
	if err != nil {
		return err
	}
	cfg.Headless = !noHeadless
	cfg.Quiet, err = cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}

	return runCrawl(cmd, cfg)
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
