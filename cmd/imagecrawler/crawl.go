package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/imagecrawler/internal/config"
	"github.com/nao1215/imagecrawler/internal/harvest"
	applog "github.com/nao1215/imagecrawler/internal/log"
	"github.com/nao1215/imagecrawler/internal/report"
)

// runCrawl runs one crawl for cfg and prints the summary.
// An interrupt (Ctrl-C or SIGTERM) stops the crawl between pages; the
// pages visited so far are still reported.
func runCrawl(cmd *cobra.Command, cfg *config.Config) error {
	cfg.Verbose = getBoolFlag(cmd, "verbose")

	logger := applog.NewLogger(cmd.ErrOrStderr(), applog.Options{
		Verbose: cfg.Verbose,
		Quiet:   cfg.Quiet,
		JSON:    getBoolFlag(cmd, "log-json"),
	})
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if !cfg.Quiet {
		fmt.Fprintf(out, "Crawling %s (depth %d, %s engine)...\n", cfg.SeedURL, cfg.MaxDepth, cfg.Engine)
		if cfg.UseTor {
			fmt.Fprintln(out, "Starting embedded Tor daemon. This may take 1-3 minutes while Tor bootstraps.")
		}
	}

	res, err := harvest.New(cfg, harvest.WithLogger(logger)).Run(ctx)
	if res != nil && !cfg.Quiet {
		fmt.Fprintln(out)
		if werr := report.WriteSummary(out, res.Summary(cfg.SeedURL)); werr != nil {
			logger.Warn("failed to write summary", "error", werr)
		}
	}
	if err != nil {
		if harvest.IsInterrupted(err) && res != nil {
			return fmt.Errorf("crawl interrupted, partial report written to %s", res.ReportPath)
		}
		return err
	}
	return nil
}

// getBoolFlag retrieves a boolean flag from the command or the root's
// persistent flags. Unknown flags read as false.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}
