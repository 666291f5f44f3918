package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/imagecrawler/internal/config"
	"github.com/nao1215/imagecrawler/internal/database"
)

// historyDateLayout is how run start times are shown.
const historyDateLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List past crawls",
		Long: `History lists the crawls recorded in the history database, newest first.

Every crawl is recorded unless it ran with --no-history. The database
lives in the XDG data directory (~/.local/share/imagecrawler on Linux).

Examples:
  # List the last 20 crawls
  imagecrawler history

  # List the crawls of one site
  imagecrawler history https://example.com/

  # Print the stored JSON report of a run
  imagecrawler history --show 2f1c0e9a-...

  # Output the list as a Markdown table
  imagecrawler history --markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list (0 = all)")
	cmd.Flags().String("show", "", "Print the stored report of the run with this id")
	cmd.Flags().BoolP("markdown", "m", false, "Output a Markdown table")
	cmd.Flags().String("db-dir", "", "History database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	show, err := flags.GetString("show")
	if err != nil {
		return err
	}
	asMarkdown, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	out := cmd.OutOrStdout()

	db, err := database.Open(dbDir, database.Options{})
	if errors.Is(err, database.ErrNotFound) {
		fmt.Fprintln(out, "No crawl history yet.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if show != "" {
		return showRun(ctx, out, db, show)
	}

	var seed string
	if len(args) > 0 {
		seed = args[0]
	}
	runs, err := db.ListRuns(ctx, seed, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		if seed != "" {
			fmt.Fprintf(out, "No crawl history found for %s\n", seed)
		} else {
			fmt.Fprintln(out, "No crawl history yet.")
		}
		return nil
	}

	if asMarkdown {
		return writeRunsMarkdown(out, runs)
	}
	writeRunsText(out, runs)
	return nil
}

// showRun prints the stored report of one run.
func showRun(ctx context.Context, out io.Writer, db *database.HistoryDB, runID string) error {
	run, err := db.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run not found: %s", runID)
	}
	if run.Report == "" {
		fmt.Fprintf(out, "The report of run %s was not stored (non-JSON format).\n", runID)
		fmt.Fprintf(out, "It was written to %s\n", run.ReportPath)
		return nil
	}
	fmt.Fprintln(out, run.Report)
	return nil
}

// writeRunsText prints runs as aligned columns.
func writeRunsText(out io.Writer, runs []*database.Run) {
	fmt.Fprintf(out, "Crawl history (%d runs):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %5s  %6s  %6s  %s\n",
		"Run", "Started", "Mode", "Pages", "Images", "Failed", "Seed")
	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %5d  %6d  %6d  %s\n",
			r.RunID,
			r.StartedAt.Local().Format(historyDateLayout),
			runKind(r),
			r.PagesVisited,
			imageCount(r),
			r.Failed,
			r.Seed,
		)
	}
}

// writeRunsMarkdown prints runs as a Markdown table.
func writeRunsMarkdown(out io.Writer, runs []*database.Run) error {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.RunID,
			r.StartedAt.Local().Format(historyDateLayout),
			runKind(r),
			strconv.Itoa(r.PagesVisited),
			strconv.Itoa(imageCount(r)),
			strconv.Itoa(r.Failed),
			r.Duration().Round(time.Millisecond).String(),
			r.Seed,
		})
	}

	return markdown.NewMarkdown(out).
		H1("Crawl History").
		PlainText("").
		Table(markdown.TableSet{
			Header: []string{"Run", "Started", "Mode", "Pages", "Images", "Failed", "Duration", "Seed"},
			Rows:   rows,
		}).
		Build()
}

// runKind names what a run produced.
func runKind(r *database.Run) string {
	if r.Download {
		return "download"
	}
	return "catalogue"
}

// imageCount is the number of images a run produced: files in download
// mode, catalogue entries otherwise.
func imageCount(r *database.Run) int {
	if r.Download {
		return r.Downloaded + r.Skipped
	}
	return r.Images
}
