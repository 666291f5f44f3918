package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/imagecrawler/internal/model"
)

// Summary is what the console shows after a crawl.
type Summary struct {
	Seed         string
	Download     bool
	Stats        model.SessionStats
	Images       int
	PagesVisited int
	PagesFailed  int
	ReportPath   string
	Duration     time.Duration
}

// WriteSummary writes a human-readable summary of a finished crawl.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
func WriteSummary(w io.Writer, s Summary) error {
	var b strings.Builder

	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Crawl of %s finished in %s\n", s.Seed, s.Duration.Round(time.Millisecond))
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Pages visited: %d", s.PagesVisited)
	if s.PagesFailed > 0 {
		fmt.Fprintf(&b, " (%d failed)", s.PagesFailed)
	}
	b.WriteString("\n")

	if s.Download {
		fmt.Fprintf(&b, "Images total:  %d\n", s.Stats.Total)
		fmt.Fprintf(&b, "  success:     %d\n", s.Stats.Success)
		fmt.Fprintf(&b, "  failed:      %d\n", s.Stats.Failed)
		fmt.Fprintf(&b, "  skipped:     %d (already present)\n", s.Stats.Skipped)
		fmt.Fprintf(&b, "Total size:    %s\n", humanSize(s.Stats.TotalSize))
	} else {
		fmt.Fprintf(&b, "Unique images: %d\n", s.Images)
		for _, t := range model.AllSourceTypes() {
			if n := s.Stats.ByType[t]; n > 0 {
				fmt.Fprintf(&b, "  %-20s %d\n", TypeLabel(t)+":", n)
			}
		}
	}
	if s.Stats.Screenshots > 0 {
		fmt.Fprintf(&b, "Screenshots:   %d\n", s.Stats.Screenshots)
	}
	if s.ReportPath != "" {
		fmt.Fprintf(&b, "Report:        %s\n", s.ReportPath)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// humanSize formats a byte count the way the summary shows sizes.
func humanSize(n int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case n >= mb:
		return fmt.Sprintf("%.2f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.2f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
