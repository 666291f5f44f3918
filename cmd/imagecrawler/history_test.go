package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/imagecrawler/internal/database"
)

// seedHistory creates a history database with two runs of different sites.
func seedHistory(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	runs := []*database.Run{
		{
			RunID: "run-a", Seed: "https://a.example/", Mode: "static-html", Download: true,
			StartedAt: base, FinishedAt: base.Add(2 * time.Second),
			PagesVisited: 3, Downloaded: 5, Skipped: 1, Failed: 2,
			ReportPath: "images/crawler-report.json", Report: `{"crawledUrl":"https://a.example/"}`,
		},
		{
			RunID: "run-b", Seed: "https://b.example/", Mode: "chromedp-browser",
			StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Second),
			PagesVisited: 1, Images: 9, ReportPath: "images.csv",
		},
	}
	for _, r := range runs {
		if _, err := db.SaveRun(context.Background(), r); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}
	return dir
}

func runHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)

	t.Run("lists runs newest first", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Crawl history (2 runs)") {
			t.Errorf("unexpected header: %q", out)
		}
		a, b := strings.Index(out, "run-a"), strings.Index(out, "run-b")
		if a < 0 || b < 0 || b > a {
			t.Errorf("expected run-b before run-a: %q", out)
		}
		if !strings.Contains(out, "download") || !strings.Contains(out, "catalogue") {
			t.Errorf("expected run kinds in output: %q", out)
		}
	})

	t.Run("filters by seed", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", dir, "https://a.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "run-a") || strings.Contains(out, "run-b") {
			t.Errorf("expected only run-a: %q", out)
		}
	})

	t.Run("unknown seed", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", dir, "https://c.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No crawl history found for https://c.example/") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("markdown table", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", dir, "--markdown")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "# Crawl History") || !strings.Contains(out, "run-b") {
			t.Errorf("unexpected markdown: %q", out)
		}
	})

	t.Run("shows a stored report", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", dir, "--show", "run-a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(out) != `{"crawledUrl":"https://a.example/"}` {
			t.Errorf("unexpected report: %q", out)
		}
	})

	t.Run("run without stored report", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", dir, "--show", "run-b")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "images.csv") {
			t.Errorf("expected the report path: %q", out)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()

		_, err := runHistory(t, "--db-dir", dir, "--show", "nope")
		if err == nil || !strings.Contains(err.Error(), "run not found") {
			t.Errorf("expected run not found, got %v", err)
		}
	})
}

func TestHistoryCmd_NoDatabase(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "empty")
	out, err := runHistory(t, "--db-dir", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No crawl history yet.") {
		t.Errorf("unexpected output: %q", out)
	}
}
