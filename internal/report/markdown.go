package report

import (
	"bytes"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/imagecrawler/internal/model"
)

// encodeCatalogueMarkdown renders the catalogue for reading and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, alerts and mermaid charts
// 3. Escaping of table cells
func encodeCatalogueMarkdown(images []model.ImageCandidate) ([]byte, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	pages := make(map[string]struct{})
	for _, c := range images {
		pages[c.CrawledFrom] = struct{}{}
	}

	md.H1("Image Catalogue")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Images", strconv.Itoa(len(images))},
			{"Pages", strconv.Itoa(len(pages))},
		},
	})
	md.PlainText("")

	if len(images) == 0 {
		md.Note("No images were found.")
		md.PlainText("")
		writeFooter(md)
		return build(md, &buf)
	}

	counts := make(map[model.SourceType]int)
	for _, c := range images {
		counts[c.Type]++
	}
	writeTypeSection(md, counts)

	md.H2("Images")
	md.PlainText("")
	rows := make([][]string, 0, len(images))
	for _, c := range images {
		rows = append(rows, []string{
			truncateString(displayURL(c), 80),
			TypeLabel(c.Type),
			dash(c.Alt),
			dimensions(c.Width, c.Height),
			strconv.Itoa(c.Depth),
			truncateString(c.CrawledFrom, 60),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Type", "Alt", "Size", "Depth", "Page"},
		Rows:   rows,
	})
	md.PlainText("")

	writeFooter(md)
	return build(md, &buf)
}

// encodeReportMarkdown renders the download-mode report.
func encodeReportMarkdown(r *model.CrawlReport) ([]byte, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H1("Image Crawl Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Crawled URL", "`" + r.CrawledURL + "`"},
			{"Crawled At", r.CrawledAt.Format("2006-01-02 15:04:05 MST")},
			{"Run ID", dash(r.RunID)},
			{"Mode", r.Mode},
			{"Max Depth", strconv.Itoa(r.Config.MaxDepth)},
			{"Max Concurrent", strconv.Itoa(r.Config.MaxConcurrent)},
			{"Timeout", strconv.FormatInt(r.Config.Timeout, 10) + " ms"},
		},
	})
	md.PlainText("")

	md.H2("Statistics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Total", strconv.Itoa(r.Stats.Total)},
			{"Success", strconv.Itoa(r.Stats.Success)},
			{"Failed", strconv.Itoa(r.Stats.Failed)},
			{"Skipped (already present)", strconv.Itoa(r.Stats.Skipped)},
			{"Total Size", humanSize(r.Stats.TotalSize)},
			{"Screenshots", strconv.Itoa(r.Stats.Screenshots)},
		},
	})
	md.PlainText("")

	if r.Stats.Failed > 0 {
		md.Warningf("%d image(s) could not be downloaded.", r.Stats.Failed)
	} else {
		md.Tip("Every image was downloaded.")
	}
	md.PlainText("")

	if len(r.DownloadedImages) > 0 {
		counts := make(map[model.SourceType]int)
		for _, d := range r.DownloadedImages {
			counts[d.Type]++
		}
		writeTypeSection(md, counts)

		md.H2("Downloaded Images")
		md.PlainText("")
		rows := make([][]string, 0, len(r.DownloadedImages))
		for _, d := range r.DownloadedImages {
			rows = append(rows, []string{
				truncateString(d.Filename, 80),
				TypeLabel(d.Type),
				humanSize(d.Size),
				dash(d.ContentType),
				cameraOf(d.Metadata),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"File", "Type", "Size", "Content Type", "Camera"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(r.FailedDownloads) > 0 {
		md.H2("Failed Downloads")
		md.PlainText("")
		rows := make([][]string, 0, len(r.FailedDownloads))
		for _, f := range r.FailedDownloads {
			rows = append(rows, []string{
				truncateString(f.URL, 80),
				TypeLabel(f.Type),
				truncateString(f.Error, 60),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Type", "Error"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(r.Screenshots) > 0 {
		md.H2("Screenshots")
		md.PlainText("")
		items := make([]string, 0, len(r.Screenshots))
		for _, s := range r.Screenshots {
			items = append(items, "`"+s.Path+"` ("+s.URL+", depth "+strconv.Itoa(s.Depth)+")")
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	writeFooter(md)
	return build(md, &buf)
}

// writeTypeSection writes the per-type table and a mermaid pie chart.
func writeTypeSection(md *markdown.Markdown, counts map[model.SourceType]int) {
	md.H2("Images by Type")
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Image Sources"),
		piechart.WithShowData(true),
	)

	rows := make([][]string, 0, len(counts))
	for _, t := range model.AllSourceTypes() {
		n := counts[t]
		if n == 0 {
			continue
		}
		rows = append(rows, []string{TypeLabel(t), strconv.Itoa(n)})
		chart.LabelAndIntValue(TypeLabel(t), uint64(n))
	}

	md.Table(markdown.TableSet{
		Header: []string{"Type", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// build flushes md into buf.
func build(md *markdown.Markdown, buf *bytes.Buffer) ([]byte, error) {
	if err := md.Build(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [imagecrawler](https://github.com/nao1215/imagecrawler)*")
}

// displayURL shortens data URIs, which can be megabytes long.
func displayURL(c model.ImageCandidate) string {
	if c.IsDataURI {
		subtype, _, _ := model.ParseDataURI(c.URL)
		return "data:image/" + subtype + " (" + humanSize(c.ApproxSize) + ")"
	}
	return c.URL
}

func dimensions(w, h float64) string {
	if w == 0 || h == 0 {
		return "-"
	}
	return formatDimension(w) + "x" + formatDimension(h)
}

func cameraOf(m *model.ImageMetadata) string {
	if m == nil || (m.Make == "" && m.Model == "") {
		return "-"
	}
	if m.Make == "" {
		return m.Model
	}
	if m.Model == "" {
		return m.Make
	}
	return m.Make + " " + m.Model
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
