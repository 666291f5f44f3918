package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/imagecrawler/internal/model"
)

// CatalogueEncoder serializes catalogue entries.
type CatalogueEncoder func(images []model.ImageCandidate) ([]byte, error)

// ReportEncoder serializes a download-mode report.
type ReportEncoder func(r *model.CrawlReport) ([]byte, error)

// catalogueEncoders is the catalogue strategy table.
var catalogueEncoders = map[model.Format]CatalogueEncoder{
	model.FormatJSON:     encodeCatalogueJSON,
	model.FormatCSV:      encodeCatalogueCSV,
	model.FormatText:     encodeCatalogueText,
	model.FormatMarkdown: encodeCatalogueMarkdown,
}

// reportEncoders is the download-mode strategy table. Formats without an
// entry fall back to JSON.
var reportEncoders = map[model.Format]ReportEncoder{
	model.FormatJSON:     encodeReportJSON,
	model.FormatMarkdown: encodeReportMarkdown,
}

// EncodeCatalogue serializes images in the given format.
func EncodeCatalogue(format model.Format, images []model.ImageCandidate) ([]byte, error) {
	enc, ok := catalogueEncoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %v", model.ErrUnknownFormat, format)
	}
	return enc(images)
}

// EncodeReport serializes a download-mode report. The tabular formats
// cannot express the nested report, so CSV and text yield JSON.
func EncodeReport(format model.Format, r *model.CrawlReport) ([]byte, error) {
	enc, ok := reportEncoders[format]
	if !ok {
		enc = encodeReportJSON
	}
	return enc(r)
}

// csvHeader is the fixed first line of the CSV catalogue.
const csvHeader = "URL,Type,Element,Alt,Width,Height,Visible,CrawledFrom,CrawledAt,Depth"

// timestampLayout renders times as UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func encodeCatalogueJSON(images []model.ImageCandidate) ([]byte, error) {
	if images == nil {
		images = []model.ImageCandidate{}
	}
	return json.MarshalIndent(images, "", "  ")
}

// encodeCatalogueCSV quotes every field. Empty alt texts and unknown
// dimensions are written as empty strings.
//
// encoding/csv only quotes fields that need it, so rows are assembled by
// hand; embedded quotes are doubled.
func encodeCatalogueCSV(images []model.ImageCandidate) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(csvHeader)
	for _, c := range images {
		buf.WriteByte('\n')
		fields := []string{
			c.URL,
			string(c.Type),
			c.Element,
			c.Alt,
			formatDimension(c.Width),
			formatDimension(c.Height),
			strconv.FormatBool(c.Visible),
			c.CrawledFrom,
			formatTimestamp(c.CrawledAt),
			strconv.Itoa(c.Depth),
		}
		for i, f := range fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('"')
			buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
			buf.WriteByte('"')
		}
	}
	return buf.Bytes(), nil
}

// encodeCatalogueText writes "url[ (ALT: alt)] [type] [D:depth]" lines.
func encodeCatalogueText(images []model.ImageCandidate) ([]byte, error) {
	lines := make([]string, 0, len(images))
	for _, c := range images {
		var b strings.Builder
		b.WriteString(c.URL)
		if c.Alt != "" {
			b.WriteString(" (ALT: ")
			b.WriteString(c.Alt)
			b.WriteString(")")
		}
		b.WriteString(" [")
		b.WriteString(string(c.Type))
		b.WriteString("] [D:")
		b.WriteString(strconv.Itoa(c.Depth))
		b.WriteString("]")
		lines = append(lines, b.String())
	}
	return []byte(strings.Join(lines, "\n")), nil
}

func encodeReportJSON(r *model.CrawlReport) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func formatDimension(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// TypeLabel returns the display name of a source type, e.g. "Img Srcset".
func TypeLabel(t model.SourceType) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(t), "-", " "))
}
