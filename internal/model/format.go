package model

import (
	"errors"
	"fmt"
	"strings"
)

// Format selects how a report or catalogue is serialized.
type Format int

// Supported output formats.
const (
	// FormatJSON is the structured, round-trippable form.
	FormatJSON Format = iota
	// FormatCSV is the fixed-column tabular form.
	FormatCSV
	// FormatText is the plain one-line-per-image form.
	FormatText
	// FormatMarkdown is a human-oriented summary with tables and a chart.
	FormatMarkdown
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown output format")

var formatNames = map[Format]string{
	FormatJSON:     "json",
	FormatCSV:      "csv",
	FormatText:     "txt",
	FormatMarkdown: "markdown",
}

// String returns the flag name of the format.
func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat converts a flag value such as "csv" into a Format.
// "text" and "md" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "txt", "text":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return FormatJSON, fmt.Errorf("%w: %q (supported: json, csv, txt, markdown)", ErrUnknownFormat, s)
	}
}
