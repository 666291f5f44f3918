package model

import (
	"errors"
	"testing"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"", FormatJSON, false},
		{"CSV", FormatCSV, false},
		{"txt", FormatText, false},
		{"text", FormatText, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"xml", FormatJSON, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFormat) {
					t.Fatalf("expected ErrUnknownFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatString(t *testing.T) {
	t.Parallel()

	for f, name := range formatNames {
		if f.String() != name {
			t.Errorf("Format(%d).String() = %q, want %q", int(f), f.String(), name)
		}
		parsed, err := ParseFormat(name)
		if err != nil || parsed != f {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", name, parsed, err, f)
		}
	}
}
