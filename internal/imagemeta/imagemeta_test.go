package imagemeta

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	exif "github.com/dsoprea/go-exif/v3"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	entries := []exif.ExifTag{
		{TagName: "DateTime", Formatted: "2024:01:01 00:00:00"},
		{TagName: "Make", Formatted: "Canon"},
		{TagName: "Model", Formatted: "EOS R5\x00"},
		{TagName: "Software", Formatted: "GIMP 2.10"},
		{TagName: "DateTimeOriginal", Formatted: "2023:06:15 12:30:00"},
		{TagName: "GPSLatitude", Formatted: "[35/1 41/1 0/1]"},
		{TagName: "Orientation", Formatted: "1"},
	}

	meta := summarize(entries)
	if meta.Make != "Canon" || meta.Model != "EOS R5" {
		t.Errorf("camera = %q %q", meta.Make, meta.Model)
	}
	if meta.Software != "GIMP 2.10" {
		t.Errorf("Software = %q", meta.Software)
	}
	if meta.DateTime != "2023:06:15 12:30:00" {
		t.Errorf("DateTime = %q, want the original capture time", meta.DateTime)
	}
	if !meta.HasGPS {
		t.Error("expected HasGPS")
	}
	if meta.Empty() {
		t.Error("summary must not be empty")
	}

	if !summarize(nil).Empty() {
		t.Error("no entries must give an empty summary")
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	t.Run("png is not inspected", func(t *testing.T) {
		t.Parallel()
		if _, err := NewInspector().Inspect(write("a.png", []byte("\x89PNG"))); !errors.Is(err, ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
	})

	t.Run("jpeg without exif is an error", func(t *testing.T) {
		t.Parallel()
		if _, err := NewInspector().Inspect(write("b.jpg", []byte{0xFF, 0xD8, 0xFF, 0xD9})); err == nil {
			t.Error("expected an error for a jpeg without exif")
		}
	})

	t.Run("oversized file is refused", func(t *testing.T) {
		t.Parallel()
		i := &Inspector{maxSize: 8}
		if _, err := i.Inspect(write("c.jpeg", make([]byte, 16))); !errors.Is(err, ErrTooLarge) {
			t.Errorf("expected ErrTooLarge, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if _, err := NewInspector().Inspect(filepath.Join(dir, "missing.jpg")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected not exist, got %v", err)
		}
	})
}
