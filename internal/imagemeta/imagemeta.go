// Package imagemeta summarizes the EXIF metadata of downloaded images.
//
// Only a handful of tags are kept: camera make and model, the software
// that last wrote the file, the capture time and whether GPS coordinates
// are present. The summary is attached to the download result so the
// report shows which images leak a location or a device.
package imagemeta

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/imagecrawler/internal/model"
)

// DefaultMaxSize is the largest file the Inspector reads.
const DefaultMaxSize = 20 * 1024 * 1024

var (
	// ErrUnsupported is returned for file types that do not carry EXIF.
	ErrUnsupported = errors.New("file type does not carry exif")

	// ErrTooLarge is returned for files above the size limit.
	ErrTooLarge = errors.New("file too large for exif inspection")
)

// exifExtensions are the file types EXIF is looked for in.
var exifExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".jpe": {}, ".tif": {}, ".tiff": {}, ".heic": {}, ".heif": {}, ".webp": {},
}

// Inspector reads EXIF metadata from image files.
type Inspector struct {
	maxSize int64
}

// NewInspector returns an Inspector with DefaultMaxSize.
func NewInspector() *Inspector {
	return &Inspector{maxSize: DefaultMaxSize}
}

// Inspect returns the metadata summary of the image at filePath.
func (i *Inspector) Inspect(filePath string) (*model.ImageMetadata, error) {
	if _, ok := exifExtensions[strings.ToLower(filepath.Ext(filePath))]; !ok {
		return nil, ErrUnsupported
	}

	f, err := os.Open(filePath) //nolint:gosec // path comes from the acquirer
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, i.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > i.maxSize {
		return nil, ErrTooLarge
	}

	return Parse(data)
}

// Parse extracts the metadata summary from raw image bytes.
func Parse(data []byte) (*model.ImageMetadata, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return nil, fmt.Errorf("no exif data: %w", err)
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse exif: %w", err)
	}

	return summarize(entries), nil
}

// summarize keeps the tags the report shows. DateTimeOriginal wins over
// the file modification DateTime.
func summarize(entries []exif.ExifTag) *model.ImageMetadata {
	meta := &model.ImageMetadata{}
	for _, entry := range entries {
		value := strings.TrimSpace(strings.Trim(entry.Formatted, "\x00"))
		switch entry.TagName {
		case "Make":
			meta.Make = value
		case "Model":
			meta.Model = value
		case "Software", "ProcessingSoftware":
			if meta.Software == "" {
				meta.Software = value
			}
		case "DateTimeOriginal":
			meta.DateTime = value
		case "DateTime":
			if meta.DateTime == "" {
				meta.DateTime = value
			}
		case "GPSLatitude", "GPSLongitude":
			meta.HasGPS = true
		}
	}
	return meta
}
