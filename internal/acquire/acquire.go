package acquire

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/nao1215/imagecrawler/internal/filter"
	"github.com/nao1215/imagecrawler/internal/model"
)

// FetchTimeout bounds one remote image transfer, independent of the page
// timeout.
const FetchTimeout = 30 * time.Second

// defaultMirrorExt is appended to mirrored paths that have no extension.
const defaultMirrorExt = "png"

// Inspector extracts metadata from a written image file.
type Inspector interface {
	Inspect(filePath string) (*model.ImageMetadata, error)
}

// Acquirer materializes image candidates under an output directory.
//
// Design decision: bytes are staged in a temporary file and published with
// os.Link because:
//  1. Pages run concurrently and may reference the same image
//  2. Link fails when the destination exists, so publishing is the
//     exclusive step and no other writer can slip in between check and write
//  3. A destination only ever holds a complete file, so "already acquired"
//     never points at a partial or failed transfer
type Acquirer struct {
	outputDir    string
	getter       Getter
	userAgent    string
	inspector    Inspector
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithGetter sets the byte transfer for remote images.
func WithGetter(g Getter) Option {
	return func(a *Acquirer) {
		a.getter = g
	}
}

// WithUserAgent sets the User-Agent sent with image requests.
func WithUserAgent(ua string) Option {
	return func(a *Acquirer) {
		a.userAgent = ua
	}
}

// WithInspector enables metadata extraction for written files.
func WithInspector(i Inspector) Option {
	return func(a *Acquirer) {
		a.inspector = i
	}
}

// WithFetchTimeout overrides FetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Acquirer) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Acquirer) {
		a.logger = logger
	}
}

// NewAcquirer creates an Acquirer rooted at outputDir. The directory must
// exist.
func NewAcquirer(outputDir string, opts ...Option) *Acquirer {
	a := &Acquirer{
		outputDir:    outputDir,
		getter:       NewFetcher(),
		fetchTimeout: FetchTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire stores one candidate. Failures are reported in the result and
// never returned as errors.
func (a *Acquirer) Acquire(ctx context.Context, c model.ImageCandidate, pageURL string) model.DownloadResult {
	var res model.DownloadResult
	switch {
	case c.IsDataURI:
		res = a.storeInline(c)
	case model.IsAbsoluteHTTPURL(c.URL):
		res = a.storeRemote(ctx, c, pageURL)
	default:
		res = failed(c, ErrUnsupportedURL)
	}

	if res.Success && !res.Skipped && a.inspector != nil {
		meta, err := a.inspector.Inspect(res.Path)
		if err != nil {
			a.logger.Debug("no image metadata", "path", res.Path, "error", err)
		} else if !meta.Empty() {
			res.Metadata = meta
		}
	}

	if res.Success {
		a.logger.Debug("image acquired", "file", res.Filename, "skipped", res.Skipped, "size", res.Size)
	} else {
		a.logger.Warn("image acquisition failed", "url", c.URL, "error", res.Error)
	}
	return res
}

// storeInline writes a data URI to base64_<digest>.<subtype>.
func (a *Acquirer) storeInline(c model.ImageCandidate) model.DownloadResult {
	subtype, payload, ok := model.ParseDataURI(c.URL)
	if !ok {
		return failed(c, ErrMalformedDataURI)
	}

	filename := "base64_" + InlineDigest(payload) + "." + safeExt(subtype)
	dest := filepath.Join(a.outputDir, filename)

	if exists(dest) {
		return skipped(c, filename, dest)
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return failed(c, fmt.Errorf("%w: %w", ErrDecode, err))
	}
	_, err = publish(dest, func(w io.Writer) (int64, error) {
		n, err := w.Write(data)
		return int64(n), err
	})
	if errors.Is(err, fs.ErrExist) {
		return skipped(c, filename, dest)
	}
	if err != nil {
		return failed(c, err)
	}

	return model.DownloadResult{
		Success:   true,
		Filename:  filename,
		Path:      dest,
		Size:      int64(len(data)),
		Type:      c.Type,
		Candidate: c,
	}
}

// storeRemote streams a remote image to its mirror path.
func (a *Acquirer) storeRemote(ctx context.Context, c model.ImageCandidate, pageURL string) model.DownloadResult {
	rel, err := MirrorPath(c.URL)
	if err != nil {
		return failed(c, err)
	}
	dest := filepath.Join(a.outputDir, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return failed(c, fmt.Errorf("failed to create directory: %w", err))
	}

	if exists(dest) {
		return skipped(c, rel, dest)
	}

	ctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	headers := http.Header{}
	if a.userAgent != "" {
		headers.Set("User-Agent", a.userAgent)
	}
	if pageURL != "" {
		headers.Set("Referer", pageURL)
	}

	resp, err := a.getter.Fetch(ctx, c.URL, headers)
	if err != nil {
		return failed(c, err)
	}
	defer resp.Body.Close()

	n, err := publish(dest, func(w io.Writer) (int64, error) {
		return io.Copy(w, resp.Body)
	})
	if errors.Is(err, fs.ErrExist) {
		return skipped(c, rel, dest)
	}
	if err != nil {
		return failed(c, fmt.Errorf("failed to write image: %w", err))
	}

	return model.DownloadResult{
		Success:     true,
		Filename:    rel,
		Path:        dest,
		Size:        n,
		Type:        c.Type,
		ContentType: resp.ContentType,
		Candidate:   c,
	}
}

// InlineDigest is the content address of a data URI: the hex BLAKE2b-128
// of its base64 text. Identical payload text always maps to the same name.
func InlineDigest(payload string) string {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// Only an invalid size or key fails, and both are constants here.
		panic(err)
	}
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// MirrorPath returns the slash-separated path, relative to the output
// directory, that mirrors the path of rawURL. The result never leaves the
// output directory. Paths without an extension get one appended: the
// trailing slash of a directory URL is dropped first, and the site root
// becomes index.png.
func MirrorPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid image url: %w", err)
	}

	p := path.Clean("/" + u.Path)
	if p == "/" {
		p = "/index"
	}
	if path.Ext(p) == "" {
		ext := filter.URLExtension(rawURL)
		if ext == "" {
			ext = defaultMirrorExt
		}
		p += "." + ext
	}

	return strings.TrimPrefix(p, "/"), nil
}

// publish writes through write into a temporary file next to dest and links
// it into place. It returns an error wrapping fs.ErrExist when dest was
// published by someone else first. The temporary file is always removed.
func publish(dest string, write func(io.Writer) (int64, error)) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := write(tmp)
	if err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Link(tmp.Name(), dest); err != nil {
		return 0, err
	}
	return n, nil
}

func exists(dest string) bool {
	_, err := os.Lstat(dest)
	return err == nil
}

// decodeBase64 accepts the standard and URL alphabets, padded or not.
func decodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	var firstErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		data, err := enc.DecodeString(payload)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// safeExt keeps a MIME subtype usable as a file extension.
func safeExt(subtype string) string {
	ext := strings.ToLower(strings.TrimSpace(subtype))
	ext = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(ext)
	if ext == "" {
		return defaultMirrorExt
	}
	return ext
}

func skipped(c model.ImageCandidate, filename, dest string) model.DownloadResult {
	return model.DownloadResult{
		Success:   true,
		Skipped:   true,
		Filename:  filename,
		Path:      dest,
		Type:      c.Type,
		Candidate: c,
	}
}

func failed(c model.ImageCandidate, err error) model.DownloadResult {
	return model.DownloadResult{
		Type:      c.Type,
		Error:     err.Error(),
		Candidate: c,
	}
}
