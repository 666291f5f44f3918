package acquire

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
)

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("streams body and forwards headers", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Referer") != "https://example.com/" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "image/gif")
			_, _ = w.Write([]byte("GIF89a"))
		}))
		t.Cleanup(srv.Close)

		resp, err := NewFetcher().Fetch(context.Background(), srv.URL+"/x.gif", http.Header{"Referer": {"https://example.com/"}})
		if err != nil {
			t.Fatalf("Fetch() error: %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if string(body) != "GIF89a" || resp.ContentType != "image/gif" || resp.StatusCode != http.StatusOK {
			t.Errorf("unexpected response %+v body=%q", resp, body)
		}
	})

	t.Run("non 2xx is an error", func(t *testing.T) {
		t.Parallel()

		transport := httpmock.NewMockTransport()
		transport.RegisterResponder(http.MethodGet, "https://example.com/gone.png",
			httpmock.NewStringResponder(http.StatusGone, ""))

		f := NewFetcher(WithHTTPClient(&http.Client{Transport: transport}))
		_, err := f.Fetch(context.Background(), "https://example.com/gone.png", nil)
		if !errors.Is(err, ErrHTTPStatus) {
			t.Errorf("expected ErrHTTPStatus, got %v", err)
		}
	})

	t.Run("context deadline aborts the transfer", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		t.Cleanup(srv.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		if _, err := NewFetcher().Fetch(ctx, srv.URL, nil); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}

func TestHostLimiter(t *testing.T) {
	t.Parallel()

	t.Run("nil and disabled limiters never wait", func(t *testing.T) {
		t.Parallel()

		var nilLimiter *HostLimiter
		if err := nilLimiter.Wait(context.Background(), "example.com"); err != nil {
			t.Errorf("nil limiter returned %v", err)
		}
		if err := NewHostLimiter(0, 1).Wait(context.Background(), "example.com"); err != nil {
			t.Errorf("disabled limiter returned %v", err)
		}
	})

	t.Run("hosts have independent buckets", func(t *testing.T) {
		t.Parallel()

		l := NewHostLimiter(1, 1)
		ctx := context.Background()
		if err := l.Wait(ctx, "a.example"); err != nil {
			t.Fatal(err)
		}
		start := time.Now()
		if err := l.Wait(ctx, "B.example"); err != nil {
			t.Fatal(err)
		}
		if time.Since(start) > 500*time.Millisecond {
			t.Error("a different host must not wait for a.example's bucket")
		}

		short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		if err := l.Wait(short, "A.EXAMPLE"); err == nil {
			t.Error("second request to the same host within a second should wait past the deadline")
		}
	})

	t.Run("fetcher consults the limiter", func(t *testing.T) {
		t.Parallel()

		transport := httpmock.NewMockTransport()
		transport.RegisterResponder(http.MethodGet, "https://example.com/a.png", httpmock.NewStringResponder(http.StatusOK, "a"))
		f := NewFetcher(WithHTTPClient(&http.Client{Transport: transport}), WithHostLimiter(NewHostLimiter(0.5, 1)))

		resp, err := f.Fetch(context.Background(), "https://example.com/a.png", nil)
		if err != nil {
			t.Fatalf("first fetch failed: %v", err)
		}
		resp.Body.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := f.Fetch(ctx, "https://example.com/a.png", nil); err == nil {
			t.Error("expected the limiter to hold back the second fetch")
		}
		if transport.GetTotalCallCount() != 1 {
			t.Errorf("call count = %d, want 1", transport.GetTotalCallCount())
		}
	})
}
