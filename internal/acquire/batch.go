package acquire

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/imagecrawler/internal/model"
)

// AcquireAll acquires the candidates of one page with at most workers
// transfers in flight. Results are returned in candidate order whatever
// the completion order.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// workers <= 1 keeps the plain sequential loop, so pages that do not opt
// in see document-order transfers one at a time.
//
// Candidates not started when ctx is cancelled are reported as failed with
// the context error.
func (a *Acquirer) AcquireAll(ctx context.Context, cands []model.ImageCandidate, pageURL string, workers int) []model.DownloadResult {
	results := make([]model.DownloadResult, len(cands))

	if workers <= 1 {
		for i, c := range cands {
			if err := ctx.Err(); err != nil {
				results[i] = failed(c, err)
				continue
			}
			results[i] = a.Acquire(ctx, c, pageURL)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for i, c := range cands {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = failed(c, err)
				return nil
			}
			// Each goroutine owns its own index, so no lock is needed.
			results[i] = a.Acquire(ctx, c, pageURL)
			return nil
		})
	}

	_ = g.Wait()
	return results
}
