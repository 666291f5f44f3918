// Package crawler decides which pages an image crawl visits and drives the
// visits.
//
// # Components
//
//   - Policy: pure link admission (depth bound, per-page link cap, origin scope)
//   - Spider: level-by-level traversal with a page cap and bounded concurrency
//   - VisitedSet: bloom-filter backed revisit suppression
//   - Parser: title and a[href] extraction from an HTML document
//
// What happens on a page is not this package's concern. The Spider hands
// each task to a Handler, and the Handler returns the children it admitted
// (normally through Policy.Admit).
//
// # Usage
//
//	policy := crawler.NewPolicy(cfg.MaxDepth)
//	spider := crawler.NewSpider(crawler.WithMaxDepth(cfg.MaxDepth))
//	err := spider.Crawl(ctx, seed, crawler.HandlerFunc(func(ctx context.Context, t model.CrawlTask) ([]model.CrawlTask, error) {
//		links := visit(ctx, t)
//		return policy.Admit(t, links, seedOrigin), nil
//	}))
package crawler
