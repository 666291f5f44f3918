// Package harvest runs one complete crawl.
//
// A Harvester owns everything that lives exactly as long as a crawl: the
// proxy (an embedded Tor daemon or an external SOCKS5 proxy), the page
// engine, the metrics server, the session that aggregates results and the
// spider that walks the site. Run wires these together, crawls, writes the
// report and records the run in the history database.
//
// # Error handling
//
// Errors are split by where they happen:
//   - Setup (invalid config, output directory, proxy, engine start) and the
//     report write are fatal and returned from Run
//   - Page errors are logged by the spider and the crawl goes on
//   - Download errors end up in the report's failed downloads
//   - History database errors are logged only
//
// # Usage
//
//	cfg := config.NewConfig()
//	cfg.SeedURL = "https://example.com/"
//	res, err := harvest.New(cfg, harvest.WithLogger(logger)).Run(ctx)
package harvest
