// Package tor provides the crawler's proxy transport.
//
// Client wraps a SOCKS5 dialer (golang.org/x/net/proxy) and hands out HTTP
// clients and a proxy URL for the page engine, so that every byte of a
// crawl leaves through the same proxy. EmbeddedTor starts a private Tor
// daemon with tornago when --tor is given and exposes its SOCKS port.
//
// # Usage
//
//	client, err := tor.NewClient("127.0.0.1:9050", 30*time.Second)
//	if err != nil {
//		return err
//	}
//	if err := client.CheckConnection(ctx).Error(); err != nil {
//		return err
//	}
//	httpClient := client.NewHTTPClient()
package tor
