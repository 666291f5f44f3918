// Package browser loads pages for the crawler.
//
// An Engine opens a Page per visit. The Page answers everything the page
// pipeline asks of a visited document: waiting for the network and for
// images, triggering lazy content, extracting image candidates, listing
// links and taking a screenshot.
//
// # Engines
//
//   - Chrome: headless Chrome driven over the DevTools protocol with
//     chromedp. One browser process serves the whole crawl and every page
//     gets its own tab.
//   - Static: plain HTTP through colly with goquery extraction. It runs no
//     scripts, so lazy loading and waiting are no-ops and screenshots are
//     unsupported.
//
// Design decision: Link discovery goes through crawler.ParseLinks for both
// engines. Chrome hands over the serialized live DOM, Static the response
// body, so the two engines can only differ in what the DOM contains.
package browser
