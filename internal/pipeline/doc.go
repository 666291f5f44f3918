// Package pipeline runs the per-page work of an image crawl as a sequence of
// steps.
//
// Every visited page goes through the same stages: waiting for the page to
// settle, triggering lazy content, an optional screenshot, extraction,
// filtering, then either downloading or cataloguing the images, and finally
// link admission. Each stage is a Step that reads and fills in the Visit.
//
// Design decision: We use a pipeline pattern instead of one long handler
// function because:
// 1. Optional stages (waits, lazy loading, screenshots) are simply left out
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context between stages
// 4. Every stage can be tested against a fake page in isolation
//
// PageHandler binds a browser engine and a pipeline into a crawler.Handler.
package pipeline
