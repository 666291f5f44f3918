// Package main provides the entry point for the imagecrawler CLI.
//
// imagecrawler harvests every image a website references. It walks the
// same-origin links of a seed page breadth first, renders each page in
// headless Chrome (or fetches raw HTML with the static engine), and either
// downloads the images or writes a catalogue of them.
//
// Usage:
//
//	imagecrawler <url> [output-dir]
//	imagecrawler advanced <url> [flags]
//
// See --help for all available options.
package main

// main is the entry point for imagecrawler.
func main() {
	Execute()
}
