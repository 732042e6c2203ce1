// Package main provides the entry point for the wikiexport CLI.
//
// wikiexport mirrors a wiki into a local directory tree: one directory per
// page, holding the page's attachments and one subdirectory per linked page.
//
// Usage:
//
//	CBT_HOST=https://wiki.example.com API_TOKEN=... wikiexport
//	wikiexport history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
