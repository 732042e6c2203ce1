// Package database provides the SQLite run manifest of wikiexport.
//
// The manifest records, per export run:
//   - the run itself: root title, host, output directory, timing and counters
//   - every page of the discovered tree with its parent, plus failed pages
//   - every attempted file download with size, BLAKE2b digest and outcome
//
// SQLite is accessed through modernc.org/sqlite, which needs no cgo. The
// database is a single file in the XDG data directory by default.
package database
