// Package report renders export runs.
//
// This package contains writers for different output formats:
//   - SimpleWriter: plain text summary for the terminal
//   - MarkdownWriter: Markdown run report with tables and a chart
//   - JSONWriter: the run or the discovered page tree as JSON
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
