package report

import (
	"encoding/json"
	"io"

	"github.com/davintoo/wiki-export-demo/internal/model"
)

// JSONWriter outputs runs in JSON format.
type JSONWriter struct {
	baseWriter

	// version is recorded in full run output.
	version string

	// treeOnly writes only the discovered page tree.
	treeOnly bool

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the program version in full run output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// WithTreeOnly makes Write output only the page tree, or null when the
// root was unreachable.
func WithTreeOnly() JSONWriterOption {
	return func(w *JSONWriter) {
		w.treeOnly = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run, or only its tree with WithTreeOnly.
func (w *JSONWriter) Write(run *model.Run) (int, error) {
	if w.treeOnly {
		return w.WriteTree(run.Root)
	}
	return w.writeJSON(NewJSONReport(run, w.version))
}

// WriteTree outputs a page tree.
func (w *JSONWriter) WriteTree(root *model.Page) (int, error) {
	return w.writeJSON(root)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps a run with output metadata.
type JSONReport struct {
	// Version is the wikiexport version that produced the run.
	Version string `json:"version,omitempty"`

	// Summary holds the run counters.
	Summary model.Summary `json:"summary"`

	// Run is the full run.
	Run *model.Run `json:"run"`
}

// NewJSONReport creates a JSONReport for run.
func NewJSONReport(run *model.Run, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Summary: run.Summary(),
		Run:     run,
	}
}
