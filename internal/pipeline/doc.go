// Package pipeline runs an export as a fixed sequence of steps.
//
// The default pipeline is:
//
//	build       discover the page tree (crawler.Builder)
//	materialize write directories and files (mirror.Materializer)
//	tree_json   optional JSON dump of the tree
//	report      optional Markdown run report
//	manifest    optional SQLite run manifest
//	metrics     optional Prometheus textfile
//
// Steps share one *model.Run. The build and materialize steps are strictly
// sequential: materialization starts only after the tree is complete.
// Output steps after them never fail the run; their errors are logged.
package pipeline
