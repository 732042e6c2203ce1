// Package crawler discovers the page tree of a wiki.
//
// # Components
//
//   - Parser: extracts wiki link identifiers from page HTML
//   - Builder: recursive, cycle-safe traversal producing a model.Page tree
//
// # Traversal
//
// Builder.Build walks depth-first. Children are resolved in the order their
// anchors appear, and a shared model.VisitedSet guarantees at most one fetch
// per title. A page whose fetch fails is logged and left out of the tree;
// its title stays visited for the rest of the run.
//
// # Usage
//
//	client, _ := wiki.NewClient(host, token)
//	builder := crawler.NewBuilder(client, host)
//	root := builder.Build(ctx, "Home", model.NewVisitedSet())
package crawler
