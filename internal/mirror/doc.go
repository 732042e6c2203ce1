// Package mirror replays a discovered page tree onto the local filesystem.
//
// Every page becomes a directory named after its sanitized title. The
// page's attachments are downloaded into that directory and its children
// become subdirectories, in the order they were discovered.
//
// Failures are isolated: a failed download is logged and recorded while
// its siblings continue, and a directory that cannot be created skips
// only that page's subtree. Only a failure to create the output root is
// returned to the caller.
package mirror
