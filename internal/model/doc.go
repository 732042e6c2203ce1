// Package model defines the core data structures used throughout wikiexport.
//
// This package contains the following main types:
//   - Page: A discovered wiki page with its attachments, links and resolved children
//   - VisitedSet: The shared record of page titles whose fetch has started
//   - PageData: The typed body of a page fetch response
//   - Run: The accumulated state of one export, passed between pipeline steps
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, mirror, report and database packages all need
// these types, so centralizing them prevents import cycles.
package model
