// Package wiki is the HTTP client for the remote wiki API.
//
// The client fetches page data from
//
//	GET {host}/api/v2/wiki/get-item/{title}
//
// and downloads page attachments from {host}{fileURL}. Every request
// carries the X-Cbr-Authorization bearer header.
//
// A single Client shares one keep-alive transport across all requests of
// a run. Each fetch and download is traced with OpenTelemetry and, when a
// metrics.Metrics is attached, counted in Prometheus collectors.
package wiki
