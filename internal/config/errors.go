package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrMissingHost is returned when the wiki host base URL is not set.
	ErrMissingHost = errors.New("wiki host is not set: set env variable CBT_HOST")

	// ErrMissingToken is returned when the API bearer token is not set.
	ErrMissingToken = errors.New("API token is not set: set env variable API_TOKEN")

	// ErrInvalidHost is returned when the host is not an absolute http(s) URL.
	ErrInvalidHost = errors.New("invalid wiki host: must be an absolute http or https URL")

	// ErrEmptyRootTitle is returned when the root page title is empty.
	ErrEmptyRootTitle = errors.New("root page title must not be empty")

	// ErrEmptyOutputDir is returned when no output directory could be determined.
	ErrEmptyOutputDir = errors.New("output directory must not be empty")

	// ErrInvalidRequestTimeout is returned when the request timeout is negative.
	// Use 0 to disable the timeout.
	ErrInvalidRequestTimeout = errors.New("invalid request timeout: must be non-negative")

	// ErrInvalidRequestDelay is returned when the delay between page
	// fetches is negative.
	ErrInvalidRequestDelay = errors.New("invalid request delay: must be non-negative")

	// ErrInvalidDownloadConcurrency is returned when fewer than one download
	// worker is configured.
	ErrInvalidDownloadConcurrency = errors.New("invalid download concurrency: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 for no limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
