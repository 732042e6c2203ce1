// Package log provides secure logging for wikiexport, built on top of the
// standard slog package.
//
// The SecureHandler masks credentials before records reach the output:
//   - attributes whose key names a credential (authorization,
//     x-cbr-authorization, token, api_token, ...)
//   - string values shaped like bearer or basic credentials, or JWTs
//   - any registered secret (the configured API token) wherever it appears
//     inside a string value, such as an error message
//
// # Usage
//
//	logger := log.New(os.Stderr, log.Options{Verbose: true, Secrets: []string{token}})
//	logger.Info("fetching page", "title", "Home", "token", token) // token is masked
//	slog.SetDefault(logger)
package log
