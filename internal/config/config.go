package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "wikiexport"

	// DefaultRootTitle is the page traversal starts from.
	DefaultRootTitle = "Home"

	// DefaultOutputDirName is the directory created beside the executable
	// when no output directory is configured.
	DefaultOutputDirName = "out"

	// DefaultRequestTimeout of zero means requests never time out. A slow
	// page stalls the run rather than silently dropping part of the tree.
	DefaultRequestTimeout = time.Duration(0)

	// DefaultRequestDelay of zero fetches pages back to back.
	DefaultRequestDelay = time.Duration(0)

	// DefaultDownloadConcurrency of 1 downloads files strictly one at a time.
	DefaultDownloadConcurrency = 1

	// DefaultMaxBodySize of zero reads response bodies without a limit.
	DefaultMaxBodySize = int64(0)

	// DefaultUserAgent identifies export traffic in the wiki's access logs.
	DefaultUserAgent = "wikiexport/1.0"

	// DefaultLogFormat is the log output format.
	DefaultLogFormat = "text"
)

// Config holds all configuration options for wikiexport.
// It is populated from the settings file, the environment and CLI flags,
// then passed through the application rather than kept in global state.
type Config struct {
	// Host is the wiki base URL, e.g. "https://wiki.example.com".
	// Required. A trailing slash is removed by Normalize.
	Host string

	// Token is the API bearer token sent in X-Cbr-Authorization.
	// Required.
	Token string

	// OutputDir is the directory the page tree is written under.
	// Defaults to "out" beside the executable.
	OutputDir string

	// RootTitle is the page traversal starts from.
	RootTitle string

	// RequestTimeout bounds each HTTP request. Zero disables the timeout.
	RequestTimeout time.Duration

	// RequestDelay is waited between page fetches to spare the wiki.
	RequestDelay time.Duration

	// DownloadConcurrency is the number of files of one page downloaded
	// at the same time. 1 keeps downloads sequential.
	DownloadConcurrency int

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize limits response bodies in bytes. Zero means no limit.
	MaxBodySize int64

	// Headers are extra HTTP headers added to every request.
	Headers map[string]string

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat is "text" or "json".
	LogFormat string

	// WriteMarkdown writes each page's content as index.md in its directory.
	WriteMarkdown bool

	// ReportFile is the path of the Markdown run report. Empty disables it.
	ReportFile string

	// TreeJSONFile is the path the discovered tree is dumped to as JSON.
	// Empty disables it.
	TreeJSONFile string

	// MetricsFile is the path Prometheus text-format metrics are written to.
	// Empty disables it.
	MetricsFile string

	// SaveManifest records the run in the SQLite manifest database.
	SaveManifest bool

	// ManifestDir is the directory holding the manifest database.
	// Defaults to the XDG data directory.
	ManifestDir string

	// ConfigFilePath is the YAML settings file. Empty means search the
	// current directory, the home directory and the XDG config directory.
	ConfigFilePath string

	// EnvFile is the .env file loaded before reading the environment.
	EnvFile string
}

// NewConfig creates a new Config with default values.
// Host and Token have no defaults and must be provided.
func NewConfig() *Config {
	return &Config{
		OutputDir:           DefaultOutputDir(),
		RootTitle:           DefaultRootTitle,
		RequestTimeout:      DefaultRequestTimeout,
		RequestDelay:        DefaultRequestDelay,
		DownloadConcurrency: DefaultDownloadConcurrency,
		UserAgent:           DefaultUserAgent,
		MaxBodySize:         DefaultMaxBodySize,
		Headers:             make(map[string]string),
		LogFormat:           DefaultLogFormat,
		SaveManifest:        true,
		ManifestDir:         XDGDataDir(),
	}
}

// DefaultOutputDir returns the "out" directory beside the running executable.
// It falls back to "out" in the working directory when the executable path
// cannot be resolved.
func DefaultOutputDir() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultOutputDirName
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), DefaultOutputDirName)
}

// XDGDataDir returns the XDG data directory for wikiexport.
// On Linux: ~/.local/share/wikiexport
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for wikiexport.
// On Linux: ~/.config/wikiexport
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Normalize trims surrounding whitespace and a trailing slash from Host so
// that "{host}/wiki/" and "{host}/api/..." are built without double slashes.
func (c *Config) Normalize() {
	c.Host = strings.TrimRight(strings.TrimSpace(c.Host), "/")
	c.Token = strings.TrimSpace(c.Token)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
//
// Design decision: We validate once, before any network or filesystem work,
// so a missing host or token fails fast with a clear message.
func (c *Config) Validate() error {
	if c.Host == "" {
		return ErrMissingHost
	}
	if c.Token == "" {
		return ErrMissingToken
	}

	u, err := url.Parse(c.Host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidHost
	}

	if c.RootTitle == "" {
		return ErrEmptyRootTitle
	}
	if c.OutputDir == "" {
		return ErrEmptyOutputDir
	}
	if c.RequestTimeout < 0 {
		return ErrInvalidRequestTimeout
	}
	if c.RequestDelay < 0 {
		return ErrInvalidRequestDelay
	}
	if c.DownloadConcurrency <= 0 {
		return ErrInvalidDownloadConcurrency
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}
