package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds environment-based configuration.
// Zero values mean "not set" and leave the lower-precedence value alone.
type EnvConfig struct {
	// Host is the wiki base URL.
	// Env: CBT_HOST
	Host string `envconfig:"CBT_HOST"`

	// Token is the API bearer token.
	// Env: API_TOKEN
	Token string `envconfig:"API_TOKEN"`

	// OutputDir is the export directory.
	// Env: OUTPUT_DIR
	OutputDir string `envconfig:"OUTPUT_DIR"`

	// RootTitle is the page traversal starts from.
	// Env: ROOT_TITLE
	RootTitle string `envconfig:"ROOT_TITLE"`

	// RequestTimeout bounds each request, e.g. "30s".
	// Env: REQUEST_TIMEOUT
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT"`

	// RequestDelay is waited between page fetches, e.g. "200ms".
	// Env: REQUEST_DELAY
	RequestDelay time.Duration `envconfig:"REQUEST_DELAY"`

	// DownloadConcurrency is the number of parallel file downloads per page.
	// Env: DOWNLOAD_CONCURRENCY
	DownloadConcurrency int `envconfig:"DOWNLOAD_CONCURRENCY"`

	// UserAgent overrides the User-Agent header.
	// Env: USER_AGENT
	UserAgent string `envconfig:"USER_AGENT"`

	// MaxBodySize limits response bodies in bytes.
	// Env: MAX_BODY_SIZE
	MaxBodySize int64 `envconfig:"MAX_BODY_SIZE"`

	// Verbose enables debug logging.
	// Env: VERBOSE
	Verbose bool `envconfig:"VERBOSE"`

	// LogFormat is text or json.
	// Env: LOG_FORMAT
	LogFormat string `envconfig:"LOG_FORMAT"`

	// ManifestDir is the manifest database directory.
	// Env: MANIFEST_DIR
	ManifestDir string `envconfig:"MANIFEST_DIR"`
}

// LoadFromEnv reads EnvConfig from the process environment.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ApplyTo copies every set value onto cfg.
func (e EnvConfig) ApplyTo(cfg *Config) {
	if e.Host != "" {
		cfg.Host = e.Host
	}
	if e.Token != "" {
		cfg.Token = e.Token
	}
	if e.OutputDir != "" {
		cfg.OutputDir = e.OutputDir
	}
	if e.RootTitle != "" {
		cfg.RootTitle = e.RootTitle
	}
	if e.RequestTimeout != 0 {
		cfg.RequestTimeout = e.RequestTimeout
	}
	if e.RequestDelay != 0 {
		cfg.RequestDelay = e.RequestDelay
	}
	if e.DownloadConcurrency != 0 {
		cfg.DownloadConcurrency = e.DownloadConcurrency
	}
	if e.UserAgent != "" {
		cfg.UserAgent = e.UserAgent
	}
	if e.MaxBodySize != 0 {
		cfg.MaxBodySize = e.MaxBodySize
	}
	if e.Verbose {
		cfg.Verbose = true
	}
	if e.LogFormat != "" {
		cfg.LogFormat = e.LogFormat
	}
	if e.ManifestDir != "" {
		cfg.ManifestDir = e.ManifestDir
	}
}
