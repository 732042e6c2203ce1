package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default settings file name.
const DefaultConfigFile = ".wikiexport"

// ErrConfigNotFound is returned when the settings file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .wikiexport settings file.
// Secrets do not belong here; the token is read from the environment only.
type File struct {
	// Host is the wiki base URL.
	Host string `yaml:"host,omitempty"`

	// RootTitle is the page traversal starts from.
	RootTitle string `yaml:"root,omitempty"`

	// OutputDir is the export directory.
	OutputDir string `yaml:"output,omitempty"`

	// RequestTimeout bounds each request, e.g. "30s".
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty"`

	// RequestDelay is waited between page fetches, e.g. "200ms".
	RequestDelay time.Duration `yaml:"requestDelay,omitempty"`

	// DownloadConcurrency is the number of parallel file downloads per page.
	DownloadConcurrency int `yaml:"downloadConcurrency,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Headers are extra HTTP headers added to every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Markdown writes index.md with each page's content.
	Markdown bool `yaml:"markdown,omitempty"`

	// Report is the Markdown run report path.
	Report string `yaml:"report,omitempty"`

	// TreeJSON is the JSON tree dump path.
	TreeJSON string `yaml:"treeJson,omitempty"`

	// MetricsFile is the Prometheus textfile path.
	MetricsFile string `yaml:"metricsFile,omitempty"`

	// ManifestDir is the manifest database directory.
	ManifestDir string `yaml:"manifestDir,omitempty"`

	// DisableManifest turns off the run manifest.
	DisableManifest bool `yaml:"disableManifest,omitempty"`
}

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Headers == nil {
		cf.Headers = make(map[string]string)
	}

	return &cf, nil
}

// FindConfigFile searches for the settings file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .wikiexport in the current directory
// 3. Look for .wikiexport in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the settings file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// ApplyTo copies every set value onto cfg.
func (cf *File) ApplyTo(cfg *Config) {
	if cf.Host != "" {
		cfg.Host = cf.Host
	}
	if cf.RootTitle != "" {
		cfg.RootTitle = cf.RootTitle
	}
	if cf.OutputDir != "" {
		cfg.OutputDir = cf.OutputDir
	}
	if cf.RequestTimeout != 0 {
		cfg.RequestTimeout = cf.RequestTimeout
	}
	if cf.RequestDelay != 0 {
		cfg.RequestDelay = cf.RequestDelay
	}
	if cf.DownloadConcurrency != 0 {
		cfg.DownloadConcurrency = cf.DownloadConcurrency
	}
	if cf.UserAgent != "" {
		cfg.UserAgent = cf.UserAgent
	}
	if len(cf.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		for k, v := range cf.Headers {
			cfg.Headers[k] = v
		}
	}
	if cf.Markdown {
		cfg.WriteMarkdown = true
	}
	if cf.Report != "" {
		cfg.ReportFile = cf.Report
	}
	if cf.TreeJSON != "" {
		cfg.TreeJSONFile = cf.TreeJSON
	}
	if cf.MetricsFile != "" {
		cfg.MetricsFile = cf.MetricsFile
	}
	if cf.ManifestDir != "" {
		cfg.ManifestDir = cf.ManifestDir
	}
	if cf.DisableManifest {
		cfg.SaveManifest = false
	}
}
