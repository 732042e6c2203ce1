package config

import (
	"fmt"
)

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// ConfigFilePath is an explicit settings file. When set, a missing file
	// is an error; when empty, the default locations are searched.
	ConfigFilePath string

	// EnvFile is the .env file to load. Empty means ".env".
	EnvFile string
}

// Load builds a Config from defaults, the settings file, the .env file and
// the environment, in increasing order of precedence. The result is
// normalized but not validated: callers apply flag overrides first.
func Load(opts LoadOptions) (*Config, error) {
	cfg := NewConfig()
	cfg.ConfigFilePath = opts.ConfigFilePath
	cfg.EnvFile = opts.EnvFile

	path := FindConfigFile(opts.ConfigFilePath)
	switch {
	case path != "":
		file, err := LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		file.ApplyTo(cfg)
	case opts.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, opts.ConfigFilePath)
	}

	if err := LoadDotEnv(opts.EnvFile); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	env, err := LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	env.ApplyTo(cfg)

	cfg.Normalize()
	return cfg, nil
}
