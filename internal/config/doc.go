// Package config provides configuration structures and utilities for wikiexport.
// It defines the wiki connection settings, output locations and optional
// export features, and loads them from a YAML settings file, a .env file and
// the process environment.
package config
