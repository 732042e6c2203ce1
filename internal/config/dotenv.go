package config

import (
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is the .env file looked up in the working directory.
const DefaultEnvFile = ".env"

// LoadDotEnv loads environment variables from a .env file.
// If path is empty, it loads from ".env" in the current directory.
// A missing file is not an error. Variables already present in the
// environment are not overridden.
func LoadDotEnv(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	return godotenv.Load(path)
}
