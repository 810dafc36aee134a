package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is the dotenv file read from the working directory when
// no --env-file flag is given.
const DefaultEnvFile = ".env"

// LoadDotEnv seeds the process environment from dotenv files so that the
// variables can be referenced from the configuration. Files that do not
// exist are skipped. Variables already present in the environment are
// never overwritten.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load environment file %s: %w", path, err)
		}
	}
	return nil
}
