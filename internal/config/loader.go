package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// DefaultConfigNames lists the file names Locate looks for, in order.
var DefaultConfigNames = []string{
	"container-sync.yml",
	"container-sync.yaml",
	"container-sync.json",
}

// LoadOptions selects the configuration source. ConfigString wins over
// ConfigPath when both are set; ConfigPath is still recorded on every
// sync point as a back-reference.
type LoadOptions struct {
	// ConfigString is an inline, pre-rendered configuration.
	ConfigString string

	// ConfigPath is the configuration file to read.
	ConfigPath string
}

// Load resolves the raw configuration text, interpolates environment
// variables and parses it into a Document.
//
// Loading is one-shot and fail-fast: a missing file returns an error
// wrapping model.ErrConfigNotFound and nothing is retried.
func Load(opts LoadOptions) (*Document, error) {
	raw := opts.ConfigString
	isJSON := looksLikeJSON(raw)
	if raw == "" {
		data, err := readConfigFile(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		raw = string(data)
		isJSON = hasJSONExtension(opts.ConfigPath) || looksLikeJSON(raw)
	}

	rendered := []byte(Interpolate(raw))

	// JSON configs may carry comments and trailing commas. Strip them so
	// the YAML parser, which accepts plain JSON, can take over.
	if isJSON {
		rendered = jsonc.ToJSON(rendered)
	}

	return Parse(rendered)
}

// readConfigFile reads the configuration file, distinguishing a missing
// file from other read errors.
func readConfigFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("config could not be loaded: no path given: %w", model.ErrConfigNotFound)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config could not be loaded from %s - it does not exist: %w", path, model.ErrConfigNotFound)
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return data, nil
}

func hasJSONExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return true
	default:
		return false
	}
}

func looksLikeJSON(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "{")
}

// Locate searches startDir and its parents for one of DefaultConfigNames
// and returns the first match. The error wraps model.ErrConfigNotFound
// when the filesystem root is reached without a match.
func Locate(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", startDir, err)
	}

	for {
		for _, name := range DefaultConfigNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found in %s or any parent directory: %w",
				DefaultConfigNames[0], startDir, model.ErrConfigNotFound)
		}
		dir = parent
	}
}

// LoadConfig runs the whole configuration pipeline: load, validate, parse
// global options and normalize. Errors are returned as model.CLIError with
// the exit code matching their phase; the typed cause stays reachable
// through errors.Is and errors.As.
func LoadConfig(opts LoadOptions) (*model.Config, error) {
	doc, err := Load(opts)
	if err != nil {
		if errors.Is(err, model.ErrConfigNotFound) {
			return nil, model.WrapCLIError(model.ExitConfigNotFound, "configuration not found", err)
		}
		return nil, model.WrapCLIError(model.ExitInvalidConfig, "failed to load configuration", err)
	}

	if err := Validate(doc); err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidConfig, "invalid configuration", err)
	}

	global, err := ParseGlobalOptions(doc)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidConfig, "invalid configuration", err)
	}

	cfg, err := Normalize(doc, global, opts.ConfigPath)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidConfig, "invalid configuration", err)
	}
	return cfg, nil
}
