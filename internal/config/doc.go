// Package config loads, validates and normalizes container-sync
// configuration files.
//
// The pipeline runs once at startup and is fail-fast:
//
//   - Load reads an inline string or a file, interpolates ${VAR} references
//     from the environment and parses the result. YAML is the primary
//     format; .json/.jsonc files are accepted through github.com/tidwall/jsonc.
//   - Validate checks the syncs section and the mandatory fields of every
//     sync point, reporting the first violation in declaration order.
//   - ParseGlobalOptions and Normalize merge global defaults into each sync
//     point and produce the canonical model.Config.
//
// Parsing keeps the gopkg.in/yaml.v3 node tree so sync points are always
// processed in the order they are written in the file.
package config
