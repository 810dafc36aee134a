package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// Option keys of the top-level "options" section.
const (
	optCLIMode = "cli_mode"
	optVerbose = "verbose"
)

// ParseGlobalOptions decodes the "options" section. Image defaults are
// resolved through SyncStrategy.ImageOptionKey for every known strategy;
// unrelated keys are ignored.
func ParseGlobalOptions(doc *Document) (model.GlobalOptions, error) {
	var opts model.GlobalOptions
	if doc.options == nil || isBlank(doc.options) {
		return opts, nil
	}
	if resolve(doc.options).Kind != yaml.MappingNode {
		return opts, &model.InvalidFieldError{Field: "options", Err: fmt.Errorf("expected a mapping, got %s", kindName(resolve(doc.options)))}
	}

	entries := mappingEntries(doc.options)

	if node := lookupKey(entries, optCLIMode); !isBlank(node) {
		mode, err := model.ParseCLIMode(node.Value)
		if err != nil {
			return opts, &model.InvalidFieldError{Field: optCLIMode, Err: err}
		}
		opts.CLIMode = mode
	}

	if node := lookupKey(entries, optVerbose); node != nil {
		var verbose bool
		if err := node.Decode(&verbose); err != nil {
			return opts, &model.InvalidFieldError{Field: optVerbose, Err: err}
		}
		opts.Verbose = &verbose
	}

	for _, strategy := range model.KnownStrategies() {
		key := strategy.ImageOptionKey()
		node := lookupKey(entries, key)
		if isBlank(node) {
			continue
		}
		image, err := scalarString(node)
		if err != nil {
			return opts, &model.InvalidFieldError{Field: key, Err: err}
		}
		if opts.Images == nil {
			opts.Images = make(map[model.SyncStrategy]string)
		}
		opts.Images[strategy] = image
	}

	return opts, nil
}

// Normalize turns a validated document into the canonical Config. For
// every sync point, in declaration order, it:
//
//  1. records configPath as the back-reference;
//  2. resolves src to an absolute path, keeping a trailing "/";
//  3. sets CLIMode from the global cli_mode (default auto);
//  4. keeps an explicit verbose, else inherits the global verbose, else false;
//  5. applies the global "<strategy>_image" default when the sync point's
//     strategy matches exactly and the sync point sets no image itself.
//
// Relative src paths are resolved against the working directory, whatever
// directory the config file was found in.
func Normalize(doc *Document, global model.GlobalOptions, configPath string) (*model.Config, error) {
	cfg := &model.Config{Global: global}
	for _, entry := range doc.syncEntries() {
		raw, err := decodeSyncPoint(entry.name, entry.node)
		if err != nil {
			return nil, err
		}

		src, err := expandSource(raw.src)
		if err != nil {
			return nil, &model.InvalidFieldError{SyncName: entry.name, Field: keySrc, Err: err}
		}

		sp := model.SyncPointConfig{
			Name:          entry.name,
			Src:           src,
			Dest:          raw.dest,
			SyncStrategy:  model.SyncStrategy(raw.strategy),
			SyncHostPort:  raw.hostPort,
			Image:         raw.image,
			CLIMode:       global.EffectiveCLIMode(),
			ConfigPath:    configPath,
			SyncExcludes:  raw.syncExcludes,
			SyncArgs:      raw.syncArgs,
			WatchExcludes: raw.watchExcludes,
			SyncUserID:    raw.userID,
		}

		switch {
		case raw.verbose != nil:
			sp.Verbose = *raw.verbose
		case global.Verbose != nil:
			sp.Verbose = *global.Verbose
		}

		if sp.Image == "" {
			for _, strategy := range model.KnownStrategies() {
				if image, ok := global.ImageFor(strategy); ok && sp.SyncStrategy == strategy {
					sp.Image = image
				}
			}
		}

		cfg.Syncs = append(cfg.Syncs, sp)
	}

	return cfg, nil
}

// rawSyncPoint holds the decoded fields of one sync point before
// normalization. verbose is a pointer to tell "unset" from "false"; a
// verbose key with no value counts as set to false.
type rawSyncPoint struct {
	src           string
	dest          string
	strategy      string
	hostPort      int
	image         string
	verbose       *bool
	syncExcludes  []string
	syncArgs      []string
	watchExcludes []string
	userID        string
}

// decodeSyncPoint decodes the known keys of a sync point one by one so a
// type error can name the offending field. Unknown keys are ignored.
func decodeSyncPoint(name string, node *yaml.Node) (rawSyncPoint, error) {
	var raw rawSyncPoint
	for _, kv := range mappingEntries(node) {
		if kv.key == "verbose" && isBlank(kv.value) {
			raw.verbose = new(bool)
			continue
		}
		if isBlank(kv.value) {
			continue
		}

		var err error
		switch kv.key {
		case keySrc:
			raw.src, err = scalarString(kv.value)
		case keyDest:
			raw.dest, err = scalarString(kv.value)
		case keySyncStrategy:
			raw.strategy, err = scalarString(kv.value)
		case keySyncHostPort:
			err = kv.value.Decode(&raw.hostPort)
			if err == nil && (raw.hostPort < 1 || raw.hostPort > 65535) {
				err = fmt.Errorf("port %d out of range (1-65535)", raw.hostPort)
			}
		case "image":
			raw.image, err = scalarString(kv.value)
		case "verbose":
			var v bool
			err = kv.value.Decode(&v)
			raw.verbose = &v
		case "sync_excludes":
			raw.syncExcludes, err = stringList(kv.value)
		case "sync_args":
			raw.syncArgs, err = stringList(kv.value)
		case "watch_excludes":
			raw.watchExcludes, err = stringList(kv.value)
		case "sync_userid":
			raw.userID, err = scalarString(kv.value)
		}
		if err != nil {
			return raw, &model.InvalidFieldError{SyncName: name, Field: kv.key, Err: err}
		}
	}
	return raw, nil
}

// expandSource makes src absolute relative to the working directory. A
// leading "~" expands to the user's home directory. filepath.Abs cleans
// away a trailing separator, which rsync treats as "copy the contents",
// so it is put back.
func expandSource(src string) (string, error) {
	path := src
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot expand %q: %w", src, err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(src, "/") && !strings.HasSuffix(abs, "/") {
		abs += "/"
	}
	return abs, nil
}

// scalarString returns the literal text of a scalar node. Numbers and
// booleans are accepted as written (e.g. sync_userid: 1000).
func scalarString(node *yaml.Node) (string, error) {
	node = resolve(node)
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("expected a scalar, got %s", kindName(node))
	}
	return node.Value, nil
}

// stringList accepts either a sequence of scalars or a single
// space-separated string.
func stringList(node *yaml.Node) ([]string, error) {
	node = resolve(node)
	switch node.Kind {
	case yaml.ScalarNode:
		return strings.Fields(node.Value), nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			s, err := scalarString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string or a list, got %s", kindName(node))
	}
}
