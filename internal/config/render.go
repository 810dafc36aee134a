package config

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// renderedSyncPoint is the document shape of a normalized sync point.
// Field order matches the order keys are written in.
type renderedSyncPoint struct {
	Src           string   `yaml:"src"`
	Dest          string   `yaml:"dest"`
	SyncStrategy  string   `yaml:"sync_strategy,omitempty"`
	SyncHostPort  int      `yaml:"sync_host_port,omitempty"`
	Image         string   `yaml:"image,omitempty"`
	Verbose       bool     `yaml:"verbose"`
	SyncExcludes  []string `yaml:"sync_excludes,omitempty"`
	SyncArgs      []string `yaml:"sync_args,omitempty"`
	WatchExcludes []string `yaml:"watch_excludes,omitempty"`
	SyncUserID    string   `yaml:"sync_userid,omitempty"`
}

// Render writes a normalized Config back into the configuration document
// format. Loading the output and normalizing it again yields the same
// Config, which makes it suitable for "config" dumps and for debugging
// what the normalizer did.
func Render(cfg *model.Config) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	options := &yaml.Node{Kind: yaml.MappingNode}
	if cfg.Global.CLIMode != "" {
		appendScalar(options, optCLIMode, cfg.Global.CLIMode.String(), "!!str")
	}
	if cfg.Global.Verbose != nil {
		appendScalar(options, optVerbose, strconv.FormatBool(*cfg.Global.Verbose), "!!bool")
	}
	for _, strategy := range model.KnownStrategies() {
		if image, ok := cfg.Global.ImageFor(strategy); ok {
			appendScalar(options, strategy.ImageOptionKey(), image, "!!str")
		}
	}
	root.Content = append(root.Content, keyNode("options"), options)

	syncs := &yaml.Node{Kind: yaml.MappingNode}
	for _, sp := range cfg.Syncs {
		var value yaml.Node
		if err := value.Encode(renderedSyncPoint{
			Src:           sp.Src,
			Dest:          sp.Dest,
			SyncStrategy:  sp.SyncStrategy.String(),
			SyncHostPort:  sp.SyncHostPort,
			Image:         sp.Image,
			Verbose:       sp.Verbose,
			SyncExcludes:  sp.SyncExcludes,
			SyncArgs:      sp.SyncArgs,
			WatchExcludes: sp.WatchExcludes,
			SyncUserID:    sp.SyncUserID,
		}); err != nil {
			return nil, fmt.Errorf("failed to render sync point %s: %w", sp.Name, err)
		}
		syncs.Content = append(syncs.Content, keyNode(sp.Name), &value)
	}
	root.Content = append(root.Content, keyNode("syncs"), syncs)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("failed to render configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render configuration: %w", err)
	}
	return buf.Bytes(), nil
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

func appendScalar(mapping *yaml.Node, key, value, tag string) {
	mapping.Content = append(mapping.Content,
		keyNode(key),
		&yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value},
	)
}
