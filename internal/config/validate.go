package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// Mandatory configuration keys of a sync point.
const (
	keySrc          = "src"
	keyDest         = "dest"
	keySyncStrategy = "sync_strategy"
	keySyncHostPort = "sync_host_port"
)

// Validate checks that the document declares a syncs section and that
// every sync point carries its mandatory fields.
//
// Sync points are checked in declaration order and the first violation
// is returned:
//   - model.ErrMissingSyncsSection when "syncs" is absent or not a mapping
//   - *model.InvalidFieldError when a sync point is not a mapping
//   - *model.MissingFieldError for a missing src, dest, or (rsync only)
//     sync_host_port; fields are checked in that order
func Validate(doc *Document) error {
	if !doc.HasSyncs() {
		return model.ErrMissingSyncsSection
	}
	if doc.syncs == nil || doc.syncs.Kind != yaml.MappingNode {
		return fmt.Errorf("syncs must be a mapping of sync names to settings: %w", model.ErrMissingSyncsSection)
	}

	for _, entry := range doc.syncEntries() {
		if err := validateSyncPoint(entry.name, entry.node); err != nil {
			return err
		}
	}
	return nil
}

// validateSyncPoint checks the mandatory fields of a single sync point.
// A key that is present but null or empty counts as missing, since the
// normalized config must never hold an empty src or dest.
func validateSyncPoint(name string, node *yaml.Node) error {
	node = resolve(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return &model.InvalidFieldError{
			SyncName: name,
			Field:    "syncs." + name,
			Err:      fmt.Errorf("expected a mapping, got %s", kindName(orNull(node))),
		}
	}

	mandatory := []string{keySrc, keyDest}
	if strategy := lookup(node, keySyncStrategy); strategy != nil && strategy.Kind == yaml.ScalarNode &&
		model.SyncStrategy(strategy.Value).RequiresHostPort() {
		mandatory = append(mandatory, keySyncHostPort)
	}

	for _, key := range mandatory {
		if isBlank(lookup(node, key)) {
			return &model.MissingFieldError{SyncName: name, Field: key}
		}
	}
	return nil
}

func orNull(node *yaml.Node) *yaml.Node {
	if node == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
	}
	return node
}
