package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// Label key constants define the Docker label keys used to persist sync
// point metadata on containers and volumes. These labels are the only
// state container-sync keeps; "status" rebuilds everything from them.
//
// All keys share the "container-sync." prefix to avoid collisions with
// labels set by other tools (Docker Compose, VS Code, etc.).
const (
	// LabelPrefix is the common prefix for all container-sync labels.
	LabelPrefix = "container-sync."

	// LabelManagedBy identifies resources managed by container-sync.
	// Key: "container-sync.managed-by", Value: always "container-sync".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelName stores the sync point name.
	// Key: "container-sync.name", Value: e.g. "web-sync".
	LabelName = LabelPrefix + "name"

	// LabelStrategy stores the sync strategy the container was built for.
	// Key: "container-sync.strategy", Value: "rsync" or "unison".
	LabelStrategy = LabelPrefix + "strategy"

	// LabelSource stores the absolute host source directory.
	LabelSource = LabelPrefix + "src"

	// LabelConfigPath stores the configuration file the sync point was
	// loaded from. Absent for inline configuration.
	LabelConfigPath = LabelPrefix + "config-path"

	// LabelHostPort stores the configured sync_host_port, if any.
	LabelHostPort = LabelPrefix + "host-port"

	// LabelCreatedAt stores the RFC3339 timestamp of container creation.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "container-sync"

// BuildLabels constructs the Docker label map for the container and
// volume of a sync point. Optional values (config path, host port) are
// only written when set so that "docker inspect" stays readable.
func BuildLabels(sp model.SyncPointConfig, createdAt time.Time) map[string]string {
	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelName:      sp.Name,
		LabelStrategy:  sp.EffectiveStrategy().String(),
		LabelSource:    sp.Src,
		// UTC keeps the value independent of the host timezone.
		LabelCreatedAt: createdAt.UTC().Format(time.RFC3339),
	}
	if sp.ConfigPath != "" {
		labels[LabelConfigPath] = sp.ConfigPath
	}
	if sp.SyncHostPort != 0 {
		labels[LabelHostPort] = strconv.Itoa(sp.SyncHostPort)
	}
	return labels
}

// ParseLabels reconstructs the label-derived part of a SyncContainer.
// This is the inverse of BuildLabels for the fields status reporting
// needs. Runtime fields (ID, name, state) are filled in by the caller.
//
// The managed-by and name labels are required; everything else is
// optional so that containers created by older versions still parse.
func ParseLabels(labels map[string]string) (*model.SyncContainer, error) {
	var missing []string
	for _, key := range []string{LabelManagedBy, LabelName} {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	if value, ok := labels[LabelHostPort]; ok {
		if _, err := strconv.Atoi(value); err != nil {
			return nil, fmt.Errorf("invalid label %s=%q: %w", LabelHostPort, value, err)
		}
	}

	if value, ok := labels[LabelCreatedAt]; ok {
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
		}
	}

	return &model.SyncContainer{
		SyncName:   labels[LabelName],
		Strategy:   model.SyncStrategy(labels[LabelStrategy]),
		ConfigPath: labels[LabelConfigPath],
		Labels:     labels,
	}, nil
}

// FilterLabels returns the label filter that matches every resource
// managed by container-sync, optionally narrowed to one sync point.
//
// The returned "key=value" strings are meant for filters.Arg("label", ...).
func FilterLabels(syncName string) []string {
	out := []string{LabelManagedBy + "=" + ManagedByValue}
	if syncName != "" {
		out = append(out, LabelName+"="+syncName)
	}
	return out
}
