// Package model defines the domain types for the container-sync CLI.
//
// The types in this package describe the canonical, normalized form of a
// container-sync configuration. They are produced once by the config
// package and then treated as read-only by the orchestrator and workers.
package model

import (
	"fmt"
	"strings"
)

// SyncStrategy names the transfer mechanism used for a sync point.
// The strategy decides which fields are mandatory (rsync needs a host
// port) and which global image override applies.
type SyncStrategy string

const (
	// StrategyRsync transfers files with rsync into an rsync daemon that
	// runs inside the sync container. Watching happens in-process.
	StrategyRsync SyncStrategy = "rsync"

	// StrategyUnison runs a two-way unison sync against a unison socket
	// server inside the sync container. Watching is delegated to a forked
	// unison process in repeat mode.
	StrategyUnison SyncStrategy = "unison"
)

// DefaultStrategy is used by workers when a sync point does not declare
// a sync_strategy. Normalization never fills it in, so validation and
// image matching only see what the user wrote.
const DefaultStrategy = StrategyUnison

// KnownStrategies returns every strategy that has first-class support,
// in a stable order. The normalizer walks this list to resolve
// per-strategy image defaults.
func KnownStrategies() []SyncStrategy {
	return []SyncStrategy{StrategyRsync, StrategyUnison}
}

// String returns the string representation of SyncStrategy.
func (s SyncStrategy) String() string {
	return string(s)
}

// IsKnown reports whether the strategy is one of KnownStrategies.
func (s SyncStrategy) IsKnown() bool {
	switch s {
	case StrategyRsync, StrategyUnison:
		return true
	default:
		return false
	}
}

// ImageOptionKey returns the global option key that carries the default
// container image for this strategy (e.g. "rsync_image"). Unknown
// strategies have no image option and return "".
func (s SyncStrategy) ImageOptionKey() string {
	switch s {
	case StrategyRsync:
		return "rsync_image"
	case StrategyUnison:
		return "unison_image"
	default:
		return ""
	}
}

// RequiresHostPort reports whether a sync point using this strategy must
// declare sync_host_port.
func (s SyncStrategy) RequiresHostPort() bool {
	return s == StrategyRsync
}

// CLIMode controls how a worker reacts to conflicts and prompts.
// The orchestrator only propagates it; workers interpret it.
type CLIMode string

const (
	// CLIModeAuto lets workers resolve prompts without user interaction.
	CLIModeAuto CLIMode = "auto"

	// CLIModeManual leaves prompts to the user.
	CLIModeManual CLIMode = "manual"
)

// String returns the string representation of CLIMode.
func (m CLIMode) String() string {
	return string(m)
}

// IsValid checks whether the CLIMode value is one of the predefined modes.
func (m CLIMode) IsValid() bool {
	switch m {
	case CLIModeAuto, CLIModeManual:
		return true
	default:
		return false
	}
}

// ParseCLIMode converts a string to a CLIMode.
func ParseCLIMode(s string) (CLIMode, error) {
	mode := CLIMode(strings.ToLower(s))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid cli_mode: %q (valid: auto, manual)", s)
	}
	return mode, nil
}

// GlobalOptions holds the values of the top-level "options" section.
//
// Verbose is a pointer so that "not set" and "set to false" stay distinct:
// only a present global verbose key overrides the per-sync default.
type GlobalOptions struct {
	// CLIMode is the global cli_mode. Empty means "not configured".
	CLIMode CLIMode `json:"cliMode,omitempty" yaml:"cli_mode,omitempty"`

	// Verbose is the global verbose flag, nil when the key is absent.
	Verbose *bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`

	// Images maps a strategy to its "<strategy>_image" default.
	Images map[SyncStrategy]string `json:"images,omitempty" yaml:"-"`
}

// ImageFor returns the configured default image for strategy, if any.
func (o GlobalOptions) ImageFor(strategy SyncStrategy) (string, bool) {
	if o.Images == nil {
		return "", false
	}
	image, ok := o.Images[strategy]
	return image, ok
}

// EffectiveCLIMode returns the configured cli_mode or CLIModeAuto.
func (o GlobalOptions) EffectiveCLIMode() CLIMode {
	if o.CLIMode == "" {
		return CLIModeAuto
	}
	return o.CLIMode
}

// SyncPointConfig is the normalized configuration of one sync point.
type SyncPointConfig struct {
	// Name is the key of the sync point in the "syncs" mapping.
	Name string `json:"name"`

	// Src is the absolute source directory on the host. A trailing "/"
	// from the original value is preserved because rsync treats
	// "dir" and "dir/" differently.
	Src string `json:"src"`

	// Dest is the destination path inside the sync container.
	Dest string `json:"dest"`

	// SyncStrategy is the strategy as written in the config. It may be
	// empty or name a strategy this tool does not know.
	SyncStrategy SyncStrategy `json:"syncStrategy,omitempty"`

	// SyncHostPort is the host port the sync container publishes.
	// Mandatory for rsync, optional otherwise (0 means unset).
	SyncHostPort int `json:"syncHostPort,omitempty"`

	// Image overrides the default container image of the strategy.
	Image string `json:"image,omitempty"`

	// Verbose enables verbose output of the transfer tool.
	Verbose bool `json:"verbose"`

	// CLIMode is inherited from the global options.
	CLIMode CLIMode `json:"cliMode"`

	// ConfigPath points back to the configuration file this sync point
	// was loaded from. Empty for inline configuration strings.
	ConfigPath string `json:"configPath,omitempty"`

	// SyncExcludes are patterns excluded from the transfer.
	SyncExcludes []string `json:"syncExcludes,omitempty"`

	// SyncArgs are extra arguments passed to the transfer tool.
	SyncArgs []string `json:"syncArgs,omitempty"`

	// WatchExcludes are patterns whose changes do not trigger a sync.
	WatchExcludes []string `json:"watchExcludes,omitempty"`

	// SyncUserID is the uid that owns the files inside the container.
	SyncUserID string `json:"syncUserId,omitempty"`
}

// EffectiveStrategy returns the strategy a worker should run, falling
// back to DefaultStrategy when none was configured.
func (c SyncPointConfig) EffectiveStrategy() SyncStrategy {
	if c.SyncStrategy == "" {
		return DefaultStrategy
	}
	return c.SyncStrategy
}

// Config is the canonical configuration held by the orchestrator.
// Syncs keeps the declaration order of the source document.
type Config struct {
	Global GlobalOptions     `json:"options"`
	Syncs  []SyncPointConfig `json:"syncs"`
}

// Names returns the sync point names in declaration order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Syncs))
	for _, s := range c.Syncs {
		names = append(names, s.Name)
	}
	return names
}

// Lookup returns the sync point with the given name.
func (c *Config) Lookup(name string) (SyncPointConfig, bool) {
	for _, s := range c.Syncs {
		if s.Name == name {
			return s, true
		}
	}
	return SyncPointConfig{}, false
}

// SyncContainer is the runtime view of a sync container, rebuilt from
// Docker labels. It is only used for status reporting.
type SyncContainer struct {
	// ContainerID is the Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the Docker container name without the leading "/".
	ContainerName string `json:"containerName"`

	// SyncName is the sync point this container belongs to.
	SyncName string `json:"syncName"`

	// Strategy is the strategy recorded when the container was created.
	Strategy SyncStrategy `json:"strategy"`

	// ConfigPath is the config file recorded when the container was created.
	ConfigPath string `json:"configPath,omitempty"`

	// Status is the Docker container state ("running", "exited", ...).
	Status string `json:"status"`

	// Labels is the full label set of the container.
	Labels map[string]string `json:"labels,omitempty"`
}

// IsRunning reports whether Docker considers the container running.
func (c SyncContainer) IsRunning() bool {
	return c.Status == "running"
}
