// Package docker provides Docker Engine API wrappers and sync container
// lifecycle management for the container-sync CLI.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Container and volume labels that persist sync point metadata
//     (Docker labels are the only state container-sync keeps)
//   - Sync container lifecycle: ensure (create or reuse), start, stop,
//     remove, published-port lookup and image pulls
//   - Named volume lifecycle for the sync destination
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility,
// and github.com/docker/go-connections/nat for port bindings.
package docker
