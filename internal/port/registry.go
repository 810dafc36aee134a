package port

import (
	"fmt"
	"sync"

	"github.com/shinji-kodama/container-sync/internal/model"
)

const (
	// maxPort is the highest valid TCP port number (2^16 - 1).
	maxPort = 65535

	// dynamicRangeStart is the start of the IANA dynamic/private port
	// range used for sync points without a declared host port.
	dynamicRangeStart = 49152

	// dynamicRangeEnd is the end of the dynamic port range.
	dynamicRangeEnd = 65535
)

// Prober reports whether a host port is free. *Scanner implements it.
type Prober interface {
	IsPortAvailable(port int) bool
}

// Registry tracks the host ports reserved by sync points of one
// configuration. It combines an OS-level probe with the reservations
// made so far, because a container that was just created may not have
// bound its port yet.
//
// A Registry is shared by all workers of a process and is safe for
// concurrent use.
type Registry struct {
	prober Prober

	mu sync.Mutex
	// owners maps a reserved host port to the sync point holding it.
	owners map[int]string
}

// NewRegistry creates a Registry backed by prober.
func NewRegistry(prober Prober) *Registry {
	return &Registry{
		prober: prober,
		owners: make(map[int]string),
	}
}

// Reserve claims port for syncName. It fails with ExitPortUnavailable
// when another sync point already reserved the port or when the OS
// reports it in use. Reserving a port the same sync point already holds
// succeeds without probing again.
func (r *Registry) Reserve(syncName string, port int) error {
	if port < 1 || port > maxPort {
		return model.NewCLIError(
			model.ExitPortUnavailable,
			fmt.Sprintf("%s: sync_host_port %d is out of range (1-%d)", syncName, port, maxPort),
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[port]; ok {
		if owner == syncName {
			return nil
		}
		return model.NewCLIError(
			model.ExitPortUnavailable,
			fmt.Sprintf("%s: sync_host_port %d is already used by sync %s", syncName, port, owner),
		)
	}

	if !r.prober.IsPortAvailable(port) {
		return model.NewCLIError(
			model.ExitPortUnavailable,
			fmt.Sprintf("%s: sync_host_port %d is already in use on this host", syncName, port),
		)
	}

	r.owners[port] = syncName
	return nil
}

// Allocate reserves the first free port of the dynamic range for
// syncName and returns it. A sync point that already holds a port gets
// the same port back.
func (r *Registry) Allocate(syncName string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for port, owner := range r.owners {
		if owner == syncName {
			return port, nil
		}
	}

	for port := dynamicRangeStart; port <= dynamicRangeEnd; port++ {
		if _, taken := r.owners[port]; taken {
			continue
		}
		if r.prober.IsPortAvailable(port) {
			r.owners[port] = syncName
			return port, nil
		}
	}
	return 0, model.NewCLIError(
		model.ExitPortUnavailable,
		fmt.Sprintf("%s: no free host port in range %d-%d", syncName, dynamicRangeStart, dynamicRangeEnd),
	)
}

// Release drops every reservation held by syncName.
func (r *Registry) Release(syncName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for port, owner := range r.owners {
		if owner == syncName {
			delete(r.owners, port)
		}
	}
}

// Owner returns the sync point holding port, if any.
func (r *Registry) Owner(port int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[port]
	return owner, ok
}
