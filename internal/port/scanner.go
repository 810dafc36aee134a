package port

import (
	"fmt"
	"net"
	"strconv"
)

// Scanner checks whether ports are available on the host machine.
//
// It uses the operating system's network stack (net.Listen) to determine
// if a port is free. This asks the OS directly rather than parsing
// /proc/net/* or relying on external commands like `lsof` or `ss`, which
// may require elevated permissions.
type Scanner struct {
	// host is the address the probe binds to. Sync containers publish on
	// 127.0.0.1, so that is what NewScanner uses; an empty host probes all
	// interfaces.
	host string
}

// NewScanner creates a Scanner that probes the loopback interface, which
// is where sync containers publish their daemon port.
func NewScanner() *Scanner {
	return &Scanner{host: "127.0.0.1"}
}

// NewScannerForHost creates a Scanner that probes the given bind address.
func NewScannerForHost(host string) *Scanner {
	return &Scanner{host: host}
}

// IsPortAvailable reports whether a TCP port is free. If the bind succeeds
// the port is available and the listener is closed again immediately.
// Ports outside 1-65535 are never available.
func (s *Scanner) IsPortAvailable(port int) bool {
	if port < 1 || port > maxPort {
		return false
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}

// FindAvailablePort scans [startPort, endPort] (inclusive) and returns the
// first free port. The search is sequential from startPort upward, so the
// same free port is selected consistently.
func (s *Scanner) FindAvailablePort(startPort, endPort int) (int, error) {
	for port := startPort; port <= endPort; port++ {
		if s.IsPortAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available tcp port found in range %d-%d", startPort, endPort)
}
