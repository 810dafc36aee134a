package port

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenLoopback starts a TCP listener on an OS-assigned loopback port
// and returns the port. The listener is closed when the test ends.
func listenLoopback(t *testing.T) int {
	t.Helper()

	// ":0" lets the OS pick a free port, which avoids flaky hardcoded ports.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to start test listener")
	t.Cleanup(func() { _ = listener.Close() })

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return tcpAddr.Port
}

// TestIsPortAvailable_FreePort verifies that IsPortAvailable returns true
// for a port that no process is using.
func TestIsPortAvailable_FreePort(t *testing.T) {
	scanner := NewScanner()

	// Use FindAvailablePort to get a port we know is free, rather than
	// hardcoding a port number that might be in use on some CI machines.
	freePort, err := scanner.FindAvailablePort(50000, 50100)
	require.NoError(t, err, "should find at least one free port in 50000-50100")

	assert.True(t, scanner.IsPortAvailable(freePort), "port %d should be available", freePort)
}

// TestIsPortAvailable_UsedPort verifies that IsPortAvailable returns false
// when a port is already bound, as it would be by a running rsync
// container publishing its daemon port.
func TestIsPortAvailable_UsedPort(t *testing.T) {
	port := listenLoopback(t)

	scanner := NewScanner()
	assert.False(t, scanner.IsPortAvailable(port), "port %d should be in use", port)
}

func TestIsPortAvailable_OutOfRange(t *testing.T) {
	scanner := NewScanner()
	assert.False(t, scanner.IsPortAvailable(0))
	assert.False(t, scanner.IsPortAvailable(-1))
	assert.False(t, scanner.IsPortAvailable(70000))
}

// TestFindAvailablePort_SkipsUsed verifies the scan moves past an
// occupied port.
func TestFindAvailablePort_SkipsUsed(t *testing.T) {
	port := listenLoopback(t)
	scanner := NewScanner()

	found, err := scanner.FindAvailablePort(port, port+50)
	require.NoError(t, err)
	assert.Greater(t, found, port)
}

// TestFindAvailablePort_NoneAvailable verifies that FindAvailablePort
// returns an error when every port in the range is occupied.
func TestFindAvailablePort_NoneAvailable(t *testing.T) {
	scanner := NewScanner()

	basePort, err := scanner.FindAvailablePort(51000, 51100)
	require.NoError(t, err)

	// Occupy a small range of consecutive ports.
	rangeSize := 3
	actualEnd := basePort
	for i := 0; i < rangeSize; i++ {
		ln, listenErr := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", basePort+i))
		if listenErr != nil {
			// If something else grabbed the base port, skip rather than
			// producing a false failure.
			if i == 0 {
				t.Skip("could not bind base port, skipping")
			}
			break
		}
		t.Cleanup(func() { _ = ln.Close() })
		actualEnd = basePort + i
	}

	_, err = scanner.FindAvailablePort(basePort, actualEnd)
	assert.ErrorContains(t, err, "no available")
}
