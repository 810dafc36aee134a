package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// defaultPingTimeout bounds Ping. Docker Desktop on macOS can take a few
// seconds to answer after waking up.
const defaultPingTimeout = 5 * time.Second

// windowsPipe is the named pipe Docker Desktop listens on.
const windowsPipe = `//./pipe/docker_engine`

// Client wraps the Docker Engine SDK client with the operations
// container-sync needs for sync containers and their volumes.
//
//	c, err := docker.NewClient()
//	if err != nil { /* exit 4 */ }
//	defer c.Close()
//	if err := c.Ping(ctx); err != nil { /* exit 4 */ }
type Client struct {
	// inner is held through the SDK's APIClient interface so tests can
	// substitute a fake daemon.
	inner client.APIClient
}

// NewClientWithAPI wraps an existing APIClient. It is used by tests and
// by callers that already hold a configured SDK client.
func NewClientWithAPI(api client.APIClient) *Client {
	return &Client{inner: api}
}

// NewClient connects to the Docker daemon.
//
// When DOCKER_HOST is set the SDK's environment handling is used as is,
// including DOCKER_TLS_VERIFY and DOCKER_CERT_PATH. Otherwise the first
// existing socket of socketCandidates is used. Failures are returned as
// model.CLIError with ExitDockerNotRunning.
func NewClient() (*Client, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}

	if os.Getenv("DOCKER_HOST") != "" {
		opts = append(opts, client.FromEnv)
	} else {
		host, err := detectDockerHost()
		if err != nil {
			return nil, model.WrapCLIError(model.ExitDockerNotRunning, "Docker socket not found", err)
		}
		opts = append(opts, client.WithHost(host))
	}

	c, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "failed to create Docker client", err)
	}
	return &Client{inner: c}, nil
}

// detectDockerHost returns the daemon address for the current platform.
// Sockets are checked for existence only; Ping verifies the daemon.
func detectDockerHost() (string, error) {
	if runtime.GOOS == "windows" {
		// os.Stat does not work on named pipes, so dial briefly instead.
		conn, err := net.DialTimeout("pipe", windowsPipe, time.Second)
		if err != nil {
			return "", fmt.Errorf("Docker named pipe not found at %s: %w", windowsPipe, err)
		}
		_ = conn.Close()
		return "npipe://" + windowsPipe, nil
	}

	home, _ := os.UserHomeDir()
	candidates := socketCandidates(runtime.GOOS, home)
	if len(candidates) == 0 {
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return firstSocket(candidates, func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	})
}

// socketCandidates lists the Unix socket paths to try, most preferred
// first. Docker Desktop and colima place their sockets below home.
func socketCandidates(goos, home string) []string {
	switch goos {
	case "linux":
		paths := []string{"/var/run/docker.sock"}
		if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
			// Rootless Docker.
			paths = append(paths, filepath.Join(xdg, "docker.sock"))
		}
		if home != "" {
			paths = append(paths, filepath.Join(home, ".docker", "desktop", "docker.sock"))
		}
		return paths
	case "darwin":
		paths := []string{"/var/run/docker.sock"}
		if home != "" {
			paths = append(paths,
				filepath.Join(home, ".docker", "run", "docker.sock"),
				filepath.Join(home, ".colima", "default", "docker.sock"),
			)
		}
		return paths
	default:
		return nil
	}
}

func firstSocket(paths []string, exists func(string) bool) (string, error) {
	for _, path := range paths {
		if exists(path) {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of %v; is Docker running?", paths)
}

// Ping verifies that the Docker daemon answers within defaultPingTimeout.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, "Docker daemon is not responding, is Docker running?", err)
	}
	return nil
}

// Close releases the connection to the daemon. It is safe to call on a
// client without a connection.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Inner returns the underlying SDK client for operations the wrapper
// does not cover.
func (c *Client) Inner() client.APIClient {
	return c.inner
}
