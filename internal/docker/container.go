// container.go implements the Docker lifecycle of sync containers and
// their volumes. Every sync point owns exactly one named volume and one
// container, both named after the sync point and both labeled with the
// "container-sync.*" labels from label.go.
//
// All operations go through the Docker SDK. Absent resources are not an
// error for stop/remove so that "clean" and "stop" can be repeated safely.
package docker

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/go-connections/nat"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// Container-side ports of the sync daemons shipped in the default images.
const (
	// RsyncContainerPort is the port of the rsync daemon.
	RsyncContainerPort = 873

	// UnisonContainerPort is the port of the unison socket server.
	UnisonContainerPort = 5000
)

// ContainerSpec describes the sync container to create for a sync point.
type ContainerSpec struct {
	// Name is used for both the container and its volume.
	Name string

	// Image is the container image reference.
	Image string

	// Target is where the volume is mounted inside the container.
	Target string

	// ContainerPort is the daemon port inside the container.
	ContainerPort int

	// HostPort is the published host port. Zero lets Docker choose one.
	HostPort int

	// Env is passed to the container as KEY=VALUE pairs.
	Env []string

	// Labels are applied to both the container and the volume.
	Labels map[string]string
}

// ListSyncContainers returns every container managed by container-sync,
// including stopped ones. With a non-empty syncName only that sync
// point's containers are returned. Filtering happens server-side.
func (c *Client) ListSyncContainers(ctx context.Context, syncName string) ([]model.SyncContainer, error) {
	args := filters.NewArgs()
	for _, label := range FilterLabels(syncName) {
		args.Add("label", label)
	}

	containers, err := c.inner.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: args,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]model.SyncContainer, 0, len(containers))
	for _, summary := range containers {
		sc, err := toSyncContainer(summary)
		if err != nil {
			// A container carrying our managed-by label but broken labels
			// is skipped rather than failing the whole listing.
			continue
		}
		result = append(result, sc)
	}
	return result, nil
}

// toSyncContainer converts a Docker container summary to the domain
// model. The Docker API returns names with a leading "/", which is
// stripped for display.
func toSyncContainer(summary container.Summary) (model.SyncContainer, error) {
	parsed, err := ParseLabels(summary.Labels)
	if err != nil {
		return model.SyncContainer{}, err
	}

	name := ""
	if len(summary.Names) > 0 {
		name = strings.TrimPrefix(summary.Names[0], "/")
	}

	parsed.ContainerID = summary.ID
	parsed.ContainerName = name
	parsed.Status = string(summary.State)
	return *parsed, nil
}

// buildContainerConfig translates a ContainerSpec into the SDK's create
// structures. It is a pure function so the mapping can be unit tested.
func buildContainerConfig(spec ContainerSpec) (*container.Config, *container.HostConfig, error) {
	port, err := nat.NewPort("tcp", strconv.Itoa(spec.ContainerPort))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid container port %d: %w", spec.ContainerPort, err)
	}

	hostPort := ""
	if spec.HostPort != 0 {
		hostPort = strconv.Itoa(spec.HostPort)
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Env:          spec.Env,
		Labels:       spec.Labels,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: hostPort}},
		},
		Mounts: []mount.Mount{{
			Type:   mount.TypeVolume,
			Source: spec.Name,
			Target: spec.Target,
		}},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
	}
	return cfg, hostCfg, nil
}

// ContainerExists reports whether a container with the given name exists,
// running or not.
func (c *Client) ContainerExists(ctx context.Context, name string) (bool, error) {
	_, err := c.inner.ContainerInspect(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case cerrdefs.IsNotFound(err):
		return false, nil
	default:
		return false, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to inspect container %q", name),
			err,
		)
	}
}

// EnsureVolume creates the named volume unless it already exists.
func (c *Client) EnsureVolume(ctx context.Context, name string, labels map[string]string) error {
	_, err := c.inner.VolumeInspect(ctx, name)
	if err == nil {
		return nil
	}
	if !cerrdefs.IsNotFound(err) {
		return model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to inspect volume %q", name), err)
	}

	if _, err := c.inner.VolumeCreate(ctx, volume.CreateOptions{Name: name, Labels: labels}); err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to create volume %q", name), err)
	}
	return nil
}

// EnsureSyncContainer makes sure the sync container described by spec
// exists and is running, and returns its ID.
//
// An existing container with the same name is reused as-is; its image
// and port bindings are not compared against spec. Use "clean" to force
// a rebuild after changing a sync point.
func (c *Client) EnsureSyncContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	var (
		id      string
		running bool
	)

	info, err := c.inner.ContainerInspect(ctx, spec.Name)
	switch {
	case err == nil:
		if info.ContainerJSONBase != nil {
			id = info.ID
			running = info.State != nil && info.State.Running
		}
	case cerrdefs.IsNotFound(err):
		if err := c.EnsureVolume(ctx, spec.Name, spec.Labels); err != nil {
			return "", err
		}
		id, err = c.createContainer(ctx, spec)
		if err != nil {
			return "", err
		}
	default:
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to inspect container %q", spec.Name),
			err,
		)
	}

	if running {
		return id, nil
	}
	if err := c.inner.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start container %q", spec.Name),
			err,
		)
	}
	return id, nil
}

// createContainer creates the container, pulling the image first when
// the daemon reports it missing.
func (c *Client) createContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	cfg, hostCfg, err := buildContainerConfig(spec)
	if err != nil {
		return "", err
	}

	resp, err := c.inner.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if cerrdefs.IsNotFound(err) {
		if pullErr := c.PullImage(ctx, spec.Image); pullErr != nil {
			return "", pullErr
		}
		resp, err = c.inner.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	}
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create container %q", spec.Name),
			err,
		)
	}
	return resp.ID, nil
}

// PullImage pulls ref and waits for the pull to complete. The progress
// stream has to be drained; the daemon stops pulling when it is closed.
func (c *Client) PullImage(ctx context.Context, ref string) error {
	rc, err := c.inner.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to pull image %q", ref), err)
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to read pull progress for %q: %w", ref, err)
	}
	return nil
}

// PublishedPort returns the host port Docker bound to containerPort of
// the named container. It is needed when the container was created
// without a fixed host port.
func (c *Client) PublishedPort(ctx context.Context, name string, containerPort int) (int, error) {
	info, err := c.inner.ContainerInspect(ctx, name)
	if err != nil {
		return 0, model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to inspect container %q", name), err)
	}
	if info.NetworkSettings == nil {
		return 0, fmt.Errorf("container %q has no network settings", name)
	}

	port, err := nat.NewPort("tcp", strconv.Itoa(containerPort))
	if err != nil {
		return 0, err
	}
	for _, binding := range info.NetworkSettings.Ports[port] {
		if binding.HostPort == "" {
			continue
		}
		hostPort, err := strconv.Atoi(binding.HostPort)
		if err != nil {
			return 0, fmt.Errorf("invalid published port %q: %w", binding.HostPort, err)
		}
		return hostPort, nil
	}
	return 0, fmt.Errorf("container %q does not publish port %s", name, port)
}

// StopSyncContainer stops the named container using Docker's default
// grace period. A missing container is not an error.
func (c *Client) StopSyncContainer(ctx context.Context, name string) error {
	err := c.inner.ContainerStop(ctx, name, container.StopOptions{})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop container %q", name),
			err,
		)
	}
	return nil
}

// RemoveSyncContainer force-removes the named container. A missing
// container is not an error.
func (c *Client) RemoveSyncContainer(ctx context.Context, name string) error {
	err := c.inner.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", name),
			err,
		)
	}
	return nil
}

// RemoveVolume force-removes the named volume. A missing volume is not
// an error.
func (c *Client) RemoveVolume(ctx context.Context, name string) error {
	err := c.inner.VolumeRemove(ctx, name, true)
	if err != nil && !cerrdefs.IsNotFound(err) {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove volume %q", name),
			err,
		)
	}
	return nil
}
