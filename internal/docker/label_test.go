package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// TestBuildLabels verifies that BuildLabels converts a sync point into a
// Docker label map with all required keys and values.
func TestBuildLabels(t *testing.T) {
	createdAt := time.Date(2026, 2, 28, 10, 0, 0, 0, time.FixedZone("JST", 9*60*60))
	sp := model.SyncPointConfig{
		Name:         "web-sync",
		Src:          "/home/dev/project/web/",
		Dest:         "/var/www",
		SyncStrategy: model.StrategyRsync,
		SyncHostPort: 10871,
		ConfigPath:   "/home/dev/project/container-sync.yml",
	}

	labels := BuildLabels(sp, createdAt)

	assert.Equal(t, ManagedByValue, labels[LabelManagedBy],
		"managed-by label should always be set to the constant value")
	assert.Equal(t, "web-sync", labels[LabelName])
	assert.Equal(t, "rsync", labels[LabelStrategy])
	assert.Equal(t, "/home/dev/project/web/", labels[LabelSource])
	assert.Equal(t, "/home/dev/project/container-sync.yml", labels[LabelConfigPath])
	assert.Equal(t, "10871", labels[LabelHostPort])
	// The timestamp is always written in UTC.
	assert.Equal(t, "2026-02-28T01:00:00Z", labels[LabelCreatedAt])
	assert.Len(t, labels, 7)
}

// TestBuildLabels_Optional verifies that unset optional values are not
// written and that an empty strategy records the default one.
func TestBuildLabels_Optional(t *testing.T) {
	sp := model.SyncPointConfig{Name: "api", Src: "/src/api", Dest: "/srv/api"}

	labels := BuildLabels(sp, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Len(t, labels, 5)
	assert.Equal(t, "unison", labels[LabelStrategy])
	assert.NotContains(t, labels, LabelConfigPath)
	assert.NotContains(t, labels, LabelHostPort)
}

// TestParseLabels verifies that ParseLabels reconstructs the label part
// of a SyncContainer. This is the inverse of BuildLabels.
func TestParseLabels(t *testing.T) {
	sp := model.SyncPointConfig{
		Name:         "web-sync",
		Src:          "/src/web",
		Dest:         "/var/www",
		SyncStrategy: model.StrategyRsync,
		SyncHostPort: 10871,
		ConfigPath:   "/cfg/container-sync.yml",
	}
	labels := BuildLabels(sp, time.Now())

	sc, err := ParseLabels(labels)

	require.NoError(t, err, "ParseLabels should succeed with labels from BuildLabels")
	assert.Equal(t, "web-sync", sc.SyncName)
	assert.Equal(t, model.StrategyRsync, sc.Strategy)
	assert.Equal(t, "/cfg/container-sync.yml", sc.ConfigPath)
	assert.Equal(t, labels, sc.Labels)
	// Runtime fields are left to the caller.
	assert.Empty(t, sc.ContainerID)
	assert.Empty(t, sc.Status)
}

func TestParseLabels_Errors(t *testing.T) {
	tests := []struct {
		name    string
		labels  map[string]string
		wantErr string
	}{
		{
			name:    "no labels",
			labels:  map[string]string{},
			wantErr: "missing required Docker labels: container-sync.managed-by, container-sync.name",
		},
		{
			name:    "missing name",
			labels:  map[string]string{LabelManagedBy: ManagedByValue},
			wantErr: "missing required Docker labels: container-sync.name",
		},
		{
			name:    "foreign manager",
			labels:  map[string]string{LabelManagedBy: "docker-sync", LabelName: "app"},
			wantErr: "unexpected value",
		},
		{
			name: "malformed host port",
			labels: map[string]string{
				LabelManagedBy: ManagedByValue,
				LabelName:      "app",
				LabelHostPort:  "http",
			},
			wantErr: LabelHostPort,
		},
		{
			name: "malformed timestamp",
			labels: map[string]string{
				LabelManagedBy: ManagedByValue,
				LabelName:      "app",
				LabelCreatedAt: "yesterday",
			},
			wantErr: LabelCreatedAt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLabels(tt.labels)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFilterLabels(t *testing.T) {
	assert.Equal(t,
		[]string{"container-sync.managed-by=container-sync"},
		FilterLabels(""))
	assert.Equal(t,
		[]string{"container-sync.managed-by=container-sync", "container-sync.name=web"},
		FilterLabels("web"))
}
