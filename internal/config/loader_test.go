package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// writeConfig writes content to a file named name inside a fresh temp
// directory and returns the file path.
func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// syncNames returns the sync point names of doc in declaration order.
func syncNames(doc *Document) []string {
	var names []string
	for _, e := range doc.syncEntries() {
		names = append(names, e.name)
	}
	return names
}

// TestLoad_File verifies that a YAML file is parsed and sync points keep
// their declaration order.
func TestLoad_File(t *testing.T) {
	doc, err := Load(LoadOptions{ConfigPath: filepath.Join("testdata", "container-sync.yml")})
	require.NoError(t, err)

	assert.True(t, doc.HasSyncs())
	assert.Equal(t, []string{"web-sync", "api-sync"}, syncNames(doc))
}

// TestLoad_JSONC verifies that comments and trailing commas are accepted
// in .jsonc files.
func TestLoad_JSONC(t *testing.T) {
	doc, err := Load(LoadOptions{ConfigPath: filepath.Join("testdata", "container-sync.jsonc")})
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, syncNames(doc))
}

// TestLoad_ConfigStringWins verifies that the inline string is used even
// when a (missing) path is given.
func TestLoad_ConfigStringWins(t *testing.T) {
	doc, err := Load(LoadOptions{
		ConfigString: "syncs:\n  inline:\n    src: ./a\n    dest: /a\n",
		ConfigPath:   filepath.Join(t.TempDir(), "does-not-exist.yml"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"inline"}, syncNames(doc))
}

// TestLoad_InlineJSON verifies that inline JSON strings go through the
// JSONC cleanup as well.
func TestLoad_InlineJSON(t *testing.T) {
	doc, err := Load(LoadOptions{
		ConfigString: `{"syncs": {"a": {"src": "./a", "dest": "/a",},}}`,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, syncNames(doc))
}

// TestLoad_MissingFile verifies the fail-fast ConfigNotFound behavior.
func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "container-sync.yml")

	_, err := Load(LoadOptions{ConfigPath: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConfigNotFound)
	assert.Contains(t, err.Error(), path)
}

func TestLoad_NoSource(t *testing.T) {
	_, err := Load(LoadOptions{})
	assert.ErrorIs(t, err, model.ErrConfigNotFound)
}

// TestLoad_Interpolation verifies environment variables are substituted
// before parsing.
func TestLoad_Interpolation(t *testing.T) {
	t.Setenv("APP_DEST", "/from-env")

	path := writeConfig(t, "container-sync.yml", `
syncs:
  app:
    src: ./src
    dest: ${APP_DEST}
    sync_strategy: ${STRATEGY:-unison}
`)
	cfg, err := LoadConfig(LoadOptions{ConfigPath: path})
	require.NoError(t, err)
	require.Len(t, cfg.Syncs, 1)
	assert.Equal(t, "/from-env", cfg.Syncs[0].Dest)
	assert.Equal(t, model.StrategyUnison, cfg.Syncs[0].SyncStrategy)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(LoadOptions{ConfigString: "syncs: [unterminated"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrConfigNotFound)
}

func TestLoad_TopLevelNotMapping(t *testing.T) {
	_, err := Load(LoadOptions{ConfigString: "- a\n- b\n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a mapping")
}

// TestLoad_Anchors verifies that YAML anchors and merge keys can be used
// to share settings between sync points.
func TestLoad_Anchors(t *testing.T) {
	cfg, err := LoadConfig(LoadOptions{ConfigString: `
defaults: &defaults
  sync_strategy: rsync
  sync_excludes: [.git]
syncs:
  one:
    <<: *defaults
    src: /tmp/one
    dest: /one
    sync_host_port: 10871
  two:
    <<: *defaults
    src: /tmp/two
    dest: /two
    sync_host_port: 10872
    sync_strategy: unison
`})
	require.NoError(t, err)
	require.Len(t, cfg.Syncs, 2)

	assert.Equal(t, model.StrategyRsync, cfg.Syncs[0].SyncStrategy)
	assert.Equal(t, []string{".git"}, cfg.Syncs[0].SyncExcludes)
	assert.Equal(t, model.StrategyUnison, cfg.Syncs[1].SyncStrategy, "explicit key must win over merged key")
}

// TestLoadConfig_ExitCodes verifies that each pipeline phase maps to its
// own exit code.
func TestLoadConfig_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		opts LoadOptions
		want model.ExitCode
	}{
		{
			name: "missing file",
			opts: LoadOptions{ConfigPath: filepath.Join(t.TempDir(), "nope.yml")},
			want: model.ExitConfigNotFound,
		},
		{
			name: "missing syncs",
			opts: LoadOptions{ConfigString: "options:\n  verbose: true\n"},
			want: model.ExitInvalidConfig,
		},
		{
			name: "missing dest",
			opts: LoadOptions{ConfigString: "syncs:\n  a:\n    src: ./a\n"},
			want: model.ExitInvalidConfig,
		},
		{
			name: "bad cli_mode",
			opts: LoadOptions{ConfigString: "options:\n  cli_mode: sometimes\nsyncs:\n  a:\n    src: ./a\n    dest: /a\n"},
			want: model.ExitInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.opts)
			require.Error(t, err)
			assert.Equal(t, tt.want, model.ExitCodeOf(err))
		})
	}
}

// TestLoadConfig_Fixture runs the whole pipeline over the YAML fixture.
func TestLoadConfig_Fixture(t *testing.T) {
	path := filepath.Join("testdata", "container-sync.yml")
	cfg, err := LoadConfig(LoadOptions{ConfigPath: path})
	require.NoError(t, err)

	// Sources are resolved from the working directory, not testdata/.
	wd, err := os.Getwd()
	require.NoError(t, err)

	require.Len(t, cfg.Syncs, 2)

	web := cfg.Syncs[0]
	assert.Equal(t, "web-sync", web.Name)
	assert.Equal(t, filepath.Join(wd, "web")+"/", web.Src)
	assert.Equal(t, "/var/www", web.Dest)
	assert.Equal(t, 10871, web.SyncHostPort)
	assert.Equal(t, "registry.example.com/rsync:3.2", web.Image)
	assert.True(t, web.Verbose)
	assert.Equal(t, model.CLIModeManual, web.CLIMode)
	assert.Equal(t, path, web.ConfigPath)
	assert.Equal(t, []string{"node_modules", ".git"}, web.SyncExcludes)

	api := cfg.Syncs[1]
	assert.Equal(t, filepath.Join(wd, "api"), api.Src)
	assert.False(t, api.Verbose, "explicit verbose: false must win over the global value")
	assert.Empty(t, api.Image, "rsync_image must not apply to unison sync points")
	assert.Equal(t, []string{"-prefer", "newer"}, api.SyncArgs)
	assert.Equal(t, "1000", api.SyncUserID)
}

// TestLocate verifies the upward search for the default config file.
func TestLocate(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	want := filepath.Join(root, "a", "container-sync.yml")
	require.NoError(t, os.WriteFile(want, []byte("syncs: {}\n"), 0o644))

	got, err := Locate(nested)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLocate_NotFound(t *testing.T) {
	_, err := Locate(t.TempDir())
	assert.ErrorIs(t, err, model.ErrConfigNotFound)
}
