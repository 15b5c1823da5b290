package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/dirwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestNewDefaultIsValid(t *testing.T) {
	cfg := NewDefault()
	require.NoError(t, cfg.Validate())

	mask, err := cfg.Mask()
	require.NoError(t, err)
	assert.Equal(t, fsevent.DefaultMask, mask)
	assert.Equal(t, time.Duration(0), cfg.LatencyDuration())
	assert.Equal(t, DefaultJournalMaxEntries, cfg.MaxEntries())
	assert.Empty(t, cfg.JournalPath())
}

func TestInitThenLoad(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Init(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), cfg.Path())

	loaded, err := Load(cfg.Path())
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, loaded.Version)
	assert.Equal(t, dir, loaded.RootPath())

	_, err = Init(dir)
	var cliErr *clierr.Error
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, clierr.ConfigAlreadyExists, cliErr.Code)
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	writeFile(t, path, `version: 1
root: src
events: [file-events, watch-root]
latency: 250ms
journal:
  path: .dirwatch/events.jsonl
  max_entries: 50
serve:
  addr: 127.0.0.1:9999
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "src"), cfg.RootPath())
	assert.Equal(t, filepath.Join(dir, ".dirwatch", "events.jsonl"), cfg.JournalPath())
	assert.Equal(t, 250*time.Millisecond, cfg.LatencyDuration())
	assert.Equal(t, 50, cfg.MaxEntries())

	mask, err := cfg.Mask()
	require.NoError(t, err)
	assert.Equal(t, fsevent.CreateFileEvents|fsevent.CreateWatchRoot, mask)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), ConfigFileName))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadMigratesUnversioned(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	writeFile(t, path, "root: /srv\nevents: []\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Equal(t, DefaultEvents, cfg.Events)
	assert.Equal(t, "/srv", cfg.RootPath())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version: 1")
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	writeFile(t, path, "version: 7\n")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"version", func(c *Config) { c.Version = 2 }},
		{"events", func(c *Config) { c.Events = []string{"bogus"} }},
		{"latency", func(c *Config) { c.Latency = "soon" }},
		{"negative latency", func(c *Config) { c.Latency = "-1s" }},
		{"output", func(c *Config) { c.Output = "xml" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "logfmt" }},
		{"max entries", func(c *Config) { c.Journal.MaxEntries = -1 }},
		{"serve addr", func(c *Config) { c.Serve.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestFindWalksUpward(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	writeFile(t, path, "version: 1\n")
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	found, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestResolvePrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvConfig, "")
	work := t.TempDir()

	// Nothing anywhere: defaults rooted at the start directory.
	cfg, err := Resolve("", work)
	require.NoError(t, err)
	assert.Empty(t, cfg.Path())
	assert.Equal(t, work, cfg.RootPath())

	// User config: relative paths still resolve against the start directory.
	userPath := filepath.Join(home, UserConfigDir, UserConfigFile)
	writeFile(t, userPath, "version: 1\nroot: data\nlatency: 1s\n")
	cfg, err = Resolve("", work)
	require.NoError(t, err)
	assert.Equal(t, userPath, cfg.Path())
	assert.Equal(t, filepath.Join(work, "data"), cfg.RootPath())

	// Project config beats the user config.
	projectPath := filepath.Join(work, ConfigFileName)
	writeFile(t, projectPath, "version: 1\nlatency: 2s\n")
	cfg, err = Resolve("", work)
	require.NoError(t, err)
	assert.Equal(t, projectPath, cfg.Path())
	assert.Equal(t, 2*time.Second, cfg.LatencyDuration())

	// Environment beats the project config.
	envPath := filepath.Join(t.TempDir(), "env.yml")
	writeFile(t, envPath, "version: 1\nlatency: 3s\n")
	t.Setenv(EnvConfig, envPath)
	cfg, err = Resolve("", work)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.LatencyDuration())

	// The flag beats everything.
	flagPath := filepath.Join(t.TempDir(), "flag.yml")
	writeFile(t, flagPath, "version: 1\nlatency: 4s\n")
	cfg, err = Resolve(flagPath, work)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, cfg.LatencyDuration())
}

func TestResolveExplicitMissing(t *testing.T) {
	_, err := Resolve(filepath.Join(t.TempDir(), "nope.yml"), t.TempDir())
	var cliErr *clierr.Error
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, clierr.ConfigNotFound, cliErr.Code)
}
