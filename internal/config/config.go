package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/twiced-technology-gmbh/dirwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
)

const (
	fileMode = 0o600
	dirMode  = 0o750
)

// Sentinel errors.
var (
	ErrNotFound = errors.New("no config file found (run 'dirwatch init' to create one)")
	ErrInvalid  = errors.New("invalid config")
)

// Config represents a dirwatch configuration file.
type Config struct {
	Version int           `yaml:"version"`
	Root    string        `yaml:"root"`
	Events  []string      `yaml:"events"`
	Latency string        `yaml:"latency"`
	Output  string        `yaml:"output,omitempty"`
	Log     LogConfig     `yaml:"log"`
	Journal JournalConfig `yaml:"journal"`
	Serve   ServeConfig   `yaml:"serve"`

	// path is the absolute path of the file this config was loaded from,
	// empty for built-in defaults (not serialized).
	path string `yaml:"-"`
	// base, when set, resolves relative paths instead of the file's directory.
	base string `yaml:"-"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// JournalConfig configures the event journal. An empty path disables it.
type JournalConfig struct {
	Path       string `yaml:"path" json:"path"`
	MaxEntries int    `yaml:"max_entries" json:"max_entries"`
}

// ServeConfig configures the control server.
type ServeConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// NewDefault creates a Config with default values.
func NewDefault() *Config {
	return &Config{
		Version: CurrentVersion,
		Root:    DefaultRoot,
		Events:  append([]string{}, DefaultEvents...),
		Latency: DefaultLatency,
		Output:  DefaultOutput,
		Log:     LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Journal: JournalConfig{MaxEntries: DefaultJournalMaxEntries},
		Serve:   ServeConfig{Addr: DefaultServeAddr},
	}
}

// Path returns the absolute path of the config file, or "" for defaults.
func (c *Config) Path() string {
	return c.path
}

// SetPath sets the file the config is saved to.
func (c *Config) SetPath(path string) {
	c.path = path
}

// Dir returns the directory relative paths are resolved against: the
// project config file's directory, or the starting directory for the user
// config and built-in defaults.
func (c *Config) Dir() string {
	if c.base != "" {
		return c.base
	}
	if c.path != "" {
		return filepath.Dir(c.path)
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// RootPath returns the absolute directory to watch.
func (c *Config) RootPath() string {
	root := c.Root
	if root == "" {
		root = DefaultRoot
	}
	return c.resolve(root)
}

// JournalPath returns the absolute journal path, or "" when disabled.
func (c *Config) JournalPath() string {
	return c.resolve(c.Journal.Path)
}

// Mask parses the configured events into stream creation flags. An empty
// list selects the default mask.
func (c *Config) Mask() (fsevent.CreateFlags, error) {
	if len(c.Events) == 0 {
		return fsevent.DefaultMask, nil
	}
	return fsevent.ParseCreateFlags(c.Events)
}

// LatencyDuration parses the latency string. Returns 0 if the field is
// empty or unparseable.
func (c *Config) LatencyDuration() time.Duration {
	if c.Latency == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Latency)
	if err != nil {
		return 0
	}
	return d
}

// MaxEntries returns the journal bound, falling back to the default.
func (c *Config) MaxEntries() int {
	if c.Journal.MaxEntries <= 0 {
		return DefaultJournalMaxEntries
	}
	return c.Journal.MaxEntries
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d (expected %d)", ErrInvalid, c.Version, CurrentVersion)
	}
	if _, err := c.Mask(); err != nil {
		return fmt.Errorf("%w: events: %w", ErrInvalid, err)
	}
	if c.Latency != "" {
		d, err := time.ParseDuration(c.Latency)
		if err != nil {
			return fmt.Errorf("%w: invalid latency %q: %w", ErrInvalid, c.Latency, err)
		}
		if d < 0 {
			return fmt.Errorf("%w: latency must be >= 0", ErrInvalid)
		}
	}
	if c.Output != "" && !slices.Contains(OutputFormats, c.Output) {
		return fmt.Errorf("%w: output %q not one of %v", ErrInvalid, c.Output, OutputFormats)
	}
	if c.Log.Level != "" && !slices.Contains(LogLevels, c.Log.Level) {
		return fmt.Errorf("%w: log.level %q not one of %v", ErrInvalid, c.Log.Level, LogLevels)
	}
	if c.Log.Format != "" && !slices.Contains(LogFormats, c.Log.Format) {
		return fmt.Errorf("%w: log.format %q not one of %v", ErrInvalid, c.Log.Format, LogFormats)
	}
	if c.Journal.MaxEntries < 0 {
		return fmt.Errorf("%w: journal.max_entries must be >= 0", ErrInvalid)
	}
	if c.Serve.Addr == "" {
		return fmt.Errorf("%w: serve.addr is required", ErrInvalid)
	}
	return nil
}

// Save writes the config to its file.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("%w: config has no file path", ErrInvalid)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), dirMode); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(c.path, data, fileMode)
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // config path from trusted source
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := NewDefault()
	cfg.Version = 0
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.path = absPath

	// Migrate old config versions forward before validating.
	oldVersion := cfg.Version
	if err := migrate(cfg); err != nil {
		return nil, err
	}

	// Persist migrated config so future loads skip re-migration.
	if cfg.Version != oldVersion {
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("saving migrated config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Init writes a default config file into dir.
func Init(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	path := filepath.Join(absDir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return nil, clierr.Newf(clierr.ConfigAlreadyExists, "config already exists: %s", path).
			WithDetails(map[string]any{"path": path})
	}

	cfg := NewDefault()
	cfg.SetPath(path)
	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}
	return cfg, nil
}

// Find walks upward from startDir looking for ConfigFileName. Returns the
// absolute path of the file.
func Find(startDir string) (string, error) {
	absStart, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	dir := absStart
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", clierr.New(clierr.ConfigNotFound,
				"no config file found (run 'dirwatch init' to create one)")
		}
		dir = parent
	}
}

// UserPath returns ~/.config/dirwatch/config.yml.
func UserPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile), nil
}

// Resolve finds the config to use. Precedence: explicit path, $DIRWATCH_CONFIG,
// the nearest .dirwatch.yml at or above startDir, the user config file, then
// built-in defaults resolving relative paths against startDir. An explicit
// path that does not exist is an error; the other sources are optional.
func Resolve(explicit, startDir string) (*Config, error) {
	if explicit == "" {
		explicit = os.Getenv(EnvConfig)
	}
	if explicit != "" {
		cfg, err := Load(explicit)
		if errors.Is(err, ErrNotFound) {
			return nil, clierr.Newf(clierr.ConfigNotFound, "config file not found: %s", explicit).
				WithDetails(map[string]any{"path": explicit})
		}
		return cfg, err
	}

	if path, err := Find(startDir); err == nil {
		return Load(path)
	}

	if path, err := UserPath(); err == nil {
		cfg, err := Load(path)
		if err == nil {
			cfg.base, _ = filepath.Abs(startDir)
			return cfg, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	cfg := NewDefault()
	if abs, err := filepath.Abs(startDir); err == nil {
		cfg.base = abs
	}
	return cfg, nil
}
