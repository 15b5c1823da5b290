// Package config handles dirwatch configuration files.
package config

const (
	// ConfigFileName is the name of the per-project config file.
	ConfigFileName = ".dirwatch.yml"
	// UserConfigDir is the per-user config directory below $HOME.
	UserConfigDir = ".config/dirwatch"
	// UserConfigFile is the file name inside UserConfigDir.
	UserConfigFile = "config.yml"
	// EnvConfig names the environment variable that points at a config file.
	EnvConfig = "DIRWATCH_CONFIG"

	// CurrentVersion is the current config schema version.
	CurrentVersion = 1

	// DefaultRoot is watched when no root is configured.
	DefaultRoot = "."
	// DefaultLatency lets the native facility deliver events immediately.
	DefaultLatency = "0s"
	// DefaultOutput is the event rendering used by the watch command.
	DefaultOutput = "table"
	// DefaultLogLevel and DefaultLogFormat configure the slog handler.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	// DefaultJournalMaxEntries bounds the event journal.
	DefaultJournalMaxEntries = 10000
	// DefaultServeAddr binds the control server to loopback.
	DefaultServeAddr = "127.0.0.1:7070"
)

// Allowed enumerations (slices cannot be const).
var (
	DefaultEvents = []string{"file-events"}

	OutputFormats = []string{"table", "compact", "json"}
	LogLevels     = []string{"debug", "info", "warn", "error"}
	LogFormats    = []string{"text", "json"}
)
