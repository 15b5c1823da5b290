package cmd

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/dirwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/dirwatch/internal/config"
	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
	"github.com/twiced-technology-gmbh/dirwatch/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify configuration",
	Long:  `View the full configuration, get a specific key, or set a writable value.`,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2), //nolint:mnd // key and value
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// configAccessor describes how to get and set a config key.
type configAccessor struct {
	get      func(*config.Config) any
	set      func(*config.Config, string) error
	writable bool
}

func checkOneOf(key, v string, allowed []string) error {
	if !slices.Contains(allowed, v) {
		return clierr.Newf(clierr.InvalidInput,
			"invalid %s %q; allowed: %s", key, v, strings.Join(allowed, ", "))
	}
	return nil
}

func configAccessors() map[string]configAccessor {
	return map[string]configAccessor{
		"version": {
			get: func(c *config.Config) any { return c.Version },
		},
		"path": {
			get: func(c *config.Config) any { return c.Path() },
		},
		"root": {
			get:      func(c *config.Config) any { return c.Root },
			set:      func(c *config.Config, v string) error { c.Root = v; return nil },
			writable: true,
		},
		"events": {
			get: func(c *config.Config) any { return c.Events },
			set: func(c *config.Config, v string) error {
				names := strings.Split(v, ",")
				for i, n := range names {
					names[i] = strings.ReplaceAll(strings.TrimSpace(n), "_", "-")
				}
				if _, err := fsevent.ParseCreateFlags(names); err != nil {
					return clierr.Newf(clierr.InvalidMask, "invalid events %q: %v", v, err).
						WithDetails(map[string]any{"allowed": fsevent.CreateFlagNames()})
				}
				c.Events = names
				return nil
			},
			writable: true,
		},
		"latency": {
			get: func(c *config.Config) any { return c.Latency },
			set: func(c *config.Config, v string) error {
				d, err := time.ParseDuration(v)
				if err != nil || d < 0 {
					return clierr.Newf(clierr.InvalidInput,
						"invalid latency %q: must be a non-negative duration", v)
				}
				c.Latency = v
				return nil
			},
			writable: true,
		},
		"output": {
			get: func(c *config.Config) any { return c.Output },
			set: func(c *config.Config, v string) error {
				if err := checkOneOf("output", v, config.OutputFormats); err != nil {
					return err
				}
				c.Output = v
				return nil
			},
			writable: true,
		},
		"log.level": {
			get: func(c *config.Config) any { return c.Log.Level },
			set: func(c *config.Config, v string) error {
				if err := checkOneOf("log.level", v, config.LogLevels); err != nil {
					return err
				}
				c.Log.Level = v
				return nil
			},
			writable: true,
		},
		"log.format": {
			get: func(c *config.Config) any { return c.Log.Format },
			set: func(c *config.Config, v string) error {
				if err := checkOneOf("log.format", v, config.LogFormats); err != nil {
					return err
				}
				c.Log.Format = v
				return nil
			},
			writable: true,
		},
		"journal.path": {
			get:      func(c *config.Config) any { return c.Journal.Path },
			set:      func(c *config.Config, v string) error { c.Journal.Path = v; return nil },
			writable: true,
		},
		"journal.max_entries": {
			get: func(c *config.Config) any { return c.Journal.MaxEntries },
			set: func(c *config.Config, v string) error {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					return clierr.Newf(clierr.InvalidInput,
						"invalid journal.max_entries %q: must be a non-negative integer", v)
				}
				c.Journal.MaxEntries = n
				return nil
			},
			writable: true,
		},
		"serve.addr": {
			get: func(c *config.Config) any { return c.Serve.Addr },
			set: func(c *config.Config, v string) error {
				if v == "" {
					return clierr.New(clierr.InvalidInput, "serve.addr must not be empty")
				}
				c.Serve.Addr = v
				return nil
			},
			writable: true,
		},
	}
}

// allConfigKeys returns config keys in display order.
func allConfigKeys() []string {
	return []string{
		"version",
		"path",
		"root",
		"events",
		"latency",
		"output",
		"log.level",
		"log.format",
		"journal.path",
		"journal.max_entries",
		"serve.addr",
	}
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	accessors := configAccessors()

	if outputFormat(cfg) == output.FormatJSON {
		m := make(map[string]any, len(accessors))
		for _, key := range allConfigKeys() {
			m[key] = accessors[key].get(cfg)
		}
		return output.JSON(os.Stdout, m)
	}

	for _, key := range allConfigKeys() {
		val := accessors[key].get(cfg)
		fmt.Fprintf(os.Stdout, "%-20s %v\n", key, formatConfigValue(val))
	}
	return nil
}

func runConfigGet(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	key := args[0]
	acc, ok := configAccessors()[key]
	if !ok {
		return clierr.Newf(clierr.InvalidInput, "unknown config key %q", key).
			WithDetails(map[string]any{"keys": allConfigKeys()})
	}

	val := acc.get(cfg)

	if outputFormat(cfg) == output.FormatJSON {
		return output.JSON(os.Stdout, val)
	}

	fmt.Fprintln(os.Stdout, formatConfigValue(val))
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Path() == "" {
		return clierr.New(clierr.ConfigNotFound,
			"no config file to modify (run 'dirwatch init' to create one)")
	}

	key, value := args[0], args[1]
	acc, ok := configAccessors()[key]
	if !ok {
		return clierr.Newf(clierr.InvalidInput, "unknown config key %q", key).
			WithDetails(map[string]any{"keys": allConfigKeys()})
	}
	if !acc.writable {
		return clierr.Newf(clierr.InvalidInput, "config key %q is read-only", key)
	}

	if err := acc.set(cfg, value); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return clierr.New(clierr.InvalidInput, err.Error())
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	if outputFormat(cfg) == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]any{"key": key, "value": acc.get(cfg)})
	}

	output.Messagef(os.Stdout, "Set %s = %v", key, formatConfigValue(acc.get(cfg)))
	return nil
}

func formatConfigValue(val any) string {
	switch v := val.(type) {
	case []string:
		if len(v) == 0 {
			return "--"
		}
		return strings.Join(v, ", ")
	case string:
		if v == "" {
			return "--"
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
