package cmd

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/twiced-technology-gmbh/dirwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/dirwatch/internal/config"
	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
	"github.com/twiced-technology-gmbh/dirwatch/internal/journal"
	"github.com/twiced-technology-gmbh/dirwatch/internal/watcher"
)

// normalizeFlagName accepts snake_case spellings of kebab-case flags.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// addWatchFlags registers the flags shared by every command that runs a watcher.
func addWatchFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("events", nil, "stream flags: "+strings.Join(fsevent.CreateFlagNames(), ", "))
	cmd.Flags().Duration("latency", 0, "coalesce events for this long before delivery")
	cmd.Flags().SetNormalizeFunc(normalizeFlagName)
}

// addJournalFlag registers --journal, which overrides journal.path.
func addJournalFlag(cmd *cobra.Command) {
	cmd.Flags().String("journal", "", "event journal file (.jsonl, .db or .sqlite)")
}

// watchRoot returns the directory to watch: the first argument or the
// configured root.
func watchRoot(cfg *config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.RootPath()
}

// eventNames returns --events with snake_case names normalized.
func eventNames(cmd *cobra.Command) []string {
	names, _ := cmd.Flags().GetStringSlice("events")
	for i, n := range names {
		names[i] = strings.ReplaceAll(strings.TrimSpace(n), "_", "-")
	}
	return names
}

// watchMask returns --events when given, otherwise the configured mask.
func watchMask(cmd *cobra.Command, cfg *config.Config) (fsevent.CreateFlags, error) {
	var (
		mask fsevent.CreateFlags
		err  error
	)
	if cmd.Flags().Changed("events") {
		mask, err = fsevent.ParseCreateFlags(eventNames(cmd))
	} else {
		mask, err = cfg.Mask()
	}
	if err != nil {
		return 0, clierr.Newf(clierr.InvalidMask, "invalid events: %v", err).
			WithDetails(map[string]any{"allowed": fsevent.CreateFlagNames()})
	}
	return mask, nil
}

// startWatcher builds and starts a watcher from flags and config. An inert
// watcher is reported as a CLI error and released.
func startWatcher(cmd *cobra.Command, cfg *config.Config, args []string,
	logger *slog.Logger, cb watcher.Callback,
) (*watcher.Watcher, error) {
	mask, err := watchMask(cmd, cfg)
	if err != nil {
		return nil, err
	}

	latency := cfg.LatencyDuration()
	if cmd.Flags().Changed("latency") {
		latency, _ = cmd.Flags().GetDuration("latency")
		if latency < 0 {
			return nil, clierr.New(clierr.InvalidInput, "--latency must be >= 0")
		}
	}

	root := watchRoot(cfg, args)
	w := watcher.New(root, mask, cb,
		watcher.WithLogger(logger),
		watcher.WithLatency(latency),
	)
	if w.IsActive() {
		return w, nil
	}

	err = w.Err()
	_ = w.Close()
	details := map[string]any{"root": root}
	if errors.Is(err, watcher.ErrInvalidRoot) || errors.Is(err, watcher.ErrNotDirectory) {
		return nil, clierr.Newf(clierr.RootNotFound, "%s: %v", root, err).WithDetails(details)
	}
	return nil, clierr.Newf(clierr.WatcherInert, "watcher could not start: %v", err).WithDetails(details)
}

// openJournal opens the journal named by --journal or the config. It returns
// a nil Store when journaling is disabled.
func openJournal(cmd *cobra.Command, cfg *config.Config) (journal.Store, error) {
	path := cfg.JournalPath()
	if f := cmd.Flags().Lookup("journal"); f != nil && f.Changed {
		path = f.Value.String()
	}
	if path == "" {
		return nil, nil //nolint:nilnil // journaling disabled
	}

	store, err := journal.Open(path, cfg.MaxEntries())
	if err != nil {
		return nil, clierr.Newf(clierr.JournalError, "opening journal: %v", err).
			WithDetails(map[string]any{"path": path})
	}
	return store, nil
}
