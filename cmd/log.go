package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/dirwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/dirwatch/internal/journal"
	"github.com/twiced-technology-gmbh/dirwatch/internal/output"
)

const defaultLogLimit = 20

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent journaled events",
	Args:  cobra.NoArgs,
	RunE:  runLog,
}

func init() {
	addJournalFlag(logCmd)
	logCmd.Flags().IntP("limit", "n", defaultLogLimit, "number of events to show")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return clierr.New(clierr.InvalidInput, "--limit must be a positive integer")
	}

	store, err := openJournal(cmd, cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return clierr.New(clierr.JournalDisabled,
			"no journal configured (set journal.path or pass --journal)")
	}
	defer store.Close()

	entries, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return clierr.Newf(clierr.JournalError, "reading journal: %v", err)
	}

	switch outputFormat(cfg) {
	case output.FormatJSON:
		if entries == nil {
			entries = []journal.Entry{}
		}
		return output.JSON(os.Stdout, entries)
	case output.FormatCompact:
		output.EntryCompact(os.Stdout, entries)
	default:
		output.EntryTable(os.Stdout, entries)
	}
	return nil
}
