package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/dirwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/dirwatch/internal/config"
	"github.com/twiced-technology-gmbh/dirwatch/internal/output"
)

var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Create a " + config.ConfigFileName + " file",
	Long: `Writes a default ` + config.ConfigFileName + ` into DIR (default: the current
directory). Flags override the defaults that are written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().String("root", "", "directory to watch, relative to the config file")
	initCmd.Flags().StringSlice("events", nil, "stream flags (default: file-events)")
	initCmd.Flags().String("journal", "", "event journal file")
	initCmd.Flags().SetNormalizeFunc(normalizeFlagName)
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	cfg, err := config.Init(dir)
	if err != nil {
		return err
	}

	changed := false
	if root, _ := cmd.Flags().GetString("root"); root != "" {
		cfg.Root = root
		changed = true
	}
	if cmd.Flags().Changed("events") {
		if _, err := watchMask(cmd, cfg); err != nil {
			_ = os.Remove(cfg.Path())
			return err
		}
		cfg.Events = eventNames(cmd)
		changed = true
	}
	if j, _ := cmd.Flags().GetString("journal"); j != "" {
		cfg.Journal.Path = j
		changed = true
	}
	if changed {
		if err := cfg.Validate(); err != nil {
			_ = os.Remove(cfg.Path())
			return clierr.New(clierr.InvalidInput, err.Error())
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
	}

	if outputFormat(cfg) == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]string{
			"status": "initialized",
			"config": cfg.Path(),
			"root":   cfg.RootPath(),
			"events": strings.Join(cfg.Events, ","),
		})
	}

	output.Messagef(os.Stdout, "Initialized %s", cfg.Path())
	output.Field(os.Stdout, "Root", cfg.RootPath())
	output.Field(os.Stdout, "Events", strings.Join(cfg.Events, ", "))
	if p := cfg.JournalPath(); p != "" {
		output.Field(os.Stdout, "Journal", p)
	}
	return nil
}
