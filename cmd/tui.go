package cmd

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
	"github.com/twiced-technology-gmbh/dirwatch/internal/journal"
	"github.com/twiced-technology-gmbh/dirwatch/internal/logging"
	"github.com/twiced-technology-gmbh/dirwatch/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui [DIR]",
	Short: "Browse file changes in a terminal UI",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTUI,
}

func init() {
	addWatchFlags(tuiCmd)
	addJournalFlag(tuiCmd)
	tuiCmd.Flags().Int("max-events", tui.DefaultMaxEvents, "events kept on screen")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Log lines would tear the alternate screen.
	logger := logging.Discard()

	store, err := openJournal(cmd, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	// Events that arrive before the program exists are only journaled.
	var prog atomic.Pointer[tea.Program]
	w, err := startWatcher(cmd, cfg, args, logger, func(ev *fsevent.ChangeEvent) {
		if store != nil {
			_ = store.Append(cmd.Context(), *ev)
		}
		if p := prog.Load(); p != nil {
			p.Send(tui.EventMsg{Entry: journal.NewEntry(*ev, time.Now())})
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	maxEvents, _ := cmd.Flags().GetInt("max-events")
	p := tea.NewProgram(tui.New(w, maxEvents), tea.WithAltScreen())
	prog.Store(p)

	go func() {
		<-w.Done()
		p.Send(tui.StoppedMsg{})
	}()

	_, err = p.Run()
	w.Stop()
	return err
}
