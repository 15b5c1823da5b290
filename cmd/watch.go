package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
	"github.com/twiced-technology-gmbh/dirwatch/internal/journal"
	"github.com/twiced-technology-gmbh/dirwatch/internal/output"
)

var watchCmd = &cobra.Command{
	Use:   "watch [DIR]",
	Short: "Print file changes below a directory",
	Long: `Watches DIR (default: the configured root) and prints one line per change
until interrupted, --duration elapses or --max-events have been printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	addWatchFlags(watchCmd)
	addJournalFlag(watchCmd)
	watchCmd.Flags().Int("max-events", 0, "stop after this many events (0 = unlimited)")
	watchCmd.Flags().Duration("duration", 0, "stop after this long (0 = until interrupted)")
	rootCmd.AddCommand(watchCmd)
}

// eventSink renders delivered events and appends them to the journal. It
// runs on the watcher's pump goroutine.
type eventSink struct {
	w      io.Writer
	format output.Format
	store  journal.Store
	logger *slog.Logger
	max    int
	count  int
	limit  chan struct{}
	once   sync.Once
}

func newEventSink(w io.Writer, format output.Format, store journal.Store, logger *slog.Logger, maxEvents int) *eventSink {
	return &eventSink{
		w:      w,
		format: format,
		store:  store,
		logger: logger,
		max:    maxEvents,
		limit:  make(chan struct{}),
	}
}

func (s *eventSink) handle(ev *fsevent.ChangeEvent) {
	if s.max > 0 && s.count >= s.max {
		return
	}

	if s.store != nil {
		if err := s.store.Append(context.Background(), *ev); err != nil {
			s.logger.Warn("journal append failed", slog.String("path", ev.Path), slog.Any("error", err))
		}
	}

	e := journal.NewEntry(*ev, time.Now())
	switch s.format {
	case output.FormatJSON:
		_ = output.JSONLine(s.w, e)
	case output.FormatCompact:
		output.EventCompact(s.w, e)
	default:
		output.EventRow(s.w, e)
	}

	s.count++
	if s.max > 0 && s.count >= s.max {
		s.once.Do(func() { close(s.limit) })
	}
}

// reached is closed once max events have been handled.
func (s *eventSink) reached() <-chan struct{} { return s.limit }

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	store, err := openJournal(cmd, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	maxEvents, _ := cmd.Flags().GetInt("max-events")
	duration, _ := cmd.Flags().GetDuration("duration")

	format := outputFormat(cfg)
	sink := newEventSink(os.Stdout, format, store, logger, maxEvents)

	w, err := startWatcher(cmd, cfg, args, logger, sink.handle)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var timeout <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		timeout = timer.C
	}

	if format == output.FormatTable {
		output.EventHeader(os.Stdout)
		logger.Info("watching", slog.String("root", w.Root()), slog.String("events", w.Mask().String()))
	}

	select {
	case <-ctx.Done():
	case <-timeout:
	case <-sink.reached():
	case <-w.Done():
	}

	w.Stop()
	if err := w.Close(); err != nil {
		logger.Warn("releasing stream", slog.Any("error", err))
	}

	m := w.Metrics()
	logger.Info("watch finished",
		slog.Uint64("delivered", m.Delivered),
		slog.Uint64("dropped", m.Dropped),
		slog.Uint64("batches", m.Batches),
	)
	return nil
}
