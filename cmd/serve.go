package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
	"github.com/twiced-technology-gmbh/dirwatch/internal/journal"
	"github.com/twiced-technology-gmbh/dirwatch/internal/output"
	"github.com/twiced-technology-gmbh/dirwatch/internal/server"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve [DIR]",
	Short: "Watch a directory and expose it over HTTP",
	Long: `Starts a watcher and an HTTP server with status and lifecycle endpoints,
the event journal and a websocket feed of live events. The server exits when
interrupted or when the watcher is stopped through POST /api/v1/stop.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	addWatchFlags(serveCmd)
	addJournalFlag(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default from config serve.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	bc := server.NewBroadcaster(logger, 0)
	defer bc.Close()

	w, err := startWatcher(cmd, cfg, args, logger, func(ev *fsevent.ChangeEvent) {
		if store != nil {
			if err := store.Append(context.Background(), *ev); err != nil {
				logger.Warn("journal append failed", slog.String("path", ev.Path), slog.Any("error", err))
			}
		}
		bc.Broadcast(journal.NewEntry(*ev, time.Now()))
	})
	if err != nil {
		return err
	}
	defer w.Close()

	addr := cfg.Serve.Addr
	if a, _ := cmd.Flags().GetString("addr"); a != "" {
		addr = a
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := server.New(w, store, bc, logger)
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()

	url := "http://" + ln.Addr().String()
	if outputFormat(cfg) == output.FormatJSON {
		_ = output.JSONLine(os.Stdout, map[string]string{"status": "serving", "url": url, "root": w.Root()})
	} else {
		output.Messagef(os.Stderr, "Serving %s on %s (Ctrl+C to stop)", w.Root(), url)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", slog.String("reason", "signal"))
	case <-w.Done():
		logger.Info("shutting down", slog.String("reason", "watcher stopped"))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
	}

	w.Stop()
	bc.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
