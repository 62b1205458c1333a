package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fikri/engram/internal/metrics"
	"github.com/fikri/engram/pkg/service"
	"github.com/fikri/engram/pkg/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine in the foreground",
	Long: `Run the background workers, the tier transition scheduler, the
ingest directory watcher, and the metrics endpoint until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lg, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer lg.Close()

	m := metrics.New()
	svc, err := service.New(cfg, lg.Zerolog(), m)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.Start(ctx)

	if cfg.Watch.Enabled {
		w, err := watcher.New(watcher.Config{
			Dir:      cfg.Watch.Dir,
			Debounce: time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
			OnDocument: func(path string) error {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				_, err = svc.IngestDocument(ctx, path, data, service.StoreRequest{})
				return err
			},
			Logger: lg.Zerolog(),
		})
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		server := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		zl := lg.Zerolog()
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zl.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
		zl.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics endpoint listening")
	}

	fmt.Println("Engram running. Press Ctrl+C to stop.")
	<-ctx.Done()
	fmt.Println("Shutting down...")
	return nil
}
