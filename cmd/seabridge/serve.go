package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/seabridge/internal/app"
	"github.com/MimeLyc/seabridge/internal/httpapi"
	"github.com/MimeLyc/seabridge/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type poller interface {
	Resume(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, settings, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			a, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := a.Close(closeCtx); err != nil {
					log.Warn("Failed to close cleanly: %v", err)
				}
			}()

			srv := httpapi.NewServer(a.Service,
				httpapi.WithRuntimeSettingsStore(settings),
				httpapi.WithMaxUploadBytes(cfg.Jobs.MaxDocumentBytes),
			)
			return runWithComponents(ctx, cfg.HTTP.Addr, a.Service, srv)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; overrides HTTP_ADDR")
	return cmd
}

// runWithComponents resumes polling, serves HTTP until ctx is done and then
// shuts both down.
func runWithComponents(ctx context.Context, addr string, jobs poller, srv httpServer) error {
	n, err := jobs.Resume(ctx)
	if err != nil {
		return fmt.Errorf("failed to resume job polling: %w", err)
	}
	log.Info("Job poller started, %d active jobs resumed", n)

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", addr)
		errCh <- srv.ListenAndServe(addr)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown failed: %v", err)
	}
	if err := jobs.Close(shutdownCtx); err != nil {
		log.Warn("Job poller shutdown failed: %v", err)
	}
	log.Info("Stopped")
	return serveErr
}
