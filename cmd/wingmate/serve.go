package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/quailyquaily/wingmate/internal/httpapi"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			bind := strings.TrimSpace(flagOrViperString(cmd, "server-bind", "server.bind"))
			if bind == "" {
				bind = "127.0.0.1"
			}
			port := flagOrViperInt(cmd, "server-port", "server.port")
			if port <= 0 {
				port = 8788
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, logger, err := buildService(ctx)
			if err != nil {
				return err
			}

			api := httpapi.NewServer(svc, logger, prometheus.NewRegistry())

			srv := &http.Server{
				Addr:              fmt.Sprintf("%s:%d", bind, port),
				Handler:           api.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			sweepInterval := flagOrViperDuration(cmd, "sweep-interval", "sweep.interval")
			if sweepInterval <= 0 {
				sweepInterval = time.Minute
			}
			go func() {
				ticker := time.NewTicker(sweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						closed, err := svc.AutoghostSweep(ctx)
						if err != nil {
							logger.Warn("autoghost sweep failed", "error", err)
							continue
						}
						api.RecordSweep(closed)
					}
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server listening", "addr", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return err
				}
			}
			logger.Info("http server stopped")
			return nil
		},
	}

	cmd.Flags().String("server-bind", "", "Bind address (defaults to 127.0.0.1).")
	cmd.Flags().Int("server-port", 0, "Listen port (defaults to 8788).")
	cmd.Flags().Duration("sweep-interval", 0, "Autoghost sweep interval (0 uses the default).")
	return cmd
}
