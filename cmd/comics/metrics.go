package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/comics-catalog-client/pkg/metrics"
	"github.com/spf13/cobra"
)

func newMetricsCmd(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve Prometheus metrics and health endpoints",
		Long: `Starts an HTTP server exposing /metrics, /health and /ready.

/ready fails while the configured Redis cache is unreachable.`,
		Example: `  comics metrics --addr :9090`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				// connects the cache so /ready reflects it
				if _, err := a.catalogClient(ctx); err != nil {
					return err
				}

				server := &http.Server{
					Addr:              addr,
					Handler:           newServeMux(a),
					ReadHeaderTimeout: 5 * time.Second,
				}

				serverErr := make(chan error, 1)
				go func() {
					a.logger.Info().Str("addr", addr).Msg("Serving metrics")
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						serverErr <- err
					}
				}()

				select {
				case <-ctx.Done():
					a.logger.Info().Msg("Shutting down metrics server")
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := server.Shutdown(shutdownCtx); err != nil {
						return fmt.Errorf("shutdown metrics server: %w", err)
					}
					return nil
				case err := <-serverErr:
					return err
				}
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":9090", "Listen address")

	return cmd
}

func newServeMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(a))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func readyHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := a.ping(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}
