package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/bookscore/internal/bookcmd"
	"github.com/lehigh-university-libraries/bookscore/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bookscore HTTP API",
		Long: `Starts the bookscore HTTP API on the specified port.

The API lists the master dataset, starts scrape-to-prediction runs for new
books and rates books on demand with a model fitted on your ratings.`,
		Example: `  # Start server on the configured port (default 8888)
  bookscore serve

  # Start server on custom port
  bookscore serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bookcmd.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			svc, err := bookcmd.NewService(cfg, true)
			if err != nil {
				return err
			}
			handler := handlers.New(svc)

			addr := ":" + cfg.Server.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Bookscore API available", "addr", addr, "url", "http://localhost"+addr, "master", cfg.Master)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on (overrides config)")

	return cmd
}
