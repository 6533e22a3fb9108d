package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/invoicepipe/invoicepipe/internal/api"
	"github.com/invoicepipe/invoicepipe/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only sales reporting API",
	Long: `The serve command exposes aggregate queries over the fact store:

  GET /api/sales/customers?top=N
  GET /api/sales/time?period=monthly|weekly&start=YYYY-MM-DD&end=YYYY-MM-DD
  GET /healthz

The API never writes; the pipeline is the fact store's only writer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	pool, err := store.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	server := api.NewServer(store.NewRepository(pool), &cfg.Server)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("server stopped")
	return nil
}
