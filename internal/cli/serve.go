package cli

import (
	"context"
	stderrors "errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the Camunda workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Logging)
	log.Info("starting command pipeline", map[string]interface{}{
		"environment": cfg.App.Environment,
		"version":     cfg.App.Version,
		"ledger":      cfg.Ledger.Backend,
		"audit":       cfg.Audit.Backend,
		"camunda":     cfg.Camunda.Enabled,
	})

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, prometheus.DefaultRegisterer, log)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received", nil)
	case err = <-serveErr:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", map[string]interface{}{"error": err.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if shutdownErr := a.server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("http shutdown incomplete", map[string]interface{}{"error": shutdownErr.Error()})
	}
	a.close(shutdownCtx)
	log.Info("command pipeline stopped", nil)

	if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
