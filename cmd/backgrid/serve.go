package main

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/backgrid/internal/api"
	"github.com/newthinker/backgrid/internal/app"
	"github.com/newthinker/backgrid/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the backgrid HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	application, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}
	defer application.Close()

	server, err := api.NewServer(api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		APIKey:         cfg.Server.APIKey,
		Version:        Version,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, api.Dependencies{
		Service: application,
		Metrics: application.Metrics(),
	}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	log.Info("starting backgrid server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("auth", cfg.Server.APIKey != ""),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	// the root context is cancelled on SIGINT/SIGTERM
	select {
	case <-cmd.Context().Done():
	case err := <-errCh:
		return err
	}

	log.Info("shutting down backgrid server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
