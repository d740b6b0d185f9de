package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"gym-access-backend/config"
	"gym-access-backend/internal/api"
	"gym-access-backend/internal/sweeper"
)

var configPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "gymd",
		Short: "Gym equipment access service",
		Long: `gymd arbitrates exclusive use of gym equipment, keeps the waiting line
in front of each item and notifies members when it is their turn.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML configuration (default $CONFIG_PATH or ./config/config.yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the expiry sweeper and the notification workers",
		RunE:  runServe,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Run one expiry sweep and exit",
		RunE:  runSweep,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./config/config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "path", path)
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	a.dispatcher.Start(ctx)

	if cfg.Sweeper.Enabled {
		sw := sweeper.New(a.coordinator, cfg.Sweeper.Interval, logger, a.metrics)
		go sw.Run(ctx)
	} else {
		logger.Warn("expiry sweeper disabled; sessions and claims only expire through another instance")
	}

	handler := api.NewHandler(a.coordinator, a.db, a.webpush, a.hub, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		RateLimit: rate.Limit(cfg.Server.RateLimitPerSec),
		RateBurst: cfg.Server.RateLimitBurst,
		CacheTTL:  time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		Metrics:   a.metrics,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping services")
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	logger.Info("server gracefully stopped")
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	a.dispatcher.Start(ctx)

	res := sweeper.New(a.coordinator, cfg.Sweeper.Interval, logger, a.metrics).SweepOnce(ctx)
	fmt.Printf("sessions released: %d, claims expired: %d\n", res.SessionsReleased, res.ClaimsExpired)

	// Give the workers a moment to hand queued notifications to the sinks.
	a.dispatcher.Drain(5 * time.Second)
	return nil
}
