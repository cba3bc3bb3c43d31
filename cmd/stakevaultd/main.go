package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stakevault/config"
	"stakevault/observability/logging"
	telemetry "stakevault/observability/otel"
	"stakevault/rpc"
)

const serviceName = "stakevaultd"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./stakevault.toml", "path to node configuration (TOML or YAML)")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser := logging.Setup(serviceName, cfg.Environment, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.FromEndpoint(
		serviceName,
		cfg.Environment,
		cfg.Telemetry.Endpoint,
		cfg.Telemetry.Insecure,
		cfg.Telemetry.Headers,
		cfg.Telemetry.MetricsInterval.Duration,
	))
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	secret, err := cfg.ResolveHMACSecret()
	if err != nil {
		return err
	}

	n, err := openNode(cfg, logger)
	if err != nil {
		return err
	}
	defer n.Close()

	server, err := rpc.NewServer(n.stake, n.rewards, rpc.Config{
		ServiceName: serviceName,
		Auth: rpc.AuthConfig{
			HMACSecret: secret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew.Duration,
		},
		RateLimit: rpc.RateLimit{PerSecond: cfg.RateLimit.PerSecond, Burst: cfg.RateLimit.Burst},
		Logger:    logger.With(slog.String("module", "rpc")),
	})
	if err != nil {
		return err
	}
	server.RefreshGauges()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stakevault api listening",
			slog.String("addr", cfg.ListenAddress),
			slog.String("dataDir", cfg.DataDir),
			logging.MaskField("hmacSecret", secret))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	return nil
}
