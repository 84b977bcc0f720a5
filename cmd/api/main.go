// Package main is the entry point for the relay HTTP API.
//
// It loads configuration, wires the relay components, and serves the webhook,
// cron, OAuth, and health routes. Inside AWS Lambda the router is exposed
// through a function URL adapter; elsewhere it listens on the configured port.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
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
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/lambdaurl"

	"hubrelay/internal/api/handlers"
	"hubrelay/internal/app"
	"hubrelay/internal/config"
	"hubrelay/internal/core"
	"hubrelay/internal/relay"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("hubrelay API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"fanout", string(cfg.Fanout.Mode),
	)
	warnAsyncFanoutOnLambda(cfg, logger, isLambdaEnvironment())

	srv, err := buildServer(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		return runLambda(srv, logger)
	}
	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires components and mounts every route.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.Server, error) {
	comps, err := app.Build(ctx, cfg, logger, app.Options{
		GuardOutbound: cfg.Environment != "local",
	})
	if err != nil {
		return nil, fmt.Errorf("wiring components: %w", err)
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = comps.HealthProbes()

	webhooks := handlers.NewWebhookHandler(comps.Verifier, comps.Fanout, handlers.WebhookConfig{
		SinkURL:       cfg.Slack.WebhookURL.Unmask(),
		PublicBaseURL: cfg.Server.PublicBaseURL,
	}, logger)

	// A nil *FormPoller must reach the handler as a nil interface.
	var poller handlers.Poller
	if comps.Poller != nil {
		poller = comps.Poller
	}
	cron := handlers.NewCronHandler(poller, cfg.Poller.CronSecret.Unmask(), logger)

	oauth := handlers.NewOAuthHandler(comps.OAuth, cfg.OAuth.ClientID, srv.Validator, logger)

	srv.RouteRegistrars = append(srv.RouteRegistrars,
		webhooks.RegisterRoutes,
		cron.RegisterRoutes,
		oauth.RegisterRoutes,
	)

	if async, ok := comps.Fanout.(*relay.AsyncFanout); ok {
		srv.OnShutdown(func(context.Context) { async.Wait() })
	}

	srv.MountRoutes()
	return srv, nil
}

// isLambdaEnvironment detects whether the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// warnAsyncFanoutOnLambda flags a configuration that loses notifications: a
// frozen Lambda environment stops the detached fan-out started after the
// response.
func warnAsyncFanoutOnLambda(cfg *config.Config, logger *slog.Logger, onLambda bool) {
	if !onLambda || cfg.Fanout.Mode != config.FanoutAsync {
		return
	}
	logger.Warn("async fan-out under Lambda may drop notifications once the response is sent; set FANOUT_MODE=queue",
		"fanout", string(cfg.Fanout.Mode),
	)
}

// runLambda serves the router behind a Lambda function URL. lambdaurl.Start
// never returns.
func runLambda(srv *core.Server, logger *slog.Logger) error {
	logger.Info("starting in Lambda mode")
	lambdaurl.Start(srv.Handler())
	return nil
}

// runHTTPServer starts a standard HTTP server with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Drains in-flight webhook fan-out.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
