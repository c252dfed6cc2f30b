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

	"github.com/efreitasn/tickmarket/internal/config"
	"github.com/efreitasn/tickmarket/internal/handler"
	"github.com/efreitasn/tickmarket/internal/service"
	"github.com/efreitasn/tickmarket/internal/sim"
	"github.com/efreitasn/tickmarket/internal/stream"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	envFile := flag.String("env-file", "", "Load variables from this file instead of ./.env")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	market, err := sim.New(cfg.Market, sim.WithLogger(logger))
	if err != nil {
		logger.Error("failed to initialize market", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// SIGINT/SIGTERM cancels the run and, afterwards, the server.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if cfg.Port > 0 {
		hub := stream.NewHub(logger)
		go hub.Run(ctx)
		events, _ := market.Subscribe(64)
		go hub.Forward(ctx, events)

		router := handler.NewRouter(service.NewMarketService(market), hub.HandleWS, logger)

		addr := fmt.Sprintf(":%d", cfg.Port)
		srv = &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		}

		go func() {
			logger.Info("server starting", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("server error", slog.String("error", err.Error()))
				os.Exit(1)
			}
		}()
	}

	runErr := market.Run(ctx, cfg.TickInterval)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("simulation failed", slog.String("error", runErr.Error()))
	}
	logFinalState(logger, market)

	if srv != nil {
		if ctx.Err() == nil {
			logger.Info("run complete, serving results until shutdown")
			<-ctx.Done()
		}
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.String("error", err.Error()))
		}
		logger.Info("server stopped")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}

// logFinalState logs each asset's final price and the market-wide totals
// against their initial values.
func logFinalState(logger *slog.Logger, m *sim.Simulation) {
	prices := m.Prices()
	for _, a := range m.Assets() {
		logger.Info("final price",
			slog.String("asset", string(a)),
			slog.String("price", prices[a].String()),
		)
	}

	totals, initial := m.Totals(), m.InitialTotals()
	logger.Info("final totals",
		slog.Int("tick", m.Tick()),
		slog.String("state", m.State().String()),
		slog.String("cash", totals.Cash.String()),
		slog.String("initial_cash", initial.Cash.String()),
	)
	for _, a := range m.Assets() {
		logger.Info("final inventory",
			slog.String("asset", string(a)),
			slog.Int64("units", totals.Inventory[a]),
			slog.Int64("initial_units", initial.Inventory[a]),
		)
	}
}
