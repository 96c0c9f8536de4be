package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mohammad-safakhou/finsense/config"
	"github.com/mohammad-safakhou/finsense/internal/agent/core"
	"github.com/mohammad-safakhou/finsense/internal/agent/telemetry"
	"github.com/mohammad-safakhou/finsense/internal/agent/workers"
	"github.com/mohammad-safakhou/finsense/internal/marketdata"
	"github.com/mohammad-safakhou/finsense/internal/memory"
	"github.com/mohammad-safakhou/finsense/internal/stream"
)

// Run wires every dependency and serves the HTTP API until the listener
// fails.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	ctx := context.Background()

	// Quote store backend
	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	tele := telemetry.NewTelemetry(cfg.Telemetry)
	e.GET("/metrics", echo.WrapHandler(tele.Handler()))

	agentLogger := log.New(log.Writer(), "[AGENTS] ", log.LstdFlags)
	registry, err := workers.NewRegistry(store, memory.NewBank(), agentLogger)
	if err != nil {
		return fmt.Errorf("failed to build registry: %w", err)
	}

	orchLogger := log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags)
	orch, err := core.NewOrchestrator(cfg.Agents, registry, workers.DefaultPolicy(), orchLogger, tele)
	if err != nil {
		return fmt.Errorf("failed to build orchestrator: %w", err)
	}

	// Optional trace mirror onto a Redis stream
	var mirror core.TraceSink
	if cfg.Stream.Enabled {
		client, err := marketdata.Conn(ctx, cfg.MarketData.Redis.Host, cfg.MarketData.Redis.Port,
			cfg.MarketData.Redis.Password, cfg.MarketData.Redis.DB, cfg.MarketData.Redis.Timeout)
		if err != nil {
			return fmt.Errorf("failed to connect trace mirror: %w", err)
		}
		mirror = stream.NewSink(stream.NewPublisher(client, cfg.Stream.Name, cfg.Stream.MaxLen), nil)
	}

	runs := NewRunsHandler(orch, mirror, log.New(log.Writer(), "[RUNS] ", log.LstdFlags))
	runs.Register(e.Group("/api"))

	return e.Start(cfg.General.Listen)
}

// buildStore constructs the configured quote store, seeded with the demo
// quotes.
func buildStore(ctx context.Context, cfg *config.Config) (marketdata.Store, func(), error) {
	switch cfg.MarketData.Backend {
	case "redis":
		client, err := marketdata.Conn(ctx, cfg.MarketData.Redis.Host, cfg.MarketData.Redis.Port,
			cfg.MarketData.Redis.Password, cfg.MarketData.Redis.DB, cfg.MarketData.Redis.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		store := marketdata.NewRedisStore(client)
		if err := store.Seed(ctx, marketdata.DefaultQuotes()); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to seed quotes: %w", err)
		}
		return store, func() { _ = client.Close() }, nil
	default:
		return marketdata.NewMemoryStore(marketdata.DefaultQuotes()...), nil, nil
	}
}
