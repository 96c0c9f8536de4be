package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/finsense/config"
	"github.com/mohammad-safakhou/finsense/internal/agent/core"
	"github.com/mohammad-safakhou/finsense/internal/agent/telemetry"
	"github.com/mohammad-safakhou/finsense/internal/agent/workers"
	"github.com/mohammad-safakhou/finsense/internal/marketdata"
	"github.com/mohammad-safakhou/finsense/internal/memory"
)

// consoleSink renders trace events as timestamped lines on stdout.
type consoleSink struct{}

func (consoleSink) Emit(event core.TraceEvent) {
	label := string(event.Kind)
	if event.AgentID != "" {
		label = string(event.AgentID)
	}
	fmt.Printf("[%s] %-16s %s\n", event.Timestamp.Format("15:04:05"), label, event.Message)
}

func analyzeCMD() *cobra.Command {
	var cfgPath string
	var analyze = &cobra.Command{
		Use:   "analyze [ticker]",
		Short: "Run the analysis pipeline once and print the live trace",
		Long: `Runs one orchestration from a ticker symbol or demo-scenario token
(GOOGL, TSLA, POLICY_REJECT_DEMO, SLOW_PROCESS_DEMO, MARKET_FREEZE_DEMO,
UNAVAILABLE) and prints each trace event as it is emitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			store, cleanup, err := buildStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if cleanup != nil {
				defer cleanup()
			}

			logger := log.New(os.Stderr, "[AGENTS] ", log.LstdFlags)
			registry, err := workers.NewRegistry(store, memory.NewBank(), logger)
			if err != nil {
				return err
			}

			tele := telemetry.NewTelemetry(cfg.Telemetry)
			orchLogger := log.New(os.Stderr, "[ORCHESTRATOR] ", log.LstdFlags)
			orch, err := core.NewOrchestrator(cfg.Agents, registry, workers.DefaultPolicy(), orchLogger, tele)
			if err != nil {
				return err
			}

			result, err := orch.Run(cmd.Context(), core.RunRequest{Input: args[0]}, consoleSink{})
			if err != nil {
				return fmt.Errorf("run %s halted after %d steps: %w", result.ID, len(result.Steps), err)
			}

			fmt.Printf("\nfinal outcome: %s %s\n", result.Final.Status, result.Final.Payload)
			return nil
		},
	}
	analyze.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return analyze
}

// buildStore constructs the configured quote store for CLI use.
func buildStore(ctx context.Context, cfg *config.Config) (marketdata.Store, func(), error) {
	if cfg.MarketData.Backend == "redis" {
		client, err := marketdata.Conn(ctx, cfg.MarketData.Redis.Host, cfg.MarketData.Redis.Port,
			cfg.MarketData.Redis.Password, cfg.MarketData.Redis.DB, cfg.MarketData.Redis.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		store := marketdata.NewRedisStore(client)
		if err := store.Seed(ctx, marketdata.DefaultQuotes()); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = client.Close() }, nil
	}
	return marketdata.NewMemoryStore(marketdata.DefaultQuotes()...), nil, nil
}
