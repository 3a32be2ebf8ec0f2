package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "arena",
		Short:        "Token economy engines: constant-product pool and tiered leagues",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply an operation stream to the engines",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input operations JSONL")
	replayCmd.Flags().String("out", "./data/results.jsonl", "output results JSONL")
	replayCmd.Flags().String("checkpoint", "./data/replay_checkpoint.json", "checkpoint file path")
	replayCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	replayCmd.Flags().Int("batch-size", 1000, "results per sink flush")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshot/history flush (optional)")
	replayCmd.Flags().String("pool-name", "main", "pool name for snapshots")
	replayCmd.Flags().String("asset-x", "tokenX", "pool asset X symbol")
	replayCmd.Flags().String("asset-y", "tokenY", "pool asset Y symbol")
	replayCmd.Flags().String("stake-asset", "tokenY", "league stake asset symbol")
	replayCmd.Flags().String("operator", "operator", "operator account")
	replayCmd.Flags().String("fee-recipient", "treasury", "platform fee account")
	replayCmd.Flags().String("floor-rate", "1000000000000000000", "scaled X-per-Y floor rate")
	replayCmd.Flags().String("faucet", "1000000000", "balance minted per asset to first-seen callers")
	replayCmd.Flags().Duration("league-duration", 3*time.Minute, "active league window length")
	replayCmd.Flags().Duration("spawn-timeout", 10*time.Minute, "respawn stalled waiting leagues after")
	replayCmd.Flags().Uint32("platform-fee-bps", 500, "platform fee in basis points (max 1000)")
	replayCmd.Flags().String("entry-fee-low", "100", "low tier entry fee")
	replayCmd.Flags().String("entry-fee-mid", "1000", "mid tier entry fee")
	replayCmd.Flags().String("entry-fee-high", "10000", "high tier entry fee")
	replayCmd.Flags().Int("auto-start-count", 1, "players required to start a league")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Reconcile pool snapshot reserves against on-chain token balances",
		RunE:  runAudit,
	}

	auditCmd.Flags().String("rpc", "", "RPC URL")
	auditCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	auditCmd.Flags().String("pool-name", "main", "pool name to audit")
	auditCmd.Flags().String("token-x", "", "asset X token contract address")
	auditCmd.Flags().String("token-y", "", "asset Y token contract address")
	auditCmd.Flags().String("pool-account", "", "pool settlement account address")
	auditCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(auditCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
