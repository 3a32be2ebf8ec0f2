package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenArena/internal/config"
	"tokenArena/internal/ledger"
	"tokenArena/internal/league"
	"tokenArena/internal/model"
	"tokenArena/internal/pool"
	"tokenArena/internal/replay"
	"tokenArena/internal/storage"
	"tokenArena/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}

	floorRate, err := parseBig("floor-rate", cfg.FloorRate)
	if err != nil {
		return err
	}
	faucet, err := parseBig("faucet", cfg.Faucet)
	if err != nil {
		return err
	}
	entryFees := map[model.Tier]string{
		model.TierLow:  cfg.EntryFeeLow,
		model.TierMid:  cfg.EntryFeeMid,
		model.TierHigh: cfg.EntryFeeHigh,
	}
	tiers := make(map[model.Tier]model.TierConfig, len(entryFees))
	for tier, raw := range entryFees {
		fee, err := parseBig("entry-fee-"+tier.String(), raw)
		if err != nil {
			return err
		}
		tiers[tier] = model.TierConfig{
			EntryFee:           fee,
			AutoStartThreshold: cfg.AutoStartCount,
			Active:             true,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	assets := ledger.NewMemoryLedger()
	clock := &replay.Clock{}

	poolEngine, err := pool.NewEngine(pool.Config{
		AssetX:    cfg.AssetX,
		AssetY:    cfg.AssetY,
		Account:   "pool:" + cfg.PoolName,
		Operator:  cfg.Operator,
		FloorRate: floorRate,
	}, assets, logger)
	if err != nil {
		return fmt.Errorf("build pool engine: %w", err)
	}

	leagueEngine, err := league.NewEngine(league.Config{
		Asset:          cfg.StakeAsset,
		Account:        "league:" + cfg.PoolName,
		Operator:       cfg.Operator,
		FeeRecipient:   cfg.FeeRecipient,
		LeagueDuration: cfg.LeagueDuration,
		SpawnTimeout:   cfg.SpawnTimeout,
		PlatformFeeBps: cfg.PlatformFeeBps,
		Tiers:          tiers,
		Now:            clock.Now,
	}, assets, logger)
	if err != nil {
		return fmt.Errorf("build league engine: %w", err)
	}

	sink := storage.NewJsonlSink(cfg.Out)

	driver := replay.NewDriver(replay.RunConfig{
		InputPath:         cfg.Input,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		BatchSize:         cfg.BatchSize,
		Faucet:            faucet,
		FaucetAssets:      []string{cfg.AssetX, cfg.AssetY, cfg.StakeAsset},
	}, poolEngine, leagueEngine, assets, sink, clock, logger)

	logger.Info("replay start",
		zap.String("in", cfg.Input),
		zap.String("out", cfg.Out),
		zap.String("pool", cfg.PoolName),
		zap.String("asset_x", cfg.AssetX),
		zap.String("asset_y", cfg.AssetY),
		zap.String("stake_asset", cfg.StakeAsset),
		zap.Duration("league_duration", cfg.LeagueDuration),
	)

	if err := driver.Run(ctx); err != nil {
		return err
	}

	if cfg.PGDSN == "" {
		return nil
	}
	return flushToPostgres(ctx, cfg, poolEngine, leagueEngine, driver.LastAppliedSeq(), logger)
}

// flushToPostgres persists the final pool snapshot, the full league history,
// and the sequence number the snapshot corresponds to.
func flushToPostgres(
	ctx context.Context,
	cfg config.ReplayConfig,
	poolEngine *pool.Engine,
	leagueEngine *league.Engine,
	lastSeq uint64,
	logger *zap.Logger,
) error {
	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	snap := poolEngine.Snapshot(cfg.PoolName)
	snap.TakenAt = time.Now().UTC()
	if err := store.UpsertPoolSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("flush pool snapshot: %w", err)
	}

	rows := leagueEngine.LeagueRows()
	if err := store.UpsertLeagues(ctx, rows); err != nil {
		return fmt.Errorf("flush leagues: %w", err)
	}
	for _, row := range rows {
		board, err := leagueEngine.LeaderboardRows(row.LeagueID)
		if err != nil {
			return err
		}
		if err := store.UpsertLeaderboard(ctx, board); err != nil {
			return fmt.Errorf("flush leaderboard %d: %w", row.LeagueID, err)
		}
	}

	if err := store.SaveState(ctx, "replay:"+cfg.PoolName, lastSeq); err != nil {
		return fmt.Errorf("flush replay state: %w", err)
	}

	logger.Info("postgres flush complete",
		zap.Int("leagues", len(rows)),
		zap.Uint64("last_applied_seq", lastSeq),
	)
	return nil
}

func parseBig(name, value string) (*big.Int, error) {
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q", name, value)
	}
	return parsed, nil
}
