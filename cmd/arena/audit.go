package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenArena/internal/chain"
	"tokenArena/internal/config"
	"tokenArena/internal/storage/postgres"
)

// runAudit compares the recorded pool reserves against the on-chain token
// balances of the pool's settlement account. Emergency withdrawals and
// failed transfer unwinds show up here as drift.
func runAudit(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAudit(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if !common.IsHexAddress(cfg.TokenX) || !common.IsHexAddress(cfg.TokenY) {
		return fmt.Errorf("token-x and token-y must be hex addresses")
	}
	if !common.IsHexAddress(cfg.PoolAccount) {
		return fmt.Errorf("pool-account must be a hex address")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	snap, ok, err := store.LoadPoolSnapshot(ctx, cfg.PoolName)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return fmt.Errorf("no snapshot for pool %q", cfg.PoolName)
	}

	lastSeq, _, err := store.LoadState(ctx, "replay:"+cfg.PoolName)
	if err != nil {
		return fmt.Errorf("load replay state: %w", err)
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}

	// Pin both balance reads to the same block.
	head, err := chainClient.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}
	atBlock := new(big.Int).SetUint64(head)

	account := common.HexToAddress(cfg.PoolAccount)
	balX, err := chainClient.ERC20BalanceOf(ctx, common.HexToAddress(cfg.TokenX), account, atBlock)
	if err != nil {
		return fmt.Errorf("balance of token-x: %w", err)
	}
	balY, err := chainClient.ERC20BalanceOf(ctx, common.HexToAddress(cfg.TokenY), account, atBlock)
	if err != nil {
		return fmt.Errorf("balance of token-y: %w", err)
	}

	driftX, err := drift(snap.ReserveX, balX)
	if err != nil {
		return fmt.Errorf("reserve_x: %w", err)
	}
	driftY, err := drift(snap.ReserveY, balY)
	if err != nil {
		return fmt.Errorf("reserve_y: %w", err)
	}

	logger.Info("audit result",
		zap.String("pool", cfg.PoolName),
		zap.String("chain_id", chainID.String()),
		zap.Uint64("block", head),
		zap.Uint64("last_applied_seq", lastSeq),
		zap.String("reserve_x", snap.ReserveX),
		zap.String("balance_x", balX.String()),
		zap.String("drift_x", driftX.String()),
		zap.String("reserve_y", snap.ReserveY),
		zap.String("balance_y", balY.String()),
		zap.String("drift_y", driftY.String()),
	)

	if driftX.Sign() != 0 || driftY.Sign() != 0 {
		return fmt.Errorf("pool %q reserves drift from on-chain balances (x: %s, y: %s)",
			cfg.PoolName, driftX, driftY)
	}
	return nil
}

// drift returns balance - recorded reserve.
func drift(reserve string, balance *big.Int) (*big.Int, error) {
	recorded, ok := new(big.Int).SetString(reserve, 10)
	if !ok {
		return nil, fmt.Errorf("invalid recorded reserve: %q", reserve)
	}
	return new(big.Int).Sub(balance, recorded), nil
}
