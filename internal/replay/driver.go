package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"go.uber.org/zap"

	"tokenArena/internal/ledger"
	"tokenArena/internal/league"
	"tokenArena/internal/model"
	"tokenArena/internal/pool"
	"tokenArena/internal/storage"
)

// RunConfig holds runtime settings for the replay driver.
type RunConfig struct {
	InputPath         string
	CheckpointPath    string
	CheckpointEnabled bool
	BatchSize         int
	Faucet            *big.Int // balance minted to a caller on first sight
	FaucetAssets      []string
}

// Driver applies a JSONL stream of operations to the engines in sequence
// order, one at a time. Each operation is all-or-nothing inside its engine;
// the driver records the outcome either way and only aborts on I/O failure.
type Driver struct {
	cfg        RunConfig
	pool       *pool.Engine
	league     *league.Engine
	assets     *ledger.MemoryLedger
	sink       storage.ResultSink
	clock      *Clock
	checkpoint *CheckpointStore
	funded     map[string]struct{}
	lastSeq    uint64
	logger     *zap.Logger
}

// LastAppliedSeq returns the highest sequence number applied so far.
func (d *Driver) LastAppliedSeq() uint64 { return d.lastSeq }

// NewDriver builds a Driver with its dependencies.
func NewDriver(
	cfg RunConfig,
	poolEngine *pool.Engine,
	leagueEngine *league.Engine,
	assets *ledger.MemoryLedger,
	sink storage.ResultSink,
	clock *Clock,
	logger *zap.Logger,
) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		cfg:        cfg,
		pool:       poolEngine,
		league:     leagueEngine,
		assets:     assets,
		sink:       sink,
		clock:      clock,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		funded:     make(map[string]struct{}),
		logger:     logger,
	}
}

// Run executes the replay loop over the input file.
func (d *Driver) Run(ctx context.Context) error {
	if d.pool == nil || d.league == nil {
		return fmt.Errorf("engines are nil")
	}
	if d.sink == nil {
		return fmt.Errorf("result sink is nil")
	}
	if d.cfg.BatchSize <= 0 {
		d.cfg.BatchSize = 1000
	}

	var lastApplied uint64
	if d.checkpoint != nil {
		cp, ok, err := d.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok {
			lastApplied = cp.LastAppliedSeq
			d.lastSeq = lastApplied
			d.logger.Info("resume from checkpoint", zap.Uint64("last_applied", lastApplied))
		}
	}

	file, err := os.Open(d.cfg.InputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	results := make([]model.ResultRecord, 0, d.cfg.BatchSize)
	applied := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record model.OperationRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("parse operation: %w", err)
		}
		if record.Seq <= lastApplied {
			continue
		}

		d.clock.Set(time.Unix(record.Timestamp, 0).UTC())
		d.fund(record.Caller)

		results = append(results, d.apply(record))
		lastApplied = record.Seq
		d.lastSeq = record.Seq
		applied++

		if len(results) >= d.cfg.BatchSize {
			if err := d.flush(results, lastApplied); err != nil {
				return err
			}
			results = results[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	if len(results) > 0 {
		if err := d.flush(results, lastApplied); err != nil {
			return err
		}
	}

	d.logger.Info("replay complete", zap.Int("applied", applied), zap.Uint64("last_seq", lastApplied))
	return nil
}

func (d *Driver) flush(results []model.ResultRecord, lastApplied uint64) error {
	if err := d.sink.PutResultBatch(results); err != nil {
		return fmt.Errorf("store results: %w", err)
	}
	if d.checkpoint != nil {
		if err := d.checkpoint.Save(lastApplied); err != nil {
			return err
		}
	}
	return nil
}

// fund mints the faucet balance for first-seen callers so replay streams are
// self-contained.
func (d *Driver) fund(caller string) {
	if caller == "" || d.assets == nil || d.cfg.Faucet == nil || d.cfg.Faucet.Sign() <= 0 {
		return
	}
	if _, ok := d.funded[caller]; ok {
		return
	}
	d.funded[caller] = struct{}{}
	for _, asset := range d.cfg.FaucetAssets {
		d.assets.Mint(asset, caller, d.cfg.Faucet)
	}
}

func (d *Driver) apply(record model.OperationRecord) model.ResultRecord {
	result := model.ResultRecord{
		Seq:       record.Seq,
		Op:        record.Op,
		Caller:    record.Caller,
		AppliedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	var err error
	switch record.Op {
	case model.OpAddLiquidity:
		err = d.applyAddLiquidity(record, &result)
	case model.OpRemoveLiquidity:
		err = d.applyRemoveLiquidity(record, &result)
	case model.OpSwapXForY, model.OpSwapYForX:
		err = d.applySwap(record, &result)
	case model.OpSubmitScore:
		err = d.applySubmitScore(record, &result)
	case model.OpCheckExpired:
		err = d.league.CheckAndFinishExpiredLeagues()
	default:
		err = fmt.Errorf("unknown op: %q", record.Op)
	}

	if err != nil {
		result.Error = err.Error()
		d.logger.Debug("operation rejected",
			zap.Uint64("seq", record.Seq),
			zap.String("op", record.Op),
			zap.String("reason", err.Error()),
		)
		return result
	}
	result.OK = true
	return result
}

func (d *Driver) applyAddLiquidity(record model.OperationRecord, result *model.ResultRecord) error {
	amountX, err := parseAmount(record.AmountX)
	if err != nil {
		return fmt.Errorf("amount_x: %w", err)
	}
	amountY, err := parseAmount(record.AmountY)
	if err != nil {
		return fmt.Errorf("amount_y: %w", err)
	}
	minted, err := d.pool.AddLiquidity(record.Caller, amountX, amountY)
	if err != nil {
		return err
	}
	result.SharesOut = minted.String()
	return nil
}

func (d *Driver) applyRemoveLiquidity(record model.OperationRecord, result *model.ResultRecord) error {
	shares, err := parseAmount(record.Shares)
	if err != nil {
		return fmt.Errorf("shares: %w", err)
	}
	payoutX, payoutY, err := d.pool.RemoveLiquidity(record.Caller, shares)
	if err != nil {
		return err
	}
	result.AmountOut = payoutX.String() + "/" + payoutY.String()
	return nil
}

func (d *Driver) applySwap(record model.OperationRecord, result *model.ResultRecord) error {
	amountIn, err := parseAmount(record.AmountIn)
	if err != nil {
		return fmt.Errorf("amount_in: %w", err)
	}
	minOut, err := parseAmount(record.MinOut)
	if err != nil {
		return fmt.Errorf("min_out: %w", err)
	}

	var out *big.Int
	if record.Op == model.OpSwapXForY {
		out, err = d.pool.SwapXForY(record.Caller, amountIn, minOut)
	} else {
		out, err = d.pool.SwapYForX(record.Caller, amountIn, minOut)
	}
	if err != nil {
		return err
	}
	result.AmountOut = out.String()
	return nil
}

func (d *Driver) applySubmitScore(record model.OperationRecord, result *model.ResultRecord) error {
	tier, err := model.ParseTier(record.Tier)
	if err != nil {
		return err
	}
	leagueID, err := d.league.SubmitScore(record.Caller, tier, record.Score)
	result.LeagueID = leagueID
	return err
}

func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
