package pool

import (
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"tokenArena/internal/ledger"
	"tokenArena/internal/model"
	"tokenArena/internal/numeric"
)

// Engine error classes. Operations wrap these so callers can errors.Is on
// the failure kind.
var (
	ErrPaused                = errors.New("pool is paused")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrZeroShares            = errors.New("share mint would be zero")
	ErrInsufficientShares    = errors.New("insufficient shares")
	ErrSlippage              = errors.New("output below minimum")
	ErrBelowFloor            = errors.New("rate below floor")
	ErrUnauthorized          = errors.New("caller is not the operator")
	ErrLedger                = errors.New("ledger transfer failed")
)

// Config holds the static identity of a pool.
type Config struct {
	AssetX    string
	AssetY    string
	Account   string // settlement account holding the reserves
	Operator  string
	FloorRate *big.Int // scaled X-per-Y minimum for the protected direction
}

// Engine is a constant-product market maker over two assets with LP-share
// accounting. Operations are sequential; callers serialize externally. Every
// operation either completes or leaves no observable change: bookkeeping
// already committed is restored and debits already taken are returned when a
// later ledger call fails.
type Engine struct {
	cfg       Config
	assets    ledger.AssetLedger
	state     *model.PoolState
	positions map[string]*big.Int
	paused    bool
	logger    *zap.Logger
}

// NewEngine builds a pool engine over the given asset ledger.
func NewEngine(cfg Config, assets ledger.AssetLedger, logger *zap.Logger) (*Engine, error) {
	if assets == nil {
		return nil, fmt.Errorf("asset ledger is nil")
	}
	if cfg.AssetX == "" || cfg.AssetY == "" || cfg.AssetX == cfg.AssetY {
		return nil, fmt.Errorf("pool requires two distinct assets")
	}
	if cfg.Account == "" {
		return nil, fmt.Errorf("pool account is required")
	}
	if cfg.FloorRate == nil || cfg.FloorRate.Sign() <= 0 {
		return nil, fmt.Errorf("floor rate must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cfg:       cfg,
		assets:    assets,
		state:     model.NewPoolState(cfg.FloorRate),
		positions: make(map[string]*big.Int),
		logger:    logger,
	}, nil
}

// AddLiquidity debits both assets from caller and mints LP shares. The first
// deposit mints isqrt(amountX*amountY); later deposits mint the minority
// ratio, so any excess of the other asset is donated to the pool rather than
// refunded.
func (e *Engine) AddLiquidity(caller string, amountX, amountY *big.Int) (*big.Int, error) {
	if e.paused {
		return nil, ErrPaused
	}
	if !isPositive(amountX) || !isPositive(amountY) {
		return nil, fmt.Errorf("%w: both amounts must be positive", ErrInvalidAmount)
	}

	minted := e.sharesForDeposit(amountX, amountY)
	if minted.Sign() == 0 {
		return nil, fmt.Errorf("%w: amounts too small", ErrZeroShares)
	}

	if err := e.assets.Transfer(e.cfg.AssetX, caller, e.cfg.Account, amountX); err != nil {
		return nil, fmt.Errorf("%w: debit %s: %v", ErrLedger, e.cfg.AssetX, err)
	}
	if err := e.assets.Transfer(e.cfg.AssetY, caller, e.cfg.Account, amountY); err != nil {
		// Return the first debit so the whole operation has no effect.
		if backErr := e.assets.Transfer(e.cfg.AssetX, e.cfg.Account, caller, amountX); backErr != nil {
			e.logger.Error("liquidity debit unwind failed",
				zap.String("caller", caller), zap.Error(backErr))
			return nil, fmt.Errorf("%w: debit %s: %v (unwind of %s also failed: %v)",
				ErrLedger, e.cfg.AssetY, err, e.cfg.AssetX, backErr)
		}
		return nil, fmt.Errorf("%w: debit %s: %v", ErrLedger, e.cfg.AssetY, err)
	}

	e.state.ReserveX.Add(e.state.ReserveX, amountX)
	e.state.ReserveY.Add(e.state.ReserveY, amountY)
	e.state.TotalShares.Add(e.state.TotalShares, minted)
	e.credit(caller, minted)

	e.logger.Debug("liquidity added",
		zap.String("caller", caller),
		zap.String("amount_x", amountX.String()),
		zap.String("amount_y", amountY.String()),
		zap.String("minted", minted.String()),
	)
	return minted, nil
}

func (e *Engine) sharesForDeposit(amountX, amountY *big.Int) *big.Int {
	if e.state.TotalShares.Sign() == 0 {
		product := new(big.Int).Mul(amountX, amountY)
		return numeric.Isqrt(product)
	}

	byX := new(big.Int).Mul(amountX, e.state.TotalShares)
	byX.Div(byX, e.state.ReserveX)
	byY := new(big.Int).Mul(amountY, e.state.TotalShares)
	byY.Div(byY, e.state.ReserveY)
	if byX.Cmp(byY) < 0 {
		return byX
	}
	return byY
}

// RemoveLiquidity burns shares and credits the caller with the proportional
// amount of each reserve. Bookkeeping is committed before any external
// credit; a failed credit unwinds the whole operation.
func (e *Engine) RemoveLiquidity(caller string, shares *big.Int) (*big.Int, *big.Int, error) {
	if e.paused {
		return nil, nil, ErrPaused
	}
	if !isPositive(shares) {
		return nil, nil, fmt.Errorf("%w: shares must be positive", ErrInvalidAmount)
	}
	position := e.position(caller)
	if position.Cmp(shares) < 0 {
		return nil, nil, fmt.Errorf("%w: have %s, burning %s", ErrInsufficientShares, position, shares)
	}

	payoutX := new(big.Int).Mul(shares, e.state.ReserveX)
	payoutX.Div(payoutX, e.state.TotalShares)
	payoutY := new(big.Int).Mul(shares, e.state.ReserveY)
	payoutY.Div(payoutY, e.state.TotalShares)

	// State before transfer: commit the burn, then pay out.
	e.positions[caller] = new(big.Int).Sub(position, shares)
	e.state.TotalShares.Sub(e.state.TotalShares, shares)
	e.state.ReserveX.Sub(e.state.ReserveX, payoutX)
	e.state.ReserveY.Sub(e.state.ReserveY, payoutY)

	unwind := func() {
		e.positions[caller] = new(big.Int).Set(position)
		e.state.TotalShares.Add(e.state.TotalShares, shares)
		e.state.ReserveX.Add(e.state.ReserveX, payoutX)
		e.state.ReserveY.Add(e.state.ReserveY, payoutY)
	}

	if payoutX.Sign() > 0 {
		if err := e.assets.Transfer(e.cfg.AssetX, e.cfg.Account, caller, payoutX); err != nil {
			unwind()
			return nil, nil, fmt.Errorf("%w: credit %s: %v", ErrLedger, e.cfg.AssetX, err)
		}
	}
	if payoutY.Sign() > 0 {
		if err := e.assets.Transfer(e.cfg.AssetY, e.cfg.Account, caller, payoutY); err != nil {
			unwind()
			if payoutX.Sign() > 0 {
				if backErr := e.assets.Transfer(e.cfg.AssetX, caller, e.cfg.Account, payoutX); backErr != nil {
					e.logger.Error("withdrawal unwind failed, reserves need reconciliation",
						zap.String("caller", caller), zap.Error(backErr))
					return nil, nil, fmt.Errorf("%w: credit %s: %v (unwind of %s also failed: %v)",
						ErrLedger, e.cfg.AssetY, err, e.cfg.AssetX, backErr)
				}
			}
			return nil, nil, fmt.Errorf("%w: credit %s: %v", ErrLedger, e.cfg.AssetY, err)
		}
	}

	e.logger.Debug("liquidity removed",
		zap.String("caller", caller),
		zap.String("shares", shares.String()),
		zap.String("payout_x", payoutX.String()),
		zap.String("payout_y", payoutY.String()),
	)
	return payoutX, payoutY, nil
}

// SwapXForY swaps amountIn of X for Y. This direction carries no floor check.
func (e *Engine) SwapXForY(caller string, amountIn, minOut *big.Int) (*big.Int, error) {
	return e.swap(caller, amountIn, minOut, false)
}

// SwapYForX swaps amountIn of Y for X. This is the protected direction: the
// realized X-per-Y rate must not fall below the floor rate.
func (e *Engine) SwapYForX(caller string, amountIn, minOut *big.Int) (*big.Int, error) {
	return e.swap(caller, amountIn, minOut, true)
}

func (e *Engine) swap(caller string, amountIn, minOut *big.Int, yForX bool) (*big.Int, error) {
	if e.paused {
		return nil, ErrPaused
	}
	if !isPositive(amountIn) {
		return nil, fmt.Errorf("%w: amount in must be positive", ErrInvalidAmount)
	}
	if minOut == nil {
		minOut = big.NewInt(0)
	}

	assetIn, assetOut := e.cfg.AssetX, e.cfg.AssetY
	reserveIn, reserveOut := e.state.ReserveX, e.state.ReserveY
	if yForX {
		assetIn, assetOut = e.cfg.AssetY, e.cfg.AssetX
		reserveIn, reserveOut = e.state.ReserveY, e.state.ReserveX
	}

	out, err := swapOut(reserveIn, reserveOut, amountIn)
	if err != nil {
		return nil, err
	}
	if out.Cmp(minOut) < 0 {
		return nil, fmt.Errorf("%w: out %s < min %s", ErrSlippage, out, minOut)
	}
	if yForX {
		effectiveRate := numeric.ScaledRatio(out, amountIn)
		if effectiveRate.Cmp(e.state.FloorRate) < 0 {
			return nil, fmt.Errorf("%w: effective %s < floor %s", ErrBelowFloor, effectiveRate, e.state.FloorRate)
		}
	}

	if err := e.assets.Transfer(assetIn, caller, e.cfg.Account, amountIn); err != nil {
		return nil, fmt.Errorf("%w: debit %s: %v", ErrLedger, assetIn, err)
	}

	reserveIn.Add(reserveIn, amountIn)
	reserveOut.Sub(reserveOut, out)

	if err := e.assets.Transfer(assetOut, e.cfg.Account, caller, out); err != nil {
		reserveIn.Sub(reserveIn, amountIn)
		reserveOut.Add(reserveOut, out)
		if backErr := e.assets.Transfer(assetIn, e.cfg.Account, caller, amountIn); backErr != nil {
			e.logger.Error("swap unwind failed, reserves need reconciliation",
				zap.String("caller", caller), zap.Error(backErr))
			return nil, fmt.Errorf("%w: credit %s: %v (unwind of %s also failed: %v)",
				ErrLedger, assetOut, err, assetIn, backErr)
		}
		return nil, fmt.Errorf("%w: credit %s: %v", ErrLedger, assetOut, err)
	}

	e.state.SwapCount++
	if yForX {
		e.state.VolumeY.Add(e.state.VolumeY, amountIn)
		e.state.VolumeX.Add(e.state.VolumeX, out)
	} else {
		e.state.VolumeX.Add(e.state.VolumeX, amountIn)
		e.state.VolumeY.Add(e.state.VolumeY, out)
	}

	e.logger.Debug("swap",
		zap.String("caller", caller),
		zap.String("asset_in", assetIn),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", out.String()),
	)
	return out, nil
}

// swapOut computes the constant-product output:
// out = reserveOut - floor(reserveOut*reserveIn / (reserveIn+amountIn)).
// The floored quotient keeps the post-swap product within
// (k - reserveIn - amountIn, k].
func swapOut(reserveIn, reserveOut, amountIn *big.Int) (*big.Int, error) {
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, fmt.Errorf("%w: empty reserve", ErrInsufficientLiquidity)
	}

	newReserveIn := new(big.Int).Add(reserveIn, amountIn)
	kept := new(big.Int).Mul(reserveOut, reserveIn)
	kept.Div(kept, newReserveIn)
	out := new(big.Int).Sub(reserveOut, kept)
	if out.Sign() == 0 {
		return nil, fmt.Errorf("%w: output rounds to zero", ErrInvalidAmount)
	}
	return out, nil
}

// QuoteXForY returns the Y output a swap of amountIn X would produce now.
func (e *Engine) QuoteXForY(amountIn *big.Int) (*big.Int, error) {
	if !isPositive(amountIn) {
		return nil, fmt.Errorf("%w: amount in must be positive", ErrInvalidAmount)
	}
	return swapOut(e.state.ReserveX, e.state.ReserveY, amountIn)
}

// QuoteYForX returns the X output a swap of amountIn Y would produce now.
func (e *Engine) QuoteYForX(amountIn *big.Int) (*big.Int, error) {
	if !isPositive(amountIn) {
		return nil, fmt.Errorf("%w: amount in must be positive", ErrInvalidAmount)
	}
	return swapOut(e.state.ReserveY, e.state.ReserveX, amountIn)
}

// CurrentPrice returns the scaled X-per-Y spot rate.
func (e *Engine) CurrentPrice() (*big.Int, error) {
	if e.state.ReserveX.Sign() == 0 || e.state.ReserveY.Sign() == 0 {
		return nil, fmt.Errorf("%w: empty reserve", ErrInsufficientLiquidity)
	}
	return numeric.ScaledRatio(e.state.ReserveX, e.state.ReserveY), nil
}

// Reserves returns copies of both reserves.
func (e *Engine) Reserves() (*big.Int, *big.Int) {
	return new(big.Int).Set(e.state.ReserveX), new(big.Int).Set(e.state.ReserveY)
}

// LPBalanceOf returns the caller's share count.
func (e *Engine) LPBalanceOf(account string) *big.Int {
	return e.position(account)
}

// TotalShares returns the outstanding share supply.
func (e *Engine) TotalShares() *big.Int {
	return new(big.Int).Set(e.state.TotalShares)
}

// PoolStats returns cumulative swap statistics.
func (e *Engine) PoolStats() model.PoolStats {
	return model.PoolStats{
		SwapCount: e.state.SwapCount,
		VolumeX:   new(big.Int).Set(e.state.VolumeX),
		VolumeY:   new(big.Int).Set(e.state.VolumeY),
	}
}

// CalculateWithdrawal returns what a full withdrawal of account's position
// would pay out right now.
func (e *Engine) CalculateWithdrawal(account string) (*big.Int, *big.Int) {
	position := e.position(account)
	if position.Sign() == 0 || e.state.TotalShares.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	payoutX := new(big.Int).Mul(position, e.state.ReserveX)
	payoutX.Div(payoutX, e.state.TotalShares)
	payoutY := new(big.Int).Mul(position, e.state.ReserveY)
	payoutY.Div(payoutY, e.state.TotalShares)
	return payoutX, payoutY
}

// FloorRate returns the current protected minimum rate.
func (e *Engine) FloorRate() *big.Int {
	return new(big.Int).Set(e.state.FloorRate)
}

// SetFloorRate replaces the protected minimum rate. Operator only.
func (e *Engine) SetFloorRate(caller string, rate *big.Int) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if !isPositive(rate) {
		return fmt.Errorf("%w: floor rate must be positive", ErrInvalidAmount)
	}
	e.state.FloorRate.Set(rate)
	e.logger.Info("floor rate updated", zap.String("rate", rate.String()))
	return nil
}

// Pause blocks all liquidity and swap entry points. Operator only.
func (e *Engine) Pause(caller string) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	e.paused = true
	e.logger.Warn("pool paused")
	return nil
}

// Unpause re-enables liquidity and swap entry points. Operator only.
func (e *Engine) Unpause(caller string) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	e.paused = false
	e.logger.Info("pool unpaused")
	return nil
}

// EmergencyWithdraw moves amount of asset from the pool account to the
// operator, bypassing reserve accounting. It breaks the reserve/balance
// correspondence; the audit command reports the resulting drift.
func (e *Engine) EmergencyWithdraw(caller, asset string, amount *big.Int) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if !isPositive(amount) {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if err := e.assets.Transfer(asset, e.cfg.Account, e.cfg.Operator, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrLedger, err)
	}
	e.logger.Warn("emergency withdrawal",
		zap.String("asset", asset),
		zap.String("amount", amount.String()),
	)
	return nil
}

// Snapshot returns a persistable view of the pool state.
func (e *Engine) Snapshot(name string) model.PoolSnapshot {
	return model.PoolSnapshot{
		PoolName:    name,
		ReserveX:    e.state.ReserveX.String(),
		ReserveY:    e.state.ReserveY.String(),
		TotalShares: e.state.TotalShares.String(),
		FloorRate:   e.state.FloorRate.String(),
		SwapCount:   e.state.SwapCount,
		VolumeX:     e.state.VolumeX.String(),
		VolumeY:     e.state.VolumeY.String(),
	}
}

func (e *Engine) requireOperator(caller string) error {
	if caller != e.cfg.Operator {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) position(account string) *big.Int {
	if bal, ok := e.positions[account]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

func (e *Engine) credit(account string, shares *big.Int) {
	if bal, ok := e.positions[account]; ok {
		bal.Add(bal, shares)
		return
	}
	e.positions[account] = new(big.Int).Set(shares)
}

func isPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
