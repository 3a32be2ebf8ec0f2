package pool

import (
	"errors"
	"math/big"
	"testing"

	"tokenArena/internal/ledger"
	"tokenArena/internal/numeric"
)

const (
	assetX   = "tokenX"
	assetY   = "tokenY"
	poolAcct = "pool:test"
	operator = "op"
)

func newTestEngine(t *testing.T, floorRate *big.Int) (*Engine, *ledger.MemoryLedger) {
	t.Helper()
	assets := ledger.NewMemoryLedger()
	for _, account := range []string{"alice", "bob"} {
		assets.Mint(assetX, account, big.NewInt(1_000_000))
		assets.Mint(assetY, account, big.NewInt(1_000_000))
	}

	e, err := NewEngine(Config{
		AssetX:    assetX,
		AssetY:    assetY,
		Account:   poolAcct,
		Operator:  operator,
		FloorRate: floorRate,
	}, assets, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, assets
}

func lowFloor() *big.Int {
	// 0.01 X per Y, low enough to stay out of the way
	f := numeric.Scale()
	return f.Div(f, big.NewInt(100))
}

func TestFirstDepositMintsIsqrt(t *testing.T) {
	e, assets := newTestEngine(t, lowFloor())

	minted, err := e.AddLiquidity("alice", big.NewInt(1000), big.NewInt(4000))
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if minted.Int64() != 2000 {
		t.Fatalf("minted = %s, want 2000", minted)
	}

	rx, ry := e.Reserves()
	if rx.Int64() != 1000 || ry.Int64() != 4000 {
		t.Fatalf("reserves = (%s, %s), want (1000, 4000)", rx, ry)
	}
	if e.TotalShares().Int64() != 2000 {
		t.Fatalf("total shares = %s, want 2000", e.TotalShares())
	}

	poolBalX, _ := assets.BalanceOf(assetX, poolAcct)
	poolBalY, _ := assets.BalanceOf(assetY, poolAcct)
	if poolBalX.Int64() != 1000 || poolBalY.Int64() != 4000 {
		t.Fatalf("pool balances = (%s, %s), want (1000, 4000)", poolBalX, poolBalY)
	}
}

func TestFirstDepositTooSmall(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())

	if _, err := e.AddLiquidity("alice", big.NewInt(0), big.NewInt(10)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	rx, ry := e.Reserves()
	if rx.Sign() != 0 || ry.Sign() != 0 {
		t.Fatalf("failed deposit mutated reserves: (%s, %s)", rx, ry)
	}
}

func TestSecondDepositMintsMinorityRatio(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())
	mustAdd(t, e, "alice", 1000, 4000)

	// X side entitles 1000 shares, Y side 2000: excess Y is donated.
	minted, err := e.AddLiquidity("bob", big.NewInt(500), big.NewInt(4000))
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if minted.Int64() != 1000 {
		t.Fatalf("minted = %s, want 1000", minted)
	}

	rx, ry := e.Reserves()
	if rx.Int64() != 1500 || ry.Int64() != 8000 {
		t.Fatalf("reserves = (%s, %s), want (1500, 8000)", rx, ry)
	}
}

func TestSharesSumEqualsTotal(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())
	mustAdd(t, e, "alice", 1000, 4000)
	mustAdd(t, e, "bob", 500, 2000)

	if _, _, err := e.RemoveLiquidity("alice", big.NewInt(700)); err != nil {
		t.Fatalf("remove liquidity: %v", err)
	}

	sum := new(big.Int).Add(e.LPBalanceOf("alice"), e.LPBalanceOf("bob"))
	if sum.Cmp(e.TotalShares()) != 0 {
		t.Fatalf("share sum %s != total %s", sum, e.TotalShares())
	}
}

func TestSwapXForY(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())
	mustAdd(t, e, "alice", 1000, 4000)

	out, err := e.SwapXForY("bob", big.NewInt(100), big.NewInt(0))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Int64() != 364 {
		t.Fatalf("out = %s, want 364", out)
	}

	rx, ry := e.Reserves()
	if rx.Int64() != 1100 || ry.Int64() != 3636 {
		t.Fatalf("reserves = (%s, %s), want (1100, 3636)", rx, ry)
	}

	stats := e.PoolStats()
	if stats.SwapCount != 1 || stats.VolumeX.Int64() != 100 || stats.VolumeY.Int64() != 364 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestSwapSlippageGuard(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())
	mustAdd(t, e, "alice", 1000, 4000)

	if _, err := e.SwapXForY("bob", big.NewInt(100), big.NewInt(365)); !errors.Is(err, ErrSlippage) {
		t.Fatalf("expected ErrSlippage, got %v", err)
	}

	rx, ry := e.Reserves()
	if rx.Int64() != 1000 || ry.Int64() != 4000 {
		t.Fatalf("failed swap mutated reserves: (%s, %s)", rx, ry)
	}
}

func TestSwapEmptyPool(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())

	if _, err := e.SwapXForY("bob", big.NewInt(100), big.NewInt(0)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if _, err := e.QuoteXForY(big.NewInt(100)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected quote failure on empty pool, got %v", err)
	}
	if _, err := e.CurrentPrice(); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected price failure on empty pool, got %v", err)
	}
}

func TestProtectedDirectionFloor(t *testing.T) {
	// Floor of 1.0 X per Y: selling Y into a pool priced at 0.25 must fail.
	e, _ := newTestEngine(t, numeric.Scale())
	mustAdd(t, e, "alice", 1000, 4000)

	if _, err := e.SwapYForX("bob", big.NewInt(100), big.NewInt(0)); !errors.Is(err, ErrBelowFloor) {
		t.Fatalf("expected ErrBelowFloor, got %v", err)
	}

	// The unprotected direction has no floor.
	if _, err := e.SwapXForY("bob", big.NewInt(100), big.NewInt(0)); err != nil {
		t.Fatalf("unprotected swap failed: %v", err)
	}
}

func TestProtectedDirectionAboveFloor(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())
	mustAdd(t, e, "alice", 1000, 4000)

	// out = 1000 - floor(1000*4000/4100) = 25; rate 0.25 >= floor 0.01.
	out, err := e.SwapYForX("bob", big.NewInt(100), big.NewInt(0))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Int64() != 25 {
		t.Fatalf("out = %s, want 25", out)
	}
}

func TestSwapProductDriftBounded(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())
	mustAdd(t, e, "alice", 12345, 67890)

	k := func() *big.Int {
		rx, ry := e.Reserves()
		return new(big.Int).Mul(rx, ry)
	}

	prev := k()
	amounts := []int64{1, 7, 100, 999, 3, 5000, 42, 250}
	for i, amount := range amounts {
		rx, ry := e.Reserves()
		reserveIn := rx
		var err error
		if i%2 == 0 {
			_, err = e.SwapXForY("bob", big.NewInt(amount), big.NewInt(0))
		} else {
			reserveIn = ry
			_, err = e.SwapYForX("bob", big.NewInt(amount), big.NewInt(0))
		}
		if err != nil {
			t.Fatalf("swap %d: %v", i, err)
		}

		// The floored kept reserve holds the product in
		// (k - reserveIn - amountIn, k].
		next := k()
		if next.Cmp(prev) > 0 {
			t.Fatalf("k grew after swap %d: %s -> %s", i, prev, next)
		}
		bound := new(big.Int).Add(reserveIn, big.NewInt(amount))
		bound.Sub(prev, bound)
		if next.Cmp(bound) <= 0 {
			t.Fatalf("k dropped past truncation bound after swap %d: %s -> %s (bound %s)", i, prev, next, bound)
		}
		prev = next
	}
}

func TestRemoveLiquidityProportional(t *testing.T) {
	e, assets := newTestEngine(t, lowFloor())
	mustAdd(t, e, "alice", 1000, 4000)

	payoutX, payoutY, err := e.RemoveLiquidity("alice", big.NewInt(500))
	if err != nil {
		t.Fatalf("remove liquidity: %v", err)
	}
	if payoutX.Int64() != 250 || payoutY.Int64() != 1000 {
		t.Fatalf("payout = (%s, %s), want (250, 1000)", payoutX, payoutY)
	}

	rx, ry := e.Reserves()
	if rx.Int64() != 750 || ry.Int64() != 3000 {
		t.Fatalf("reserves = (%s, %s), want (750, 3000)", rx, ry)
	}

	aliceX, _ := assets.BalanceOf(assetX, "alice")
	if aliceX.Int64() != 1_000_000-1000+250 {
		t.Fatalf("alice X balance = %s", aliceX)
	}
}

func TestRemoveLiquidityBeyondPosition(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())
	mustAdd(t, e, "alice", 1000, 4000)

	if _, _, err := e.RemoveLiquidity("alice", big.NewInt(2001)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}

	rx, ry := e.Reserves()
	if rx.Int64() != 1000 || ry.Int64() != 4000 || e.TotalShares().Int64() != 2000 {
		t.Fatalf("failed withdrawal mutated state: (%s, %s) shares %s", rx, ry, e.TotalShares())
	}
}

func TestCalculateWithdrawal(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())
	mustAdd(t, e, "alice", 1000, 4000)
	mustAdd(t, e, "bob", 1000, 4000)

	px, py := e.CalculateWithdrawal("alice")
	if px.Int64() != 1000 || py.Int64() != 4000 {
		t.Fatalf("withdrawal = (%s, %s), want (1000, 4000)", px, py)
	}

	px, py = e.CalculateWithdrawal("nobody")
	if px.Sign() != 0 || py.Sign() != 0 {
		t.Fatalf("empty position withdrawal = (%s, %s), want (0, 0)", px, py)
	}
}

func TestQuotesMatchSwap(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())
	mustAdd(t, e, "alice", 1000, 4000)

	quoted, err := e.QuoteXForY(big.NewInt(100))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	out, err := e.SwapXForY("bob", big.NewInt(100), big.NewInt(0))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if quoted.Cmp(out) != 0 {
		t.Fatalf("quote %s != swap out %s", quoted, out)
	}
}

func TestCurrentPrice(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())
	mustAdd(t, e, "alice", 1000, 4000)

	price, err := e.CurrentPrice()
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	want := numeric.ScaledRatio(big.NewInt(1000), big.NewInt(4000))
	if price.Cmp(want) != 0 {
		t.Fatalf("price = %s, want %s", price, want)
	}
}

func TestPauseGatesEntryPoints(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())
	mustAdd(t, e, "alice", 1000, 4000)

	if err := e.Pause("alice"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := e.Pause(operator); err != nil {
		t.Fatalf("pause: %v", err)
	}

	if _, err := e.AddLiquidity("alice", big.NewInt(10), big.NewInt(10)); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if _, err := e.SwapXForY("alice", big.NewInt(10), big.NewInt(0)); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if _, _, err := e.RemoveLiquidity("alice", big.NewInt(10)); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}

	if err := e.Unpause(operator); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := e.SwapXForY("alice", big.NewInt(10), big.NewInt(0)); err != nil {
		t.Fatalf("swap after unpause: %v", err)
	}
}

func TestSetFloorRate(t *testing.T) {
	e, _ := newTestEngine(t, lowFloor())

	if err := e.SetFloorRate("alice", big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := e.SetFloorRate(operator, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := e.SetFloorRate(operator, big.NewInt(42)); err != nil {
		t.Fatalf("set floor rate: %v", err)
	}
	if e.FloorRate().Int64() != 42 {
		t.Fatalf("floor rate = %s, want 42", e.FloorRate())
	}
}

func TestEmergencyWithdrawBypassesAccounting(t *testing.T) {
	e, assets := newTestEngine(t, lowFloor())
	mustAdd(t, e, "alice", 1000, 4000)

	if err := e.EmergencyWithdraw("alice", assetX, big.NewInt(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := e.EmergencyWithdraw(operator, assetX, big.NewInt(100)); err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}

	// Reserves are untouched; the pool balance drifts below them.
	rx, _ := e.Reserves()
	if rx.Int64() != 1000 {
		t.Fatalf("reserve x = %s, want 1000", rx)
	}
	poolBalX, _ := assets.BalanceOf(assetX, poolAcct)
	if poolBalX.Int64() != 900 {
		t.Fatalf("pool balance x = %s, want 900", poolBalX)
	}
}

// flakyLedger fails the nth Transfer call (1-based, counted across the test).
type flakyLedger struct {
	*ledger.MemoryLedger
	failOn int
	calls  int
}

func (f *flakyLedger) Transfer(asset, from, to string, amount *big.Int) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("ledger offline")
	}
	return f.MemoryLedger.Transfer(asset, from, to, amount)
}

func newFlakyEngine(t *testing.T, failOn int) (*Engine, *flakyLedger) {
	t.Helper()
	flaky := &flakyLedger{MemoryLedger: ledger.NewMemoryLedger(), failOn: failOn}
	flaky.Mint(assetX, "alice", big.NewInt(1_000_000))
	flaky.Mint(assetY, "alice", big.NewInt(1_000_000))

	e, err := NewEngine(Config{
		AssetX:    assetX,
		AssetY:    assetY,
		Account:   poolAcct,
		Operator:  operator,
		FloorRate: lowFloor(),
	}, flaky, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, flaky
}

func TestAddLiquiditySecondDebitFailureUnwinds(t *testing.T) {
	e, flaky := newFlakyEngine(t, 2)

	if _, err := e.AddLiquidity("alice", big.NewInt(1000), big.NewInt(4000)); !errors.Is(err, ErrLedger) {
		t.Fatalf("expected ErrLedger, got %v", err)
	}

	aliceX, _ := flaky.BalanceOf(assetX, "alice")
	if aliceX.Int64() != 1_000_000 {
		t.Fatalf("alice X balance = %s, want untouched 1000000", aliceX)
	}
	rx, ry := e.Reserves()
	if rx.Sign() != 0 || ry.Sign() != 0 || e.TotalShares().Sign() != 0 {
		t.Fatalf("failed deposit left state: (%s, %s) shares %s", rx, ry, e.TotalShares())
	}
}

func TestSwapCreditFailureUnwinds(t *testing.T) {
	// Calls 1-2 fund the pool; call 3 is the swap debit, call 4 the credit.
	e, flaky := newFlakyEngine(t, 4)
	mustAdd(t, e, "alice", 1000, 4000)

	if _, err := e.SwapXForY("alice", big.NewInt(100), big.NewInt(0)); !errors.Is(err, ErrLedger) {
		t.Fatalf("expected ErrLedger, got %v", err)
	}

	rx, ry := e.Reserves()
	if rx.Int64() != 1000 || ry.Int64() != 4000 {
		t.Fatalf("failed swap left reserves: (%s, %s)", rx, ry)
	}
	aliceX, _ := flaky.BalanceOf(assetX, "alice")
	if aliceX.Int64() != 1_000_000-1000 {
		t.Fatalf("alice X balance = %s, want input refunded", aliceX)
	}
	if e.PoolStats().SwapCount != 0 {
		t.Fatalf("failed swap counted in stats")
	}
}

func mustAdd(t *testing.T, e *Engine, caller string, amountX, amountY int64) {
	t.Helper()
	if _, err := e.AddLiquidity(caller, big.NewInt(amountX), big.NewInt(amountY)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
}
