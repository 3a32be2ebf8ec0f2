package ledger

import (
	"fmt"
	"math/big"
)

// MemoryLedger is an in-process AssetLedger used by the replay driver and the
// test suites. Balances are tracked per asset per account.
type MemoryLedger struct {
	balances map[string]map[string]*big.Int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]map[string]*big.Int)}
}

// Mint credits amount of asset to account out of thin air.
func (l *MemoryLedger) Mint(asset, account string, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	accounts := l.balances[asset]
	if accounts == nil {
		accounts = make(map[string]*big.Int)
		l.balances[asset] = accounts
	}
	bal := accounts[account]
	if bal == nil {
		bal = big.NewInt(0)
		accounts[account] = bal
	}
	bal.Add(bal, amount)
}

// Transfer moves amount of asset between accounts, failing on insufficient
// balance or a non-positive amount.
func (l *MemoryLedger) Transfer(asset, from, to string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("transfer amount must be positive")
	}
	if from == to {
		return nil
	}

	accounts := l.balances[asset]
	src := big.NewInt(0)
	if accounts != nil && accounts[from] != nil {
		src = accounts[from]
	}
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient %s balance: have %s, need %s", asset, src, amount)
	}

	src.Sub(src, amount)
	l.Mint(asset, to, amount)
	return nil
}

// BalanceOf returns the balance of asset held by account.
func (l *MemoryLedger) BalanceOf(asset, account string) (*big.Int, error) {
	accounts := l.balances[asset]
	if accounts == nil || accounts[account] == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(accounts[account]), nil
}
