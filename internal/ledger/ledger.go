package ledger

import "math/big"

// AssetLedger is the external fungible-balance collaborator both engines
// settle against. Every call may fail; a failed transfer must abort the
// engine operation that issued it with no partial effect.
type AssetLedger interface {
	// Transfer moves amount of asset from one account to another.
	Transfer(asset, from, to string, amount *big.Int) error

	// BalanceOf returns the balance of asset held by account.
	BalanceOf(asset, account string) (*big.Int, error)
}
