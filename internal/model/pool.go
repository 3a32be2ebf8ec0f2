package model

import "math/big"

// PoolState holds the reserves, share supply, and cumulative stats of a pool.
type PoolState struct {
	ReserveX    *big.Int
	ReserveY    *big.Int
	TotalShares *big.Int
	FloorRate   *big.Int
	SwapCount   uint64
	VolumeX     *big.Int
	VolumeY     *big.Int
}

// NewPoolState returns an empty pool with the given floor rate.
func NewPoolState(floorRate *big.Int) *PoolState {
	return &PoolState{
		ReserveX:    big.NewInt(0),
		ReserveY:    big.NewInt(0),
		TotalShares: big.NewInt(0),
		FloorRate:   new(big.Int).Set(floorRate),
		VolumeX:     big.NewInt(0),
		VolumeY:     big.NewInt(0),
	}
}

// PoolStats is a read-only view of cumulative pool activity.
type PoolStats struct {
	SwapCount uint64
	VolumeX   *big.Int
	VolumeY   *big.Int
}
