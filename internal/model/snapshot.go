package model

import "time"

// PoolSnapshot is a persisted point-in-time view of pool state. Amounts are
// decimal strings to avoid numeric truncation in storage.
type PoolSnapshot struct {
	PoolName    string
	ReserveX    string
	ReserveY    string
	TotalShares string
	FloorRate   string
	SwapCount   uint64
	VolumeX     string
	VolumeY     string
	TakenAt     time.Time
}

// LeagueRow is a persisted league record, written when a league finishes.
type LeagueRow struct {
	LeagueID     uint64
	Tier         string
	EntryFee     string
	PrizePool    string
	StartTime    time.Time
	EndTime      time.Time
	Status       string
	Participants int
	Scoring      int
	Distributed  bool
}

// LeaderboardRow is one ranked entry of a finished league.
type LeaderboardRow struct {
	LeagueID    uint64
	Rank        int
	Player      string
	Score       uint64
	SubmittedAt time.Time
}
