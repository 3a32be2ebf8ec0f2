package model

import (
	"fmt"
	"math/big"
	"time"
)

// Tier identifies a stake bracket with its own entry fee and league stream.
type Tier uint8

// Tier constants.
const (
	TierLow Tier = iota
	TierMid
	TierHigh
)

var tierNames = map[Tier]string{
	TierLow:  "low",
	TierMid:  "mid",
	TierHigh: "high",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", uint8(t))
}

// ParseTier maps a tier name to its Tier value.
func ParseTier(name string) (Tier, error) {
	for tier, n := range tierNames {
		if n == name {
			return tier, nil
		}
	}
	return 0, fmt.Errorf("unknown tier: %q", name)
}

// Tiers returns all known tiers in ascending order.
func Tiers() []Tier {
	return []Tier{TierLow, TierMid, TierHigh}
}

// LeagueStatus is the lifecycle state of a league. Transitions only move
// forward: WaitingForPlayers -> Active -> Finished.
type LeagueStatus uint8

// League lifecycle states.
const (
	LeagueWaitingForPlayers LeagueStatus = iota
	LeagueActive
	LeagueFinished
)

func (s LeagueStatus) String() string {
	switch s {
	case LeagueWaitingForPlayers:
		return "waiting_for_players"
	case LeagueActive:
		return "active"
	case LeagueFinished:
		return "finished"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// TierConfig holds the operator-mutable settings for one tier.
type TierConfig struct {
	EntryFee           *big.Int
	AutoStartThreshold int
	Active             bool
}

// PlayerScore records a player's best score within one league.
type PlayerScore struct {
	Score          uint64
	SubmissionTime time.Time
	HasSubmitted   bool
}

// League is one competition window for a tier. Finished leagues are retained
// for historical query and never deleted.
type League struct {
	ID             uint64
	Tier           Tier
	EntryFee       *big.Int // snapshot of the tier fee at creation
	PrizePool      *big.Int
	CreatedAt      time.Time
	StartTime      time.Time
	EndTime        time.Time
	Status         LeagueStatus
	Participants   []string
	ScoringPlayers []string
	Scores         map[string]*PlayerScore
	Distributed    bool
}
