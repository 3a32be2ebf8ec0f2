package league

import (
	"fmt"

	"tokenArena/internal/model"
)

// LeagueRows returns a persistable row for every league, oldest first.
// Finished leagues are never purged, so this is the full history.
func (e *Engine) LeagueRows() []model.LeagueRow {
	rows := make([]model.LeagueRow, 0, len(e.leagues))
	for id := uint64(1); id <= e.nextID; id++ {
		lg, ok := e.leagues[id]
		if !ok {
			continue
		}
		rows = append(rows, model.LeagueRow{
			LeagueID:     lg.ID,
			Tier:         lg.Tier.String(),
			EntryFee:     lg.EntryFee.String(),
			PrizePool:    lg.PrizePool.String(),
			StartTime:    lg.StartTime,
			EndTime:      lg.EndTime,
			Status:       lg.Status.String(),
			Participants: len(lg.Participants),
			Scoring:      len(lg.ScoringPlayers),
			Distributed:  lg.Distributed,
		})
	}
	return rows
}

// LeaderboardRows returns the ranked leaderboard of a league as persistable
// rows.
func (e *Engine) LeaderboardRows(leagueID uint64) ([]model.LeaderboardRow, error) {
	lg, ok := e.leagues[leagueID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLeague, leagueID)
	}

	ranked := rankScoringPlayers(lg)
	rows := make([]model.LeaderboardRow, 0, len(ranked))
	for i, player := range ranked {
		rec := lg.Scores[player]
		rows = append(rows, model.LeaderboardRow{
			LeagueID:    lg.ID,
			Rank:        i + 1,
			Player:      player,
			Score:       rec.Score,
			SubmittedAt: rec.SubmissionTime,
		})
	}
	return rows, nil
}
