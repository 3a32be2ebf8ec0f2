package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tokenArena/internal/model"
)

// Store provides Postgres persistence for engine snapshots and league history.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertPoolSnapshot inserts or updates the named pool's latest snapshot.
func (s *Store) UpsertPoolSnapshot(ctx context.Context, snap model.PoolSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_snapshots (
			pool_name, reserve_x, reserve_y, total_shares, floor_rate,
			swap_count, volume_x, volume_y, taken_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
		ON CONFLICT (pool_name)
		DO UPDATE SET
			reserve_x = EXCLUDED.reserve_x,
			reserve_y = EXCLUDED.reserve_y,
			total_shares = EXCLUDED.total_shares,
			floor_rate = EXCLUDED.floor_rate,
			swap_count = EXCLUDED.swap_count,
			volume_x = EXCLUDED.volume_x,
			volume_y = EXCLUDED.volume_y,
			taken_at = EXCLUDED.taken_at,
			updated_at = now()
	`,
		snap.PoolName,
		snap.ReserveX,
		snap.ReserveY,
		snap.TotalShares,
		snap.FloorRate,
		int64(snap.SwapCount),
		snap.VolumeX,
		snap.VolumeY,
		snap.TakenAt,
	)
	return err
}

// LoadPoolSnapshot returns the latest snapshot for a pool name.
func (s *Store) LoadPoolSnapshot(ctx context.Context, poolName string) (model.PoolSnapshot, bool, error) {
	if poolName == "" {
		return model.PoolSnapshot{}, false, fmt.Errorf("pool name required")
	}
	var snap model.PoolSnapshot
	var swapCount int64
	row := s.pool.QueryRow(ctx, `
		SELECT pool_name, reserve_x, reserve_y, total_shares, floor_rate,
		       swap_count, volume_x, volume_y, taken_at
		FROM pool_snapshots WHERE pool_name=$1
	`, poolName)
	err := row.Scan(
		&snap.PoolName,
		&snap.ReserveX,
		&snap.ReserveY,
		&snap.TotalShares,
		&snap.FloorRate,
		&swapCount,
		&snap.VolumeX,
		&snap.VolumeY,
		&snap.TakenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolSnapshot{}, false, nil
		}
		return model.PoolSnapshot{}, false, err
	}
	snap.SwapCount = uint64(swapCount)
	return snap, true, nil
}

// UpsertLeagues inserts or updates league history rows.
func (s *Store) UpsertLeagues(ctx context.Context, rows []model.LeagueRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO leagues (
				league_id, tier, entry_fee, prize_pool, start_ts, end_ts,
				status, participants, scoring, distributed, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
			ON CONFLICT (league_id)
			DO UPDATE SET
				prize_pool = EXCLUDED.prize_pool,
				start_ts = EXCLUDED.start_ts,
				end_ts = EXCLUDED.end_ts,
				status = EXCLUDED.status,
				participants = EXCLUDED.participants,
				scoring = EXCLUDED.scoring,
				distributed = EXCLUDED.distributed,
				updated_at = now()
		`,
			int64(r.LeagueID),
			r.Tier,
			r.EntryFee,
			r.PrizePool,
			r.StartTime,
			r.EndTime,
			r.Status,
			r.Participants,
			r.Scoring,
			r.Distributed,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertLeaderboard inserts or updates ranked leaderboard rows for a league.
func (s *Store) UpsertLeaderboard(ctx context.Context, rows []model.LeaderboardRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO leaderboards (
				league_id, rank, player, score, submitted_at, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,now(),now())
			ON CONFLICT (league_id, rank)
			DO UPDATE SET
				player = EXCLUDED.player,
				score = EXCLUDED.score,
				submitted_at = EXCLUDED.submitted_at,
				updated_at = now()
		`,
			int64(r.LeagueID),
			r.Rank,
			r.Player,
			int64(r.Score),
			r.SubmittedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last applied sequence number for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq uint64
	row := s.pool.QueryRow(ctx, `SELECT last_applied_seq FROM replay_state WHERE name=$1`, name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return seq, true, nil
}

// SaveState upserts the last applied sequence number for a name.
func (s *Store) SaveState(ctx context.Context, name string, seq uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, last_applied_seq, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_applied_seq = EXCLUDED.last_applied_seq, updated_at = now()
	`, name, seq)
	return err
}
