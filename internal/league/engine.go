package league

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"tokenArena/internal/ledger"
	"tokenArena/internal/model"
)

// Engine error classes.
var (
	ErrPaused           = errors.New("league engine is paused")
	ErrInvalidTier      = errors.New("invalid tier")
	ErrTierInactive     = errors.New("tier is not active")
	ErrInvalidScore     = errors.New("score must be positive")
	ErrLeagueClosed     = errors.New("league window is closed")
	ErrLeagueNotStarted = errors.New("league is waiting for players")
	ErrScoreNotImproved = errors.New("score does not beat previous submission")
	ErrUnknownLeague    = errors.New("unknown league")
	ErrUnauthorized     = errors.New("caller is not the operator")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrLedger           = errors.New("ledger transfer failed")
)

// Prize split constants, all in basis points of the net pool.
var podiumBps = [3]uint32{3000, 1400, 1100}

const (
	competitiveBps      = 2500
	participationBps    = 2000
	bracketDivisor      = 5
	maxPlatformFeeBps   = 1000
	minPlayersForPrizes = 2
)

type memberKey struct {
	player string
	tier   model.Tier
}

// Config holds the static identity and timing of the league engine.
type Config struct {
	Asset          string
	Account        string // settlement account holding stakes and prize pools
	Operator       string
	FeeRecipient   string
	LeagueDuration time.Duration // length of the Active window
	SpawnTimeout   time.Duration // respawn stalled WaitingForPlayers leagues after this
	PlatformFeeBps uint32
	Tiers          map[model.Tier]model.TierConfig
	Now            func() time.Time // injectable clock, defaults to time.Now
}

// Engine runs the continuously-respawning tiered competitions. Leagues are
// kept in an arena keyed by monotonic id; a per-tier pointer names the one
// league that is not yet Finished. Finished leagues are retained for
// historical query.
type Engine struct {
	cfg           Config
	assets        ledger.AssetLedger
	tiers         map[model.Tier]*model.TierConfig
	leagues       map[uint64]*model.League
	currentByTier map[model.Tier]uint64
	members       map[memberKey]bool
	feeBps        uint32
	feeRecipient  string
	paused        bool
	nextID        uint64
	now           func() time.Time
	logger        *zap.Logger
}

// NewEngine builds a league engine and spawns the initial league for every
// active tier.
func NewEngine(cfg Config, assets ledger.AssetLedger, logger *zap.Logger) (*Engine, error) {
	if assets == nil {
		return nil, fmt.Errorf("asset ledger is nil")
	}
	if cfg.Asset == "" || cfg.Account == "" {
		return nil, fmt.Errorf("asset and account are required")
	}
	if cfg.LeagueDuration <= 0 {
		return nil, fmt.Errorf("league duration must be positive")
	}
	if cfg.SpawnTimeout <= 0 {
		return nil, fmt.Errorf("spawn timeout must be positive")
	}
	if cfg.PlatformFeeBps > maxPlatformFeeBps {
		return nil, fmt.Errorf("platform fee %d exceeds cap %d bps", cfg.PlatformFeeBps, maxPlatformFeeBps)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := &Engine{
		cfg:           cfg,
		assets:        assets,
		tiers:         make(map[model.Tier]*model.TierConfig),
		leagues:       make(map[uint64]*model.League),
		currentByTier: make(map[model.Tier]uint64),
		members:       make(map[memberKey]bool),
		feeBps:        cfg.PlatformFeeBps,
		feeRecipient:  cfg.FeeRecipient,
		now:           cfg.Now,
		logger:        logger,
	}

	for tier, tc := range cfg.Tiers {
		if tc.EntryFee == nil || tc.EntryFee.Sign() <= 0 {
			return nil, fmt.Errorf("tier %s: entry fee must be positive", tier)
		}
		if tc.AutoStartThreshold < 1 {
			return nil, fmt.Errorf("tier %s: auto-start threshold must be at least 1", tier)
		}
		copied := tc
		copied.EntryFee = new(big.Int).Set(tc.EntryFee)
		e.tiers[tier] = &copied
		if copied.Active {
			e.spawn(tier)
		}
	}

	return e, nil
}

// spawn creates a fresh WaitingForPlayers league and points the tier at it.
func (e *Engine) spawn(tier model.Tier) *model.League {
	e.nextID++
	lg := &model.League{
		ID:        e.nextID,
		Tier:      tier,
		EntryFee:  new(big.Int).Set(e.tiers[tier].EntryFee),
		PrizePool: big.NewInt(0),
		CreatedAt: e.now(),
		Status:    model.LeagueWaitingForPlayers,
		Scores:    make(map[string]*model.PlayerScore),
	}
	e.leagues[lg.ID] = lg
	e.currentByTier[tier] = lg.ID
	e.logger.Info("league spawned",
		zap.Uint64("league_id", lg.ID),
		zap.String("tier", tier.String()),
	)
	return lg
}

// SubmitScore records a score for the caller in the tier's current league,
// joining the league (and staking the entry fee) on first contact. A joined
// league that is still below its auto-start threshold keeps the stake but
// rejects the score with ErrLeagueNotStarted; scores are only accepted while
// the league is Active and inside its window, and only if strictly greater
// than the player's previous accepted score.
func (e *Engine) SubmitScore(player string, tier model.Tier, score uint64) (uint64, error) {
	if e.paused {
		return 0, ErrPaused
	}
	if score == 0 {
		return 0, ErrInvalidScore
	}
	tc, ok := e.tiers[tier]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTier, tier)
	}
	if !tc.Active {
		return 0, fmt.Errorf("%w: %s", ErrTierInactive, tier)
	}

	lg := e.leagues[e.currentByTier[tier]]
	if lg == nil {
		lg = e.spawn(tier)
	}
	now := e.now()

	if err := e.joinIfNeeded(lg, player, now); err != nil {
		return 0, err
	}

	if lg.Status == model.LeagueWaitingForPlayers && len(lg.Participants) >= tc.AutoStartThreshold {
		lg.Status = model.LeagueActive
		lg.StartTime = now
		lg.EndTime = now.Add(e.cfg.LeagueDuration)
		e.logger.Info("league started",
			zap.Uint64("league_id", lg.ID),
			zap.String("tier", tier.String()),
			zap.Time("end_time", lg.EndTime),
		)
	}

	if lg.Status != model.LeagueActive {
		// The join above is deliberately kept: stakes accumulate while the
		// league waits for enough players.
		return lg.ID, fmt.Errorf("%w: %d/%d players", ErrLeagueNotStarted, len(lg.Participants), tc.AutoStartThreshold)
	}
	if now.After(lg.EndTime) {
		return lg.ID, fmt.Errorf("%w: ended %s", ErrLeagueClosed, lg.EndTime.Format(time.RFC3339))
	}

	rec := lg.Scores[player]
	if rec.HasSubmitted && score <= rec.Score {
		return lg.ID, fmt.Errorf("%w: %d <= %d", ErrScoreNotImproved, score, rec.Score)
	}
	prev := *rec
	firstSubmission := !rec.HasSubmitted
	if firstSubmission {
		lg.ScoringPlayers = append(lg.ScoringPlayers, player)
	}
	rec.Score = score
	rec.SubmissionTime = now
	rec.HasSubmitted = true

	e.logger.Debug("score accepted",
		zap.Uint64("league_id", lg.ID),
		zap.String("player", player),
		zap.Uint64("score", score),
	)

	if !now.Before(lg.EndTime) {
		if err := e.finish(lg); err != nil {
			// The settlement unwound; take the accepted score back with it.
			*rec = prev
			if firstSubmission {
				lg.ScoringPlayers = lg.ScoringPlayers[:len(lg.ScoringPlayers)-1]
			}
			return lg.ID, err
		}
	}
	return lg.ID, nil
}

// joinIfNeeded stakes the entry fee and registers the player on first
// contact with the league. Joining requires the window to still be open.
func (e *Engine) joinIfNeeded(lg *model.League, player string, now time.Time) error {
	key := memberKey{player: player, tier: lg.Tier}
	if e.members[key] {
		return nil
	}
	if lg.Status == model.LeagueFinished {
		return fmt.Errorf("%w: league %d is finished", ErrLeagueClosed, lg.ID)
	}
	if lg.Status == model.LeagueActive && now.After(lg.EndTime) {
		return fmt.Errorf("%w: league %d ended", ErrLeagueClosed, lg.ID)
	}

	if err := e.assets.Transfer(e.cfg.Asset, player, e.cfg.Account, lg.EntryFee); err != nil {
		return fmt.Errorf("%w: entry fee: %v", ErrLedger, err)
	}

	e.members[key] = true
	lg.Participants = append(lg.Participants, player)
	lg.PrizePool.Add(lg.PrizePool, lg.EntryFee)
	lg.Scores[player] = &model.PlayerScore{}

	e.logger.Debug("player joined",
		zap.Uint64("league_id", lg.ID),
		zap.String("player", player),
		zap.String("entry_fee", lg.EntryFee.String()),
	)
	return nil
}

// CheckAndFinishExpiredLeagues is the liveness hook: it finishes every
// Active league past its end time and recycles WaitingForPlayers leagues
// stalled longer than the spawn timeout (their stakes are refunded through
// the normal finish path). Callable by anyone at any time.
func (e *Engine) CheckAndFinishExpiredLeagues() error {
	now := e.now()
	for _, tier := range model.Tiers() {
		id, ok := e.currentByTier[tier]
		if !ok {
			continue
		}
		lg := e.leagues[id]

		switch lg.Status {
		case model.LeagueActive:
			if !now.Before(lg.EndTime) {
				if err := e.finish(lg); err != nil {
					return err
				}
			}
		case model.LeagueWaitingForPlayers:
			if now.Sub(lg.CreatedAt) >= e.cfg.SpawnTimeout {
				if err := e.finish(lg); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// GetLeaderboard returns up to limit ranked entries for a league, ordered by
// score descending with earlier submission winning ties.
func (e *Engine) GetLeaderboard(leagueID uint64, limit int) ([]string, []uint64, []time.Time, error) {
	lg, ok := e.leagues[leagueID]
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: %d", ErrUnknownLeague, leagueID)
	}

	ranked := rankScoringPlayers(lg)
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}

	players := make([]string, len(ranked))
	scores := make([]uint64, len(ranked))
	times := make([]time.Time, len(ranked))
	for i, player := range ranked {
		rec := lg.Scores[player]
		players[i] = player
		scores[i] = rec.Score
		times[i] = rec.SubmissionTime
	}
	return players, scores, times, nil
}

// LeagueInfo is a read-only summary of a tier's current league.
type LeagueInfo struct {
	LeagueID         uint64
	ParticipantCount int
	PrizePool        *big.Int
	Status           model.LeagueStatus
	TimeRemaining    time.Duration
}

// GetCurrentLeagueInfo summarizes the tier's current league.
func (e *Engine) GetCurrentLeagueInfo(tier model.Tier) (LeagueInfo, error) {
	id, ok := e.currentByTier[tier]
	if !ok {
		return LeagueInfo{}, fmt.Errorf("%w: %s has no league", ErrInvalidTier, tier)
	}
	lg := e.leagues[id]

	var remaining time.Duration
	if lg.Status == model.LeagueActive {
		if until := lg.EndTime.Sub(e.now()); until > 0 {
			remaining = until
		}
	}

	return LeagueInfo{
		LeagueID:         lg.ID,
		ParticipantCount: len(lg.Participants),
		PrizePool:        new(big.Int).Set(lg.PrizePool),
		Status:           lg.Status,
		TimeRemaining:    remaining,
	}, nil
}

// GetTierConfig returns a copy of the tier's configuration.
func (e *Engine) GetTierConfig(tier model.Tier) (model.TierConfig, error) {
	tc, ok := e.tiers[tier]
	if !ok {
		return model.TierConfig{}, fmt.Errorf("%w: %s", ErrInvalidTier, tier)
	}
	out := *tc
	out.EntryFee = new(big.Int).Set(tc.EntryFee)
	return out, nil
}

// League returns a finished-or-current league by id for historical query.
func (e *Engine) League(leagueID uint64) (*model.League, error) {
	lg, ok := e.leagues[leagueID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLeague, leagueID)
	}
	return lg, nil
}

// ConfigureTier creates or updates a tier. Operator only. Activating a tier
// without a live league spawns one; fee changes apply from the next spawned
// league (the current league keeps its snapshot).
func (e *Engine) ConfigureTier(caller string, tier model.Tier, tc model.TierConfig) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if tc.EntryFee == nil || tc.EntryFee.Sign() <= 0 {
		return fmt.Errorf("%w: entry fee must be positive", ErrInvalidConfig)
	}
	if tc.AutoStartThreshold < 1 {
		return fmt.Errorf("%w: auto-start threshold must be at least 1", ErrInvalidConfig)
	}

	copied := tc
	copied.EntryFee = new(big.Int).Set(tc.EntryFee)
	e.tiers[tier] = &copied

	if copied.Active {
		if id, ok := e.currentByTier[tier]; !ok || e.leagues[id].Status == model.LeagueFinished {
			e.spawn(tier)
		}
	}

	e.logger.Info("tier configured",
		zap.String("tier", tier.String()),
		zap.String("entry_fee", copied.EntryFee.String()),
		zap.Int("auto_start_threshold", copied.AutoStartThreshold),
		zap.Bool("active", copied.Active),
	)
	return nil
}

// SetPlatformFeeBps updates the platform cut, capped at 1000 bps. Operator only.
func (e *Engine) SetPlatformFeeBps(caller string, bps uint32) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if bps > maxPlatformFeeBps {
		return fmt.Errorf("%w: %d exceeds cap %d bps", ErrInvalidConfig, bps, maxPlatformFeeBps)
	}
	e.feeBps = bps
	return nil
}

// SetFeeRecipient updates the platform fee destination. Operator only.
func (e *Engine) SetFeeRecipient(caller, account string) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if account == "" {
		return fmt.Errorf("%w: fee recipient is required", ErrInvalidConfig)
	}
	e.feeRecipient = account
	return nil
}

// Pause blocks score submissions (and the joins inside them). The expiry
// sweep stays callable so open windows can always settle.
func (e *Engine) Pause(caller string) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	e.paused = true
	e.logger.Warn("league engine paused")
	return nil
}

// Unpause re-enables score submissions. Operator only.
func (e *Engine) Unpause(caller string) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	e.paused = false
	e.logger.Info("league engine unpaused")
	return nil
}

// EmergencyWithdraw moves amount of asset from the engine account to the
// operator, bypassing prize accounting. Escape hatch for stuck funds.
func (e *Engine) EmergencyWithdraw(caller, asset string, amount *big.Int) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidConfig)
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

func (e *Engine) requireOperator(caller string) error {
	if caller != e.cfg.Operator {
		return ErrUnauthorized
	}
	return nil
}
