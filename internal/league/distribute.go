package league

import (
	"fmt"
	"math/big"
	"sort"

	"go.uber.org/zap"

	"tokenArena/internal/model"
	"tokenArena/internal/numeric"
)

// payout is one planned ledger credit out of the engine account.
type payout struct {
	to     string
	amount *big.Int
	kind   string
}

// finish settles a league: prizes when enough players scored, entry-fee
// refunds otherwise, then a successor league for the tier. All bookkeeping
// is committed before the ledger transfers run; a failed transfer unwinds
// the whole settlement. Finishing an already-Finished league is a no-op.
func (e *Engine) finish(lg *model.League) error {
	if lg.Status == model.LeagueFinished {
		return nil
	}
	prevStatus := lg.Status
	wasDistributed := lg.Distributed

	var plan []payout
	switch {
	case lg.Distributed:
		// Settled on a previous attempt; nothing left to pay.
	case len(lg.ScoringPlayers) >= minPlayersForPrizes && lg.PrizePool.Sign() > 0:
		plan = e.prizePlan(lg)
		lg.Distributed = true
	case lg.PrizePool.Sign() > 0:
		plan = refundPlan(lg)
	}

	lg.Status = model.LeagueFinished
	for _, p := range lg.Participants {
		delete(e.members, memberKey{player: p, tier: lg.Tier})
	}

	var successorID uint64
	if tc, ok := e.tiers[lg.Tier]; ok && tc.Active {
		successorID = e.spawn(lg.Tier).ID
	}

	if err := e.executePayouts(lg, plan); err != nil {
		lg.Status = prevStatus
		lg.Distributed = wasDistributed
		for _, p := range lg.Participants {
			e.members[memberKey{player: p, tier: lg.Tier}] = true
		}
		if successorID != 0 {
			delete(e.leagues, successorID)
			e.currentByTier[lg.Tier] = lg.ID
			e.nextID--
		}
		return err
	}

	e.logger.Info("league finished",
		zap.Uint64("league_id", lg.ID),
		zap.String("tier", lg.Tier.String()),
		zap.Int("participants", len(lg.Participants)),
		zap.Int("scoring", len(lg.ScoringPlayers)),
		zap.Bool("distributed", lg.Distributed),
	)
	return nil
}

// prizePlan splits the prize pool across the ranked brackets. Whatever a
// short bracket cannot claim stays in the engine account; that leftover is
// intentional, not rounding loss.
func (e *Engine) prizePlan(lg *model.League) []payout {
	ranked := rankScoringPlayers(lg)
	n := len(ranked)

	fee := numeric.BpsOf(lg.PrizePool, e.feeBps)
	net := new(big.Int).Sub(lg.PrizePool, fee)

	var plan []payout
	if fee.Sign() > 0 && e.feeRecipient != "" {
		plan = append(plan, payout{to: e.feeRecipient, amount: fee, kind: "platform_fee"})
	}

	podium := len(podiumBps)
	if n < podium {
		podium = n
	}
	for i := 0; i < podium; i++ {
		prize := numeric.BpsOf(net, podiumBps[i])
		if prize.Sign() > 0 {
			plan = append(plan, payout{to: ranked[i], amount: prize, kind: "podium"})
		}
	}

	bracketSize := numeric.CeilDiv(n, bracketDivisor)
	next := podium

	plan = append(plan, bracketPlan(ranked, &next, bracketSize, net, competitiveBps, "competitive")...)
	plan = append(plan, bracketPlan(ranked, &next, bracketSize, net, participationBps, "participation")...)
	return plan
}

// bracketPlan splits net*bps/10000 evenly across the next size ranked
// players, capped by how many remain. The integer-division remainder is not
// distributed.
func bracketPlan(ranked []string, next *int, size int, net *big.Int, bps uint32, kind string) []payout {
	remaining := len(ranked) - *next
	if size > remaining {
		size = remaining
	}
	if size <= 0 {
		return nil
	}

	share := numeric.BpsOf(net, bps)
	share.Div(share, big.NewInt(int64(size)))
	if share.Sign() == 0 {
		*next += size
		return nil
	}

	plan := make([]payout, 0, size)
	for i := 0; i < size; i++ {
		plan = append(plan, payout{to: ranked[*next+i], amount: new(big.Int).Set(share), kind: kind})
	}
	*next += size
	return plan
}

// refundPlan returns every participant's entry fee.
func refundPlan(lg *model.League) []payout {
	plan := make([]payout, 0, len(lg.Participants))
	for _, p := range lg.Participants {
		plan = append(plan, payout{to: p, amount: new(big.Int).Set(lg.EntryFee), kind: "refund"})
	}
	return plan
}

// executePayouts runs the planned credits in order. On failure, credits
// already made are pulled back so the settlement has no partial effect.
func (e *Engine) executePayouts(lg *model.League, plan []payout) error {
	for i, p := range plan {
		if err := e.assets.Transfer(e.cfg.Asset, e.cfg.Account, p.to, p.amount); err != nil {
			for j := i - 1; j >= 0; j-- {
				paid := plan[j]
				if backErr := e.assets.Transfer(e.cfg.Asset, paid.to, e.cfg.Account, paid.amount); backErr != nil {
					e.logger.Error("payout unwind failed, pool needs reconciliation",
						zap.Uint64("league_id", lg.ID),
						zap.String("to", paid.to),
						zap.Error(backErr),
					)
				}
			}
			return fmt.Errorf("%w: %s to %s: %v", ErrLedger, p.kind, p.to, err)
		}
		e.logger.Debug("payout",
			zap.Uint64("league_id", lg.ID),
			zap.String("kind", p.kind),
			zap.String("to", p.to),
			zap.String("amount", p.amount.String()),
		)
	}
	return nil
}

// rankScoringPlayers orders scoring players by score descending; equal
// scores rank by earlier submission, then by join order.
func rankScoringPlayers(lg *model.League) []string {
	ranked := make([]string, len(lg.ScoringPlayers))
	copy(ranked, lg.ScoringPlayers)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := lg.Scores[ranked[i]], lg.Scores[ranked[j]]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.SubmissionTime.Before(b.SubmissionTime)
	})
	return ranked
}
