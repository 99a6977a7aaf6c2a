package engagement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/studydash/studydash/internal/domain"
	"github.com/studydash/studydash/internal/infra/metrics"
	"github.com/studydash/studydash/internal/infra/store"
)

// SelectChallenges returns the engine's challenges for a day key.
func (e *Engine) SelectChallenges(dateKey string) []domain.ChallengeDefinition {
	return SelectFrom(e.pool, dateKey)
}

// challengeDay is the progress snapshot of one user's day.
type challengeDay struct {
	progress     []domain.ChallengeProgress
	sweepClaimed bool
}

// allCompleted reports whether every selected challenge is done.
func (d challengeDay) allCompleted() bool {
	if len(d.progress) == 0 {
		return false
	}
	for _, p := range d.progress {
		if !p.Completed {
			return false
		}
	}
	return true
}

// computeProgress reads credits in the local day's UTC window, the day's
// activity row and the claimed set. It never writes.
func (e *Engine) computeProgress(ctx context.Context, tx *store.Tx, userID string, day domain.Day, tzOffset int) (challengeDay, error) {
	start, end := day.UTCWindow(tzOffset)
	counts, err := tx.CreditCounts(ctx, userID, start, end)
	if err != nil {
		return challengeDay{}, fmt.Errorf("credit counts: %w", err)
	}
	activity, err := tx.GetDailyActivity(ctx, userID, day)
	if err != nil {
		return challengeDay{}, fmt.Errorf("daily activity: %w", err)
	}
	claimed, err := tx.ClaimedChallenges(ctx, userID, day.String())
	if err != nil {
		return challengeDay{}, fmt.Errorf("claimed challenges: %w", err)
	}

	anyCount := 0
	for _, n := range counts {
		anyCount += n
	}

	var out challengeDay
	out.sweepClaimed = claimed[domain.SweepBonusID]
	for _, c := range e.SelectChallenges(day.String()) {
		var n int
		switch c.Type {
		case domain.ChallengeTask:
			n = counts[domain.ItemTask]
		case domain.ChallengeFlashcard:
			n = counts[domain.ItemFlashcard]
		case domain.ChallengeAssignment:
			n = counts[domain.ItemAssignment]
		case domain.ChallengeXP:
			n = activity.XPEarned
		case domain.ChallengeAny:
			n = anyCount
		}
		n = min(n, c.TargetCount)
		out.progress = append(out.progress, domain.ChallengeProgress{
			Challenge:    c,
			CurrentCount: n,
			Completed:    n >= c.TargetCount,
			Claimed:      claimed[c.ID],
		})
	}
	return out, nil
}

// ResolveDay parses dateKey, or derives the local day from now when empty.
func (e *Engine) ResolveDay(dateKey string, tzOffset int) (domain.Day, error) {
	if err := domain.ValidateTimezone(tzOffset); err != nil {
		return domain.Day{}, err
	}
	if dateKey == "" {
		return domain.LocalDay(e.now(), tzOffset), nil
	}
	return domain.ParseDay(dateKey)
}

// GetChallenges returns the day's selected challenges with the user's progress.
func (e *Engine) GetChallenges(ctx context.Context, userID, dateKey string, tzOffset int) ([]domain.ChallengeProgress, error) {
	defer observe("get_challenges", time.Now())

	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	day, err := e.ResolveDay(dateKey, tzOffset)
	if err != nil {
		return nil, err
	}

	var d challengeDay
	err = e.db.View(ctx, func(tx *store.Tx) error {
		d, err = e.computeProgress(ctx, tx, userID, day, tzOffset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d.progress, nil
}

// ─── Claims ─────────────────────────────────────────────────────────────────

// claimPass is what one committed claim transaction granted.
type claimPass struct {
	xp      int
	total   int
	claimed []string
	sweep   bool
}

// ClaimCompleted grants XP for completed, unclaimed challenges of the day and
// the sweep bonus once all of them are done. Each pass is its own
// transaction; claiming raises the day's XP, which can complete an XP
// challenge, so passes repeat up to the configured bound. On error the
// result reflects the passes that committed.
func (e *Engine) ClaimCompleted(ctx context.Context, userID, dateKey string, tzOffset int) (domain.ClaimResult, error) {
	defer observe("claim_completed", time.Now())

	if userID == "" {
		return domain.ClaimResult{}, domain.ErrInvalidUserID
	}
	day, err := e.ResolveDay(dateKey, tzOffset)
	if err != nil {
		return domain.ClaimResult{}, err
	}

	res := domain.ClaimResult{ClaimedChallenges: []string{}}
	startLevel := 0
	for i := 0; i < e.maxClaimPasses; i++ {
		p, level, err := e.claimOnce(ctx, userID, day, tzOffset)
		if i == 0 {
			startLevel = level
			res.NewLevel = level
		}
		if err != nil {
			return res, err
		}
		if p.xp == 0 && len(p.claimed) == 0 && !p.sweep {
			break
		}

		res.Passes++
		res.XPAwarded += p.xp
		res.ClaimedChallenges = append(res.ClaimedChallenges, p.claimed...)
		res.SweepBonus = res.SweepBonus || p.sweep
		if p.xp > 0 {
			res.NewLevel = LevelForXP(p.total)
		}
	}
	res.LevelUp = res.NewLevel > startLevel

	if res.Passes == 0 {
		metrics.ChallengeClaims.WithLabelValues("noop").Inc()
		e.log.Debug("nothing to claim", zap.String("user_id", userID), zap.String("date", day.String()))
		return res, nil
	}
	e.log.Info("challenges claimed",
		zap.String("user_id", userID),
		zap.String("date", day.String()),
		zap.Strings("challenges", res.ClaimedChallenges),
		zap.Bool("sweep_bonus", res.SweepBonus),
		zap.Int("xp", res.XPAwarded),
		zap.Int("passes", res.Passes))
	e.recordLevelUp(userID, res.LevelUp, startLevel, res.NewLevel)
	return res, nil
}

// claimOnce runs one claim transaction. It also returns the user's level as
// read at the start of the transaction.
func (e *Engine) claimOnce(ctx context.Context, userID string, day domain.Day, tzOffset int) (claimPass, int, error) {
	now := e.now()
	var p claimPass
	var level int
	var g *grantScope

	err := e.db.WithTx(ctx, func(tx *store.Tx) error {
		p = claimPass{}
		s, err := tx.LoadOrCreateUserStreak(ctx, userID, now)
		if err != nil {
			return fmt.Errorf("load streak: %w", err)
		}
		level = LevelForXP(s.TotalXP)

		d, err := e.computeProgress(ctx, tx, userID, day, tzOffset)
		if err != nil {
			return err
		}
		var toClaim []domain.ChallengeDefinition
		for _, cp := range d.progress {
			if cp.Completed && !cp.Claimed {
				toClaim = append(toClaim, cp.Challenge)
			}
		}
		sweep := d.allCompleted() && !d.sweepClaimed
		if len(toClaim) == 0 && !sweep {
			return nil
		}

		inst, err := tx.InstitutionOf(ctx, userID)
		if err != nil {
			return fmt.Errorf("institution: %w", err)
		}
		g = newGrantScope(userID, inst, day, now)

		for _, c := range toClaim {
			granted, err := e.grantReward(ctx, tx, g, &p, c.ID, c.XPReward, domain.XPDailyChallenge)
			if err != nil {
				return err
			}
			if granted {
				p.claimed = append(p.claimed, c.ID)
			}
		}
		if sweep {
			if p.sweep, err = e.grantReward(ctx, tx, g, &p, domain.SweepBonusID, SweepBonusXP, domain.XPSweepBonus); err != nil {
				return err
			}
		}
		if p.xp > 0 {
			return tx.SetLevel(ctx, userID, LevelForXP(p.total))
		}
		return nil
	})
	if err != nil {
		return claimPass{}, level, err
	}

	if g != nil {
		g.commit()
	}
	for range p.claimed {
		metrics.ChallengeClaims.WithLabelValues("claimed").Inc()
	}
	if p.sweep {
		metrics.ChallengeClaims.WithLabelValues("sweep").Inc()
	}
	return p, level, nil
}

// grantReward records the reward row and pays its XP. Returns false when the
// row already existed (a concurrent claim won).
func (e *Engine) grantReward(ctx context.Context, tx *store.Tx, g *grantScope, p *claimPass, id string, xp int, src domain.XPSource) (bool, error) {
	isNew, err := tx.InsertChallengeReward(ctx, domain.DailyChallengeReward{
		UserID:      g.userID,
		ChallengeID: id,
		DateKey:     g.day.String(),
		XPAwarded:   xp,
		ClaimedAt:   g.now,
	})
	if err != nil {
		return false, fmt.Errorf("insert reward %s: %w", id, err)
	}
	if !isNew {
		return false, nil
	}
	if xp > 0 {
		total, err := e.grantXP(ctx, tx, g, src, id, xp, 0)
		if err != nil {
			return false, err
		}
		p.xp += xp
		p.total = total
	}
	return true, nil
}
