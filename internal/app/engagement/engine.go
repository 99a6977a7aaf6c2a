// Package engagement implements the gamification engine: streaks, XP and
// levels, achievements, deterministic daily challenges with cascading claims,
// and monthly leaderboards.
//
// Every mutating operation runs in one store transaction. Concurrent callers
// are serialized by unique keys on credits, grants and rewards: a duplicate
// insert is a zero-effect outcome, never an error.
package engagement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/studydash/studydash/internal/domain"
	"github.com/studydash/studydash/internal/infra/cache"
	"github.com/studydash/studydash/internal/infra/metrics"
	"github.com/studydash/studydash/internal/infra/store"
)

// DefaultMaxClaimPasses is one claim pass plus one cascade pass.
const DefaultMaxClaimPasses = 2

// Engine is the engagement engine.
type Engine struct {
	db             *store.DB
	log            *zap.Logger
	now            func() time.Time
	achievements   []domain.Achievement
	pool           []domain.ChallengeDefinition
	maxClaimPasses int
	cache          cache.Cache
	cacheTTL       time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithAchievements replaces the achievement catalog. A nil or empty slice
// disables achievements.
func WithAchievements(defs []domain.Achievement) Option {
	return func(e *Engine) { e.achievements = defs }
}

// WithChallengePool replaces the daily challenge pool.
func WithChallengePool(pool []domain.ChallengeDefinition) Option {
	return func(e *Engine) { e.pool = pool }
}

// WithMaxClaimPasses bounds claim passes (first claim included).
func WithMaxClaimPasses(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxClaimPasses = n
		}
	}
}

// WithCache enables read-model caching for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

// New creates an engine over db.
func New(db *store.DB, opts ...Option) *Engine {
	e := &Engine{
		db:             db,
		log:            zap.NewNop(),
		now:            time.Now,
		achievements:   DefaultAchievements(),
		pool:           DefaultChallengePool(),
		maxClaimPasses: DefaultMaxClaimPasses,
		cacheTTL:       time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("engagement")
	return e
}

// observe records the duration of an engine operation.
func observe(op string, start time.Time) {
	metrics.EngineOpLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ─── Completions ────────────────────────────────────────────────────────────

// RecordCompletion credits a completed item. With a non-empty itemID the call
// is idempotent per (userID, itemType, itemID): repeats return a zero-effect
// result with AlreadyCredited set.
func (e *Engine) RecordCompletion(ctx context.Context, userID string, itemType domain.ItemType, itemID string, tzOffset int) (domain.CompletionResult, error) {
	defer observe("record_completion", time.Now())

	if userID == "" {
		return domain.CompletionResult{}, domain.ErrInvalidUserID
	}
	if !itemType.Valid() {
		return domain.CompletionResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidItemType, itemType)
	}
	if err := domain.ValidateTimezone(tzOffset); err != nil {
		return domain.CompletionResult{}, err
	}

	now := e.now()
	today := domain.LocalDay(now, tzOffset)
	earlyBird, nightOwl := timeOfDayFlags(domain.LocalTime(now, tzOffset))

	var res domain.CompletionResult
	var g *grantScope
	var vacation bool

	err := e.db.WithTx(ctx, func(tx *store.Tx) error {
		res = domain.CompletionResult{}

		// The credit row goes first: it is the idempotency guard.
		if itemID != "" {
			isNew, err := tx.InsertCredit(ctx, domain.CompletionCredit{
				UserID:    userID,
				ItemType:  itemType,
				ItemID:    itemID,
				CreatedAt: now,
			})
			if err != nil {
				return fmt.Errorf("insert credit: %w", err)
			}
			if !isNew {
				res.AlreadyCredited = true
				return nil
			}
		}

		s, err := tx.LoadOrCreateUserStreak(ctx, userID, now)
		if err != nil {
			return fmt.Errorf("load streak: %w", err)
		}
		inst, err := tx.InstitutionOf(ctx, userID)
		if err != nil {
			return fmt.Errorf("institution: %w", err)
		}
		g = newGrantScope(userID, inst, today, now)
		vacation = s.VacationMode

		res.PreviousLevel = LevelForXP(s.TotalXP)
		res.NewStreak = s.CurrentStreak
		// Achievements are judged on the counters as stored after this
		// completion, not on the snapshot read above.
		var counters domain.AchievementCounters
		xp := BaseXP
		if s.VacationMode {
			counters, err = tx.IncrementCounters(ctx, userID, 1, earlyBird, nightOwl, now)
			if err != nil {
				return fmt.Errorf("update counters: %w", err)
			}
		} else {
			tr := AdvanceStreak(s, today)
			xp += StreakBonus(tr.Current)

			last := s.LastActivityDate
			if last == nil || last.Before(today) {
				last = &today
			}
			counters, err = tx.ApplyStreakUpdate(ctx, userID, store.StreakUpdate{
				CurrentStreak:    tr.Current,
				LongestStreak:    tr.Longest,
				LastActivityDate: last,
				StreakStartDate:  tr.Start,
				TasksDelta:       1,
				EarlyBirdDelta:   earlyBird,
				NightOwlDelta:    nightOwl,
			}, now)
			if err != nil {
				return fmt.Errorf("update streak: %w", err)
			}
			res.StreakUpdated = tr.Extended
			res.NewStreak = tr.Current
		}

		total, err := e.grantXP(ctx, tx, g, domain.XPTaskCompleted, creditRef(itemType, itemID), xp, 1)
		if err != nil {
			return err
		}
		if itemID != "" {
			if err := tx.SetCreditXP(ctx, userID, itemType, itemID, xp); err != nil {
				return fmt.Errorf("set credit xp: %w", err)
			}
		}
		res.XPEarned = xp

		granted, achTotal, err := e.evaluateAchievements(ctx, tx, g, counters, s.VacationMode)
		if err != nil {
			return err
		}
		if achTotal > 0 {
			total = achTotal
		}
		for _, a := range granted {
			res.BonusXP += a.XPReward
		}
		res.NewAchievements = granted

		res.NewLevel = LevelForXP(total)
		res.LevelUp = res.NewLevel > res.PreviousLevel
		return tx.SetLevel(ctx, userID, res.NewLevel)
	})
	if err != nil {
		return domain.CompletionResult{}, err
	}

	if res.AlreadyCredited {
		metrics.Completions.WithLabelValues("duplicate").Inc()
		e.log.Debug("completion already credited",
			zap.String("user_id", userID),
			zap.String("item_type", string(itemType)),
			zap.String("item_id", itemID))
		return res, nil
	}

	result := "credited"
	if vacation {
		result = "vacation"
	}
	metrics.Completions.WithLabelValues(result).Inc()
	g.commit()
	e.recordUnlocks(userID, res.NewAchievements)
	e.recordLevelUp(userID, res.LevelUp, res.PreviousLevel, res.NewLevel)
	return res, nil
}

func creditRef(itemType domain.ItemType, itemID string) string {
	if itemID == "" {
		return string(itemType)
	}
	return string(itemType) + ":" + itemID
}

func (e *Engine) recordLevelUp(userID string, up bool, from, to int) {
	if !up {
		return
	}
	metrics.LevelUps.Inc()
	e.log.Info("level up",
		zap.String("user_id", userID),
		zap.Int("from", from),
		zap.Int("to", to))
}

// ─── XP grants ──────────────────────────────────────────────────────────────

// grantScope carries what every XP grant inside one operation shares, and
// collects per-source totals reported once the transaction commits.
type grantScope struct {
	userID        string
	institutionID string
	day           domain.Day
	now           time.Time
	awarded       map[domain.XPSource]int
}

func newGrantScope(userID, institutionID string, day domain.Day, now time.Time) *grantScope {
	return &grantScope{
		userID:        userID,
		institutionID: institutionID,
		day:           day,
		now:           now,
		awarded:       make(map[domain.XPSource]int),
	}
}

// commit publishes the collected XP to metrics.
func (g *grantScope) commit() {
	for src, xp := range g.awarded {
		metrics.XPAwarded.WithLabelValues(string(src)).Add(float64(xp))
	}
}

// grantXP adds amount to the user's total and mirrors it into daily activity,
// the monthly total (when the user has an institution) and the XP ledger.
// tasks is added to the day's completion counter. Returns the new total.
func (e *Engine) grantXP(ctx context.Context, tx *store.Tx, g *grantScope, src domain.XPSource, ref string, amount, tasks int) (int, error) {
	total, err := tx.AddXP(ctx, g.userID, amount, g.now)
	if err != nil {
		return 0, fmt.Errorf("add xp: %w", err)
	}
	if err := tx.UpsertDailyActivity(ctx, g.userID, g.day, tasks, amount); err != nil {
		return 0, fmt.Errorf("daily activity: %w", err)
	}
	if g.institutionID != "" {
		if err := tx.UpsertMonthlyXP(ctx, g.userID, g.day.YearMonth(), g.institutionID, amount); err != nil {
			return 0, fmt.Errorf("monthly xp: %w", err)
		}
	}
	err = tx.AppendXP(ctx, domain.XPEntry{
		UserID:    g.userID,
		Source:    src,
		Reference: ref,
		Amount:    amount,
		Day:       g.day,
		CreatedAt: g.now,
	})
	if err != nil {
		return 0, fmt.Errorf("xp ledger: %w", err)
	}
	g.awarded[src] += amount
	return total, nil
}

// ─── Vacation & Institution ─────────────────────────────────────────────────

// SetVacationMode toggles the frozen-streak mode. Turning it off moves the
// last activity date up to the day before resumption so the vacation itself
// never breaks the streak. Setting the current state again is a no-op.
func (e *Engine) SetVacationMode(ctx context.Context, userID string, enabled bool) (domain.UserStreak, error) {
	defer observe("set_vacation", time.Now())

	if userID == "" {
		return domain.UserStreak{}, domain.ErrInvalidUserID
	}
	now := e.now()
	var out domain.UserStreak
	var changed bool

	err := e.db.WithTx(ctx, func(tx *store.Tx) error {
		s, err := tx.LoadOrCreateUserStreak(ctx, userID, now)
		if err != nil {
			return fmt.Errorf("load streak: %w", err)
		}
		changed = s.VacationMode != enabled
		if !changed {
			out = s
			return nil
		}

		if enabled {
			err = tx.SetVacation(ctx, userID, true, &now, nil, now)
		} else {
			var resume *domain.Day
			yesterday := domain.LocalDay(now, 0).AddDays(-1)
			if s.LastActivityDate != nil && s.LastActivityDate.Before(yesterday) {
				resume = &yesterday
			}
			err = tx.SetVacation(ctx, userID, false, nil, resume, now)
		}
		if err != nil {
			return fmt.Errorf("set vacation: %w", err)
		}
		out, err = tx.GetUserStreak(ctx, userID)
		return err
	})
	if err != nil {
		return domain.UserStreak{}, err
	}
	if changed {
		e.log.Info("vacation mode changed", zap.String("user_id", userID), zap.Bool("enabled", enabled))
	}
	return out, nil
}

// SetInstitution assigns the user to an institution for monthly leaderboards.
// An empty institutionID removes the membership.
func (e *Engine) SetInstitution(ctx context.Context, userID, institutionID string) error {
	if userID == "" {
		return domain.ErrInvalidUserID
	}
	return e.db.WithTx(ctx, func(tx *store.Tx) error {
		return tx.SetInstitution(ctx, userID, institutionID)
	})
}
