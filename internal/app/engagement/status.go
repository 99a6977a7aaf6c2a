package engagement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/studydash/studydash/internal/domain"
	"github.com/studydash/studydash/internal/infra/cache"
	"github.com/studydash/studydash/internal/infra/store"
)

// RecentActivityDays is the length of the status activity window.
const RecentActivityDays = 7

// History and leaderboard page bounds.
const (
	DefaultHistoryLimit     = 20
	MaxHistoryLimit         = 200
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// Status returns the dashboard read model: streak state, level stats, the
// achievement catalog joined with the user's grants, and the last seven UTC
// days of activity. Users with no history get a fresh level-1 state.
func (e *Engine) Status(ctx context.Context, userID string) (domain.UserStatus, error) {
	defer observe("status", time.Now())

	if userID == "" {
		return domain.UserStatus{}, domain.ErrInvalidUserID
	}
	today := domain.LocalDay(e.now(), 0)

	var (
		streak   domain.UserStreak
		granted  map[string]time.Time
		activity []domain.DailyActivity
	)
	err := e.db.View(ctx, func(tx *store.Tx) error {
		s, err := tx.GetUserStreak(ctx, userID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s = domain.UserStreak{UserID: userID, Level: 1}
		case err != nil:
			return err
		}
		streak = s

		if granted, err = tx.GrantedAchievements(ctx, userID); err != nil {
			return err
		}
		activity, err = tx.ActivityRange(ctx, userID, today.AddDays(-(RecentActivityDays - 1)), today)
		return err
	})
	if err != nil {
		return domain.UserStatus{}, fmt.Errorf("load status: %w", err)
	}

	st := domain.UserStatus{
		Streak:            streak,
		XP:                XPStats(streak.TotalXP),
		Achievements:      make([]domain.AchievementStatus, 0, len(e.achievements)),
		AchievementsTotal: len(e.achievements),
		RecentActivity:    activity,
	}
	for _, a := range e.achievements {
		as := domain.AchievementStatus{Achievement: a}
		if at, ok := granted[a.ID]; ok {
			as.Earned = true
			as.EarnedAt = &at
			st.AchievementsEarned++
		}
		st.Achievements = append(st.Achievements, as)
	}
	return st, nil
}

// XPHistory returns the user's most recent XP ledger entries.
func (e *Engine) XPHistory(ctx context.Context, userID string, limit int) ([]domain.XPEntry, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	limit = clampLimit(limit, DefaultHistoryLimit, MaxHistoryLimit)

	var entries []domain.XPEntry
	err := e.db.View(ctx, func(tx *store.Tx) error {
		var err error
		entries, err = tx.XPHistory(ctx, userID, limit)
		return err
	})
	if entries == nil {
		entries = []domain.XPEntry{}
	}
	return entries, err
}

// Leaderboard ranks an institution's users by XP earned in month ("YYYY-MM",
// empty for the current UTC month). Results are cached for the engine's
// cache TTL when a cache is configured.
func (e *Engine) Leaderboard(ctx context.Context, institutionID, month string, limit int) (domain.Leaderboard, error) {
	defer observe("leaderboard", time.Now())

	if institutionID == "" {
		return domain.Leaderboard{}, domain.ErrInvalidInstitution
	}
	if month == "" {
		month = domain.LocalDay(e.now(), 0).YearMonth()
	} else if _, err := time.Parse("2006-01", month); err != nil {
		return domain.Leaderboard{}, fmt.Errorf("%w: %q", domain.ErrInvalidMonth, month)
	}
	limit = clampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit)

	key := "leaderboard:" + institutionID + ":" + month + ":" + strconv.Itoa(limit)
	var lb domain.Leaderboard
	if e.cache != nil && cache.GetJSON(ctx, e.cache, key, &lb) {
		return lb, nil
	}

	lb = domain.Leaderboard{InstitutionID: institutionID, Month: month}
	err := e.db.View(ctx, func(tx *store.Tx) error {
		var err error
		lb.Entries, err = tx.Leaderboard(ctx, institutionID, month, limit)
		return err
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if lb.Entries == nil {
		lb.Entries = []domain.LeaderboardEntry{}
	}

	if e.cache != nil {
		if err := cache.SetJSON(ctx, e.cache, key, lb, e.cacheTTL); err != nil {
			e.log.Warn("leaderboard cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return lb, nil
}

func clampLimit(n, def, hi int) int {
	if n <= 0 {
		return def
	}
	return min(n, hi)
}
