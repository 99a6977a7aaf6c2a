package engagement

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/studydash/studydash/internal/domain"
	"github.com/studydash/studydash/internal/infra/metrics"
	"github.com/studydash/studydash/internal/infra/store"
)

// CheckAchievements evaluates the catalog against counters in its own
// transaction and grants whatever is newly satisfied.
func (e *Engine) CheckAchievements(ctx context.Context, userID string, counters domain.AchievementCounters, day domain.Day) ([]domain.Achievement, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	now := e.now()
	var granted []domain.Achievement
	var g *grantScope

	err := e.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.EnsureUserStreak(ctx, userID, now); err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}
		inst, err := tx.InstitutionOf(ctx, userID)
		if err != nil {
			return fmt.Errorf("institution: %w", err)
		}
		g = newGrantScope(userID, inst, day, now)

		var total int
		granted, total, err = e.evaluateAchievements(ctx, tx, g, counters, false)
		if err != nil {
			return err
		}
		if total > 0 {
			return tx.SetLevel(ctx, userID, LevelForXP(total))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	g.commit()
	e.recordUnlocks(userID, granted)
	return granted, nil
}

// evaluateAchievements grants every catalog entry not yet held whose
// requirement is met. It never revokes. skipStreak excludes streak rules
// (vacation mode freezes the streak). Returns the grants and the user's XP
// total after the last grant (0 when nothing was paid).
func (e *Engine) evaluateAchievements(ctx context.Context, tx *store.Tx, g *grantScope, c domain.AchievementCounters, skipStreak bool) ([]domain.Achievement, int, error) {
	held, err := tx.GrantedAchievements(ctx, g.userID)
	if err != nil {
		return nil, 0, fmt.Errorf("load achievements: %w", err)
	}

	var granted []domain.Achievement
	total := 0
	for _, def := range e.achievements {
		if _, ok := held[def.ID]; ok {
			continue
		}
		if skipStreak && def.Requirement.Type == domain.RequireStreak {
			continue
		}
		if c.Value(def.Requirement.Type) < def.Requirement.Value {
			continue
		}

		isNew, err := tx.GrantAchievement(ctx, g.userID, def.ID, g.now)
		if err != nil {
			return nil, 0, fmt.Errorf("grant %s: %w", def.ID, err)
		}
		if !isNew {
			continue // a concurrent evaluation got there first
		}
		if def.XPReward > 0 {
			total, err = e.grantXP(ctx, tx, g, domain.XPAchievement, def.ID, def.XPReward, 0)
			if err != nil {
				return nil, 0, err
			}
		}
		granted = append(granted, def)
	}
	return granted, total, nil
}

func (e *Engine) recordUnlocks(userID string, granted []domain.Achievement) {
	for _, a := range granted {
		metrics.AchievementsUnlocked.WithLabelValues(a.ID).Inc()
		e.log.Info("achievement unlocked",
			zap.String("user_id", userID),
			zap.String("achievement", a.ID),
			zap.Int("xp_reward", a.XPReward))
	}
}

// Achievements returns the catalog in use.
func (e *Engine) Achievements() []domain.Achievement {
	return e.achievements
}

// ─── Catalog ────────────────────────────────────────────────────────────────

// achievementFile is the TOML layout of an external catalog.
type achievementFile struct {
	Achievements []domain.Achievement `toml:"achievement"`
}

// LoadAchievements reads a catalog from a TOML file of [[achievement]] tables.
func LoadAchievements(path string) ([]domain.Achievement, error) {
	var f achievementFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("parse achievements: %w", err)
	}
	if err := ValidateAchievements(f.Achievements); err != nil {
		return nil, err
	}
	return f.Achievements, nil
}

// ValidateAchievements rejects unknown requirement types, duplicate ids and
// negative values.
func ValidateAchievements(defs []domain.Achievement) error {
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		switch {
		case d.ID == "":
			return fmt.Errorf("%w: empty id", domain.ErrInvalidAchievement)
		case seen[d.ID]:
			return fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidAchievement, d.ID)
		case !d.Requirement.Type.Valid():
			return fmt.Errorf("%w: %q has unknown requirement type %q", domain.ErrInvalidAchievement, d.ID, d.Requirement.Type)
		case d.Requirement.Value < 0 || d.XPReward < 0:
			return fmt.Errorf("%w: %q has a negative value", domain.ErrInvalidAchievement, d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

// DefaultAchievements returns the built-in catalog.
func DefaultAchievements() []domain.Achievement {
	return []domain.Achievement{
		// ── Streaks ────────────────────────────────────────────────────
		{ID: "streak_3", Name: "Warming Up", Description: "Keep a 3-day streak", Icon: "🔥", XPReward: 15,
			Requirement: domain.Requirement{Type: domain.RequireStreak, Value: 3}},
		{ID: "streak_7", Name: "Week Warrior", Description: "Keep a 7-day streak", Icon: "📅", XPReward: 50,
			Requirement: domain.Requirement{Type: domain.RequireStreak, Value: 7}},
		{ID: "streak_14", Name: "Fortnight Focus", Description: "Keep a 14-day streak", Icon: "💪", XPReward: 100,
			Requirement: domain.Requirement{Type: domain.RequireStreak, Value: 14}},
		{ID: "streak_30", Name: "Unstoppable", Description: "Keep a 30-day streak", Icon: "🏆", XPReward: 250,
			Requirement: domain.Requirement{Type: domain.RequireStreak, Value: 30}},

		// ── Tasks ──────────────────────────────────────────────────────
		{ID: "tasks_1", Name: "First Step", Description: "Complete your first item", Icon: "✅", XPReward: 10,
			Requirement: domain.Requirement{Type: domain.RequireTasks, Value: 1}},
		{ID: "tasks_10", Name: "Getting Things Done", Description: "Complete 10 items", Icon: "📝", XPReward: 25,
			Requirement: domain.Requirement{Type: domain.RequireTasks, Value: 10}},
		{ID: "tasks_50", Name: "Productive", Description: "Complete 50 items", Icon: "⚡", XPReward: 75,
			Requirement: domain.Requirement{Type: domain.RequireTasks, Value: 50}},
		{ID: "tasks_100", Name: "Centurion", Description: "Complete 100 items", Icon: "💯", XPReward: 150,
			Requirement: domain.Requirement{Type: domain.RequireTasks, Value: 100}},
		{ID: "tasks_500", Name: "Task Master", Description: "Complete 500 items", Icon: "👑", XPReward: 500,
			Requirement: domain.Requirement{Type: domain.RequireTasks, Value: 500}},

		// ── Time of day ────────────────────────────────────────────────
		{ID: "early_bird_5", Name: "Early Bird", Description: "Finish 5 items before 8am", Icon: "🌅", XPReward: 30,
			Requirement: domain.Requirement{Type: domain.RequireEarlyBird, Value: 5}},
		{ID: "early_bird_25", Name: "Dawn Patrol", Description: "Finish 25 items before 8am", Icon: "☀️", XPReward: 100,
			Requirement: domain.Requirement{Type: domain.RequireEarlyBird, Value: 25}},
		{ID: "night_owl_5", Name: "Night Owl", Description: "Finish 5 items after 11pm", Icon: "🦉", XPReward: 30,
			Requirement: domain.Requirement{Type: domain.RequireNightOwl, Value: 5}},
		{ID: "night_owl_25", Name: "Midnight Scholar", Description: "Finish 25 items after 11pm", Icon: "🌙", XPReward: 100,
			Requirement: domain.Requirement{Type: domain.RequireNightOwl, Value: 25}},
	}
}
