// Package domain holds the pure engagement types shared by the engine, the store
// and the HTTP surface. Nothing in here touches infrastructure.
package domain

import "time"

// ─── Item Types ─────────────────────────────────────────────────────────────

// ItemType names the kind of completable item that produced a credit.
type ItemType string

const (
	ItemTask       ItemType = "task"
	ItemFlashcard  ItemType = "flashcard"
	ItemAssignment ItemType = "assignment"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case ItemTask, ItemFlashcard, ItemAssignment:
		return true
	}
	return false
}

// ─── Streak & XP State ──────────────────────────────────────────────────────

// UserStreak is the per-user mutable engagement state. Created lazily on the
// first completion, never deleted.
type UserStreak struct {
	UserID              string     `json:"user_id"`
	CurrentStreak       int        `json:"current_streak"`
	LongestStreak       int        `json:"longest_streak"`
	LastActivityDate    *Day       `json:"last_activity_date"`
	StreakStartDate     *Day       `json:"streak_start_date"`
	TotalTasksCompleted int        `json:"total_tasks_completed"`
	TotalXP             int        `json:"total_xp"`
	Level               int        `json:"level"`
	VacationMode        bool       `json:"vacation_mode"`
	VacationStartedAt   *time.Time `json:"vacation_started_at"`
	EarlyBirdCount      int        `json:"early_bird_count"`
	NightOwlCount       int        `json:"night_owl_count"`
}

// CompletionCredit records that an item already paid out XP.
// Unique per (UserID, ItemType, ItemID); write-once.
type CompletionCredit struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ItemType  ItemType  `json:"item_type"`
	ItemID    string    `json:"item_id"`
	XPAwarded int       `json:"xp_awarded"`
	CreatedAt time.Time `json:"created_at"`
}

// DailyActivity is the additive per-(user, local day) counter row.
type DailyActivity struct {
	Day            Day `json:"date"`
	TasksCompleted int `json:"tasks_completed"`
	XPEarned       int `json:"xp_earned"`
}

// MonthlyXPTotal mirrors XP granted to a user in a calendar month,
// scoped to the user's institution for leaderboards.
type MonthlyXPTotal struct {
	UserID        string `json:"user_id"`
	YearMonth     string `json:"year_month"`
	InstitutionID string `json:"institution_id"`
	XP            int    `json:"xp"`
}

// XPSource categorizes how XP was earned.
type XPSource string

const (
	XPTaskCompleted  XPSource = "task_completed"
	XPAchievement    XPSource = "achievement"
	XPDailyChallenge XPSource = "daily_challenge"
	XPSweepBonus     XPSource = "sweep_bonus"
)

// XPEntry is a single row of the append-only XP ledger.
type XPEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Source    XPSource  `json:"source"`
	Reference string    `json:"reference"`
	Amount    int       `json:"amount"`
	Day       Day       `json:"day"`
	CreatedAt time.Time `json:"created_at"`
}

// ─── Levels ─────────────────────────────────────────────────────────────────

// LevelStats describes a user's position inside their current level.
type LevelStats struct {
	Level           int `json:"level"`
	TotalXP         int `json:"total_xp"`
	CurrentLevelXP  int `json:"current_level_xp"`
	NextLevelXP     int `json:"next_level_xp"`
	ProgressPercent int `json:"progress_percent"`
}

// ─── Achievements ───────────────────────────────────────────────────────────

// RequirementType is the counter an achievement is unlocked by.
type RequirementType string

const (
	RequireStreak    RequirementType = "streak"
	RequireTasks     RequirementType = "tasks"
	RequireEarlyBird RequirementType = "early_bird"
	RequireNightOwl  RequirementType = "night_owl"
)

// Valid reports whether t is a known requirement type.
func (t RequirementType) Valid() bool {
	switch t {
	case RequireStreak, RequireTasks, RequireEarlyBird, RequireNightOwl:
		return true
	}
	return false
}

// Requirement is the unlock rule of an achievement.
type Requirement struct {
	Type  RequirementType `json:"type" toml:"type"`
	Value int             `json:"value" toml:"value"`
}

// Achievement is a catalog entry.
type Achievement struct {
	ID          string      `json:"id" toml:"id"`
	Name        string      `json:"name" toml:"name"`
	Description string      `json:"description" toml:"description"`
	Icon        string      `json:"icon" toml:"icon"`
	XPReward    int         `json:"xp_reward" toml:"xp_reward"`
	Requirement Requirement `json:"requirement" toml:"requirement"`
}

// UserAchievement is an immutable grant record.
type UserAchievement struct {
	AchievementID string    `json:"achievement_id"`
	EarnedAt      time.Time `json:"earned_at"`
}

// AchievementCounters is the snapshot the evaluator tests requirements against.
type AchievementCounters struct {
	TotalTasks     int `json:"total_tasks"`
	CurrentStreak  int `json:"current_streak"`
	EarlyBirdCount int `json:"early_bird_count"`
	NightOwlCount  int `json:"night_owl_count"`
}

// Value returns the counter matching a requirement type.
func (c AchievementCounters) Value(t RequirementType) int {
	switch t {
	case RequireStreak:
		return c.CurrentStreak
	case RequireTasks:
		return c.TotalTasks
	case RequireEarlyBird:
		return c.EarlyBirdCount
	case RequireNightOwl:
		return c.NightOwlCount
	}
	return 0
}

// ─── Daily Challenges ───────────────────────────────────────────────────────

// ChallengeType selects the progress source of a challenge.
type ChallengeType string

const (
	ChallengeTask       ChallengeType = "task"
	ChallengeFlashcard  ChallengeType = "flashcard"
	ChallengeAssignment ChallengeType = "assignment"
	ChallengeXP         ChallengeType = "xp"
	ChallengeAny        ChallengeType = "any"
)

// SweepBonusID is the pseudo-challenge id recorded when all daily challenges
// were completed.
const SweepBonusID = "sweep_bonus"

// ChallengeDefinition is an in-memory catalog entry. Category is the
// diversity key: at most one selected challenge per category per day.
type ChallengeDefinition struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Type        ChallengeType `json:"type"`
	Category    string        `json:"category"`
	TargetCount int           `json:"target_count"`
	XPReward    int           `json:"xp_reward"`
}

// ChallengeProgress is a selected challenge with the user's progress for a day.
type ChallengeProgress struct {
	Challenge    ChallengeDefinition `json:"challenge"`
	CurrentCount int                 `json:"current_count"`
	Completed    bool                `json:"completed"`
	Claimed      bool                `json:"claimed"`
}

// DailyChallengeReward is the grant record whose existence means "claimed".
type DailyChallengeReward struct {
	UserID      string    `json:"user_id"`
	ChallengeID string    `json:"challenge_id"`
	DateKey     string    `json:"date_key"`
	XPAwarded   int       `json:"xp_awarded"`
	ClaimedAt   time.Time `json:"claimed_at"`
}

// ─── Results ────────────────────────────────────────────────────────────────

// CompletionResult is returned by RecordCompletion. XPEarned is the XP paid
// for the completion itself; BonusXP is XP from achievements unlocked by it.
type CompletionResult struct {
	XPEarned        int           `json:"xp_earned"`
	BonusXP         int           `json:"bonus_xp"`
	NewAchievements []Achievement `json:"new_achievements"`
	LevelUp         bool          `json:"level_up"`
	PreviousLevel   int           `json:"previous_level"`
	NewLevel        int           `json:"new_level"`
	StreakUpdated   bool          `json:"streak_updated"`
	NewStreak       int           `json:"new_streak"`
	AlreadyCredited bool          `json:"already_credited"`
}

// ClaimResult is returned by ClaimCompleted.
type ClaimResult struct {
	XPAwarded         int      `json:"xp_awarded"`
	LevelUp           bool     `json:"level_up"`
	NewLevel          int      `json:"new_level"`
	SweepBonus        bool     `json:"sweep_bonus"`
	ClaimedChallenges []string `json:"claimed_challenges"`
	Passes            int      `json:"passes"`
}

// AchievementStatus is a catalog entry joined with the user's grant.
type AchievementStatus struct {
	Achievement
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

// UserStatus is the read model for the dashboard widget.
type UserStatus struct {
	Streak             UserStreak          `json:"streak"`
	XP                 LevelStats          `json:"xp"`
	Achievements       []AchievementStatus `json:"achievements"`
	AchievementsEarned int                 `json:"achievements_earned"`
	AchievementsTotal  int                 `json:"achievements_total"`
	RecentActivity     []DailyActivity     `json:"recent_activity"`
}

// LeaderboardEntry is one ranked row of a monthly leaderboard.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	XP     int    `json:"xp"`
	Level  int    `json:"level"`
}

// Leaderboard is a monthly institution leaderboard.
type Leaderboard struct {
	InstitutionID string             `json:"institution_id"`
	Month         string             `json:"month"`
	Entries       []LeaderboardEntry `json:"entries"`
}
