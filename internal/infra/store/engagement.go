package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/studydash/studydash/internal/domain"
)

// ─── User Streak ────────────────────────────────────────────────────────────

const userStreakColumns = `user_id, current_streak, longest_streak, last_activity_date, streak_start_date,
	total_tasks_completed, total_xp, level, vacation_mode, vacation_started_at,
	early_bird_count, night_owl_count`

// EnsureUserStreak lazily creates the streak row for a user.
func (t *Tx) EnsureUserStreak(ctx context.Context, userID string, now time.Time) error {
	_, err := t.exec(ctx,
		`INSERT INTO user_streaks (user_id, level, created_at, updated_at) VALUES (?, 1, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, now.Unix(), now.Unix(),
	)
	return err
}

// GetUserStreak loads a user's streak row. Returns domain.ErrNotFound when
// the user has never completed anything.
func (t *Tx) GetUserStreak(ctx context.Context, userID string) (domain.UserStreak, error) {
	row := t.queryRow(ctx, `SELECT `+userStreakColumns+` FROM user_streaks WHERE user_id = ?`, userID)
	return scanUserStreak(row)
}

// LoadOrCreateUserStreak returns the user's row, creating it first if needed.
// On Postgres the row stays locked until the transaction ends, so concurrent
// writers for one user run their read-modify-write one after another. SQLite
// already serializes writers on its single connection.
func (t *Tx) LoadOrCreateUserStreak(ctx context.Context, userID string, now time.Time) (domain.UserStreak, error) {
	if err := t.EnsureUserStreak(ctx, userID, now); err != nil {
		return domain.UserStreak{}, err
	}
	q := `SELECT ` + userStreakColumns + ` FROM user_streaks WHERE user_id = ?`
	if t.postgres {
		q += ` FOR UPDATE`
	}
	return scanUserStreak(t.queryRow(ctx, q, userID))
}

// StreakUpdate carries the absolute streak fields and counter increments
// produced by one completion.
type StreakUpdate struct {
	CurrentStreak    int
	LongestStreak    int
	LastActivityDate *domain.Day
	StreakStartDate  *domain.Day
	TasksDelta       int
	EarlyBirdDelta   int
	NightOwlDelta    int
}

// counterColumns is the RETURNING list scanned by scanCounters.
const counterColumns = `total_tasks_completed, current_streak, early_bird_count, night_owl_count`

func scanCounters(row *sql.Row) (domain.AchievementCounters, error) {
	var c domain.AchievementCounters
	err := row.Scan(&c.TotalTasks, &c.CurrentStreak, &c.EarlyBirdCount, &c.NightOwlCount)
	if errors.Is(err, sql.ErrNoRows) {
		return c, domain.ErrNotFound
	}
	return c, err
}

// ApplyStreakUpdate writes streak fields and increments counters additively
// so concurrent completions for the same user never lose a count. It returns
// the counters as stored after the update.
func (t *Tx) ApplyStreakUpdate(ctx context.Context, userID string, u StreakUpdate, now time.Time) (domain.AchievementCounters, error) {
	return scanCounters(t.queryRow(ctx,
		`UPDATE user_streaks SET
			current_streak = ?,
			longest_streak = ?,
			last_activity_date = ?,
			streak_start_date = ?,
			total_tasks_completed = total_tasks_completed + ?,
			early_bird_count = early_bird_count + ?,
			night_owl_count = night_owl_count + ?,
			updated_at = ?
		 WHERE user_id = ?
		 RETURNING `+counterColumns,
		u.CurrentStreak, u.LongestStreak, nullableDay(u.LastActivityDate), nullableDay(u.StreakStartDate),
		u.TasksDelta, u.EarlyBirdDelta, u.NightOwlDelta, now.Unix(), userID,
	))
}

// IncrementCounters bumps cumulative counters without touching streak fields
// (vacation mode). It returns the counters as stored after the update.
func (t *Tx) IncrementCounters(ctx context.Context, userID string, tasks, earlyBird, nightOwl int, now time.Time) (domain.AchievementCounters, error) {
	return scanCounters(t.queryRow(ctx,
		`UPDATE user_streaks SET
			total_tasks_completed = total_tasks_completed + ?,
			early_bird_count = early_bird_count + ?,
			night_owl_count = night_owl_count + ?,
			updated_at = ?
		 WHERE user_id = ?
		 RETURNING `+counterColumns,
		tasks, earlyBird, nightOwl, now.Unix(), userID,
	))
}

// AddXP adds amount to the user's total and returns the new total.
func (t *Tx) AddXP(ctx context.Context, userID string, amount int, now time.Time) (int, error) {
	var total int
	err := t.queryRow(ctx,
		`UPDATE user_streaks SET total_xp = total_xp + ?, updated_at = ? WHERE user_id = ? RETURNING total_xp`,
		amount, now.Unix(), userID,
	).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return total, err
}

// SetLevel stores the cached level derived from total XP.
func (t *Tx) SetLevel(ctx context.Context, userID string, level int) error {
	_, err := t.exec(ctx, `UPDATE user_streaks SET level = ? WHERE user_id = ?`, level, userID)
	return err
}

// SetVacation toggles vacation mode. lastActivity, when non-nil, replaces the
// stored last activity date.
func (t *Tx) SetVacation(ctx context.Context, userID string, enabled bool, startedAt *time.Time, lastActivity *domain.Day, now time.Time) error {
	var started sql.NullInt64
	if startedAt != nil {
		started = sql.NullInt64{Int64: startedAt.Unix(), Valid: true}
	}
	if lastActivity != nil {
		_, err := t.exec(ctx,
			`UPDATE user_streaks SET vacation_mode = ?, vacation_started_at = ?, last_activity_date = ?, updated_at = ?
			 WHERE user_id = ?`,
			boolInt(enabled), started, lastActivity.String(), now.Unix(), userID,
		)
		return err
	}
	_, err := t.exec(ctx,
		`UPDATE user_streaks SET vacation_mode = ?, vacation_started_at = ?, updated_at = ? WHERE user_id = ?`,
		boolInt(enabled), started, now.Unix(), userID,
	)
	return err
}

// ─── Completion Credits ─────────────────────────────────────────────────────

// InsertCredit records a completion credit. Returns false when the
// (user, item type, item id) key was already credited.
func (t *Tx) InsertCredit(ctx context.Context, c domain.CompletionCredit) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	res, err := t.exec(ctx,
		`INSERT INTO completion_credits (id, user_id, item_type, item_id, xp_awarded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, item_type, item_id) DO NOTHING`,
		c.ID, c.UserID, string(c.ItemType), c.ItemID, c.XPAwarded, c.CreatedAt.Unix(),
	)
	if err != nil {
		return false, err
	}
	return inserted(res)
}

// SetCreditXP stores the XP finally paid for a credit.
func (t *Tx) SetCreditXP(ctx context.Context, userID string, itemType domain.ItemType, itemID string, xp int) error {
	_, err := t.exec(ctx,
		`UPDATE completion_credits SET xp_awarded = ? WHERE user_id = ? AND item_type = ? AND item_id = ?`,
		xp, userID, string(itemType), itemID,
	)
	return err
}

// CreditCounts returns credits created in [start, end) grouped by item type.
func (t *Tx) CreditCounts(ctx context.Context, userID string, start, end time.Time) (map[domain.ItemType]int, error) {
	rows, err := t.query(ctx,
		`SELECT item_type, COUNT(*) FROM completion_credits
		 WHERE user_id = ? AND created_at >= ? AND created_at < ?
		 GROUP BY item_type`,
		userID, start.Unix(), end.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ItemType]int)
	for rows.Next() {
		var itemType string
		var n int
		if err := rows.Scan(&itemType, &n); err != nil {
			return nil, err
		}
		counts[domain.ItemType(itemType)] = n
	}
	return counts, rows.Err()
}

// ─── Daily Activity ─────────────────────────────────────────────────────────

// UpsertDailyActivity adds to the (user, day) counters.
func (t *Tx) UpsertDailyActivity(ctx context.Context, userID string, day domain.Day, tasks, xp int) error {
	_, err := t.exec(ctx,
		`INSERT INTO daily_activity (user_id, day, tasks_completed, xp_earned) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, day) DO UPDATE SET
			tasks_completed = daily_activity.tasks_completed + excluded.tasks_completed,
			xp_earned = daily_activity.xp_earned + excluded.xp_earned`,
		userID, day.String(), tasks, xp,
	)
	return err
}

// GetDailyActivity returns the counters for one day (zero when absent).
func (t *Tx) GetDailyActivity(ctx context.Context, userID string, day domain.Day) (domain.DailyActivity, error) {
	a := domain.DailyActivity{Day: day}
	err := t.queryRow(ctx,
		`SELECT tasks_completed, xp_earned FROM daily_activity WHERE user_id = ? AND day = ?`,
		userID, day.String(),
	).Scan(&a.TasksCompleted, &a.XPEarned)
	if errors.Is(err, sql.ErrNoRows) {
		return a, nil
	}
	return a, err
}

// ActivityRange returns one entry per day in [from, to], zero-filled.
func (t *Tx) ActivityRange(ctx context.Context, userID string, from, to domain.Day) ([]domain.DailyActivity, error) {
	rows, err := t.query(ctx,
		`SELECT day, tasks_completed, xp_earned FROM daily_activity
		 WHERE user_id = ? AND day >= ? AND day <= ?`,
		userID, from.String(), to.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDay := make(map[string]domain.DailyActivity)
	for rows.Next() {
		var key string
		var a domain.DailyActivity
		if err := rows.Scan(&key, &a.TasksCompleted, &a.XPEarned); err != nil {
			return nil, err
		}
		byDay[key] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []domain.DailyActivity
	for d := from; !to.Before(d); d = d.AddDays(1) {
		a := byDay[d.String()]
		a.Day = d
		out = append(out, a)
	}
	return out, nil
}

// ─── Monthly Totals & Institutions ──────────────────────────────────────────

// UpsertMonthlyXP adds xp to the user's month total.
func (t *Tx) UpsertMonthlyXP(ctx context.Context, userID, yearMonth, institutionID string, xp int) error {
	_, err := t.exec(ctx,
		`INSERT INTO monthly_xp_totals (user_id, year_month, institution_id, xp) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, year_month) DO UPDATE SET
			xp = monthly_xp_totals.xp + excluded.xp,
			institution_id = excluded.institution_id`,
		userID, yearMonth, institutionID, xp,
	)
	return err
}

// InstitutionOf returns the user's institution id, or "" when none.
func (t *Tx) InstitutionOf(ctx context.Context, userID string) (string, error) {
	var inst string
	err := t.queryRow(ctx, `SELECT institution_id FROM user_institutions WHERE user_id = ?`, userID).Scan(&inst)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return inst, err
}

// SetInstitution assigns (or, with an empty id, clears) a user's institution.
func (t *Tx) SetInstitution(ctx context.Context, userID, institutionID string) error {
	if institutionID == "" {
		_, err := t.exec(ctx, `DELETE FROM user_institutions WHERE user_id = ?`, userID)
		return err
	}
	_, err := t.exec(ctx,
		`INSERT INTO user_institutions (user_id, institution_id) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET institution_id = excluded.institution_id`,
		userID, institutionID,
	)
	return err
}

// MonthlyXP returns one user's total for a month (zero when absent).
func (t *Tx) MonthlyXP(ctx context.Context, userID, yearMonth string) (domain.MonthlyXPTotal, error) {
	m := domain.MonthlyXPTotal{UserID: userID, YearMonth: yearMonth}
	err := t.queryRow(ctx,
		`SELECT institution_id, xp FROM monthly_xp_totals WHERE user_id = ? AND year_month = ?`,
		userID, yearMonth,
	).Scan(&m.InstitutionID, &m.XP)
	if errors.Is(err, sql.ErrNoRows) {
		return m, nil
	}
	return m, err
}

// Leaderboard ranks an institution's users by XP earned in a month.
func (t *Tx) Leaderboard(ctx context.Context, institutionID, yearMonth string, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := t.query(ctx,
		`SELECT m.user_id, m.xp, COALESCE(s.level, 1)
		 FROM monthly_xp_totals m
		 LEFT JOIN user_streaks s ON s.user_id = m.user_id
		 WHERE m.institution_id = ? AND m.year_month = ?
		 ORDER BY m.xp DESC, m.user_id ASC
		 LIMIT ?`,
		institutionID, yearMonth, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.XP, &e.Level); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ─── Achievements ───────────────────────────────────────────────────────────

// GrantedAchievements returns the user's grants keyed by achievement id.
func (t *Tx) GrantedAchievements(ctx context.Context, userID string) (map[string]time.Time, error) {
	rows, err := t.query(ctx,
		`SELECT achievement_id, earned_at FROM user_achievements WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	granted := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var earnedAt int64
		if err := rows.Scan(&id, &earnedAt); err != nil {
			return nil, err
		}
		granted[id] = time.Unix(earnedAt, 0).UTC()
	}
	return granted, rows.Err()
}

// GrantAchievement records a grant. Returns false if it already existed.
func (t *Tx) GrantAchievement(ctx context.Context, userID, achievementID string, at time.Time) (bool, error) {
	res, err := t.exec(ctx,
		`INSERT INTO user_achievements (user_id, achievement_id, earned_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		userID, achievementID, at.Unix(),
	)
	if err != nil {
		return false, err
	}
	return inserted(res)
}

// ─── Daily Challenge Rewards ────────────────────────────────────────────────

// ClaimedChallenges returns the challenge ids already rewarded for a day,
// including the sweep bonus pseudo-id.
func (t *Tx) ClaimedChallenges(ctx context.Context, userID, dateKey string) (map[string]bool, error) {
	rows, err := t.query(ctx,
		`SELECT challenge_id FROM daily_challenge_rewards WHERE user_id = ? AND date_key = ?`,
		userID, dateKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claimed := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		claimed[id] = true
	}
	return claimed, rows.Err()
}

// InsertChallengeReward records a claim. Returns false when that challenge
// was already claimed for the day.
func (t *Tx) InsertChallengeReward(ctx context.Context, r domain.DailyChallengeReward) (bool, error) {
	res, err := t.exec(ctx,
		`INSERT INTO daily_challenge_rewards (user_id, challenge_id, date_key, xp_awarded, claimed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, challenge_id, date_key) DO NOTHING`,
		r.UserID, r.ChallengeID, r.DateKey, r.XPAwarded, r.ClaimedAt.Unix(),
	)
	if err != nil {
		return false, err
	}
	return inserted(res)
}

// ─── XP Ledger ──────────────────────────────────────────────────────────────

// AppendXP writes an XP ledger entry.
func (t *Tx) AppendXP(ctx context.Context, e domain.XPEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := t.exec(ctx,
		`INSERT INTO xp_ledger (id, user_id, source, reference, amount, day, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, string(e.Source), e.Reference, e.Amount, e.Day.String(), e.CreatedAt.Unix(),
	)
	return err
}

// XPHistory returns the most recent ledger entries for a user.
func (t *Tx) XPHistory(ctx context.Context, userID string, limit int) ([]domain.XPEntry, error) {
	rows, err := t.query(ctx,
		`SELECT id, source, reference, amount, day, created_at FROM xp_ledger
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.XPEntry
	for rows.Next() {
		e := domain.XPEntry{UserID: userID}
		var source, day string
		var createdAt int64
		if err := rows.Scan(&e.ID, &source, &e.Reference, &e.Amount, &day, &createdAt); err != nil {
			return nil, err
		}
		e.Source = domain.XPSource(source)
		e.Day, _ = domain.ParseDay(day)
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LedgerTotal returns SUM(amount) of a user's XP ledger.
func (t *Tx) LedgerTotal(ctx context.Context, userID string) (int, error) {
	var total int
	err := t.queryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM xp_ledger WHERE user_id = ?`, userID).Scan(&total)
	return total, err
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUserStreak(s scanner) (domain.UserStreak, error) {
	var u domain.UserStreak
	var lastActivity, streakStart sql.NullString
	var vacation int
	var vacationStarted sql.NullInt64

	err := s.Scan(&u.UserID, &u.CurrentStreak, &u.LongestStreak, &lastActivity, &streakStart,
		&u.TotalTasksCompleted, &u.TotalXP, &u.Level, &vacation, &vacationStarted,
		&u.EarlyBirdCount, &u.NightOwlCount)
	if errors.Is(err, sql.ErrNoRows) {
		return u, domain.ErrNotFound
	}
	if err != nil {
		return u, err
	}

	if u.LastActivityDate, err = parseNullableDay(lastActivity); err != nil {
		return u, err
	}
	if u.StreakStartDate, err = parseNullableDay(streakStart); err != nil {
		return u, err
	}
	u.VacationMode = vacation != 0
	if vacationStarted.Valid {
		ts := time.Unix(vacationStarted.Int64, 0).UTC()
		u.VacationStartedAt = &ts
	}
	return u, nil
}

func parseNullableDay(s sql.NullString) (*domain.Day, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := domain.ParseDay(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullableDay(d *domain.Day) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
