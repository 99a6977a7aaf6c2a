package engagement

import (
	"time"

	"github.com/studydash/studydash/internal/domain"
)

// BaseXP is paid for every credited completion.
const BaseXP = 10

// Local-hour boundaries for the time-of-day counters.
const (
	earlyBirdBeforeHour = 8
	nightOwlFromHour    = 23
)

// StreakBonus returns the XP bonus for a streak length. Step function: only
// the highest matching tier applies.
func StreakBonus(streak int) int {
	switch {
	case streak >= 30:
		return 25
	case streak >= 14:
		return 15
	case streak >= 7:
		return 10
	case streak >= 3:
		return 5
	default:
		return 0
	}
}

// ShouldBreakStreak reports whether a streak last extended on last is broken
// when the next completion happens on today. Weekdays are required days;
// Saturday and Sunday never break a streak and are never required.
func ShouldBreakStreak(last, today domain.Day) bool {
	gap := today.DaysSince(last)
	if gap <= 1 {
		return false
	}
	if today.IsWeekend() {
		return gap > 3
	}
	return last.Before(previousWeekday(today))
}

// previousWeekday returns the most recent Mon–Fri strictly before d.
func previousWeekday(d domain.Day) domain.Day {
	p := d.AddDays(-1)
	for p.IsWeekend() {
		p = p.AddDays(-1)
	}
	return p
}

// StreakTransition is the outcome of applying one completion to a streak.
type StreakTransition struct {
	Current  int
	Longest  int
	Start    *domain.Day
	Extended bool // first completion of the day
	Broken   bool
}

// AdvanceStreak runs the streak state machine for a completion on today.
func AdvanceStreak(s domain.UserStreak, today domain.Day) StreakTransition {
	tr := StreakTransition{
		Current: s.CurrentStreak,
		Longest: s.LongestStreak,
		Start:   s.StreakStartDate,
	}

	switch {
	case s.LastActivityDate != nil && !s.LastActivityDate.Before(today):
		// Already active today.
	case s.LastActivityDate != nil && ShouldBreakStreak(*s.LastActivityDate, today):
		tr.Current = 1
		tr.Start = &today
		tr.Extended = true
		tr.Broken = true
	default:
		tr.Current = s.CurrentStreak + 1
		if tr.Start == nil {
			tr.Start = &today
		}
		tr.Extended = true
	}

	tr.Longest = max(tr.Longest, tr.Current)
	return tr
}

// timeOfDayFlags classifies the local completion hour.
func timeOfDayFlags(local time.Time) (earlyBird, nightOwl int) {
	h := local.Hour()
	if h < earlyBirdBeforeHour {
		earlyBird = 1
	}
	if h >= nightOwlFromHour {
		nightOwl = 1
	}
	return earlyBird, nightOwl
}
