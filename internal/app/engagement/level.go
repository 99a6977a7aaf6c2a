package engagement

import (
	"math"

	"github.com/studydash/studydash/internal/domain"
)

// levelThresholds holds the cumulative XP floors of levels 1–10.
var levelThresholds = [...]int{0, 75, 175, 300, 450, 625, 825, 1050, 1300, 1600}

// XPPerLevelAfterTen is the flat cost of every level past 10.
const XPPerLevelAfterTen = 350

// XPForLevel returns the cumulative XP required to reach a given level.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	if level <= len(levelThresholds) {
		return levelThresholds[level-1]
	}
	last := levelThresholds[len(levelThresholds)-1]
	return last + (level-len(levelThresholds))*XPPerLevelAfterTen
}

// LevelForXP returns the highest level whose floor is <= xp.
// Monotonic non-decreasing and pure.
func LevelForXP(xp int) int {
	if xp <= 0 {
		return 1
	}
	last := levelThresholds[len(levelThresholds)-1]
	if xp >= last {
		return len(levelThresholds) + (xp-last)/XPPerLevelAfterTen
	}
	level := 1
	for i, floor := range levelThresholds {
		if xp >= floor {
			level = i + 1
		}
	}
	return level
}

// XPStats returns the level and progress inside it for a total XP amount.
func XPStats(totalXP int) domain.LevelStats {
	level := LevelForXP(totalXP)
	floor := XPForLevel(level)
	next := XPForLevel(level + 1)

	pct := 0
	if span := next - floor; span > 0 {
		pct = int(math.Round(100 * float64(totalXP-floor) / float64(span)))
	}
	pct = min(max(pct, 0), 100)

	return domain.LevelStats{
		Level:           level,
		TotalXP:         totalXP,
		CurrentLevelXP:  floor,
		NextLevelXP:     next,
		ProgressPercent: pct,
	}
}
