package cli

import (
	"fmt"
	"strings"

	"github.com/studydash/studydash/internal/domain"
)

// ─── Progress Bar ───────────────────────────────────────────────────────────
// Renders level and challenge progress, e.g.
// Level 3  [=============>................] 45% │ 68 / 150 XP

const barWidth = 30 // Characters for the progress bar

// renderBar draws a fixed-width bar for pct in [0, 100].
func renderBar(pct int) string {
	pct = max(0, min(pct, 100))

	filled := pct * barWidth / 100
	empty := barWidth - filled

	switch {
	case filled == barWidth:
		return "[" + strings.Repeat("=", filled) + "]"
	case filled > 0:
		return "[" + strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty) + "]"
	default:
		return "[" + strings.Repeat(".", barWidth) + "]"
	}
}

// levelLine formats level stats as a single progress line.
func levelLine(s domain.LevelStats) string {
	return fmt.Sprintf("Level %d  %s %3d%% │ %d / %d XP",
		s.Level, renderBar(s.ProgressPercent), s.ProgressPercent, s.CurrentLevelXP, s.NextLevelXP)
}

// challengeLine formats one daily challenge with its progress.
func challengeLine(p domain.ChallengeProgress) string {
	pct := 0
	if p.Challenge.TargetCount > 0 {
		pct = p.CurrentCount * 100 / p.Challenge.TargetCount
	}
	mark := "[ ]"
	switch {
	case p.Claimed:
		mark = "[✓]"
	case p.Completed:
		mark = "[!]"
	}
	return fmt.Sprintf("%s %-24s %s %d/%d  +%d XP",
		mark, p.Challenge.Title, renderBar(pct), p.CurrentCount, p.Challenge.TargetCount, p.Challenge.XPReward)
}
