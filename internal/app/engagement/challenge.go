package engagement

import "github.com/studydash/studydash/internal/domain"

// ChallengesPerDay is the number of challenges selected for each day.
const ChallengesPerDay = 3

// SweepBonusXP is paid once per day when every selected challenge is done.
const SweepBonusXP = 25

// Selection strides. Category and in-category picks use different primes so
// consecutive slots spread across the pool.
const (
	categoryStride  = 7919
	challengeStride = 31
)

// challengePool is the built-in challenge catalog, five categories of three.
var challengePool = []domain.ChallengeDefinition{
	// tasks
	{ID: "tasks_3", Title: "Warm-up", Description: "Complete 3 tasks", Type: domain.ChallengeTask, Category: "tasks", TargetCount: 3, XPReward: 20},
	{ID: "tasks_5", Title: "Checklist", Description: "Complete 5 tasks", Type: domain.ChallengeTask, Category: "tasks", TargetCount: 5, XPReward: 35},
	{ID: "tasks_8", Title: "Clean Slate", Description: "Complete 8 tasks", Type: domain.ChallengeTask, Category: "tasks", TargetCount: 8, XPReward: 50},

	// flashcards
	{ID: "flashcards_10", Title: "Quick Review", Description: "Review 10 flashcards", Type: domain.ChallengeFlashcard, Category: "flashcards", TargetCount: 10, XPReward: 20},
	{ID: "flashcards_25", Title: "Memory Lane", Description: "Review 25 flashcards", Type: domain.ChallengeFlashcard, Category: "flashcards", TargetCount: 25, XPReward: 35},
	{ID: "flashcards_50", Title: "Deck Master", Description: "Review 50 flashcards", Type: domain.ChallengeFlashcard, Category: "flashcards", TargetCount: 50, XPReward: 50},

	// assignments
	{ID: "assignments_1", Title: "Hand It In", Description: "Finish 1 assignment", Type: domain.ChallengeAssignment, Category: "assignments", TargetCount: 1, XPReward: 25},
	{ID: "assignments_2", Title: "Double Submit", Description: "Finish 2 assignments", Type: domain.ChallengeAssignment, Category: "assignments", TargetCount: 2, XPReward: 40},
	{ID: "assignments_3", Title: "Ahead of Schedule", Description: "Finish 3 assignments", Type: domain.ChallengeAssignment, Category: "assignments", TargetCount: 3, XPReward: 60},

	// xp
	{ID: "xp_50", Title: "Spark", Description: "Earn 50 XP today", Type: domain.ChallengeXP, Category: "xp", TargetCount: 50, XPReward: 15},
	{ID: "xp_100", Title: "Charged", Description: "Earn 100 XP today", Type: domain.ChallengeXP, Category: "xp", TargetCount: 100, XPReward: 25},
	{ID: "xp_150", Title: "Supercharged", Description: "Earn 150 XP today", Type: domain.ChallengeXP, Category: "xp", TargetCount: 150, XPReward: 40},

	// momentum
	{ID: "any_5", Title: "Keep Moving", Description: "Complete any 5 items", Type: domain.ChallengeAny, Category: "momentum", TargetCount: 5, XPReward: 20},
	{ID: "any_10", Title: "In the Zone", Description: "Complete any 10 items", Type: domain.ChallengeAny, Category: "momentum", TargetCount: 10, XPReward: 35},
	{ID: "any_15", Title: "Marathon", Description: "Complete any 15 items", Type: domain.ChallengeAny, Category: "momentum", TargetCount: 15, XPReward: 50},
}

// DefaultChallengePool returns a copy of the built-in challenge catalog.
func DefaultChallengePool() []domain.ChallengeDefinition {
	out := make([]domain.ChallengeDefinition, len(challengePool))
	copy(out, challengePool)
	return out
}

// SelectChallenges picks the built-in challenges for a day key.
func SelectChallenges(dateKey string) []domain.ChallengeDefinition {
	return SelectFrom(challengePool, dateKey)
}

// SelectFrom deterministically picks up to ChallengesPerDay challenges from
// pool for dateKey, no two sharing a category. Pools with fewer categories
// yield fewer challenges.
func SelectFrom(pool []domain.ChallengeDefinition, dateKey string) []domain.ChallengeDefinition {
	var categories []string
	byCategory := make(map[string][]domain.ChallengeDefinition)
	for _, c := range pool {
		if _, ok := byCategory[c.Category]; !ok {
			categories = append(categories, c.Category)
		}
		byCategory[c.Category] = append(byCategory[c.Category], c)
	}

	h := dayHash(dateKey)
	selected := make([]domain.ChallengeDefinition, 0, ChallengesPerDay)
	for i := 0; i < ChallengesPerDay && len(categories) > 0; i++ {
		ci := slot(h, i, categoryStride, len(categories))
		cat := categories[ci]
		categories = append(categories[:ci:ci], categories[ci+1:]...)

		candidates := byCategory[cat]
		selected = append(selected, candidates[slot(h, i, challengeStride, len(candidates))])
	}
	return selected
}

// dayHash is djb2 over the key bytes, kept in the positive 31-bit range.
func dayHash(key string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(key); i++ {
		h = (h*33 + uint32(key[i])) & 0x7fffffff
	}
	return h
}

// slot is (h + i*stride) mod n, computed in 64 bits so it cannot wrap on
// platforms where int is 32 bits.
func slot(h uint32, i, stride, n int) int {
	return int((uint64(h) + uint64(i)*uint64(stride)) % uint64(n))
}
