package game

import (
	"sort"

	"github.com/ndhoang/mafia-agents/internal/rules"
)

// TallyVotes applies plurality voting. votes maps voter id to target id; a
// zero target is an abstention and never enters the tally. Returns the
// eliminated id (0 for none) and whether the plurality was tied. How a tie
// resolves is the policy's call, not the tally's.
func TallyVotes(votes map[int]int, tb rules.TieBreak) (eliminated int, tied bool) {
	counts := make(map[int]int)
	for _, target := range votes {
		if target != 0 {
			counts[target]++
		}
	}
	if len(counts) == 0 {
		return 0, false
	}

	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}

	var leaders []int
	for target, n := range counts {
		if n == max {
			leaders = append(leaders, target)
		}
	}
	sort.Ints(leaders)

	if len(leaders) == 1 {
		return leaders[0], false
	}
	if tb == rules.TieBreakLowestID {
		return leaders[0], true
	}
	return 0, true
}

// killTargetOf picks the single Mafia victim from the individual mafia
// choices: plurality, ties broken toward the lowest target id so the outcome
// never depends on oracle response timing. Returns 0 when no mafioso produced
// a legal target.
func killTargetOf(choices []int) int {
	counts := make(map[int]int)
	for _, target := range choices {
		if target != 0 {
			counts[target]++
		}
	}
	if len(counts) == 0 {
		return 0
	}

	best, bestCount := 0, 0
	for target, n := range counts {
		if n > bestCount || (n == bestCount && target < best) {
			best, bestCount = target, n
		}
	}
	return best
}

// nightActions is the transient record of one Night's choices. It exists only
// between collection and resolution; the transcript keeps the derived
// narrative, not the record.
type nightActions struct {
	killTarget     int
	saveTarget     int
	investigations map[int]int // cop id -> target id
	copFallbacks   []int       // cop ids whose investigation degraded
}
