package agents

import (
	"fmt"
	"strings"
)

// DeadAgent is a fallen player as everyone may see them: death reveals the
// role publicly.
type DeadAgent struct {
	ID   int
	Role string
}

// DecisionContext is the exact slice of game state one agent is entitled to
// see for one decision. The engine builds it; nothing here leaks other
// players' roles, so accidental leakage is a construction bug, not a
// filtering bug.
type DecisionContext struct {
	AgentID          int
	Role             string
	Personality      string
	DayCount         int
	AliveIDs         []int
	Dead             []DeadAgent
	RecentEvents     []string
	PrivateKnowledge []string
	Decision         DecisionType
	// LegalTargets is empty for discussion; for votes and night actions it is
	// the set of ids the oracle may name.
	LegalTargets []int
}

// BuildPrompt renders the textual context sent to the oracle. Pure function
// of the context; it never mutates agent knowledge.
func BuildPrompt(dc DecisionContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are Player %d. Your role is: %s.\n", dc.AgentID, dc.Role)
	fmt.Fprintf(&b, "Your personality: %q\n", dc.Personality)
	b.WriteString("---\n")
	fmt.Fprintf(&b, "CURRENT SITUATION:\n- It is Day %d.\n", dc.DayCount)
	fmt.Fprintf(&b, "- Players still alive: %s.\n", joinIDs(dc.AliveIDs))
	if len(dc.Dead) == 0 {
		b.WriteString("- No one has died so far.\n")
	} else {
		parts := make([]string, 0, len(dc.Dead))
		for _, d := range dc.Dead {
			parts = append(parts, fmt.Sprintf("Player %d (was %s)", d.ID, d.Role))
		}
		fmt.Fprintf(&b, "- Dead: %s.\n", strings.Join(parts, ", "))
	}
	if len(dc.PrivateKnowledge) == 0 {
		b.WriteString("- You have no special information.\n")
	} else {
		b.WriteString("- Your secret knowledge:\n")
		for _, fact := range dc.PrivateKnowledge {
			fmt.Fprintf(&b, "  * %s\n", fact)
		}
	}
	b.WriteString("---\nRECENT CONVERSATION AND EVENTS:\n")
	for _, msg := range dc.RecentEvents {
		fmt.Fprintf(&b, "  %s\n", msg)
	}
	b.WriteString("---\nYOUR TASK:\n")
	b.WriteString(objectiveFor(dc))

	return b.String()
}

// objectiveFor states the concrete task and the required answer format.
func objectiveFor(dc DecisionContext) string {
	switch dc.Decision {
	case DecisionDiscussion:
		return "Say one thing to the group, in the first person. Be brief and direct. " +
			"Do not reveal your role. Your goal is to help your team win. " +
			"Answer with the sentence only."
	case DecisionVote:
		return fmt.Sprintf("Decide who to vote to eliminate. Choose exactly one player id from this list: %s. "+
			"Answer with the number only.", joinIDs(dc.LegalTargets))
	case DecisionNightAction:
		return nightObjective(dc)
	default:
		return "Answer with a single sentence."
	}
}

func nightObjective(dc DecisionContext) string {
	targets := joinIDs(dc.LegalTargets)
	switch dc.Role {
	case "Mafia":
		return fmt.Sprintf("You are Mafia. Choose one player to eliminate tonight from this list: %s. "+
			"Answer with the number only.", targets)
	case "Doctor":
		return fmt.Sprintf("You are the Doctor. Choose one player to protect tonight (you may protect yourself) from this list: %s. "+
			"Answer with the number only.", targets)
	case "Cop":
		return fmt.Sprintf("You are the Cop. Choose one player to investigate tonight from this list: %s. "+
			"Answer with the number only.", targets)
	default:
		return "You have no night power. Answer with the word: pass."
	}
}

func joinIDs(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
