package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndhoang/mafia-agents/internal/agents"
	"github.com/ndhoang/mafia-agents/internal/rules"
)

const (
	defaultOracleTimeout = 20 * time.Second
	// defaultRecentWindow caps the public-log excerpt included in prompts.
	defaultRecentWindow = 15
)

// Config tunes one game instance.
type Config struct {
	NumAgents int
	// Seed pins role assignment for reproducible games; 0 seeds from the
	// clock.
	Seed int64
	// OracleTimeout bounds each individual oracle call.
	OracleTimeout time.Duration
	// RecentEventWindow is how many public log lines a prompt may quote.
	RecentEventWindow int
}

// Engine owns one game's canonical state and drives the phase sequence
// Day.Discussion -> Day.Voting -> Night.NightAction -> Day.Discussion(+1).
// It is the only component that mutates GameState: collectors and resolvers
// return results, the engine commits them.
type Engine struct {
	ID string

	// stepMu serializes Step so racing control requests cannot interleave
	// sub-phases; mu guards state for concurrent snapshot readers.
	stepMu sync.Mutex
	mu     sync.RWMutex

	state        *GameState
	collector    *Collector
	policy       *rules.Policy
	recentWindow int
	log          zerolog.Logger
}

// NewEngine creates a game: assigns roles, seeds mafia knowledge, opens Day 1.
// A nil policy selects the conventional rule set.
func NewEngine(id string, cfg Config, oracle agents.Provider, policy *rules.Policy, log zerolog.Logger) (*Engine, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	state, err := NewGameState(cfg.NumAgents, rng)
	if err != nil {
		return nil, err
	}

	timeout := cfg.OracleTimeout
	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}
	window := cfg.RecentEventWindow
	if window <= 0 {
		window = defaultRecentWindow
	}
	if policy == nil {
		policy = rules.MustDefault()
	}

	engineLog := log.With().Str("game", id).Logger()
	return &Engine{
		ID:           id,
		state:        state,
		collector:    NewCollector(oracle, timeout, engineLog),
		policy:       policy,
		recentWindow: window,
		log:          engineLog,
	}, nil
}

// GetSnapshot returns a serializable copy of the current state without
// advancing the game.
func (e *Engine) GetSnapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Snapshot()
}

// Step executes exactly one sub-phase and returns the resulting snapshot.
// Once the game has ended, Step is an idempotent no-op. A step either fully
// commits its sub-phase or leaves the state untouched.
func (e *Engine) Step(ctx context.Context) (Snapshot, error) {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	if e.state == nil {
		return Snapshot{}, ErrState
	}
	if e.state.Ended() {
		return e.GetSnapshot(), nil
	}

	var err error
	switch e.state.SubPhase {
	case SubPhaseDiscussion:
		err = e.stepDiscussion(ctx)
	case SubPhaseVoting:
		err = e.stepVoting(ctx)
	case SubPhaseNightAction:
		err = e.stepNight(ctx)
	default:
		err = fmt.Errorf("%w: unexpected sub-phase %q", ErrState, e.state.SubPhase)
	}
	if err != nil {
		return Snapshot{}, err
	}

	return e.GetSnapshot(), nil
}

// stepDiscussion collects one dialogue line from every living agent and moves
// on to voting.
func (e *Engine) stepDiscussion(ctx context.Context) error {
	alive := e.state.AliveAgents()
	reqs := make([]Request, 0, len(alive))
	for _, a := range alive {
		reqs = append(reqs, Request{
			AgentID:  a.ID,
			Decision: agents.DecisionDiscussion,
			Prompt:   e.buildPrompt(a, agents.DecisionDiscussion, nil),
		})
	}

	results := e.collector.Collect(ctx, reqs)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.appendEvent(EventAnnouncement, fmt.Sprintf("Day %d. The town gathers to discuss.", e.state.DayCount))
	for _, res := range results {
		if actor := e.state.AgentByID(res.AgentID); actor == nil || !actor.Alive() {
			continue
		}
		line := res.Line
		if res.Degraded {
			line = "I have nothing to add right now."
		}
		e.state.appendEvent(EventNarrative, fmt.Sprintf("Player %d: %q", res.AgentID, line))
	}
	e.state.SubPhase = SubPhaseVoting
	return nil
}

// stepVoting collects votes from every living agent, applies the elimination
// rule and checks the win condition.
func (e *Engine) stepVoting(ctx context.Context) error {
	alive := e.state.AliveAgents()
	reqs := make([]Request, 0, len(alive))
	for _, a := range alive {
		targets := e.targetsExcluding(a.ID)
		reqs = append(reqs, Request{
			AgentID:      a.ID,
			Decision:     agents.DecisionVote,
			Prompt:       e.buildPrompt(a, agents.DecisionVote, targets),
			LegalTargets: targets,
		})
	}

	results := e.collector.Collect(ctx, reqs)

	votes := make(map[int]int)
	for _, res := range results {
		if actor := e.state.AgentByID(res.AgentID); actor == nil || !actor.Alive() {
			continue
		}
		votes[res.AgentID] = res.Target
	}

	eliminated, tied := TallyVotes(votes, e.policy.TieBreak())

	// Decide the outcome before touching state so a policy fault cannot
	// leave a half-applied step.
	outcome, err := e.decideWith(eliminated)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, res := range results {
		if _, ok := votes[res.AgentID]; !ok {
			continue
		}
		if res.Target == 0 {
			e.state.appendEvent(EventNarrative, fmt.Sprintf("Player %d abstained from the vote.", res.AgentID))
		} else {
			e.state.appendEvent(EventNarrative, fmt.Sprintf("Player %d has cast a vote against Player %d.", res.AgentID, res.Target))
		}
	}

	switch {
	case eliminated != 0:
		victim := e.state.AgentByID(eliminated)
		victim.Status = StatusDead
		e.state.appendEvent(EventAnnouncement,
			fmt.Sprintf("Vote result: Player %d (%s) has been eliminated.", victim.ID, victim.Role))
	case tied:
		e.state.appendEvent(EventAnnouncement, "The vote ended in a tie. No one is eliminated.")
	default:
		e.state.appendEvent(EventAnnouncement, "No votes were cast. No one is eliminated.")
	}

	if e.finishIfWon(outcome) {
		return nil
	}
	e.state.Phase = PhaseNight
	e.state.SubPhase = SubPhaseNightAction
	return nil
}

// stepNight collects the Mafia kill, Doctor save and Cop investigations,
// resolves them simultaneously and checks the win condition.
func (e *Engine) stepNight(ctx context.Context) error {
	var reqs []Request
	for _, a := range e.state.AliveAgents() {
		var targets []int
		switch a.Role {
		case RoleMafia, RoleCop:
			targets = e.targetsExcluding(a.ID)
		case RoleDoctor:
			targets = e.state.AliveIDs()
		default:
			continue
		}
		reqs = append(reqs, Request{
			AgentID:      a.ID,
			Decision:     agents.DecisionNightAction,
			Prompt:       e.buildPrompt(a, agents.DecisionNightAction, targets),
			LegalTargets: targets,
		})
	}

	results := e.collector.Collect(ctx, reqs)

	actions := nightActions{investigations: make(map[int]int)}
	var mafiaChoices []int
	for _, res := range results {
		actor := e.state.AgentByID(res.AgentID)
		if actor == nil || !actor.Alive() {
			continue
		}
		switch actor.Role {
		case RoleMafia:
			mafiaChoices = append(mafiaChoices, res.Target)
		case RoleDoctor:
			actions.saveTarget = res.Target
		case RoleCop:
			if res.Target != 0 {
				actions.investigations[actor.ID] = res.Target
			} else {
				actions.copFallbacks = append(actions.copFallbacks, actor.ID)
			}
		}
	}
	actions.killTarget = killTargetOf(mafiaChoices)

	killed := actions.killTarget
	if killed != 0 && killed == actions.saveTarget {
		killed = 0
	}
	outcome, err := e.decideWith(killed)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.appendEvent(EventAnnouncement, fmt.Sprintf("Night %d falls. Actions are taken in secret.", e.state.DayCount))
	if actions.killTarget != 0 {
		e.state.appendEvent(EventNarrative, "The Mafia have chosen their victim.")
	}
	if actions.saveTarget != 0 {
		e.state.appendEvent(EventNarrative, "The Doctor has chosen someone to protect.")
	}
	for range actions.investigations {
		e.state.appendEvent(EventNarrative, "The Cop has chosen someone to investigate.")
	}
	for range actions.copFallbacks {
		e.state.appendEvent(EventNarrative, "The Cop's investigation went nowhere tonight.")
	}

	switch {
	case actions.killTarget != 0 && actions.killTarget == actions.saveTarget:
		// Preserve the information asymmetry: the saved agent is not named.
		e.state.appendEvent(EventAnnouncement, "Someone was attacked during the night, but the Doctor saved them!")
	case actions.killTarget != 0:
		victim := e.state.AgentByID(actions.killTarget)
		victim.Status = StatusDead
		e.state.appendEvent(EventAnnouncement,
			fmt.Sprintf("A body has been discovered: Player %d (was a %s) was killed during the night.", victim.ID, victim.Role))
	default:
		e.state.appendEvent(EventAnnouncement, "The night was quiet. No one died.")
	}

	for copID, targetID := range actions.investigations {
		cop := e.state.AgentByID(copID)
		target := e.state.AgentByID(targetID)
		alignment := "not Mafia"
		if target.Role == RoleMafia {
			alignment = "Mafia"
		}
		cop.learn(fmt.Sprintf("Night %d: you investigated Player %d, who is %s.", e.state.DayCount, targetID, alignment))
	}
	for _, copID := range actions.copFallbacks {
		e.state.AgentByID(copID).learn(fmt.Sprintf("Night %d: your investigation yielded nothing.", e.state.DayCount))
	}

	if e.finishIfWon(outcome) {
		return nil
	}
	e.state.DayCount++
	e.state.Phase = PhaseDay
	e.state.SubPhase = SubPhaseDiscussion
	return nil
}

// decideWith evaluates the win policy as if pendingDeath (0 for none) were
// already applied, without mutating the state.
func (e *Engine) decideWith(pendingDeath int) (rules.Outcome, error) {
	mafia, village := e.state.aliveCounts()
	if victim := e.state.AgentByID(pendingDeath); victim != nil && victim.Alive() {
		if victim.Role == RoleMafia {
			mafia--
		} else {
			village--
		}
	}
	return e.policy.Decide(mafia, village, e.state.DayCount)
}

// finishIfWon freezes the game when a faction has won. Caller holds e.mu.
func (e *Engine) finishIfWon(outcome rules.Outcome) bool {
	switch outcome {
	case rules.OutcomeVillageWin:
		e.state.Winner = WinnerVillage
		e.state.appendEvent(EventAnnouncement, "Game over! The Village has eliminated the Mafia and won.")
	case rules.OutcomeMafiaWin:
		e.state.Winner = WinnerMafia
		e.state.appendEvent(EventAnnouncement, "Game over! The Mafia have taken over the town and won.")
	default:
		return false
	}
	e.state.Phase = PhaseEnd
	e.state.SubPhase = SubPhaseNone
	e.log.Info().Str("winner", string(e.state.Winner)).Int("day", e.state.DayCount).Msg("game finished")
	return true
}

// targetsExcluding returns living agent ids minus the actor itself.
func (e *Engine) targetsExcluding(selfID int) []int {
	ids := e.state.AliveIDs()
	targets := make([]int, 0, len(ids))
	for _, id := range ids {
		if id != selfID {
			targets = append(targets, id)
		}
	}
	return targets
}

// buildPrompt assembles the per-agent oracle context. Each agent only ever
// receives what it is entitled to see: its own role and knowledge, the public
// log, and publicly revealed roles of the dead.
func (e *Engine) buildPrompt(a *Agent, decision agents.DecisionType, targets []int) string {
	dc := agents.DecisionContext{
		AgentID:          a.ID,
		Role:             string(a.Role),
		Personality:      a.Personality,
		DayCount:         e.state.DayCount,
		AliveIDs:         e.state.AliveIDs(),
		RecentEvents:     e.state.RecentMessages(e.recentWindow),
		PrivateKnowledge: append([]string(nil), a.PrivateKnowledge...),
		Decision:         decision,
		LegalTargets:     targets,
	}
	for _, other := range e.state.Agents {
		if !other.Alive() {
			dc.Dead = append(dc.Dead, agents.DeadAgent{ID: other.ID, Role: string(other.Role)})
		}
	}
	return agents.BuildPrompt(dc)
}
