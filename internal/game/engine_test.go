package game

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ndhoang/mafia-agents/internal/agents"
)

func TestNewEngineInvalidCount(t *testing.T) {
	for _, n := range []int{3, 17} {
		_, err := NewEngine("bad", Config{NumAgents: n}, newScriptedOracle(), nil, zerolog.Nop())
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("NumAgents=%d: got %v, want ErrConfiguration", n, err)
		}
	}
}

// TestPhaseSequence drives one full Day/Night cycle and checks the phase
// machine order: Discussion -> Voting -> NightAction -> Discussion(day+1).
func TestPhaseSequence(t *testing.T) {
	oracle := newScriptedOracle()
	engine := newTestEngine(t, 6, oracle)

	// Everyone names a villager so the vote never eliminates the mafia and
	// ends the game early; the villager itself degrades to an abstention.
	victim := firstWithRole(engine, RoleVillager)
	oracle.fallback = func(string) string { return strconv.Itoa(victim) }

	snap := engine.GetSnapshot()
	if snap.Phase != PhaseDay || snap.SubPhase != SubPhaseDiscussion || snap.DayCount != 1 {
		t.Fatalf("initial state = %s/%s day %d", snap.Phase, snap.SubPhase, snap.DayCount)
	}

	snap, err := engine.Step(context.Background())
	if err != nil {
		t.Fatalf("discussion step: %v", err)
	}
	if snap.Phase != PhaseDay || snap.SubPhase != SubPhaseVoting {
		t.Fatalf("after discussion: %s/%s", snap.Phase, snap.SubPhase)
	}

	snap, err = engine.Step(context.Background())
	if err != nil {
		t.Fatalf("voting step: %v", err)
	}
	if snap.Phase != PhaseNight || snap.SubPhase != SubPhaseNightAction {
		t.Fatalf("after voting: %s/%s", snap.Phase, snap.SubPhase)
	}
	if got := statusOf(snap, victim); got != StatusDead {
		t.Fatalf("voted-out player %d is %s, want Dead", victim, got)
	}

	// The scripted answer now names a dead player, so every night action
	// degrades to a no-op and the night is quiet.
	snap, err = engine.Step(context.Background())
	if err != nil {
		t.Fatalf("night step: %v", err)
	}
	if snap.Phase != PhaseDay || snap.SubPhase != SubPhaseDiscussion || snap.DayCount != 2 {
		t.Fatalf("after night: %s/%s day %d", snap.Phase, snap.SubPhase, snap.DayCount)
	}
}

// TestStepIdempotentAfterEnd votes out the lone mafia of a 4-player game and
// verifies further steps return the unchanged terminal snapshot.
func TestStepIdempotentAfterEnd(t *testing.T) {
	oracle := newScriptedOracle()
	engine := newTestEngine(t, 4, oracle)

	mafia := firstWithRole(engine, RoleMafia)
	oracle.fallback = func(string) string { return strconv.Itoa(mafia) }

	if _, err := engine.Step(context.Background()); err != nil {
		t.Fatalf("discussion step: %v", err)
	}
	snap, err := engine.Step(context.Background())
	if err != nil {
		t.Fatalf("voting step: %v", err)
	}
	if snap.Phase != PhaseEnd || snap.Winner != WinnerVillage {
		t.Fatalf("after mafia elimination: phase %s winner %s", snap.Phase, snap.Winner)
	}
	if snap.SubPhase != SubPhaseNone {
		t.Fatalf("terminal sub-phase = %s, want None", snap.SubPhase)
	}

	calls := oracle.calls
	again, err := engine.Step(context.Background())
	if err != nil {
		t.Fatalf("step after end: %v", err)
	}
	if oracle.calls != calls {
		t.Error("step after end still consulted the oracle")
	}
	if len(again.EventLog) != len(snap.EventLog) || again.DayCount != snap.DayCount || again.Winner != snap.Winner {
		t.Error("step after end mutated the terminal state")
	}
}

// TestSaveNegatesKill lines the Doctor up with the Mafia's target and checks
// that nobody dies and the survived-attack event names no one.
func TestSaveNegatesKill(t *testing.T) {
	oracle := newScriptedOracle()
	engine := newTestEngine(t, 6, oracle)

	victim := firstWithRole(engine, RoleVillager)
	mafia := firstWithRole(engine, RoleMafia)
	doctor := firstWithRole(engine, RoleDoctor)
	cop := firstWithRole(engine, RoleCop)

	// Unparseable fallback: discussion degrades to filler, votes to abstain.
	oracle.fallback = func(string) string { return "pass" }

	if _, err := engine.Step(context.Background()); err != nil {
		t.Fatalf("discussion step: %v", err)
	}
	if _, err := engine.Step(context.Background()); err != nil {
		t.Fatalf("voting step: %v", err)
	}

	oracle.queue(mafia, strconv.Itoa(victim))
	oracle.queue(doctor, strconv.Itoa(victim))
	oracle.queue(cop, strconv.Itoa(mafia))

	snap, err := engine.Step(context.Background())
	if err != nil {
		t.Fatalf("night step: %v", err)
	}

	if got := statusOf(snap, victim); got != StatusAlive {
		t.Fatalf("saved player %d is %s, want Alive", victim, got)
	}
	saved := findEvent(snap.EventLog, "the Doctor saved them")
	if saved == nil {
		t.Fatal("no survived-attack event in the log")
	}
	if strings.Contains(saved.Message, fmt.Sprintf("Player %d", victim)) {
		t.Errorf("survived-attack event names the saved agent: %q", saved.Message)
	}
	for _, e := range snap.EventLog {
		if strings.Contains(e.Message, "body has been discovered") {
			t.Errorf("death event produced despite the save: %q", e.Message)
		}
	}

	// The cop investigated the mafioso and should know the alignment.
	copAgent := engine.state.AgentByID(cop)
	if len(copAgent.PrivateKnowledge) == 0 ||
		!strings.Contains(copAgent.PrivateKnowledge[0], "Mafia") {
		t.Errorf("cop knowledge = %v, want a Mafia investigation result", copAgent.PrivateKnowledge)
	}
}

// TestNightKillRevealsRole checks the death announcement names the victim and
// reveals the role.
func TestNightKillRevealsRole(t *testing.T) {
	oracle := newScriptedOracle()
	engine := newTestEngine(t, 6, oracle)

	victim := firstWithRole(engine, RoleVillager)
	mafia := firstWithRole(engine, RoleMafia)
	doctor := firstWithRole(engine, RoleDoctor)

	oracle.fallback = func(string) string { return "pass" }

	if _, err := engine.Step(context.Background()); err != nil {
		t.Fatalf("discussion step: %v", err)
	}
	if _, err := engine.Step(context.Background()); err != nil {
		t.Fatalf("voting step: %v", err)
	}

	oracle.queue(mafia, strconv.Itoa(victim))
	oracle.queue(doctor, strconv.Itoa(doctor)) // doctor protects itself

	snap, err := engine.Step(context.Background())
	if err != nil {
		t.Fatalf("night step: %v", err)
	}

	if got := statusOf(snap, victim); got != StatusDead {
		t.Fatalf("kill target %d is %s, want Dead", victim, got)
	}
	death := findEvent(snap.EventLog, "body has been discovered")
	if death == nil {
		t.Fatal("no death event in the log")
	}
	want := fmt.Sprintf("Player %d (was a Villager)", victim)
	if !strings.Contains(death.Message, want) {
		t.Errorf("death event %q does not contain %q", death.Message, want)
	}
	if death.Kind != EventAnnouncement {
		t.Errorf("death event kind = %s, want announcement", death.Kind)
	}
}

// TestVoteTieNoElimination splits a 4-player vote 2-2 and expects everyone to
// survive under the default policy.
func TestVoteTieNoElimination(t *testing.T) {
	oracle := newScriptedOracle()
	engine := newTestEngine(t, 4, oracle)

	oracle.fallback = func(string) string { return "pass" }
	if _, err := engine.Step(context.Background()); err != nil {
		t.Fatalf("discussion step: %v", err)
	}

	oracle.queue(1, "2")
	oracle.queue(2, "1")
	oracle.queue(3, "2")
	oracle.queue(4, "1")

	snap, err := engine.Step(context.Background())
	if err != nil {
		t.Fatalf("voting step: %v", err)
	}

	for _, a := range snap.Agents {
		if a.Status != StatusAlive {
			t.Errorf("player %d eliminated on a tied vote", a.ID)
		}
	}
	if findEvent(snap.EventLog, "ended in a tie") == nil {
		t.Error("no tie announcement in the log")
	}
}

// TestMalformedCopResponseStillAdvances is the degraded-cop scenario: garbage
// from the oracle must not stall the phase machine.
func TestMalformedCopResponseStillAdvances(t *testing.T) {
	oracle := newScriptedOracle()
	engine := newTestEngine(t, 6, oracle)

	victim := firstWithRole(engine, RoleVillager)
	mafia := firstWithRole(engine, RoleMafia)
	cop := firstWithRole(engine, RoleCop)

	oracle.fallback = func(string) string { return "pass" }
	if _, err := engine.Step(context.Background()); err != nil {
		t.Fatalf("discussion step: %v", err)
	}
	if _, err := engine.Step(context.Background()); err != nil {
		t.Fatalf("voting step: %v", err)
	}

	oracle.queue(mafia, strconv.Itoa(victim))
	oracle.queue(cop, "the butler did it")

	snap, err := engine.Step(context.Background())
	if err != nil {
		t.Fatalf("night step with malformed cop response: %v", err)
	}

	if snap.Phase != PhaseDay || snap.SubPhase != SubPhaseDiscussion || snap.DayCount != 2 {
		t.Fatalf("phase did not advance: %s/%s day %d", snap.Phase, snap.SubPhase, snap.DayCount)
	}

	copAgent := engine.state.AgentByID(cop)
	if len(copAgent.PrivateKnowledge) == 0 ||
		!strings.Contains(copAgent.PrivateKnowledge[len(copAgent.PrivateKnowledge)-1], "yielded nothing") {
		t.Errorf("cop knowledge = %v, want a fallback entry", copAgent.PrivateKnowledge)
	}
	if findEvent(snap.EventLog, "investigation went nowhere") == nil {
		t.Error("no fallback narrative for the degraded investigation")
	}
}

// TestOracleDownStillAdvances runs a step with a dead oracle: every decision
// degrades but the game keeps moving.
func TestOracleDownStillAdvances(t *testing.T) {
	oracle := newScriptedOracle()
	oracle.err = errors.New("connection refused")
	engine := newTestEngine(t, 6, oracle)

	for i, want := range []SubPhase{SubPhaseVoting, SubPhaseNightAction, SubPhaseDiscussion} {
		snap, err := engine.Step(context.Background())
		if err != nil {
			t.Fatalf("step %d with dead oracle: %v", i+1, err)
		}
		if snap.SubPhase != want {
			t.Fatalf("step %d: sub-phase %s, want %s", i+1, snap.SubPhase, want)
		}
		for _, a := range snap.Agents {
			if a.Status != StatusAlive {
				t.Fatalf("player %d died while the oracle was down", a.ID)
			}
		}
	}
}

// TestFullGame plays a 6-player game to completion with a deterministic
// oracle and checks the terminal state plus event-log monotonicity.
func TestFullGame(t *testing.T) {
	oracle := newScriptedOracle()
	oracle.fallback = answerLowestTarget
	engine := newTestEngine(t, 6, oracle)

	var previous []Event
	for i := 0; i < 60; i++ {
		snap, err := engine.Step(context.Background())
		if err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}

		if len(snap.EventLog) < len(previous) {
			t.Fatalf("step %d: event log shrank from %d to %d", i+1, len(previous), len(snap.EventLog))
		}
		for j, e := range previous {
			if snap.EventLog[j] != e {
				t.Fatalf("step %d: event %d reordered or rewritten", i+1, j)
			}
		}
		previous = snap.EventLog

		if snap.Phase == PhaseEnd {
			if snap.Winner != WinnerMafia && snap.Winner != WinnerVillage {
				t.Fatalf("game ended with winner %s", snap.Winner)
			}
			return
		}
	}
	t.Fatal("game did not finish within 60 steps")
}

// TestDeadAgentsNeverConsulted runs a full game while asserting the oracle is
// only ever asked for living agents and only offered living targets.
func TestDeadAgentsNeverConsulted(t *testing.T) {
	var engine *Engine
	checker := &deadCheckOracle{t: t}
	checker.engine = func() *Engine { return engine }

	oracle := newScriptedOracle()
	oracle.fallback = answerLowestTarget
	checker.inner = oracle

	engine = newTestEngine(t, 6, checker)

	for i := 0; i < 60; i++ {
		snap, err := engine.Step(context.Background())
		if err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
		if snap.Phase == PhaseEnd {
			return
		}
	}
	t.Fatal("game did not finish within 60 steps")
}

// TestSnapshotIsolation mutates a returned snapshot and verifies the engine
// state is untouched.
func TestSnapshotIsolation(t *testing.T) {
	engine := newTestEngine(t, 6, newScriptedOracle())

	snap := engine.GetSnapshot()
	snap.Agents[0].Status = StatusDead
	snap.EventLog[0].Message = "tampered"

	fresh := engine.GetSnapshot()
	if fresh.Agents[0].Status != StatusAlive {
		t.Error("snapshot mutation leaked into engine state")
	}
	if fresh.EventLog[0].Message == "tampered" {
		t.Error("event log mutation leaked into engine state")
	}
}

// TestPromptInformationAsymmetry checks a villager's prompt never carries
// other players' living roles.
func TestPromptInformationAsymmetry(t *testing.T) {
	engine := newTestEngine(t, 8, newScriptedOracle())

	villager := engine.state.AgentByID(firstWithRole(engine, RoleVillager))
	prompt := engine.buildPrompt(villager, agents.DecisionVote, engine.targetsExcluding(villager.ID))

	if !strings.Contains(prompt, "Your role is: Villager") {
		t.Fatalf("prompt missing own role:\n%s", prompt)
	}
	for _, word := range []string{"teammate", "Doctor", "Cop"} {
		if strings.Contains(prompt, word) {
			t.Errorf("villager prompt leaks %q:\n%s", word, prompt)
		}
	}

	mafia := engine.state.AgentByID(firstWithRole(engine, RoleMafia))
	mafiaPrompt := engine.buildPrompt(mafia, agents.DecisionVote, engine.targetsExcluding(mafia.ID))
	if !strings.Contains(mafiaPrompt, "teammate") {
		t.Errorf("mafia prompt missing teammate knowledge:\n%s", mafiaPrompt)
	}
}

// --- helpers ---

var listPattern = regexp.MustCompile(`\[([0-9, ]+)\]`)

// answerLowestTarget picks the first id offered by the task's target list, or
// a canned sentence for discussion prompts.
func answerLowestTarget(prompt string) string {
	task := prompt
	if i := strings.LastIndex(prompt, "YOUR TASK:"); i >= 0 {
		task = prompt[i:]
	}
	if m := listPattern.FindStringSubmatch(task); m != nil {
		first := strings.SplitN(m[1], ",", 2)[0]
		return strings.TrimSpace(first)
	}
	return "I am watching all of you very closely."
}

func statusOf(snap Snapshot, id int) Status {
	for _, a := range snap.Agents {
		if a.ID == id {
			return a.Status
		}
	}
	return ""
}

func findEvent(events []Event, substr string) *Event {
	for i := range events {
		if strings.Contains(events[i].Message, substr) {
			return &events[i]
		}
	}
	return nil
}

// deadCheckOracle fails the test if a prompt addresses a dead agent or offers
// a dead target, then delegates to the inner oracle.
type deadCheckOracle struct {
	t      *testing.T
	engine func() *Engine
	inner  agents.Provider
}

func (o *deadCheckOracle) Complete(ctx context.Context, prompt string) (string, error) {
	snap := o.engine().GetSnapshot()
	alive := make(map[int]bool)
	for _, a := range snap.Agents {
		if a.Status == StatusAlive {
			alive[a.ID] = true
		}
	}

	actor := agentIDFromPrompt(prompt)
	if !alive[actor] {
		o.t.Errorf("oracle consulted for dead agent %d", actor)
	}

	task := prompt
	if i := strings.LastIndex(prompt, "YOUR TASK:"); i >= 0 {
		task = prompt[i:]
	}
	if m := listPattern.FindStringSubmatch(task); m != nil {
		for _, part := range strings.Split(m[1], ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			if !alive[id] {
				o.t.Errorf("dead agent %d offered as a legal target", id)
			}
		}
	}

	return o.inner.Complete(ctx, prompt)
}
