package game

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var (
	// ErrConfiguration means the requested game could not be created.
	ErrConfiguration = errors.New("invalid game configuration")
	// ErrState means a step was requested on a game that was never set up.
	ErrState = errors.New("game state is not initialized")
)

// Status is a player's life state. Dead agents stay in the roster for display
// and role reveal, they just stop acting and stop being legal targets.
type Status string

const (
	StatusAlive Status = "Alive"
	StatusDead  Status = "Dead"
)

// Phase is the top-level game phase.
type Phase string

const (
	PhaseDay   Phase = "Day"
	PhaseNight Phase = "Night"
	PhaseEnd   Phase = "End"
)

// SubPhase is the step executed inside a phase. SubPhaseNone is only valid
// together with PhaseEnd.
type SubPhase string

const (
	SubPhaseDiscussion  SubPhase = "Discussion"
	SubPhaseVoting      SubPhase = "Voting"
	SubPhaseNightAction SubPhase = "NightAction"
	SubPhaseNone        SubPhase = "None"
)

// Winner identifies the winning faction, WinnerNone while the game runs.
type Winner string

const (
	WinnerNone    Winner = "None"
	WinnerMafia   Winner = "Mafia"
	WinnerVillage Winner = "Village"
)

// Agent is one simulated player. PrivateKnowledge holds facts only this agent
// may see in its prompts: Mafia teammate lists, Cop investigation results.
type Agent struct {
	ID               int      `json:"id"`
	Role             Role     `json:"role"`
	Status           Status   `json:"status"`
	Personality      string   `json:"personality"`
	PrivateKnowledge []string `json:"private_knowledge"`
}

// Alive reports whether the agent may still act or be targeted.
func (a *Agent) Alive() bool {
	return a.Status == StatusAlive
}

// learn appends a private fact. Appends only, order is the order of discovery.
func (a *Agent) learn(fact string) {
	a.PrivateKnowledge = append(a.PrivateKnowledge, fact)
}

// GameState is the single source of truth for one game. It is owned by the
// Engine; everything else sees read-only snapshots or returns results for the
// Engine to commit.
type GameState struct {
	DayCount int      `json:"day_count"`
	Phase    Phase    `json:"phase"`
	SubPhase SubPhase `json:"sub_phase"`
	Agents   []*Agent `json:"agents"`
	Events   []Event  `json:"events"`
	Winner   Winner   `json:"winner"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGameState assigns roles to numAgents players and opens Day 1 in the
// Discussion sub-phase. Mafia members learn their teammates before the first
// prompt is ever built.
func NewGameState(numAgents int, rng *rand.Rand) (*GameState, error) {
	roles, err := AssignRoles(numAgents, rng)
	if err != nil {
		return nil, err
	}

	state := &GameState{
		DayCount:  1,
		Phase:     PhaseDay,
		SubPhase:  SubPhaseDiscussion,
		Agents:    make([]*Agent, 0, numAgents),
		Events:    make([]Event, 0),
		Winner:    WinnerNone,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	var mafiaIDs []int
	for i, role := range roles {
		id := i + 1
		state.Agents = append(state.Agents, &Agent{
			ID:          id,
			Role:        role,
			Status:      StatusAlive,
			Personality: personalityFor(id),
		})
		if role == RoleMafia {
			mafiaIDs = append(mafiaIDs, id)
		}
	}

	for _, a := range state.Agents {
		if a.Role != RoleMafia {
			continue
		}
		for _, teammate := range mafiaIDs {
			if teammate != a.ID {
				a.learn(fmt.Sprintf("Player %d is your Mafia teammate.", teammate))
			}
		}
	}

	state.appendEvent(EventAnnouncement, fmt.Sprintf("A new game begins with %d players. Roles have been assigned in secret.", numAgents))
	return state, nil
}

// AgentByID returns the agent with the given id, or nil.
func (s *GameState) AgentByID(id int) *Agent {
	for _, a := range s.Agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// AliveAgents returns living agents in roster order.
func (s *GameState) AliveAgents() []*Agent {
	alive := make([]*Agent, 0, len(s.Agents))
	for _, a := range s.Agents {
		if a.Alive() {
			alive = append(alive, a)
		}
	}
	return alive
}

// AliveIDs returns the ids of living agents in roster order.
func (s *GameState) AliveIDs() []int {
	ids := make([]int, 0, len(s.Agents))
	for _, a := range s.Agents {
		if a.Alive() {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// aliveCounts returns living mafia and living non-mafia counts.
func (s *GameState) aliveCounts() (mafia, village int) {
	for _, a := range s.Agents {
		if !a.Alive() {
			continue
		}
		if a.Role == RoleMafia {
			mafia++
		} else {
			village++
		}
	}
	return mafia, village
}

// Ended reports whether the game reached its terminal phase.
func (s *GameState) Ended() bool {
	return s.Phase == PhaseEnd
}

// AgentSnapshot is the externally visible form of an agent. Roles are exposed
// here on purpose: the snapshot is an observer/debug surface, the in-engine
// prompts are what enforce information asymmetry.
type AgentSnapshot struct {
	ID     int    `json:"id"`
	Role   Role   `json:"role"`
	Status Status `json:"status"`
}

// Snapshot is a serializable copy of the game state returned by every control
// operation. It shares no memory with the live state.
type Snapshot struct {
	DayCount int             `json:"day_count"`
	Phase    Phase           `json:"game_phase"`
	SubPhase SubPhase        `json:"sub_phase"`
	Winner   Winner          `json:"winner"`
	Agents   []AgentSnapshot `json:"agents"`
	EventLog []Event         `json:"event_log"`
}

// Snapshot deep-copies the externally visible state.
func (s *GameState) Snapshot() Snapshot {
	snap := Snapshot{
		DayCount: s.DayCount,
		Phase:    s.Phase,
		SubPhase: s.SubPhase,
		Winner:   s.Winner,
		Agents:   make([]AgentSnapshot, 0, len(s.Agents)),
		EventLog: make([]Event, len(s.Events)),
	}
	for _, a := range s.Agents {
		snap.Agents = append(snap.Agents, AgentSnapshot{ID: a.ID, Role: a.Role, Status: a.Status})
	}
	copy(snap.EventLog, s.Events)
	return snap
}
