package game

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ndhoang/mafia-agents/internal/agents"
)

// scriptedOracle answers prompts from a per-agent script for unit tests. A
// script entry keyed by "player <id>" answers that agent; missing entries use
// the fallback function, and a non-nil err fails every call.
type scriptedOracle struct {
	mu       sync.Mutex
	answers  map[int][]string // agent id -> queued responses
	fallback func(prompt string) string
	err      error
	calls    int
}

func newScriptedOracle() *scriptedOracle {
	return &scriptedOracle{answers: make(map[int][]string)}
}

// queue adds a response for the given agent; responses are consumed in order.
func (o *scriptedOracle) queue(agentID int, response string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.answers[agentID] = append(o.answers[agentID], response)
}

func (o *scriptedOracle) Complete(_ context.Context, prompt string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++

	if o.err != nil {
		return "", o.err
	}

	id := agentIDFromPrompt(prompt)
	if queued, ok := o.answers[id]; ok && len(queued) > 0 {
		resp := queued[0]
		o.answers[id] = queued[1:]
		return resp, nil
	}
	if o.fallback != nil {
		return o.fallback(prompt), nil
	}
	return "", fmt.Errorf("%w: no scripted answer for agent %d", agents.ErrOracle, id)
}

// agentIDFromPrompt recovers the acting agent from the prompt's opening line
// ("You are Player N.").
func agentIDFromPrompt(prompt string) int {
	var id int
	line := prompt
	if i := strings.IndexByte(prompt, '\n'); i >= 0 {
		line = prompt[:i]
	}
	fmt.Sscanf(line, "You are Player %d.", &id)
	return id
}

// newTestEngine builds an engine with a pinned seed so role assignment is
// stable across runs.
func newTestEngine(t interface{ Fatalf(string, ...interface{}) }, n int, oracle agents.Provider) *Engine {
	engine, err := NewEngine("test-game", Config{NumAgents: n, Seed: 42}, oracle, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

// rolesByID maps agent id to role for scripting night actions.
func rolesByID(e *Engine) map[int]Role {
	roles := make(map[int]Role)
	for _, a := range e.state.Agents {
		roles[a.ID] = a.Role
	}
	return roles
}

// firstWithRole returns the id of the first agent holding role, or 0.
func firstWithRole(e *Engine, role Role) int {
	for _, a := range e.state.Agents {
		if a.Role == role {
			return a.ID
		}
	}
	return 0
}
