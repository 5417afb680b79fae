package game

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndhoang/mafia-agents/internal/agents"
)

// Request asks one agent for one decision. LegalTargets is empty for
// discussion.
type Request struct {
	AgentID      int
	Decision     agents.DecisionType
	Prompt       string
	LegalTargets []int
}

// Result is a parsed decision. Target is 0 when the agent produced no legal
// target (abstain / no-op). Degraded marks decisions filled in by the default
// policy after an oracle failure; the step succeeds regardless.
type Result struct {
	AgentID  int
	Target   int
	Line     string
	Degraded bool
}

// Collector fans one oracle call out per acting agent. Calls run in parallel
// to bound latency; results are committed only after every call returned or
// timed out, in ascending agent-id order, so resolution is reproducible
// regardless of oracle response timing.
type Collector struct {
	oracle  agents.Provider
	timeout time.Duration
	log     zerolog.Logger
}

// NewCollector wires a collector to an oracle. The timeout bounds each
// individual call; one slow agent never stalls the whole step.
func NewCollector(oracle agents.Provider, timeout time.Duration, log zerolog.Logger) *Collector {
	return &Collector{oracle: oracle, timeout: timeout, log: log}
}

// Collect resolves every request and returns one result per request, sorted
// by agent id. Oracle failures become degraded results, never errors.
func (c *Collector) Collect(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.collectOne(ctx, reqs[i])
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].AgentID < results[j].AgentID
	})
	return results
}

func (c *Collector) collectOne(ctx context.Context, req Request) Result {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.oracle.Complete(callCtx, req.Prompt)
	if err != nil {
		c.log.Warn().Int("agent", req.AgentID).Str("decision", string(req.Decision)).Err(err).
			Msg("oracle call failed, applying default policy")
		return Result{AgentID: req.AgentID, Degraded: true}
	}

	if req.Decision == agents.DecisionDiscussion {
		line, err := agents.ParseLine(raw)
		if err != nil {
			c.log.Warn().Int("agent", req.AgentID).Err(err).Msg("unusable discussion line")
			return Result{AgentID: req.AgentID, Degraded: true}
		}
		return Result{AgentID: req.AgentID, Line: line}
	}

	target, err := agents.ParseTarget(raw, req.LegalTargets)
	if err != nil {
		c.log.Warn().Int("agent", req.AgentID).Str("decision", string(req.Decision)).Err(err).
			Msg("unusable target, applying default policy")
		return Result{AgentID: req.AgentID, Degraded: true}
	}
	return Result{AgentID: req.AgentID, Target: target}
}
