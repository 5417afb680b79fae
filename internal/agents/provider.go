package agents

import (
	"context"
	"errors"
)

// ErrOracle wraps every failure of the decision oracle: network errors,
// timeouts, and responses that do not parse into a legal decision. The engine
// recovers from it per-agent with a default policy and never surfaces it to
// the API caller.
var ErrOracle = errors.New("oracle failure")

// Provider is the decision oracle: it turns a situational prompt into raw
// text. Implementations are expected to be fallible and latency-bearing, so
// every call carries a context with a deadline.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// DecisionType identifies what kind of decision is being requested from an
// agent.
type DecisionType string

const (
	DecisionDiscussion  DecisionType = "discussion"
	DecisionVote        DecisionType = "vote"
	DecisionNightAction DecisionType = "night_action"
)
