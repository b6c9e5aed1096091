package core

import (
	"context"

	"github.com/boristopalov/dojo/pkg/buffer"
)

// Agent selects actions and learns from sampled experience
type Agent interface {
	// Name identifies the agent in logs, results and checkpoint paths
	Name() string
	// Action returns the action to take in state
	Action(ctx context.Context, state State) (Action, error)
	// Train performs one learning update, sampling from src as it sees fit
	Train(ctx context.Context, src ReplaySource) error
	// DecayEpsilon advances the exploration schedule by one episode
	DecayEpsilon()
	// Epsilon returns the current exploration parameter
	Epsilon() float64
	// ContinuousActions reports whether actions are 2-wide vectors rather than an index
	ContinuousActions() bool
}

// Checkpointer is implemented by agents whose learned state can be saved and restored.
// Agents opt in; callers must query for it.
type Checkpointer interface {
	Save() error
	Load(path string) error
}

// ReplaySource is what an agent samples training batches from
type ReplaySource interface {
	Sample(batchSize int) (*buffer.Batch, error)
	Len() int
}

// Environment defines the rules and mechanics an agent interacts with
type Environment interface {
	// Reset starts a new episode and returns its first state
	Reset(ctx context.Context) (State, Info, error)
	// Step applies action and advances the environment by one timestep
	Step(ctx context.Context, action Action) (StepResult, error)
	// Render draws the current state, for humans
	Render() error
	// Close releases resources held by the environment
	Close() error
}

// AsCheckpointer reports whether a supports checkpointing.
func AsCheckpointer(a Agent) (Checkpointer, bool) {
	c, ok := a.(Checkpointer)
	return c, ok
}
