package agent

import (
	"context"

	"github.com/boristopalov/dojo/pkg/core"
)

// RandomAgent acts uniformly at random and never learns. Continuous actions are
// drawn from [-1, 1] in each of their two dimensions.
type RandomAgent struct {
	params *AgentParams
}

func NewRandomAgent(opts ...AgentOption) *RandomAgent {
	params := buildParams(opts)
	if params.Name == "" {
		params.Name = "random"
	}
	return &RandomAgent{params: params}
}

func (a *RandomAgent) GetID() string {
	return a.params.AgentID
}

func (a *RandomAgent) Name() string {
	return a.params.Name
}

func (a *RandomAgent) Action(ctx context.Context, state core.State) (core.Action, error) {
	if a.params.Continuous {
		return core.Action{a.params.Rand.Float64()*2 - 1, a.params.Rand.Float64()*2 - 1}, nil
	}
	return core.DiscreteAction(a.params.Rand.Intn(a.params.NumActions)), nil
}

func (a *RandomAgent) Train(ctx context.Context, src core.ReplaySource) error {
	return nil
}

func (a *RandomAgent) DecayEpsilon() {
	a.params.Epsilon.Step()
}

func (a *RandomAgent) Epsilon() float64 {
	return a.params.Epsilon.Value()
}

func (a *RandomAgent) ContinuousActions() bool {
	return a.params.Continuous
}
