package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"github.com/boristopalov/dojo/pkg/checkpoint"
	"github.com/boristopalov/dojo/pkg/core"
)

// LinearQAgent learns one linear action-value function per discrete action
// with semi-gradient Q-learning on batches sampled from replay.
type LinearQAgent struct {
	params *AgentParams
	// weights[a] holds StateSize coefficients followed by a bias.
	weights [][]float64
}

type linearQCheckpoint struct {
	Weights [][]float64 `json:"weights"`
	Epsilon float64     `json:"epsilon"`
}

func NewLinearQAgent(opts ...AgentOption) (*LinearQAgent, error) {
	params := buildParams(opts)
	if params.Name == "" {
		params.Name = "linear_q"
	}
	if params.Continuous {
		return nil, errors.New("linear Q agent needs a discrete action space")
	}
	if params.NumActions <= 0 || params.StateSize <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %d actions, state size %d", params.NumActions, params.StateSize)
	}
	if params.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", params.BatchSize)
	}

	weights := make([][]float64, params.NumActions)
	for a := range weights {
		weights[a] = make([]float64, params.StateSize+1)
	}
	return &LinearQAgent{params: params, weights: weights}, nil
}

func (a *LinearQAgent) GetID() string {
	return a.params.AgentID
}

func (a *LinearQAgent) Name() string {
	return a.params.Name
}

func (a *LinearQAgent) features(state []float64) ([]float64, error) {
	if len(state) != a.params.StateSize {
		return nil, fmt.Errorf("state has %d values, want %d", len(state), a.params.StateSize)
	}
	x := make([]float64, 0, len(state)+1)
	x = append(x, state...)
	return append(x, 1), nil
}

// QValues returns the estimated value of every action in state.
func (a *LinearQAgent) QValues(state []float64) ([]float64, error) {
	x, err := a.features(state)
	if err != nil {
		return nil, err
	}
	q := make([]float64, len(a.weights))
	for i, w := range a.weights {
		q[i] = floats.Dot(w, x)
	}
	return q, nil
}

func (a *LinearQAgent) Action(ctx context.Context, state core.State) (core.Action, error) {
	if a.params.Rand.Float64() < a.params.Epsilon.Value() {
		return core.DiscreteAction(a.params.Rand.Intn(a.params.NumActions)), nil
	}
	q, err := a.QValues(state)
	if err != nil {
		return nil, err
	}
	return core.DiscreteAction(floats.MaxIdx(q)), nil
}

// Train samples one batch and takes a TD(0) step per sampled transition. The
// bootstrap term is masked according to the buffer's done convention.
func (a *LinearQAgent) Train(ctx context.Context, src core.ReplaySource) error {
	if src.Len() == 0 {
		return nil
	}
	batch, err := src.Sample(a.params.BatchSize)
	if err != nil {
		return fmt.Errorf("sample batch: %w", err)
	}

	for k := range batch.Indices {
		x, err := a.features(batch.States[k])
		if err != nil {
			return err
		}
		next, err := a.QValues(batch.NextStates[k])
		if err != nil {
			return err
		}
		action := core.Action(batch.Actions[k]).Index()
		if action < 0 || action >= len(a.weights) {
			return fmt.Errorf("sampled action %d out of range", action)
		}

		mask := a.params.DoneConvention.Mask(batch.Dones[k])
		target := batch.Rewards[k] + a.params.Gamma*mask*floats.Max(next)
		tdErr := target - floats.Dot(a.weights[action], x)
		floats.AddScaled(a.weights[action], a.params.LearningRate*tdErr, x)
	}
	return nil
}

func (a *LinearQAgent) DecayEpsilon() {
	a.params.Epsilon.Step()
}

func (a *LinearQAgent) Epsilon() float64 {
	return a.params.Epsilon.Value()
}

func (a *LinearQAgent) ContinuousActions() bool {
	return false
}

func (a *LinearQAgent) checkpointFile(dir string) string {
	return filepath.Join(dir, a.params.Name+".json")
}

// Save writes the weights and exploration rate into the checkpoint directory.
func (a *LinearQAgent) Save() error {
	if a.params.CheckpointDir == "" {
		return errors.New("no checkpoint directory configured")
	}
	if err := checkpoint.EnsureDir(a.params.CheckpointDir); err != nil {
		return err
	}
	data, err := json.Marshal(linearQCheckpoint{Weights: a.weights, Epsilon: a.Epsilon()})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := os.WriteFile(a.checkpointFile(a.params.CheckpointDir), data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Load restores weights and exploration rate from a checkpoint directory.
func (a *LinearQAgent) Load(path string) error {
	data, err := os.ReadFile(a.checkpointFile(path))
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	var ck linearQCheckpoint
	if err := json.Unmarshal(data, &ck); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}
	if len(ck.Weights) != len(a.weights) {
		return fmt.Errorf("checkpoint has %d actions, agent has %d", len(ck.Weights), len(a.weights))
	}
	for i, w := range ck.Weights {
		if len(w) != len(a.weights[i]) {
			return fmt.Errorf("checkpoint weights for action %d have %d values, want %d", i, len(w), len(a.weights[i]))
		}
	}
	a.weights = ck.Weights
	a.params.Epsilon.Set(ck.Epsilon)
	return nil
}
