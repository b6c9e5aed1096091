package agent

import (
	"fmt"

	"github.com/boristopalov/dojo/pkg/config"
	"github.com/boristopalov/dojo/pkg/core"
)

// New builds the agent described by cfg. Options are applied after the ones
// derived from cfg, so callers can override them (e.g. WithClient for llm
// agents, WithCheckpointDir).
func New(cfg config.AgentConfig, stateSize int, seed int64, opts ...AgentOption) (core.Agent, error) {
	base := []AgentOption{
		WithName(cfg.Name),
		WithActions(cfg.Actions),
		WithContinuousActions(cfg.Continuous),
		WithStateSize(stateSize),
		WithEpsilon(cfg.Epsilon.Start, cfg.Epsilon.Min, cfg.Epsilon.Decay),
		WithSeed(seed),
		WithBatchSize(cfg.BatchSize),
		WithLearningRate(cfg.LearningRate),
		WithGamma(cfg.Gamma),
	}
	if cfg.Model != "" {
		base = append(base, WithModel(ModelInfo{Id: cfg.Model, Config: map[string]any{"provider": cfg.Provider}}))
	}
	opts = append(base, opts...)

	switch cfg.Type {
	case "random":
		return NewRandomAgent(opts...), nil
	case "", "linear_q":
		return NewLinearQAgent(opts...)
	case "llm":
		return NewLLMAgent(opts...)
	default:
		return nil, fmt.Errorf("unknown agent type %q", cfg.Type)
	}
}
