package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
name: cartpole-dqn
seed: 7
context_capacity: 5000
invert_done: false
agent:
  type: linear_q
  batch_size: 64
  epsilon:
    start: 1.0
    min: 0.1
    decay: 0.9
environment:
  type: cartpole
  max_steps: 200
episodes:
  max: 20
  save: [5, 1]
timesteps:
  max: 10000
  start_training: 100
checkpoint:
  save:
    enabled: true
    every: 5
  load:
    enabled: true
    use_latest: true
output:
  render: false
  save:
    raw: true
    csv: true
logging:
  level: debug
  format: json
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "cartpole-dqn", cfg.Name)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 5000, cfg.ContextCapacity)
	assert.False(t, cfg.InvertDone)
	assert.Equal(t, 64, cfg.Agent.BatchSize)
	assert.Equal(t, 0.9, cfg.Agent.Epsilon.Decay)
	assert.Equal(t, 200, cfg.Environment.MaxSteps)
	assert.Equal(t, 20, cfg.Episodes.Max)
	assert.Equal(t, 100, cfg.Timesteps.StartTraining)
	assert.True(t, cfg.Checkpoint.Save.Enabled)
	assert.Equal(t, 5, cfg.Checkpoint.Save.Every)
	assert.True(t, cfg.Checkpoint.Load.UseLatest)
	assert.True(t, cfg.Output.Save.CSV)
	assert.Equal(t, "json", cfg.Logging.Format)

	// untouched fields keep their defaults
	assert.Equal(t, 0.99, cfg.Agent.Gamma)
	assert.Equal(t, 4, cfg.Environment.StateSize)

	assert.Equal(t, map[int]struct{}{1: {}, 5: {}}, cfg.EpisodesToSave())
	assert.Equal(t, []int{1, 5}, cfg.SortedEpisodesToSave())
	assert.Equal(t, "linear_q", cfg.AgentName())
}

func TestParseEmptyDocumentUsesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "episodes:\n  maximum: 3\n"},
		{"wrong type", "seed: abc\n"},
		{"unknown agent", "agent:\n  type: ppo\n"},
		{"zero capacity", "context_capacity: 0\n"},
		{"epsilon out of range", "agent:\n  epsilon:\n    start: 2\n"},
		{"zero checkpoint cadence", "checkpoint:\n  save:\n    every: 0\n"},
		{"malformed yaml", "agent: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Agent.Epsilon.Min = 0.5
	cfg.Agent.Epsilon.Start = 0.1
	cfg.Agent.Continuous = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "epsilon.min")
	assert.Contains(t, err.Error(), "discrete")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DOJO_SEED", "99")
	t.Setenv("DOJO_MAX_EPISODES", "3")
	t.Setenv("DOJO_RENDER", "true")
	t.Setenv("DOJO_AGENT", "random")

	cfg := Default()
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, int64(99), cfg.Seed)
	assert.Equal(t, 3, cfg.Episodes.Max)
	assert.True(t, cfg.Output.Render)
	assert.Equal(t, "random", cfg.Agent.Type)

	t.Setenv("DOJO_MAX_TIMESTEPS", "lots")
	assert.Error(t, ApplyEnv(Default()))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cartpole-dqn", cfg.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
