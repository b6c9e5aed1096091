package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/dojo/pkg/buffer"
	"github.com/boristopalov/dojo/pkg/config"
	"github.com/boristopalov/dojo/pkg/core"
)

// MockLLMClient implements LLMClient for testing
type MockLLMClient struct {
	response string
	err      error
	prompts  []string
}

func (m *MockLLMClient) Complete(ctx context.Context, model string, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func terminalBuffer(t *testing.T, conv buffer.DoneConvention) *buffer.ReplayBuffer {
	t.Helper()
	buf, err := buffer.NewReplayBuffer(8, []int{2}, false, buffer.WithSeed(1))
	require.NoError(t, err)
	require.NoError(t, buf.Add(buffer.Transition{
		State:     []float64{1, 0},
		Action:    core.DiscreteAction(0),
		Reward:    1,
		NextState: []float64{0, 1},
		Done:      true,
	}, conv))
	return buf
}

func TestEpsilonSchedule(t *testing.T) {
	e := NewEpsilonSchedule(1.0, 0.1, 0.5)
	assert.Equal(t, 1.0, e.Value())
	e.Step()
	assert.Equal(t, 0.5, e.Value())
	for i := 0; i < 10; i++ {
		e.Step()
	}
	assert.Equal(t, 0.1, e.Value())

	e.Set(0.01)
	assert.Equal(t, 0.1, e.Value())
}

func TestRandomAgent(t *testing.T) {
	ctx := context.Background()

	t.Run("discrete actions are in range", func(t *testing.T) {
		a := NewRandomAgent(WithActions(3), WithSeed(7))
		assert.Equal(t, "random", a.Name())
		assert.False(t, a.ContinuousActions())
		for i := 0; i < 100; i++ {
			act, err := a.Action(ctx, core.State{0})
			require.NoError(t, err)
			require.Len(t, act, 1)
			assert.GreaterOrEqual(t, act.Index(), 0)
			assert.Less(t, act.Index(), 3)
		}
	})

	t.Run("continuous actions are two wide", func(t *testing.T) {
		a := NewRandomAgent(WithContinuousActions(true), WithSeed(7))
		assert.True(t, a.ContinuousActions())
		act, err := a.Action(ctx, core.State{0})
		require.NoError(t, err)
		require.Len(t, act, 2)
		for _, v := range act {
			assert.GreaterOrEqual(t, v, -1.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	})

	t.Run("does not checkpoint", func(t *testing.T) {
		_, ok := core.AsCheckpointer(NewRandomAgent())
		assert.False(t, ok)
	})
}

func TestLinearQAgentLearnsTerminalReward(t *testing.T) {
	for _, conv := range []buffer.DoneConvention{buffer.StoreDone, buffer.InvertDone} {
		t.Run(conv.String(), func(t *testing.T) {
			a, err := NewLinearQAgent(
				WithStateSize(2),
				WithActions(2),
				WithSeed(3),
				WithEpsilon(0, 0, 1),
				WithBatchSize(4),
				WithLearningRate(0.1),
				WithDoneConvention(conv),
			)
			require.NoError(t, err)

			buf := terminalBuffer(t, conv)
			for i := 0; i < 200; i++ {
				require.NoError(t, a.Train(context.Background(), buf))
			}

			q, err := a.QValues([]float64{1, 0})
			require.NoError(t, err)
			assert.InDelta(t, 1.0, q[0], 1e-6)

			act, err := a.Action(context.Background(), core.State{1, 0})
			require.NoError(t, err)
			assert.Equal(t, 0, act.Index())
		})
	}
}

func TestLinearQAgentTrainOnEmptyBuffer(t *testing.T) {
	a, err := NewLinearQAgent(WithStateSize(2))
	require.NoError(t, err)
	buf, err := buffer.NewReplayBuffer(4, []int{2}, false)
	require.NoError(t, err)
	assert.NoError(t, a.Train(context.Background(), buf))
}

func TestLinearQAgentRejectsBadConfig(t *testing.T) {
	_, err := NewLinearQAgent(WithContinuousActions(true))
	assert.Error(t, err)
	_, err = NewLinearQAgent(WithStateSize(0))
	assert.Error(t, err)
}

func TestLinearQAgentCheckpoint(t *testing.T) {
	dir := t.TempDir()
	a, err := NewLinearQAgent(
		WithStateSize(2),
		WithSeed(3),
		WithEpsilon(0.5, 0.05, 0.9),
		WithLearningRate(0.1),
		WithCheckpointDir(dir),
	)
	require.NoError(t, err)
	require.NoError(t, a.Train(context.Background(), terminalBuffer(t, buffer.InvertDone)))
	a.DecayEpsilon()

	ck, ok := core.AsCheckpointer(a)
	require.True(t, ok)
	require.NoError(t, ck.Save())

	b, err := NewLinearQAgent(WithStateSize(2), WithEpsilon(1, 0.05, 0.9))
	require.NoError(t, err)
	require.NoError(t, b.Load(dir))

	want, err := a.QValues([]float64{1, 0})
	require.NoError(t, err)
	got, err := b.QValues([]float64{1, 0})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.InDelta(t, 0.45, b.Epsilon(), 1e-12)

	t.Run("dimension mismatch", func(t *testing.T) {
		c, err := NewLinearQAgent(WithStateSize(3))
		require.NoError(t, err)
		assert.Error(t, c.Load(dir))
	})

	t.Run("missing directory", func(t *testing.T) {
		noDir, err := NewLinearQAgent(WithStateSize(2))
		require.NoError(t, err)
		assert.Error(t, noDir.Save())
	})
}

func TestLLMAgent(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a client", func(t *testing.T) {
		_, err := NewLLMAgent()
		assert.Error(t, err)
	})

	t.Run("acts on the model answer", func(t *testing.T) {
		client := &MockLLMClient{response: "Pushing right keeps the pole up. ANSWER: 1"}
		a, err := NewLLMAgent(
			WithAgentId("test-agent"),
			WithClient(client),
			WithEpsilon(0, 0, 1),
			WithModel(ModelInfo{Id: "gpt-4o-mini", Config: make(map[string]any)}),
		)
		require.NoError(t, err)
		assert.Equal(t, "test-agent", a.GetID())
		assert.Equal(t, "gpt-4o-mini", a.GetModel().Id)

		act, err := a.Action(ctx, core.State{0.1, -0.2, 0, 0})
		require.NoError(t, err)
		assert.Equal(t, 1, act.Index())
		require.Len(t, client.prompts, 1)
		assert.Contains(t, client.prompts[0], "[0.100, -0.200, 0.000, 0.000]")
	})

	t.Run("falls back to a random action", func(t *testing.T) {
		client := &MockLLMClient{response: "I am not sure."}
		a, err := NewLLMAgent(WithClient(client), WithEpsilon(0, 0, 1), WithSeed(1))
		require.NoError(t, err)
		act, err := a.Action(ctx, core.State{0})
		require.NoError(t, err)
		assert.Contains(t, []int{0, 1}, act.Index())
	})

	t.Run("propagates client errors", func(t *testing.T) {
		client := &MockLLMClient{err: errors.New("rate limited")}
		a, err := NewLLMAgent(WithClient(client), WithEpsilon(0, 0, 1))
		require.NoError(t, err)
		_, err = a.Action(ctx, core.State{0})
		assert.ErrorContains(t, err, "rate limited")
	})

	t.Run("training notes reach the prompt", func(t *testing.T) {
		client := &MockLLMClient{response: "ANSWER: 0"}
		a, err := NewLLMAgent(WithClient(client), WithEpsilon(0, 0, 1), WithBatchSize(4))
		require.NoError(t, err)
		require.NoError(t, a.Train(ctx, terminalBuffer(t, buffer.InvertDone)))
		require.Equal(t, 1, a.GetMemory().Len())

		_, err = a.Action(ctx, core.State{1, 0})
		require.NoError(t, err)
		assert.True(t, strings.Contains(client.prompts[0], "action 0: mean reward 1.000 over 4 samples"))
	})
}

func TestParseActionResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
		wantErr  bool
	}{
		{"simple", "ANSWER: 2", 2, false},
		{"last answer wins", "ANSWER: 0 ... actually ANSWER: 1", 1, false},
		{"no answer", "left", 0, true},
		{"out of range", "ANSWER: 3", 0, true},
		{"negative", "ANSWER: -1", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseActionResponse(tt.response, 3)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	_, err := parseActionResponse("nothing", 2)
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestNew(t *testing.T) {
	cfg := config.Default().Agent

	a, err := New(cfg, 4, 1)
	require.NoError(t, err)
	assert.IsType(t, &LinearQAgent{}, a)
	assert.Equal(t, "linear_q", a.Name())

	cfg.Type = "random"
	cfg.Name = "baseline"
	a, err = New(cfg, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, "baseline", a.Name())

	cfg.Type = "llm"
	_, err = New(cfg, 4, 1)
	assert.Error(t, err, "llm agents need a client")
	a, err = New(cfg, 4, 1, WithClient(&MockLLMClient{}))
	require.NoError(t, err)
	assert.IsType(t, &LLMAgent{}, a)

	cfg.Type = "ppo"
	_, err = New(cfg, 4, 1)
	assert.Error(t, err)
}
