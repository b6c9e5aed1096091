package environment

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/dojo/pkg/config"
	"github.com/boristopalov/dojo/pkg/core"
)

func TestCartPole(t *testing.T) {
	ctx := context.Background()

	t.Run("reset starts near upright", func(t *testing.T) {
		env := NewCartPole(rand.New(rand.NewSource(1)), nil)
		state, _, err := env.Reset(ctx)
		require.NoError(t, err)
		require.Len(t, state, 4)
		for _, v := range state {
			assert.LessOrEqual(t, v, 0.05)
			assert.GreaterOrEqual(t, v, -0.05)
		}
		assert.Equal(t, "running", env.GetStatus().State)
		assert.Equal(t, 1, env.GetStatus().Episode)
	})

	t.Run("pushing one way terminates", func(t *testing.T) {
		env := NewCartPole(rand.New(rand.NewSource(1)), nil)
		_, _, err := env.Reset(ctx)
		require.NoError(t, err)

		var res core.StepResult
		steps := 0
		for !res.Terminated {
			res, err = env.Step(ctx, core.DiscreteAction(1))
			require.NoError(t, err)
			assert.Equal(t, 1.0, res.Reward)
			assert.False(t, res.Truncated)
			steps++
			require.Less(t, steps, 500, "pole never fell")
		}
		assert.Equal(t, "done", env.GetStatus().State)

		_, err = env.Step(ctx, core.DiscreteAction(0))
		assert.ErrorIs(t, err, ErrEpisodeOver)
	})

	t.Run("invalid action", func(t *testing.T) {
		env := NewCartPole(rand.New(rand.NewSource(1)), nil)
		_, _, err := env.Reset(ctx)
		require.NoError(t, err)
		_, err = env.Step(ctx, core.DiscreteAction(3))
		assert.Error(t, err)
	})

	t.Run("render writes a frame", func(t *testing.T) {
		var out bytes.Buffer
		env := NewCartPole(rand.New(rand.NewSource(1)), &out)
		_, _, err := env.Reset(ctx)
		require.NoError(t, err)
		require.NoError(t, env.Render())
		assert.True(t, strings.HasPrefix(out.String(), "["))
		assert.Contains(t, out.String(), "step=0")
	})
}

func TestTimeLimit(t *testing.T) {
	ctx := context.Background()
	env := NewTimeLimit(NewCartPole(rand.New(rand.NewSource(3)), nil), 3)

	_, _, err := env.Reset(ctx)
	require.NoError(t, err)

	actions := []int{0, 1, 0}
	for i, a := range actions {
		res, err := env.Step(ctx, core.DiscreteAction(a))
		require.NoError(t, err)
		assert.False(t, res.Terminated)
		assert.Equal(t, i == len(actions)-1, res.Truncated, "step %d", i)
	}

	_, _, err = env.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, env.Steps())
}

// fakeSimulator serves episodes of fixed length over the remote protocol.
func fakeSimulator(t *testing.T, episodeLen int) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				enc := json.NewEncoder(conn)
				scanner := bufio.NewScanner(conn)
				enc.Encode(remoteResponse{State: []float64{0, 0}, Metrics: map[string]float64{"step": 0}})
				for step := 1; scanner.Scan(); step++ {
					var req remoteRequest
					if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
						return
					}
					enc.Encode(remoteResponse{
						State:      []float64{float64(step), float64(req.Action)},
						Reward:     -float64(req.Action),
						Terminated: step >= episodeLen,
						Metrics:    map[string]float64{"step": float64(step)},
					})
					if step >= episodeLen {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestRemote(t *testing.T) {
	ctx := context.Background()
	env := NewRemote(fakeSimulator(t, 2), nil)
	t.Cleanup(func() { env.Close() })

	_, err := env.Step(ctx, core.DiscreteAction(0))
	assert.Error(t, err, "step before reset")

	for episode := 0; episode < 2; episode++ {
		state, info, err := env.Reset(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.State{0, 0}, state)
		assert.Equal(t, 0.0, info["step"])

		res, err := env.Step(ctx, core.DiscreteAction(1))
		require.NoError(t, err)
		assert.Equal(t, core.State{1, 1}, res.NextState)
		assert.Equal(t, -1.0, res.Reward)
		assert.False(t, res.Terminated)

		res, err = env.Step(ctx, core.DiscreteAction(0))
		require.NoError(t, err)
		assert.True(t, res.Terminated)
	}
	assert.Equal(t, 2, env.GetStatus().Episode)
	require.NoError(t, env.Close())
	assert.Equal(t, "closed", env.GetStatus().State)
}

func TestNew(t *testing.T) {
	env, err := New(config.EnvConfig{Type: "cartpole", MaxSteps: 10}, 1, nil)
	require.NoError(t, err)
	_, ok := env.(*TimeLimit)
	assert.True(t, ok)

	env, err = New(config.EnvConfig{Type: "cartpole"}, 1, nil)
	require.NoError(t, err)
	_, ok = env.(*CartPole)
	assert.True(t, ok)

	_, err = New(config.EnvConfig{Type: "remote"}, 1, nil)
	assert.Error(t, err)

	_, err = New(config.EnvConfig{Type: "atari"}, 1, nil)
	assert.Error(t, err)
}
