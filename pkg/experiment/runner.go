package experiment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/boristopalov/dojo/pkg/buffer"
	"github.com/boristopalov/dojo/pkg/core"
	"github.com/boristopalov/dojo/pkg/logging"
	"github.com/boristopalov/dojo/pkg/messaging"
	"github.com/boristopalov/dojo/pkg/results"
)

// RunnerConfig holds the loop bounds and switches of a single run.
type RunnerConfig struct {
	MaxTimesteps           int
	MaxEpisodes            int
	StartTrainingTimesteps int
	BufferCapacity         int
	StateShape             []int
	SaveEvery              int
	ShouldRender           bool
	ShouldSaveCheckpoints  bool
	InvertDone             bool
	// EpisodesToSave lists episodes whose timesteps are archived in full.
	EpisodesToSave map[int]struct{}
}

// Runner drives one agent through one environment, feeding every transition
// into a replay buffer and every timestep into the run's results.
type Runner struct {
	env          core.Environment
	agent        core.Agent
	checkpointer core.Checkpointer
	cfg          RunnerConfig
	conv         buffer.DoneConvention

	log     logging.Logger
	broker  messaging.Publisher
	rng     *rand.Rand
	now     func() time.Time
	started time.Time
	runID   string
}

type RunnerOption func(*Runner)

func WithLogger(l logging.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = l.Component("Runner")
	}
}

// WithBroker publishes episode summaries and checkpoints to p.
func WithBroker(p messaging.Publisher) RunnerOption {
	return func(r *Runner) {
		r.broker = p
	}
}

// WithSeed seeds buffer sampling.
func WithSeed(seed int64) RunnerOption {
	return func(r *Runner) {
		r.rng = rand.New(rand.NewSource(seed))
	}
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// WithStartTime fixes the start time recorded in the results, which names
// persisted files.
func WithStartTime(t time.Time) RunnerOption {
	return func(r *Runner) {
		r.started = t
	}
}

func WithRunID(id string) RunnerOption {
	return func(r *Runner) {
		r.runID = id
	}
}

func NewRunner(env core.Environment, ag core.Agent, cfg RunnerConfig, opts ...RunnerOption) (*Runner, error) {
	if env == nil || ag == nil {
		return nil, errors.New("runner needs an environment and an agent")
	}
	if cfg.BufferCapacity <= 0 {
		return nil, fmt.Errorf("buffer capacity must be positive, got %d", cfg.BufferCapacity)
	}

	r := &Runner{
		env:   env,
		agent: ag,
		cfg:   cfg,
		conv:  buffer.StoreDone,
		log:   logging.NoOp(),
		now:   time.Now,
	}
	if cfg.InvertDone {
		r.conv = buffer.InvertDone
	}
	// Checkpoint support is fixed for the lifetime of the agent.
	r.checkpointer, _ = core.AsCheckpointer(ag)

	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(r.now().UnixNano()))
	}
	return r, nil
}

// Run executes the interaction loop until MaxTimesteps steps were taken or
// the episode counter passes MaxEpisodes, and returns the collected results.
// The environment is left open.
func (r *Runner) Run(ctx context.Context) (*results.Results, error) {
	buf, err := buffer.NewReplayBuffer(r.cfg.BufferCapacity, r.cfg.StateShape, r.agent.ContinuousActions(), buffer.WithRand(r.rng))
	if err != nil {
		return nil, fmt.Errorf("create replay buffer: %w", err)
	}
	var resOpts []results.Option
	if r.runID != "" {
		resOpts = append(resOpts, results.WithRunID(r.runID))
	}
	started := r.started
	if started.IsZero() {
		started = r.now()
	}
	res := results.New(r.agent.Name(), started, resOpts...)

	state, _, err := r.env.Reset(ctx)
	if err != nil {
		return res, fmt.Errorf("reset environment: %w", err)
	}

	episode := 0
	for t := 0; t < r.cfg.MaxTimesteps; t++ {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		if episode > r.cfg.MaxEpisodes {
			break
		}

		action, err := r.agent.Action(ctx, state)
		if err != nil {
			return res, fmt.Errorf("timestep %d: choose action: %w", t, err)
		}
		step, err := r.env.Step(ctx, action)
		if err != nil {
			return res, fmt.Errorf("timestep %d: step environment: %w", t, err)
		}
		if r.cfg.ShouldRender {
			if err := r.env.Render(); err != nil {
				return res, fmt.Errorf("timestep %d: render: %w", t, err)
			}
		}

		err = buf.Add(buffer.Transition{
			State:     state,
			Action:    action,
			Reward:    step.Reward,
			NextState: step.NextState,
			Done:      step.Terminated,
		}, r.conv)
		if err != nil {
			return res, fmt.Errorf("timestep %d: store transition: %w", t, err)
		}

		if t > r.cfg.StartTrainingTimesteps {
			if err := r.agent.Train(ctx, buf); err != nil {
				return res, fmt.Errorf("timestep %d: train: %w", t, err)
			}
		}

		state = step.NextState

		_, archive := r.cfg.EpisodesToSave[episode]
		ts := results.Timestep{State: state, Action: action, Reward: step.Reward}
		if summary, ok := res.Record(episode, ts, archive); ok {
			r.episodeFinished(res.RunID(), summary)
		}

		switch {
		case step.Terminated:
			episode++
			if state, _, err = r.env.Reset(ctx); err != nil {
				return res, fmt.Errorf("timestep %d: reset environment: %w", t, err)
			}
			r.agent.DecayEpsilon()
		case step.Truncated:
			if state, _, err = r.env.Reset(ctx); err != nil {
				return res, fmt.Errorf("timestep %d: reset environment: %w", t, err)
			}
		}

		if r.shouldSave(episode) {
			if err := r.checkpointer.Save(); err != nil {
				return res, fmt.Errorf("timestep %d: save checkpoint: %w", t, err)
			}
			r.publish(res.RunID(), messaging.KindCheckpoint, messaging.Checkpoint{Episode: episode, Timestep: t})
		}
	}

	r.publish(res.RunID(), messaging.KindRunFinished, res.Summaries())
	return res, nil
}

func (r *Runner) shouldSave(episode int) bool {
	return r.checkpointer != nil &&
		r.cfg.ShouldSaveCheckpoints &&
		r.cfg.SaveEvery > 0 &&
		episode%r.cfg.SaveEvery == 0
}

func (r *Runner) episodeFinished(runID string, s results.Summary) {
	eps := r.agent.Epsilon()
	r.log.Info("episode finished",
		"episode", s.Episode,
		"cumulative", s.Cumulative,
		"mean", s.Mean,
		"steps", s.Steps,
		"epsilon", eps,
	)
	r.publish(runID, messaging.KindEpisodeSummary, messaging.EpisodeSummary{
		Episode:    s.Episode,
		Cumulative: s.Cumulative,
		Mean:       s.Mean,
		Steps:      s.Steps,
		Epsilon:    eps,
	})
}

func (r *Runner) publish(runID string, kind messaging.Kind, payload any) {
	if r.broker == nil {
		return
	}
	err := r.broker.Publish(messaging.Event{
		Source:    runID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: r.now(),
	})
	if err != nil {
		r.log.Warn("event dropped", "kind", kind, "error", err)
	}
}
