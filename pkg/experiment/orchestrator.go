package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boristopalov/dojo/pkg/checkpoint"
	"github.com/boristopalov/dojo/pkg/config"
	"github.com/boristopalov/dojo/pkg/core"
	"github.com/boristopalov/dojo/pkg/evaluator"
	"github.com/boristopalov/dojo/pkg/logging"
	"github.com/boristopalov/dojo/pkg/results"
)

// Loader records whether a checkpoint was restored before the run and from
// where.
type Loader struct {
	Enabled bool
	Path    string
}

// Orchestrator wires a configured agent and environment into a run: it
// restores checkpoints, drives the Runner, closes the environment and
// persists and evaluates the results.
type Orchestrator struct {
	env   core.Environment
	agent core.Agent
	cfg   *config.Config
	log   logging.Logger

	stores     []results.Store
	runnerOpts []RunnerOption
	startedAt  time.Time
	runID      string

	mu      sync.RWMutex
	status  core.ExperimentStatus
	results *results.Results
	loader  Loader
}

type OrchestratorOption func(*Orchestrator)

// WithStores adds destinations for raw results.
func WithStores(stores ...results.Store) OrchestratorOption {
	return func(o *Orchestrator) {
		o.stores = append(o.stores, stores...)
	}
}

// WithRunnerOptions passes extra options to the Runner, e.g. WithBroker.
func WithRunnerOptions(opts ...RunnerOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.runnerOpts = append(o.runnerOpts, opts...)
	}
}

// WithStartedAt sets the run start time. Results files and checkpoint
// directories are stamped with it.
func WithStartedAt(t time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.startedAt = t
	}
}

func NewOrchestrator(env core.Environment, ag core.Agent, cfg *config.Config, log logging.Logger, opts ...OrchestratorOption) (*Orchestrator, error) {
	if env == nil || ag == nil || cfg == nil {
		return nil, errors.New("orchestrator needs an environment, an agent and a config")
	}
	if log == nil {
		log = logging.NoOp()
	}
	o := &Orchestrator{
		env:       env,
		agent:     ag,
		cfg:       cfg,
		log:       log,
		startedAt: time.Now(),
		runID:     uuid.New().String(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Orchestrator) RunID() string {
	return o.runID
}

func (o *Orchestrator) StartedAt() time.Time {
	return o.startedAt
}

// CheckpointDir is where this run saves agent checkpoints.
func (o *Orchestrator) CheckpointDir() string {
	return checkpoint.Dir(o.cfg.Checkpoint.Root, o.agent.Name(), results.RunStamp(o.startedAt))
}

// Load restores the agent from a checkpoint when the config asks for it. An
// agent without checkpoint support only produces a warning.
func (o *Orchestrator) Load() (Loader, error) {
	log := o.log.Component("CheckpointLoader")
	lc := o.cfg.Checkpoint.Load
	loader := Loader{Enabled: lc.Enabled}

	defer func() {
		o.mu.Lock()
		o.loader = loader
		o.mu.Unlock()
	}()

	if !loader.Enabled {
		return loader, nil
	}
	ck, ok := core.AsCheckpointer(o.agent)
	if !ok {
		log.Warn("agent cannot load checkpoints, loading disabled", "agent", o.agent.Name())
		loader.Enabled = false
		return loader, nil
	}

	path := lc.Dir
	if lc.UseLatest {
		latest, err := checkpoint.Latest(o.cfg.Checkpoint.Root, o.agent.Name())
		if err != nil {
			return loader, err
		}
		path = latest
	}
	if path == "" {
		return loader, errors.New("checkpoint loading enabled without a directory")
	}
	loader.Path = path

	if err := ck.Load(path); err != nil {
		return loader, fmt.Errorf("load checkpoint %s: %w", path, err)
	}
	log.Info("checkpoint loaded", "agent", o.agent.Name(), "path", path)
	return loader, nil
}

func (o *Orchestrator) runnerConfig() RunnerConfig {
	return RunnerConfig{
		MaxTimesteps:           o.cfg.Timesteps.Max,
		MaxEpisodes:            o.cfg.Episodes.Max,
		StartTrainingTimesteps: o.cfg.Timesteps.StartTraining,
		BufferCapacity:         o.cfg.ContextCapacity,
		StateShape:             []int{o.cfg.Environment.StateSize},
		SaveEvery:              o.cfg.Checkpoint.Save.Every,
		ShouldRender:           o.cfg.Output.Render,
		ShouldSaveCheckpoints:  o.cfg.Checkpoint.Save.Enabled,
		InvertDone:             o.cfg.InvertDone,
		EpisodesToSave:         o.cfg.EpisodesToSave(),
	}
}

// Run executes the experiment. The environment is closed afterwards and the
// summaries are persisted to every store when raw output is enabled, also
// after a failed run.
func (o *Orchestrator) Run(ctx context.Context) (*results.Results, error) {
	o.mu.Lock()
	o.status.Running = true
	o.status.StartTime = time.Now()
	o.mu.Unlock()

	log := o.log.Component("Orchestrator")
	log.Info("starting run",
		"run", o.runID,
		"agent", o.agent.Name(),
		"max_timesteps", o.cfg.Timesteps.Max,
		"max_episodes", o.cfg.Episodes.Max,
		"archived_episodes", o.cfg.SortedEpisodesToSave(),
	)

	opts := append([]RunnerOption{
		WithLogger(o.log),
		WithSeed(o.cfg.Seed),
		WithStartTime(o.startedAt),
		WithRunID(o.runID),
	}, o.runnerOpts...)

	var errs []error
	var res *results.Results
	runner, err := NewRunner(o.env, o.agent, o.runnerConfig(), opts...)
	if err != nil {
		errs = append(errs, err)
	} else {
		res, err = runner.Run(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("run %s: %w", o.runID, err))
		}
	}

	if err := o.env.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close environment: %w", err))
	}

	if res != nil && o.cfg.Output.Save.Raw {
		for _, store := range o.stores {
			if err := res.Persist(ctx, store); err != nil {
				errs = append(errs, err)
			}
		}
	}

	o.mu.Lock()
	o.results = res
	o.status.Running = false
	o.status.EndTime = time.Now()
	o.status.Errors = append(o.status.Errors, errs...)
	o.mu.Unlock()

	if res != nil {
		log.Info("run finished", "run", o.runID, "episodes", len(res.Summaries()))
	}
	return res, errors.Join(errs...)
}

// Eval summarizes the finished run and writes its episodes as CSV when the
// config asks for it.
func (o *Orchestrator) Eval() (evaluator.Report, error) {
	o.mu.RLock()
	res := o.results
	o.mu.RUnlock()
	if res == nil {
		return evaluator.Report{}, errors.New("nothing to evaluate: run has not finished")
	}

	summaries := res.Summaries()
	report := evaluator.Evaluate(summaries)
	if !o.cfg.Output.Save.CSV {
		return report, nil
	}

	if err := os.MkdirAll(o.cfg.Output.Dir, 0o755); err != nil {
		return report, fmt.Errorf("create output dir: %w", err)
	}
	path := o.CSVPath()
	f, err := os.Create(path)
	if err != nil {
		return report, fmt.Errorf("create csv: %w", err)
	}
	if err := evaluator.WriteCSV(f, summaries); err != nil {
		f.Close()
		return report, err
	}
	if err := f.Close(); err != nil {
		return report, fmt.Errorf("close csv: %w", err)
	}
	return report, nil
}

// CSVPath is where Eval writes the episode table.
func (o *Orchestrator) CSVPath() string {
	name := fmt.Sprintf("%s - %s.csv", o.agent.Name(), results.RunStamp(o.startedAt))
	return filepath.Join(o.cfg.Output.Dir, name)
}

// GetStatus returns the current experiment status
func (o *Orchestrator) GetStatus() core.ExperimentStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	status := o.status
	status.Errors = append([]error(nil), o.status.Errors...)
	return status
}

// Loader returns the outcome of the last Load.
func (o *Orchestrator) Loader() Loader {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.loader
}

func (o *Orchestrator) Results() *results.Results {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.results
}
