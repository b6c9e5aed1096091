package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boristopalov/dojo/internal/store"
	"github.com/boristopalov/dojo/pkg/agent"
	"github.com/boristopalov/dojo/pkg/buffer"
	"github.com/boristopalov/dojo/pkg/checkpoint"
	"github.com/boristopalov/dojo/pkg/config"
	"github.com/boristopalov/dojo/pkg/environment"
	"github.com/boristopalov/dojo/pkg/experiment"
	"github.com/boristopalov/dojo/pkg/logging"
	"github.com/boristopalov/dojo/pkg/messaging"
	"github.com/boristopalov/dojo/pkg/providers"
	"github.com/boristopalov/dojo/pkg/results"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dojo",
		Short: "Dojo trains reinforcement learning agents online against an environment and records how every episode went.",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run an experiment",
		RunE:  runExperiment,
	}
	runCmd.Flags().StringP("config", "c", "", "experiment config file (YAML)")
	runCmd.Flags().String("agent", "", "agent type, overrides the config")
	runCmd.Flags().String("db", "", "SQLite database to record the run in")
	runCmd.Flags().Bool("render", false, "render every step")

	for _, envFile := range []string{
		".env",
		"../../.env",
		"../../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(runCmd, runsCmd(), episodesCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
		if err := config.ApplyEnv(cfg); err != nil {
			return nil, err
		}
	}

	if agentType, _ := cmd.Flags().GetString("agent"); agentType != "" {
		cfg.Agent.Type = agentType
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Output.Save.DB = db
	}
	if render, _ := cmd.Flags().GetBool("render"); render {
		cfg.Output.Render = true
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.LogConfig) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{Level: level, Format: cfg.Format}), nil
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	var renderOut io.Writer = os.Stdout
	if cfg.Environment.RenderTo != "" {
		f, err := os.Create(cfg.Environment.RenderTo)
		if err != nil {
			return fmt.Errorf("open render output: %w", err)
		}
		defer f.Close()
		renderOut = f
	}
	env, err := environment.New(cfg.Environment, cfg.Seed, renderOut)
	if err != nil {
		return err
	}

	started := time.Now()
	conv := buffer.StoreDone
	if cfg.InvertDone {
		conv = buffer.InvertDone
	}
	agentOpts := []agent.AgentOption{
		agent.WithLogger(log.Component("Agent")),
		agent.WithDoneConvention(conv),
		agent.WithCheckpointDir(checkpoint.Dir(cfg.Checkpoint.Root, cfg.AgentName(), results.RunStamp(started))),
	}
	if cfg.Agent.Type == "llm" {
		client, err := providers.New(ctx, cfg.Agent.Provider, providers.WithLogger(log.Component("Provider")))
		if err != nil {
			return fmt.Errorf("failed to create provider: %w", err)
		}
		agentOpts = append(agentOpts, agent.WithClient(client))
	}
	ag, err := agent.New(cfg.Agent, cfg.Environment.StateSize, cfg.Seed, agentOpts...)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	stores := []results.Store{results.NewFileStore(cfg.Output.Dir)}
	if cfg.Output.Save.DB != "" {
		db, err := store.Open(cfg.Output.Save.DB)
		if err != nil {
			return err
		}
		defer db.Close()
		stores = append(stores, db)
	}

	broker := messaging.NewBroker()
	stopWatching, err := watchCheckpoints(log, broker)
	if err != nil {
		return err
	}
	defer stopWatching()

	o, err := experiment.NewOrchestrator(env, ag, cfg, log,
		experiment.WithStores(stores...),
		experiment.WithStartedAt(started),
		experiment.WithRunnerOptions(experiment.WithBroker(broker)),
	)
	if err != nil {
		return err
	}
	if _, err := o.Load(); err != nil {
		env.Close()
		return err
	}
	if _, err := o.Run(ctx); err != nil {
		return fmt.Errorf("experiment failed: %w", err)
	}

	report, err := o.Eval()
	if err != nil {
		return err
	}
	fmt.Println(report.Render(fmt.Sprintf("%s · run %s", ag.Name(), o.RunID())))
	return nil
}

// watchCheckpoints logs every checkpoint event published on broker. The
// returned stop func unsubscribes, closes the channel and waits for the
// logging goroutine to drain it.
func watchCheckpoints(log logging.Logger, broker *messaging.SimpleBroker) (func(), error) {
	const id = "cli"
	events := make(chan messaging.Event, 64)
	if err := broker.Subscribe(id, events); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		logCheckpoints(log, events)
	}()

	return func() {
		// Publish holds the read lock while sending, so no send can race the close.
		broker.Unsubscribe(id)
		close(events)
		<-done
	}, nil
}

func logCheckpoints(log logging.Logger, events <-chan messaging.Event) {
	for ev := range events {
		if cp, ok := ev.Payload.(messaging.Checkpoint); ok && ev.Kind == messaging.KindCheckpoint {
			log.Debug("checkpoint saved", "episode", cp.Episode, "timestep", cp.Timestep)
		}
	}
}
