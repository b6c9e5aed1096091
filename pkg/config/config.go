package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaDoc []byte

const schemaURL = "schema://dojo/config.json"

// Config describes one experiment run.
type Config struct {
	Name            string           `yaml:"name"`
	Seed            int64            `yaml:"seed"`
	ContextCapacity int              `yaml:"context_capacity"`
	InvertDone      bool             `yaml:"invert_done"`
	Agent           AgentConfig      `yaml:"agent"`
	Environment     EnvConfig        `yaml:"environment"`
	Episodes        EpisodesConfig   `yaml:"episodes"`
	Timesteps       TimestepsConfig  `yaml:"timesteps"`
	Checkpoint      CheckpointConfig `yaml:"checkpoint"`
	Output          OutputConfig     `yaml:"output"`
	Logging         LogConfig        `yaml:"logging"`
}

type AgentConfig struct {
	Type         string        `yaml:"type"`
	Name         string        `yaml:"name"`
	Actions      int           `yaml:"actions"`
	Continuous   bool          `yaml:"continuous"`
	BatchSize    int           `yaml:"batch_size"`
	LearningRate float64       `yaml:"learning_rate"`
	Gamma        float64       `yaml:"gamma"`
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	Epsilon      EpsilonConfig `yaml:"epsilon"`
}

type EpsilonConfig struct {
	Start float64 `yaml:"start"`
	Min   float64 `yaml:"min"`
	Decay float64 `yaml:"decay"`
}

type EnvConfig struct {
	Type      string `yaml:"type"`
	Address   string `yaml:"address"`
	MaxSteps  int    `yaml:"max_steps"`
	StateSize int    `yaml:"state_size"`
	RenderTo  string `yaml:"render_to"`
}

type EpisodesConfig struct {
	Max  int   `yaml:"max"`
	Save []int `yaml:"save"`
}

type TimestepsConfig struct {
	Max           int `yaml:"max"`
	StartTraining int `yaml:"start_training"`
}

type CheckpointConfig struct {
	Root string         `yaml:"root"`
	Save CheckpointSave `yaml:"save"`
	Load CheckpointLoad `yaml:"load"`
}

type CheckpointSave struct {
	Enabled bool `yaml:"enabled"`
	Every   int  `yaml:"every"`
}

type CheckpointLoad struct {
	Enabled   bool   `yaml:"enabled"`
	UseLatest bool   `yaml:"use_latest"`
	Dir       string `yaml:"custom_dir"`
}

type OutputConfig struct {
	Render bool       `yaml:"render"`
	Dir    string     `yaml:"dir"`
	Save   OutputSave `yaml:"save"`
}

type OutputSave struct {
	Raw bool   `yaml:"raw"`
	CSV bool   `yaml:"csv"`
	DB  string `yaml:"db"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used for every field a file leaves out.
func Default() *Config {
	return &Config{
		Name:            "cartpole",
		Seed:            42,
		ContextCapacity: 100_000,
		InvertDone:      true,
		Agent: AgentConfig{
			Type:         "linear_q",
			Actions:      2,
			BatchSize:    32,
			LearningRate: 0.001,
			Gamma:        0.99,
			Provider:     "openai",
			Model:        "gpt-4o-mini",
			Epsilon: EpsilonConfig{
				Start: 1.0,
				Min:   0.05,
				Decay: 0.995,
			},
		},
		Environment: EnvConfig{
			Type:      "cartpole",
			Address:   "localhost:1337",
			MaxSteps:  500,
			StateSize: 4,
		},
		Episodes: EpisodesConfig{
			Max: 500,
		},
		Timesteps: TimestepsConfig{
			Max:           200_000,
			StartTraining: 1_000,
		},
		Checkpoint: CheckpointConfig{
			Root: "policies",
			Save: CheckpointSave{Every: 50},
		},
		Output: OutputConfig{
			Dir: "results",
			Save: OutputSave{
				Raw: true,
			},
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path, validates it against the config schema and
// layers it over Default. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Config, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	// The schema library wants JSON values, so round-trip the YAML tree.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert config to json: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("convert config to json: %w", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	def, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaDoc))
	if err != nil {
		return nil, fmt.Errorf("parse config schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, def); err != nil {
		return nil, fmt.Errorf("add config schema: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	return schema, nil
}

// Validate checks constraints that span fields.
func (c *Config) Validate() error {
	var errs []error
	if c.ContextCapacity <= 0 {
		errs = append(errs, fmt.Errorf("context_capacity must be positive, got %d", c.ContextCapacity))
	}
	if c.Timesteps.Max < 0 || c.Episodes.Max < 0 {
		errs = append(errs, errors.New("timesteps.max and episodes.max must not be negative"))
	}
	if c.Checkpoint.Save.Enabled && c.Checkpoint.Save.Every <= 0 {
		errs = append(errs, fmt.Errorf("checkpoint.save.every must be positive when saving is enabled, got %d", c.Checkpoint.Save.Every))
	}
	if c.Agent.Epsilon.Min > c.Agent.Epsilon.Start {
		errs = append(errs, fmt.Errorf("agent.epsilon.min (%v) exceeds agent.epsilon.start (%v)", c.Agent.Epsilon.Min, c.Agent.Epsilon.Start))
	}
	if c.Agent.Type == "linear_q" && c.Agent.Continuous {
		errs = append(errs, errors.New("linear_q agents only support discrete actions"))
	}
	if c.Environment.StateSize <= 0 {
		errs = append(errs, fmt.Errorf("environment.state_size must be positive, got %d", c.Environment.StateSize))
	}
	return errors.Join(errs...)
}

// EpisodesToSave returns the set of episodes whose timesteps are archived.
func (c *Config) EpisodesToSave() map[int]struct{} {
	set := make(map[int]struct{}, len(c.Episodes.Save))
	for _, ep := range c.Episodes.Save {
		set[ep] = struct{}{}
	}
	return set
}

// AgentName is the configured agent name, falling back to its type.
func (c *Config) AgentName() string {
	if c.Agent.Name != "" {
		return c.Agent.Name
	}
	return c.Agent.Type
}

// SortedEpisodesToSave is EpisodesToSave in ascending order.
func (c *Config) SortedEpisodesToSave() []int {
	eps := append([]int(nil), c.Episodes.Save...)
	sort.Ints(eps)
	return eps
}
