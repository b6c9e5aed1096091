package agent

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/boristopalov/dojo/pkg/buffer"
	"github.com/boristopalov/dojo/pkg/logging"
)

// EpsilonSchedule decays the exploration rate multiplicatively, once per
// episode, never going below Min.
type EpsilonSchedule struct {
	Start float64
	Min   float64
	Decay float64

	value float64
}

func NewEpsilonSchedule(start, floor, decay float64) *EpsilonSchedule {
	return &EpsilonSchedule{Start: start, Min: floor, Decay: decay, value: start}
}

func (e *EpsilonSchedule) Value() float64 {
	return e.value
}

func (e *EpsilonSchedule) Set(v float64) {
	e.value = math.Max(e.Min, v)
}

func (e *EpsilonSchedule) Step() {
	e.value = math.Max(e.Min, e.value*e.Decay)
}

type ModelInfo struct {
	Id     string         // e.g. "gpt-4o-mini"
	Config map[string]any // model-specific configuration
}

type AgentParams struct {
	AgentID        string
	Name           string
	NumActions     int
	Continuous     bool
	StateSize      int
	Epsilon        *EpsilonSchedule
	Rand           *rand.Rand
	BatchSize      int
	LearningRate   float64
	Gamma          float64
	DoneConvention buffer.DoneConvention
	CheckpointDir  string
	Client         LLMClient
	Model          ModelInfo
	MemoryCapacity int
	Logger         logging.Logger
}

type AgentOption func(*AgentParams)

func WithAgentId(id string) AgentOption {
	return func(p *AgentParams) {
		p.AgentID = id
	}
}

func WithName(name string) AgentOption {
	return func(p *AgentParams) {
		p.Name = name
	}
}

func WithActions(n int) AgentOption {
	return func(p *AgentParams) {
		p.NumActions = n
	}
}

func WithContinuousActions(continuous bool) AgentOption {
	return func(p *AgentParams) {
		p.Continuous = continuous
	}
}

func WithStateSize(n int) AgentOption {
	return func(p *AgentParams) {
		p.StateSize = n
	}
}

func WithEpsilon(start, floor, decay float64) AgentOption {
	return func(p *AgentParams) {
		p.Epsilon = NewEpsilonSchedule(start, floor, decay)
	}
}

func WithSeed(seed int64) AgentOption {
	return func(p *AgentParams) {
		p.Rand = rand.New(rand.NewSource(seed))
	}
}

func WithBatchSize(n int) AgentOption {
	return func(p *AgentParams) {
		p.BatchSize = n
	}
}

func WithLearningRate(lr float64) AgentOption {
	return func(p *AgentParams) {
		p.LearningRate = lr
	}
}

func WithGamma(gamma float64) AgentOption {
	return func(p *AgentParams) {
		p.Gamma = gamma
	}
}

// WithDoneConvention tells the agent how the buffer it trains on stores done flags.
func WithDoneConvention(c buffer.DoneConvention) AgentOption {
	return func(p *AgentParams) {
		p.DoneConvention = c
	}
}

func WithCheckpointDir(dir string) AgentOption {
	return func(p *AgentParams) {
		p.CheckpointDir = dir
	}
}

func WithClient(c LLMClient) AgentOption {
	return func(p *AgentParams) {
		p.Client = c
	}
}

func WithModel(model ModelInfo) AgentOption {
	return func(p *AgentParams) {
		p.Model = model
	}
}

func WithMemory(capacity int) AgentOption {
	return func(p *AgentParams) {
		p.MemoryCapacity = capacity
	}
}

func WithLogger(l logging.Logger) AgentOption {
	return func(p *AgentParams) {
		p.Logger = l
	}
}

func defaultAgentParams() *AgentParams {
	return &AgentParams{
		AgentID:        "agent-" + uuid.New().String(),
		NumActions:     2,
		StateSize:      4,
		Epsilon:        NewEpsilonSchedule(1.0, 0.05, 0.995),
		Rand:           rand.New(rand.NewSource(time.Now().UnixNano())),
		BatchSize:      32,
		LearningRate:   0.001,
		Gamma:          0.99,
		DoneConvention: buffer.InvertDone,
		Model: ModelInfo{
			Id:     "gpt-4o-mini",
			Config: make(map[string]any),
		},
		MemoryCapacity: 100,
		Logger:         logging.NoOp(),
	}
}

func buildParams(opts []AgentOption) *AgentParams {
	params := defaultAgentParams()
	for _, opt := range opts {
		opt(params)
	}
	return params
}
