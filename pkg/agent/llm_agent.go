package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/boristopalov/dojo/pkg/core"
	"github.com/boristopalov/dojo/pkg/memory"
)

const (
	ACTION_PROMPT_TEMPLATE = `You are controlling an agent in a reinforcement learning environment.
The current observation is the vector %s.
You may choose one of %d actions, numbered 0 to %d.
%s
Very briefly think step by step about which action earns the most reward over the rest of the episode, then give your answer after the string "ANSWER" like so: ANSWER: <action number>`

	MEMORY_PREAMBLE = "Here is what you learned from recent experience:\n"

	// notesInPrompt is how many memory notes are quoted in each prompt.
	notesInPrompt = 5
)

var (
	ErrNoAnswer = errors.New("no answer found in response")
	answerRe    = regexp.MustCompile(`ANSWER:\s*(-?\d+)`)
)

type LLMClient interface {
	Complete(ctx context.Context, model string, prompt string) (string, error)
}

// LLMAgent asks a language model which discrete action to take. It does not
// learn weights: training folds sampled rewards into a short memory that is
// quoted in later prompts.
type LLMAgent struct {
	params *AgentParams
	client LLMClient
	memory *memory.Memory
}

// NewLLMAgent creates a new LLM agent
func NewLLMAgent(opts ...AgentOption) (*LLMAgent, error) {
	params := buildParams(opts)
	if params.Name == "" {
		params.Name = "llm"
	}
	if params.Client == nil {
		return nil, errors.New("llm agent needs a client")
	}
	if params.Continuous {
		return nil, errors.New("llm agent needs a discrete action space")
	}
	if params.NumActions <= 0 {
		return nil, fmt.Errorf("invalid number of actions %d", params.NumActions)
	}

	return &LLMAgent{
		params: params,
		client: params.Client,
		memory: memory.NewMemory(params.MemoryCapacity), // short term memory of training notes
	}, nil
}

func (a *LLMAgent) GetID() string {
	return a.params.AgentID
}

func (a *LLMAgent) GetModel() ModelInfo {
	return a.params.Model
}

func (a *LLMAgent) GetMemory() *memory.Memory {
	return a.memory
}

func (a *LLMAgent) Name() string {
	return a.params.Name
}

// Action explores with probability epsilon and otherwise asks the model. An
// unusable answer falls back to a random action.
func (a *LLMAgent) Action(ctx context.Context, state core.State) (core.Action, error) {
	if a.params.Rand.Float64() < a.params.Epsilon.Value() {
		return a.randomAction(), nil
	}

	response, err := a.client.Complete(ctx, a.params.Model.Id, a.prompt(state))
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	action, err := parseActionResponse(response, a.params.NumActions)
	if err != nil {
		a.params.Logger.Warn("unusable model answer, acting randomly", "agent", a.params.AgentID, "error", err)
		return a.randomAction(), nil
	}
	return core.DiscreteAction(action), nil
}

func (a *LLMAgent) randomAction() core.Action {
	return core.DiscreteAction(a.params.Rand.Intn(a.params.NumActions))
}

func (a *LLMAgent) prompt(state core.State) string {
	var notes string
	if recent := a.memory.Recent(notesInPrompt); len(recent) > 0 {
		notes = MEMORY_PREAMBLE + strings.Join(recent, "\n")
	}
	return fmt.Sprintf(ACTION_PROMPT_TEMPLATE, formatState(state), a.params.NumActions, a.params.NumActions-1, notes)
}

func formatState(state core.State) string {
	parts := make([]string, len(state))
	for i, v := range state {
		parts[i] = strconv.FormatFloat(v, 'f', 3, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Train samples a batch and remembers the mean reward observed per action.
func (a *LLMAgent) Train(ctx context.Context, src core.ReplaySource) error {
	if src.Len() == 0 {
		return nil
	}
	batch, err := src.Sample(a.params.BatchSize)
	if err != nil {
		return fmt.Errorf("sample batch: %w", err)
	}

	byAction := make(map[int][]float64)
	for k := range batch.Indices {
		act := core.Action(batch.Actions[k]).Index()
		byAction[act] = append(byAction[act], batch.Rewards[k])
	}
	var notes []string
	for act := 0; act < a.params.NumActions; act++ {
		rewards, ok := byAction[act]
		if !ok {
			continue
		}
		notes = append(notes, fmt.Sprintf("action %d: mean reward %.3f over %d samples", act, stat.Mean(rewards, nil), len(rewards)))
	}
	if len(notes) > 0 {
		a.memory.Store(strings.Join(notes, "; "))
	}
	return nil
}

func (a *LLMAgent) DecayEpsilon() {
	a.params.Epsilon.Step()
}

func (a *LLMAgent) Epsilon() float64 {
	return a.params.Epsilon.Value()
}

func (a *LLMAgent) ContinuousActions() bool {
	return false
}

// Helper function to parse the chosen action from a model response
func parseActionResponse(response string, numActions int) (int, error) {
	matches := answerRe.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoAnswer, response)
	}

	// the last answer wins when the model restates itself
	action, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0, fmt.Errorf("could not parse action: %w", err)
	}
	if action < 0 || action >= numActions {
		return 0, fmt.Errorf("action %d out of range [0, %d)", action, numActions)
	}
	return action, nil
}
