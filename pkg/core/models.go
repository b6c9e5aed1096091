package core

import (
	"math"
	"time"
)

// State is an observation, flattened to a vector
type State []float64

// Action is a discrete action index stored as a single value, or a continuous
// action vector.
type Action []float64

// DiscreteAction wraps an action index.
func DiscreteAction(i int) Action {
	return Action{float64(i)}
}

// Index returns the discrete action index held by a.
func (a Action) Index() int {
	if len(a) == 0 {
		return 0
	}
	return int(math.Round(a[0]))
}

// Info carries diagnostic values returned next to states
type Info map[string]any

// StepResult is the outcome of one environment step
type StepResult struct {
	NextState State
	Reward    float64
	// Terminated is set when the episode ended naturally
	Terminated bool
	// Truncated is set when the episode was cut off from outside, e.g. by a step limit
	Truncated bool
	Info      Info
}

type ExperimentStatus struct {
	Running   bool
	StartTime time.Time
	EndTime   time.Time
	Errors    []error
}
