package environment

import (
	"context"

	"github.com/boristopalov/dojo/pkg/core"
)

// TimeLimit truncates episodes of the wrapped environment after a fixed
// number of steps. A step that terminates naturally is never marked truncated.
type TimeLimit struct {
	core.Environment
	limit int
	steps int
}

func NewTimeLimit(env core.Environment, limit int) *TimeLimit {
	return &TimeLimit{Environment: env, limit: limit}
}

func (t *TimeLimit) Reset(ctx context.Context) (core.State, core.Info, error) {
	t.steps = 0
	return t.Environment.Reset(ctx)
}

func (t *TimeLimit) Step(ctx context.Context, action core.Action) (core.StepResult, error) {
	res, err := t.Environment.Step(ctx, action)
	if err != nil {
		return res, err
	}
	t.steps++
	if t.limit > 0 && t.steps >= t.limit && !res.Terminated {
		res.Truncated = true
	}
	return res, nil
}

// Steps returns the number of steps taken since the last reset.
func (t *TimeLimit) Steps() int {
	return t.steps
}
