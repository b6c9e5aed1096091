package environment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strings"

	"github.com/boristopalov/dojo/pkg/core"
)

const (
	gravity        = 9.81
	massCart       = 1.0
	massPole       = 0.1
	poleLength     = 0.5
	totalMass      = massCart + massPole
	poleMassLength = massPole * poleLength
	forceMax       = 10.0
	tau            = 0.02

	xThreshold     = 2.4
	thetaThreshold = 12.0 * math.Pi / 180.0

	renderWidth = 41
)

var ErrEpisodeOver = errors.New("episode is over, reset the environment")

// CartPole balances a pole on a cart. Action 0 pushes left, 1 pushes right.
// The episode terminates once the pole falls past 12 degrees or the cart leaves
// the track; it never truncates on its own, wrap it in a TimeLimit for that.
type CartPole struct {
	BaseEnvironment

	x, xDot, theta, thetaDot float64
	done                     bool

	rng *rand.Rand
	out io.Writer
}

// NewCartPole creates a cart-pole environment. Render writes frames to out; a
// nil out discards them.
func NewCartPole(rng *rand.Rand, out io.Writer) *CartPole {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if out == nil {
		out = io.Discard
	}
	return &CartPole{
		BaseEnvironment: NewBaseEnvironment(),
		rng:             rng,
		out:             out,
	}
}

func (e *CartPole) observation() core.State {
	return core.State{e.x, e.xDot, e.theta, e.thetaDot}
}

func (e *CartPole) Reset(ctx context.Context) (core.State, core.Info, error) {
	e.x = e.rng.Float64()*0.1 - 0.05
	e.xDot = e.rng.Float64()*0.1 - 0.05
	e.theta = e.rng.Float64()*0.1 - 0.05
	e.thetaDot = e.rng.Float64()*0.1 - 0.05
	e.done = false
	e.markReset()
	return e.observation(), core.Info{}, nil
}

func (e *CartPole) Step(ctx context.Context, action core.Action) (core.StepResult, error) {
	if e.done {
		return core.StepResult{}, ErrEpisodeOver
	}
	var force float64
	switch action.Index() {
	case 0:
		force = -forceMax
	case 1:
		force = forceMax
	default:
		return core.StepResult{}, fmt.Errorf("cartpole: invalid action %v", action)
	}

	cosTheta := math.Cos(e.theta)
	sinTheta := math.Sin(e.theta)

	temp := (force + poleMassLength*e.thetaDot*e.thetaDot*sinTheta) / totalMass
	thetaAcc := (gravity*sinTheta - cosTheta*temp) / (poleLength * (4.0/3.0 - massPole*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thetaAcc*cosTheta/totalMass

	e.x += tau * e.xDot
	e.xDot += tau * xAcc
	e.theta += tau * e.thetaDot
	e.thetaDot += tau * thetaAcc

	e.done = e.x < -xThreshold || e.x > xThreshold || e.theta < -thetaThreshold || e.theta > thetaThreshold
	e.markStep(e.done)

	return core.StepResult{
		NextState:  e.observation(),
		Reward:     1.0,
		Terminated: e.done,
		Info:       core.Info{"step": e.status.Step},
	}, nil
}

// Render draws the track with the cart position and the pole angle.
func (e *CartPole) Render() error {
	track := []rune(strings.Repeat("-", renderWidth))
	pos := int(math.Round((e.x + xThreshold) / (2 * xThreshold) * float64(renderWidth-1)))
	pos = max(0, min(renderWidth-1, pos))

	pole := '|'
	switch {
	case e.theta > thetaThreshold/3:
		pole = '/'
	case e.theta < -thetaThreshold/3:
		pole = '\\'
	}
	track[pos] = pole

	_, err := fmt.Fprintf(e.out, "[%s] step=%d x=%+.3f theta=%+.3f\n", string(track), e.status.Step, e.x, e.theta)
	return err
}

func (e *CartPole) Close() error {
	e.markClosed()
	return nil
}
