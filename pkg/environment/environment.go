package environment

import (
	"time"
)

// Status is the bookkeeping every environment keeps about its episode
type Status struct {
	State     string // idle, running, done or closed
	Episode   int    // resets performed
	Step      int    // steps taken in the current episode
	Timestamp time.Time
}

type BaseEnvironment struct {
	status Status
}

func NewBaseEnvironment() BaseEnvironment {
	return BaseEnvironment{
		status: Status{
			State:     "idle",
			Timestamp: time.Now(),
		},
	}
}

func (e *BaseEnvironment) GetStatus() Status {
	return e.status
}

func (e *BaseEnvironment) markReset() {
	e.status.State = "running"
	e.status.Episode++
	e.status.Step = 0
	e.status.Timestamp = time.Now()
}

func (e *BaseEnvironment) markStep(done bool) {
	e.status.Step++
	e.status.Timestamp = time.Now()
	if done {
		e.status.State = "done"
	}
}

func (e *BaseEnvironment) markClosed() {
	e.status.State = "closed"
	e.status.Timestamp = time.Now()
}
