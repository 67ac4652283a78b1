// Package dispatcher is the Motion Dispatcher (spec §4.3): the gate
// pipeline that decides, for one motion event at a time, whether to ignore
// it or open/extend a session and trigger playback.
package dispatcher

import (
	"time"

	"github.com/spottypottysense/motionengine/internal/domain/motionevent"
	"github.com/spottypottysense/motionengine/internal/domain/sensor"
	"github.com/spottypottysense/motionengine/internal/domain/user"
)

// GateInput is what every Gate sees: the event's effective timestamp plus
// the loaded Sensor and User records (spec §4.3 steps 1-3 have already run
// by the time gates are consulted).
type GateInput struct {
	Sensor *sensor.Sensor
	User   *user.User
	Now    time.Time
}

// GateResult is either a pass-through or a pipeline termination carrying
// the action that was recorded.
type GateResult struct {
	Passed bool
	Action motionevent.ActionTaken
}

// Pass lets the event continue to the next gate.
func Pass() GateResult { return GateResult{Passed: true} }

// Terminate stops the pipeline, recording action as the event's outcome.
func Terminate(action motionevent.ActionTaken) GateResult {
	return GateResult{Passed: false, Action: action}
}

// Gate is one step of the enabled/quiet-hours/debounce pipeline (spec §4.3
// steps 4-6).
type Gate interface {
	Name() string
	Check(in GateInput) GateResult
}

// Chain runs gates in sequence, short-circuiting on the first termination.
type Chain struct {
	gates []Gate
}

// NewChain builds a Chain from gates, run in the given order.
func NewChain(gates ...Gate) *Chain {
	return &Chain{gates: gates}
}

// Execute runs every gate in order, returning the first termination or
// Pass() if all gates pass.
func (c *Chain) Execute(in GateInput) GateResult {
	for _, g := range c.gates {
		if r := g.Check(in); !r.Passed {
			return r
		}
	}
	return Pass()
}
