package dispatcher

import (
	"time"

	"github.com/spottypottysense/motionengine/internal/domain/motionevent"
)

// EnabledGate implements spec §4.3 step 4: a disabled sensor ignores all
// motion, but the event is still audited.
type EnabledGate struct{}

func (EnabledGate) Name() string { return "enabled_gate" }

func (EnabledGate) Check(in GateInput) GateResult {
	if !in.Sensor.Enabled {
		return Terminate(motionevent.ActionIgnoredDisabled)
	}
	return Pass()
}

// QuietHoursGate implements spec §4.3 step 5.
type QuietHoursGate struct{}

func (QuietHoursGate) Name() string { return "quiet_hours_gate" }

func (QuietHoursGate) Check(in GateInput) GateResult {
	loc := in.User.Location()
	local := in.Now.In(loc)
	if in.Sensor.QuietHours.InQuietHours(local) {
		return Terminate(motionevent.ActionIgnoredQuietHours)
	}
	return Pass()
}

// DebounceGate implements spec §4.3 step 6: missing lastMotionTime never
// debounces.
type DebounceGate struct{}

func (DebounceGate) Name() string { return "debounce_gate" }

func (DebounceGate) Check(in GateInput) GateResult {
	if in.Sensor.LastMotionTime == nil {
		return Pass()
	}
	elapsed := in.Now.Sub(*in.Sensor.LastMotionTime)
	if elapsed < time.Duration(in.Sensor.MotionDebounceMinutes)*time.Minute {
		return Terminate(motionevent.ActionIgnoredDebounce)
	}
	return Pass()
}

// DefaultGates returns the spec §4.3 steps 4-6 pipeline in order.
func DefaultGates() []Gate {
	return []Gate{EnabledGate{}, QuietHoursGate{}, DebounceGate{}}
}
