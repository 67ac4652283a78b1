// Package sensor provides the Sensor domain entity.
package sensor

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Sensor is a physical presence detector owned by a single User.
type Sensor struct {
	SensorID              string        `validate:"required,min=3,max=128,alphanum_dash"`
	UserID                string        `validate:"required"`
	Location              string        ``
	Name                  string        ``
	Enabled               bool          ``
	TimeoutMinutes        int           `validate:"gte=1,lte=120"`
	MotionDebounceMinutes int           `validate:"gte=1,lte=60"`
	QuietHours            *QuietHours   ``
	SpotifyConfig         SpotifyConfig ``
	LastMotionTime        *time.Time    ``
	CreatedAt             time.Time     ``
	UpdatedAt             time.Time     ``
}

// QuietHours is the per-sensor window in which motion is recorded but never
// triggers playback.
type QuietHours struct {
	Enabled   bool
	StartHHMM string `validate:"omitempty,len=5"`
	EndHHMM   string `validate:"omitempty,len=5"`
	// Days restricts the window to these weekdays (0=Sunday..6=Saturday).
	// Empty means every day.
	Days []int `validate:"dive,gte=0,lte=6"`
}

// SpotifyConfig is the playback target a sensor drives.
type SpotifyConfig struct {
	DeviceID      string
	PlaylistURI   string
	Shuffle       bool
	VolumePercent *int `validate:"omitempty,gte=0,lte=100"`
}

const (
	// DefaultTimeoutMinutes is used when a sensor omits TimeoutMinutes.
	DefaultTimeoutMinutes = 5
	// DefaultMotionDebounceMinutes is used when a sensor omits MotionDebounceMinutes.
	DefaultMotionDebounceMinutes = 2
)

// New builds a Sensor with the defaults §3 specifies, ready for Validate.
func New(sensorID, userID string, now time.Time) *Sensor {
	return &Sensor{
		SensorID:              sensorID,
		UserID:                userID,
		Enabled:               true,
		TimeoutMinutes:        DefaultTimeoutMinutes,
		MotionDebounceMinutes: DefaultMotionDebounceMinutes,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// Validate checks structural invariants; it does not check that UserID
// resolves to an existing User — that is a store-level concern.
func (s *Sensor) Validate() error {
	return validate.Struct(s)
}

// InQuietHours reports whether t (already converted to the sensor owner's
// local timezone) falls inside the configured quiet-hours window.
func (q *QuietHours) InQuietHours(t time.Time) bool {
	if q == nil || !q.Enabled {
		return false
	}
	if len(q.Days) > 0 && !containsWeekday(q.Days, int(t.Weekday())) {
		return false
	}
	start, okStart := parseHHMM(q.StartHHMM)
	end, okEnd := parseHHMM(q.EndHHMM)
	if !okStart || !okEnd {
		return false
	}
	cur := t.Hour()*60 + t.Minute()
	if start < end {
		return cur >= start && cur < end
	}
	// Wraps midnight.
	return cur >= start || cur < end
}

func containsWeekday(days []int, d int) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}

func parseHHMM(s string) (minutes int, ok bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func init() {
	_ = validate.RegisterValidation("alphanum_dash", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
				return false
			}
		}
		return true
	})
}
