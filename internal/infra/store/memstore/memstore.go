// Package memstore is an in-memory reference implementation of the
// internal/infra/store ports: a plain map behind an RWMutex, narrow
// accessor methods, no persistence. It exists so the engine is runnable and
// testable without a real DynamoDB-backed adapter; it is not a production
// store.
package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/spottypottysense/motionengine/internal/domain/motionevent"
	"github.com/spottypottysense/motionengine/internal/domain/motionsession"
	"github.com/spottypottysense/motionengine/internal/domain/sensor"
	"github.com/spottypottysense/motionengine/internal/domain/user"
	"github.com/spottypottysense/motionengine/internal/infra/store"
)

// Sensors is an in-memory SensorStore.
type Sensors struct {
	mu    sync.RWMutex
	byID  map[string]*sensor.Sensor
}

// NewSensors creates an empty in-memory SensorStore.
func NewSensors() *Sensors {
	return &Sensors{byID: make(map[string]*sensor.Sensor)}
}

func (s *Sensors) Get(_ context.Context, sensorID string) (*sensor.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[sensorID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *Sensors) Put(_ context.Context, sn *sensor.Sensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sn
	s.byID[sn.SensorID] = &cp
	return nil
}

func (s *Sensors) ListByUser(_ context.Context, userID string) ([]*sensor.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*sensor.Sensor
	for _, v := range s.byID {
		if v.UserID == userID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Users is an in-memory UserStore.
type Users struct {
	mu   sync.RWMutex
	byID map[string]*user.User
	// order preserves insertion order so ListConnected pagination is stable.
	order []string
}

// NewUsers creates an empty in-memory UserStore.
func NewUsers() *Users {
	return &Users{byID: make(map[string]*user.User)}
}

func (u *Users) Get(_ context.Context, userID string) (*user.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	v, ok := u.byID[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (u *Users) Put(_ context.Context, usr *user.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, exists := u.byID[usr.UserID]; !exists {
		u.order = append(u.order, usr.UserID)
	}
	cp := *usr
	u.byID[usr.UserID] = &cp
	return nil
}

func (u *Users) ListConnected(_ context.Context, pageToken string, limit int) ([]*user.User, string, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	start := 0
	if pageToken != "" {
		for i, id := range u.order {
			if id == pageToken {
				start = i + 1
				break
			}
		}
	}

	var out []*user.User
	next := ""
	for i := start; i < len(u.order); i++ {
		v := u.byID[u.order[i]]
		if v == nil || !v.Active || !v.SpotifyConnected {
			continue
		}
		if len(out) == limit {
			next = u.order[i-1]
			return out, next, nil
		}
		cp := *v
		out = append(out, &cp)
	}
	return out, "", nil
}

// Sessions is an in-memory SessionStore modelling DynamoDB's conditional-put
// semantics with one mutex per sensor (Design Notes §9's conditional write
// is the serialisation point; a real adapter would use a condition
// expression instead of an in-process lock).
type Sessions struct {
	mu       sync.RWMutex
	byID     map[string]*motionsession.Session
	sensorMu map[string]*sync.Mutex
}

// NewSessions creates an empty in-memory SessionStore.
func NewSessions() *Sessions {
	return &Sessions{
		byID:     make(map[string]*motionsession.Session),
		sensorMu: make(map[string]*sync.Mutex),
	}
}

func (ss *Sessions) lockFor(sensorID string) *sync.Mutex {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	m, ok := ss.sensorMu[sensorID]
	if !ok {
		m = &sync.Mutex{}
		ss.sensorMu[sensorID] = m
	}
	return m
}

func (ss *Sessions) CreateActive(_ context.Context, s *motionsession.Session) error {
	lock := ss.lockFor(s.SensorID)
	lock.Lock()
	defer lock.Unlock()

	ss.mu.Lock()
	defer ss.mu.Unlock()
	for _, v := range ss.byID {
		if v.SensorID == s.SensorID && v.IsActive() {
			return store.ErrActiveSessionExists
		}
	}
	cp := *s
	ss.byID[s.SessionID] = &cp
	return nil
}

func (ss *Sessions) GetActiveBySensor(_ context.Context, sensorID string) (*motionsession.Session, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	for _, v := range ss.byID {
		if v.SensorID == sensorID && v.IsActive() {
			cp := *v
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (ss *Sessions) Get(_ context.Context, sessionID string) (*motionsession.Session, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	v, ok := ss.byID[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (ss *Sessions) Update(_ context.Context, s *motionsession.Session) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if _, ok := ss.byID[s.SessionID]; !ok {
		return store.ErrNotFound
	}
	cp := *s
	ss.byID[s.SessionID] = &cp
	return nil
}

func (ss *Sessions) ListActive(_ context.Context) ([]*motionsession.Session, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	var out []*motionsession.Session
	for _, v := range ss.byID {
		if v.IsActive() {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (ss *Sessions) QueryBySensor(_ context.Context, q store.SessionQuery) ([]*motionsession.Session, string, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var matched []*motionsession.Session
	for _, v := range ss.byID {
		if v.SensorID != q.SensorID {
			continue
		}
		epoch := v.StartTime.Unix()
		if q.StartEpoch != nil && epoch < *q.StartEpoch {
			continue
		}
		if q.EndEpoch != nil && epoch > *q.EndEpoch {
			continue
		}
		cp := *v
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartTime.After(matched[j].StartTime)
	})

	limit := q.Limit
	if limit <= 0 || limit > len(matched) {
		limit = len(matched)
	}

	start := 0
	if q.PageToken != "" {
		for i, s := range matched {
			if s.SessionID == q.PageToken {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	page := matched[start:end]
	next := ""
	if end < len(matched) && len(page) > 0 {
		next = page[len(page)-1].SessionID
	}
	return page, next, nil
}

func (ss *Sessions) Analytics(_ context.Context, q store.AnalyticsQuery) (*store.Analytics, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	result := &store.Analytics{}
	hourCounts := make(map[int]int)
	var totalDuration float64
	var completedWithDuration int

	for _, v := range ss.byID {
		if q.SensorID != "" && v.SensorID != q.SensorID {
			continue
		}
		if q.UserID != "" && v.UserID != q.UserID {
			continue
		}
		epoch := v.StartTime.Unix()
		if q.StartEpoch != nil && epoch < *q.StartEpoch {
			continue
		}
		if q.EndEpoch != nil && epoch > *q.EndEpoch {
			continue
		}

		result.TotalSessions++
		result.TotalMotionEvents += v.MotionEventsCount
		if v.PlaybackStarted {
			result.SessionsWithPlayback++
		}
		hourCounts[v.StartTime.Hour()]++

		if v.IsActive() {
			result.ActiveSessions++
			continue
		}
		result.CompletedSessions++
		if v.DurationMinutes != nil {
			totalDuration += *v.DurationMinutes
			completedWithDuration++
		}
	}

	result.TotalDurationMinutes = totalDuration
	if completedWithDuration > 0 {
		result.AverageDurationMinutes = math.Round(totalDuration/float64(completedWithDuration)*100) / 100
	}
	if result.TotalSessions > 0 {
		result.AverageMotionEventsPerSession = math.Round(float64(result.TotalMotionEvents)/float64(result.TotalSessions)*100) / 100
	}
	var peak *int
	best := -1
	for h, c := range hourCounts {
		if c > best {
			hh := h
			peak = &hh
			best = c
		}
	}
	result.PeakHour = peak

	return result, nil
}

// MotionEvents is an in-memory MotionEventStore.
type MotionEvents struct {
	mu     sync.Mutex
	byID   map[string]*motionevent.MotionEvent
}

// NewMotionEvents creates an empty in-memory MotionEventStore.
func NewMotionEvents() *MotionEvents {
	return &MotionEvents{byID: make(map[string]*motionevent.MotionEvent)}
}

func (m *MotionEvents) Put(_ context.Context, e *motionevent.MotionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.EventID == "" {
		return fmt.Errorf("memstore: motion event missing id")
	}
	cp := *e
	m.byID[e.EventID] = &cp
	return nil
}

// All returns every stored motion event, for test assertions.
func (m *MotionEvents) All() []*motionevent.MotionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*motionevent.MotionEvent, 0, len(m.byID))
	for _, v := range m.byID {
		cp := *v
		out = append(out, &cp)
	}
	return out
}
