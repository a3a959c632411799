package diagnostic

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliath-teleop/core/domain/session"
)

// IdleState is reported when no session has started yet or the last one
// has terminated.
const IdleState = "idle"

// VehicleStatus is the diagnostics snapshot served over HTTP.
type VehicleStatus struct {
	Timestamp      time.Time `json:"timestamp"`
	VehicleID      string    `json:"vehicle_id"`
	Uptime         string    `json:"uptime"`
	State          string    `json:"state"`
	SessionID      string    `json:"session_id,omitempty"`
	Remote         string    `json:"remote,omitempty"`
	SessionsServed uint64    `json:"sessions_served"`
	Faults         uint64    `json:"faults"`
	LastFault      string    `json:"last_fault,omitempty"`
}

// DiagnosticService tracks session transitions for the status endpoint.
type DiagnosticService struct {
	mu        sync.RWMutex
	vehicleID string
	started   time.Time

	current   session.Transition
	active    bool
	served    uint64
	faults    uint64
	lastFault string
}

// NewDiagnosticService creates a new diagnostic service instance
func NewDiagnosticService(vehicleID string) *DiagnosticService {
	return &DiagnosticService{
		vehicleID: vehicleID,
		started:   time.Now(),
	}
}

// Observe records a session transition. It is a session.Observer.
func (s *DiagnosticService) Observe(t session.Transition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = t
	switch t.State {
	case session.Running:
		s.active = true
	case session.Terminated:
		s.active = false
		s.served++
		if t.Err != nil {
			s.faults++
			s.lastFault = t.Err.Error()
		}
	}
}

// Status returns the current snapshot.
func (s *DiagnosticService) Status() VehicleStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := VehicleStatus{
		Timestamp:      time.Now(),
		VehicleID:      s.vehicleID,
		Uptime:         time.Since(s.started).Truncate(time.Second).String(),
		State:          IdleState,
		SessionsServed: s.served,
		Faults:         s.faults,
		LastFault:      s.lastFault,
	}
	if s.active {
		st.State = s.current.State.String()
		st.SessionID = s.current.SessionID
		st.Remote = s.current.Remote
	}
	return st
}

// GetStatusHandler handles API requests for vehicle status
func (s *DiagnosticService) GetStatusHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"vehicle": s.Status(),
	})
}
