// Package health tracks per-component error streaks and derives an
// overall service state for status reporting.
package health

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// HealthState represents the health of a component or the whole service
type HealthState int

const (
	// StateHealthy indicates the component is fully operational
	StateHealthy HealthState = iota

	// StateDegraded indicates repeated errors but continued operation
	StateDegraded

	// StateUnavailable indicates the component is not operational
	StateUnavailable
)

// String returns the string representation of a health state
func (s HealthState) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state name rather than the enum value
func (s HealthState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ComponentHealth tracks the health of a specific component
type ComponentHealth struct {
	Name                 string      `json:"name"`
	State                HealthState `json:"state"`
	LastStateChange      time.Time   `json:"last_state_change"`
	LastActivity         time.Time   `json:"last_activity"`
	ConsecutiveErrors    int         `json:"consecutive_errors"`
	ConsecutiveSuccesses int         `json:"consecutive_successes"`
	LastErrorMessage     string      `json:"last_error_message,omitempty"`
}

// TrackerConfig configures the state transition thresholds
type TrackerConfig struct {
	// ErrorThreshold is the consecutive-error count that marks a
	// component degraded
	ErrorThreshold int `yaml:"error_threshold" json:"error_threshold"`

	// UnavailableThreshold is the consecutive-error count that marks a
	// component unavailable
	UnavailableThreshold int `yaml:"unavailable_threshold" json:"unavailable_threshold"`

	// RecoveryThreshold is the consecutive-success count that returns a
	// troubled component to healthy
	RecoveryThreshold int `yaml:"recovery_threshold" json:"recovery_threshold"`
}

// DefaultConfig returns the default tracker configuration
func DefaultConfig() TrackerConfig {
	return TrackerConfig{
		ErrorThreshold:       3,
		UnavailableThreshold: 10,
		RecoveryThreshold:    5,
	}
}

// Tracker tracks the health of multiple components and derives overall
// service health from the worst of them
type Tracker struct {
	mu         sync.RWMutex
	components map[string]*ComponentHealth
	config     TrackerConfig
}

// NewTracker creates a health tracker. Zero-value thresholds fall back
// to defaults.
func NewTracker(config TrackerConfig) *Tracker {
	defaults := DefaultConfig()
	if config.ErrorThreshold <= 0 {
		config.ErrorThreshold = defaults.ErrorThreshold
	}
	if config.UnavailableThreshold <= 0 {
		config.UnavailableThreshold = defaults.UnavailableThreshold
	}
	if config.RecoveryThreshold <= 0 {
		config.RecoveryThreshold = defaults.RecoveryThreshold
	}

	return &Tracker{
		components: make(map[string]*ComponentHealth),
		config:     config,
	}
}

// RegisterComponent registers a component, starting healthy. Registering
// an existing component is a no-op.
func (t *Tracker) RegisterComponent(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.components[name]; !exists {
		t.components[name] = &ComponentHealth{
			Name:            name,
			State:           StateHealthy,
			LastStateChange: time.Now(),
			LastActivity:    time.Now(),
		}
	}
}

// RecordSuccess records a successful operation. A success breaks any
// error streak; a troubled component returns to healthy after
// RecoveryThreshold consecutive successes.
func (t *Tracker) RecordSuccess(component string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, exists := t.components[component]
	if !exists {
		return
	}

	ch.LastActivity = time.Now()
	ch.ConsecutiveErrors = 0
	ch.ConsecutiveSuccesses++

	if ch.State != StateHealthy && ch.ConsecutiveSuccesses >= t.config.RecoveryThreshold {
		ch.State = StateHealthy
		ch.LastStateChange = time.Now()
		ch.LastErrorMessage = ""
	}
}

// RecordError records a failed operation and applies the thresholds
func (t *Tracker) RecordError(component string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, exists := t.components[component]
	if !exists {
		return
	}

	ch.LastActivity = time.Now()
	ch.ConsecutiveSuccesses = 0
	ch.ConsecutiveErrors++
	if err != nil {
		ch.LastErrorMessage = err.Error()
	}

	var newState HealthState
	switch {
	case ch.ConsecutiveErrors >= t.config.UnavailableThreshold:
		newState = StateUnavailable
	case ch.ConsecutiveErrors >= t.config.ErrorThreshold:
		newState = StateDegraded
	default:
		newState = ch.State
	}

	if newState != ch.State {
		ch.State = newState
		ch.LastStateChange = time.Now()
	}
}

// GetState returns the state of a component; unknown components are
// unavailable
func (t *Tracker) GetState(component string) HealthState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if ch, exists := t.components[component]; exists {
		return ch.State
	}
	return StateUnavailable
}

// IsHealthy reports whether the component is healthy
func (t *Tracker) IsHealthy(component string) bool {
	return t.GetState(component) == StateHealthy
}

// GetComponentHealth returns a copy of one component's health record
func (t *Tracker) GetComponentHealth(component string) (*ComponentHealth, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ch, exists := t.components[component]
	if !exists {
		return nil, fmt.Errorf("component %s not registered", component)
	}

	copied := *ch
	return &copied, nil
}

// GetAllComponents returns copies of every component's health record
func (t *Tracker) GetAllComponents() map[string]*ComponentHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]*ComponentHealth, len(t.components))
	for name, ch := range t.components {
		copied := *ch
		result[name] = &copied
	}
	return result
}

// GetOverallHealth returns the worst state across all components. A
// tracker with no components is healthy.
func (t *Tracker) GetOverallHealth() HealthState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	overall := StateHealthy
	for _, ch := range t.components {
		if ch.State > overall {
			overall = ch.State
		}
	}
	return overall
}
