// Package status tracks in-flight and recently finished operations for
// the front-end surface. Operations are identified by run id and move to
// a bounded history when they finish.
package status

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shrinkfs/shrinkfs/pkg/errors"
	"github.com/shrinkfs/shrinkfs/pkg/health"
)

// OperationStatus represents the status of a tracked operation
type OperationStatus int

const (
	// StatusInProgress indicates the operation is currently executing
	StatusInProgress OperationStatus = iota

	// StatusCompleted indicates the operation completed successfully
	StatusCompleted

	// StatusFailed indicates the operation failed
	StatusFailed

	// StatusCanceled indicates the operation was canceled
	StatusCanceled
)

// String returns the string representation of an operation status
func (s OperationStatus) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the status name rather than the enum value
func (s OperationStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Operation represents one tracked operation
type Operation struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Status    OperationStatus        `json:"status"`
	StartTime time.Time              `json:"start_time"`
	EndTime   *time.Time             `json:"end_time,omitempty"`
	Error     *errors.ShrinkFSError  `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Copy returns a snapshot safe to hand out
func (o *Operation) Copy() *Operation {
	copied := *o
	if o.Metadata != nil {
		copied.Metadata = make(map[string]interface{}, len(o.Metadata))
		for k, v := range o.Metadata {
			copied.Metadata[k] = v
		}
	}
	if o.EndTime != nil {
		end := *o.EndTime
		copied.EndTime = &end
	}
	return &copied
}

// TrackerConfig configures operation tracking behavior
type TrackerConfig struct {
	// MaxHistorySize bounds how many finished operations are retained
	MaxHistorySize int `json:"max_history_size"`

	// Health, when set, contributes component health to system status
	Health *health.Tracker `json:"-"`
}

// DefaultTrackerConfig returns default configuration
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxHistorySize: 1000,
	}
}

// Tracker tracks all operations and provides status information
type Tracker struct {
	mu         sync.RWMutex
	operations map[string]*Operation
	history    []*Operation
	maxHistory int
	health     *health.Tracker
}

// NewTracker creates an operation tracker
func NewTracker(config TrackerConfig) *Tracker {
	if config.MaxHistorySize <= 0 {
		config.MaxHistorySize = 1000
	}

	return &Tracker{
		operations: make(map[string]*Operation),
		history:    make([]*Operation, 0, config.MaxHistorySize),
		maxHistory: config.MaxHistorySize,
		health:     config.Health,
	}
}

// StartOperation begins tracking a new operation and returns a snapshot
// carrying its id
func (t *Tracker) StartOperation(opType string, metadata map[string]interface{}) *Operation {
	t.mu.Lock()
	defer t.mu.Unlock()

	op := &Operation{
		ID:        uuid.New().String(),
		Type:      opType,
		Status:    StatusInProgress,
		StartTime: time.Now(),
		Metadata:  metadata,
	}
	t.operations[op.ID] = op

	return op.Copy()
}

// CompleteOperation marks an operation as completed and moves it to
// history
func (t *Tracker) CompleteOperation(opID string) error {
	return t.finish(opID, StatusCompleted, nil)
}

// FailOperation marks an operation as failed and moves it to history
func (t *Tracker) FailOperation(opID string, opErr error) error {
	return t.finish(opID, StatusFailed, opErr)
}

// CancelOperation marks an operation as canceled and moves it to history
func (t *Tracker) CancelOperation(opID string) error {
	return t.finish(opID, StatusCanceled, nil)
}

func (t *Tracker) finish(opID string, status OperationStatus, opErr error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, exists := t.operations[opID]
	if !exists {
		return errors.NewError(errors.ErrCodeNotFound, "operation not found").
			WithContext("operation_id", opID)
	}

	op.Status = status
	now := time.Now()
	op.EndTime = &now

	if opErr != nil {
		if sErr, ok := opErr.(*errors.ShrinkFSError); ok {
			op.Error = sErr
		} else {
			op.Error = errors.NewError(errors.ErrCodeInternalError, opErr.Error())
		}
	}

	delete(t.operations, opID)
	t.moveToHistory(op)

	return nil
}

// GetOperation returns a snapshot of an active operation
func (t *Tracker) GetOperation(opID string) (*Operation, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	op, exists := t.operations[opID]
	if !exists {
		return nil, errors.NewError(errors.ErrCodeNotFound, "operation not found").
			WithContext("operation_id", opID)
	}
	return op.Copy(), nil
}

// GetActiveOperations returns snapshots of all in-flight operations
func (t *Tracker) GetActiveOperations() []*Operation {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ops := make([]*Operation, 0, len(t.operations))
	for _, op := range t.operations {
		ops = append(ops, op.Copy())
	}
	return ops
}

// GetHistory returns up to limit finished operations, newest first. A
// non-positive limit returns the whole history.
func (t *Tracker) GetHistory(limit int) []*Operation {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit <= 0 || limit > len(t.history) {
		limit = len(t.history)
	}

	result := make([]*Operation, limit)
	for i := 0; i < limit; i++ {
		result[i] = t.history[i].Copy()
	}
	return result
}

// SystemStatus represents the overall system status
type SystemStatus struct {
	Timestamp        time.Time                          `json:"timestamp"`
	ActiveOps        int                                `json:"active_operations"`
	OperationsByType map[string]int                     `json:"operations_by_type"`
	HealthState      health.HealthState                 `json:"health_state"`
	ComponentHealth  map[string]*health.ComponentHealth `json:"component_health,omitempty"`
}

// GetSystemStatus returns active operation counts plus overall health
func (t *Tracker) GetSystemStatus() *SystemStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st := &SystemStatus{
		Timestamp:        time.Now(),
		ActiveOps:        len(t.operations),
		OperationsByType: make(map[string]int),
	}
	for _, op := range t.operations {
		st.OperationsByType[op.Type]++
	}

	if t.health != nil {
		st.HealthState = t.health.GetOverallHealth()
		st.ComponentHealth = t.health.GetAllComponents()
	}

	return st
}

// moveToHistory prepends the finished operation, newest first. Must be
// called with the lock held.
func (t *Tracker) moveToHistory(op *Operation) {
	t.history = append([]*Operation{op}, t.history...)
	if len(t.history) > t.maxHistory {
		t.history = t.history[:t.maxHistory]
	}
}
