// Package session holds the persisted record of one governed agent run.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusRunning              Status = "running"
	StatusSuccess              Status = "success"
	StatusPartial              Status = "partial"
	StatusFailed               Status = "failed"
	StatusTimeout              Status = "timeout"
	StatusCancelled            Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusPartial, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	}
	return false
}

// Session is one governed execution attempt.
type Session struct {
	ID              string         `json:"id"`
	Kind            string         `json:"kind"`
	Params          map[string]any `json:"params"`
	Status          Status         `json:"status"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         *time.Time     `json:"ended_at,omitempty"`
	IterationsUsed  int            `json:"iterations_used"`
	FrameCount      int            `json:"frame_count"`
	RecordsAffected int            `json:"records_affected"`
	ResultSummary   string         `json:"result_summary,omitempty"`
	ErrorLog        string         `json:"error_log,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// New creates a session in the given initial status.
func New(kind string, params map[string]any, status Status) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		Params:    params,
		Status:    status,
		StartedAt: now,
		CreatedAt: now,
	}
}

// Filter narrows List results.
type Filter struct {
	Status Status
	Kind   string
}

// Store persists sessions. Implementations must be safe for concurrent use
// by the HTTP surface and the background execution unit.
type Store interface {
	Create(s *Session) error
	Get(id string) (*Session, error)
	Save(s *Session) error
	List(filter Filter) ([]*Session, error)
}
