package runlog

import (
	"fmt"
	"strings"
	"time"
)

// Status represents a run's position in the pipeline state machine.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCollecting Status = "collecting"
	StatusAnalyzing  Status = "analyzing"
	StatusHandedOff  Status = "handed_off"
	StatusFailed     Status = "failed"
	StatusPartial    Status = "partial"
)

// Terminal reports whether the status ends a run. A terminal run for a date
// blocks re-invocation without an explicit force override.
func (s Status) Terminal() bool {
	switch s {
	case StatusHandedOff, StatusFailed, StatusPartial:
		return true
	default:
		return false
	}
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusPending, StatusCollecting, StatusAnalyzing, StatusHandedOff, StatusFailed, StatusPartial:
		return status, nil
	default:
		return "", fmt.Errorf("unknown run status %q", value)
	}
}

// StageStatus records one stage's outcome within a run. Sources carries
// per-adapter sub-results during collection ("ok", "failed: ...").
type StageStatus struct {
	Status    string            `json:"status"`
	StartedAt *time.Time        `json:"started_at,omitempty"`
	EndedAt   *time.Time        `json:"ended_at,omitempty"`
	Error     string            `json:"error,omitempty"`
	Sources   map[string]string `json:"sources,omitempty"`
}

// Run is the durable record of one pipeline attempt for a calendar date.
type Run struct {
	RunID     string
	Date      string
	Status    Status
	Stages    map[string]StageStatus
	Cause     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stage names recorded in the run log.
const (
	StageCollect = "collect"
	StageAnalyze = "analyze"
	StageHandoff = "handoff"
)
