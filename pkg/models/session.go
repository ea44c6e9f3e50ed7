// Package models contains domain models for click-gait.
package models

import (
	"maps"
	"time"
)

// SessionState is the accumulated tracking state of one logical session.
// Field tags are shared by the JSON column encoding and the CBOR token
// encoding (CBOR falls back to json tags).
type SessionState struct {
	// Durations maps a movement label to accumulated seconds. Labels that
	// were never credited are absent and read as zero.
	Durations map[string]float64 `json:"durations"`
	// UnknownEvents holds low-confidence event times in chronological order.
	UnknownEvents    []time.Time `json:"unknown_events"`
	LastMovementTime time.Time   `json:"last_movement_time"`
	// LastMovementType is empty before the first event.
	LastMovementType string    `json:"last_movement_type,omitempty"`
	SessionStart     time.Time `json:"session_start"`
}

// NewSessionState returns a fresh state created at now.
func NewSessionState(now time.Time) *SessionState {
	return &SessionState{
		Durations:        make(map[string]float64),
		UnknownEvents:    []time.Time{},
		LastMovementTime: now,
		SessionStart:     now,
	}
}

// Duration returns the accumulated seconds for label, zero if never credited.
func (s *SessionState) Duration(label string) float64 {
	return s.Durations[label]
}

// Clone returns a deep copy of the state.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	c := *s
	c.Durations = maps.Clone(s.Durations)
	if c.Durations == nil {
		c.Durations = make(map[string]float64)
	}
	c.UnknownEvents = append([]time.Time{}, s.UnknownEvents...)
	return &c
}
