package models

import "time"

// ClassificationResult is a single classifier answer. It is consumed once by
// the tracker and never retained.
type ClassificationResult struct {
	Category      int       `json:"category"`
	Probabilities []float64 `json:"probabilities"`
}

// EventOutcome is the tracker's answer for one recorded event.
type EventOutcome struct {
	Prediction    int       `json:"prediction"`
	MovementType  string    `json:"movement_type"`
	Probabilities []float64 `json:"probabilities"`
	UnknownCount  int       `json:"unknown_movement_count"`
	Warning       *string   `json:"warning"`
}

// Summary is the read-only view of a session.
type Summary struct {
	TotalWalking    float64            `json:"total_walking_time"`
	TotalRunning    float64            `json:"total_running_time"`
	TotalIrregular  int                `json:"total_irregular_movements"`
	SessionDuration float64            `json:"session_duration"`
	Durations       map[string]float64 `json:"durations"`
}

// PredictionRecord is one entry of the served prediction log.
type PredictionRecord struct {
	SessionID string       `json:"session_id"`
	Timestamp time.Time    `json:"timestamp"`
	Outcome   EventOutcome `json:"outcome"`
}
