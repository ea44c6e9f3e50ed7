// Package tracker accumulates per-movement dwell time and detects persistent
// unrecognised movement for a single session.
//
// Every function is a pure computation over a models.SessionState value. The
// caller owns persistence and must serialise calls per session key.
package tracker

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/DTPriya20/click-gait/pkg/models"
)

const (
	// MinSwitchDwell is the minimum gap after which a category switch is
	// credited to the new category.
	MinSwitchDwell = 40 * time.Second

	// ConfidenceThreshold is the top probability below which an event is
	// reported as unknown movement.
	ConfidenceThreshold = 0.6

	// UnknownWindow is the trailing interval in which unknown events count.
	UnknownWindow = 10 * time.Minute

	// WarningThreshold is the unknown event count that must be exceeded
	// inside UnknownWindow before a warning is raised.
	WarningThreshold = 5

	// WarningMessage is returned when the unknown window is over threshold.
	WarningMessage = "I'm sensing some unknown persistent movement. Are you okay?"
)

var (
	// ErrInvalidInput reports a missing or malformed probability vector.
	ErrInvalidInput = errors.New("invalid classification input")

	// ErrOutOfOrder reports an event older than the previous processed event.
	ErrOutOfOrder = errors.New("event timestamp precedes last processed event")
)

// RecordEvent applies one classification to state at time now and returns the
// updated state with the outcome to report. The input state is not modified.
func RecordEvent(state *models.SessionState, result models.ClassificationResult, now time.Time) (*models.SessionState, models.EventOutcome, error) {
	if err := validateProbabilities(result.Probabilities); err != nil {
		return nil, models.EventOutcome{}, err
	}
	if state == nil {
		state = models.NewSessionState(now)
	}
	if now.Before(state.LastMovementTime) {
		return nil, models.EventOutcome{}, fmt.Errorf("%w: %s < %s", ErrOutOfOrder,
			now.Format(time.RFC3339Nano), state.LastMovementTime.Format(time.RFC3339Nano))
	}

	next := state.Clone()
	movement := models.MovementLabel(result.Category)
	elapsed := now.Sub(next.LastMovementTime)

	// A switch is credited to the incoming category, not the one being left.
	if movement == next.LastMovementType || elapsed >= MinSwitchDwell {
		next.Durations[movement] += elapsed.Seconds()
	}
	next.LastMovementTime = now
	next.LastMovementType = movement

	// Override happens after crediting so dwell stays under the resolved label.
	if floats.Max(result.Probabilities) < ConfidenceThreshold {
		movement = models.MovementUnknown
		next.UnknownEvents = append(next.UnknownEvents, now)
	}
	next.UnknownEvents = pruneUnknown(next.UnknownEvents, now)

	outcome := models.EventOutcome{
		Prediction:    result.Category,
		MovementType:  movement,
		Probabilities: result.Probabilities,
		UnknownCount:  len(next.UnknownEvents),
	}
	if outcome.UnknownCount > WarningThreshold {
		msg := WarningMessage
		outcome.Warning = &msg
	}
	return next, outcome, nil
}

// Summarize prunes the unknown window against now and reports the session
// totals. The returned state carries the pruned window and should be saved.
func Summarize(state *models.SessionState, now time.Time) (*models.SessionState, models.Summary) {
	if state == nil {
		state = models.NewSessionState(now)
	}
	next := state.Clone()
	next.UnknownEvents = pruneUnknown(next.UnknownEvents, now)

	sessionSeconds := now.Sub(next.SessionStart).Seconds()
	if sessionSeconds < 0 {
		sessionSeconds = 0
	}

	return next, models.Summary{
		TotalWalking:    next.Duration(models.MovementWalking),
		TotalRunning:    next.Duration(models.MovementRunning),
		TotalIrregular:  len(next.UnknownEvents),
		SessionDuration: math.Round(sessionSeconds*100) / 100,
		Durations:       next.Durations,
	}
}

// Reset returns a fresh session state starting at now.
func Reset(now time.Time) *models.SessionState {
	return models.NewSessionState(now)
}

// pruneUnknown keeps events strictly newer than now minus UnknownWindow.
// events is chronological, so the cut is a prefix.
func pruneUnknown(events []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-UnknownWindow)
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	return append([]time.Time{}, events[i:]...)
}

func validateProbabilities(probs []float64) error {
	if len(probs) == 0 {
		return fmt.Errorf("%w: probabilities missing", ErrInvalidInput)
	}
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
			return fmt.Errorf("%w: probability %d out of range: %v", ErrInvalidInput, i, p)
		}
	}
	return nil
}
