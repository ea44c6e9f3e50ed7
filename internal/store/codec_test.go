package store

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/DTPriya20/click-gait/pkg/models"
)

func sampleState() *models.SessionState {
	start := time.Date(2026, 2, 14, 7, 0, 0, 0, time.UTC)
	s := models.NewSessionState(start)
	s.Durations[models.MovementWalking] = 61.5
	s.Durations[models.MovementRunning] = 12.25
	s.UnknownEvents = []time.Time{start.Add(time.Minute), start.Add(90 * time.Second)}
	s.LastMovementTime = start.Add(2 * time.Minute)
	s.LastMovementType = models.MovementRunning
	return s
}

func TestStateJSONRoundTrip(t *testing.T) {
	in := sampleState()
	data, err := EncodeStateJSON(in)
	require.NoError(t, err)

	out, err := DecodeStateJSON(data)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestStateCBORRoundTrip(t *testing.T) {
	in := sampleState()
	data, err := EncodeStateCBOR(in)
	require.NoError(t, err)

	out, err := DecodeStateCBOR(data)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeNormalizesDurations(t *testing.T) {
	out, err := DecodeStateJSON([]byte(`{"last_movement_type":"Walking"}`))
	require.NoError(t, err)
	require.NotNil(t, out.Durations)

	_, err = DecodeStateJSON([]byte(`{`))
	require.Error(t, err)
}
