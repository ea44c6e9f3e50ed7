// Package storetest runs the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DTPriya20/click-gait/internal/store"
	"github.com/DTPriya20/click-gait/pkg/models"
)

// SampleState returns a populated state with whole-second timestamps.
func SampleState() *models.SessionState {
	start := time.Date(2026, 2, 14, 7, 0, 0, 0, time.UTC)
	s := models.NewSessionState(start)
	s.Durations[models.MovementWalking] = 61.5
	s.Durations[models.MovementStanding] = 40
	s.UnknownEvents = []time.Time{start.Add(time.Minute), start.Add(2 * time.Minute)}
	s.LastMovementTime = start.Add(3 * time.Minute)
	s.LastMovementType = models.MovementStanding
	return s
}

// AssertStateEqual fails t when the states differ by instant or value.
func AssertStateEqual(t *testing.T, want, got *models.SessionState) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("session state mismatch (-want +got):\n%s", diff)
	}
}

// Run exercises a fresh store from newStore. Keys are random so backends
// shared between runs do not collide.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Get(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		key := uuid.NewString()
		want := SampleState()

		require.NoError(t, s.Put(ctx, key, want))
		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, got)
		AssertStateEqual(t, want, got)
	})

	t.Run("put overwrites", func(t *testing.T) {
		s := newStore(t)
		key := uuid.NewString()
		first := SampleState()
		require.NoError(t, s.Put(ctx, key, first))

		second := first.Clone()
		second.Durations[models.MovementRunning] = 5
		second.UnknownEvents = nil
		require.NoError(t, s.Put(ctx, key, second))

		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		AssertStateEqual(t, second, got)
	})

	t.Run("returned state is a copy", func(t *testing.T) {
		s := newStore(t)
		key := uuid.NewString()
		require.NoError(t, s.Put(ctx, key, SampleState()))

		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		got.Durations[models.MovementWalking] = 1000

		again, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 61.5, again.Durations[models.MovementWalking])
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		key := uuid.NewString()
		require.NoError(t, s.Put(ctx, key, SampleState()))
		require.NoError(t, s.Delete(ctx, key))

		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, got)

		// Deleting a missing key is not an error.
		require.NoError(t, s.Delete(ctx, key))
	})

	t.Run("keys are independent", func(t *testing.T) {
		s := newStore(t)
		a, b := uuid.NewString(), uuid.NewString()
		stateA := SampleState()
		stateB := models.NewSessionState(stateA.SessionStart.Add(time.Hour))
		require.NoError(t, s.Put(ctx, a, stateA))
		require.NoError(t, s.Put(ctx, b, stateB))

		got, err := s.Get(ctx, b)
		require.NoError(t, err)
		AssertStateEqual(t, stateB, got)
	})
}
