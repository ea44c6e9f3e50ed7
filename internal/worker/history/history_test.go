package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DTPriya20/click-gait/pkg/models"
)

func record(session string, prediction int) models.PredictionRecord {
	return models.PredictionRecord{SessionID: session, Outcome: models.EventOutcome{Prediction: prediction}}
}

func predictions(recs []models.PredictionRecord) []int {
	out := make([]int, len(recs))
	for i, r := range recs {
		out[i] = r.Outcome.Prediction
	}
	return out
}

func TestRing(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		adds    int
		session string
		limit   int
		want    []int
	}{
		{name: "empty", size: 3, adds: 0, want: []int{}},
		{name: "partial newest first", size: 5, adds: 3, want: []int{3, 2, 1}},
		{name: "wraps and drops oldest", size: 3, adds: 5, want: []int{5, 4, 3}},
		{name: "limit", size: 10, adds: 6, limit: 2, want: []int{6, 5}},
		{name: "session filter", size: 10, adds: 6, session: "odd", want: []int{5, 3, 1}},
		{name: "session filter with limit", size: 10, adds: 6, session: "even", limit: 1, want: []int{6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRing(tt.size)
			for i := 1; i <= tt.adds; i++ {
				session := "even"
				if i%2 == 1 {
					session = "odd"
				}
				r.Add(record(session, i))
			}
			assert.Equal(t, tt.want, predictions(r.Recent(tt.session, tt.limit)))
			assert.Equal(t, uint64(tt.adds), r.Total())
			assert.Equal(t, min(tt.adds, tt.size), r.Len())
		})
	}
}

func TestNewRingDefaultSize(t *testing.T) {
	r := NewRing(0)
	require.Len(t, r.buf, DefaultSize)
}
