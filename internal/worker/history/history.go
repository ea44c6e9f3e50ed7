// Package history keeps the most recent prediction records in memory.
package history

import (
	"sync"

	"github.com/DTPriya20/click-gait/pkg/models"
)

// DefaultSize is the ring capacity used when none is configured.
const DefaultSize = 1000

// Ring is a fixed-capacity log of prediction records. Once full, each new
// record overwrites the oldest.
type Ring struct {
	mu    sync.RWMutex
	buf   []models.PredictionRecord
	next  int
	count int
	total uint64
}

// NewRing creates a ring holding at most size records.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultSize
	}
	return &Ring{buf: make([]models.PredictionRecord, size)}
}

// Add appends a record.
func (r *Ring) Add(rec models.PredictionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.total++
}

// Recent returns up to limit records, newest first. If sessionID is not
// empty only that session's records are returned. limit <= 0 means all.
func (r *Ring) Recent(sessionID string, limit int) []models.PredictionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.PredictionRecord, 0, min(r.count, max(limit, 0)))
	for i := 1; i <= r.count; i++ {
		rec := r.buf[(r.next-i+len(r.buf))%len(r.buf)]
		if sessionID != "" && rec.SessionID != sessionID {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len returns the number of records held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Total returns the number of records ever added.
func (r *Ring) Total() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}
