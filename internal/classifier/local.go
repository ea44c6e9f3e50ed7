package classifier

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/DTPriya20/click-gait/pkg/models"
)

// Local serves predictions from a model file on disk. The model can be
// swapped at runtime with Reload; in-flight calls keep the model they started
// with.
type Local struct {
	path  string
	model atomic.Pointer[Model]
}

// NewLocal loads the model at path.
func NewLocal(path string) (*Local, error) {
	l := NewLocalPending(path)
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// NewLocalPending returns a classifier for path without loading it.
// Classify fails with ErrUnavailable until a Reload succeeds.
func NewLocalPending(path string) *Local {
	return &Local{path: path}
}

// NewLocalFromModel wraps an already built model.
func NewLocalFromModel(m *Model) *Local {
	l := &Local{}
	l.model.Store(m)
	return l
}

// Path returns the model file path, empty for in-memory models.
func (l *Local) Path() string { return l.path }

// Reload re-reads the model file. On failure the previous model stays active.
func (l *Local) Reload() error {
	m, err := LoadModel(l.path)
	if err != nil {
		return err
	}
	l.model.Store(m)
	log.Info().
		Str("path", l.path).
		Str("model", m.Name()).
		Int("features", m.FeatureCount()).
		Msg("Classifier model loaded")
	return nil
}

// Classify implements Classifier.
func (l *Local) Classify(_ context.Context, features []float64) (models.ClassificationResult, error) {
	m := l.model.Load()
	if m == nil {
		return models.ClassificationResult{}, ErrUnavailable
	}
	return m.Predict(features)
}
