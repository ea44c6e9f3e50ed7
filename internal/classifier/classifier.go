// Package classifier adapts movement classifiers to the tracker. A classifier
// maps one feature vector to a category id and a probability per category.
package classifier

import (
	"context"
	"errors"

	"github.com/DTPriya20/click-gait/pkg/models"
)

var (
	// ErrDimension reports a feature vector of the wrong length.
	ErrDimension = errors.New("feature vector has wrong dimensionality")

	// ErrUnavailable reports that no model is loaded or the remote
	// classifier cannot be reached.
	ErrUnavailable = errors.New("classifier unavailable")
)

// Classifier classifies a single feature vector.
type Classifier interface {
	Classify(ctx context.Context, features []float64) (models.ClassificationResult, error)
}
