package classifier

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/DTPriya20/click-gait/pkg/models"
)

// ModelFile is the on-disk YAML form of a multinomial logistic model.
// Row i of Weights and Bias[i] score Categories[i]. Mean and Scale, when
// present, standardise features before scoring.
type ModelFile struct {
	Name       string      `yaml:"name"`
	Categories []int       `yaml:"categories"`
	Weights    [][]float64 `yaml:"weights"`
	Bias       []float64   `yaml:"bias"`
	Mean       []float64   `yaml:"mean,omitempty"`
	Scale      []float64   `yaml:"scale,omitempty"`
}

// Model is a loaded softmax classifier.
type Model struct {
	name       string
	categories []int
	weights    *mat.Dense
	bias       *mat.VecDense
	mean       []float64
	scale      []float64
}

// LoadModel reads and validates a YAML model file.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var mf ModelFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	return NewModel(mf)
}

// NewModel builds a Model from its file form.
func NewModel(mf ModelFile) (*Model, error) {
	k := len(mf.Categories)
	if k == 0 {
		return nil, fmt.Errorf("model %q: no categories", mf.Name)
	}
	if len(mf.Weights) != k || len(mf.Bias) != k {
		return nil, fmt.Errorf("model %q: %d categories but %d weight rows and %d biases",
			mf.Name, k, len(mf.Weights), len(mf.Bias))
	}
	d := len(mf.Weights[0])
	if d == 0 {
		return nil, fmt.Errorf("model %q: empty weight rows", mf.Name)
	}
	flat := make([]float64, 0, k*d)
	for i, row := range mf.Weights {
		if len(row) != d {
			return nil, fmt.Errorf("model %q: weight row %d has %d columns, want %d", mf.Name, i, len(row), d)
		}
		flat = append(flat, row...)
	}
	if mf.Mean != nil && len(mf.Mean) != d {
		return nil, fmt.Errorf("model %q: mean has %d entries, want %d", mf.Name, len(mf.Mean), d)
	}
	if mf.Scale != nil {
		if len(mf.Scale) != d {
			return nil, fmt.Errorf("model %q: scale has %d entries, want %d", mf.Name, len(mf.Scale), d)
		}
		for i, s := range mf.Scale {
			if s == 0 {
				return nil, fmt.Errorf("model %q: scale %d is zero", mf.Name, i)
			}
		}
	}

	return &Model{
		name:       mf.Name,
		categories: append([]int(nil), mf.Categories...),
		weights:    mat.NewDense(k, d, flat),
		bias:       mat.NewVecDense(k, append([]float64(nil), mf.Bias...)),
		mean:       mf.Mean,
		scale:      mf.Scale,
	}, nil
}

// Name returns the model name from the file.
func (m *Model) Name() string { return m.name }

// FeatureCount returns the expected feature vector length.
func (m *Model) FeatureCount() int {
	_, d := m.weights.Dims()
	return d
}

// Predict scores features and returns the argmax category with the softmax
// distribution ordered like the model's categories.
func (m *Model) Predict(features []float64) (models.ClassificationResult, error) {
	d := m.FeatureCount()
	if len(features) != d {
		return models.ClassificationResult{}, fmt.Errorf("%w: got %d features, want %d", ErrDimension, len(features), d)
	}

	x := make([]float64, d)
	copy(x, features)
	if m.mean != nil {
		floats.Sub(x, m.mean)
	}
	if m.scale != nil {
		floats.Div(x, m.scale)
	}

	k, _ := m.weights.Dims()
	var z mat.VecDense
	z.MulVec(m.weights, mat.NewVecDense(d, x))
	z.AddVec(&z, m.bias)

	probs := make([]float64, k)
	for i := range probs {
		probs[i] = z.AtVec(i)
	}
	softmax(probs)

	return models.ClassificationResult{
		Category:      m.categories[floats.MaxIdx(probs)],
		Probabilities: probs,
	}, nil
}

// softmax normalises scores in place, shifted by the max for stability.
func softmax(scores []float64) {
	floats.AddConst(-floats.Max(scores), scores)
	for i, s := range scores {
		scores[i] = math.Exp(s)
	}
	floats.Scale(1/floats.Sum(scores), scores)
}
