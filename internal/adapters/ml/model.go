package ml

import (
	"fmt"

	"github.com/alejandrodnm/pricecast/internal/domain"
)

// predictor es cualquier árbol entrenado.
type predictor interface {
	predict(row []float64) float64
}

// checkTrainingSet valida X/y antes de entrenar y devuelve el número de features.
func checkTrainingSet(backend string, X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, &domain.TrainingError{Backend: backend, Reason: "empty training set"}
	}
	if len(X) != len(y) {
		return 0, &domain.TrainingError{Backend: backend, Reason: fmt.Sprintf("len(X)=%d != len(y)=%d", len(X), len(y))}
	}
	p := len(X[0])
	if p == 0 {
		return 0, &domain.TrainingError{Backend: backend, Reason: "rows have no features"}
	}
	for i, row := range X {
		if len(row) != p {
			return 0, &domain.TrainingError{Backend: backend, Reason: fmt.Sprintf("row %d has %d features, want %d", i, len(row), p)}
		}
	}
	return p, nil
}

// additiveModel es base + rate × Σ árboles (boosting).
type additiveModel struct {
	features int
	base     float64
	rate     float64
	trees    []predictor
}

func (m *additiveModel) NumFeatures() int { return m.features }

func (m *additiveModel) Predict(row []float64) (float64, error) {
	if len(row) != m.features {
		return 0, &domain.ShapeMismatchError{Want: m.features, Got: len(row)}
	}
	out := m.base
	for _, t := range m.trees {
		out += m.rate * t.predict(row)
	}
	return out, nil
}

// averageModel es la media de los árboles (bagging).
type averageModel struct {
	features int
	trees    []predictor
}

func (m *averageModel) NumFeatures() int { return m.features }

func (m *averageModel) Predict(row []float64) (float64, error) {
	if len(row) != m.features {
		return 0, &domain.ShapeMismatchError{Want: m.features, Got: len(row)}
	}
	var sum float64
	for _, t := range m.trees {
		sum += t.predict(row)
	}
	return sum / float64(len(m.trees)), nil
}
