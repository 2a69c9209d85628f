package domain

import (
	"fmt"
	"time"
)

// LookaheadSet es un training set para predicción directa (sin recursión).
// La ventana son los Size lags anteriores a la fila de compra t, que queda fuera
// de X; Current es el target en t (precio de compra) e Y el target en t+lookahead.
type LookaheadSet struct {
	TrainingSet
	Current   []float64
	Times     []time.Time // timestamp de la fila de compra
	Lookahead int
}

// BuildLookaheadSet construye ventanas con stride 1 y target a lookahead pasos
// de la fila de compra.
func BuildLookaheadSet(s Series, spec WindowSpec, lookahead int) (LookaheadSet, error) {
	if lookahead <= 0 {
		return LookaheadSet{}, &InvalidConfigError{Option: "lookahead", Reason: fmt.Sprintf("must be positive, got %d", lookahead)}
	}
	if err := spec.Validate(); err != nil {
		return LookaheadSet{}, err
	}
	if s.Len() < spec.Size+lookahead+1 {
		return LookaheadSet{}, &InsufficientDataError{Have: s.Len(), Need: spec.Size + lookahead + 1}
	}

	matrix, target, err := extract(s, spec)
	if err != nil {
		return LookaheadSet{}, err
	}

	n := len(matrix) - spec.Size - lookahead
	ls := LookaheadSet{
		TrainingSet: TrainingSet{
			X:    make([][]float64, n),
			Y:    make([]float64, n),
			Spec: spec,
		},
		Current:   make([]float64, n),
		Times:     make([]time.Time, n),
		Lookahead: lookahead,
	}
	for i := 0; i < n; i++ {
		t := i + spec.Size
		ls.X[i] = Flatten(matrix[i:t])
		ls.Y[i] = target[t+lookahead]
		ls.Current[i] = target[t]
		ls.Times[i] = s.At(t).Time
	}
	return ls, nil
}

// SplitAt parte el set cronológicamente: [0, k) entrenamiento, [k, n) test.
func (l LookaheadSet) SplitAt(k int) (train, test LookaheadSet) {
	part := func(lo, hi int) LookaheadSet {
		return LookaheadSet{
			TrainingSet: TrainingSet{X: l.X[lo:hi], Y: l.Y[lo:hi], Spec: l.Spec},
			Current:     l.Current[lo:hi],
			Times:       l.Times[lo:hi],
			Lookahead:   l.Lookahead,
		}
	}
	return part(0, k), part(k, len(l.Y))
}
