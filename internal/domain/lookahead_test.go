package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLookaheadSet_TargetAndCurrent(t *testing.T) {
	s := minuteSeries(t, ramp(10, 1)...)
	ls, err := BuildLookaheadSet(s, closeSpec(3), 3)
	require.NoError(t, err)

	// lags [0..2] con compra en 3 ... lags [3..5] con compra en 6: el target de la última es la fila 9
	require.Equal(t, 4, ls.Len())
	assert.Equal(t, []float64{1, 2, 3}, ls.X[0])
	assert.Equal(t, 4.0, ls.Current[0])
	assert.Equal(t, 7.0, ls.Y[0])
	assert.Equal(t, 10.0, ls.Y[3])
	assert.Equal(t, t0.Add(3*time.Minute), ls.Times[0])
}

func TestBuildLookaheadSet_CurrentCloseIsNotAFeature(t *testing.T) {
	s := minuteSeries(t, ramp(12, 50)...)
	spec := WindowSpec{Size: 4, Fields: []Field{FieldClose, FieldVolume}, Target: FieldClose}

	ls, err := BuildLookaheadSet(s, spec, 1)
	require.NoError(t, err)
	ts, err := BuildTrainingSet(s, spec)
	require.NoError(t, err)

	// misma ventana que el training set recursivo, pero el target de éste es la compra
	require.Equal(t, ts.Len()-1, ls.Len())
	for i := 0; i < ls.Len(); i++ {
		assert.Equal(t, ts.X[i], ls.X[i])
		assert.Equal(t, ts.Y[i], ls.Current[i])
		assert.Equal(t, ts.Y[i+1], ls.Y[i])
		assert.NotContains(t, ls.X[i], ls.Current[i])
	}
}

func TestBuildLookaheadSet_Errors(t *testing.T) {
	s := minuteSeries(t, ramp(5, 1)...)

	_, err := BuildLookaheadSet(s, closeSpec(3), 0)
	var ice *InvalidConfigError
	assert.True(t, errors.As(err, &ice))

	_, err = BuildLookaheadSet(s, closeSpec(3), 3)
	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 7, ide.Need)
}

func TestLookaheadSet_SplitAt(t *testing.T) {
	s := minuteSeries(t, ramp(20, 1)...)
	ls, err := BuildLookaheadSet(s, closeSpec(2), 1)
	require.NoError(t, err)

	train, test := ls.SplitAt(14)
	assert.Equal(t, 14, train.Len())
	assert.Equal(t, ls.Len()-14, test.Len())
	assert.Equal(t, ls.Y[14], test.Y[0])
	assert.Equal(t, ls.Current[14], test.Current[0])
	assert.Equal(t, 1, test.Lookahead)
}
