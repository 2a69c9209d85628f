package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closeSpec(size int) WindowSpec {
	return WindowSpec{Size: size, Fields: []Field{FieldClose}, Target: FieldClose}
}

func TestBuildTrainingSet_Shape(t *testing.T) {
	spec := WindowSpec{Size: 4, Fields: []Field{FieldOpen, FieldClose, FieldVolume}, Target: FieldClose}
	s := minuteSeries(t, ramp(20, 100)...)

	ts, err := BuildTrainingSet(s, spec)
	require.NoError(t, err)

	assert.Equal(t, 16, ts.Len())
	require.Len(t, ts.X, 16)
	for _, row := range ts.X {
		assert.Len(t, row, 12)
	}
}

func TestBuildTrainingSet_FlattenOrderAndTarget(t *testing.T) {
	spec := WindowSpec{Size: 2, Fields: []Field{FieldOpen, FieldClose}, Target: FieldClose}
	s := minuteSeries(t, 10, 20, 30, 40)

	ts, err := BuildTrainingSet(s, spec)
	require.NoError(t, err)

	// (tiempo, campo): open0, close0, open1, close1
	assert.Equal(t, []float64{9.5, 10, 19.5, 20}, ts.X[0])
	assert.Equal(t, []float64{30, 40}, ts.Y)
}

func TestBuildTrainingSet_ExactlyOneExample(t *testing.T) {
	s := minuteSeries(t, ramp(11, 1)...)
	ts, err := BuildTrainingSet(s, closeSpec(10))
	require.NoError(t, err)
	assert.Equal(t, 1, ts.Len())
	assert.Equal(t, 11.0, ts.Y[0])
}

func TestBuildTrainingSet_InsufficientData(t *testing.T) {
	s := minuteSeries(t, ramp(10, 1)...)
	_, err := BuildTrainingSet(s, closeSpec(10))

	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 10, ide.Have)
	assert.Equal(t, 11, ide.Need)
}

func TestBuildTrainingSet_MissingField(t *testing.T) {
	obs := make([]Observation, 5)
	for i := range obs {
		obs[i] = Observation{
			Time:   t0.Add(time.Duration(i) * time.Minute),
			Values: map[Field]float64{FieldClose: float64(i), FieldVolume: 1},
		}
	}
	delete(obs[3].Values, FieldVolume)
	s, err := NewSeries(obs)
	require.NoError(t, err)

	spec := WindowSpec{Size: 2, Fields: []Field{FieldClose, FieldVolume}, Target: FieldClose}
	_, err = BuildTrainingSet(s, spec)

	var mf *MissingFieldError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, FieldVolume, mf.Field)
	assert.Equal(t, 3, mf.Index)
}

func TestWindowSpec_Validate(t *testing.T) {
	cases := map[string]struct {
		spec   WindowSpec
		option string
	}{
		"zero size":        {WindowSpec{Size: 0, Fields: []Field{FieldClose}, Target: FieldClose}, "window_size"},
		"negative size":    {WindowSpec{Size: -3, Fields: []Field{FieldClose}, Target: FieldClose}, "window_size"},
		"no fields":        {WindowSpec{Size: 3, Target: FieldClose}, "feature_fields"},
		"duplicate fields": {WindowSpec{Size: 3, Fields: []Field{FieldClose, FieldClose}, Target: FieldClose}, "feature_fields"},
		"target not field": {WindowSpec{Size: 3, Fields: []Field{FieldOpen}, Target: FieldClose}, "target_field"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.spec.Validate()
			var ice *InvalidConfigError
			require.True(t, errors.As(err, &ice))
			assert.Equal(t, tc.option, ice.Option)
		})
	}
}

func TestBuildTrainingSet_ZeroWindowIsConfigError(t *testing.T) {
	s := minuteSeries(t, ramp(5, 1)...)
	_, err := BuildTrainingSet(s, closeSpec(0))
	var ice *InvalidConfigError
	assert.True(t, errors.As(err, &ice))
}

func TestSeedWindow_LastRows(t *testing.T) {
	s := minuteSeries(t, ramp(8, 1)...)
	rows, err := SeedWindow(s, closeSpec(3))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{6}, {7}, {8}}, rows)
}

func TestSeedWindow_TooShort(t *testing.T) {
	s := minuteSeries(t, 1, 2)
	_, err := SeedWindow(s, closeSpec(3))
	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 3, ide.Need)
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, []float64{1, 2, 3, 4}, Flatten([][]float64{{1, 2}, {3, 4}}))
	assert.Nil(t, Flatten(nil))
}
