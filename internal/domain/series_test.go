package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// minuteSeries crea una serie de un minuto con close = closes[i] y el resto de
// campos derivados del close.
func minuteSeries(t *testing.T, closes ...float64) Series {
	t.Helper()
	obs := make([]Observation, len(closes))
	for i, c := range closes {
		obs[i] = Observation{
			Time: t0.Add(time.Duration(i) * time.Minute),
			Values: map[Field]float64{
				FieldOpen:   c - 0.5,
				FieldHigh:   c + 1,
				FieldLow:    c - 1,
				FieldClose:  c,
				FieldVolume: 1000 + float64(i),
			},
		}
	}
	s, err := NewSeries(obs)
	require.NoError(t, err)
	return s
}

func ramp(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func TestNewSeries_RejectsUnorderedTimestamps(t *testing.T) {
	obs := []Observation{
		{Time: t0.Add(time.Minute), Values: map[Field]float64{FieldClose: 1}},
		{Time: t0, Values: map[Field]float64{FieldClose: 2}},
	}
	_, err := NewSeries(obs)
	assert.Error(t, err)
}

func TestNewSeries_RejectsDuplicateTimestamps(t *testing.T) {
	obs := []Observation{
		{Time: t0, Values: map[Field]float64{FieldClose: 1}},
		{Time: t0, Values: map[Field]float64{FieldClose: 2}},
	}
	_, err := NewSeries(obs)
	assert.Error(t, err)
}

func TestNewSeries_CopiesInput(t *testing.T) {
	obs := []Observation{{Time: t0, Values: map[Field]float64{FieldClose: 1}}}
	s, err := NewSeries(obs)
	require.NoError(t, err)

	obs[0].Time = t0.Add(time.Hour)
	assert.Equal(t, t0, s.At(0).Time)
}

func TestSeries_BeforeAfterPartitionAtCutoff(t *testing.T) {
	s := minuteSeries(t, ramp(10, 100)...)
	cutoff := t0.Add(6 * time.Minute)

	before := s.Before(cutoff)
	after := s.After(cutoff)

	assert.Equal(t, 7, before.Len())
	assert.Equal(t, 3, after.Len())
	assert.Equal(t, cutoff, before.Last().Time)
	assert.True(t, after.At(0).Time.After(cutoff))
	assert.Equal(t, s.Len(), before.Len()+after.Len())
}

func TestSeries_ColumnMissingField(t *testing.T) {
	obs := []Observation{
		{Time: t0, Values: map[Field]float64{FieldClose: 1, FieldVolume: 5}},
		{Time: t0.Add(time.Minute), Values: map[Field]float64{FieldClose: 2}},
	}
	s, err := NewSeries(obs)
	require.NoError(t, err)

	_, err = s.Column(FieldVolume)
	var mf *MissingFieldError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, FieldVolume, mf.Field)
	assert.Equal(t, 1, mf.Index)
}

func TestSeries_Step(t *testing.T) {
	assert.Equal(t, time.Minute, minuteSeries(t, 1, 2, 3).Step())
	assert.Equal(t, time.Duration(0), minuteSeries(t, 1).Step())
}
