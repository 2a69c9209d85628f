package ml_test

import (
	"context"
	"testing"

	"github.com/alejandrodnm/pricecast/internal/adapters/ml"
	"github.com/alejandrodnm/pricecast/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_Names(t *testing.T) {
	assert.Equal(t,
		[]string{ml.NameCatBoost, ml.NameLightGBM, ml.NameRandomForest, ml.NameXGBoost},
		ml.DefaultRegistry().Names())
}

func TestRegistry_UnknownBackend(t *testing.T) {
	_, err := ml.DefaultRegistry().Build("prophet", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown backend "prophet"`)
}

func TestRegistry_RejectsUnknownParams(t *testing.T) {
	for _, name := range ml.DefaultRegistry().Names() {
		t.Run(name, func(t *testing.T) {
			_, err := ml.DefaultRegistry().Build(name, ml.Params{"not_a_param": 1})
			require.Error(t, err)
			assert.Contains(t, err.Error(), `unknown parameter "not_a_param"`)
		})
	}
}

func TestRegistry_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		backend string
		params  ml.Params
		want    string
	}{
		{ml.NameRandomForest, ml.Params{"n_estimators": 0}, "n_estimators must be positive"},
		{ml.NameRandomForest, ml.Params{"max_features": 1.5}, "max_features"},
		{ml.NameXGBoost, ml.Params{"max_depth": 2.5}, "max_depth must be an integer"},
		{ml.NameXGBoost, ml.Params{"subsample": 0}, "subsample"},
		{ml.NameLightGBM, ml.Params{"num_leaves": 1}, "num_leaves must be >= 2"},
		{ml.NameCatBoost, ml.Params{"depth": 17}, "depth must be in [1, 16]"},
	}
	for _, tc := range cases {
		t.Run(tc.backend+"/"+tc.want, func(t *testing.T) {
			_, err := ml.DefaultRegistry().Build(tc.backend, tc.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

type stubBackend struct{}

func (stubBackend) Name() string { return "stub" }
func (stubBackend) Fit(context.Context, [][]float64, []float64) (ports.Model, error) {
	return nil, nil
}

func TestRegistry_RegisterCustomBackend(t *testing.T) {
	r := ml.NewRegistry()
	r.Register("stub", func(ml.Params) (ports.Backend, error) { return stubBackend{}, nil })

	b, err := r.Build("stub", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", b.Name())
	assert.Equal(t, []string{"stub"}, r.Names())
}
