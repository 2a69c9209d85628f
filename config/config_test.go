package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/pricecast/config"
	"github.com/alejandrodnm/pricecast/internal/domain"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte("data:\n  train_file: prices.csv\n"))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Run.WindowSize)
	assert.Equal(t, "close", cfg.Run.TargetField)
	assert.Equal(t, []string{"close"}, cfg.Run.FeatureFields)
	assert.Equal(t, "2006-01-02 15:04:05", cfg.Data.TimeLayout)
	assert.Equal(t, "UTC", cfg.Data.Timezone)
	assert.Equal(t, 1, cfg.Strategy.Lookahead)
	assert.Equal(t, 100.0, cfg.Strategy.Stake)
	assert.Equal(t, 0.8, cfg.Strategy.TrainFrac)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Backends)
}

func TestParse_FullRunOptions(t *testing.T) {
	yml := `
data:
  time_layout: "2006-01-02 15:04:05"
  timezone: Asia/Shanghai
run:
  window_size: 5
  feature_fields: [close, volume]
  target_field: close
  train_cutoff: "2024-03-01 15:00:00"
  truth_until: "2024-03-01 15:30:00"
  horizon: 10
  step: 1m
  workers: 3
  carry_fields: [volume]
  checkpoint_every: 20
backends:
  - name: xgboost
    params: {n_estimators: 50, learning_rate: 0.1}
`
	cfg, err := config.Parse([]byte(yml))
	require.NoError(t, err)

	opts, err := cfg.RunOptions()
	require.NoError(t, err)

	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	assert.Equal(t, 5, opts.Spec.Size)
	assert.Equal(t, []domain.Field{domain.FieldClose, domain.FieldVolume}, opts.Spec.Fields)
	assert.Equal(t, domain.FieldClose, opts.Spec.Target)
	assert.True(t, opts.Cutoff.Equal(time.Date(2024, 3, 1, 15, 0, 0, 0, loc)))
	assert.True(t, opts.TruthUntil.Equal(time.Date(2024, 3, 1, 15, 30, 0, 0, loc)))
	assert.True(t, opts.ForecastUntil.IsZero())
	assert.Equal(t, 10, opts.Horizon)
	assert.Equal(t, time.Minute, opts.Step)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, 20, opts.CheckpointEvery)
	assert.Equal(t, []domain.Field{domain.FieldVolume}, opts.Synthesis.Carry)

	require.Len(t, cfg.Backends, 1)
	assert.Equal(t, 0.1, cfg.Backends[0].Params["learning_rate"])
	assert.Equal(t, 50.0, cfg.Backends[0].Params["n_estimators"])
}

func TestParse_ValidationErrors(t *testing.T) {
	cases := map[string]struct {
		yml  string
		want string
	}{
		"bad log level":   {yml: "log: {level: loud}", want: "Level must be one of"},
		"bad log format":  {yml: "log: {format: xml}", want: "Format must be one of"},
		"negative window": {yml: "run: {window_size: -2}", want: "WindowSize"},
		"train frac >= 1": {yml: "strategy: {train_frac: 1.5}", want: "TrainFrac"},
		"backend no name": {yml: "backends: [{params: {seed: 1}}]", want: "Name is required"},
		"bad timezone":    {yml: "data: {timezone: Mars/Olympus}", want: "timezone"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.yml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRunOptions_InvalidValues(t *testing.T) {
	cases := map[string]struct {
		yml    string
		option string
	}{
		"target not in features": {yml: "run: {feature_fields: [volume], target_field: close}", option: "target_field"},
		"bad cutoff":             {yml: "run: {train_cutoff: yesterday}", option: "train_cutoff"},
		"bad step":               {yml: "run: {step: fast}", option: "step"},
		"negative step":          {yml: "run: {step: -1m}", option: "step"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := config.Parse([]byte(tc.yml))
			require.NoError(t, err)

			_, err = cfg.RunOptions()
			var ice *domain.InvalidConfigError
			require.True(t, errors.As(err, &ice), "got %v", err)
			assert.Equal(t, tc.option, ice.Option)
		})
	}
}

func TestRunOptions_RFC3339Fallback(t *testing.T) {
	cfg, err := config.Parse([]byte(`run: {forecast_until: "2024-03-01T16:00:00Z"}`))
	require.NoError(t, err)

	opts, err := cfg.RunOptions()
	require.NoError(t, err)
	assert.True(t, opts.ForecastUntil.Equal(time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)))
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("FORECASTER_DSN", ":memory:")
	t.Setenv("FORECASTER_BACKENDS", "lightgbm, xgboost")

	yml := `
backends:
  - name: xgboost
    params: {max_depth: 3}
  - name: catboost
storage: {dsn: file.db}
`
	cfg, err := config.Parse([]byte(yml))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, []string{"lightgbm", "xgboost"}, cfg.BackendNames())
	// los params del YAML se conservan para los backends seleccionados
	assert.Equal(t, 3.0, cfg.Backends[1].Params["max_depth"])
	assert.Nil(t, cfg.Backends[0].Params)
}

func TestStrategyOptions(t *testing.T) {
	cfg, err := config.Parse([]byte("strategy: {lookahead: 5, stake: 250}"))
	require.NoError(t, err)

	sc := cfg.StrategyOptions()
	assert.Equal(t, 5, sc.Lookahead)
	assert.Equal(t, 250.0, sc.Stake)
	assert.Equal(t, 0.8, sc.TrainFrac)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run: {window_size: 7}\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Run.WindowSize)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := config.Load("config.yaml")
	require.NoError(t, err)

	_, err = cfg.RunOptions()
	require.NoError(t, err)
	assert.Len(t, cfg.Backends, 4)
}
