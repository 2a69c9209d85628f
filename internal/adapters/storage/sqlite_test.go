package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/pricecast/internal/adapters/storage"
	"github.com/alejandrodnm/pricecast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func makeSeries(t *testing.T, from int, closes ...float64) domain.Series {
	t.Helper()
	obs := make([]domain.Observation, len(closes))
	for i, c := range closes {
		obs[i] = domain.Observation{
			Time: t0.Add(time.Duration(from+i) * time.Minute),
			Values: map[domain.Field]float64{
				domain.FieldOpen:   c - 1,
				domain.FieldClose:  c,
				domain.FieldVolume: 500,
			},
		}
	}
	s, err := domain.NewSeries(obs)
	require.NoError(t, err)
	return s
}

func makeReport(id string, started time.Time) domain.RunReport {
	path := func(backend string, v float64) domain.ForecastPath {
		return domain.ForecastPath{Backend: backend, Points: []domain.Point{
			{Time: t0.Add(10 * time.Minute), Value: v},
			{Time: t0.Add(11 * time.Minute), Value: v + 1},
		}}
	}
	results := []domain.BackendResult{
		{Backend: "xgboost", Path: path("xgboost", 100), Scored: true, Evaluation: domain.Evaluation{MAPE: 0.02, RMSE: 2, MAE: 1.5}},
		{Backend: "random_forest", Path: path("random_forest", 101), Scored: true, Evaluation: domain.Evaluation{MAPE: 0.01}},
		{Backend: "catboost", Err: errors.New("fit: training error")},
	}
	return domain.RunReport{
		ID:        id,
		StartedAt: started,
		Cutoff:    t0.Add(9 * time.Minute),
		Steps:     2,
		Spec:      domain.WindowSpec{Size: 5, Fields: []domain.Field{domain.FieldClose}, Target: domain.FieldClose},
		TrainLen:  10,
		Results:   results,
		Ranking:   domain.Rank(results),
	}
}

func TestSQLiteStorage_ImportAndLoadSeries(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	n, err := db.ImportSeries(context.Background(), "600519", makeSeries(t, 0, 10, 11, 12))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	s, err := db.LoadSeries(context.Background(), "600519")
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, t0, s.At(0).Time)
	assert.Equal(t, 12.0, s.Last().Close())

	// Los campos no importados siguen ausentes
	_, ok := s.At(0).Value(domain.FieldHigh)
	assert.False(t, ok)
	v, ok := s.At(0).Value(domain.FieldOpen)
	assert.True(t, ok)
	assert.Equal(t, 9.0, v)
}

func TestSQLiteStorage_ImportIsIncremental(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	_, err = db.ImportSeries(ctx, "BTC", makeSeries(t, 0, 1, 2, 3))
	require.NoError(t, err)

	// Solapa dos filas ya guardadas y añade dos nuevas
	n, err := db.ImportSeries(ctx, "BTC", makeSeries(t, 1, 2, 3, 4, 5))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = db.ImportSeries(ctx, "BTC", makeSeries(t, 0, 1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	s, err := db.LoadSeries(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())
}

func TestSQLiteStorage_LoadUnknownSymbol(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.LoadSeries(context.Background(), "nope")
	assert.Error(t, err)
}

func TestSQLiteStorage_SaveRunAndGetHistory(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, db.SaveRun(ctx, makeReport("run-1", now)))

	history, err := db.GetHistory(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, history, 3)

	// Ordenados por rank; el fallido al final
	assert.Equal(t, "random_forest", history[0].Backend)
	assert.Equal(t, 1, history[0].Rank)
	assert.InDelta(t, 0.01, float64(history[0].Score), 1e-12)
	assert.Equal(t, "xgboost", history[1].Backend)
	assert.Equal(t, 2, history[1].Rank)
	assert.Equal(t, "catboost", history[2].Backend)
	assert.Equal(t, 0, history[2].Rank)
	assert.False(t, history[2].Scored)
	assert.Contains(t, history[2].Err, "training error")
	assert.Equal(t, "run-1", history[0].RunID)
	assert.Equal(t, 2, history[0].Steps)
}

func TestSQLiteStorage_LoadPath(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.SaveRun(ctx, makeReport("run-1", time.Now())))

	path, err := db.LoadPath(ctx, "run-1", "xgboost")
	require.NoError(t, err)
	require.Equal(t, 2, path.Len())
	assert.Equal(t, t0.Add(10*time.Minute), path.Points[0].Time)
	assert.Equal(t, 101.0, path.Last().Value)
}

func TestSQLiteStorage_DuplicateRunIDFails(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.SaveRun(ctx, makeReport("run-1", time.Now())))
	assert.Error(t, db.SaveRun(ctx, makeReport("run-1", time.Now())))
}

func TestSQLiteStorage_GetHistory_EmptyRange(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	// Sin datos
	history, err := db.GetHistory(context.Background(),
		time.Now().Add(-time.Hour),
		time.Now(),
	)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSQLiteStorage_MultipleRunsNewestFirst(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, db.SaveRun(ctx, makeReport("older", now.Add(-10*time.Second))))
	require.NoError(t, db.SaveRun(ctx, makeReport("newer", now)))

	history, err := db.GetHistory(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, history, 6)
	assert.Equal(t, "newer", history[0].RunID)
	assert.Equal(t, "older", history[5].RunID)
}
