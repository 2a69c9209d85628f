package csvsource_test

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/pricecast/internal/adapters/csvsource"
	"github.com/alejandrodnm/pricecast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `datetime,open,high,low,close,volume
2023-01-04 09:31,1730.0,1732.5,1729.0,1731.2,12000
2023-01-04 09:32,1731.2,1733.0,1730.1,1732.8,9800
2023-01-04 09:33,1732.8,1734.1,1731.9,1733.5,
`

func TestRead_ParsesFieldsAndTimes(t *testing.T) {
	s, err := csvsource.New("", nil).Read(context.Background(), strings.NewReader(sample))
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	assert.Equal(t, time.Date(2023, 1, 4, 9, 31, 0, 0, time.UTC), s.At(0).Time)
	assert.Equal(t, 1731.2, s.At(0).Close())
	v, ok := s.At(1).Value(domain.FieldVolume)
	assert.True(t, ok)
	assert.Equal(t, 9800.0, v)

	// celda vacía = campo ausente
	_, ok = s.At(2).Value(domain.FieldVolume)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, s.Step())
}

func TestRead_LocationConvertsToUTC(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	s, err := csvsource.New("2006-01-02 15:04", shanghai).Read(context.Background(), strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 4, 1, 31, 0, 0, time.UTC), s.At(0).Time)
}

func TestRead_SortsRows(t *testing.T) {
	in := "time,close\n2024-01-01T00:02:00Z,3\n2024-01-01T00:00:00Z,1\n2024-01-01T00:01:00Z,2\n"
	s, err := csvsource.New("", nil).Read(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	col, err := s.Column(domain.FieldClose)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, col)
}

func TestRead_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"no time column": "open,close\n1,2\n",
		"bad timestamp":  "datetime,close\nyesterday,2\n",
		"bad number":     "datetime,close\n2024-01-01 00:00,abc\n",
		"duplicate ts":   "datetime,close\n2024-01-01 00:00,1\n2024-01-01 00:00,2\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := csvsource.New("", nil).Read(context.Background(), strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestLoadSeries_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "600519.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	s, err := csvsource.New("", nil).LoadSeries(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	_, err = csvsource.New("", nil).LoadSeries(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestExportPaths(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	truth, err := domain.NewSeries([]domain.Observation{
		{Time: t0.Add(time.Minute), Values: map[domain.Field]float64{domain.FieldClose: 10}},
		{Time: t0.Add(2 * time.Minute), Values: map[domain.Field]float64{domain.FieldClose: 11}},
	})
	require.NoError(t, err)

	pts := func(a, b float64) []domain.Point {
		return []domain.Point{{Time: t0.Add(time.Minute), Value: a}, {Time: t0.Add(2 * time.Minute), Value: b}}
	}
	report := domain.RunReport{
		ID:    "run-42",
		Truth: truth,
		Results: []domain.BackendResult{
			{Backend: "xgboost", Path: domain.ForecastPath{Backend: "xgboost", Points: pts(10.5, 10.75)}},
			{Backend: "catboost", Err: errors.New("boom")},
			{Backend: "lightgbm", Path: domain.ForecastPath{Backend: "lightgbm", Points: pts(9, 12)}},
		},
	}

	dir := filepath.Join(t.TempDir(), "out")
	name, err := csvsource.ExportPaths(dir, report, domain.FieldClose)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-42.csv"), name)

	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"datetime", "actual", "xgboost", "lightgbm"},
		{"2024-03-01T15:01:00Z", "10", "10.5", "9"},
		{"2024-03-01T15:02:00Z", "11", "10.75", "12"},
	}, records)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWritePaths_ReportsWriterError(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	report := domain.RunReport{
		ID: "run-7",
		Results: []domain.BackendResult{
			{Backend: "xgboost", Path: domain.ForecastPath{Backend: "xgboost", Points: []domain.Point{{Time: t0, Value: 1}}}},
		},
	}

	err := csvsource.WritePaths(failingWriter{}, report, domain.FieldClose)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	var b strings.Builder
	require.NoError(t, csvsource.WritePaths(&b, report, domain.FieldClose))
	assert.Equal(t, "datetime,xgboost\n2024-03-01T15:00:00Z,1\n", b.String())
}

func TestExportPaths_DirIsAFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "taken")
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0o644))

	name, err := csvsource.ExportPaths(dir, domain.RunReport{ID: "run-1"}, domain.FieldClose)
	assert.Error(t, err)
	assert.Empty(t, name)
}
