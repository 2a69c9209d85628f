package storage

// sqlite.go: series de precios e histórico de runs en un único archivo.
//
// Estrategia:
//   - `observations`: una fila por (symbol, ts). Los campos ausentes quedan NULL.
//     La importación es incremental: solo se escriben filas posteriores a la
//     última ya guardada para el símbolo (cache en memoria, precargada al abrir).
//   - `runs`: resumen por run. `results`: una fila por backend. `paths`: un
//     punto por paso del forecast.
//   - Prune automático al arrancar: runs de más de 90 días con sus resultados.
//   - Los timestamps se guardan como unix nanos (INTEGER) para ordenar y filtrar
//     sin depender del formato de texto del driver.

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/pricecast/internal/domain"
	"github.com/alejandrodnm/pricecast/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
-- Serie de precios por símbolo
CREATE TABLE IF NOT EXISTS observations (
    symbol TEXT    NOT NULL,
    ts     INTEGER NOT NULL,
    open   REAL,
    high   REAL,
    low    REAL,
    close  REAL,
    volume REAL,
    PRIMARY KEY (symbol, ts)
);

-- Resumen por run del orquestador
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    started_at  INTEGER NOT NULL,
    cutoff      INTEGER NOT NULL,
    steps       INTEGER NOT NULL,
    window_size INTEGER NOT NULL,
    fields      TEXT    NOT NULL,
    target      TEXT    NOT NULL,
    train_len   INTEGER NOT NULL,
    truth_len   INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0
);

-- Un resultado por backend y run
CREATE TABLE IF NOT EXISTS results (
    run_id      TEXT    NOT NULL,
    backend     TEXT    NOT NULL,
    scored      INTEGER NOT NULL DEFAULT 0,
    mape        REAL    NOT NULL DEFAULT 0,
    rmse        REAL    NOT NULL DEFAULT 0,
    mae         REAL    NOT NULL DEFAULT 0,
    rank        INTEGER NOT NULL DEFAULT 0,
    err         TEXT    NOT NULL DEFAULT '',
    fit_ms      INTEGER NOT NULL DEFAULT 0,
    forecast_ms INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, backend)
);

-- Forecast paths, un punto por paso
CREATE TABLE IF NOT EXISTS paths (
    run_id  TEXT    NOT NULL,
    backend TEXT    NOT NULL,
    step    INTEGER NOT NULL,
    ts      INTEGER NOT NULL,
    value   REAL    NOT NULL,
    PRIMARY KEY (run_id, backend, step)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_run  ON results(run_id);
`

const retentionRuns = 90 * 24 * time.Hour

// columns mapea cada campo de la serie a su columna.
var columns = []domain.Field{
	domain.FieldOpen,
	domain.FieldHigh,
	domain.FieldLow,
	domain.FieldClose,
	domain.FieldVolume,
}

// SQLiteStorage implementa ports.RunStorage y ports.SeriesSource usando SQLite
// (pure Go, sin CGo).
type SQLiteStorage struct {
	db       *sql.DB
	lastSeen map[string]int64 // symbol → último ts importado
	mu       sync.Mutex
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema, limpia runs antiguos y precarga la cache.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{
		db:       db,
		lastSeen: make(map[string]int64),
	}
	s.pruneOld(context.Background())
	s.warmCache(context.Background())
	return s, nil
}

// ImportSeries guarda las observaciones posteriores a la última importada para
// el símbolo. Devuelve cuántas filas se escribieron.
func (s *SQLiteStorage) ImportSeries(ctx context.Context, symbol string, series domain.Series) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, known := s.lastSeen[symbol]
	var toWrite []domain.Observation
	for _, o := range series.Observations() {
		if known && o.Time.UnixNano() <= last {
			continue
		}
		toWrite = append(toWrite, o)
	}
	if len(toWrite) == 0 {
		return 0, nil // nada nuevo
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage.ImportSeries: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, ts) DO UPDATE SET
			open   = excluded.open,
			high   = excluded.high,
			low    = excluded.low,
			close  = excluded.close,
			volume = excluded.volume
	`)
	if err != nil {
		return 0, fmt.Errorf("storage.ImportSeries: prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range toWrite {
		args := []any{symbol, o.Time.UnixNano()}
		for _, f := range columns {
			args = append(args, nullable(o, f))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("storage.ImportSeries: upsert %s@%s: %w", symbol, o.Time.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage.ImportSeries: commit: %w", err)
	}
	s.lastSeen[symbol] = toWrite[len(toWrite)-1].Time.UnixNano()
	return len(toWrite), nil
}

// LoadSeries implementa ports.SeriesSource: devuelve la serie completa del símbolo.
func (s *SQLiteStorage) LoadSeries(ctx context.Context, symbol string) (domain.Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM observations
		WHERE symbol = ?
		ORDER BY ts ASC
	`, symbol)
	if err != nil {
		return domain.Series{}, fmt.Errorf("storage.LoadSeries: query: %w", err)
	}
	defer rows.Close()

	var obs []domain.Observation
	for rows.Next() {
		var ts int64
		vals := make([]sql.NullFloat64, len(columns))
		dest := []any{&ts}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return domain.Series{}, fmt.Errorf("storage.LoadSeries: scan row: %w", err)
		}

		o := domain.Observation{
			Time:   time.Unix(0, ts).UTC(),
			Values: make(map[domain.Field]float64, len(columns)),
		}
		for i, f := range columns {
			if vals[i].Valid {
				o.Values[f] = vals[i].Float64
			}
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return domain.Series{}, fmt.Errorf("storage.LoadSeries: rows: %w", err)
	}
	if len(obs) == 0 {
		return domain.Series{}, fmt.Errorf("storage.LoadSeries: no observations for symbol %q", symbol)
	}
	return domain.NewSeries(obs)
}

// SaveRun persiste el resumen del run, un resultado por backend y los forecast paths.
func (s *SQLiteStorage) SaveRun(ctx context.Context, report domain.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	fields := make([]string, len(report.Spec.Fields))
	for i, f := range report.Spec.Fields {
		fields[i] = string(f)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, cutoff, steps, window_size, fields, target, train_len, truth_len, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.StartedAt.UnixNano(),
		report.Cutoff.UnixNano(),
		report.Steps,
		report.Spec.Size,
		strings.Join(fields, ","),
		string(report.Spec.Target),
		report.TrainLen,
		report.Truth.Len(),
		report.Duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}

	ranks := make(map[string]int, len(report.Ranking))
	for i, r := range report.Ranking {
		ranks[r.Backend] = i + 1
	}

	resStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (run_id, backend, scored, mape, rmse, mae, rank, err, fit_ms, forecast_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare results: %w", err)
	}
	defer resStmt.Close()

	pathStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO paths (run_id, backend, step, ts, value) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare paths: %w", err)
	}
	defer pathStmt.Close()

	for _, r := range report.Results {
		scored := 0
		if r.Scored {
			scored = 1
		}
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		if _, err := resStmt.ExecContext(ctx,
			report.ID, r.Backend, scored,
			float64(r.Evaluation.MAPE), r.Evaluation.RMSE, r.Evaluation.MAE,
			ranks[r.Backend], errText,
			r.FitDuration.Milliseconds(), r.ForecastDuration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert result %s: %w", r.Backend, err)
		}

		for i, p := range r.Path.Points {
			if _, err := pathStmt.ExecContext(ctx, report.ID, r.Backend, i+1, p.Time.UnixNano(), p.Value); err != nil {
				return fmt.Errorf("storage.SaveRun: insert path %s step %d: %w", r.Backend, i+1, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// GetHistory devuelve los resultados de los runs iniciados en el rango dado.
// Runs más recientes primero; dentro de un run, por rank (los no rankeados al final).
func (s *SQLiteStorage) GetHistory(ctx context.Context, from, to time.Time) ([]ports.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.steps, res.backend, res.scored, res.mape, res.rank, res.err
		FROM runs r
		JOIN results res ON res.run_id = r.id
		WHERE r.started_at BETWEEN ? AND ?
		ORDER BY r.started_at DESC, res.rank = 0, res.rank ASC, res.backend ASC
	`, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("storage.GetHistory: query: %w", err)
	}
	defer rows.Close()

	var out []ports.RunSummary
	for rows.Next() {
		var rs ports.RunSummary
		var started int64
		var scored int
		var mape float64
		if err := rows.Scan(&rs.RunID, &started, &rs.Steps, &rs.Backend, &scored, &mape, &rs.Rank, &rs.Err); err != nil {
			return nil, fmt.Errorf("storage.GetHistory: scan row: %w", err)
		}
		rs.StartedAt = time.Unix(0, started).UTC()
		rs.Scored = scored == 1
		rs.Score = domain.Score(mape)
		out = append(out, rs)
	}
	return out, rows.Err()
}

// LoadPath devuelve el forecast path guardado de un backend en un run.
func (s *SQLiteStorage) LoadPath(ctx context.Context, runID, backend string) (domain.ForecastPath, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, value FROM paths WHERE run_id = ? AND backend = ? ORDER BY step ASC`,
		runID, backend,
	)
	if err != nil {
		return domain.ForecastPath{}, fmt.Errorf("storage.LoadPath: query: %w", err)
	}
	defer rows.Close()

	path := domain.ForecastPath{Backend: backend}
	for rows.Next() {
		var ts int64
		var p domain.Point
		if err := rows.Scan(&ts, &p.Value); err != nil {
			return domain.ForecastPath{}, fmt.Errorf("storage.LoadPath: scan row: %w", err)
		}
		p.Time = time.Unix(0, ts).UTC()
		path.Points = append(path.Points, p)
	}
	return path, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func nullable(o domain.Observation, f domain.Field) sql.NullFloat64 {
	v, ok := o.Value(f)
	return sql.NullFloat64{Float64: v, Valid: ok}
}

// pruneOld elimina runs antiguos (y sus resultados y paths) para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().Add(-retentionRuns).UnixNano()
	old := `SELECT id FROM runs WHERE started_at < ?`
	s.db.ExecContext(ctx, `DELETE FROM paths WHERE run_id IN (`+old+`)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM results WHERE run_id IN (`+old+`)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
}

// warmCache precarga el último ts por símbolo, evitando reescribir la serie
// completa en la primera importación tras un reinicio.
func (s *SQLiteStorage) warmCache(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, MAX(ts) FROM observations GROUP BY symbol`)
	if err != nil {
		return
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var symbol string
		var ts int64
		if rows.Scan(&symbol, &ts) == nil {
			s.lastSeen[symbol] = ts
		}
	}
}
