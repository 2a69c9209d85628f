package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alejandrodnm/pricecast/config"
	"github.com/alejandrodnm/pricecast/internal/adapters/csvsource"
	"github.com/alejandrodnm/pricecast/internal/adapters/metrics"
	"github.com/alejandrodnm/pricecast/internal/adapters/ml"
	"github.com/alejandrodnm/pricecast/internal/adapters/notify"
	"github.com/alejandrodnm/pricecast/internal/adapters/storage"
	"github.com/alejandrodnm/pricecast/internal/application/orchestrator"
	"github.com/alejandrodnm/pricecast/internal/domain"
	"github.com/alejandrodnm/pricecast/internal/ports"
)

// app agrupa lo necesario para una ejecución; el scheduler la repite.
type app struct {
	cfg         *config.Config
	orch        *orchestrator.Orchestrator
	files       ports.SeriesSource // CSV: la clave es la ruta
	series      ports.SeriesSource // de donde se lee el entrenamiento
	seriesKey   string             // ruta o símbolo según series
	importer    seriesImporter     // nil = no se importa a SQLite
	recorder    *metrics.Recorder
	exportDir   string
	strategy    bool
	targetField domain.Field
}

// seriesImporter acumula observaciones nuevas bajo un símbolo.
type seriesImporter interface {
	ImportSeries(ctx context.Context, symbol string, series domain.Series) (int, error)
}

// newApp elige las fuentes: con storage y symbol el entrenamiento se lee de SQLite
// (importando antes el CSV si hay train_file); si no, directamente del CSV.
func newApp(cfg *config.Config, orch *orchestrator.Orchestrator, store *storage.SQLiteStorage, recorder *metrics.Recorder) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("newApp: %w", err)
	}
	files := csvsource.New(cfg.Data.TimeLayout, loc)

	a := &app{
		cfg:       cfg,
		orch:      orch,
		files:     files,
		series:    files,
		seriesKey: cfg.Data.TrainFile,
		recorder:  recorder,
	}
	if store != nil && cfg.Data.Symbol != "" {
		a.series, a.seriesKey = store, cfg.Data.Symbol
		if cfg.Data.TrainFile != "" {
			a.importer = store
		}
	}
	if a.seriesKey == "" {
		return nil, fmt.Errorf("newApp: need data.train_file or storage.dsn + data.symbol")
	}
	return a, nil
}

// buildBackends instancia los backends configurados; sin lista, todos los registrados.
func buildBackends(cfg *config.Config) ([]ports.Backend, error) {
	reg := ml.DefaultRegistry()

	entries := cfg.Backends
	if len(entries) == 0 {
		for _, name := range reg.Names() {
			entries = append(entries, config.BackendConfig{Name: name})
		}
	}

	backends := make([]ports.Backend, 0, len(entries))
	for _, e := range entries {
		b, err := reg.Build(e.Name, ml.Params(e.Params))
		if err != nil {
			return nil, fmt.Errorf("buildBackends: %w", err)
		}
		backends = append(backends, b)
	}
	return backends, nil
}

func (a *app) runOnce(ctx context.Context) error {
	train, err := a.loadTrain(ctx)
	if err != nil {
		return err
	}

	if a.strategy {
		if _, err := a.orch.DirectBacktest(ctx, train, a.cfg.StrategyOptions()); err != nil {
			return fmt.Errorf("runOnce: strategy: %w", err)
		}
		return a.writeMetrics()
	}

	var report domain.RunReport
	if a.cfg.Data.TruthFile != "" {
		truth, err := a.files.LoadSeries(ctx, a.cfg.Data.TruthFile)
		if err != nil {
			return fmt.Errorf("runOnce: load truth: %w", err)
		}
		report, err = a.orch.RunSeparate(ctx, train, truth)
		if err != nil {
			return fmt.Errorf("runOnce: %w", err)
		}
	} else {
		report, err = a.orch.Run(ctx, train)
		if err != nil {
			return fmt.Errorf("runOnce: %w", err)
		}
	}

	if a.exportDir != "" {
		path, err := csvsource.ExportPaths(a.exportDir, report, a.targetField)
		if err != nil {
			slog.Warn("export failed", "err", err)
		} else {
			slog.Info("forecast paths exported", "file", path)
		}
	}
	return a.writeMetrics()
}

// loadTrain importa el CSV si corresponde y lee la serie de entrenamiento.
func (a *app) loadTrain(ctx context.Context) (domain.Series, error) {
	if a.importer != nil {
		fresh, err := a.files.LoadSeries(ctx, a.cfg.Data.TrainFile)
		if err != nil {
			return domain.Series{}, fmt.Errorf("loadTrain: csv: %w", err)
		}
		n, err := a.importer.ImportSeries(ctx, a.seriesKey, fresh)
		if err != nil {
			return domain.Series{}, fmt.Errorf("loadTrain: import: %w", err)
		}
		slog.Info("observations imported", "symbol", a.seriesKey, "new", n)
	}

	series, err := a.series.LoadSeries(ctx, a.seriesKey)
	if err != nil {
		return domain.Series{}, fmt.Errorf("loadTrain: %w", err)
	}
	return series, nil
}

// pathLoader lee un forecast path guardado.
type pathLoader interface {
	LoadPath(ctx context.Context, runID, backend string) (domain.ForecastPath, error)
}

// printStoredPath resuelve una referencia "run_id:backend" y la imprime.
func printStoredPath(ctx context.Context, store pathLoader, console *notify.Console, ref string) error {
	runID, backend, ok := strings.Cut(ref, ":")
	if !ok || runID == "" || backend == "" {
		return fmt.Errorf("printStoredPath: want run_id:backend, got %q", ref)
	}
	path, err := store.LoadPath(ctx, runID, backend)
	if err != nil {
		return fmt.Errorf("printStoredPath: %w", err)
	}
	console.PrintPath(runID, path)
	return nil
}

func (a *app) writeMetrics() error {
	if a.cfg.Metrics.Textfile == "" {
		return nil
	}
	if err := a.recorder.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		return fmt.Errorf("writeMetrics: %w", err)
	}
	return nil
}
