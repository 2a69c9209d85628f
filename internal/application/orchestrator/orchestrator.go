// Package orchestrator conduce un run de forecasting: corta la serie, arma el
// training set compartido, entrena y hace el rollout de cada backend, evalúa
// contra el truth reservado y entrega el ranking a los reportes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/pricecast/internal/application/forecast"
	"github.com/alejandrodnm/pricecast/internal/domain"
	"github.com/alejandrodnm/pricecast/internal/ports"
)

// Config contiene la configuración de un run.
type Config struct {
	Spec domain.WindowSpec

	// Cutoff separa entrenamiento (<= Cutoff) de ground truth (> Cutoff).
	// Zero = entrenar con toda la serie, sin evaluación.
	Cutoff     time.Time
	TruthUntil time.Time // zero = sin límite superior para el truth

	// Horizonte cuando no hay ground truth: Horizon pasos o hasta ForecastUntil.
	Horizon       int
	ForecastUntil time.Time

	Step            time.Duration // zero = paso de las dos últimas observaciones
	Synthesis       domain.SynthesisPolicy
	Workers         int // goroutines para backends (0 = NumCPU)
	CheckpointEvery int
}

// Orchestrator coordina backends, forecaster, evaluador y sinks.
type Orchestrator struct {
	cfg      Config
	backends []ports.Backend
	reporter ports.Reporter
	storage  ports.RunStorage // opcional
	metrics  ports.Metrics    // opcional
	now      func() time.Time
}

// New crea un Orchestrator con todas las dependencias inyectadas.
// storage y metrics pueden ser nil.
func New(
	cfg Config,
	backends []ports.Backend,
	reporter ports.Reporter,
	storage ports.RunStorage,
	metrics ports.Metrics,
) *Orchestrator {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Orchestrator{
		cfg:      cfg,
		backends: backends,
		reporter: reporter,
		storage:  storage,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Split parte la serie en entrenamiento (<= cutoff) y truth (> cutoff, <= truthUntil).
// Con cutoff zero todo es entrenamiento.
func Split(series domain.Series, cutoff, truthUntil time.Time) (train, truth domain.Series) {
	if cutoff.IsZero() {
		return series, domain.Series{}
	}
	train = series.Before(cutoff)
	truth = series.After(cutoff)
	if !truthUntil.IsZero() {
		truth = truth.Before(truthUntil)
	}
	return train, truth
}

// Run parte la serie según la configuración y ejecuta el run.
func (o *Orchestrator) Run(ctx context.Context, series domain.Series) (domain.RunReport, error) {
	train, truth := Split(series, o.cfg.Cutoff, o.cfg.TruthUntil)
	return o.RunWithTruth(ctx, train, truth)
}

// RunSeparate ejecuta un run con entrenamiento y ground truth de fuentes distintas
// (p.ej. el archivo de la mañana y el de la sesión completa). Con Cutoff configurado
// aplica el mismo corte a ambas: entrenamiento <= Cutoff, truth > Cutoff y <= TruthUntil.
func (o *Orchestrator) RunSeparate(ctx context.Context, train, truth domain.Series) (domain.RunReport, error) {
	if !o.cfg.Cutoff.IsZero() {
		train, _ = Split(train, o.cfg.Cutoff, time.Time{})
	}
	if train.Len() > 0 {
		_, truth = Split(truth, train.Last().Time, o.cfg.TruthUntil)
	}
	return o.RunWithTruth(ctx, train, truth)
}

// RunWithTruth ejecuta un run con un truth ya separado (por ejemplo un segundo archivo).
// Los errores de nivel run (ventana, horizonte) abortan; los de un backend quedan
// en su BackendResult y no afectan a los demás.
func (o *Orchestrator) RunWithTruth(ctx context.Context, train, truth domain.Series) (domain.RunReport, error) {
	started := o.now()
	spec := o.cfg.Spec

	ts, err := domain.BuildTrainingSet(train, spec)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("orchestrator.Run: build training set: %w", err)
	}
	seed, err := domain.SeedWindow(train, spec)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("orchestrator.Run: seed window: %w", err)
	}
	if len(o.backends) == 0 {
		return domain.RunReport{}, &domain.InvalidConfigError{Option: "backends", Reason: "no backend configured"}
	}

	fc, err := o.forecaster(train, truth)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("orchestrator.Run: %w", err)
	}
	cutoff := train.Last().Time

	slog.Info("run starting",
		"backends", len(o.backends),
		"train_len", train.Len(),
		"examples", ts.Len(),
		"truth_len", truth.Len(),
		"steps", fc.Steps(cutoff),
	)

	results := runConcurrent(ctx, len(o.backends), o.cfg.Workers, func(ctx context.Context, i int) domain.BackendResult {
		return o.runBackend(ctx, o.backends[i], ts, fc, seed, cutoff, truth)
	})

	report := domain.RunReport{
		ID:        uuid.NewString(),
		StartedAt: started,
		Duration:  o.now().Sub(started),
		Cutoff:    cutoff,
		Steps:     fc.Steps(cutoff),
		Spec:      spec,
		TrainLen:  train.Len(),
		Truth:     truth,
		Results:   results,
		Ranking:   domain.Rank(results),
	}

	if err := o.reporter.Report(ctx, report); err != nil {
		slog.Warn("reporter error", "err", err)
	}
	if o.storage != nil {
		if err := o.storage.SaveRun(ctx, report); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}

	attrs := []any{
		"run_id", report.ID,
		"ranked", len(report.Ranking),
		"failed", len(domain.Failures(results)),
		"duration", report.Duration.Round(time.Millisecond),
	}
	if best, ok := report.Best(); ok {
		attrs = append(attrs, "best", best.Backend, "mape", fmt.Sprintf("%.6f", best.Score()))
	}
	slog.Info("run complete", attrs...)
	return report, nil
}

// forecaster resuelve el horizonte: el largo del truth si lo hay, si no Horizon,
// si no ForecastUntil.
func (o *Orchestrator) forecaster(train, truth domain.Series) (*forecast.Forecaster, error) {
	step := o.cfg.Step
	if step == 0 {
		step = train.Step()
	}
	if step <= 0 {
		return nil, &domain.InvalidConfigError{Option: "step", Reason: "not configured and the series has fewer than two observations"}
	}

	var h forecast.Horizon
	switch {
	case truth.Len() > 0:
		h.Steps = truth.Len()
	case o.cfg.Horizon > 0:
		h.Steps = o.cfg.Horizon
	case !o.cfg.ForecastUntil.IsZero():
		h.Until = o.cfg.ForecastUntil
	default:
		return nil, &domain.InvalidConfigError{Option: "horizon", Reason: "no ground truth, horizon or forecast_until"}
	}

	return forecast.New(forecast.Options{
		Spec:            o.cfg.Spec,
		Step:            step,
		Horizon:         h,
		Synthesis:       o.cfg.Synthesis,
		CheckpointEvery: o.cfg.CheckpointEvery,
		Checkpoint: func(step int, _ [][]float64) {
			slog.Debug("forecast checkpoint", "step", step)
		},
	})
}

// runBackend entrena, proyecta y evalúa un backend. Nunca devuelve error:
// lo deja en el resultado.
func (o *Orchestrator) runBackend(
	ctx context.Context,
	b ports.Backend,
	ts domain.TrainingSet,
	fc *forecast.Forecaster,
	seed [][]float64,
	cutoff time.Time,
	truth domain.Series,
) domain.BackendResult {
	res := domain.BackendResult{Backend: b.Name()}
	log := slog.With("backend", b.Name())

	fitStart := time.Now()
	model, err := b.Fit(ctx, ts.X, ts.Y)
	res.FitDuration = time.Since(fitStart)
	if err != nil {
		return o.fail(res, "fit", err)
	}
	o.metrics.ObserveFit(b.Name(), res.FitDuration)

	fcStart := time.Now()
	path, err := fc.Run(ctx, model, seed, cutoff)
	res.ForecastDuration = time.Since(fcStart)
	if err != nil {
		return o.fail(res, "forecast", err)
	}
	path.Backend = b.Name()
	res.Path = path
	o.metrics.ObserveForecast(b.Name(), path.Len(), res.ForecastDuration)

	if truth.Len() == 0 {
		log.Debug("backend done", "steps", path.Len(), "fit", res.FitDuration, "forecast", res.ForecastDuration)
		return res
	}

	ev, err := domain.Evaluate(path, truth, o.cfg.Spec.Target)
	if err != nil {
		return o.fail(res, "evaluate", err)
	}
	res.Evaluation = ev
	res.Scored = true
	o.metrics.ObserveScore(b.Name(), float64(ev.MAPE))
	log.Debug("backend done", "steps", path.Len(), "mape", float64(ev.MAPE))
	return res
}

func (o *Orchestrator) fail(res domain.BackendResult, stage string, err error) domain.BackendResult {
	res.Err = fmt.Errorf("%s: %w", stage, err)
	o.metrics.ObserveFailure(res.Backend, failureKind(stage, err))
	slog.Warn("backend failed", "backend", res.Backend, "stage", stage, "err", err)
	return res
}

// failureKind clasifica el error para las métricas.
func failureKind(stage string, err error) string {
	var (
		te *domain.TrainingError
		sm *domain.ShapeMismatchError
		ae *domain.AlignmentError
	)
	switch {
	case errors.As(err, &te):
		return "training"
	case errors.As(err, &sm):
		return "shape_mismatch"
	case errors.As(err, &ae):
		return "alignment"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return stage
}

type noopMetrics struct{}

func (noopMetrics) ObserveFit(string, time.Duration)          {}
func (noopMetrics) ObserveForecast(string, int, time.Duration) {}
func (noopMetrics) ObserveScore(string, float64)              {}
func (noopMetrics) ObserveFailure(string, string)             {}
