package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/pricecast/internal/domain"
	"github.com/alejandrodnm/pricecast/internal/ports"
)

// StrategyConfig configura el backtest directo.
type StrategyConfig struct {
	Lookahead int     // pasos entre la última fila de la ventana y el target
	Stake     float64 // monto por operación
	TrainFrac float64 // fracción cronológica para entrenar (0 = 0.8)
}

// DirectBacktest entrena cada backend para predecir el target Lookahead pasos
// adelante (sin recursión) sobre el primer TrainFrac de las ventanas, predice el
// resto y simula la estrategia "comprar si predice subida".
func (o *Orchestrator) DirectBacktest(ctx context.Context, series domain.Series, sc StrategyConfig) (domain.StrategyReport, error) {
	started := o.now()
	if sc.TrainFrac == 0 {
		sc.TrainFrac = 0.8
	}
	if sc.TrainFrac <= 0 || sc.TrainFrac >= 1 {
		return domain.StrategyReport{}, &domain.InvalidConfigError{Option: "train_frac", Reason: fmt.Sprintf("must be in (0, 1), got %g", sc.TrainFrac)}
	}
	if sc.Stake <= 0 {
		return domain.StrategyReport{}, &domain.InvalidConfigError{Option: "stake", Reason: fmt.Sprintf("must be positive, got %g", sc.Stake)}
	}

	set, err := domain.BuildLookaheadSet(series, o.cfg.Spec, sc.Lookahead)
	if err != nil {
		return domain.StrategyReport{}, fmt.Errorf("orchestrator.DirectBacktest: build lookahead set: %w", err)
	}
	k := int(float64(set.Len()) * sc.TrainFrac)
	if k == 0 || k == set.Len() {
		return domain.StrategyReport{}, &domain.InsufficientDataError{Have: series.Len(), Need: o.cfg.Spec.Size + sc.Lookahead + 1}
	}
	train, test := set.SplitAt(k)

	results := runConcurrent(ctx, len(o.backends), o.cfg.Workers, func(ctx context.Context, i int) domain.StrategyResult {
		return o.simulateBackend(ctx, o.backends[i], train, test, sc.Stake)
	})

	report := domain.StrategyReport{
		ID:        uuid.NewString(),
		StartedAt: started,
		Lookahead: sc.Lookahead,
		Stake:     sc.Stake,
		TrainLen:  train.Len(),
		TestLen:   test.Len(),
		TestFrom:  test.Times[0],
		TestTo:    test.Times[test.Len()-1],
		Results:   results,
	}

	if sr, ok := o.reporter.(ports.StrategyReporter); ok {
		if err := sr.ReportStrategy(ctx, report); err != nil {
			slog.Warn("reporter error", "err", err)
		}
	}
	slog.Info("strategy backtest complete",
		"run_id", report.ID,
		"train", train.Len(),
		"test", test.Len(),
		"lookahead", sc.Lookahead,
		"duration", o.now().Sub(started).Round(time.Millisecond),
	)
	return report, nil
}

func (o *Orchestrator) simulateBackend(ctx context.Context, b ports.Backend, train, test domain.LookaheadSet, stake float64) domain.StrategyResult {
	res := domain.StrategyResult{Backend: b.Name()}

	fitStart := time.Now()
	model, err := b.Fit(ctx, train.X, train.Y)
	if err != nil {
		res.Err = fmt.Errorf("fit: %w", err)
		o.metrics.ObserveFailure(b.Name(), failureKind("fit", err))
		return res
	}
	o.metrics.ObserveFit(b.Name(), time.Since(fitStart))

	predicted := make([]float64, test.Len())
	for i, row := range test.X {
		if predicted[i], err = model.Predict(row); err != nil {
			res.Err = fmt.Errorf("predict row %d: %w", i, err)
			o.metrics.ObserveFailure(b.Name(), failureKind("predict", err))
			return res
		}
	}

	sim, err := domain.SimulateStrategy(test.Current, predicted, test.Y, stake)
	if err != nil {
		res.Err = err
		return res
	}
	sim.Backend = b.Name()
	return sim
}
