// Package forecast implementa el forecaster recursivo multi-paso: cada
// predicción vuelve a entrar en la ventana de la siguiente.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/pricecast/internal/domain"
	"github.com/alejandrodnm/pricecast/internal/ports"
)

// Horizon indica cuándo termina un rollout. Se fija Steps o Until, nunca ambos.
type Horizon struct {
	Steps int
	Until time.Time
}

// Options configura un rollout.
type Options struct {
	Spec      domain.WindowSpec
	Step      time.Duration
	Horizon   Horizon
	Synthesis domain.SynthesisPolicy

	// CheckpointEvery > 0 llama a Checkpoint cada k pasos con una copia del buffer.
	CheckpointEvery int
	Checkpoint      func(step int, buffer [][]float64)
}

// Forecaster ejecuta rollouts recursivos. No guarda estado por run, así que se
// puede compartir entre goroutines.
type Forecaster struct {
	opts     Options
	progress rate.Sometimes
}

// New valida las opciones y devuelve un Forecaster.
func New(opts Options) (*Forecaster, error) {
	if err := opts.Spec.Validate(); err != nil {
		return nil, err
	}
	if opts.Step <= 0 {
		return nil, &domain.InvalidConfigError{Option: "step", Reason: fmt.Sprintf("must be positive, got %s", opts.Step)}
	}
	h := opts.Horizon
	switch {
	case h.Steps < 0:
		return nil, &domain.InvalidConfigError{Option: "horizon", Reason: fmt.Sprintf("must not be negative, got %d", h.Steps)}
	case h.Steps > 0 && !h.Until.IsZero():
		return nil, &domain.InvalidConfigError{Option: "horizon", Reason: "set either a step count or forecast_until, not both"}
	case h.Steps == 0 && h.Until.IsZero():
		return nil, &domain.InvalidConfigError{Option: "horizon", Reason: "zero steps requested"}
	}
	if opts.CheckpointEvery < 0 {
		return nil, &domain.InvalidConfigError{Option: "checkpoint_every", Reason: "must not be negative"}
	}
	return &Forecaster{
		opts:     opts,
		progress: rate.Sometimes{Interval: 5 * time.Second},
	}, nil
}

// Steps devuelve cuántos puntos produce un rollout que arranca en start.
func (f *Forecaster) Steps(start time.Time) int {
	if f.opts.Horizon.Steps > 0 {
		return f.opts.Horizon.Steps
	}
	n := 0
	for c := start.Add(f.opts.Step); !c.After(f.opts.Horizon.Until); c = c.Add(f.opts.Step) {
		n++
	}
	return n
}

// Run avanza el modelo desde start, el timestamp de la última fila del seed.
//
// seed son las últimas Spec.Size filas observadas, cada una con len(Spec.Fields)
// valores. Cada paso predice con las Size filas más recientes, registra el valor
// en cursor+Step y agrega una fila sintetizada según la política de síntesis.
// El buffer nunca pasa de Size filas. El ground truth no se consulta nunca.
func (f *Forecaster) Run(ctx context.Context, model ports.Model, seed [][]float64, start time.Time) (domain.ForecastPath, error) {
	spec := f.opts.Spec
	if len(seed) != spec.Size {
		return domain.ForecastPath{}, &domain.InsufficientDataError{Have: len(seed), Need: spec.Size}
	}
	for _, row := range seed {
		if len(row) != len(spec.Fields) {
			return domain.ForecastPath{}, &domain.ShapeMismatchError{Want: len(spec.Fields), Got: len(row)}
		}
	}
	if model.NumFeatures() != spec.Width() {
		return domain.ForecastPath{}, &domain.ShapeMismatchError{Want: spec.Width(), Got: model.NumFeatures()}
	}

	steps := f.Steps(start)
	if steps == 0 {
		return domain.ForecastPath{}, &domain.InvalidConfigError{
			Option: "forecast_until",
			Reason: fmt.Sprintf("%s leaves no step after %s", f.opts.Horizon.Until.Format(time.RFC3339), start.Format(time.RFC3339)),
		}
	}

	buffer := make([][]float64, spec.Size)
	for i, row := range seed {
		buffer[i] = append([]float64(nil), row...)
	}

	path := domain.ForecastPath{Points: make([]domain.Point, 0, steps)}
	cursor := start
	for step := 1; step <= steps; step++ {
		if err := ctx.Err(); err != nil {
			return domain.ForecastPath{}, fmt.Errorf("forecast.Run: step %d: %w", step, err)
		}

		value, err := model.Predict(domain.Flatten(buffer))
		if err != nil {
			return domain.ForecastPath{}, fmt.Errorf("forecast.Run: predict step %d: %w", step, err)
		}
		cursor = cursor.Add(f.opts.Step)
		path.Points = append(path.Points, domain.Point{Time: cursor, Value: value})

		next := f.opts.Synthesis.NextRow(spec, buffer[len(buffer)-1], value)
		copy(buffer, buffer[1:])
		buffer[len(buffer)-1] = next

		if f.opts.CheckpointEvery > 0 && step%f.opts.CheckpointEvery == 0 && f.opts.Checkpoint != nil {
			f.opts.Checkpoint(step, cloneRows(buffer))
		}
		f.progress.Do(func() {
			slog.Debug("forecast progress", "step", step, "of", steps, "value", value)
		})
	}
	return path, nil
}

func cloneRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}
