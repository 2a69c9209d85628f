package domain

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// StrategyResult resume la simulación "comprar si el modelo predice subida".
type StrategyResult struct {
	Backend    string
	Profits    []float64 // P&L por paso (0 si no se opera)
	Cumulative []float64 // P&L acumulado
	Trades     int
	Wins       int
	Total      float64
	AbsErrors  []float64 // |predicho - real| por paso
	Err        error     // error que impidió simular este backend
}

// Failed devuelve true si el backend no llegó a simular.
func (s StrategyResult) Failed() bool { return s.Err != nil }

// StrategyReport es el resultado de un backtest directo con la estrategia.
type StrategyReport struct {
	ID        string
	StartedAt time.Time
	Lookahead int
	Stake     float64
	TrainLen  int
	TestLen   int
	TestFrom  time.Time
	TestTo    time.Time
	Results   []StrategyResult
}

// HitRate devuelve la fracción de operaciones ganadoras (0 si no hubo operaciones).
func (s StrategyResult) HitRate() float64 {
	if s.Trades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades)
}

// SimulateStrategy simula una estrategia long-only de stake fijo.
//
// En cada paso: si predicted > current se compra stake al precio current y se cierra
// al precio actual (real) lookahead pasos después:
//
//	profit = stake × (actual / current − 1)
//
// Si no, no se opera y el profit es 0.
func SimulateStrategy(current, predicted, actual []float64, stake float64) (StrategyResult, error) {
	if len(current) != len(predicted) || len(current) != len(actual) {
		return StrategyResult{}, fmt.Errorf("domain.SimulateStrategy: length mismatch current=%d predicted=%d actual=%d",
			len(current), len(predicted), len(actual))
	}

	res := StrategyResult{
		Profits:    make([]float64, len(current)),
		Cumulative: make([]float64, len(current)),
		AbsErrors:  make([]float64, len(current)),
	}
	for i := range current {
		res.AbsErrors[i] = math.Abs(predicted[i] - actual[i])
		if predicted[i] <= current[i] || current[i] == 0 {
			continue
		}
		p := stake * (actual[i]/current[i] - 1)
		res.Profits[i] = p
		res.Trades++
		if p > 0 {
			res.Wins++
		}
	}
	floats.CumSum(res.Cumulative, res.Profits)
	res.Total = floats.Sum(res.Profits)
	return res, nil
}
