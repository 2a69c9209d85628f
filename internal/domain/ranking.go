package domain

import (
	"sort"
	"time"
)

// BackendResult es el resultado de train + forecast (+ evaluación) de un backend.
type BackendResult struct {
	Backend          string
	Path             ForecastPath
	Evaluation       Evaluation
	Scored           bool  // true si hubo ground truth y la evaluación fue exitosa
	Err              error // error que abortó el run de este backend (nil = ok)
	FitDuration      time.Duration
	ForecastDuration time.Duration
}

// Score devuelve el MAPE del resultado.
func (r BackendResult) Score() Score { return r.Evaluation.MAPE }

// Failed devuelve true si el backend no terminó su run.
func (r BackendResult) Failed() bool { return r.Err != nil }

// Rank ordena los resultados evaluados por Score ascendente.
// Empates se resuelven por orden de entrada (sort estable); los resultados sin
// score o fallidos no participan.
func Rank(results []BackendResult) []BackendResult {
	ranked := make([]BackendResult, 0, len(results))
	for _, r := range results {
		if r.Failed() || !r.Scored {
			continue
		}
		ranked = append(ranked, r)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score() < ranked[j].Score()
	})
	return ranked
}

// Failures devuelve los resultados que terminaron con error, en orden de entrada.
func Failures(results []BackendResult) []BackendResult {
	var out []BackendResult
	for _, r := range results {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

// RunReport es todo lo que produce una corrida del orquestador.
type RunReport struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Cutoff    time.Time
	Steps     int
	Spec      WindowSpec
	TrainLen  int
	Truth     Series // vacío si no había ground truth
	Results   []BackendResult
	Ranking   []BackendResult
}

// HasTruth devuelve true si el run fue evaluado contra datos reales.
func (r RunReport) HasTruth() bool { return r.Truth.Len() > 0 }

// Best devuelve el mejor backend del ranking.
func (r RunReport) Best() (BackendResult, bool) {
	if len(r.Ranking) == 0 {
		return BackendResult{}, false
	}
	return r.Ranking[0], true
}
