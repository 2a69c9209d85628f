package ports

import "time"

// Metrics observa los resultados de los runs. Las implementaciones deben ser seguras
// para uso concurrente.
type Metrics interface {
	ObserveFit(backend string, d time.Duration)
	ObserveForecast(backend string, steps int, d time.Duration)
	ObserveScore(backend string, mape float64)
	ObserveFailure(backend, kind string)
}
