// Package metrics exporta métricas de los runs en formato texto de Prometheus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implementa ports.Metrics con Prometheus. Cada uno tiene su propio
// registry, así varios recorders no chocan entre sí.
type Recorder struct {
	registry        *prometheus.Registry
	fitSeconds      *prometheus.HistogramVec
	forecastSeconds *prometheus.HistogramVec
	forecastSteps   *prometheus.CounterVec
	lastMAPE        *prometheus.GaugeVec
	failures        *prometheus.CounterVec
}

// New crea un recorder de métricas Prometheus.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		fitSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_fit_duration_seconds",
				Help:    "Time spent training a backend",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"backend"},
		),
		forecastSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricecast_forecast_duration_seconds",
				Help:    "Time spent rolling a forecast out",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		forecastSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_forecast_steps_total",
				Help: "Total number of forecast points produced",
			},
			[]string{"backend"},
		),
		lastMAPE: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricecast_last_mape",
				Help: "MAPE of the last scored run",
			},
			[]string{"backend"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricecast_backend_failures_total",
				Help: "Total number of backend failures by kind",
			},
			[]string{"backend", "kind"},
		),
	}
}

// ObserveFit registra la duración de un entrenamiento.
func (r *Recorder) ObserveFit(backend string, d time.Duration) {
	r.fitSeconds.WithLabelValues(backend).Observe(d.Seconds())
}

// ObserveForecast registra la duración de un rollout y su largo.
func (r *Recorder) ObserveForecast(backend string, steps int, d time.Duration) {
	r.forecastSeconds.WithLabelValues(backend).Observe(d.Seconds())
	r.forecastSteps.WithLabelValues(backend).Add(float64(steps))
}

// ObserveScore registra el último MAPE.
func (r *Recorder) ObserveScore(backend string, mape float64) {
	r.lastMAPE.WithLabelValues(backend).Set(mape)
}

// ObserveFailure cuenta un backend fallido.
func (r *Recorder) ObserveFailure(backend, kind string) {
	r.failures.WithLabelValues(backend, kind).Inc()
}

// Registry expone el registry subyacente.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile vuelca todas las métricas a path (textfile collector de node_exporter).
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics.WriteTextfile: %w", err)
	}
	return nil
}
