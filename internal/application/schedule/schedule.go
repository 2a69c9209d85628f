// Package schedule re-ejecuta un job según una expresión cron (con segundos).
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// Job es una ejecución completa (p.ej. un run del orquestador).
type Job func(ctx context.Context) error

// Scheduler envuelve un cron con un único job.
// Si una ejecución sigue en curso cuando llega el siguiente tick, ese tick se salta.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	job      Job
	ctx      context.Context
	runs     atomic.Int64
	failures atomic.Int64
}

// New valida la expresión y registra el job. No arranca nada hasta Run.
func New(spec string, job Job) (*Scheduler, error) {
	logger := slogLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		spec: spec,
		job:  job,
		ctx:  context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, func() { s.execute(s.ctx) }); err != nil {
		return nil, fmt.Errorf("schedule.New: parse %q: %w", spec, err)
	}
	return s, nil
}

// Run ejecuta el job una vez de inmediato (si runNow) y luego en cada tick
// hasta que el contexto se cancele. Espera a que termine el job en curso.
func (s *Scheduler) Run(ctx context.Context, runNow bool) {
	s.ctx = ctx
	if runNow {
		s.execute(ctx)
	}

	s.cron.Start()
	slog.Info("scheduler started", "cron", s.spec)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped", "runs", s.runs.Load(), "failures", s.failures.Load())
}

// Runs devuelve cuántas ejecuciones terminaron (con o sin error).
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

func (s *Scheduler) execute(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	err := s.job(ctx)
	s.runs.Add(1)
	if err != nil {
		s.failures.Add(1)
		slog.Error("scheduled run failed", "err", err)
	}
}

// slogLogger adapta cron.Logger a slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
