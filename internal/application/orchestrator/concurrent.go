package orchestrator

// concurrent.go: worker pool para correr un job por backend en paralelo.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
)

// runConcurrent ejecuta job(i) para i en [0, n) con un worker pool.
// Cada resultado se guarda en su índice, así el orden de salida es el de entrada
// sin importar qué goroutine termine primero.
//
// Si workers <= 0 usa runtime.NumCPU().
func runConcurrent[T any](ctx context.Context, n, workers int, job func(ctx context.Context, i int) T) []T {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	results := make([]T, n)
	workCh := make(chan int, n)
	for i := 0; i < n; i++ {
		workCh <- i
	}
	close(workCh)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				results[i] = job(ctx, i)
			}
		}()
	}
	wg.Wait()

	slog.Debug("concurrent run complete", "jobs", n, "workers", workers)
	return results
}
