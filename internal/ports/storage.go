package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/pricecast/internal/domain"
)

// RunStorage persiste los resultados de cada run del orquestador.
type RunStorage interface {
	// SaveRun persiste el resumen del run, los forecast paths y los scores.
	SaveRun(ctx context.Context, report domain.RunReport) error

	// GetHistory devuelve los resultados por backend de los runs en el rango dado.
	GetHistory(ctx context.Context, from, to time.Time) ([]RunSummary, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

// RunSummary es una fila del histórico: un backend dentro de un run.
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	Backend   string
	Steps     int
	Score     domain.Score
	Scored    bool
	Rank      int // 1 = mejor; 0 si no se rankeó
	Err       string
}
