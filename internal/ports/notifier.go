package ports

import (
	"context"

	"github.com/alejandrodnm/pricecast/internal/domain"
)

// Reporter recibe los resultados de cada run (forecast paths, scores, ranking).
type Reporter interface {
	// Report presenta el run. En la implementación de consola imprime tablas.
	Report(ctx context.Context, report domain.RunReport) error
}

// StrategyReporter presenta el resultado de un backtest de estrategia.
type StrategyReporter interface {
	ReportStrategy(ctx context.Context, report domain.StrategyReport) error
}
