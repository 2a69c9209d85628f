package ports

import (
	"context"

	"github.com/alejandrodnm/pricecast/internal/domain"
)

// SeriesSource entrega una serie ya materializada (CSV, SQLite, ...).
type SeriesSource interface {
	LoadSeries(ctx context.Context, symbol string) (domain.Series, error)
}
