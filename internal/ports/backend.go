package ports

import "context"

// Backend es un algoritmo de regresión intercambiable.
// El core no sabe qué algoritmo concreto hay detrás: solo entrena y predice.
type Backend interface {
	// Name devuelve el identificador del backend (random_forest, xgboost, ...).
	Name() string

	// Fit entrena sobre X (filas de igual largo) e y.
	// Devuelve *domain.TrainingError si X está vacío, es irregular o len(X) != len(y).
	Fit(ctx context.Context, X [][]float64, y []float64) (Model, error)
}

// Model es un regresor entrenado; pertenece al run que lo entrenó.
type Model interface {
	// Predict devuelve el target predicho para una ventana aplanada.
	// Devuelve *domain.ShapeMismatchError si len(row) != NumFeatures().
	Predict(row []float64) (float64, error)

	// NumFeatures es el largo del vector de features con el que se entrenó.
	NumFeatures() int
}
