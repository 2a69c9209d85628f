package domain

import (
	"fmt"
	"time"
)

// InsufficientDataError indica que la serie es demasiado corta para la ventana pedida.
type InsufficientDataError struct {
	Have int // observaciones disponibles
	Need int // observaciones mínimas (window_size + 1)
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d observations, need at least %d", e.Have, e.Need)
}

// MissingFieldError indica que un campo pedido no existe en alguna observación.
type MissingFieldError struct {
	Field Field
	Index int // posición de la primera observación sin el campo
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q at observation %d", e.Field, e.Index)
}

// TrainingError indica un training set vacío o malformado.
type TrainingError struct {
	Backend string
	Reason  string
}

func (e *TrainingError) Error() string {
	if e.Backend == "" {
		return "training error: " + e.Reason
	}
	return fmt.Sprintf("training error (%s): %s", e.Backend, e.Reason)
}

// ShapeMismatchError indica que el vector de features no tiene el largo esperado por el modelo.
type ShapeMismatchError struct {
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: model expects %d features, got %d", e.Want, e.Got)
}

// AlignmentError indica que el forecast y el ground truth no se corresponden 1:1.
type AlignmentError struct {
	ForecastLen int
	TruthLen    int
	Index       int // -1 si el problema es de longitud
	Forecast    time.Time
	Truth       time.Time
}

func (e *AlignmentError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("alignment error: forecast has %d points, truth has %d", e.ForecastLen, e.TruthLen)
	}
	return fmt.Sprintf("alignment error at %d: forecast %s vs truth %s",
		e.Index, e.Forecast.Format(time.RFC3339), e.Truth.Format(time.RFC3339))
}

// InvalidConfigError indica una opción con un valor inutilizable.
type InvalidConfigError struct {
	Option string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Option, e.Reason)
}
