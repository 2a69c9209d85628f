package domain

import (
	"fmt"
	"time"
)

// Field es el nombre de una columna numérica de la serie.
type Field string

const (
	FieldOpen   Field = "open"
	FieldHigh   Field = "high"
	FieldLow    Field = "low"
	FieldClose  Field = "close"
	FieldVolume Field = "volume"
)

// Observation es una fila de la serie: timestamp + valores por campo.
type Observation struct {
	Time   time.Time
	Values map[Field]float64
}

// Value devuelve el valor del campo y si está presente.
func (o Observation) Value(f Field) (float64, bool) {
	v, ok := o.Values[f]
	return v, ok
}

// Close devuelve el precio de cierre (0 si falta).
func (o Observation) Close() float64 {
	return o.Values[FieldClose]
}

// Series es una secuencia ordenada e inmutable de observaciones.
// Todos los métodos devuelven vistas de solo lectura; nadie downstream la modifica.
type Series struct {
	obs []Observation
}

// NewSeries valida orden estricto por timestamp (sin duplicados) y envuelve las observaciones.
func NewSeries(obs []Observation) (Series, error) {
	for i := 1; i < len(obs); i++ {
		if !obs[i].Time.After(obs[i-1].Time) {
			return Series{}, fmt.Errorf("domain.NewSeries: observation %d (%s) not after %d (%s)",
				i, obs[i].Time.Format(time.RFC3339), i-1, obs[i-1].Time.Format(time.RFC3339))
		}
	}
	cp := make([]Observation, len(obs))
	copy(cp, obs)
	return Series{obs: cp}, nil
}

// Len devuelve el número de observaciones.
func (s Series) Len() int { return len(s.obs) }

// At devuelve la observación i.
func (s Series) At(i int) Observation { return s.obs[i] }

// Last devuelve la última observación. Hace panic si la serie está vacía.
func (s Series) Last() Observation { return s.obs[len(s.obs)-1] }

// Observations devuelve una copia de las observaciones.
func (s Series) Observations() []Observation {
	cp := make([]Observation, len(s.obs))
	copy(cp, s.obs)
	return cp
}

// Before devuelve las observaciones con timestamp <= cutoff.
func (s Series) Before(cutoff time.Time) Series {
	n := 0
	for n < len(s.obs) && !s.obs[n].Time.After(cutoff) {
		n++
	}
	return Series{obs: s.obs[:n:n]}
}

// After devuelve las observaciones estrictamente posteriores a cutoff.
func (s Series) After(cutoff time.Time) Series {
	i := 0
	for i < len(s.obs) && !s.obs[i].Time.After(cutoff) {
		i++
	}
	return Series{obs: s.obs[i:len(s.obs):len(s.obs)]}
}

// Column extrae un campo como slice. Falla con MissingFieldError si alguna fila no lo tiene.
func (s Series) Column(f Field) ([]float64, error) {
	out := make([]float64, len(s.obs))
	for i, o := range s.obs {
		v, ok := o.Value(f)
		if !ok {
			return nil, &MissingFieldError{Field: f, Index: i}
		}
		out[i] = v
	}
	return out, nil
}

// Step devuelve la distancia entre las dos últimas observaciones (0 si hay menos de dos).
func (s Series) Step() time.Duration {
	if len(s.obs) < 2 {
		return 0
	}
	return s.obs[len(s.obs)-1].Time.Sub(s.obs[len(s.obs)-2].Time)
}
