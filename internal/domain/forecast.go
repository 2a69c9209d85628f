package domain

import "time"

// Point es un valor predicho en un instante.
type Point struct {
	Time  time.Time
	Value float64
}

// ForecastPath es la secuencia ordenada producida por una corrida del forecaster.
type ForecastPath struct {
	Backend string
	Points  []Point
}

// Len devuelve el número de puntos.
func (p ForecastPath) Len() int { return len(p.Points) }

// Values devuelve solo los valores predichos.
func (p ForecastPath) Values() []float64 {
	out := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		out[i] = pt.Value
	}
	return out
}

// Last devuelve el último punto (zero value si el path está vacío).
func (p ForecastPath) Last() Point {
	if len(p.Points) == 0 {
		return Point{}
	}
	return p.Points[len(p.Points)-1]
}

// SynthesisPolicy decide cómo se construye la fila nueva del buffer tras cada predicción.
//
// Por defecto todo campo no-target toma el valor predicho (simplificación: los campos
// auxiliares no se pronostican por separado). Los campos en Carry repiten el valor de
// la fila anterior, como hace el script original con el volumen.
type SynthesisPolicy struct {
	Carry []Field
}

// NextRow construye la fila sintética para el buffer.
func (p SynthesisPolicy) NextRow(spec WindowSpec, prev []float64, predicted float64) []float64 {
	row := make([]float64, len(spec.Fields))
	for i, f := range spec.Fields {
		row[i] = predicted
		if f != spec.Target && p.carries(f) && i < len(prev) {
			row[i] = prev[i]
		}
	}
	return row
}

func (p SynthesisPolicy) carries(f Field) bool {
	for _, c := range p.Carry {
		if c == f {
			return true
		}
	}
	return false
}
