package domain

import "fmt"

// WindowSpec configura el Window Builder. Es compartido por todos los backends de un run.
type WindowSpec struct {
	Size   int     // window_size: filas por ventana
	Fields []Field // features, en orden; debe contener Target
	Target Field   // campo a predecir
}

// Width devuelve el largo de un vector de features (Size × len(Fields)).
func (w WindowSpec) Width() int {
	return w.Size * len(w.Fields)
}

// Validate comprueba que la configuración sea utilizable.
func (w WindowSpec) Validate() error {
	if w.Size <= 0 {
		return &InvalidConfigError{Option: "window_size", Reason: fmt.Sprintf("must be positive, got %d", w.Size)}
	}
	if len(w.Fields) == 0 {
		return &InvalidConfigError{Option: "feature_fields", Reason: "must not be empty"}
	}
	seen := make(map[Field]bool, len(w.Fields))
	for _, f := range w.Fields {
		if seen[f] {
			return &InvalidConfigError{Option: "feature_fields", Reason: fmt.Sprintf("duplicate field %q", f)}
		}
		seen[f] = true
	}
	if !seen[w.Target] {
		return &InvalidConfigError{Option: "target_field", Reason: fmt.Sprintf("%q is not in feature_fields", w.Target)}
	}
	return nil
}

// TargetIndex devuelve la posición del target dentro de Fields (-1 si no está).
func (w WindowSpec) TargetIndex() int {
	for i, f := range w.Fields {
		if f == w.Target {
			return i
		}
	}
	return -1
}

// TrainingSet son los arrays paralelos X (filas de Width elementos) e y.
type TrainingSet struct {
	X    [][]float64
	Y    []float64
	Spec WindowSpec
}

// Len devuelve el número de ejemplos.
func (t TrainingSet) Len() int { return len(t.Y) }

// BuildTrainingSet construye ventanas solapadas con stride 1.
//
// Para i en [0, n-size): X[i] = filas [i, i+size) aplanadas en orden (tiempo, campo)
// e y[i] = Target de la fila i+size. Los huecos en los timestamps no se detectan:
// las ventanas se construyen por adyacencia de filas.
func BuildTrainingSet(s Series, spec WindowSpec) (TrainingSet, error) {
	matrix, target, err := extract(s, spec)
	if err != nil {
		return TrainingSet{}, err
	}

	n := len(matrix) - spec.Size
	ts := TrainingSet{
		X:    make([][]float64, n),
		Y:    make([]float64, n),
		Spec: spec,
	}
	for i := 0; i < n; i++ {
		ts.X[i] = Flatten(matrix[i : i+spec.Size])
		ts.Y[i] = target[i+spec.Size]
	}
	return ts, nil
}

// SeedWindow devuelve las últimas spec.Size filas (cada una con len(Fields) valores),
// el estado inicial del buffer del forecaster.
func SeedWindow(s Series, spec WindowSpec) ([][]float64, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if s.Len() < spec.Size {
		return nil, &InsufficientDataError{Have: s.Len(), Need: spec.Size}
	}
	rows := make([][]float64, 0, spec.Size)
	for i := s.Len() - spec.Size; i < s.Len(); i++ {
		row, err := rowOf(s.At(i), i, spec.Fields)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Flatten concatena filas en un único vector (orden tiempo, campo).
func Flatten(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	out := make([]float64, 0, len(rows)*len(rows[0]))
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

// extract valida y devuelve la matriz de features y la columna target.
func extract(s Series, spec WindowSpec) ([][]float64, []float64, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	if s.Len() < spec.Size+1 {
		return nil, nil, &InsufficientDataError{Have: s.Len(), Need: spec.Size + 1}
	}

	ti := spec.TargetIndex()
	matrix := make([][]float64, s.Len())
	target := make([]float64, s.Len())
	for i := 0; i < s.Len(); i++ {
		row, err := rowOf(s.At(i), i, spec.Fields)
		if err != nil {
			return nil, nil, err
		}
		matrix[i] = row
		target[i] = row[ti]
	}
	return matrix, target, nil
}

func rowOf(o Observation, idx int, fields []Field) ([]float64, error) {
	row := make([]float64, len(fields))
	for j, f := range fields {
		v, ok := o.Value(f)
		if !ok {
			return nil, &MissingFieldError{Field: f, Index: idx}
		}
		row[j] = v
	}
	return row, nil
}
