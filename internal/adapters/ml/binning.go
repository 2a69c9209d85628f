package ml

import "sort"

// binMapper discretiza cada feature con bordes ascendentes.
// bin(x) = número de bordes < x, así que "bin <= k" equivale a "x <= borders[k]".
type binMapper struct {
	borders [][]float64
}

// newBinMapper calcula hasta maxBins-1 bordes por feature. Si hay pocos valores
// distintos, cada uno tiene su propio bin (bordes en los puntos medios); si no,
// los bordes van en cuantiles.
func newBinMapper(X [][]float64, maxBins int) *binMapper {
	p := len(X[0])
	m := &binMapper{borders: make([][]float64, p)}
	col := make([]float64, len(X))
	for f := 0; f < p; f++ {
		for i, row := range X {
			col[i] = row[f]
		}
		sort.Float64s(col)
		m.borders[f] = bordersOf(col, maxBins)
	}
	return m
}

func bordersOf(sorted []float64, maxBins int) []float64 {
	distinct := make([]float64, 0, len(sorted))
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) <= 1 {
		return nil
	}

	var borders []float64
	if len(distinct) <= maxBins {
		for i := 1; i < len(distinct); i++ {
			borders = append(borders, midpoint(distinct[i-1], distinct[i]))
		}
		return borders
	}

	n := len(sorted)
	for q := 1; q < maxBins; q++ {
		k := q * n / maxBins
		if k <= 0 || k >= n || sorted[k-1] == sorted[k] {
			continue
		}
		b := midpoint(sorted[k-1], sorted[k])
		if len(borders) == 0 || b > borders[len(borders)-1] {
			borders = append(borders, b)
		}
	}
	return borders
}

func midpoint(a, b float64) float64 {
	return a + (b-a)/2
}

// numBins devuelve los bins de la feature f (bordes + 1).
func (m *binMapper) numBins(f int) int {
	return len(m.borders[f]) + 1
}

func (m *binMapper) bin(f int, x float64) int {
	return sort.SearchFloat64s(m.borders[f], x)
}

// transform devuelve la matriz de bins (filas × features).
func (m *binMapper) transform(X [][]float64) [][]uint16 {
	out := make([][]uint16, len(X))
	for i, row := range X {
		b := make([]uint16, len(row))
		for f, v := range row {
			b[f] = uint16(m.bin(f, v))
		}
		out[i] = b
	}
	return out
}
