package csvsource

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alejandrodnm/pricecast/internal/domain"
)

// ExportPaths escribe <dir>/<run_id>.csv con una columna por backend y, si el
// run tuvo ground truth, una columna "actual". Los backends sin path se omiten.
// Si la escritura o el cierre fallan, el archivo parcial se borra.
func ExportPaths(dir string, report domain.RunReport, target domain.Field) (name string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("csvsource.ExportPaths: mkdir %q: %w", dir, err)
	}
	name = filepath.Join(dir, report.ID+".csv")
	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("csvsource.ExportPaths: create %q: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("csvsource.ExportPaths: close %q: %w", name, cerr)
		}
		if err != nil {
			_ = os.Remove(name)
			name = ""
		}
	}()

	if err := WritePaths(f, report, target); err != nil {
		return "", fmt.Errorf("csvsource.ExportPaths: %w", err)
	}
	return name, nil
}

// WritePaths escribe el CSV de paths de un run en w.
func WritePaths(w io.Writer, report domain.RunReport, target domain.Field) error {
	var paths []domain.ForecastPath
	for _, r := range report.Results {
		if r.Path.Len() > 0 {
			paths = append(paths, r.Path)
		}
	}

	// Todas las paths de un run comparten timestamps; la grilla es la unión por si acaso.
	var times []time.Time
	index := make(map[int64]int)
	addTime := func(t time.Time) {
		if _, ok := index[t.UnixNano()]; !ok {
			index[t.UnixNano()] = len(times)
			times = append(times, t)
		}
	}
	for _, p := range paths {
		for _, pt := range p.Points {
			addTime(pt.Time)
		}
	}

	header := []string{"datetime"}
	if report.HasTruth() {
		header = append(header, "actual")
	}
	for _, p := range paths {
		header = append(header, p.Backend)
	}

	rows := make([][]string, len(times))
	for i, t := range times {
		rows[i] = make([]string, len(header))
		rows[i][0] = t.Format(time.RFC3339)
	}
	col := 1
	if report.HasTruth() {
		for i := 0; i < report.Truth.Len(); i++ {
			o := report.Truth.At(i)
			row, ok := index[o.Time.UnixNano()]
			if v, has := o.Value(target); ok && has {
				rows[row][col] = formatFloat(v)
			}
		}
		col++
	}
	for _, p := range paths {
		for _, pt := range p.Points {
			rows[index[pt.Time.UnixNano()]][col] = formatFloat(pt.Value)
		}
		col++
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
