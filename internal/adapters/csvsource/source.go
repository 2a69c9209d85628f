// Package csvsource lee series de precios desde CSV y exporta forecast paths.
package csvsource

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/pricecast/internal/domain"
)

// fallbackLayouts se prueban en orden si el layout configurado no parsea.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
}

// timeColumns son los nombres aceptados para la columna de timestamp.
var timeColumns = map[string]bool{"datetime": true, "time": true, "timestamp": true, "date": true}

// Source implementa ports.SeriesSource sobre archivos CSV. El "symbol" es la ruta.
//
// El archivo necesita header. La columna de tiempo se llama datetime, time,
// timestamp o date; cualquier otra columna numérica se lee como un campo
// (open, high, low, close, volume, ...). Una celda vacía deja el campo ausente.
type Source struct {
	layout   string
	location *time.Location
}

// New crea un Source. layout vacío = solo los layouts por defecto; loc nil = UTC.
func New(layout string, loc *time.Location) *Source {
	if loc == nil {
		loc = time.UTC
	}
	return &Source{layout: layout, location: loc}
}

// LoadSeries implementa ports.SeriesSource.
func (s *Source) LoadSeries(ctx context.Context, path string) (domain.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Series{}, fmt.Errorf("csvsource.LoadSeries: open %q: %w", path, err)
	}
	defer f.Close()

	series, err := s.Read(ctx, f)
	if err != nil {
		return domain.Series{}, fmt.Errorf("csvsource.LoadSeries: %s: %w", path, err)
	}
	return series, nil
}

// Read parsea un CSV completo. Las filas se ordenan por tiempo; timestamps
// duplicados son un error.
func (s *Source) Read(ctx context.Context, r io.Reader) (domain.Series, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Series{}, errors.New("empty file")
		}
		return domain.Series{}, fmt.Errorf("read header: %w", err)
	}
	timeCol, fields, err := parseHeader(header)
	if err != nil {
		return domain.Series{}, err
	}

	var obs []domain.Observation
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return domain.Series{}, err
		}
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Series{}, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := s.parseTime(rec[timeCol])
		if err != nil {
			return domain.Series{}, fmt.Errorf("line %d: %w", line, err)
		}
		o := domain.Observation{Time: ts, Values: make(map[domain.Field]float64, len(fields))}
		for col, f := range fields {
			cell := strings.TrimSpace(rec[col])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return domain.Series{}, fmt.Errorf("line %d: column %q: %w", line, f, err)
			}
			o.Values[f] = v
		}
		obs = append(obs, o)
	}

	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Time.Before(obs[j].Time) })
	return domain.NewSeries(obs)
}

func parseHeader(header []string) (int, map[int]domain.Field, error) {
	timeCol := -1
	fields := make(map[int]domain.Field)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case name == "":
			continue
		case timeColumns[name] && timeCol < 0:
			timeCol = i
		default:
			fields[i] = domain.Field(name)
		}
	}
	if timeCol < 0 {
		return 0, nil, fmt.Errorf("header %v has no datetime column", header)
	}
	return timeCol, fields, nil
}

func (s *Source) parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if s.layout != "" {
		if t, err := time.ParseInLocation(s.layout, v, s.location); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, v, s.location); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", v)
}
