package ml

import (
	"fmt"
	"sort"
	"strings"
)

// Params son los hiperparámetros de un backend tal cual vienen del YAML.
// Son opacos para el core: cada backend lee los suyos y rechaza el resto.
type Params map[string]float64

// paramReader lee Params con defaults y recuerda qué keys se consumieron.
type paramReader struct {
	backend string
	params  Params
	used    map[string]bool
	errs    []string
}

func newParamReader(backend string, p Params) *paramReader {
	return &paramReader{backend: backend, params: p, used: make(map[string]bool)}
}

func (r *paramReader) float(key string, def float64) float64 {
	r.used[key] = true
	if v, ok := r.params[key]; ok {
		return v
	}
	return def
}

func (r *paramReader) int(key string, def int) int {
	v := r.float(key, float64(def))
	if v != float64(int(v)) {
		r.errs = append(r.errs, fmt.Sprintf("%s must be an integer, got %g", key, v))
	}
	return int(v)
}

func (r *paramReader) bool(key string, def bool) bool {
	d := 0.0
	if def {
		d = 1
	}
	return r.float(key, d) != 0
}

// check registra un error si cond es falso.
func (r *paramReader) check(cond bool, format string, args ...any) {
	if !cond {
		r.errs = append(r.errs, fmt.Sprintf(format, args...))
	}
}

// done devuelve error si hubo valores inválidos o keys desconocidas.
func (r *paramReader) done() error {
	var unknown []string
	for k := range r.params {
		if !r.used[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		r.errs = append(r.errs, fmt.Sprintf("unknown parameter %q", k))
	}
	if len(r.errs) > 0 {
		return fmt.Errorf("ml.%s: %s", r.backend, strings.Join(r.errs, "; "))
	}
	return nil
}
