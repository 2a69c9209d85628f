package ml

import (
	"fmt"
	"sort"

	"github.com/alejandrodnm/pricecast/internal/ports"
)

// Nombres de los backends incluidos.
const (
	NameRandomForest = "random_forest"
	NameXGBoost      = "xgboost"
	NameLightGBM     = "lightgbm"
	NameCatBoost     = "catboost"
)

// Factory construye un backend a partir de sus hiperparámetros.
type Factory func(Params) (ports.Backend, error)

// Registry mantiene los backends disponibles indexados por nombre.
// La selección es por configuración, nunca por inspección de tipos.
type Registry map[string]Factory

// NewRegistry crea un registry vacío.
func NewRegistry() Registry {
	return make(Registry)
}

// DefaultRegistry devuelve un registry con los cuatro backends incluidos.
func DefaultRegistry() Registry {
	r := NewRegistry()
	r.Register(NameRandomForest, func(p Params) (ports.Backend, error) { return NewForest(p) })
	r.Register(NameXGBoost, func(p Params) (ports.Backend, error) { return NewXGBoost(p) })
	r.Register(NameLightGBM, func(p Params) (ports.Backend, error) { return NewLightGBM(p) })
	r.Register(NameCatBoost, func(p Params) (ports.Backend, error) { return NewCatBoost(p) })
	return r
}

// Register añade un backend al registry.
func (r Registry) Register(name string, f Factory) {
	r[name] = f
}

// Build construye el backend por nombre.
func (r Registry) Build(name string, p Params) (ports.Backend, error) {
	f, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("ml.Registry: unknown backend %q (available: %v)", name, r.Names())
	}
	return f(p)
}

// Names devuelve los nombres registrados ordenados.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
