package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/alejandrodnm/pricecast/internal/ports"
)

// XGBoostConfig configura el gradient boosting depth-wise con regularización L2.
type XGBoostConfig struct {
	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	Lambda          float64 // reg_lambda: L2 sobre los pesos de las hojas
	Gamma           float64 // ganancia mínima para partir un nodo
	MinChildWeight  float64
	Subsample       float64 // fracción de filas por ronda
	ColsampleByNode float64 // fracción de features por nodo
	Seed            int64
}

// XGBoost es un gradient boosting de segundo orden con pérdida cuadrática:
// g = residuo, h = 1, peso de hoja G/(H+lambda), ganancia
// ½[GL²/(HL+λ) + GR²/(HR+λ) − G²/(H+λ)] − γ. Árboles limitados por profundidad,
// con búsqueda exacta de umbrales.
type XGBoost struct {
	cfg XGBoostConfig
}

// NewXGBoost lee los hiperparámetros. Defaults: 100 rondas, lr 0.05, depth 6.
func NewXGBoost(p Params) (*XGBoost, error) {
	r := newParamReader(NameXGBoost, p)
	cfg := XGBoostConfig{
		NEstimators:     r.int("n_estimators", 100),
		LearningRate:    r.float("learning_rate", 0.05),
		MaxDepth:        r.int("max_depth", 6),
		Lambda:          r.float("reg_lambda", 1),
		Gamma:           r.float("gamma", 0),
		MinChildWeight:  r.float("min_child_weight", 1),
		Subsample:       r.float("subsample", 1),
		ColsampleByNode: r.float("colsample_bynode", 1),
		Seed:            int64(r.int("seed", 0)),
	}
	r.check(cfg.NEstimators > 0, "n_estimators must be positive")
	r.check(cfg.LearningRate > 0, "learning_rate must be positive")
	r.check(cfg.MaxDepth > 0, "max_depth must be positive")
	r.check(cfg.Lambda >= 0, "reg_lambda must be >= 0")
	r.check(cfg.Gamma >= 0, "gamma must be >= 0")
	r.check(cfg.Subsample > 0 && cfg.Subsample <= 1, "subsample must be in (0, 1]")
	r.check(cfg.ColsampleByNode > 0 && cfg.ColsampleByNode <= 1, "colsample_bynode must be in (0, 1]")
	if err := r.done(); err != nil {
		return nil, err
	}
	return &XGBoost{cfg: cfg}, nil
}

// Name implementa ports.Backend.
func (b *XGBoost) Name() string { return NameXGBoost }

// Fit implementa ports.Backend.
func (b *XGBoost) Fit(ctx context.Context, X [][]float64, y []float64) (ports.Model, error) {
	p, err := checkTrainingSet(NameXGBoost, X, y)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(b.cfg.Seed))
	n := len(X)
	model := &additiveModel{features: p, base: stat.Mean(y, nil), rate: b.cfg.LearningRate}
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = model.base
	}
	resid := make([]float64, n)
	rows := int(math.Max(1, math.Round(b.cfg.Subsample*float64(n))))
	cols := int(math.Max(1, math.Round(b.cfg.ColsampleByNode*float64(p))))

	for round := 0; round < b.cfg.NEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ml.XGBoost.Fit: round %d: %w", round, err)
		}
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}

		idx := sampleRows(rng, n, rows)
		tree := growExact(X, resid, idx, growConfig{
			maxDepth:       b.cfg.MaxDepth,
			minSplit:       2,
			minLeaf:        1,
			minChildWeight: b.cfg.MinChildWeight,
			lambda:         b.cfg.Lambda,
			gamma:          b.cfg.Gamma,
			maxFeatures:    cols,
			rng:            treeRNG(rng, cols < p),
		})
		model.trees = append(model.trees, tree)
		for i := range pred {
			pred[i] += b.cfg.LearningRate * tree.predict(X[i])
		}
	}
	return model, nil
}

// sampleRows devuelve k índices sin reemplazo (todos, en orden, si k == n).
func sampleRows(rng *rand.Rand, n, k int) []int {
	if k >= n {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	return rng.Perm(n)[:k]
}

// treeRNG devuelve rng solo si hay muestreo de columnas.
func treeRNG(rng *rand.Rand, sampling bool) *rand.Rand {
	if !sampling {
		return nil
	}
	return rng
}
