package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/alejandrodnm/pricecast/internal/ports"
)

// ForestConfig configura el random forest (bagging de árboles CART).
type ForestConfig struct {
	NEstimators     int
	MaxDepth        int     // 0 = sin límite
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     float64 // fracción de features por split, (0, 1]
	Bootstrap       bool
	Seed            int64
	Workers         int // goroutines para entrenar árboles (0 = NumCPU)
}

// Forest es el backend random forest.
type Forest struct {
	cfg ForestConfig
}

// NewForest lee los hiperparámetros. Defaults como RandomForestRegressor(n_estimators=100, random_state=42).
func NewForest(p Params) (*Forest, error) {
	r := newParamReader(NameRandomForest, p)
	cfg := ForestConfig{
		NEstimators:     r.int("n_estimators", 100),
		MaxDepth:        r.int("max_depth", 0),
		MinSamplesSplit: r.int("min_samples_split", 2),
		MinSamplesLeaf:  r.int("min_samples_leaf", 1),
		MaxFeatures:     r.float("max_features", 1.0),
		Bootstrap:       r.bool("bootstrap", true),
		Seed:            int64(r.int("seed", 42)),
		Workers:         r.int("n_jobs", 0),
	}
	r.check(cfg.NEstimators > 0, "n_estimators must be positive")
	r.check(cfg.MaxDepth >= 0, "max_depth must be >= 0")
	r.check(cfg.MinSamplesSplit >= 2, "min_samples_split must be >= 2")
	r.check(cfg.MinSamplesLeaf >= 1, "min_samples_leaf must be >= 1")
	r.check(cfg.MaxFeatures > 0 && cfg.MaxFeatures <= 1, "max_features must be in (0, 1]")
	if err := r.done(); err != nil {
		return nil, err
	}
	return &Forest{cfg: cfg}, nil
}

// Name implementa ports.Backend.
func (f *Forest) Name() string { return NameRandomForest }

// Fit entrena NEstimators árboles en paralelo. Cada árbol usa la semilla Seed+i,
// así que el resultado no depende del orden en que terminan las goroutines.
func (f *Forest) Fit(ctx context.Context, X [][]float64, y []float64) (ports.Model, error) {
	p, err := checkTrainingSet(NameRandomForest, X, y)
	if err != nil {
		return nil, err
	}

	maxFeatures := int(math.Ceil(f.cfg.MaxFeatures * float64(p)))
	workers := f.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	trees := make([]predictor, f.cfg.NEstimators)
	workCh := make(chan int, f.cfg.NEstimators)
	for i := 0; i < f.cfg.NEstimators; i++ {
		workCh <- i
	}
	close(workCh)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				if ctx.Err() != nil {
					return
				}
				trees[i] = f.fitTree(X, y, maxFeatures, f.cfg.Seed+int64(i))
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ml.Forest.Fit: %w", err)
	}
	return &averageModel{features: p, trees: trees}, nil
}

func (f *Forest) fitTree(X [][]float64, y []float64, maxFeatures int, seed int64) predictor {
	rng := rand.New(rand.NewSource(seed))
	n := len(X)
	idx := make([]int, n)
	for j := range idx {
		if f.cfg.Bootstrap {
			idx[j] = rng.Intn(n)
		} else {
			idx[j] = j
		}
	}
	return growExact(X, y, idx, growConfig{
		maxDepth:    f.cfg.MaxDepth,
		minSplit:    f.cfg.MinSamplesSplit,
		minLeaf:     f.cfg.MinSamplesLeaf,
		maxFeatures: maxFeatures,
		rng:         rng,
	})
}
