package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/alejandrodnm/pricecast/internal/ports"
)

// LightGBMConfig configura el boosting por histogramas con crecimiento leaf-wise.
type LightGBMConfig struct {
	NEstimators     int
	LearningRate    float64
	NumLeaves       int
	MaxDepth        int // <= 0 = sin límite
	MinDataInLeaf   int
	MaxBin          int
	LambdaL2        float64
	FeatureFraction float64
	BaggingFraction float64
	Seed            int64
}

// LightGBM discretiza las features una vez (max_bin bordes por cuantiles) y en cada
// ronda crece un árbol best-first: siempre parte la hoja con mayor ganancia hasta
// llegar a num_leaves. Es un algoritmo de boosting independiente del de XGBoost
// (búsqueda sobre histogramas, no umbrales exactos; hojas en vez de niveles).
type LightGBM struct {
	cfg LightGBMConfig
}

// NewLightGBM lee los hiperparámetros. Defaults de LGBMRegressor(n_estimators=100).
func NewLightGBM(p Params) (*LightGBM, error) {
	r := newParamReader(NameLightGBM, p)
	cfg := LightGBMConfig{
		NEstimators:     r.int("n_estimators", 100),
		LearningRate:    r.float("learning_rate", 0.1),
		NumLeaves:       r.int("num_leaves", 31),
		MaxDepth:        r.int("max_depth", -1),
		MinDataInLeaf:   r.int("min_data_in_leaf", 20),
		MaxBin:          r.int("max_bin", 255),
		LambdaL2:        r.float("lambda_l2", 0),
		FeatureFraction: r.float("feature_fraction", 1),
		BaggingFraction: r.float("bagging_fraction", 1),
		Seed:            int64(r.int("seed", 0)),
	}
	r.check(cfg.NEstimators > 0, "n_estimators must be positive")
	r.check(cfg.LearningRate > 0, "learning_rate must be positive")
	r.check(cfg.NumLeaves >= 2, "num_leaves must be >= 2")
	r.check(cfg.MinDataInLeaf >= 1, "min_data_in_leaf must be >= 1")
	r.check(cfg.MaxBin >= 2 && cfg.MaxBin <= math.MaxUint16, "max_bin must be in [2, 65535]")
	r.check(cfg.LambdaL2 >= 0, "lambda_l2 must be >= 0")
	r.check(cfg.FeatureFraction > 0 && cfg.FeatureFraction <= 1, "feature_fraction must be in (0, 1]")
	r.check(cfg.BaggingFraction > 0 && cfg.BaggingFraction <= 1, "bagging_fraction must be in (0, 1]")
	if err := r.done(); err != nil {
		return nil, err
	}
	return &LightGBM{cfg: cfg}, nil
}

// Name implementa ports.Backend.
func (b *LightGBM) Name() string { return NameLightGBM }

// Fit implementa ports.Backend.
func (b *LightGBM) Fit(ctx context.Context, X [][]float64, y []float64) (ports.Model, error) {
	p, err := checkTrainingSet(NameLightGBM, X, y)
	if err != nil {
		return nil, err
	}

	mapper := newBinMapper(X, b.cfg.MaxBin)
	bins := mapper.transform(X)
	rng := rand.New(rand.NewSource(b.cfg.Seed))
	n := len(X)

	model := &additiveModel{features: p, base: stat.Mean(y, nil), rate: b.cfg.LearningRate}
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = model.base
	}
	resid := make([]float64, n)
	rows := int(math.Max(1, math.Round(b.cfg.BaggingFraction*float64(n))))
	cols := int(math.Max(1, math.Round(b.cfg.FeatureFraction*float64(p))))

	for round := 0; round < b.cfg.NEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ml.LightGBM.Fit: round %d: %w", round, err)
		}
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}

		features := sampleFeatureSet(rng, p, cols)
		tree := b.growLeafWise(bins, resid, sampleRows(rng, n, rows), features, mapper)
		model.trees = append(model.trees, tree)
		for i := range pred {
			pred[i] += b.cfg.LearningRate * tree.predict(X[i])
		}
	}
	return model, nil
}

type histSplit struct {
	feature int
	bin     int
	gain    float64
	ok      bool
}

type openLeaf struct {
	node  int
	idx   []int
	depth int
	split histSplit
}

func (b *LightGBM) growLeafWise(bins [][]uint16, g []float64, idx []int, features []int, mapper *binMapper) *regTree {
	t := &regTree{}
	root := openLeaf{node: t.addLeaf(b.leafValue(g, idx)), idx: idx}
	root.split = b.bestHistSplit(bins, g, root, features, mapper)
	leaves := []openLeaf{root}

	for numLeaves := 1; numLeaves < b.cfg.NumLeaves; numLeaves++ {
		best := -1
		for i, l := range leaves {
			if l.split.ok && (best < 0 || l.split.gain > leaves[best].split.gain) {
				best = i
			}
		}
		if best < 0 {
			break
		}

		leaf := leaves[best]
		var left, right []int
		for _, i := range leaf.idx {
			if int(bins[i][leaf.split.feature]) <= leaf.split.bin {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}

		l := openLeaf{node: t.addLeaf(b.leafValue(g, left)), idx: left, depth: leaf.depth + 1}
		r := openLeaf{node: t.addLeaf(b.leafValue(g, right)), idx: right, depth: leaf.depth + 1}
		t.nodes[leaf.node] = node{
			feature:   leaf.split.feature,
			threshold: mapper.borders[leaf.split.feature][leaf.split.bin],
			left:      l.node,
			right:     r.node,
		}
		l.split = b.bestHistSplit(bins, g, l, features, mapper)
		r.split = b.bestHistSplit(bins, g, r, features, mapper)

		leaves[best] = l
		leaves = append(leaves, r)
	}
	return t
}

func (b *LightGBM) leafValue(g []float64, idx []int) float64 {
	return sumAt(g, idx) / (float64(len(idx)) + b.cfg.LambdaL2)
}

func (b *LightGBM) bestHistSplit(bins [][]uint16, g []float64, leaf openLeaf, features []int, mapper *binMapper) histSplit {
	best := histSplit{}
	if len(leaf.idx) < 2*b.cfg.MinDataInLeaf {
		return best
	}
	if b.cfg.MaxDepth > 0 && leaf.depth >= b.cfg.MaxDepth {
		return best
	}

	lambda := b.cfg.LambdaL2
	n := len(leaf.idx)
	G := sumAt(g, leaf.idx)
	parent := G * G / (float64(n) + lambda)

	for _, f := range features {
		nb := mapper.numBins(f)
		if nb < 2 {
			continue
		}
		histG := make([]float64, nb)
		histN := make([]int, nb)
		for _, i := range leaf.idx {
			histG[bins[i][f]] += g[i]
			histN[bins[i][f]]++
		}

		var gl float64
		var nl int
		for k := 0; k < nb-1; k++ {
			gl += histG[k]
			nl += histN[k]
			nr := n - nl
			if nl < b.cfg.MinDataInLeaf || nr < b.cfg.MinDataInLeaf {
				continue
			}
			gr := G - gl
			gain := 0.5 * (gl*gl/(float64(nl)+lambda) + gr*gr/(float64(nr)+lambda) - parent)
			if gain > minGain && (!best.ok || gain > best.gain) {
				best = histSplit{feature: f, bin: k, gain: gain, ok: true}
			}
		}
	}
	return best
}

// sampleFeatureSet elige k features (ordenadas) para un árbol.
func sampleFeatureSet(rng *rand.Rand, p, k int) []int {
	if k >= p {
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all
	}
	set := rng.Perm(p)[:k]
	sort.Ints(set)
	return set
}
