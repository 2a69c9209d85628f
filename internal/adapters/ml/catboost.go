package ml

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/alejandrodnm/pricecast/internal/ports"
)

// CatBoostConfig configura el ordered boosting con árboles simétricos.
type CatBoostConfig struct {
	Iterations   int
	LearningRate float64
	Depth        int
	L2LeafReg    float64
	BorderCount  int
	Seed         int64
}

// CatBoost implementa ordered boosting:
//
//   - Una permutación aleatoria fija el "tiempo" de cada fila.
//   - Para elegir la estructura de cada árbol, el residuo de la fila en la posición k
//     se calcula contra un modelo que solo vio las filas en posiciones < k.
//   - Los árboles son simétricos (oblivious): el mismo (feature, borde) en todo un nivel.
type CatBoost struct {
	cfg CatBoostConfig
}

// NewCatBoost lee los hiperparámetros. Defaults: 100 iteraciones, lr 0.05, depth 6, l2 3.
func NewCatBoost(p Params) (*CatBoost, error) {
	r := newParamReader(NameCatBoost, p)
	cfg := CatBoostConfig{
		Iterations:   r.int("iterations", 100),
		LearningRate: r.float("learning_rate", 0.05),
		Depth:        r.int("depth", 6),
		L2LeafReg:    r.float("l2_leaf_reg", 3),
		BorderCount:  r.int("border_count", 254),
		Seed:         int64(r.int("seed", 42)),
	}
	r.check(cfg.Iterations > 0, "iterations must be positive")
	r.check(cfg.LearningRate > 0, "learning_rate must be positive")
	r.check(cfg.Depth > 0 && cfg.Depth <= 16, "depth must be in [1, 16]")
	r.check(cfg.L2LeafReg >= 0, "l2_leaf_reg must be >= 0")
	r.check(cfg.BorderCount >= 1 && cfg.BorderCount < 65535, "border_count must be in [1, 65534]")
	if err := r.done(); err != nil {
		return nil, err
	}
	return &CatBoost{cfg: cfg}, nil
}

// Name implementa ports.Backend.
func (b *CatBoost) Name() string { return NameCatBoost }

// obliviousTree tiene un split por nivel; la hoja es el número binario de los resultados.
type obliviousTree struct {
	features   []int
	thresholds []float64
	leaves     []float64
}

func (t *obliviousTree) predict(row []float64) float64 {
	return t.leaves[t.leafIndex(row)]
}

func (t *obliviousTree) leafIndex(row []float64) int {
	idx := 0
	for level, f := range t.features {
		if row[f] > t.thresholds[level] {
			idx |= 1 << level
		}
	}
	return idx
}

// Fit implementa ports.Backend.
func (b *CatBoost) Fit(ctx context.Context, X [][]float64, y []float64) (ports.Model, error) {
	p, err := checkTrainingSet(NameCatBoost, X, y)
	if err != nil {
		return nil, err
	}

	n := len(X)
	mapper := newBinMapper(X, b.cfg.BorderCount+1)
	bins := mapper.transform(X)
	perm := rand.New(rand.NewSource(b.cfg.Seed)).Perm(n)

	model := &additiveModel{features: p, base: stat.Mean(y, nil), rate: b.cfg.LearningRate}
	pred := make([]float64, n)    // predicción del modelo completo
	ordered := make([]float64, n) // predicción de cada fila usando solo su prefijo
	for i := range pred {
		pred[i] = model.base
		ordered[i] = model.base
	}
	resid := make([]float64, n)
	orderedResid := make([]float64, n)

	for it := 0; it < b.cfg.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ml.CatBoost.Fit: iteration %d: %w", it, err)
		}
		for i := range resid {
			resid[i] = y[i] - pred[i]
			orderedResid[i] = y[i] - ordered[i]
		}

		// La estructura se elige con los residuos ordenados; los valores de
		// las hojas salen de los residuos del modelo completo.
		tree, leafOf := b.growOblivious(bins, orderedResid, mapper)
		b.fitLeaves(tree, resid, leafOf)
		model.trees = append(model.trees, tree)
		for i, l := range leafOf {
			pred[i] += b.cfg.LearningRate * tree.leaves[l]
		}

		// Actualización ordenada: la fila en la posición k solo usa las filas
		// anteriores de su misma hoja.
		size := len(tree.leaves)
		prefSum := make([]float64, size)
		prefCnt := make([]float64, size)
		for _, i := range perm {
			l := leafOf[i]
			ordered[i] += b.cfg.LearningRate * leafWeight(prefSum[l], prefCnt[l], b.cfg.L2LeafReg)
			prefSum[l] += orderedResid[i]
			prefCnt[l]++
		}
	}
	return model, nil
}

// growOblivious elige nivel a nivel el (feature, borde) que maximiza el score
// sumado sobre todas las hojas actuales. Se detiene antes de Depth si ningún
// split mejora. Devuelve el árbol (sin valores) y la hoja de cada fila.
func (b *CatBoost) growOblivious(bins [][]uint16, g []float64, mapper *binMapper) (*obliviousTree, []int) {
	n := len(bins)
	p := len(bins[0])
	lambda := b.cfg.L2LeafReg
	leafOf := make([]int, n)
	tree := &obliviousTree{}

	for level := 0; level < b.cfg.Depth; level++ {
		numLeaves := 1 << level
		leafG := make([]float64, numLeaves)
		leafN := make([]float64, numLeaves)
		for i := 0; i < n; i++ {
			leafG[leafOf[i]] += g[i]
			leafN[leafOf[i]]++
		}
		var current float64
		for l := range leafG {
			current += leafScore(leafG[l], leafN[l], lambda)
		}

		bestGain, bestF, bestBin := minGain, -1, -1
		for f := 0; f < p; f++ {
			nb := mapper.numBins(f)
			if nb < 2 {
				continue
			}
			histG := make([]float64, numLeaves*nb)
			histN := make([]float64, numLeaves*nb)
			for i := 0; i < n; i++ {
				k := leafOf[i]*nb + int(bins[i][f])
				histG[k] += g[i]
				histN[k]++
			}
			cumG := make([]float64, numLeaves)
			cumN := make([]float64, numLeaves)
			for k := 0; k < nb-1; k++ {
				var score float64
				for l := 0; l < numLeaves; l++ {
					cumG[l] += histG[l*nb+k]
					cumN[l] += histN[l*nb+k]
					gl, nl := cumG[l], cumN[l]
					gr, nr := leafG[l]-gl, leafN[l]-nl
					score += leafScore(gl, nl, lambda) + leafScore(gr, nr, lambda)
				}
				if gain := score - current; gain > bestGain {
					bestGain, bestF, bestBin = gain, f, k
				}
			}
		}
		if bestF < 0 {
			break
		}

		tree.features = append(tree.features, bestF)
		tree.thresholds = append(tree.thresholds, mapper.borders[bestF][bestBin])
		for i := 0; i < n; i++ {
			if int(bins[i][bestF]) > bestBin {
				leafOf[i] |= 1 << level
			}
		}
	}
	tree.leaves = make([]float64, 1<<len(tree.features))
	return tree, leafOf
}

// fitLeaves asigna a cada hoja sum(g)/(n + l2_leaf_reg) sobre todas las filas.
func (b *CatBoost) fitLeaves(tree *obliviousTree, g []float64, leafOf []int) {
	sums := make([]float64, len(tree.leaves))
	counts := make([]float64, len(tree.leaves))
	for i, l := range leafOf {
		sums[l] += g[i]
		counts[l]++
	}
	for l := range tree.leaves {
		tree.leaves[l] = leafWeight(sums[l], counts[l], b.cfg.L2LeafReg)
	}
}

// leafWeight es G/(n+λ), 0 para una hoja vacía.
func leafWeight(g, n, lambda float64) float64 {
	if n == 0 {
		return 0
	}
	return g / (n + lambda)
}

// leafScore es G²/(n+λ), 0 para una hoja vacía.
func leafScore(g, n, lambda float64) float64 {
	if n == 0 {
		return 0
	}
	return g * g / (n + lambda)
}
