package ml

import (
	"math/rand"
	"sort"
)

// node es un nodo de un árbol binario de regresión. Las hojas tienen feature = -1.
// Una fila va a la izquierda si row[feature] <= threshold.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

// regTree es un árbol de regresión almacenado en un slice plano (raíz = 0).
type regTree struct {
	nodes []node
}

func (t *regTree) predict(row []float64) float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.feature < 0 {
			return n.value
		}
		if row[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

func (t *regTree) addLeaf(value float64) int {
	t.nodes = append(t.nodes, node{feature: -1, value: value})
	return len(t.nodes) - 1
}

// minGain evita splits que solo mejoran por ruido de redondeo.
const minGain = 1e-12

// growConfig controla el crecimiento greedy exacto (CART / xgboost exact).
//
// Cada fila i aporta un "gradiente" g[i] y hessiano 1. El valor de una hoja es
// G/(n+lambda) y el score de un nodo G²/(n+lambda): con lambda = 0 y g = y es
// exactamente la reducción de SSE del CART clásico.
type growConfig struct {
	maxDepth       int // 0 = sin límite
	minSplit       int
	minLeaf        int
	minChildWeight float64
	lambda         float64
	gamma          float64
	maxFeatures    int // 0 = todas
	rng            *rand.Rand
}

type splitCandidate struct {
	feature   int
	threshold float64
	gain      float64
	ok        bool
}

// growExact construye un árbol depth-first probando todos los umbrales
// (puntos medios entre valores distintos consecutivos).
func growExact(X [][]float64, g []float64, idx []int, cfg growConfig) *regTree {
	t := &regTree{}
	p := len(X[0])
	features := make([]int, p)
	for i := range features {
		features[i] = i
	}
	growNode(t, X, g, idx, 0, features, cfg)
	return t
}

func growNode(t *regTree, X [][]float64, g []float64, idx []int, depth int, features []int, cfg growConfig) int {
	G := sumAt(g, idx)
	leafValue := G / (float64(len(idx)) + cfg.lambda)

	if len(idx) < cfg.minSplit || (cfg.maxDepth > 0 && depth >= cfg.maxDepth) {
		return t.addLeaf(leafValue)
	}

	best := bestExactSplit(X, g, idx, G, sampleFeatures(features, cfg), cfg)
	if !best.ok {
		return t.addLeaf(leafValue)
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	at := len(t.nodes)
	t.nodes = append(t.nodes, node{feature: best.feature, threshold: best.threshold})
	l := growNode(t, X, g, left, depth+1, features, cfg)
	r := growNode(t, X, g, right, depth+1, features, cfg)
	t.nodes[at].left = l
	t.nodes[at].right = r
	return at
}

// sampleFeatures elige maxFeatures features al azar (sin reemplazo) en cada nodo.
func sampleFeatures(all []int, cfg growConfig) []int {
	if cfg.maxFeatures <= 0 || cfg.maxFeatures >= len(all) || cfg.rng == nil {
		return all
	}
	perm := cfg.rng.Perm(len(all))[:cfg.maxFeatures]
	sort.Ints(perm)
	out := make([]int, len(perm))
	for i, j := range perm {
		out[i] = all[j]
	}
	return out
}

func bestExactSplit(X [][]float64, g []float64, idx []int, G float64, features []int, cfg growConfig) splitCandidate {
	n := float64(len(idx))
	parent := G * G / (n + cfg.lambda)
	best := splitCandidate{}

	order := make([]int, len(idx))
	for _, f := range features {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var gl float64
		for k := 0; k < len(order)-1; k++ {
			gl += g[order[k]]
			nl := float64(k + 1)
			nr := n - nl
			cur, next := X[order[k]][f], X[order[k+1]][f]
			if cur == next {
				continue
			}
			if k+1 < cfg.minLeaf || len(order)-k-1 < cfg.minLeaf {
				continue
			}
			if nl < cfg.minChildWeight || nr < cfg.minChildWeight {
				continue
			}
			gr := G - gl
			gain := 0.5*(gl*gl/(nl+cfg.lambda)+gr*gr/(nr+cfg.lambda)-parent) - cfg.gamma
			if gain > minGain && (!best.ok || gain > best.gain) {
				best = splitCandidate{feature: f, threshold: cur + (next-cur)/2, gain: gain, ok: true}
			}
		}
	}
	return best
}

func sumAt(v []float64, idx []int) float64 {
	var s float64
	for _, i := range idx {
		s += v[i]
	}
	return s
}
