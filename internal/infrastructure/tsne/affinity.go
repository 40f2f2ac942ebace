package tsne

import (
	"math"
	"sort"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/tsne/dist"
)

// link — один элемент разреженной строки матрицы сходства.
type link struct {
	j int
	p float64
}

// neighborCount возвращает число ближайших соседей для калибровки:
// стандартные 3·perplexity, но не больше n-1.
func neighborCount(n int, perplexity float64) int {
	k := int(3 * perplexity)
	if k > n-1 {
		k = n - 1
	}
	if k < 1 {
		k = 1
	}
	return k
}

// nearestNeighbors находит k ближайших соседей каждой точки точным перебором
// по заданной метрике. Возвращает индексы и квадраты расстояний.
func nearestNeighbors(features []*domain.FeatureVector, k int, metric dist.Metric) ([][]int, [][]float64) {
	n := len(features)
	idx := make([][]int, n)
	dsq := make([][]float64, n)

	type cand struct {
		j int
		d float64
	}

	for i := 0; i < n; i++ {
		cands := make([]cand, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			d := metric.Dist(features[i], features[j])
			cands = append(cands, cand{j: j, d: d * d})
		}

		// устойчивая сортировка с разрешением ничьих по индексу —
		// результат не зависит от порядка обхода
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].d != cands[b].d {
				return cands[a].d < cands[b].d
			}
			return cands[a].j < cands[b].j
		})

		if len(cands) > k {
			cands = cands[:k]
		}

		idx[i] = make([]int, len(cands))
		dsq[i] = make([]float64, len(cands))
		for c, cd := range cands {
			idx[i][c] = cd.j
			dsq[i][c] = cd.d
		}
	}

	return idx, dsq
}

// calibrate подбирает для каждой точки точность гауссова ядра бинарным
// поиском так, чтобы энтропия распределения соседей соответствовала
// заданной перплексии. Возвращает условные вероятности p_{j|i}.
func calibrate(dsq [][]float64, perplexity float64) [][]float64 {
	const (
		maxIter = 50
		tol     = 1e-5
	)

	target := math.Log(perplexity)
	probs := make([][]float64, len(dsq))

	for i, row := range dsq {
		beta := 1.0
		betaMin := math.Inf(-1)
		betaMax := math.Inf(1)
		p := make([]float64, len(row))

		for iter := 0; iter < maxIter; iter++ {
			var sum float64
			for j, d := range row {
				p[j] = math.Exp(-beta * d)
				sum += p[j]
			}

			if sum == 0 {
				// все соседи на бесконечности: равномерное распределение
				for j := range p {
					p[j] = 1 / float64(len(p))
				}
				break
			}

			// H = log(sum) + beta * <d>
			var h float64
			for j, d := range row {
				p[j] /= sum
				if p[j] > 0 {
					h += beta * d * p[j]
				}
			}
			h += math.Log(sum)

			diff := h - target
			if math.Abs(diff) < tol {
				break
			}

			if diff > 0 {
				betaMin = beta
				if math.IsInf(betaMax, 1) {
					beta *= 2
				} else {
					beta = (beta + betaMax) / 2
				}
			} else {
				betaMax = beta
				if math.IsInf(betaMin, -1) {
					beta /= 2
				} else {
					beta = (beta + betaMin) / 2
				}
			}
		}

		probs[i] = p
	}

	return probs
}

// symmetrize строит симметричную разреженную матрицу сходства:
// p_ij = (p_{j|i} + p_{i|j}) / 2n. Строки упорядочены по индексу столбца.
func symmetrize(idx [][]int, probs [][]float64) [][]link {
	n := len(idx)
	rows := make([]map[int]float64, n)
	for i := range rows {
		rows[i] = make(map[int]float64, len(idx[i])*2)
	}

	norm := 2 * float64(n)
	for i := range idx {
		for c, j := range idx[i] {
			p := probs[i][c] / norm
			rows[i][j] += p
			rows[j][i] += p
		}
	}

	sym := make([][]link, n)
	for i, row := range rows {
		links := make([]link, 0, len(row))
		for j, p := range row {
			links = append(links, link{j: j, p: p})
		}
		sort.Slice(links, func(a, b int) bool { return links[a].j < links[b].j })
		sym[i] = links
	}

	return sym
}
