package tsne

import (
	"context"
	"math"
	"math/rand"

	"github.com/jimlawless/whereami"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/tsne/dist"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
)

const (
	exaggerationFactor = 12.0
	exaggerationIters  = 250
	momentumSwitchIter = 250
	initialMomentum    = 0.5
	finalMomentum      = 0.8
	minGain            = 0.01
	initScale          = 1e-4
)

// Params — гиперпараметры укладки.
type Params struct {
	Perplexity   float64
	Iterations   int
	LearningRate float64
	Theta        float64
}

// Input — одна точка для укладки: идентификатор изображения и его признаки.
type Input struct {
	ID      string
	Feature *domain.FeatureVector
}

// Engine вычисляет двумерную укладку коллекции методом t-SNE
// с приближением Барнса-Хата для отталкивающих сил.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Embed строит укладку для переданных точек. Точки без пригодных для метрики
// признаков исключаются и возвращаются вторым значением. Одинаковые seed и
// вход дают одинаковый результат. Контекст проверяется на каждой итерации.
func (en *Engine) Embed(ctx context.Context, inputs []Input, seed int64, p Params, metric dist.Metric) (map[string]domain.Point, []string, error) {
	valid := make([]Input, 0, len(inputs))
	excluded := make([]string, 0)
	for _, in := range inputs {
		if in.Feature == nil || math.IsInf(metric.Dist(in.Feature, in.Feature), 1) {
			excluded = append(excluded, in.ID)
			continue
		}
		valid = append(valid, in)
	}

	n := len(valid)
	if n < 2 {
		return nil, nil, e.Wrap(whereami.WhereAmI(), e.ErrInsufficientData)
	}

	perplexity := p.Perplexity
	if float64(n-1) < 3*perplexity {
		perplexity = float64(n-1) / 3
		if perplexity < 1 {
			perplexity = 1
		}
	}

	features := make([]*domain.FeatureVector, n)
	for i, in := range valid {
		features[i] = in.Feature
	}

	k := neighborCount(n, perplexity)
	idx, dsq := nearestNeighbors(features, k, metric)
	probs := calibrate(dsq, perplexity)
	sym := symmetrize(idx, probs)

	rng := rand.New(rand.NewSource(seed))
	pos := make([][2]float64, n)
	for i := range pos {
		pos[i][0] = rng.NormFloat64() * initScale
		pos[i][1] = rng.NormFloat64() * initScale
	}

	grad := make([][2]float64, n)
	vel := make([][2]float64, n)
	gains := make([][2]float64, n)
	for i := range gains {
		gains[i] = [2]float64{1, 1}
	}

	for iter := 0; iter < p.Iterations; iter++ {
		select {
		case <-ctx.Done():
			return nil, nil, e.Wrap(whereami.WhereAmI(), e.ErrCancelled)
		default:
		}

		exaggeration := 1.0
		if iter < exaggerationIters {
			exaggeration = exaggerationFactor
		}

		computeGradient(pos, sym, p.Theta, exaggeration, grad)

		momentum := initialMomentum
		if iter >= momentumSwitchIter {
			momentum = finalMomentum
		}

		for i := range pos {
			for d := 0; d < 2; d++ {
				if (grad[i][d] > 0) != (vel[i][d] > 0) {
					gains[i][d] += 0.2
				} else {
					gains[i][d] *= 0.8
				}
				if gains[i][d] < minGain {
					gains[i][d] = minGain
				}
				vel[i][d] = momentum*vel[i][d] - p.LearningRate*gains[i][d]*grad[i][d]
				pos[i][d] += vel[i][d]
			}
		}
	}

	normalize(pos)

	points := make(map[string]domain.Point, n)
	for i, in := range valid {
		points[in.ID] = domain.Point{X: pos[i][0], Y: pos[i][1]}
	}

	return points, excluded, nil
}

// computeGradient считает градиент KL-дивергенции: притягивающие силы по
// разреженной матрице сходства, отталкивающие — через квадродерево либо
// точным перебором при theta == 0.
func computeGradient(pos [][2]float64, sym [][]link, theta, exaggeration float64, grad [][2]float64) {
	n := len(pos)

	negX := make([]float64, n)
	negY := make([]float64, n)
	var sumQ float64

	if theta > 0 {
		tree := newQuadTree(pos)
		for i := range pos {
			tree.negForces(pos[i][0], pos[i][1], theta, &negX[i], &negY[i], &sumQ)
		}
	} else {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				dx := pos[i][0] - pos[j][0]
				dy := pos[i][1] - pos[j][1]
				q := 1 / (1 + dx*dx + dy*dy)
				sumQ += q
				negX[i] += q * q * dx
				negY[i] += q * q * dy
			}
		}
	}
	if sumQ == 0 {
		sumQ = 1e-12
	}

	for i := range pos {
		var ax, ay float64
		for _, l := range sym[i] {
			dx := pos[i][0] - pos[l.j][0]
			dy := pos[i][1] - pos[l.j][1]
			q := 1 / (1 + dx*dx + dy*dy)
			w := exaggeration * l.p * q
			ax += w * dx
			ay += w * dy
		}
		grad[i][0] = ax - negX[i]/sumQ
		grad[i][1] = ay - negY[i]/sumQ
	}
}

// normalize приводит координаты к квадрату [0,1]².
func normalize(pos [][2]float64) {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, pt := range pos {
		minX = math.Min(minX, pt[0])
		maxX = math.Max(maxX, pt[0])
		minY = math.Min(minY, pt[1])
		maxY = math.Max(maxY, pt[1])
	}

	rangeX := maxX - minX
	rangeY := maxY - minY

	for i := range pos {
		if rangeX > 0 {
			pos[i][0] = (pos[i][0] - minX) / rangeX
		} else {
			pos[i][0] = 0.5
		}
		if rangeY > 0 {
			pos[i][1] = (pos[i][1] - minY) / rangeY
		} else {
			pos[i][1] = 0.5
		}
	}
}
