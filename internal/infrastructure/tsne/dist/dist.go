// Package dist содержит подключаемые метрики расстояния между векторами
// признаков изображений. Метрика — отдельный компонент: движок эмбеддинга
// и режимы сортировки принимают её как зависимость.
package dist

import (
	"math"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
)

// Metric вычисляет расстояние между признаками двух изображений.
// Для изображений без нужных данных возвращается +Inf.
type Metric interface {
	Name() string
	Dist(a, b *domain.FeatureVector) float64
}

// Parse возвращает метрику по её имени.
func Parse(name string) (Metric, error) {
	switch name {
	case "", "palette":
		return Palette{}, nil
	case "palette_cos":
		return PaletteCos{}, nil
	case "captured_at":
		return CapturedAt{}, nil
	default:
		return nil, e.Wrap(name, e.ErrUnknownMetric)
	}
}

// Palette — евклидово расстояние по выровненным свотчам палитры
// с небольшим вкладом отношения сторон.
type Palette struct{}

func (Palette) Name() string { return "palette" }

func (Palette) Dist(a, b *domain.FeatureVector) float64 {
	if a == nil || b == nil || len(a.Palette) == 0 || len(b.Palette) == 0 {
		return math.Inf(1)
	}

	n := len(a.Palette)
	if len(b.Palette) < n {
		n = len(b.Palette)
	}

	var sum float64
	for i := 0; i < n; i++ {
		dr := float64(a.Palette[i].R) - float64(b.Palette[i].R)
		dg := float64(a.Palette[i].G) - float64(b.Palette[i].G)
		db := float64(a.Palette[i].B) - float64(b.Palette[i].B)
		sum += dr*dr + dg*dg + db*db
	}

	// палитра в диапазоне сотен, аспект — единиц; масштабируем вклад аспекта
	da := (a.AspectRatio() - b.AspectRatio()) * 64
	sum += da * da

	return math.Sqrt(sum)
}

// PaletteCos — косинусное расстояние по развёрнутой палитре.
type PaletteCos struct{}

func (PaletteCos) Name() string { return "palette_cos" }

func (PaletteCos) Dist(a, b *domain.FeatureVector) float64 {
	if a == nil || b == nil || len(a.Palette) == 0 || len(b.Palette) == 0 {
		return math.Inf(1)
	}

	n := len(a.Palette)
	if len(b.Palette) < n {
		n = len(b.Palette)
	}

	var dot, sqA, sqB float64
	for i := 0; i < n; i++ {
		ca := [3]float64{float64(a.Palette[i].R), float64(a.Palette[i].G), float64(a.Palette[i].B)}
		cb := [3]float64{float64(b.Palette[i].R), float64(b.Palette[i].G), float64(b.Palette[i].B)}

		for j := 0; j < 3; j++ {
			dot += ca[j] * cb[j]
			sqA += ca[j] * ca[j]
			sqB += cb[j] * cb[j]
		}
	}

	if sqA == 0 || sqB == 0 {
		return math.Inf(1)
	}

	return 1 - dot/(math.Sqrt(sqA)*math.Sqrt(sqB))
}

// CapturedAt — расстояние по времени съёмки в секундах.
type CapturedAt struct{}

func (CapturedAt) Name() string { return "captured_at" }

func (CapturedAt) Dist(a, b *domain.FeatureVector) float64 {
	if a == nil || b == nil || a.CapturedAt == nil || b.CapturedAt == nil {
		return math.Inf(1)
	}

	return math.Abs(a.CapturedAt.Sub(*b.CapturedAt).Seconds())
}
