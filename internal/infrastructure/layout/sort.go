package layout

import (
	"math"
	"sort"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/tsne/dist"
)

// Entry — элемент упорядоченной раскладки: идентификатор и значение ключа,
// по которому он занял своё место.
type Entry struct {
	ID  string
	Key float64
}

// SortByRef упорядочивает изображения по расстоянию до опорного изображения
// в заданной метрике. Изображения с неопределимым расстоянием идут в конец.
// Ничьи разрешаются по идентификатору, результат детерминирован.
func SortByRef(images []*domain.Image, metric dist.Metric, ref *domain.FeatureVector) []Entry {
	entries := make([]Entry, 0, len(images))
	for _, img := range images {
		key := math.Inf(1)
		if img.Feature != nil && ref != nil {
			key = metric.Dist(ref, img.Feature)
		}
		entries = append(entries, Entry{ID: img.ID, Key: key})
	}
	sortEntries(entries)
	return entries
}

// SortSigned упорядочивает изображения по скалярному ключу метрики:
// для палитровых метрик это средняя яркость палитры, для времени съёмки —
// момент съёмки. Изображения без ключа идут в конец.
func SortSigned(images []*domain.Image, metric dist.Metric) []Entry {
	entries := make([]Entry, 0, len(images))
	for _, img := range images {
		entries = append(entries, Entry{ID: img.ID, Key: scalarKey(metric, img.Feature)})
	}
	sortEntries(entries)
	return entries
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(a, b int) bool {
		ka, kb := entries[a].Key, entries[b].Key
		if ka != kb {
			// +Inf всегда проигрывает, NaN не встречается
			return ka < kb
		}
		return entries[a].ID < entries[b].ID
	})
}

func scalarKey(metric dist.Metric, f *domain.FeatureVector) float64 {
	if f == nil {
		return math.Inf(1)
	}

	switch metric.Name() {
	case "captured_at":
		if f.CapturedAt == nil {
			return math.Inf(1)
		}
		return float64(f.CapturedAt.Unix())
	default:
		if len(f.Palette) == 0 {
			return math.Inf(1)
		}
		var lum float64
		for _, sw := range f.Palette {
			lum += 0.299*float64(sw.R) + 0.587*float64(sw.G) + 0.114*float64(sw.B)
		}
		return lum / float64(len(f.Palette))
	}
}
