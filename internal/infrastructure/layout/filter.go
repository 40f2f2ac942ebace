package layout

import "github.com/DRSN-tech/atlas-backend/internal/domain"

// Filter отсекает изображения, непригодные для выбранного режима раскладки.
type Filter struct {
	RequirePalette    bool
	RequireCapturedAt bool
	Limit             int
}

// Apply возвращает изображения, прошедшие фильтр, сохраняя исходный порядок.
func (f Filter) Apply(images []*domain.Image) []*domain.Image {
	out := make([]*domain.Image, 0, len(images))
	for _, img := range images {
		if f.RequirePalette && (img.Feature == nil || len(img.Feature.Palette) == 0) {
			continue
		}
		if f.RequireCapturedAt && (img.Feature == nil || img.Feature.CapturedAt == nil) {
			continue
		}
		out = append(out, img)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}
