package domain

import "time"

// Swatch — один доминирующий цвет палитры изображения.
type Swatch struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// FeatureVector — компактное описание визуальных признаков изображения.
// Палитра является основным сигналом сходства для эмбеддинга.
type FeatureVector struct {
	Palette     []Swatch   // доминирующие цвета, упорядочены по населённости кластера
	Width       int
	Height      int
	CapturedAt  *time.Time // из EXIF DateTime, если присутствует
	Orientation int        // из EXIF Orientation, 0 — не задано
	Camera      string     // из EXIF Model, пустая строка — не задано
}

func NewFeatureVector(palette []Swatch, width int, height int) *FeatureVector {
	return &FeatureVector{
		Palette: palette,
		Width:   width,
		Height:  height,
	}
}

// AspectRatio возвращает отношение сторон изображения.
func (f *FeatureVector) AspectRatio() float64 {
	if f.Height == 0 {
		return 0
	}
	return float64(f.Width) / float64(f.Height)
}

// Vector разворачивает признаки в числовой вектор фиксированной размерности
// для индекса Qdrant: RGB-компоненты палитры, нормированные в [0,1],
// плюс отношение сторон. Недостающие свотчи дополняются нулями.
func (f *FeatureVector) Vector(paletteSize int) []float32 {
	vec := make([]float32, 0, paletteSize*3+1)
	for i := 0; i < paletteSize; i++ {
		if i < len(f.Palette) {
			s := f.Palette[i]
			vec = append(vec, float32(s.R)/255, float32(s.G)/255, float32(s.B)/255)
		} else {
			vec = append(vec, 0, 0, 0)
		}
	}

	return append(vec, float32(f.AspectRatio()))
}
