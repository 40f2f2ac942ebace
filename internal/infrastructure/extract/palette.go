package extract

import (
	"image"
	"sort"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
)

// maxSamples — верхняя граница числа пикселей, участвующих в квантовании.
// Шаг выборки подбирается так, чтобы уложиться в бюджет на любом размере.
const maxSamples = 16384

type rgb struct {
	r, g, b uint8
}

// samplePixels равномерно выбирает пиксели изображения.
// Выборка детерминирована: фиксированный шаг, без случайности.
func samplePixels(img image.Image) []rgb {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return nil
	}

	step := 1
	for total/(step*step) > maxSamples {
		step++
	}

	samples := make([]rgb, 0, total/(step*step)+1)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, _ := img.At(x, y).RGBA()
			samples = append(samples, rgb{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)})
		}
	}

	return samples
}

// box — параллелепипед в RGB-пространстве для median-cut.
type box struct {
	pixels []rgb
}

// channelRanges возвращает размах значений по каждому каналу.
func (b *box) channelRanges() (int, int, int) {
	minR, minG, minB := 255, 255, 255
	maxR, maxG, maxB := 0, 0, 0
	for _, p := range b.pixels {
		minR, maxR = minMax(minR, maxR, int(p.r))
		minG, maxG = minMax(minG, maxG, int(p.g))
		minB, maxB = minMax(minB, maxB, int(p.b))
	}
	return maxR - minR, maxG - minG, maxB - minB
}

func minMax(lo, hi, v int) (int, int) {
	if v < lo {
		lo = v
	}
	if v > hi {
		hi = v
	}
	return lo, hi
}

// split делит бокс по медиане самого широкого канала.
func (b *box) split() (*box, *box) {
	rr, gr, br := b.channelRanges()

	var key func(p rgb) int
	switch {
	case rr >= gr && rr >= br:
		key = func(p rgb) int { return int(p.r) }
	case gr >= br:
		key = func(p rgb) int { return int(p.g) }
	default:
		key = func(p rgb) int { return int(p.b) }
	}

	sort.SliceStable(b.pixels, func(i, j int) bool {
		return key(b.pixels[i]) < key(b.pixels[j])
	})

	mid := len(b.pixels) / 2
	return &box{pixels: b.pixels[:mid]}, &box{pixels: b.pixels[mid:]}
}

// average возвращает средний цвет бокса.
func (b *box) average() domain.Swatch {
	if len(b.pixels) == 0 {
		return domain.Swatch{}
	}

	var sr, sg, sb uint64
	for _, p := range b.pixels {
		sr += uint64(p.r)
		sg += uint64(p.g)
		sb += uint64(p.b)
	}

	n := uint64(len(b.pixels))
	return domain.Swatch{
		R: uint8(sr / n),
		G: uint8(sg / n),
		B: uint8(sb / n),
	}
}

// medianCut квантует выборку пикселей в палитру из не более чем size цветов.
// Свотчи упорядочены по населённости бокса, самый массовый — первым.
func medianCut(samples []rgb, size int) []domain.Swatch {
	if len(samples) == 0 || size <= 0 {
		return nil
	}

	boxes := []*box{{pixels: samples}}
	for len(boxes) < size {
		// делим самый населённый бокс, который ещё можно разделить
		idx := -1
		for i, b := range boxes {
			if len(b.pixels) < 2 {
				continue
			}
			if idx < 0 || len(b.pixels) > len(boxes[idx].pixels) {
				idx = i
			}
		}
		if idx < 0 {
			break
		}

		lo, hi := boxes[idx].split()
		boxes[idx] = lo
		boxes = append(boxes, hi)
	}

	sort.SliceStable(boxes, func(i, j int) bool {
		return len(boxes[i].pixels) > len(boxes[j].pixels)
	})

	palette := make([]domain.Swatch, 0, len(boxes))
	for _, b := range boxes {
		if len(b.pixels) == 0 {
			continue
		}
		palette = append(palette, b.average())
	}

	return palette
}
