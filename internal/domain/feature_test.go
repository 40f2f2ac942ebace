package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeatureVector_AspectRatio(t *testing.T) {
	f := NewFeatureVector(nil, 200, 100)
	assert.Equal(t, 2.0, f.AspectRatio())

	degenerate := NewFeatureVector(nil, 200, 0)
	assert.Equal(t, 0.0, degenerate.AspectRatio())
}

func TestFeatureVector_Vector(t *testing.T) {
	f := NewFeatureVector([]Swatch{{R: 255, G: 0, B: 0}, {R: 0, G: 255, B: 0}}, 100, 100)

	vec := f.Vector(6)
	assert.Len(t, vec, 6*3+1)

	assert.Equal(t, float32(1), vec[0])
	assert.Equal(t, float32(0), vec[1])
	assert.Equal(t, float32(1), vec[4])

	// Недостающие свотчи забиты нулями
	for i := 6; i < 18; i++ {
		assert.Equal(t, float32(0), vec[i])
	}

	assert.Equal(t, float32(1), vec[18])
}

func TestImage_HasFeature(t *testing.T) {
	img := &Image{ID: "a"}
	assert.False(t, img.HasFeature())

	img.Feature = NewFeatureVector(nil, 10, 10)
	assert.False(t, img.HasFeature())

	img.Feature.Palette = []Swatch{{R: 1, G: 2, B: 3}}
	assert.True(t, img.HasFeature())
}
