package derive

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()

	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestGenerate_ThumbnailFitsBox(t *testing.T) {
	g := NewGenerator()
	src := encodePNG(t, 100, 50)

	data, ext, err := g.Generate(src, 40, 40, domain.KindThumbnail)
	require.NoError(t, err)
	assert.Equal(t, "png", ext)

	w, h := decodeDims(t, data)
	assert.LessOrEqual(t, w, 40)
	assert.LessOrEqual(t, h, 40)
	// пропорции 2:1 сохранены
	assert.Equal(t, 40, w)
	assert.Equal(t, 20, h)
}

func TestGenerate_PreviewFillsBox(t *testing.T) {
	g := NewGenerator()
	src := encodePNG(t, 100, 50)

	data, _, err := g.Generate(src, 40, 40, domain.KindPreview)
	require.NoError(t, err)

	w, h := decodeDims(t, data)
	assert.Equal(t, 40, w)
	assert.Equal(t, 40, h)
}

func TestGenerate_OriginalPassthrough(t *testing.T) {
	g := NewGenerator()
	src := encodePNG(t, 30, 30)

	data, ext, err := g.Generate(src, 10, 10, domain.KindOriginal)
	require.NoError(t, err)
	assert.Equal(t, "png", ext)
	assert.Equal(t, src, data, "оригинал отдаётся без перекодирования")
}

func TestGenerate_Deterministic(t *testing.T) {
	g := NewGenerator()
	src := encodePNG(t, 80, 60)

	first, _, err := g.Generate(src, 32, 32, domain.KindThumbnail)
	require.NoError(t, err)
	second, _, err := g.Generate(src, 32, 32, domain.KindThumbnail)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerate_InvalidDimensions(t *testing.T) {
	g := NewGenerator()
	src := encodePNG(t, 10, 10)

	for _, dims := range [][2]int{{0, 10}, {10, 0}, {-1, 10}} {
		_, _, err := g.Generate(src, dims[0], dims[1], domain.KindThumbnail)
		assert.ErrorIs(t, err, e.ErrInvalidDimensions)
	}
}

func TestGenerate_UnknownKind(t *testing.T) {
	g := NewGenerator()
	src := encodePNG(t, 10, 10)

	_, _, err := g.Generate(src, 10, 10, domain.DerivativeKind(99))
	assert.ErrorIs(t, err, e.ErrUnknownKind)
}

func TestGenerate_BadSource(t *testing.T) {
	g := NewGenerator()

	_, _, err := g.Generate([]byte("not an image"), 10, 10, domain.KindThumbnail)
	assert.ErrorIs(t, err, e.ErrUnsupportedFormat)
}
