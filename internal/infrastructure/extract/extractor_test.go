package extract

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodePNG кодирует однотонное изображение с красной полосой сверху.
func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA{B: 200, A: 255}
			if y < height/4 {
				c = color.NRGBA{R: 220, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtract_PNG(t *testing.T) {
	ex := NewExtractor()
	raw := encodePNG(t, 64, 48)

	res, err := ex.Extract(raw)
	require.NoError(t, err)

	assert.Equal(t, "png", res.Format)
	assert.Equal(t, 64, res.Width)
	assert.Equal(t, 48, res.Height)

	require.NotNil(t, res.Feature)
	assert.Equal(t, 64, res.Feature.Width)
	assert.Equal(t, 48, res.Feature.Height)
	assert.NotEmpty(t, res.Feature.Palette)
	assert.LessOrEqual(t, len(res.Feature.Palette), PaletteSize)
}

func TestExtract_Deterministic(t *testing.T) {
	ex := NewExtractor()
	raw := encodePNG(t, 100, 80)

	first, err := ex.Extract(raw)
	require.NoError(t, err)
	second, err := ex.Extract(raw)
	require.NoError(t, err)

	assert.Equal(t, first.Feature.Palette, second.Feature.Palette)
}

func TestExtract_DominantColorFirst(t *testing.T) {
	// три четверти изображения — синие, первый свотч должен быть синим
	ex := NewExtractor()
	raw := encodePNG(t, 64, 64)

	res, err := ex.Extract(raw)
	require.NoError(t, err)
	require.NotEmpty(t, res.Feature.Palette)

	first := res.Feature.Palette[0]
	assert.Greater(t, first.B, first.R, "доминирующий цвет должен быть синим")
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	ex := NewExtractor()

	_, err := ex.Extract([]byte("definitely not an image"))
	assert.ErrorIs(t, err, e.ErrUnsupportedFormat)
}

func TestExtract_CorruptImage(t *testing.T) {
	ex := NewExtractor()
	raw := encodePNG(t, 32, 32)

	// валидная сигнатура PNG, обрезанное тело
	_, err := ex.Extract(raw[:20])
	assert.ErrorIs(t, err, e.ErrCorruptImage)
}

func TestExtract_Empty(t *testing.T) {
	ex := NewExtractor()

	_, err := ex.Extract(nil)
	assert.ErrorIs(t, err, e.ErrCorruptImage)
}

func TestMedianCut(t *testing.T) {
	samples := make([]rgb, 0, 300)
	for i := 0; i < 200; i++ {
		samples = append(samples, rgb{r: 250, g: 10, b: 10})
	}
	for i := 0; i < 100; i++ {
		samples = append(samples, rgb{r: 10, g: 10, b: 250})
	}

	palette := medianCut(samples, 4)
	require.NotEmpty(t, palette)
	assert.LessOrEqual(t, len(palette), 4)

	// самый населённый кластер — красный
	assert.Greater(t, palette[0].R, palette[0].B)
}

func TestMedianCut_Edge(t *testing.T) {
	assert.Nil(t, medianCut(nil, 4))
	assert.Nil(t, medianCut([]rgb{{r: 1}}, 0))

	// меньше пикселей, чем запрошено цветов
	palette := medianCut([]rgb{{r: 100, g: 100, b: 100}}, 6)
	assert.Len(t, palette, 1)
}
