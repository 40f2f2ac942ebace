package derive

import (
	"bytes"
	"errors"
	"image"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/disintegration/imaging"
	"github.com/jimlawless/whereami"
)

// jpegQuality — качество перекодирования JPEG. Значение фиксировано:
// одинаковые входы обязаны давать байтово-идентичный результат.
const jpegQuality = 85

// Generator создаёт производные версии изображений.
// Детерминированная чистая функция от (исходник, ширина, высота, вид).
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate выполняет ресемплинг исходного изображения под запрошенный вид.
// Thumbnail вписывается в рамку с сохранением пропорций,
// Preview накрывает рамку и обрезается до точного размера.
// Возвращает байты и расширение кодировки результата.
func (g *Generator) Generate(src []byte, width, height int, kind domain.DerivativeKind) ([]byte, string, error) {
	if width <= 0 || height <= 0 {
		return nil, "", e.Wrap(whereami.WhereAmI(), e.ErrInvalidDimensions)
	}
	if !kind.Valid() {
		return nil, "", e.Wrap(whereami.WhereAmI(), e.ErrUnknownKind)
	}

	img, format, err := decode(src)
	if err != nil {
		return nil, "", err
	}

	// Оригинал отдаётся без перекодирования.
	if kind == domain.KindOriginal {
		return src, extensionFor(format), nil
	}

	var resized *image.NRGBA
	switch kind {
	case domain.KindThumbnail:
		// Fit не увеличивает изображения меньше рамки.
		resized = imaging.Fit(img, width, height, imaging.Lanczos)
	case domain.KindPreview:
		resized = imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
	}

	encFormat, ext := encodingFor(format)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, encFormat, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, "", e.Wrap(whereami.WhereAmI(), err)
	}

	return buf.Bytes(), ext, nil
}

// decode разбирает исходное изображение, классифицируя ошибку.
func decode(src []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", e.Wrap(whereami.WhereAmI(), e.ErrUnsupportedFormat)
		}
		return nil, "", e.Wrap(err.Error(), e.ErrCorruptImage)
	}

	return img, format, nil
}

// encodingFor выбирает кодировку результата по формату исходника.
// Для форматов без энкодера производные сохраняются как JPEG.
func encodingFor(format string) (imaging.Format, string) {
	switch format {
	case "png":
		return imaging.PNG, "png"
	case "gif":
		return imaging.GIF, "gif"
	case "bmp":
		return imaging.BMP, "bmp"
	case "tiff":
		return imaging.TIFF, "tiff"
	default:
		return imaging.JPEG, "jpg"
	}
}

// extensionFor возвращает расширение файла для формата декодера.
func extensionFor(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
