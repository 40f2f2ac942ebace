package extract

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/usecase"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
	_ "github.com/disintegration/imaging" // регистрация декодеров bmp/tiff
	"github.com/jimlawless/whereami"
)

// PaletteSize — фиксированный размер палитры доминирующих цветов.
const PaletteSize = 6

// Extractor вычисляет вектор признаков изображения: палитру доминирующих
// цветов, габариты и метаданные съёмки из EXIF. Чистая функция без общего
// состояния, безопасна для параллельного вызова.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract декодирует изображение и строит вектор признаков.
// Возвращает e.ErrUnsupportedFormat для неизвестных кодировок
// и e.ErrCorruptImage при ошибке декодирования.
func (ex *Extractor) Extract(raw []byte) (*usecase.ExtractRes, error) {
	img, format, err := decode(raw)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	feature := domain.NewFeatureVector(
		medianCut(samplePixels(img), PaletteSize),
		bounds.Dx(),
		bounds.Dy(),
	)

	// Отсутствие EXIF не является ошибкой, поля остаются незаполненными.
	metadata := readExif(raw, feature)

	return usecase.NewExtractRes(feature, metadata, format, bounds.Dx(), bounds.Dy()), nil
}

// decode разбирает изображение, классифицируя ошибку декодирования.
func decode(raw []byte) (image.Image, string, error) {
	if len(raw) == 0 {
		return nil, "", e.Wrap(whereami.WhereAmI(), e.ErrCorruptImage)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", e.Wrap(whereami.WhereAmI(), e.ErrUnsupportedFormat)
		}
		return nil, "", e.Wrap(err.Error(), e.ErrCorruptImage)
	}

	return img, format, nil
}
