package extract

import (
	"bytes"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// walkFunc адаптирует функцию под интерфейс exif.Walker.
type walkFunc func(name exif.FieldName, tag *tiff.Tag) error

func (f walkFunc) Walk(name exif.FieldName, tag *tiff.Tag) error {
	return f(name, tag)
}

// readExif заполняет метаданные съёмки из EXIF-блока изображения
// и возвращает сырые теги. Отсутствие или повреждение EXIF игнорируется.
func readExif(raw []byte, feature *domain.FeatureVector) map[string]string {
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil
	}

	if dt, err := x.DateTime(); err == nil {
		feature.CapturedAt = &dt
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			feature.Orientation = v
		}
	}

	if tag, err := x.Get(exif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			feature.Camera = s
		}
	}

	metadata := make(map[string]string)
	_ = x.Walk(walkFunc(func(name exif.FieldName, tag *tiff.Tag) error {
		metadata[string(name)] = tag.String()
		return nil
	}))

	if len(metadata) == 0 {
		return nil
	}

	return metadata
}
