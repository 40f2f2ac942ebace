package domain

import (
	"fmt"

	"github.com/DRSN-tech/atlas-backend/pkg/e"
)

// DerivativeKind — назначение производной версии изображения.
type DerivativeKind int

const (
	KindOriginal DerivativeKind = iota
	KindThumbnail
	KindPreview
)

// kindNames — явная таблица соответствия для хранимой целочисленной кодировки.
var kindNames = map[DerivativeKind]string{
	KindOriginal:  "original",
	KindThumbnail: "thumbnail",
	KindPreview:   "preview",
}

func (k DerivativeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid сообщает, известен ли данный вид производной.
func (k DerivativeKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind разбирает строковое представление вида производной.
func ParseKind(s string) (DerivativeKind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, e.Wrap(s, e.ErrUnknownKind)
}

// KindFromInt восстанавливает вид производной из хранимой кодировки.
func KindFromInt(v int) (DerivativeKind, error) {
	k := DerivativeKind(v)
	if !k.Valid() {
		return 0, e.Wrap(fmt.Sprintf("%d", v), e.ErrUnknownKind)
	}
	return k, nil
}

// Derivative — немутируемая производная версия изображения,
// однозначно определяемая ключом (image id, width, height, kind).
type Derivative struct {
	ImageID   string
	Width     int
	Height    int
	Kind      DerivativeKind
	Extension string // расширение кодировки, например "jpg"
	Data      []byte
}

func NewDerivative(imageID string, width int, height int, kind DerivativeKind, extension string, data []byte) *Derivative {
	return &Derivative{
		ImageID:   imageID,
		Width:     width,
		Height:    height,
		Kind:      kind,
		Extension: extension,
		Data:      data,
	}
}

// ObjectKey возвращает детерминированный ключ объекта в блоб-хранилище.
func (d *Derivative) ObjectKey() string {
	return DerivativeObjectKey(d.ImageID, d.Width, d.Height, d.Kind, d.Extension)
}

// DerivativeObjectKey строит ключ блоба производной по составному ключу.
func DerivativeObjectKey(imageID string, width, height int, kind DerivativeKind, ext string) string {
	return fmt.Sprintf("%s/%dx%d-%s.%s", imageID, width, height, kind, ext)
}

// MimeForExtension возвращает Content-Type для расширения производной.
func MimeForExtension(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
