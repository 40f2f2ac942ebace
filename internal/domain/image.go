package domain

import "time"

// Image описывает изображение коллекции. Оригинальные байты хранятся в S3,
// вектор признаков заполняется атомарно при загрузке.
type Image struct {
	ID           string // uuid
	CollectionID string // uuid владеющей коллекции
	Name         string // оригинальное имя файла
	Width        int
	Height       int
	Feature      *FeatureVector    // nil, если извлечение признаков не удалось
	Metadata     map[string]string // сырые EXIF-теги
	CreatedAt    time.Time
}

func NewImage(id string, collectionID string, name string, width int, height int, feature *FeatureVector, metadata map[string]string) *Image {
	return &Image{
		ID:           id,
		CollectionID: collectionID,
		Name:         name,
		Width:        width,
		Height:       height,
		Feature:      feature,
		Metadata:     metadata,
	}
}

// HasFeature сообщает, участвует ли изображение в вычислении эмбеддинга.
func (i *Image) HasFeature() bool {
	return i.Feature != nil && len(i.Feature.Palette) > 0
}
