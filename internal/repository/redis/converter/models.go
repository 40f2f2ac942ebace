package converter

import "time"

// ImageInfoRedisModel — кэшируемое представление метаданных изображения.
type ImageInfoRedisModel struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	HasFeature bool       `json:"has_feature"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Camera     string     `json:"camera,omitempty"`
}
