package usecase

import (
	"time"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/layout"
)

// IMAGE USECASE

// ImageFile представляет файл, загруженный через multipart/form-data.
type ImageFile struct {
	Data     []byte // байты изображения
	MimeType string // Content-Type из multipart (image/jpeg)
	Size     int64  // фактический размер в байтах
	Name     string // оригинальное имя файла (для логов)
}

// IngestReq — запрос на загрузку изображений в коллекцию.
type IngestReq struct {
	CollectionID string
	Files        []ImageFile
}

// FailedFile — файл, не прошедший пайплайн загрузки, с причиной отказа.
type FailedFile struct {
	Name   string
	Reason string
}

// IngestRes — результат загрузки: принятые изображения и отбракованные файлы.
type IngestRes struct {
	Images []ImageInfo
	Failed []FailedFile
}

// ImageInfo — DTO с информацией об изображении для внешнего использования.
type ImageInfo struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	HasFeature bool       `json:"has_feature"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Camera     string     `json:"camera,omitempty"`
}

// DerivativeReq — запрос производной версии изображения.
type DerivativeReq struct {
	ImageID string
	Width   int
	Height  int
	Kind    domain.DerivativeKind
}

// DerivativeRes — байты производной и расширение её кодировки.
type DerivativeRes struct {
	Data      []byte
	Extension string
}

// SimilarInfo — результат поиска похожих изображений.
type SimilarInfo struct {
	ImageID string  `json:"image_id"`
	Score   float32 `json:"score"`
}

// COLLECTION USECASE

// CreateCollectionReq — запрос на создание коллекции.
type CreateCollectionReq struct {
	Name string
}

// CollectionInfo — DTO с информацией о коллекции.
type CollectionInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Finalized  bool      `json:"finalized"`
	Generation int64     `json:"generation"`
	Stale      bool      `json:"stale"`
	CreatedAt  time.Time `json:"created_at"`
}

// FinalizeReq — запрос на финализацию коллекции. Force принуждает пересчёт
// уже финализированной коллекции; nil Seed означает случайное зерно.
type FinalizeReq struct {
	CollectionID string
	Force        bool
	Metric       string
	Seed         *int64
}

// FinalizeRes — результат финализации. NoChanges выставляется при
// идемпотентном повторе без принуждения.
type FinalizeRes struct {
	Generation int64    `json:"generation"`
	Seed       int64    `json:"seed"`
	Excluded   []string `json:"excluded,omitempty"`
	NoChanges  bool     `json:"no_changes,omitempty"`
}

// Режимы раскладки.
const (
	LayoutMap      = "map"
	LayoutSort     = "sort"
	LayoutTimehist = "timehist"
)

// LayoutReq — запрос раскладки коллекции.
type LayoutReq struct {
	CollectionID      string
	Mode              string // map | sort | timehist
	Metric            string // palette | palette_cos | captured_at
	ComparedTo        string // опорное изображение для режима sort
	Resolution        string // шаг гистограммы для режима timehist
	RequirePalette    bool
	RequireCapturedAt bool
	RequireFresh      bool // режим map: отклонять устаревшую укладку вместо выдачи
	Limit             int
}

// LayoutRes — раскладка в одном из режимов: заполнено поле своего режима.
type LayoutRes struct {
	Mode       string                  `json:"mode"`
	Generation int64                   `json:"generation,omitempty"`
	Points     map[string]domain.Point `json:"points,omitempty"`
	Excluded   []string                `json:"excluded,omitempty"`
	Entries    []layout.Entry          `json:"entries,omitempty"`
	Buckets    []layout.Bucket         `json:"buckets,omitempty"`
}

// INFRASTRUCTURE

// ExtractRes — результат извлечения признаков из изображения.
type ExtractRes struct {
	Feature  *domain.FeatureVector
	Metadata map[string]string
	Format   string
	Width    int
	Height   int
}

// WriteRawMessageReq — запрос на отправку сырого сообщения в Kafka.
type WriteRawMessageReq struct {
	CollectionID string
	Payload      []byte
}

// OUTBOX

type EventStatus string

const (
	Pending    EventStatus = "pending"
	Processing EventStatus = "processing"
	Processed  EventStatus = "processed"
)

// Типы событий outbox.
const (
	EventCollectionFinalized = "collection.finalized"
	EventImageUploaded       = "image.uploaded"
)

// OutboxEvent — событие, записанное в outbox в транзакции с доменным
// изменением и доставляемое в Kafka фоновым worker'ом.
type OutboxEvent struct {
	ID           int64
	EventID      string // uuid
	EventType    string
	CollectionID string
	Payload      []byte
	Status       EventStatus
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// CollectionFinalizedPayload — полезная нагрузка события финализации.
type CollectionFinalizedPayload struct {
	CollectionID string `json:"collection_id"`
	Generation   int64  `json:"generation"`
	Seed         int64  `json:"seed"`
}

// ImageUploadedPayload — полезная нагрузка события загрузки изображения.
type ImageUploadedPayload struct {
	CollectionID string `json:"collection_id"`
	ImageID      string `json:"image_id"`
	Name         string `json:"name"`
}

// MAPPERS

func NewImageFile(data []byte, mimeType string, size int64, name string) *ImageFile {
	return &ImageFile{
		Data:     data,
		MimeType: mimeType,
		Size:     size,
		Name:     name,
	}
}

func NewIngestReq(collectionID string, files []ImageFile) *IngestReq {
	return &IngestReq{
		CollectionID: collectionID,
		Files:        files,
	}
}

func NewIngestRes(images []ImageInfo, failed []FailedFile) *IngestRes {
	return &IngestRes{
		Images: images,
		Failed: failed,
	}
}

func NewImageInfo(img *domain.Image) ImageInfo {
	info := ImageInfo{
		ID:         img.ID,
		Name:       img.Name,
		Width:      img.Width,
		Height:     img.Height,
		HasFeature: img.HasFeature(),
	}
	if img.Feature != nil {
		info.CapturedAt = img.Feature.CapturedAt
		info.Camera = img.Feature.Camera
	}
	return info
}

func NewDerivativeReq(imageID string, width, height int, kind domain.DerivativeKind) *DerivativeReq {
	return &DerivativeReq{
		ImageID: imageID,
		Width:   width,
		Height:  height,
		Kind:    kind,
	}
}

func NewDerivativeRes(data []byte, extension string) *DerivativeRes {
	return &DerivativeRes{
		Data:      data,
		Extension: extension,
	}
}

func NewCollectionInfo(c *domain.Collection) CollectionInfo {
	return CollectionInfo{
		ID:         c.ID,
		Name:       c.Name,
		Finalized:  c.Finalized,
		Generation: c.Generation,
		Stale:      c.EmbeddingStale,
		CreatedAt:  c.CreatedAt,
	}
}

func NewExtractRes(feature *domain.FeatureVector, metadata map[string]string, format string, width, height int) *ExtractRes {
	return &ExtractRes{
		Feature:  feature,
		Metadata: metadata,
		Format:   format,
		Width:    width,
		Height:   height,
	}
}

func NewWriteRawMessageReq(collectionID string, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		CollectionID: collectionID,
		Payload:      payload,
	}
}

func NewOutboxEvent(eventID string, eventType string, collectionID string, payload []byte) *OutboxEvent {
	return &OutboxEvent{
		EventID:      eventID,
		EventType:    eventType,
		CollectionID: collectionID,
		Payload:      payload,
		Status:       Pending,
		CreatedAt:    time.Now(),
	}
}
