package usecase

import (
	"context"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
)

type CollectionRepository interface {
	Create(ctx context.Context, collection *domain.Collection) (*domain.Collection, error)
	Get(ctx context.Context, id string) (*domain.Collection, error)
	List(ctx context.Context) ([]*domain.Collection, error)
	// PublishGeneration переключает коллекцию на новое поколение и снимает
	// отметку устаревания; выполняется в транзакции вместе с записью эмбеддинга.
	PublishGeneration(ctx context.Context, id string, generation int64) error
	MarkStale(ctx context.Context, id string, stale bool) error
}

type ImageRepository interface {
	Create(ctx context.Context, image *domain.Image) (*domain.Image, error)
	Get(ctx context.Context, id string) (*domain.Image, error)
	ListByCollection(ctx context.Context, collectionID string) ([]*domain.Image, error)
	Delete(ctx context.Context, id string) error
}

type DerivativeRepository interface {
	Upsert(ctx context.Context, derivative *domain.Derivative) error
	Get(ctx context.Context, imageID string, width, height int, kind domain.DerivativeKind) (*domain.Derivative, error)
	// GetOriginal возвращает запись оригинала изображения независимо от его габаритов.
	GetOriginal(ctx context.Context, imageID string) (*domain.Derivative, error)
	// ListKeysByImage возвращает ключи блобов всех производных изображения
	// для зачистки хранилища при каскадном удалении.
	ListKeysByImage(ctx context.Context, imageID string) ([]string, error)
	DeleteByImage(ctx context.Context, imageID string) error
}

type EmbeddingRepository interface {
	Create(ctx context.Context, embedding *domain.Embedding) (*domain.Embedding, error)
	GetByGeneration(ctx context.Context, collectionID string, generation int64) (*domain.Embedding, error)
}

// BlobRepository — байтовое хранилище оригиналов и производных (MinIO).
type BlobRepository interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	// Cleanup удаляет объекты в фоне, ошибки только логируются.
	Cleanup(keys []string)
}

// FeatureIndexRepository — индекс векторов признаков для поиска похожих (Qdrant).
type FeatureIndexRepository interface {
	Upsert(ctx context.Context, imageID string, collectionID string, vector []float32) error
	Delete(ctx context.Context, imageID string) error
	Search(ctx context.Context, vector []float32, collectionID string, limit int) ([]SimilarInfo, error)
}

// CacheRepository — кэш метаданных изображений коллекции (Redis).
type CacheRepository interface {
	GetImages(ctx context.Context, collectionID string) ([]ImageInfo, error)
	SetImages(ctx context.Context, collectionID string, images []ImageInfo) error
	DeleteImages(ctx context.Context, collectionID string) error
}

type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
}
