package converter

import (
	"encoding/json"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/usecase"
)

// CollectionConverter преобразует сущности Collection между domain и моделью PostgreSQL.
type CollectionConverter interface {
	ToModel(entity *domain.Collection) *CollectionModel
	ToEntity(model *CollectionModel) *domain.Collection
}

// ImageConverter преобразует сущности Image между domain и моделью PostgreSQL.
// Вектор признаков сериализуется в JSONB, поэтому обратное преобразование может вернуть ошибку.
type ImageConverter interface {
	ToModel(entity *domain.Image) (*ImageModel, error)
	ToEntity(model *ImageModel) (*domain.Image, error)
}

// DerivativeConverter преобразует сущности Derivative между domain и моделью PostgreSQL.
type DerivativeConverter interface {
	ToModel(entity *domain.Derivative) *DerivativeModel
	ToEntity(model *DerivativeModel) (*domain.Derivative, error)
}

// EmbeddingConverter преобразует сущности Embedding между domain и моделью PostgreSQL.
type EmbeddingConverter interface {
	ToModel(entity *domain.Embedding) (*EmbeddingModel, error)
	ToEntity(model *EmbeddingModel) (*domain.Embedding, error)
}

// OutboxEventConverter преобразует сущности OutboxEvent между usecase и моделью PostgreSQL.
type OutboxEventConverter interface {
	ToModel(entity *usecase.OutboxEvent) *OutboxEventModel
	ToEntity(model *OutboxEventModel) *usecase.OutboxEvent
	ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent
}

type collectionConverter struct{}

func NewCollectionConverter() CollectionConverter {
	return collectionConverter{}
}

func (collectionConverter) ToModel(entity *domain.Collection) *CollectionModel {
	return &CollectionModel{
		ID:             entity.ID,
		Name:           entity.Name,
		Finalized:      entity.Finalized,
		Generation:     entity.Generation,
		EmbeddingStale: entity.EmbeddingStale,
		CreatedAt:      entity.CreatedAt,
		UpdatedAt:      entity.UpdatedAt,
	}
}

func (collectionConverter) ToEntity(model *CollectionModel) *domain.Collection {
	return &domain.Collection{
		ID:             model.ID,
		Name:           model.Name,
		Finalized:      model.Finalized,
		Generation:     model.Generation,
		EmbeddingStale: model.EmbeddingStale,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

type imageConverter struct{}

func NewImageConverter() ImageConverter {
	return imageConverter{}
}

func (imageConverter) ToModel(entity *domain.Image) (*ImageModel, error) {
	model := &ImageModel{
		ID:           entity.ID,
		CollectionID: entity.CollectionID,
		Name:         entity.Name,
		Width:        entity.Width,
		Height:       entity.Height,
		CreatedAt:    entity.CreatedAt,
	}

	if entity.Feature != nil {
		feature, err := json.Marshal(entity.Feature)
		if err != nil {
			return nil, err
		}
		model.Feature = feature
	}

	if len(entity.Metadata) > 0 {
		metadata, err := json.Marshal(entity.Metadata)
		if err != nil {
			return nil, err
		}
		model.Metadata = metadata
	}

	return model, nil
}

func (imageConverter) ToEntity(model *ImageModel) (*domain.Image, error) {
	entity := &domain.Image{
		ID:           model.ID,
		CollectionID: model.CollectionID,
		Name:         model.Name,
		Width:        model.Width,
		Height:       model.Height,
		CreatedAt:    model.CreatedAt,
	}

	if len(model.Feature) > 0 {
		var feature domain.FeatureVector
		if err := json.Unmarshal(model.Feature, &feature); err != nil {
			return nil, err
		}
		entity.Feature = &feature
	}

	if len(model.Metadata) > 0 {
		if err := json.Unmarshal(model.Metadata, &entity.Metadata); err != nil {
			return nil, err
		}
	}

	return entity, nil
}

type derivativeConverter struct{}

func NewDerivativeConverter() DerivativeConverter {
	return derivativeConverter{}
}

func (derivativeConverter) ToModel(entity *domain.Derivative) *DerivativeModel {
	return &DerivativeModel{
		ImageID:   entity.ImageID,
		Width:     entity.Width,
		Height:    entity.Height,
		Kind:      int(entity.Kind),
		Extension: entity.Extension,
	}
}

func (derivativeConverter) ToEntity(model *DerivativeModel) (*domain.Derivative, error) {
	kind, err := domain.KindFromInt(model.Kind)
	if err != nil {
		return nil, err
	}

	return &domain.Derivative{
		ImageID:   model.ImageID,
		Width:     model.Width,
		Height:    model.Height,
		Kind:      kind,
		Extension: model.Extension,
	}, nil
}

type embeddingConverter struct{}

func NewEmbeddingConverter() EmbeddingConverter {
	return embeddingConverter{}
}

func (embeddingConverter) ToModel(entity *domain.Embedding) (*EmbeddingModel, error) {
	points, err := json.Marshal(entity.Points)
	if err != nil {
		return nil, err
	}

	excluded, err := json.Marshal(entity.Excluded)
	if err != nil {
		return nil, err
	}

	return &EmbeddingModel{
		CollectionID: entity.CollectionID,
		Generation:   entity.Generation,
		Seed:         entity.Seed,
		Points:       points,
		Excluded:     excluded,
		CreatedAt:    entity.CreatedAt,
	}, nil
}

func (embeddingConverter) ToEntity(model *EmbeddingModel) (*domain.Embedding, error) {
	entity := &domain.Embedding{
		CollectionID: model.CollectionID,
		Generation:   model.Generation,
		Seed:         model.Seed,
		CreatedAt:    model.CreatedAt,
	}

	if err := json.Unmarshal(model.Points, &entity.Points); err != nil {
		return nil, err
	}

	if len(model.Excluded) > 0 {
		if err := json.Unmarshal(model.Excluded, &entity.Excluded); err != nil {
			return nil, err
		}
	}

	return entity, nil
}

type outboxEventConverter struct{}

func NewOutboxEventConverter() OutboxEventConverter {
	return outboxEventConverter{}
}

func (outboxEventConverter) ToModel(entity *usecase.OutboxEvent) *OutboxEventModel {
	return &OutboxEventModel{
		ID:           entity.ID,
		EventID:      entity.EventID,
		EventType:    entity.EventType,
		CollectionID: entity.CollectionID,
		Payload:      entity.Payload,
		Status:       string(entity.Status),
		CreatedAt:    entity.CreatedAt,
		ProcessedAt:  entity.ProcessedAt,
	}
}

func (outboxEventConverter) ToEntity(model *OutboxEventModel) *usecase.OutboxEvent {
	return &usecase.OutboxEvent{
		ID:           model.ID,
		EventID:      model.EventID,
		EventType:    model.EventType,
		CollectionID: model.CollectionID,
		Payload:      model.Payload,
		Status:       usecase.EventStatus(model.Status),
		CreatedAt:    model.CreatedAt,
		ProcessedAt:  model.ProcessedAt,
	}
}

func (c outboxEventConverter) ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent {
	entities := make([]*usecase.OutboxEvent, 0, len(models))
	for _, model := range models {
		entities = append(entities, c.ToEntity(model))
	}
	return entities
}
