package converter

import "github.com/DRSN-tech/atlas-backend/internal/usecase"

// ImageInfoConverter преобразует метаданные изображений между usecase и моделью Redis.
type ImageInfoConverter interface {
	ToRedisModel(entity *usecase.ImageInfo) *ImageInfoRedisModel
	ToUseCase(model *ImageInfoRedisModel) *usecase.ImageInfo
	ToArrRedisModel(entities []usecase.ImageInfo) []ImageInfoRedisModel
	ToArrUseCase(models []ImageInfoRedisModel) []usecase.ImageInfo
}

type imageInfoConverter struct{}

func NewImageInfoConverter() ImageInfoConverter {
	return imageInfoConverter{}
}

func (imageInfoConverter) ToRedisModel(entity *usecase.ImageInfo) *ImageInfoRedisModel {
	return &ImageInfoRedisModel{
		ID:         entity.ID,
		Name:       entity.Name,
		Width:      entity.Width,
		Height:     entity.Height,
		HasFeature: entity.HasFeature,
		CapturedAt: entity.CapturedAt,
		Camera:     entity.Camera,
	}
}

func (imageInfoConverter) ToUseCase(model *ImageInfoRedisModel) *usecase.ImageInfo {
	return &usecase.ImageInfo{
		ID:         model.ID,
		Name:       model.Name,
		Width:      model.Width,
		Height:     model.Height,
		HasFeature: model.HasFeature,
		CapturedAt: model.CapturedAt,
		Camera:     model.Camera,
	}
}

func (c imageInfoConverter) ToArrRedisModel(entities []usecase.ImageInfo) []ImageInfoRedisModel {
	models := make([]ImageInfoRedisModel, 0, len(entities))
	for i := range entities {
		models = append(models, *c.ToRedisModel(&entities[i]))
	}
	return models
}

func (c imageInfoConverter) ToArrUseCase(models []ImageInfoRedisModel) []usecase.ImageInfo {
	entities := make([]usecase.ImageInfo, 0, len(models))
	for i := range models {
		entities = append(entities, *c.ToUseCase(&models[i]))
	}
	return entities
}
