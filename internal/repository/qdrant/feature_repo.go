package qdrant

import (
	"context"

	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"

	"github.com/DRSN-tech/atlas-backend/internal/cfg"
	"github.com/DRSN-tech/atlas-backend/internal/usecase"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
)

// FeatureRepo — индекс векторов признаков изображений в Qdrant
// для поиска похожих.
type FeatureRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewFeatureRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *FeatureRepo {
	return &FeatureRepo{
		client: client,
		cfg:    cfg,
	}
}

// Upsert сохраняет или обновляет вектор признаков изображения.
func (q *FeatureRepo) Upsert(ctx context.Context, imageID string, collectionID string, vector []float32) error {
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(imageID),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"collection_id": collectionID,
				}),
			},
		},
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (q *FeatureRepo) Delete(ctx context.Context, imageID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(imageID)),
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Search возвращает ближайшие по вектору изображения коллекции.
func (q *FeatureRepo) Search(ctx context.Context, vector []float32, collectionID string, limit int) ([]usecase.SimilarInfo, error) {
	limitU := uint64(limit)

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitU,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("collection_id", collectionID),
			},
		},
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result := make([]usecase.SimilarInfo, 0, len(points))
	for _, point := range points {
		id := point.GetId().GetUuid()
		if id == "" {
			continue
		}
		result = append(result, usecase.SimilarInfo{
			ImageID: id,
			Score:   point.GetScore(),
		})
	}

	return result, nil
}
