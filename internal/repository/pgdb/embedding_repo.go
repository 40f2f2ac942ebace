package pgdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
)

// EmbeddingRepo хранит опубликованные поколения укладок в PostgreSQL.
type EmbeddingRepo struct {
	pool *pgxpool.Pool
	conv converter.EmbeddingConverter
}

func NewEmbeddingRepo(pool *pgxpool.Pool, conv converter.EmbeddingConverter) *EmbeddingRepo {
	return &EmbeddingRepo{
		pool: pool,
		conv: conv,
	}
}

// Create записывает новое поколение укладки. Поколения немутируемы,
// конфликт ключа означает гонку публикаций и возвращается как ошибка.
func (r *EmbeddingRepo) Create(ctx context.Context, embedding *domain.Embedding) (*domain.Embedding, error) {
	model, err := r.conv.ToModel(embedding)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO embeddings (collection_id, generation, seed, points, excluded)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at;
	`

	err = q(ctx, r.pool).QueryRow(ctx, query,
		model.CollectionID,
		model.Generation,
		model.Seed,
		model.Points,
		model.Excluded,
	).Scan(&model.CreatedAt)
	if err != nil {
		if postgresDuplicate(err) {
			return nil, fmt.Errorf("%s: generation %d of collection %s already published",
				whereami.WhereAmI(), embedding.Generation, embedding.CollectionID)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToEntity(model)
}

func (r *EmbeddingRepo) GetByGeneration(ctx context.Context, collectionID string, generation int64) (*domain.Embedding, error) {
	query := `
		SELECT collection_id, generation, seed, points, excluded, created_at
		FROM embeddings
		WHERE collection_id = $1 AND generation = $2;
	`

	var model converter.EmbeddingModel
	err := q(ctx, r.pool).QueryRow(ctx, query, collectionID, generation).Scan(
		&model.CollectionID,
		&model.Generation,
		&model.Seed,
		&model.Points,
		&model.Excluded,
		&model.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToEntity(&model)
}
