package pgdb

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
)

// CollectionRepo реализует репозиторий коллекций поверх PostgreSQL.
type CollectionRepo struct {
	pool *pgxpool.Pool
	conv converter.CollectionConverter
}

func NewCollectionRepo(pool *pgxpool.Pool, conv converter.CollectionConverter) *CollectionRepo {
	return &CollectionRepo{
		pool: pool,
		conv: conv,
	}
}

func (c *CollectionRepo) Create(ctx context.Context, collection *domain.Collection) (*domain.Collection, error) {
	query := `
		INSERT INTO collections (name)
		VALUES ($1)
		RETURNING id, name, finalized, generation, embedding_stale, created_at, updated_at;
	`

	var model converter.CollectionModel
	err := q(ctx, c.pool).QueryRow(ctx, query, collection.Name).Scan(
		&model.ID,
		&model.Name,
		&model.Finalized,
		&model.Generation,
		&model.EmbeddingStale,
		&model.CreatedAt,
		&model.UpdatedAt,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return c.conv.ToEntity(&model), nil
}

func (c *CollectionRepo) Get(ctx context.Context, id string) (*domain.Collection, error) {
	query := `
		SELECT id, name, finalized, generation, embedding_stale, created_at, updated_at
		FROM collections
		WHERE id = $1;
	`

	var model converter.CollectionModel
	err := q(ctx, c.pool).QueryRow(ctx, query, id).Scan(
		&model.ID,
		&model.Name,
		&model.Finalized,
		&model.Generation,
		&model.EmbeddingStale,
		&model.CreatedAt,
		&model.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return c.conv.ToEntity(&model), nil
}

func (c *CollectionRepo) List(ctx context.Context) ([]*domain.Collection, error) {
	query := `
		SELECT id, name, finalized, generation, embedding_stale, created_at, updated_at
		FROM collections
		ORDER BY created_at;
	`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]*domain.Collection, 0)
	for rows.Next() {
		var model converter.CollectionModel
		if err := rows.Scan(
			&model.ID,
			&model.Name,
			&model.Finalized,
			&model.Generation,
			&model.EmbeddingStale,
			&model.CreatedAt,
			&model.UpdatedAt,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, c.conv.ToEntity(&model))
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// PublishGeneration переключает коллекцию на новое поколение укладки
// и снимает отметку устаревания. Вызывается в одной транзакции с записью
// самой укладки, чтобы переключение было атомарным.
func (c *CollectionRepo) PublishGeneration(ctx context.Context, id string, generation int64) error {
	query := `
		UPDATE collections
		SET finalized = TRUE, generation = $2, embedding_stale = FALSE, updated_at = NOW()
		WHERE id = $1;
	`

	tag, err := q(ctx, c.pool).Exec(ctx, query, id, generation)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return e.Wrap(whereami.WhereAmI(), e.ErrNotFound)
	}

	return nil
}

func (c *CollectionRepo) MarkStale(ctx context.Context, id string, stale bool) error {
	query := `
		UPDATE collections
		SET embedding_stale = $2, updated_at = NOW()
		WHERE id = $1;
	`

	tag, err := q(ctx, c.pool).Exec(ctx, query, id, stale)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return e.Wrap(whereami.WhereAmI(), e.ErrNotFound)
	}

	return nil
}
