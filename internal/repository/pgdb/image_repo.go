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

// ImageRepo реализует репозиторий метаданных изображений поверх PostgreSQL.
type ImageRepo struct {
	pool *pgxpool.Pool
	conv converter.ImageConverter
}

func NewImageRepo(pool *pgxpool.Pool, conv converter.ImageConverter) *ImageRepo {
	return &ImageRepo{
		pool: pool,
		conv: conv,
	}
}

func (i *ImageRepo) Create(ctx context.Context, image *domain.Image) (*domain.Image, error) {
	model, err := i.conv.ToModel(image)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO images (id, collection_id, name, width, height, feature, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at;
	`

	err = q(ctx, i.pool).QueryRow(ctx, query,
		model.ID,
		model.CollectionID,
		model.Name,
		model.Width,
		model.Height,
		model.Feature,
		model.Metadata,
	).Scan(&model.CreatedAt)
	if err != nil {
		if postgresDuplicate(err) {
			return nil, fmt.Errorf("%s: image with id %s already exists", whereami.WhereAmI(), image.ID)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return i.conv.ToEntity(model)
}

func (i *ImageRepo) Get(ctx context.Context, id string) (*domain.Image, error) {
	query := `
		SELECT id, collection_id, name, width, height, feature, metadata, created_at
		FROM images
		WHERE id = $1;
	`

	var model converter.ImageModel
	err := q(ctx, i.pool).QueryRow(ctx, query, id).Scan(
		&model.ID,
		&model.CollectionID,
		&model.Name,
		&model.Width,
		&model.Height,
		&model.Feature,
		&model.Metadata,
		&model.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return i.conv.ToEntity(&model)
}

func (i *ImageRepo) ListByCollection(ctx context.Context, collectionID string) ([]*domain.Image, error) {
	query := `
		SELECT id, collection_id, name, width, height, feature, metadata, created_at
		FROM images
		WHERE collection_id = $1
		ORDER BY created_at, id;
	`

	rows, err := q(ctx, i.pool).Query(ctx, query, collectionID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]*domain.Image, 0)
	for rows.Next() {
		var model converter.ImageModel
		if err := rows.Scan(
			&model.ID,
			&model.CollectionID,
			&model.Name,
			&model.Width,
			&model.Height,
			&model.Feature,
			&model.Metadata,
			&model.CreatedAt,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		image, err := i.conv.ToEntity(&model)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		result = append(result, image)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

func (i *ImageRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM images WHERE id = $1;`

	tag, err := q(ctx, i.pool).Exec(ctx, query, id)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return e.Wrap(whereami.WhereAmI(), e.ErrNotFound)
	}

	return nil
}
