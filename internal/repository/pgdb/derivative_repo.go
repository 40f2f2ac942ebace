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

// DerivativeRepo реализует реестр производных версий изображений в PostgreSQL.
// Сами байты живут в MinIO, таблица хранит составной ключ и кодировку.
type DerivativeRepo struct {
	pool *pgxpool.Pool
	conv converter.DerivativeConverter
}

func NewDerivativeRepo(pool *pgxpool.Pool, conv converter.DerivativeConverter) *DerivativeRepo {
	return &DerivativeRepo{
		pool: pool,
		conv: conv,
	}
}

// Upsert идемпотентно регистрирует производную. Производная немутируема,
// поэтому при конфликте составного ключа запись не меняется.
func (d *DerivativeRepo) Upsert(ctx context.Context, derivative *domain.Derivative) error {
	model := d.conv.ToModel(derivative)

	query := `
		INSERT INTO derivatives (image_id, width, height, kind, extension)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (image_id, width, height, kind) DO NOTHING;
	`

	_, err := q(ctx, d.pool).Exec(ctx, query,
		model.ImageID,
		model.Width,
		model.Height,
		model.Kind,
		model.Extension,
	)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (d *DerivativeRepo) Get(ctx context.Context, imageID string, width, height int, kind domain.DerivativeKind) (*domain.Derivative, error) {
	query := `
		SELECT image_id, width, height, kind, extension, created_at
		FROM derivatives
		WHERE image_id = $1 AND width = $2 AND height = $3 AND kind = $4;
	`

	var model converter.DerivativeModel
	err := q(ctx, d.pool).QueryRow(ctx, query, imageID, width, height, int(kind)).Scan(
		&model.ImageID,
		&model.Width,
		&model.Height,
		&model.Kind,
		&model.Extension,
		&model.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return d.conv.ToEntity(&model)
}

// GetOriginal возвращает запись оригинала изображения; его габариты
// заранее неизвестны вызывающему.
func (d *DerivativeRepo) GetOriginal(ctx context.Context, imageID string) (*domain.Derivative, error) {
	query := `
		SELECT image_id, width, height, kind, extension, created_at
		FROM derivatives
		WHERE image_id = $1 AND kind = $2;
	`

	var model converter.DerivativeModel
	err := q(ctx, d.pool).QueryRow(ctx, query, imageID, int(domain.KindOriginal)).Scan(
		&model.ImageID,
		&model.Width,
		&model.Height,
		&model.Kind,
		&model.Extension,
		&model.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return d.conv.ToEntity(&model)
}

// ListKeysByImage возвращает ключи блобов всех производных изображения.
func (d *DerivativeRepo) ListKeysByImage(ctx context.Context, imageID string) ([]string, error) {
	query := `
		SELECT image_id, width, height, kind, extension, created_at
		FROM derivatives
		WHERE image_id = $1;
	`

	rows, err := q(ctx, d.pool).Query(ctx, query, imageID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var model converter.DerivativeModel
		if err := rows.Scan(
			&model.ImageID,
			&model.Width,
			&model.Height,
			&model.Kind,
			&model.Extension,
			&model.CreatedAt,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		derivative, err := d.conv.ToEntity(&model)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		keys = append(keys, derivative.ObjectKey())
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return keys, nil
}

func (d *DerivativeRepo) DeleteByImage(ctx context.Context, imageID string) error {
	query := `DELETE FROM derivatives WHERE image_id = $1;`

	if _, err := q(ctx, d.pool).Exec(ctx, query, imageID); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
