package minio

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"

	"github.com/DRSN-tech/atlas-backend/internal/cfg"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
)

// BlobRepo реализует байтовое хранилище оригиналов и производных поверх MinIO.
type BlobRepo struct {
	mc     *minio.Client
	cfg    *cfg.MinIOCfg
	logger logger.Logger
}

func NewBlobRepo(mc *minio.Client, cfg *cfg.MinIOCfg, logger logger.Logger) *BlobRepo {
	return &BlobRepo{
		mc:     mc,
		cfg:    cfg,
		logger: logger,
	}
}

// Put загружает объект в MinIO под детерминированным ключом.
// Повторная запись того же ключа перезаписывает идентичные байты,
// поэтому гонка записей безвредна.
func (b *BlobRepo) Put(ctx context.Context, key string, data []byte, contentType string) error {
	reader := bytes.NewReader(data)

	_, err := b.mc.PutObject(ctx, b.cfg.BucketName, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (b *BlobRepo) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.mc.GetObject(ctx, b.cfg.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return data, nil
}

func (b *BlobRepo) Remove(ctx context.Context, key string) error {
	if err := b.mc.RemoveObject(ctx, b.cfg.BucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Cleanup удаляет объекты в фоне. Вызывается для зачистки осиротевших
// блобов после отката транзакции, ошибки только логируются.
func (b *BlobRepo) Cleanup(keys []string) {
	if len(keys) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for _, key := range keys {
			if err := b.Remove(ctx, key); err != nil {
				b.logger.Warnf("failed to cleanup blob %s: %v", key, err)
			}
		}
	}()
}
