package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"

	"github.com/DRSN-tech/atlas-backend/internal/cfg"
	"github.com/DRSN-tech/atlas-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/atlas-backend/internal/usecase"
	"github.com/DRSN-tech/atlas-backend/pkg/clients"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
)

// CacheRepo кэширует списки метаданных изображений коллекций в Redis.
type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.ImageInfoConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv converter.ImageInfoConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// GetImages возвращает закэшированный список изображений коллекции.
// Промах кэша возвращается как nil без ошибки.
func (r *CacheRepo) GetImages(ctx context.Context, collectionID string) ([]usecase.ImageInfo, error) {
	data, err := r.client.Client.Get(ctx, r.imagesKey(collectionID)).Bytes()
	if err != nil {
		if errors.Is(err, redisNil) {
			return nil, nil // cache miss
		}
		r.logger.Warnf("Redis GET failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var models []converter.ImageInfoRedisModel
	if err := json.Unmarshal(data, &models); err != nil {
		r.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
		if err := r.client.Client.Del(context.Background(), r.imagesKey(collectionID)).Err(); err != nil {
			r.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
		}
		return nil, nil // повреждённая запись считается промахом
	}

	return r.conv.ToArrUseCase(models), nil
}

// SetImages кэширует список изображений коллекции с заданным TTL.
// Ошибки сериализации и записи логируются и не считаются фатальными.
func (r *CacheRepo) SetImages(ctx context.Context, collectionID string, images []usecase.ImageInfo) error {
	models := r.conv.ToArrRedisModel(images)

	data, err := json.Marshal(models)
	if err != nil {
		r.logger.Warnf("Failed to marshal images for caching (collection %s): %v", collectionID, e.Wrap(whereami.WhereAmI(), err))
		return nil
	}

	if err := r.client.Client.Set(ctx, r.imagesKey(collectionID), data, r.cfg.MetadataTTL).Err(); err != nil {
		r.logger.Warnf("Cache set failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// DeleteImages инвалидирует кэш изображений коллекции.
func (r *CacheRepo) DeleteImages(ctx context.Context, collectionID string) error {
	if err := r.client.Client.Del(ctx, r.imagesKey(collectionID)).Err(); err != nil {
		r.logger.Warnf("Redis DEL failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// imagesKey возвращает Redis-ключ списка изображений коллекции.
func (r *CacheRepo) imagesKey(collectionID string) string {
	return fmt.Sprintf("collection_images:%s", collectionID)
}

// redisNil — сигнальная ошибка промаха кэша в go-redis.
var redisNil = r.Nil
