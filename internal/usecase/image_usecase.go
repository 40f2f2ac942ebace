package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/matcache"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
)

const (
	maxUploadFiles   = 256
	maxFileBytes     = 32 << 20
	maxDerivativeDim = 4096

	paletteSize = 6 // размерность палитры, согласована с экстрактором
)

// warmupBoxes — размеры рамок миниатюр, прогреваемых фоном после загрузки.
var warmupBoxes = [...]int{30, 500, 1000}

// ImageUseCase реализует бизнес-логику работы с изображениями: загрузку
// с извлечением признаков, каскадное удаление, выдачу производных через
// кэш материализации и поиск похожих.
type ImageUseCase struct {
	collectionRepo CollectionRepository
	imageRepo      ImageRepository
	derivativeRepo DerivativeRepository
	blobRepo       BlobRepository
	featureIndex   FeatureIndexRepository
	outboxRepo     OutboxRepository
	cacheRepo      CacheRepository
	dbPool         transaction.Transactional
	extractor      FeatureExtractor
	generator      DerivativeGenerator
	matCache       MaterializeCache
	logger         logger.Logger
}

func NewImageUC(
	collectionRepo CollectionRepository,
	imageRepo ImageRepository,
	derivativeRepo DerivativeRepository,
	blobRepo BlobRepository,
	featureIndex FeatureIndexRepository,
	outboxRepo OutboxRepository,
	cacheRepo CacheRepository,
	dbPool transaction.Transactional,
	extractor FeatureExtractor,
	generator DerivativeGenerator,
	matCache MaterializeCache,
	logger logger.Logger,
) *ImageUseCase {
	return &ImageUseCase{
		collectionRepo: collectionRepo,
		imageRepo:      imageRepo,
		derivativeRepo: derivativeRepo,
		blobRepo:       blobRepo,
		featureIndex:   featureIndex,
		outboxRepo:     outboxRepo,
		cacheRepo:      cacheRepo,
		dbPool:         dbPool,
		extractor:      extractor,
		generator:      generator,
		matCache:       matCache,
		logger:         logger,
	}
}

// Ingest обрабатывает загрузку пачки изображений: извлечение признаков,
// сохранение оригиналов в MinIO, запись метаданных и векторов. Ошибка
// обработки одного файла не отменяет загрузку остальных. Загрузка в
// финализированную коллекцию помечает её эмбеддинг устаревшим.
func (i *ImageUseCase) Ingest(ctx context.Context, req *IngestReq) (*IngestRes, error) {
	const op = "ImageUseCase.Ingest"

	var err error
	if err = i.validateIngest(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	collection, err := i.collectionRepo.Get(ctx, req.CollectionID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var uploadedKeys []string

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, i.dbPool)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	// При ошибке откатывается транзакция и зачищаются уже загруженные блобы
	defer func() {
		if err != nil {
			if tx.IsActive() {
				tx.Rollback(ctx)
			}

			if len(uploadedKeys) > 0 {
				i.logger.Warnf(
					"Cleaning up orphaned blobs after ingest failure. collection_id: %s, error: %v",
					req.CollectionID,
					e.Wrap(op, err),
				)
				i.blobRepo.Cleanup(uploadedKeys)
			}
		}
	}()
	ctx = context.WithValue(ctx, "tx", tx.Transaction())

	accepted := make([]ImageInfo, 0, len(req.Files))
	failed := make([]FailedFile, 0)

	for _, file := range req.Files {
		info, key, ferr := i.ingestOne(ctx, collection.ID, file)
		if ferr != nil {
			// битый файл исключается, остальные продолжают обрабатываться
			i.logger.Warnf("file %s rejected: %v", file.Name, ferr)
			failed = append(failed, FailedFile{Name: file.Name, Reason: ferr.Error()})
			continue
		}
		uploadedKeys = append(uploadedKeys, key)
		accepted = append(accepted, info)
	}

	if len(accepted) == 0 {
		err = e.ErrNoImages
		return nil, e.Wrap(op, err)
	}

	if collection.Finalized {
		if err = i.collectionRepo.MarkStale(ctx, collection.ID, true); err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}
	uploadedKeys = nil

	if err := i.cacheRepo.DeleteImages(ctx, collection.ID); err != nil {
		i.logger.Warnf("Failed to invalidate images cache: %v", e.Wrap(op, err))
	}

	i.warmThumbnails(accepted)

	return NewIngestRes(accepted, failed), nil
}

// warmThumbnails фоном прогоняет стандартные размеры миниатюр через кэш
// материализации, чтобы первый показ сетки не платил за генерацию.
func (i *ImageUseCase) warmThumbnails(images []ImageInfo) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		for _, img := range images {
			for _, box := range warmupBoxes {
				req := NewDerivativeReq(img.ID, box, box, domain.KindThumbnail)
				if _, err := i.Derivative(ctx, req); err != nil {
					i.logger.Warnf("thumbnail warmup %dx%d failed for %s: %v", box, box, img.ID, err)
				}
			}
		}
	}()
}

// ingestOne обрабатывает один файл внутри транзакции загрузки.
// Возвращает ключ загруженного оригинала для возможной зачистки.
func (i *ImageUseCase) ingestOne(ctx context.Context, collectionID string, file ImageFile) (ImageInfo, string, error) {
	if file.Size > maxFileBytes {
		return ImageInfo{}, "", e.ErrFileTooLarge
	}
	if !strings.HasPrefix(file.MimeType, "image/") {
		return ImageInfo{}, "", e.ErrUnsupportedMediaType
	}

	extract, err := i.extractor.Extract(file.Data)
	if err != nil {
		return ImageInfo{}, "", err
	}

	id := uuid.NewString()
	ext := extensionFor(extract.Format)
	key := domain.DerivativeObjectKey(id, extract.Width, extract.Height, domain.KindOriginal, ext)

	if err := i.blobRepo.Put(ctx, key, file.Data, file.MimeType); err != nil {
		return ImageInfo{}, "", err
	}

	image := domain.NewImage(id, collectionID, file.Name, extract.Width, extract.Height, extract.Feature, extract.Metadata)
	if _, err := i.imageRepo.Create(ctx, image); err != nil {
		return ImageInfo{}, key, err
	}

	original := domain.NewDerivative(id, extract.Width, extract.Height, domain.KindOriginal, ext, nil)
	if err := i.derivativeRepo.Upsert(ctx, original); err != nil {
		return ImageInfo{}, key, err
	}

	if image.HasFeature() {
		if err := i.featureIndex.Upsert(ctx, id, collectionID, image.Feature.Vector(paletteSize)); err != nil {
			return ImageInfo{}, key, err
		}
	}

	if err := i.writeUploadedEvent(ctx, collectionID, id, file.Name); err != nil {
		return ImageInfo{}, key, err
	}

	return NewImageInfo(image), key, nil
}

// List возвращает метаданные изображений коллекции со сквозным кэшем в Redis.
func (i *ImageUseCase) List(ctx context.Context, collectionID string) ([]ImageInfo, error) {
	const op = "ImageUseCase.List"

	if cached, err := i.cacheRepo.GetImages(ctx, collectionID); err == nil && cached != nil {
		return cached, nil
	}

	if _, err := i.collectionRepo.Get(ctx, collectionID); err != nil {
		return nil, e.Wrap(op, err)
	}

	images, err := i.imageRepo.ListByCollection(ctx, collectionID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	infos := make([]ImageInfo, 0, len(images))
	for _, img := range images {
		infos = append(infos, NewImageInfo(img))
	}

	// Фоновое пополнение кэша
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if err := i.cacheRepo.SetImages(bgCtx, collectionID, infos); err != nil {
			i.logger.Warnf("Failed to cache images in background: %v", e.Wrap(op, err))
		}
	}()

	return infos, nil
}

// Delete каскадно удаляет изображение: метаданные, производные, блобы,
// вектор в индексе. Удаление из финализированной коллекции помечает
// её эмбеддинг устаревшим.
func (i *ImageUseCase) Delete(ctx context.Context, imageID string) error {
	const op = "ImageUseCase.Delete"

	image, err := i.imageRepo.Get(ctx, imageID)
	if err != nil {
		return e.Wrap(op, err)
	}

	collection, err := i.collectionRepo.Get(ctx, image.CollectionID)
	if err != nil {
		return e.Wrap(op, err)
	}

	blobKeys, err := i.derivativeRepo.ListKeysByImage(ctx, imageID)
	if err != nil {
		return e.Wrap(op, err)
	}

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, i.dbPool)
	if err != nil {
		return e.Wrap(op, err)
	}
	defer func() {
		if err != nil && tx.IsActive() {
			tx.Rollback(ctx)
		}
	}()
	ctx = context.WithValue(ctx, "tx", tx.Transaction())

	if err = i.derivativeRepo.DeleteByImage(ctx, imageID); err != nil {
		return e.Wrap(op, err)
	}

	if err = i.imageRepo.Delete(ctx, imageID); err != nil {
		return e.Wrap(op, err)
	}

	if collection.Finalized {
		if err = i.collectionRepo.MarkStale(ctx, collection.ID, true); err != nil {
			return e.Wrap(op, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return e.Wrap(op, err)
	}

	// Побочные хранилища зачищаются после коммита, ошибки не фатальны
	i.blobRepo.Cleanup(blobKeys)
	i.matCache.InvalidatePrefix(derivativeKeyPrefix(imageID))

	if err := i.featureIndex.Delete(ctx, imageID); err != nil {
		i.logger.Warnf("Failed to delete feature vector: %v", e.Wrap(op, err))
	}
	if err := i.cacheRepo.DeleteImages(ctx, collection.ID); err != nil {
		i.logger.Warnf("Failed to invalidate images cache: %v", e.Wrap(op, err))
	}

	return nil
}

// Derivative возвращает производную версию изображения через кэш
// материализации: конкурентные запросы одного ключа коалесцируются
// в одно вычисление, результат пишется насквозь в MinIO и Postgres.
func (i *ImageUseCase) Derivative(ctx context.Context, req *DerivativeReq) (*DerivativeRes, error) {
	const op = "ImageUseCase.Derivative"

	if !req.Kind.Valid() {
		return nil, e.Wrap(op, e.ErrUnknownKind)
	}
	if req.Kind != domain.KindOriginal &&
		(req.Width < 1 || req.Height < 1 || req.Width > maxDerivativeDim || req.Height > maxDerivativeDim) {
		return nil, e.Wrap(op, e.ErrInvalidDimensions)
	}

	key := derivativeKey(req.ImageID, req.Width, req.Height, req.Kind)
	pin := req.Kind == domain.KindOriginal

	res, err := i.matCache.GetOrCompute(ctx, key, pin, i.computeDerivative(req))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return NewDerivativeRes(res.Data, res.Ext), nil
}

// Similar ищет ближайшие по вектору признаков изображения той же коллекции.
func (i *ImageUseCase) Similar(ctx context.Context, imageID string, limit int) ([]SimilarInfo, error) {
	const op = "ImageUseCase.Similar"

	image, err := i.imageRepo.Get(ctx, imageID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if !image.HasFeature() {
		return nil, e.Wrap(op, e.ErrInsufficientData)
	}

	found, err := i.featureIndex.Search(ctx, image.Feature.Vector(paletteSize), image.CollectionID, limit+1)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// сам запрошенный объект из выдачи исключается
	result := make([]SimilarInfo, 0, limit)
	for _, s := range found {
		if s.ImageID == imageID {
			continue
		}
		result = append(result, s)
		if len(result) == limit {
			break
		}
	}

	return result, nil
}

// computeDerivative — отложенное вычисление производной для кэша:
// сначала читается готовый блоб, при его отсутствии производная
// генерируется из оригинала и записывается насквозь.
func (i *ImageUseCase) computeDerivative(req *DerivativeReq) matcache.ComputeFunc {
	return func(ctx context.Context) (*matcache.Result, error) {
		if req.Kind == domain.KindOriginal {
			original, err := i.loadOriginal(ctx, req.ImageID)
			if err != nil {
				return nil, err
			}
			return &matcache.Result{Data: original.Data, Ext: original.Extension}, nil
		}

		if stored, err := i.derivativeRepo.Get(ctx, req.ImageID, req.Width, req.Height, req.Kind); err == nil {
			data, err := i.blobRepo.Get(ctx, stored.ObjectKey())
			if err == nil {
				return &matcache.Result{Data: data, Ext: stored.Extension}, nil
			}
			// запись есть, а блоба нет: производная пересоздаётся ниже
			i.logger.Warnf("derivative blob missing, regenerating: %s", stored.ObjectKey())
		}

		original, err := i.loadOriginal(ctx, req.ImageID)
		if err != nil {
			return nil, err
		}

		data, ext, err := i.generator.Generate(original.Data, req.Width, req.Height, req.Kind)
		if err != nil {
			return nil, err
		}

		derivative := domain.NewDerivative(req.ImageID, req.Width, req.Height, req.Kind, ext, nil)
		if err := i.blobRepo.Put(ctx, derivative.ObjectKey(), data, domain.MimeForExtension(ext)); err != nil {
			return nil, err
		}
		if err := i.derivativeRepo.Upsert(ctx, derivative); err != nil {
			return nil, err
		}

		return &matcache.Result{Data: data, Ext: ext}, nil
	}
}

func (i *ImageUseCase) loadOriginal(ctx context.Context, imageID string) (*DerivativeRes, error) {
	original, err := i.derivativeRepo.GetOriginal(ctx, imageID)
	if err != nil {
		return nil, err
	}

	data, err := i.blobRepo.Get(ctx, original.ObjectKey())
	if err != nil {
		return nil, err
	}

	return NewDerivativeRes(data, original.Extension), nil
}

func (i *ImageUseCase) writeUploadedEvent(ctx context.Context, collectionID, imageID, name string) error {
	payload, err := json.Marshal(ImageUploadedPayload{
		CollectionID: collectionID,
		ImageID:      imageID,
		Name:         name,
	})
	if err != nil {
		return err
	}

	_, err = i.outboxRepo.Create(ctx, NewOutboxEvent(uuid.NewString(), EventImageUploaded, collectionID, payload))
	return err
}

func (i *ImageUseCase) validateIngest(req *IngestReq) error {
	if req.CollectionID == "" {
		return e.ErrMissingFields
	}
	if len(req.Files) == 0 {
		return e.ErrNoImages
	}
	if len(req.Files) > maxUploadFiles {
		return e.ErrTooManyImages
	}
	return nil
}

// Ключи кэша материализации.

func derivativeKey(imageID string, width, height int, kind domain.DerivativeKind) string {
	return fmt.Sprintf("deriv/%s/%dx%d-%s", imageID, width, height, kind)
}

func derivativeKeyPrefix(imageID string) string {
	return "deriv/" + imageID + "/"
}

func embeddingKey(collectionID string, generation int64) string {
	return fmt.Sprintf("embed/%s/%d", collectionID, generation)
}

func embeddingKeyPrefix(collectionID string) string {
	return "embed/" + collectionID + "/"
}
