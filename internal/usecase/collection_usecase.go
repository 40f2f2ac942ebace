package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"

	"github.com/DRSN-tech/atlas-backend/internal/cfg"
	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/layout"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/matcache"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/tsne"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/tsne/dist"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
)

// CollectionUseCase реализует жизненный цикл коллекции: создание, финализацию
// с вычислением 2D-укладки, инвалидацию и выдачу раскладок.
type CollectionUseCase struct {
	collectionRepo CollectionRepository
	imageRepo      ImageRepository
	embeddingRepo  EmbeddingRepository
	outboxRepo     OutboxRepository
	dbPool         transaction.Transactional
	engine         EmbeddingEngine
	runner         EmbeddingRunner
	matCache       MaterializeCache
	tsneCfg        *cfg.TsneCfg
	logger         logger.Logger

	// flight коалесцирует конкурентные финализации одной коллекции
	flight singleflight.Group
}

func NewCollectionUC(
	collectionRepo CollectionRepository,
	imageRepo ImageRepository,
	embeddingRepo EmbeddingRepository,
	outboxRepo OutboxRepository,
	dbPool transaction.Transactional,
	engine EmbeddingEngine,
	runner EmbeddingRunner,
	matCache MaterializeCache,
	tsneCfg *cfg.TsneCfg,
	logger logger.Logger,
) *CollectionUseCase {
	return &CollectionUseCase{
		collectionRepo: collectionRepo,
		imageRepo:      imageRepo,
		embeddingRepo:  embeddingRepo,
		outboxRepo:     outboxRepo,
		dbPool:         dbPool,
		engine:         engine,
		runner:         runner,
		matCache:       matCache,
		tsneCfg:        tsneCfg,
		logger:         logger,
	}
}

// Create создаёт пустую нефинализированную коллекцию.
func (c *CollectionUseCase) Create(ctx context.Context, req *CreateCollectionReq) (*CollectionInfo, error) {
	const op = "CollectionUseCase.Create"

	if strings.TrimSpace(req.Name) == "" {
		return nil, e.Wrap(op, e.ErrCollectionNameRequired)
	}

	collection, err := c.collectionRepo.Create(ctx, domain.NewCollection(req.Name))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	info := NewCollectionInfo(collection)
	return &info, nil
}

// List возвращает все коллекции.
func (c *CollectionUseCase) List(ctx context.Context) ([]CollectionInfo, error) {
	const op = "CollectionUseCase.List"

	collections, err := c.collectionRepo.List(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	infos := make([]CollectionInfo, 0, len(collections))
	for _, collection := range collections {
		infos = append(infos, NewCollectionInfo(collection))
	}

	return infos, nil
}

// Finalize вычисляет укладку коллекции и публикует новое поколение.
// Повтор без force на финализированной нестухшей коллекции идемпотентен.
// Конкурентные финализации одной коллекции сливаются в один расчёт;
// расчёт идёт на ограниченном пуле и переживает отмену инициатора.
func (c *CollectionUseCase) Finalize(ctx context.Context, req *FinalizeReq) (*FinalizeRes, error) {
	const op = "CollectionUseCase.Finalize"

	metricName := req.Metric
	if metricName == "" {
		metricName = "palette"
	}
	metric, err := dist.Parse(metricName)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	collection, err := c.collectionRepo.Get(ctx, req.CollectionID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if collection.Finalized && !collection.EmbeddingStale && !req.Force {
		// Явное зерно на актуальной укладке требует пересчёта,
		// который без force молча проигнорировался бы
		if req.Seed != nil {
			return nil, e.Wrap(op, e.ErrAlreadyFinalized)
		}
		return &FinalizeRes{Generation: collection.Generation, NoChanges: true}, nil
	}

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	type finalizeOut struct {
		res *FinalizeRes
		err error
	}

	v, err, _ := c.flight.Do(req.CollectionID, func() (any, error) {
		// Поколение перечитывается внутри полёта: с момента внешней
		// проверки его мог сдвинуть параллельный публикатор
		fresh, err := c.collectionRepo.Get(ctx, req.CollectionID)
		if err != nil {
			return nil, err
		}

		done := make(chan finalizeOut, 1)

		c.runner.Launch(req.CollectionID, func(runCtx context.Context) error {
			res, err := c.computeAndPublish(runCtx, fresh, seed, metric)
			done <- finalizeOut{res: res, err: err}
			return err
		})

		out := <-done
		return out.res, out.err
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return v.(*FinalizeRes), nil
}

// Invalidate помечает эмбеддинг устаревшим и сбрасывает его из кэша,
// не снимая финализацию. Идущий расчёт коллекции отменяется.
func (c *CollectionUseCase) Invalidate(ctx context.Context, collectionID string) error {
	const op = "CollectionUseCase.Invalidate"

	collection, err := c.collectionRepo.Get(ctx, collectionID)
	if err != nil {
		return e.Wrap(op, err)
	}

	if !collection.Finalized {
		return e.Wrap(op, e.ErrNotFinalized)
	}

	if err := c.collectionRepo.MarkStale(ctx, collectionID, true); err != nil {
		return e.Wrap(op, err)
	}

	c.runner.Cancel(collectionID)
	c.matCache.InvalidatePrefix(embeddingKeyPrefix(collectionID))

	return nil
}

// Layout возвращает раскладку коллекции в запрошенном режиме.
func (c *CollectionUseCase) Layout(ctx context.Context, req *LayoutReq) (*LayoutRes, error) {
	const op = "CollectionUseCase.Layout"

	collection, err := c.collectionRepo.Get(ctx, req.CollectionID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	mode := req.Mode
	if mode == "" {
		mode = LayoutMap
	}

	switch mode {
	case LayoutMap:
		return c.mapLayout(ctx, collection, req.RequireFresh)
	case LayoutSort:
		return c.sortLayout(ctx, req)
	case LayoutTimehist:
		return c.timehistLayout(ctx, req)
	default:
		return nil, e.Wrap(op, e.ErrUnknownLayout)
	}
}

// mapLayout отдаёт укладку текущего поколения. Устаревшее поколение
// остаётся пригодным для выдачи до публикации следующего; клиент,
// которому нужна только свежая укладка, запрашивает её с requireFresh.
func (c *CollectionUseCase) mapLayout(ctx context.Context, collection *domain.Collection, requireFresh bool) (*LayoutRes, error) {
	const op = "CollectionUseCase.mapLayout"

	if !collection.HasEmbedding() {
		return nil, e.Wrap(op, e.ErrNotFinalized)
	}

	if requireFresh && collection.EmbeddingStale {
		return nil, e.Wrap(op, e.ErrEmbeddingStale)
	}

	embedding, err := c.LoadEmbedding(ctx, collection.ID, collection.Generation)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &LayoutRes{
		Mode:       LayoutMap,
		Generation: embedding.Generation,
		Points:     embedding.Points,
		Excluded:   embedding.Excluded,
	}, nil
}

func (c *CollectionUseCase) sortLayout(ctx context.Context, req *LayoutReq) (*LayoutRes, error) {
	const op = "CollectionUseCase.sortLayout"

	metricName := req.Metric
	if metricName == "" {
		metricName = "palette"
	}
	metric, err := dist.Parse(metricName)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	images, err := c.imageRepo.ListByCollection(ctx, req.CollectionID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	filter := layout.Filter{
		RequirePalette:    req.RequirePalette,
		RequireCapturedAt: req.RequireCapturedAt,
		Limit:             req.Limit,
	}
	images = filter.Apply(images)

	var entries []layout.Entry
	if req.ComparedTo != "" {
		ref, err := c.imageRepo.Get(ctx, req.ComparedTo)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		if !ref.HasFeature() {
			return nil, e.Wrap(op, e.ErrInsufficientData)
		}
		entries = layout.SortByRef(images, metric, ref.Feature)
	} else {
		entries = layout.SortSigned(images, metric)
	}

	return &LayoutRes{Mode: LayoutSort, Entries: entries}, nil
}

func (c *CollectionUseCase) timehistLayout(ctx context.Context, req *LayoutReq) (*LayoutRes, error) {
	const op = "CollectionUseCase.timehistLayout"

	resolution := req.Resolution
	if resolution == "" {
		resolution = "day"
	}
	res, err := layout.ParseResolution(resolution)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	images, err := c.imageRepo.ListByCollection(ctx, req.CollectionID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	filter := layout.Filter{
		RequirePalette:    req.RequirePalette,
		RequireCapturedAt: true,
		Limit:             req.Limit,
	}
	images = filter.Apply(images)

	return &LayoutRes{Mode: LayoutTimehist, Buckets: layout.Timehist(images, res)}, nil
}

// LoadEmbedding возвращает опубликованное поколение укладки через кэш
// материализации; записи укладок закреплены и не вытесняются по LRU.
func (c *CollectionUseCase) LoadEmbedding(ctx context.Context, collectionID string, generation int64) (*domain.Embedding, error) {
	res, err := c.matCache.GetOrCompute(ctx, embeddingKey(collectionID, generation), true, func(ctx context.Context) (*matcache.Result, error) {
		embedding, err := c.embeddingRepo.GetByGeneration(ctx, collectionID, generation)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(embedding)
		if err != nil {
			return nil, err
		}

		return &matcache.Result{Data: data, Ext: "json"}, nil
	})
	if err != nil {
		return nil, err
	}

	var embedding domain.Embedding
	if err := json.Unmarshal(res.Data, &embedding); err != nil {
		return nil, err
	}

	return &embedding, nil
}

// computeAndPublish выполняет расчёт укладки и атомарно публикует новое
// поколение: запись укладки и переключение счётчика идут одной транзакцией.
func (c *CollectionUseCase) computeAndPublish(ctx context.Context, collection *domain.Collection, seed int64, metric dist.Metric) (*FinalizeRes, error) {
	const op = "CollectionUseCase.computeAndPublish"

	// Запуск мог быть отменён ещё в очереди пула
	if ctx.Err() != nil {
		return nil, e.Wrap(op, e.ErrCancelled)
	}

	images, err := c.imageRepo.ListByCollection(ctx, collection.ID)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	inputs := make([]tsne.Input, 0, len(images))
	for _, img := range images {
		inputs = append(inputs, tsne.Input{ID: img.ID, Feature: img.Feature})
	}

	params := tsne.Params{
		Perplexity:   c.tsneCfg.Perplexity,
		Iterations:   c.tsneCfg.Iterations,
		LearningRate: c.tsneCfg.LearningRate,
		Theta:        c.tsneCfg.Theta,
	}

	// При нехватке данных состояние коллекции не меняется
	points, excluded, err := c.engine.Embed(ctx, inputs, seed, params, metric)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	generation := collection.Generation + 1
	embedding := domain.NewEmbedding(collection.ID, generation, seed, points, excluded)

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, c.dbPool)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer func() {
		if err != nil && tx.IsActive() {
			tx.Rollback(ctx)
		}
	}()
	ctx = context.WithValue(ctx, "tx", tx.Transaction())

	if _, err = c.embeddingRepo.Create(ctx, embedding); err != nil {
		return nil, e.Wrap(op, err)
	}

	if err = c.collectionRepo.PublishGeneration(ctx, collection.ID, generation); err != nil {
		return nil, e.Wrap(op, err)
	}

	if err = c.writeFinalizedEvent(ctx, collection.ID, generation, seed); err != nil {
		return nil, e.Wrap(op, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}

	// Старые поколения выбывают из кэша, новое подтянется по запросу
	c.matCache.InvalidatePrefix(embeddingKeyPrefix(collection.ID))

	c.logger.Infof("collection %s finalized: generation %d, %d points, %d excluded",
		collection.ID, generation, len(points), len(excluded))

	return &FinalizeRes{Generation: generation, Seed: seed, Excluded: excluded}, nil
}

func (c *CollectionUseCase) writeFinalizedEvent(ctx context.Context, collectionID string, generation, seed int64) error {
	payload, err := json.Marshal(CollectionFinalizedPayload{
		CollectionID: collectionID,
		Generation:   generation,
		Seed:         seed,
	})
	if err != nil {
		return err
	}

	_, err = c.outboxRepo.Create(ctx, NewOutboxEvent(uuid.NewString(), EventCollectionFinalized, collectionID, payload))
	return err
}
