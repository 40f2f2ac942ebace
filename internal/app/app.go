package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/atlas-backend/internal/cfg"
	v1Http "github.com/DRSN-tech/atlas-backend/internal/delivery/v1/http"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/derive"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/extract"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/kafka"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/matcache"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/tsne"
	s3Repo "github.com/DRSN-tech/atlas-backend/internal/repository/minio"
	"github.com/DRSN-tech/atlas-backend/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/atlas-backend/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/atlas-backend/internal/repository/qdrant"
	"github.com/DRSN-tech/atlas-backend/internal/repository/redis"
	redisConv "github.com/DRSN-tech/atlas-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/atlas-backend/internal/usecase"
	"github.com/DRSN-tech/atlas-backend/pkg/clients"
	"github.com/DRSN-tech/atlas-backend/pkg/closer"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
	"github.com/DRSN-tech/atlas-backend/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

// App связывает все слои приложения и управляет их жизненным циклом.
type App struct {
	cfg    *config.Config
	logger logger.Logger

	worker       *kafka.OutboxWorker
	httpSrv      *v1Http.Server
	closer       *closer.Closer
	workerCancel context.CancelFunc
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	db, err := initPGDB(log, cfg)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	collConv := pgdbConv.NewCollectionConverter()
	imgConv := pgdbConv.NewImageConverter()
	derivConv := pgdbConv.NewDerivativeConverter()
	embConv := pgdbConv.NewEmbeddingConverter()
	outboxConv := pgdbConv.NewOutboxEventConverter()
	infoConv := redisConv.NewImageInfoConverter()

	collectionRepo := pgdb.NewCollectionRepo(db.Pool, collConv)
	imageRepo := pgdb.NewImageRepo(db.Pool, imgConv)
	derivativeRepo := pgdb.NewDerivativeRepo(db.Pool, derivConv)
	embeddingRepo := pgdb.NewEmbeddingRepo(db.Pool, embConv)
	outboxRepo := pgdb.NewOutboxEventRepo(db.Pool, outboxConv)

	minioClient, err := clients.NewMinIOClient(cfg)
	if err != nil {
		log.Errorf(err, "failed to initialize minio client")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minioCtx, minioCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName); err != nil {
		minioCancel()
		log.Errorf(err, "failed to initialize MinIO bucket")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	minioCancel()

	blobRepo := s3Repo.NewBlobRepo(minioClient, cfg.Minio, log)

	qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
	if err != nil {
		log.Errorf(err, "failed to initialize qdrant")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	qdrantCtx, qdrantCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := clients.EnsureCollection(qdrantCtx, qdrantClient); err != nil {
		qdrantCancel()
		log.Errorf(err, "failed to initialize qdrant collection")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	qdrantCancel()

	featureIndex := qdrantRepo.NewFeatureRepo(qdrantClient.Client, cfg.Qdrant)

	redisClient := clients.NewRedisClient(cfg.Redis)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer redisCancel()
	if err := redisClient.Ping(redisCtx); err != nil {
		log.Errorf(err, "failed to connect to redis")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cacheRepo := redis.NewCacheRepo(redisClient, infoConv, cfg.Redis, log)

	producer, err := kafka.NewProducer(log, cfg.Kafka)
	if err != nil {
		log.Errorf(err, "failed to initialize kafka producer")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if err := producer.EnsureTopic(10 * time.Second); err != nil {
		log.Errorf(err, "failed to ensure kafka topic")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	worker := kafka.NewOutboxWorker(outboxRepo, log, producer, db.Dsn)

	matCache := matcache.NewCache(cfg.Cache.DerivativeCapacityBytes)
	extractor := extract.NewExtractor()
	generator := derive.NewGenerator()
	engine := tsne.NewEngine()
	runner := tsne.NewRunner(cfg.Tsne.Workers, log)

	imageUC := usecase.NewImageUC(
		collectionRepo,
		imageRepo,
		derivativeRepo,
		blobRepo,
		featureIndex,
		outboxRepo,
		cacheRepo,
		db.Pool,
		extractor,
		generator,
		matCache,
		log,
	)

	collectionUC := usecase.NewCollectionUC(
		collectionRepo,
		imageRepo,
		embeddingRepo,
		outboxRepo,
		db.Pool,
		engine,
		runner,
		matCache,
		cfg.Tsne,
		log,
	)

	source := usecase.NewStreamSource(collectionUC, imageUC)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, log)
	router.Init(collectionUC, imageUC, source, cfg.Stream)

	httpSrv := v1Http.NewServer(r, cfg.Http)

	a := &App{
		cfg:     cfg,
		logger:  log,
		worker:  worker,
		httpSrv: httpSrv,
		closer:  closer.NewCloser(2 * time.Second),
	}

	// Ресурсы регистрируются в порядке запуска; закрытие идёт в обратном:
	// сперва перестаём принимать запросы, затем гасим фоновые вычисления
	// и доставку событий, последними закрываем клиентов хранилищ.
	a.closer.Add(func(context.Context) error {
		db.Close()
		return nil
	})
	a.closer.Add(func(context.Context) error {
		return qdrantClient.Client.Close()
	})
	a.closer.Add(func(context.Context) error {
		return redisClient.Client.Close()
	})
	a.closer.Add(func(context.Context) error {
		return producer.Close()
	})
	a.closer.Add(func(context.Context) error {
		if a.workerCancel != nil {
			a.workerCancel()
		}
		a.worker.Stop()
		return nil
	})
	a.closer.Add(func(context.Context) error {
		return runner.Close()
	})
	a.closer.Add(func(ctx context.Context) error {
		return httpSrv.Stop(ctx)
	})

	return a, nil
}

// Run запускает HTTP-сервер и outbox worker и блокируется до сигнала
// завершения или фатальной ошибки сервера.
func (a *App) Run() error {
	workerCtx, workerCancel := context.WithCancel(context.Background())
	a.workerCancel = workerCancel
	a.worker.Start(workerCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf(err, "HTTP server failed")
			errCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Warnf("shutdown finished with errors: %v", err)
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		logger.Errorf(err, "failed to ping database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
