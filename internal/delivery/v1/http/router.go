package http

import (
	_ "github.com/DRSN-tech/atlas-backend/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/atlas-backend/internal/cfg"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/stream"
	"github.com/DRSN-tech/atlas-backend/internal/usecase"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(collUC usecase.CollectionUC, imgUC usecase.ImageUC, source stream.Source, streamCfg *cfg.StreamCfg) {
	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"), // ссылка на JSON
	))

	r.router.Route("/api/v1", func(v1 chi.Router) {
		collHandler := NewCollectionHandler(collUC, r.logger)
		imgHandler := NewImageHandler(imgUC, r.logger)
		streamHandler := NewStreamHandler(source, streamCfg, r.logger)
		registerCollectionRoutes(v1, collHandler, imgHandler, streamHandler)
		registerImageRoutes(v1, imgHandler)
	})
}

func registerCollectionRoutes(router chi.Router, collHandler *CollectionHandler, imgHandler *ImageHandler, streamHandler *StreamHandler) {
	router.Route("/collections", func(coll chi.Router) {
		coll.Post("/", collHandler.createCollection)
		coll.Get("/", collHandler.listCollections)

		coll.Route("/{id}", func(one chi.Router) {
			one.Post("/finalize", collHandler.finalizeCollection)
			one.Post("/invalidate", collHandler.invalidateCollection)
			one.Get("/layout", collHandler.getLayout)
			one.Get("/stream", streamHandler.streamCollection)

			one.Post("/images", imgHandler.uploadImages)
			one.Get("/images", imgHandler.listImages)
		})
	})
}

func registerImageRoutes(router chi.Router, imgHandler *ImageHandler) {
	router.Route("/images/{id}", func(img chi.Router) {
		img.Delete("/", imgHandler.deleteImage)
		img.Get("/derivative", imgHandler.getDerivative)
		img.Get("/similar", imgHandler.getSimilar)
	})
}
