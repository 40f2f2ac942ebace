package http

import (
	"net/http"

	"github.com/DRSN-tech/atlas-backend/internal/cfg"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/stream"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type StreamHandler struct {
	source   stream.Source
	cfg      *cfg.StreamCfg
	logger   logger.Logger
	upgrader websocket.Upgrader
}

func NewStreamHandler(source stream.Source, cfg *cfg.StreamCfg, logger logger.Logger) *StreamHandler {
	return &StreamHandler{
		source: source,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// streamCollection
//
//	@Summary		Потоковая выдача миниатюр
//	@Description	Поднимает websocket и отдаёт миниатюры укладки в порядке удаления от центра окна просмотра
//	@Tags			stream
//	@Param			id	path	string	true	"ID коллекции"
//	@Success		101	"Switching Protocols"
//	@Router			/collections/{id}/stream [get]
func (h *StreamHandler) streamCollection(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("не удалось поднять websocket для коллекции %s: %v", collectionID, err)
		return
	}
	defer conn.Close()

	session := stream.NewSession(
		stream.NewWsConn(conn),
		h.source,
		collectionID,
		h.cfg.DefaultCredits,
		h.cfg.WriteTimeout,
		h.logger,
	)
	if err := session.Run(r.Context()); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		h.logger.Warnf("сессия потока коллекции %s завершилась: %v", collectionID, err)
	}
}
