package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/DRSN-tech/atlas-backend/internal/usecase"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type CollectionHandler struct {
	collectionUsecase usecase.CollectionUC
	logger            logger.Logger
}

func NewCollectionHandler(collectionUsecase usecase.CollectionUC, logger logger.Logger) *CollectionHandler {
	return &CollectionHandler{collectionUsecase: collectionUsecase, logger: logger}
}

type createCollectionBody struct {
	Name string `json:"name"`
}

// createCollection
//
//	@Summary		Создание коллекции
//	@Description	Создает пустую коллекцию изображений
//	@Tags			collections
//	@Accept			json
//	@Produce		json
//	@Param			body	body		createCollectionBody	true	"Имя коллекции"
//	@Success		201		{object}	usecase.CollectionInfo	"Созданная коллекция"
//	@Failure		400		{object}	ErrorResponse			"Ошибка валидации"
//	@Router			/collections [post]
func (c *CollectionHandler) createCollection(w http.ResponseWriter, r *http.Request) {
	var body createCollectionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, e.ErrStatusBadRequest)
		return
	}

	info, err := c.collectionUsecase.Create(r.Context(), &usecase.CreateCollectionReq{Name: body.Name})
	if err != nil {
		c.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, info)
}

// listCollections
//
//	@Summary	Список коллекций
//	@Tags		collections
//	@Produce	json
//	@Success	200	{array}		usecase.CollectionInfo
//	@Failure	500	{object}	ErrorResponse
//	@Router		/collections [get]
func (c *CollectionHandler) listCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := c.collectionUsecase.List(r.Context())
	if err != nil {
		c.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, collections)
}

// finalizeCollection
//
//	@Summary		Финализация коллекции
//	@Description	Вычисляет и публикует 2D-укладку коллекции
//	@Tags			collections
//	@Produce		json
//	@Param			id		path		string				true	"ID коллекции"
//	@Param			force	query		boolean				false	"Пересчитать, даже если укладка актуальна"
//	@Param			metric	query		string				false	"Метрика расстояния (palette | palette_cos | captured_at)"
//	@Param			seed	query		integer				false	"Зерно генератора для воспроизводимости"
//	@Success		200		{object}	usecase.FinalizeRes	"Опубликованное поколение"
//	@Failure		404		{object}	ErrorResponse		"Коллекция не найдена"
//	@Failure		409		{object}	ErrorResponse		"Укладка актуальна, для пересчёта с зерном нужен force"
//	@Failure		422		{object}	ErrorResponse		"Недостаточно изображений с признаками"
//	@Router			/collections/{id}/finalize [post]
func (c *CollectionHandler) finalizeCollection(w http.ResponseWriter, r *http.Request) {
	req := &usecase.FinalizeReq{
		CollectionID: chi.URLParam(r, "id"),
		Force:        r.URL.Query().Get("force") == "true",
		Metric:       r.URL.Query().Get("metric"),
	}

	if s := r.URL.Query().Get("seed"); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			c.logger.Warnf("%d %s: seed=%s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), s)
			WriteError(w, e.ErrStatusBadRequest)
			return
		}
		req.Seed = &seed
	}

	res, err := c.collectionUsecase.Finalize(r.Context(), req)
	if err != nil {
		c.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, res)
}

// invalidateCollection
//
//	@Summary		Инвалидация укладки
//	@Description	Помечает укладку устаревшей и отменяет текущий расчёт
//	@Tags			collections
//	@Produce		json
//	@Param			id	path		string					true	"ID коллекции"
//	@Success		200	{object}	map[string]interface{}	"Подтверждение"
//	@Failure		409	{object}	ErrorResponse			"Коллекция не финализирована"
//	@Router			/collections/{id}/invalidate [post]
func (c *CollectionHandler) invalidateCollection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.collectionUsecase.Invalidate(r.Context(), id); err != nil {
		c.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"invalidated": true,
	})
}

// getLayout
//
//	@Summary		Раскладка коллекции
//	@Description	Возвращает раскладку в одном из режимов: map, sort или timehist
//	@Tags			collections
//	@Produce		json
//	@Param			id					path		string				true	"ID коллекции"
//	@Param			mode				query		string				false	"Режим (map | sort | timehist), по умолчанию map"
//	@Param			metric				query		string				false	"Метрика сортировки"
//	@Param			compared_to			query		string				false	"Опорное изображение для режима sort"
//	@Param			resolution			query		string				false	"Шаг гистограммы (hour | day | week | month | year)"
//	@Param			require_palette		query		boolean				false	"Отбрасывать изображения без палитры"
//	@Param			require_captured_at	query		boolean				false	"Отбрасывать изображения без даты съёмки"
//	@Param			require_fresh		query		boolean				false	"Режим map: отклонять устаревшую укладку (409) вместо выдачи"
//	@Param			limit				query		integer				false	"Максимум изображений в выдаче"
//	@Success		200					{object}	usecase.LayoutRes	"Раскладка"
//	@Failure		409					{object}	ErrorResponse		"Коллекция не финализирована или укладка устарела"
//	@Router			/collections/{id}/layout [get]
func (c *CollectionHandler) getLayout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := &usecase.LayoutReq{
		CollectionID:      chi.URLParam(r, "id"),
		Mode:              q.Get("mode"),
		Metric:            q.Get("metric"),
		ComparedTo:        q.Get("compared_to"),
		Resolution:        q.Get("resolution"),
		RequirePalette:    q.Get("require_palette") == "true",
		RequireCapturedAt: q.Get("require_captured_at") == "true",
		RequireFresh:      q.Get("require_fresh") == "true",
	}
	if req.Mode == "" {
		req.Mode = usecase.LayoutMap
	}

	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			c.logger.Warnf("%d %s: limit=%s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), s)
			WriteError(w, e.ErrStatusBadRequest)
			return
		}
		req.Limit = limit
	}

	res, err := c.collectionUsecase.Layout(r.Context(), req)
	if err != nil {
		c.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, res)
}
