package http

import (
	"net/http"
	"strconv"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/usecase"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ImageHandler struct {
	imageUsecase usecase.ImageUC
	logger       logger.Logger
}

func NewImageHandler(imageUsecase usecase.ImageUC, logger logger.Logger) *ImageHandler {
	return &ImageHandler{imageUsecase: imageUsecase, logger: logger}
}

// uploadImages
//
//	@Summary		Загрузка изображений
//	@Description	Принимает пачку изображений в коллекцию; битые файлы отбраковываются поштучно
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		string				true	"ID коллекции"
//	@Param			images	formData	file				true	"Файлы изображений"
//	@Success		201		{object}	usecase.IngestRes	"Принятые и отбракованные файлы"
//	@Failure		400		{object}	ErrorResponse		"Ошибка валидации"
//	@Router			/collections/{id}/images [post]
func (h *ImageHandler) uploadImages(w http.ResponseWriter, r *http.Request) {
	const (
		maxTotalRequestSize = 512 << 20
		maxMemory           = 32 << 20
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	files, err := parseFiles(r.MultipartForm.File["images"])
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	res, err := h.imageUsecase.Ingest(r.Context(), usecase.NewIngestReq(chi.URLParam(r, "id"), files))
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, res)
}

// listImages
//
//	@Summary	Список изображений коллекции
//	@Tags		images
//	@Produce	json
//	@Param		id	path		string	true	"ID коллекции"
//	@Success	200	{array}		usecase.ImageInfo
//	@Failure	404	{object}	ErrorResponse	"Коллекция не найдена"
//	@Router		/collections/{id}/images [get]
func (h *ImageHandler) listImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.imageUsecase.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, images)
}

// deleteImage
//
//	@Summary		Удаление изображения
//	@Description	Удаляет изображение вместе с производными и записью в индексе признаков
//	@Tags			images
//	@Produce		json
//	@Param			id	path		string					true	"ID изображения"
//	@Success		200	{object}	map[string]interface{}	"Подтверждение"
//	@Failure		404	{object}	ErrorResponse			"Изображение не найдено"
//	@Router			/images/{id} [delete]
func (h *ImageHandler) deleteImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.imageUsecase.Delete(r.Context(), id); err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"deleted": true,
	})
}

// getDerivative
//
//	@Summary		Производная изображения
//	@Description	Возвращает миниатюру или превью запрошенного размера; материализует по требованию
//	@Tags			images
//	@Produce		image/jpeg
//	@Param			id		path		string	true	"ID изображения"
//	@Param			w		query		integer	true	"Ширина рамки"
//	@Param			h		query		integer	true	"Высота рамки"
//	@Param			kind	query		string	false	"Вид производной (thumbnail | preview | original)"
//	@Success		200		{file}		binary	"Байты изображения"
//	@Failure		400		{object}	ErrorResponse	"Неверные размеры"
//	@Failure		404		{object}	ErrorResponse	"Изображение не найдено"
//	@Router			/images/{id}/derivative [get]
func (h *ImageHandler) getDerivative(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	width, errW := strconv.Atoi(q.Get("w"))
	height, errH := strconv.Atoi(q.Get("h"))
	if errW != nil || errH != nil {
		h.logger.Warnf("%d %s: w=%s h=%s", http.StatusBadRequest, e.ErrInvalidDimensions.Error(), q.Get("w"), q.Get("h"))
		WriteError(w, e.ErrInvalidDimensions)
		return
	}

	kindStr := q.Get("kind")
	if kindStr == "" {
		kindStr = "thumbnail"
	}
	kind, err := domain.ParseKind(kindStr)
	if err != nil {
		h.logger.Warnf("%d %s: kind=%s", http.StatusBadRequest, e.ErrUnknownKind.Error(), kindStr)
		WriteError(w, err)
		return
	}

	res, err := h.imageUsecase.Derivative(r.Context(), usecase.NewDerivativeReq(chi.URLParam(r, "id"), width, height, kind))
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", domain.MimeForExtension(res.Extension))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}

// getSimilar
//
//	@Summary		Похожие изображения
//	@Description	Ищет ближайшие по вектору признаков изображения той же коллекции
//	@Tags			images
//	@Produce		json
//	@Param			id		path		string	true	"ID изображения"
//	@Param			limit	query		integer	false	"Максимум результатов (по умолчанию 10)"
//	@Success		200		{array}		usecase.SimilarInfo
//	@Failure		404		{object}	ErrorResponse	"Изображение не найдено"
//	@Router			/images/{id}/similar [get]
func (h *ImageHandler) getSimilar(w http.ResponseWriter, r *http.Request) {
	const defaultLimit = 10

	limit := defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 {
			h.logger.Warnf("%d %s: limit=%s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), s)
			WriteError(w, e.ErrStatusBadRequest)
			return
		}
		limit = parsed
	}

	similar, err := h.imageUsecase.Similar(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, similar)
}
