package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/DRSN-tech/atlas-backend/internal/usecase"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/jimlawless/whereami"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, e.ErrStatusBadRequest.Error()
	case errors.Is(err, e.ErrExpectedMultipart):
		return http.StatusBadRequest, e.ErrExpectedMultipart.Error()
	case errors.Is(err, e.ErrMissingFields):
		return http.StatusBadRequest, e.ErrMissingFields.Error()
	case errors.Is(err, e.ErrCollectionNameRequired):
		return http.StatusBadRequest, e.ErrCollectionNameRequired.Error()
	case errors.Is(err, e.ErrTooManyImages):
		return http.StatusBadRequest, e.ErrTooManyImages.Error()
	case errors.Is(err, e.ErrNoImages):
		return http.StatusBadRequest, e.ErrNoImages.Error()
	case errors.Is(err, e.ErrInvalidDimensions):
		return http.StatusBadRequest, e.ErrInvalidDimensions.Error()
	case errors.Is(err, e.ErrUnknownKind):
		return http.StatusBadRequest, e.ErrUnknownKind.Error()
	case errors.Is(err, e.ErrUnknownMetric):
		return http.StatusBadRequest, e.ErrUnknownMetric.Error()
	case errors.Is(err, e.ErrUnknownLayout):
		return http.StatusBadRequest, e.ErrUnknownLayout.Error()
	case errors.Is(err, e.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, e.ErrFileTooLarge.Error()
	case errors.Is(err, e.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, e.ErrUnsupportedMediaType.Error()
	case errors.Is(err, e.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, e.ErrUnsupportedFormat.Error()
	case errors.Is(err, e.ErrCorruptImage):
		return http.StatusUnprocessableEntity, e.ErrCorruptImage.Error()
	case errors.Is(err, e.ErrInsufficientData):
		return http.StatusUnprocessableEntity, e.ErrInsufficientData.Error()
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound, e.ErrNotFound.Error()
	case errors.Is(err, e.ErrAlreadyFinalized):
		return http.StatusConflict, e.ErrAlreadyFinalized.Error()
	case errors.Is(err, e.ErrNotFinalized):
		return http.StatusConflict, e.ErrNotFinalized.Error()
	case errors.Is(err, e.ErrEmbeddingStale):
		return http.StatusConflict, e.ErrEmbeddingStale.Error()
	case errors.Is(err, e.ErrCancelled):
		return http.StatusServiceUnavailable, e.ErrCancelled.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func ensureMultipartForm(r *http.Request, maxMemory int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}
	return r.ParseMultipartForm(maxMemory)
}

func parseFiles(files []*multipart.FileHeader) ([]usecase.ImageFile, error) {
	const (
		maxImageCount = 256
		maxFileSize   = 32 << 20
	)

	if len(files) == 0 {
		return nil, e.ErrNoImages
	}
	if len(files) > maxImageCount {
		return nil, e.ErrTooManyImages
	}

	images := make([]usecase.ImageFile, 0, len(files))
	for _, fh := range files {
		data, mimeType, err := readFile(fh, maxFileSize)
		if err != nil {
			return nil, err
		}
		images = append(images, *usecase.NewImageFile(data, mimeType, int64(len(data)), fh.Filename))
	}
	return images, nil
}

func readFile(fh *multipart.FileHeader, maxSize int64) ([]byte, string, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	if int64(len(data)) > maxSize {
		return nil, "", e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	mimeType := http.DetectContentType(data[:min(len(data), 512)])
	return data, mimeType, nil
}
