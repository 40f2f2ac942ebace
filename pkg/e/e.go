package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Ошибки пайплайна изображений
	ErrUnsupportedFormat = fmt.Errorf("unsupported image format")
	ErrCorruptImage      = fmt.Errorf("corrupt image")
	ErrInvalidDimensions = fmt.Errorf("invalid dimensions")

	// Ошибки движка эмбеддинга
	ErrInsufficientData = fmt.Errorf("insufficient data for embedding")
	ErrCancelled        = fmt.Errorf("computation cancelled")

	// Ошибки кэша материализации
	ErrCapacityExceeded = fmt.Errorf("cache capacity exceeded")

	// Ошибки состояния коллекции
	ErrAlreadyFinalized = fmt.Errorf("collection already finalized, pass force to recompute")
	ErrNotFinalized     = fmt.Errorf("collection not finalized")
	ErrEmbeddingStale   = fmt.Errorf("embedding is stale, re-finalize required")

	// 404 Not Found
	ErrNotFound = fmt.Errorf("not found")

	// 400 Bad Request
	ErrStatusBadRequest       = fmt.Errorf("bad request")
	ErrExpectedMultipart      = fmt.Errorf("expected multipart/form-data")
	ErrMissingFields          = fmt.Errorf("missing required fields")
	ErrCollectionNameRequired = fmt.Errorf("collection name is required")
	ErrNoImages               = fmt.Errorf("no images provided")
	ErrTooManyImages          = fmt.Errorf("too many images")
	ErrFileTooLarge           = fmt.Errorf("file too large")
	ErrUnsupportedMediaType   = fmt.Errorf("unsupported media type")
	ErrUnknownKind            = fmt.Errorf("unknown derivative kind")
	ErrUnknownMetric          = fmt.Errorf("unknown distance metric")
	ErrUnknownLayout          = fmt.Errorf("unknown layout type")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")

	// Ошибки окружения
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
