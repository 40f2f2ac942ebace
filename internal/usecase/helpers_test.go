package usecase

import (
	"testing"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"jpeg": "jpg",
		"png":  "png",
		"gif":  "gif",
		"bmp":  "bmp",
		"tiff": "tiff",
		"webp": "webp",
		"ico":  "bin",
		"":     "bin",
	}
	for format, want := range tests {
		assert.Equal(t, want, extensionFor(format), format)
	}
}

func TestDerivativeKeys(t *testing.T) {
	key := derivativeKey("img-1", 64, 48, domain.KindThumbnail)
	assert.Equal(t, "deriv/img-1/64x48-thumbnail", key)
	assert.Contains(t, key, derivativeKeyPrefix("img-1"))

	assert.Equal(t, "embed/coll-1/3", embeddingKey("coll-1", 3))
	assert.Contains(t, embeddingKey("coll-1", 3), embeddingKeyPrefix("coll-1"))
}
