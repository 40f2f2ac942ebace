package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DRSN-tech/atlas-backend/pkg/e"
)

func TestParseKind(t *testing.T) {
	for name, want := range map[string]DerivativeKind{
		"original":  KindOriginal,
		"thumbnail": KindThumbnail,
		"preview":   KindPreview,
	} {
		got, err := ParseKind(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
		assert.Equal(t, name, got.String())
	}

	_, err := ParseKind("sticker")
	require.ErrorIs(t, err, e.ErrUnknownKind)
}

func TestKindFromInt(t *testing.T) {
	for _, k := range []DerivativeKind{KindOriginal, KindThumbnail, KindPreview} {
		got, err := KindFromInt(int(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := KindFromInt(42)
	require.ErrorIs(t, err, e.ErrUnknownKind)
	assert.False(t, DerivativeKind(42).Valid())
}

func TestMimeForExtension(t *testing.T) {
	tests := map[string]string{
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"png":  "image/png",
		"webp": "image/webp",
		"bin":  "application/octet-stream",
	}
	for ext, want := range tests {
		assert.Equal(t, want, MimeForExtension(ext), ext)
	}
}

func TestDerivativeObjectKey(t *testing.T) {
	d := NewDerivative("img-1", 128, 96, KindPreview, "jpg", nil)
	assert.Equal(t, "img-1/128x96-preview.jpg", d.ObjectKey())
	assert.Equal(t, d.ObjectKey(), DerivativeObjectKey("img-1", 128, 96, KindPreview, "jpg"))
}
