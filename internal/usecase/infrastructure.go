package usecase

import (
	"context"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/matcache"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/tsne"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/tsne/dist"
)

type FeatureExtractor interface {
	Extract(raw []byte) (*ExtractRes, error)
}

type DerivativeGenerator interface {
	Generate(src []byte, width, height int, kind domain.DerivativeKind) ([]byte, string, error)
}

// MaterializeCache — кэш материализации с single-flight дисциплиной на ключ.
type MaterializeCache interface {
	GetOrCompute(ctx context.Context, key string, pin bool, compute matcache.ComputeFunc) (*matcache.Result, error)
	Invalidate(key string)
	InvalidatePrefix(prefix string)
}

// EmbeddingEngine — вычислитель 2D-укладки коллекции.
type EmbeddingEngine interface {
	Embed(ctx context.Context, inputs []tsne.Input, seed int64, p tsne.Params, metric dist.Metric) (map[string]domain.Point, []string, error)
}

// EmbeddingRunner — пул фоновых расчётов укладок.
type EmbeddingRunner interface {
	Launch(collectionID string, job func(ctx context.Context) error)
	Cancel(collectionID string)
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}
