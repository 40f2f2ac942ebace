package usecase

import "context"

type CollectionUC interface {
	Create(ctx context.Context, req *CreateCollectionReq) (*CollectionInfo, error)
	List(ctx context.Context) ([]CollectionInfo, error)
	Finalize(ctx context.Context, req *FinalizeReq) (*FinalizeRes, error)
	Invalidate(ctx context.Context, collectionID string) error
	Layout(ctx context.Context, req *LayoutReq) (*LayoutRes, error)
}

type ImageUC interface {
	Ingest(ctx context.Context, req *IngestReq) (*IngestRes, error)
	List(ctx context.Context, collectionID string) ([]ImageInfo, error)
	Delete(ctx context.Context, imageID string) error
	Derivative(ctx context.Context, req *DerivativeReq) (*DerivativeRes, error)
	Similar(ctx context.Context, imageID string, limit int) ([]SimilarInfo, error)
}
