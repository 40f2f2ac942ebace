package usecase

import (
	"context"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/stream"
)

// StreamSource снабжает потоковые сессии данными поверх use case'ов:
// укладкой текущего поколения и байтами миниатюр из кэша материализации.
type StreamSource struct {
	collectionUC CollectionUC
	imageUC      ImageUC
}

func NewStreamSource(collectionUC CollectionUC, imageUC ImageUC) *StreamSource {
	return &StreamSource{
		collectionUC: collectionUC,
		imageUC:      imageUC,
	}
}

func (s *StreamSource) Entries(ctx context.Context, collectionID string) ([]stream.Entry, error) {
	res, err := s.collectionUC.Layout(ctx, &LayoutReq{CollectionID: collectionID, Mode: LayoutMap})
	if err != nil {
		return nil, err
	}

	entries := make([]stream.Entry, 0, len(res.Points))
	for id, pt := range res.Points {
		entries = append(entries, stream.Entry{ID: id, Pt: pt})
	}

	return entries, nil
}

func (s *StreamSource) Derivative(ctx context.Context, imageID string, width, height int) ([]byte, string, error) {
	res, err := s.imageUC.Derivative(ctx, NewDerivativeReq(imageID, width, height, domain.KindThumbnail))
	if err != nil {
		return nil, "", err
	}

	return res.Data, res.Extension, nil
}
