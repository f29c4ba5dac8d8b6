package service

import (
	"context"

	"compliance-navigator-be/internal/dto"
	"compliance-navigator-be/pkg/corpus"
	"compliance-navigator-be/pkg/proxy"
)

type IDocumentService interface {
	GetAll(ctx context.Context) ([]dto.DocumentResponse, error)
	Show(ctx context.Context, id string) (*dto.DocumentResponse, error)
}

type documentService struct {
	catalog   *corpus.Catalog
	relayPath string
}

func NewDocumentService(catalog *corpus.Catalog, relayPath string) IDocumentService {
	return &documentService{catalog: catalog, relayPath: relayPath}
}

func (s *documentService) GetAll(ctx context.Context) ([]dto.DocumentResponse, error) {
	refs := s.catalog.List()
	res := make([]dto.DocumentResponse, 0, len(refs))
	for _, ref := range refs {
		entry, err := s.catalog.Get(ref.ID)
		if err != nil {
			return nil, err
		}
		res = append(res, s.toResponse(entry))
	}
	return res, nil
}

func (s *documentService) Show(ctx context.Context, id string) (*dto.DocumentResponse, error) {
	entry, err := s.catalog.Get(id)
	if err != nil {
		return nil, err
	}
	res := s.toResponse(entry)
	return &res, nil
}

func (s *documentService) toResponse(e corpus.Entry) dto.DocumentResponse {
	return dto.DocumentResponse{
		Id:           e.ID,
		DisplayLabel: e.DisplayLabel,
		SourceURL:    e.SourceURL,
		RelayURL:     proxy.RelayURLFor(s.relayPath, e.SourceURL),
		IndexedCount: len(e.Clauses),
	}
}
