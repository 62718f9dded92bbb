package ledger

import (
	"context"

	"medistock/internal/core/apperror"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Service exposes read access to the ledger. Writes go through the stock
// service, which appends entries inside the same transaction that moves
// batch quantities.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// History returns one page of entries matching the filter, newest-first.
// The page size is clamped to [1, maxPageSize]; zero means the default.
func (s *Service) History(ctx context.Context, f Filter, cursor *Cursor, limit int) (*Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, apperror.NewValidation("history range end precedes start")
	}
	return s.repo.History(ctx, f, cursor, limit)
}
