package medicine

import (
	"context"
	"fmt"

	"medistock/internal/core/id"
)

// Cache is a read-through cache of the medicine reference.
// The PostgreSQL-backed implementation lives in infrastructure/cache and is
// invalidated via LISTEN/NOTIFY when medicines change.
type Cache interface {
	Get(medicineID id.ID) (*Medicine, bool)
	Put(m *Medicine)
}

// Service provides read access to the medicine catalog.
type Service struct {
	repo  Repository
	cache Cache // optional
}

// NewService creates a new medicine service.
func NewService(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Get retrieves a medicine, consulting the cache first.
func (s *Service) Get(ctx context.Context, medicineID id.ID) (*Medicine, error) {
	if s.cache != nil {
		if m, ok := s.cache.Get(medicineID); ok {
			return m, nil
		}
	}

	m, err := s.repo.GetByID(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Put(m)
	}
	return m, nil
}

// Register creates a new medicine (administrative path).
func (s *Service) Register(ctx context.Context, m *Medicine) error {
	if err := m.Validate(ctx); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return fmt.Errorf("create medicine: %w", err)
	}
	if s.cache != nil {
		s.cache.Put(m)
	}
	return nil
}
