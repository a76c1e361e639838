package catalog

import (
	"context"
	"fmt"
	"strings"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Medicine, error)
	List(ctx context.Context, state Lifecycle, search string, limit, offset int) ([]Medicine, error)
	Create(ctx context.Context, m Medicine) (Medicine, error)
	Update(ctx context.Context, id int64, m Medicine) error
	Archive(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
}

// Service orchestrates catalog operations.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a catalog service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(m Medicine) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if m.MinStock < 0 || m.MaxStock < 0 || m.ReorderLevel < 0 {
		return fmt.Errorf("%w: stock thresholds must be non-negative", ErrValidation)
	}
	if m.MaxStock > 0 && m.MinStock > m.MaxStock {
		return fmt.Errorf("%w: min_stock exceeds max_stock", ErrValidation)
	}
	if m.DefaultMargin != nil && *m.DefaultMargin <= 0 {
		return fmt.Errorf("%w: default_margin must be positive", ErrValidation)
	}
	return nil
}

// Get returns one medicine.
func (s *Service) Get(ctx context.Context, id int64) (Medicine, error) {
	if id <= 0 {
		return Medicine{}, fmt.Errorf("%w: invalid medicine id", ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns medicines in the given lifecycle state.
func (s *Service) List(ctx context.Context, state Lifecycle, search string, limit, offset int) ([]Medicine, error) {
	if state == "" {
		state = LifecycleActive
	}
	return s.repo.List(ctx, state, strings.TrimSpace(search), limit, offset)
}

// Create adds a medicine to the catalog.
func (s *Service) Create(ctx context.Context, m Medicine) (Medicine, error) {
	if err := s.validate(m); err != nil {
		return Medicine{}, err
	}
	m.State = LifecycleActive
	return s.repo.Create(ctx, m)
}

// Update edits catalog fields of an existing medicine.
func (s *Service) Update(ctx context.Context, id int64, m Medicine) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid medicine id", ErrValidation)
	}
	if err := s.validate(m); err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.State == LifecycleArchived {
		return ErrArchived
	}
	return s.repo.Update(ctx, id, m)
}

// Archive soft-deletes a medicine.
func (s *Service) Archive(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid medicine id", ErrValidation)
	}
	return s.repo.Archive(ctx, id)
}

// Restore re-activates an archived medicine.
func (s *Service) Restore(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid medicine id", ErrValidation)
	}
	return s.repo.Restore(ctx, id)
}
