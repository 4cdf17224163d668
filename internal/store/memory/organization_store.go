package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jbalderas/prefcore/internal/models"
	"github.com/jbalderas/prefcore/internal/store"
)

// OrganizationStore implements store.OrganizationStore using in-memory
// storage. Used by tests and the development server mode - data is lost on
// restart.
type OrganizationStore struct {
	mu sync.RWMutex

	organizations map[uuid.UUID]*models.OrganizationConfig // org_id -> OrganizationConfig
}

// NewOrganizationStore creates a new in-memory organization store.
func NewOrganizationStore() *OrganizationStore {
	return &OrganizationStore{
		organizations: make(map[uuid.UUID]*models.OrganizationConfig),
	}
}

// Create creates a new organization config in memory.
func (s *OrganizationStore) Create(ctx context.Context, cfg *models.OrganizationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.organizations[cfg.OrgID]; exists {
		return store.ErrOrganizationAlreadyExists
	}

	s.organizations[cfg.OrgID] = cfg.Clone()

	return nil
}

// Get retrieves an organization config by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.OrganizationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, exists := s.organizations[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	return cfg.Clone(), nil
}

// Update atomically mutates an existing config via apply. The write lock is
// held across the whole read-modify-write, so mutations per organization
// serialize while readers observe only complete snapshots.
func (s *OrganizationStore) Update(ctx context.Context, orgID uuid.UUID, apply func(*models.OrganizationConfig) error) (*models.OrganizationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.organizations[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	next := current.Clone()
	if err := apply(next); err != nil {
		return nil, err
	}

	next.UpdatedAt = time.Now()
	s.organizations[orgID] = next

	return next.Clone(), nil
}

// Delete removes an organization config.
func (s *OrganizationStore) Delete(ctx context.Context, orgID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.organizations[orgID]; !exists {
		return store.ErrOrganizationNotFound
	}

	delete(s.organizations, orgID)

	return nil
}

// List returns all organization configs ordered by creation time.
func (s *OrganizationStore) List(ctx context.Context) ([]*models.OrganizationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.OrganizationConfig, 0, len(s.organizations))
	for _, cfg := range s.organizations {
		result = append(result, cfg.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}
