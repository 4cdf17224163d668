package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jbalderas/prefcore/internal/models"
	"github.com/jbalderas/prefcore/internal/store"
)

// PreferenceStore implements store.PreferenceStore using in-memory storage.
// Used by tests and the development server mode - data is lost on restart.
type PreferenceStore struct {
	mu sync.RWMutex

	preferences map[string]*models.UserPreference // user_id -> UserPreference
}

// NewPreferenceStore creates a new in-memory preference store.
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{
		preferences: make(map[string]*models.UserPreference),
	}
}

// Get retrieves a preference record by user ID.
func (s *PreferenceStore) Get(ctx context.Context, userID string) (*models.UserPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, exists := s.preferences[userID]
	if !exists {
		return nil, store.ErrPreferenceNotFound
	}

	return pref.Clone(), nil
}

// Create creates a new preference record.
func (s *PreferenceStore) Create(ctx context.Context, pref *models.UserPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.preferences[pref.UserID]; exists {
		return store.ErrPreferenceAlreadyExists
	}

	s.preferences[pref.UserID] = pref.Clone()

	return nil
}

// Update atomically mutates an existing record via apply. The write lock is
// held across the whole read-modify-write, so concurrent updates for the same
// user serialize.
func (s *PreferenceStore) Update(ctx context.Context, userID string, apply func(*models.UserPreference) error) (*models.UserPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.preferences[userID]
	if !exists {
		return nil, store.ErrPreferenceNotFound
	}

	// Mutate a clone so a failed apply leaves the stored record untouched.
	next := current.Clone()
	if err := apply(next); err != nil {
		return nil, err
	}

	next.UpdatedAt = time.Now()
	s.preferences[userID] = next

	return next.Clone(), nil
}
