// Package store defines the storage interfaces for preference and
// organization config records, along with the sentinel errors every backend
// maps its native failures onto.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jbalderas/prefcore/internal/models"
)

// Sentinel errors shared by all store backends.
var (
	ErrPreferenceNotFound        = errors.New("preference not found")
	ErrPreferenceAlreadyExists   = errors.New("preference already exists")
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")

	// ErrStorageUnavailable wraps backend connectivity failures. It is the
	// only fatal error kind: the operation aborts with no partial state
	// change and is not retried by the core.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// PreferenceStore persists one UserPreference record per user.
//
// Update runs apply inside an atomic read-modify-write: the backend loads the
// current record, invokes apply on it, and persists the result only if apply
// returns nil. Concurrent updates for the same user serialize; an error from
// apply is returned unchanged and leaves the stored record untouched.
type PreferenceStore interface {
	// Get retrieves a preference record by user ID.
	// Returns ErrPreferenceNotFound if no record exists.
	Get(ctx context.Context, userID string) (*models.UserPreference, error)

	// Create creates a new preference record.
	// Returns ErrPreferenceAlreadyExists if the user already has one.
	Create(ctx context.Context, pref *models.UserPreference) error

	// Update atomically mutates an existing record via apply.
	// Returns ErrPreferenceNotFound if no record exists.
	Update(ctx context.Context, userID string, apply func(*models.UserPreference) error) (*models.UserPreference, error)
}

// OrganizationStore persists one OrganizationConfig record per tenant.
//
// Update follows the same atomic read-modify-write contract as
// PreferenceStore.Update, serialized per organization. Reads never block on a
// pending write; they observe either the previous or the new snapshot, never
// a partial one.
type OrganizationStore interface {
	// Create creates a new organization config.
	// Returns ErrOrganizationAlreadyExists if the org ID is taken.
	Create(ctx context.Context, cfg *models.OrganizationConfig) error

	// Get retrieves an organization config by ID.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Get(ctx context.Context, orgID uuid.UUID) (*models.OrganizationConfig, error)

	// Update atomically mutates an existing config via apply.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Update(ctx context.Context, orgID uuid.UUID, apply func(*models.OrganizationConfig) error) (*models.OrganizationConfig, error)

	// Delete removes an organization config.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Delete(ctx context.Context, orgID uuid.UUID) error

	// List returns all organization configs ordered by creation time.
	List(ctx context.Context) ([]*models.OrganizationConfig, error)
}
