// Package settings holds the domain services of the core: per-user locale and
// timezone resolution, and tenant-wide organization configuration. The
// services validate input against the catalog, persist through a store
// backend, and emit invalidation events on every successful save.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jbalderas/prefcore/internal/catalog"
	"github.com/jbalderas/prefcore/internal/events"
	"github.com/jbalderas/prefcore/internal/models"
	"github.com/jbalderas/prefcore/internal/store"
	"github.com/jbalderas/prefcore/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// PreferenceUpdate is a partial update: nil fields are left untouched.
type PreferenceUpdate struct {
	Locale   *string
	Timezone *string
}

// PreferenceService resolves and persists per-user locale and timezone state.
// Rendering layers call Resolve on every mount rather than caching globally,
// so one user's locale switch can never leak into another session.
type PreferenceService struct {
	store   store.PreferenceStore
	catalog *catalog.Catalog
	broker  *events.Broker
}

// NewPreferenceService creates a preference service on top of the given store.
func NewPreferenceService(st store.PreferenceStore, cat *catalog.Catalog, broker *events.Broker) *PreferenceService {
	return &PreferenceService{
		store:   st,
		catalog: cat,
		broker:  broker,
	}
}

// Resolve returns the current preference for a user. A user with no record
// gets the system default, which is persisted on first resolution so later
// reads and updates see a concrete record. Resolve never fails on a missing
// record; only storage unavailability surfaces as an error.
func (s *PreferenceService) Resolve(ctx context.Context, userID string) (*models.UserPreference, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}

	telemetry.GetMetrics().PreferenceResolvesTotal.Add(ctx, 1)

	pref, err := s.store.Get(ctx, userID)
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, store.ErrPreferenceNotFound) {
		return nil, err
	}

	now := time.Now()
	pref = &models.UserPreference{
		UserID:    userID,
		Locale:    s.catalog.DefaultLocale(),
		Timezone:  s.catalog.DefaultTimezone(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.Create(ctx, pref)
	if errors.Is(err, store.ErrPreferenceAlreadyExists) {
		// Lost a race with a concurrent first resolution; the stored
		// record is the same default.
		return s.store.Get(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	telemetry.GetMetrics().PreferenceDefaultsSeededTotal.Add(ctx, 1)

	log.Debug().
		Str("user_id", userID).
		Str("locale", pref.Locale).
		Msg("Seeded default preference record")

	return pref, nil
}

// Update validates and persists a partial preference change, then emits an
// invalidation event carrying the new record. Saving the same values twice
// emits the event both times: each save is an explicit user action.
func (s *PreferenceService) Update(ctx context.Context, userID string, upd PreferenceUpdate) (*models.UserPreference, error) {
	metrics := telemetry.GetMetrics()

	var locale string
	if upd.Locale != nil {
		canonical, ok := s.catalog.CanonicalLocale(*upd.Locale)
		if !ok {
			metrics.ValidationFailuresTotal.Add(ctx, 1)
			return nil, fmt.Errorf("%w: %q", ErrInvalidLocale, *upd.Locale)
		}
		locale = canonical
	}
	if upd.Timezone != nil && !s.catalog.ValidTimezone(*upd.Timezone) {
		metrics.ValidationFailuresTotal.Add(ctx, 1)
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, *upd.Timezone)
	}

	// Make sure the record exists; a save against a never-resolved user
	// starts from the system default.
	if _, err := s.Resolve(ctx, userID); err != nil {
		return nil, err
	}

	updated, err := s.store.Update(ctx, userID, func(pref *models.UserPreference) error {
		if upd.Locale != nil {
			pref.Locale = locale
		}
		if upd.Timezone != nil {
			pref.Timezone = *upd.Timezone
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PreferenceUpdatesTotal.Add(ctx, 1)
	s.broker.PublishPreference(updated)

	log.Info().
		Str("user_id", userID).
		Str("locale", updated.Locale).
		Str("timezone", updated.Timezone).
		Msg("Updated user preference")

	return updated, nil
}
