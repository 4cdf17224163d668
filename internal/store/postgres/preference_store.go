package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jbalderas/prefcore/internal/models"
	"github.com/jbalderas/prefcore/internal/store"
	"github.com/rs/zerolog/log"
)

// PreferenceStore implements store.PreferenceStore using PostgreSQL.
type PreferenceStore struct {
	pool *pgxpool.Pool
}

// NewPreferenceStore creates a new PostgreSQL-backed preference store.
// It shares the connection pool with other stores.
func NewPreferenceStore(pool *pgxpool.Pool) *PreferenceStore {
	return &PreferenceStore{
		pool: pool,
	}
}

// Get retrieves a preference record by user ID.
func (s *PreferenceStore) Get(ctx context.Context, userID string) (*models.UserPreference, error) {
	query := `
		SELECT user_id, locale, timezone, created_at, updated_at
		FROM user_preferences
		WHERE user_id = $1
	`

	var pref models.UserPreference
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&pref.UserID,
		&pref.Locale,
		&pref.Timezone,
		&pref.CreatedAt,
		&pref.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPreferenceNotFound
		}
		return nil, fmt.Errorf("failed to get preference: %w", mapPostgresError(err))
	}

	return &pref, nil
}

// Create creates a new preference record in the database.
func (s *PreferenceStore) Create(ctx context.Context, pref *models.UserPreference) error {
	query := `
		INSERT INTO user_preferences (
			user_id, locale, timezone, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`

	_, err := s.pool.Exec(ctx, query,
		pref.UserID,
		pref.Locale,
		pref.Timezone,
		pref.CreatedAt,
		pref.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrPreferenceAlreadyExists
		}
		return fmt.Errorf("failed to create preference: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("user_id", pref.UserID).
		Str("locale", pref.Locale).
		Msg("Created preference record")

	return nil
}

// Update atomically mutates an existing record via apply. The row is locked
// with SELECT ... FOR UPDATE for the duration of the transaction, so
// concurrent updates for the same user serialize by commit order.
func (s *PreferenceStore) Update(ctx context.Context, userID string, apply func(*models.UserPreference) error) (*models.UserPreference, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	query := `
		SELECT user_id, locale, timezone, created_at, updated_at
		FROM user_preferences
		WHERE user_id = $1
		FOR UPDATE
	`

	var pref models.UserPreference
	err = tx.QueryRow(ctx, query, userID).Scan(
		&pref.UserID,
		&pref.Locale,
		&pref.Timezone,
		&pref.CreatedAt,
		&pref.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPreferenceNotFound
		}
		return nil, fmt.Errorf("failed to lock preference: %w", mapPostgresError(err))
	}

	// A rejected mutation rolls back with no partial write observable.
	if err := apply(&pref); err != nil {
		return nil, err
	}

	pref.UpdatedAt = time.Now()

	_, err = tx.Exec(ctx, `
		UPDATE user_preferences SET
			locale = $2,
			timezone = $3,
			updated_at = $4
		WHERE user_id = $1
	`, pref.UserID, pref.Locale, pref.Timezone, pref.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update preference: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit preference update: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("user_id", pref.UserID).
		Str("locale", pref.Locale).
		Str("timezone", pref.Timezone).
		Msg("Updated preference record")

	return &pref, nil
}
