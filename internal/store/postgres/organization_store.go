package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jbalderas/prefcore/internal/models"
	"github.com/jbalderas/prefcore/internal/store"
	"github.com/rs/zerolog/log"
)

// OrganizationStore implements store.OrganizationStore using PostgreSQL.
// The whole config is read and written as one row, with the nested
// collections marshaled into JSONB columns.
type OrganizationStore struct {
	pool *pgxpool.Pool
}

// NewOrganizationStore creates a new PostgreSQL-backed organization store.
// It shares the connection pool with other stores.
func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{
		pool: pool,
	}
}

const organizationColumns = `
	org_id, name, currency, primary_color,
	pipeline_stages, contact_statuses,
	notification_flags, integrations,
	created_at, updated_at
`

// scanOrganization scans one organizations row, unmarshaling the JSONB columns.
func scanOrganization(row pgx.Row) (*models.OrganizationConfig, error) {
	var cfg models.OrganizationConfig
	var stagesJSON, statusesJSON, flagsJSON, integrationsJSON []byte

	err := row.Scan(
		&cfg.OrgID,
		&cfg.Name,
		&cfg.Currency,
		&cfg.PrimaryColor,
		&stagesJSON,
		&statusesJSON,
		&flagsJSON,
		&integrationsJSON,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stagesJSON, &cfg.PipelineStages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline stages: %w", err)
	}
	if err := json.Unmarshal(statusesJSON, &cfg.ContactStatuses); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contact statuses: %w", err)
	}
	if err := json.Unmarshal(flagsJSON, &cfg.NotificationFlags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification flags: %w", err)
	}
	if err := json.Unmarshal(integrationsJSON, &cfg.Integrations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal integrations: %w", err)
	}

	return &cfg, nil
}

// marshalCollections marshals the nested collections for the JSONB columns.
func marshalCollections(cfg *models.OrganizationConfig) (stages, statuses, flags, integrations []byte, err error) {
	if stages, err = json.Marshal(cfg.PipelineStages); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal pipeline stages: %w", err)
	}
	if statuses, err = json.Marshal(cfg.ContactStatuses); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal contact statuses: %w", err)
	}
	if flags, err = json.Marshal(cfg.NotificationFlags); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal notification flags: %w", err)
	}
	if integrations, err = json.Marshal(cfg.Integrations); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal integrations: %w", err)
	}
	return stages, statuses, flags, integrations, nil
}

// Create creates a new organization config in the database.
func (s *OrganizationStore) Create(ctx context.Context, cfg *models.OrganizationConfig) error {
	stages, statuses, flags, integrations, err := marshalCollections(cfg)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO organizations (` + organizationColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err = s.pool.Exec(ctx, query,
		cfg.OrgID,
		cfg.Name,
		cfg.Currency,
		cfg.PrimaryColor,
		stages,
		statuses,
		flags,
		integrations,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrOrganizationAlreadyExists
		}
		return fmt.Errorf("failed to create organization: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("org_id", cfg.OrgID.String()).
		Str("name", cfg.Name).
		Msg("Created organization config")

	return nil
}

// Get retrieves an organization config by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.OrganizationConfig, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE org_id = $1`

	cfg, err := scanOrganization(s.pool.QueryRow(ctx, query, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", mapPostgresError(err))
	}

	return cfg, nil
}

// Update atomically mutates an existing config via apply. The row is locked
// with SELECT ... FOR UPDATE, so mutations per organization serialize while
// plain reads keep observing the previous committed snapshot.
func (s *OrganizationStore) Update(ctx context.Context, orgID uuid.UUID, apply func(*models.OrganizationConfig) error) (*models.OrganizationConfig, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE org_id = $1 FOR UPDATE`

	cfg, err := scanOrganization(tx.QueryRow(ctx, query, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to lock organization: %w", mapPostgresError(err))
	}

	// A rejected mutation rolls back with no partial write observable.
	if err := apply(cfg); err != nil {
		return nil, err
	}

	cfg.UpdatedAt = time.Now()

	stages, statuses, flags, integrations, err := marshalCollections(cfg)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE organizations SET
			name = $2,
			currency = $3,
			primary_color = $4,
			pipeline_stages = $5,
			contact_statuses = $6,
			notification_flags = $7,
			integrations = $8,
			updated_at = $9
		WHERE org_id = $1
	`,
		cfg.OrgID,
		cfg.Name,
		cfg.Currency,
		cfg.PrimaryColor,
		stages,
		statuses,
		flags,
		integrations,
		cfg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit organization update: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("org_id", cfg.OrgID.String()).
		Msg("Updated organization config")

	return cfg, nil
}

// Delete removes an organization config.
func (s *OrganizationStore) Delete(ctx context.Context, orgID uuid.UUID) error {
	query := `DELETE FROM organizations WHERE org_id = $1`

	result, err := s.pool.Exec(ctx, query, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	log.Info().
		Str("org_id", orgID.String()).
		Msg("Deleted organization config")

	return nil
}

// List returns all organization configs ordered by creation time.
func (s *OrganizationStore) List(ctx context.Context) ([]*models.OrganizationConfig, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var configs []*models.OrganizationConfig
	for rows.Next() {
		cfg, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		configs = append(configs, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizations: %w", mapPostgresError(err))
	}

	return configs, nil
}
