package settings

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jbalderas/prefcore/internal/catalog"
	"github.com/jbalderas/prefcore/internal/events"
	"github.com/jbalderas/prefcore/internal/models"
	"github.com/jbalderas/prefcore/internal/store"
	"github.com/jbalderas/prefcore/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// Display names for entries appended without an explicit name.
const (
	DefaultStageName  = "Nueva etapa"
	DefaultStatusName = "Nuevo estado"
)

// Updatable single-value fields of an organization config.
const (
	FieldName         = "name"
	FieldCurrency     = "currency"
	FieldPrimaryColor = "primary_color"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// OrganizationService resolves and mutates tenant-wide configuration. Every
// mutation runs as an atomic read-modify-write serialized per organization
// and emits an invalidation event with the new snapshot.
type OrganizationService struct {
	store   store.OrganizationStore
	catalog *catalog.Catalog
	broker  *events.Broker
}

// NewOrganizationService creates an organization service on top of the given store.
func NewOrganizationService(st store.OrganizationStore, cat *catalog.Catalog, broker *events.Broker) *OrganizationService {
	return &OrganizationService{
		store:   st,
		catalog: cat,
		broker:  broker,
	}
}

// Create creates a new organization seeded with the catalog defaults:
// pipeline stages, contact statuses, currency, brand color, and every known
// notification and integration toggle switched off.
func (s *OrganizationService) Create(ctx context.Context, name string) (*models.OrganizationConfig, error) {
	if strings.TrimSpace(name) == "" {
		telemetry.GetMetrics().ValidationFailuresTotal.Add(ctx, 1)
		return nil, &ValidationError{Field: FieldName, Reason: "must not be empty"}
	}

	now := time.Now()
	cfg := &models.OrganizationConfig{
		OrgID:             uuid.Must(uuid.NewV7()),
		Name:              name,
		Currency:          s.catalog.DefaultCurrency(),
		PrimaryColor:      s.catalog.DefaultColor(),
		NotificationFlags: make(map[string]bool),
		Integrations:      make(map[string]bool),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	for _, stageName := range s.catalog.DefaultStages() {
		cfg.PipelineStages = append(cfg.PipelineStages, models.PipelineStage{
			ID:   uuid.Must(uuid.NewV7()),
			Name: stageName,
		})
	}
	for _, statusName := range s.catalog.DefaultStatuses() {
		cfg.ContactStatuses = append(cfg.ContactStatuses, models.ContactStatus{
			ID:   uuid.Must(uuid.NewV7()),
			Name: statusName,
		})
	}
	for _, key := range s.catalog.NotificationKeys() {
		cfg.NotificationFlags[key] = false
	}
	for _, key := range s.catalog.IntegrationKeys() {
		cfg.Integrations[key] = false
	}

	if err := s.store.Create(ctx, cfg); err != nil {
		return nil, err
	}

	log.Info().
		Str("org_id", cfg.OrgID.String()).
		Str("name", cfg.Name).
		Msg("Created organization with seeded defaults")

	return cfg, nil
}

// Resolve returns the current config for an organization.
func (s *OrganizationService) Resolve(ctx context.Context, orgID uuid.UUID) (*models.OrganizationConfig, error) {
	telemetry.GetMetrics().OrgResolvesTotal.Add(ctx, 1)
	return s.store.Get(ctx, orgID)
}

// List returns all organization configs ordered by creation time.
func (s *OrganizationService) List(ctx context.Context) ([]*models.OrganizationConfig, error) {
	return s.store.List(ctx)
}

// Delete removes an organization and its config.
func (s *OrganizationService) Delete(ctx context.Context, orgID uuid.UUID) error {
	if err := s.store.Delete(ctx, orgID); err != nil {
		return err
	}

	log.Info().Str("org_id", orgID.String()).Msg("Deleted organization")
	return nil
}

// mutate wraps a store update with metrics and the invalidation event shared
// by every mutating operation.
func (s *OrganizationService) mutate(ctx context.Context, orgID uuid.UUID, apply func(*models.OrganizationConfig) error) (*models.OrganizationConfig, error) {
	metrics := telemetry.GetMetrics()

	cfg, err := s.store.Update(ctx, orgID, apply)
	if err != nil {
		if IsRejectedInput(err) {
			metrics.ValidationFailuresTotal.Add(ctx, 1)
		}
		return nil, err
	}

	metrics.OrgMutationsTotal.Add(ctx, 1)
	s.broker.PublishOrganization(cfg)

	return cfg, nil
}

// UpdateField updates a single scalar field (name, currency, primary color)
// with field-specific validation.
func (s *OrganizationService) UpdateField(ctx context.Context, orgID uuid.UUID, field, value string) (*models.OrganizationConfig, error) {
	return s.mutate(ctx, orgID, func(cfg *models.OrganizationConfig) error {
		switch field {
		case FieldName:
			if strings.TrimSpace(value) == "" {
				return &ValidationError{Field: FieldName, Reason: "must not be empty"}
			}
			cfg.Name = value

		case FieldCurrency:
			if !s.catalog.ValidCurrency(value) {
				return &ValidationError{Field: FieldCurrency, Reason: fmt.Sprintf("%q is not a supported ISO 4217 code", value)}
			}
			cfg.Currency = value

		case FieldPrimaryColor:
			if !hexColorPattern.MatchString(value) {
				return &ValidationError{Field: FieldPrimaryColor, Reason: fmt.Sprintf("%q is not a 6-digit hex color", value)}
			}
			cfg.PrimaryColor = strings.ToUpper(value)

		default:
			return &ValidationError{Field: field, Reason: "unknown field"}
		}
		return nil
	})
}

// AddStage appends a new pipeline stage with a freshly generated id. An empty
// name gets the default display name.
func (s *OrganizationService) AddStage(ctx context.Context, orgID uuid.UUID, name string) (*models.OrganizationConfig, error) {
	if name == "" {
		name = DefaultStageName
	}
	return s.mutate(ctx, orgID, func(cfg *models.OrganizationConfig) error {
		cfg.PipelineStages = append(cfg.PipelineStages, models.PipelineStage{
			ID:   uuid.Must(uuid.NewV7()),
			Name: name,
		})
		return nil
	})
}

// AddStatus appends a new contact status with a freshly generated id. An
// empty name gets the default display name.
func (s *OrganizationService) AddStatus(ctx context.Context, orgID uuid.UUID, name string) (*models.OrganizationConfig, error) {
	if name == "" {
		name = DefaultStatusName
	}
	return s.mutate(ctx, orgID, func(cfg *models.OrganizationConfig) error {
		cfg.ContactStatuses = append(cfg.ContactStatuses, models.ContactStatus{
			ID:   uuid.Must(uuid.NewV7()),
			Name: name,
		})
		return nil
	})
}

// RenameStage changes a stage's display name. Identity stays with the id, so
// deals referencing the stage are unaffected.
func (s *OrganizationService) RenameStage(ctx context.Context, orgID, stageID uuid.UUID, name string) (*models.OrganizationConfig, error) {
	if strings.TrimSpace(name) == "" {
		telemetry.GetMetrics().ValidationFailuresTotal.Add(ctx, 1)
		return nil, &ValidationError{Field: FieldName, Reason: "must not be empty"}
	}
	return s.mutate(ctx, orgID, func(cfg *models.OrganizationConfig) error {
		for i := range cfg.PipelineStages {
			if cfg.PipelineStages[i].ID == stageID {
				cfg.PipelineStages[i].Name = name
				return nil
			}
		}
		return fmt.Errorf("%w: stage %s", ErrEntryNotFound, stageID)
	})
}

// RenameStatus changes a status's display name.
func (s *OrganizationService) RenameStatus(ctx context.Context, orgID, statusID uuid.UUID, name string) (*models.OrganizationConfig, error) {
	if strings.TrimSpace(name) == "" {
		telemetry.GetMetrics().ValidationFailuresTotal.Add(ctx, 1)
		return nil, &ValidationError{Field: FieldName, Reason: "must not be empty"}
	}
	return s.mutate(ctx, orgID, func(cfg *models.OrganizationConfig) error {
		for i := range cfg.ContactStatuses {
			if cfg.ContactStatuses[i].ID == statusID {
				cfg.ContactStatuses[i].Name = name
				return nil
			}
		}
		return fmt.Errorf("%w: status %s", ErrEntryNotFound, statusID)
	})
}

// isPermutation reports whether ordered is a permutation of current.
func isPermutation(current, ordered []uuid.UUID) bool {
	if len(current) != len(ordered) {
		return false
	}
	seen := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		seen[id] = struct{}{}
	}
	for _, id := range ordered {
		if _, ok := seen[id]; !ok {
			return false
		}
		delete(seen, id)
	}
	return len(seen) == 0
}

// ReorderStages replaces the stage ordering. The id list must be a
// permutation of the existing ids.
func (s *OrganizationService) ReorderStages(ctx context.Context, orgID uuid.UUID, orderedIDs []uuid.UUID) (*models.OrganizationConfig, error) {
	return s.mutate(ctx, orgID, func(cfg *models.OrganizationConfig) error {
		if !isPermutation(cfg.StageIDs(), orderedIDs) {
			return ErrInvalidOrder
		}
		byID := make(map[uuid.UUID]models.PipelineStage, len(cfg.PipelineStages))
		for _, stage := range cfg.PipelineStages {
			byID[stage.ID] = stage
		}
		reordered := make([]models.PipelineStage, len(orderedIDs))
		for i, id := range orderedIDs {
			reordered[i] = byID[id]
		}
		cfg.PipelineStages = reordered
		return nil
	})
}

// ReorderStatuses replaces the status ordering. The id list must be a
// permutation of the existing ids.
func (s *OrganizationService) ReorderStatuses(ctx context.Context, orgID uuid.UUID, orderedIDs []uuid.UUID) (*models.OrganizationConfig, error) {
	return s.mutate(ctx, orgID, func(cfg *models.OrganizationConfig) error {
		if !isPermutation(cfg.StatusIDs(), orderedIDs) {
			return ErrInvalidOrder
		}
		byID := make(map[uuid.UUID]models.ContactStatus, len(cfg.ContactStatuses))
		for _, status := range cfg.ContactStatuses {
			byID[status.ID] = status
		}
		reordered := make([]models.ContactStatus, len(orderedIDs))
		for i, id := range orderedIDs {
			reordered[i] = byID[id]
		}
		cfg.ContactStatuses = reordered
		return nil
	})
}

// RemoveStage removes a stage by id. The sequence must keep at least one
// entry; deals referencing other stages by id are unaffected by removal.
func (s *OrganizationService) RemoveStage(ctx context.Context, orgID, stageID uuid.UUID) (*models.OrganizationConfig, error) {
	return s.mutate(ctx, orgID, func(cfg *models.OrganizationConfig) error {
		idx := -1
		for i, stage := range cfg.PipelineStages {
			if stage.ID == stageID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return fmt.Errorf("%w: stage %s", ErrEntryNotFound, stageID)
		}
		if len(cfg.PipelineStages) == 1 {
			return ErrLastEntry
		}
		cfg.PipelineStages = append(cfg.PipelineStages[:idx], cfg.PipelineStages[idx+1:]...)
		return nil
	})
}

// RemoveStatus removes a status by id. The sequence must keep at least one entry.
func (s *OrganizationService) RemoveStatus(ctx context.Context, orgID, statusID uuid.UUID) (*models.OrganizationConfig, error) {
	return s.mutate(ctx, orgID, func(cfg *models.OrganizationConfig) error {
		idx := -1
		for i, status := range cfg.ContactStatuses {
			if status.ID == statusID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return fmt.Errorf("%w: status %s", ErrEntryNotFound, statusID)
		}
		if len(cfg.ContactStatuses) == 1 {
			return ErrLastEntry
		}
		cfg.ContactStatuses = append(cfg.ContactStatuses[:idx], cfg.ContactStatuses[idx+1:]...)
		return nil
	})
}

// SetNotificationFlag toggles a notification setting. Keys are a closed
// enumeration from the catalog so a typo can never create an orphan key.
func (s *OrganizationService) SetNotificationFlag(ctx context.Context, orgID uuid.UUID, key string, enabled bool) (*models.OrganizationConfig, error) {
	return s.mutate(ctx, orgID, func(cfg *models.OrganizationConfig) error {
		if !s.catalog.KnownNotificationKey(key) {
			return fmt.Errorf("%w: notification flag %q", ErrUnknownKey, key)
		}
		cfg.NotificationFlags[key] = enabled
		return nil
	})
}

// SetIntegration toggles an integration. Same closed-key rule as
// notification flags.
func (s *OrganizationService) SetIntegration(ctx context.Context, orgID uuid.UUID, key string, enabled bool) (*models.OrganizationConfig, error) {
	return s.mutate(ctx, orgID, func(cfg *models.OrganizationConfig) error {
		if !s.catalog.KnownIntegrationKey(key) {
			return fmt.Errorf("%w: integration %q", ErrUnknownKey, key)
		}
		cfg.Integrations[key] = enabled
		return nil
	})
}
