package models

import (
	"time"

	"github.com/google/uuid"
)

// PipelineStage is a named step in the sales process. Stages are ordered and
// referenced by deals via their stable ID, so display order lives in the
// slice position while identity lives in the ID.
type PipelineStage struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ContactStatus is a named classification applied to CRM contacts. Same
// ordering and identity rules as PipelineStage.
type ContactStatus struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// OrganizationConfig is the tenant-wide configuration record. One row per
// organization; nested collections are stored as JSONB.
type OrganizationConfig struct {
	OrgID             uuid.UUID // UUIDv7
	Name              string
	Currency          string // ISO 4217 code
	PrimaryColor      string // "#RRGGBB"
	PipelineStages    []PipelineStage
	ContactStatuses   []ContactStatus
	NotificationFlags map[string]bool
	Integrations      map[string]bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Clone returns a deep copy so concurrent readers never observe a mutation
// in progress.
func (c *OrganizationConfig) Clone() *OrganizationConfig {
	clone := *c
	clone.PipelineStages = make([]PipelineStage, len(c.PipelineStages))
	copy(clone.PipelineStages, c.PipelineStages)
	clone.ContactStatuses = make([]ContactStatus, len(c.ContactStatuses))
	copy(clone.ContactStatuses, c.ContactStatuses)
	clone.NotificationFlags = make(map[string]bool, len(c.NotificationFlags))
	for k, v := range c.NotificationFlags {
		clone.NotificationFlags[k] = v
	}
	clone.Integrations = make(map[string]bool, len(c.Integrations))
	for k, v := range c.Integrations {
		clone.Integrations[k] = v
	}
	return &clone
}

// StageIDs returns the current stage ordering as a list of ids.
func (c *OrganizationConfig) StageIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(c.PipelineStages))
	for i, s := range c.PipelineStages {
		ids[i] = s.ID
	}
	return ids
}

// StatusIDs returns the current status ordering as a list of ids.
func (c *OrganizationConfig) StatusIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(c.ContactStatuses))
	for i, s := range c.ContactStatuses {
		ids[i] = s.ID
	}
	return ids
}
