package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jbalderas/prefcore/internal/models"
	"github.com/jbalderas/prefcore/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestConfig() *models.OrganizationConfig {
	now := time.Now()
	return &models.OrganizationConfig{
		OrgID:        uuid.Must(uuid.NewV7()),
		Name:         "Acme MX",
		Currency:     "MXN",
		PrimaryColor: "#2563EB",
		PipelineStages: []models.PipelineStage{
			{ID: uuid.Must(uuid.NewV7()), Name: "Lead"},
			{ID: uuid.Must(uuid.NewV7()), Name: "Ganado"},
			{ID: uuid.Must(uuid.NewV7()), Name: "Perdido"},
		},
		ContactStatuses: []models.ContactStatus{
			{ID: uuid.Must(uuid.NewV7()), Name: "Lead"},
		},
		NotificationFlags: map[string]bool{"deal_won": false},
		Integrations:      map[string]bool{"slack": false},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestOrganizationStoreCreateGet(t *testing.T) {
	ctx := context.Background()

	t.Run("get missing org returns not found", func(t *testing.T) {
		st := NewOrganizationStore()

		_, err := st.Get(ctx, uuid.Must(uuid.NewV7()))
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	})

	t.Run("create then get round-trips", func(t *testing.T) {
		st := NewOrganizationStore()
		cfg := newTestConfig()

		require.NoError(t, st.Create(ctx, cfg))

		got, err := st.Get(ctx, cfg.OrgID)
		require.NoError(t, err)
		require.Equal(t, cfg.Name, got.Name)
		require.Len(t, got.PipelineStages, 3)
	})

	t.Run("duplicate create fails", func(t *testing.T) {
		st := NewOrganizationStore()
		cfg := newTestConfig()

		require.NoError(t, st.Create(ctx, cfg))
		require.ErrorIs(t, st.Create(ctx, cfg), store.ErrOrganizationAlreadyExists)
	})

	t.Run("get returns a deep copy", func(t *testing.T) {
		st := NewOrganizationStore()
		cfg := newTestConfig()
		require.NoError(t, st.Create(ctx, cfg))

		got, err := st.Get(ctx, cfg.OrgID)
		require.NoError(t, err)
		got.PipelineStages[0].Name = "changed"
		got.NotificationFlags["deal_won"] = true

		again, err := st.Get(ctx, cfg.OrgID)
		require.NoError(t, err)
		require.Equal(t, "Lead", again.PipelineStages[0].Name)
		require.False(t, again.NotificationFlags["deal_won"])
	})
}

func TestOrganizationStoreUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("update persists whole snapshot", func(t *testing.T) {
		st := NewOrganizationStore()
		cfg := newTestConfig()
		require.NoError(t, st.Create(ctx, cfg))

		updated, err := st.Update(ctx, cfg.OrgID, func(c *models.OrganizationConfig) error {
			c.Currency = "USD"
			c.PipelineStages = append(c.PipelineStages, models.PipelineStage{
				ID:   uuid.Must(uuid.NewV7()),
				Name: "Nueva etapa",
			})
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, "USD", updated.Currency)
		require.Len(t, updated.PipelineStages, 4)

		stored, err := st.Get(ctx, cfg.OrgID)
		require.NoError(t, err)
		require.Equal(t, "USD", stored.Currency)
		require.Len(t, stored.PipelineStages, 4)
	})

	t.Run("failed apply leaves stored config untouched", func(t *testing.T) {
		st := NewOrganizationStore()
		cfg := newTestConfig()
		require.NoError(t, st.Create(ctx, cfg))

		rejected := errors.New("rejected")
		_, err := st.Update(ctx, cfg.OrgID, func(c *models.OrganizationConfig) error {
			c.Currency = "USD"
			return rejected
		})
		require.ErrorIs(t, err, rejected)

		stored, err := st.Get(ctx, cfg.OrgID)
		require.NoError(t, err)
		require.Equal(t, "MXN", stored.Currency)
	})

	t.Run("update missing org returns not found", func(t *testing.T) {
		st := NewOrganizationStore()

		_, err := st.Update(ctx, uuid.Must(uuid.NewV7()), func(c *models.OrganizationConfig) error { return nil })
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	})
}

func TestOrganizationStoreDeleteList(t *testing.T) {
	ctx := context.Background()

	t.Run("delete removes config", func(t *testing.T) {
		st := NewOrganizationStore()
		cfg := newTestConfig()
		require.NoError(t, st.Create(ctx, cfg))

		require.NoError(t, st.Delete(ctx, cfg.OrgID))

		_, err := st.Get(ctx, cfg.OrgID)
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	})

	t.Run("delete missing org returns not found", func(t *testing.T) {
		st := NewOrganizationStore()
		require.ErrorIs(t, st.Delete(ctx, uuid.Must(uuid.NewV7())), store.ErrOrganizationNotFound)
	})

	t.Run("list returns configs ordered by creation time", func(t *testing.T) {
		st := NewOrganizationStore()

		first := newTestConfig()
		first.CreatedAt = time.Now().Add(-time.Hour)
		second := newTestConfig()

		require.NoError(t, st.Create(ctx, second))
		require.NoError(t, st.Create(ctx, first))

		configs, err := st.List(ctx)
		require.NoError(t, err)
		require.Len(t, configs, 2)
		require.Equal(t, first.OrgID, configs[0].OrgID)
		require.Equal(t, second.OrgID, configs[1].OrgID)
	})
}
