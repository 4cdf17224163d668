package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jbalderas/prefcore/internal/models"
	"github.com/jbalderas/prefcore/internal/settings"
	"github.com/jbalderas/prefcore/internal/store"
	"github.com/rs/zerolog/log"
)

// preferenceResponse is the wire shape of a resolved user preference.
type preferenceResponse struct {
	UserID    string    `json:"user_id"`
	Locale    string    `json:"locale"`
	Timezone  string    `json:"timezone"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newPreferenceResponse(pref *models.UserPreference) preferenceResponse {
	return preferenceResponse{
		UserID:    pref.UserID,
		Locale:    pref.Locale,
		Timezone:  pref.Timezone,
		UpdatedAt: pref.UpdatedAt,
	}
}

// organizationResponse is the wire shape of an organization config snapshot.
type organizationResponse struct {
	OrgID             string                 `json:"org_id"`
	Name              string                 `json:"name"`
	Currency          string                 `json:"currency"`
	PrimaryColor      string                 `json:"primary_color"`
	PipelineStages    []models.PipelineStage `json:"pipeline_stages"`
	ContactStatuses   []models.ContactStatus `json:"contact_statuses"`
	NotificationFlags map[string]bool        `json:"notification_flags"`
	Integrations      map[string]bool        `json:"integrations"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

func newOrganizationResponse(cfg *models.OrganizationConfig) organizationResponse {
	return organizationResponse{
		OrgID:             cfg.OrgID.String(),
		Name:              cfg.Name,
		Currency:          cfg.Currency,
		PrimaryColor:      cfg.PrimaryColor,
		PipelineStages:    cfg.PipelineStages,
		ContactStatuses:   cfg.ContactStatuses,
		NotificationFlags: cfg.NotificationFlags,
		Integrations:      cfg.Integrations,
		UpdatedAt:         cfg.UpdatedAt,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps domain and store errors onto HTTP statuses. Rejected input
// is 422, missing records 404, storage unavailability 503; anything else is
// an internal error that gets logged but not leaked.
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}

	var ve *settings.ValidationError
	switch {
	case errors.As(err, &ve):
		resp.Field = ve.Field
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, settings.ErrInvalidLocale),
		errors.Is(err, settings.ErrInvalidTimezone),
		errors.Is(err, settings.ErrInvalidOrder),
		errors.Is(err, settings.ErrLastEntry),
		errors.Is(err, settings.ErrUnknownKey):
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, settings.ErrEntryNotFound),
		errors.Is(err, store.ErrOrganizationNotFound),
		errors.Is(err, store.ErrPreferenceNotFound):
		writeJSON(w, http.StatusNotFound, resp)
	case errors.Is(err, store.ErrStorageUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
	default:
		log.Error().Err(err).Msg("Internal error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
