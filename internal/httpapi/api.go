// Package httpapi exposes the settings core to the rendering layer over a
// small JSON surface: a read path called at every page mount, a write path
// called on explicit saves, and a server-sent event stream of invalidations.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jbalderas/prefcore/internal/catalog"
	"github.com/jbalderas/prefcore/internal/events"
	"github.com/jbalderas/prefcore/internal/settings"
)

// Handler routes API requests to the domain services.
type Handler struct {
	preferences   *settings.PreferenceService
	organizations *settings.OrganizationService
	broker        *events.Broker
	catalog       *catalog.Catalog
}

// NewHandler creates the API handler.
func NewHandler(prefs *settings.PreferenceService, orgs *settings.OrganizationService, broker *events.Broker, cat *catalog.Catalog) *Handler {
	return &Handler{
		preferences:   prefs,
		organizations: orgs,
		broker:        broker,
		catalog:       cat,
	}
}

// Routes builds the API mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/locales", h.listLocales)

	mux.HandleFunc("GET /v1/users/{userID}/preferences", h.resolvePreference)
	mux.HandleFunc("PUT /v1/users/{userID}/preferences", h.updatePreference)

	mux.HandleFunc("POST /v1/orgs", h.createOrganization)
	mux.HandleFunc("GET /v1/orgs", h.listOrganizations)
	mux.HandleFunc("GET /v1/orgs/{orgID}", h.resolveOrganization)
	mux.HandleFunc("PATCH /v1/orgs/{orgID}", h.updateOrganizationField)
	mux.HandleFunc("DELETE /v1/orgs/{orgID}", h.deleteOrganization)

	mux.HandleFunc("POST /v1/orgs/{orgID}/stages", h.addStage)
	mux.HandleFunc("PUT /v1/orgs/{orgID}/stages/order", h.reorderStages)
	mux.HandleFunc("PATCH /v1/orgs/{orgID}/stages/{entryID}", h.renameStage)
	mux.HandleFunc("DELETE /v1/orgs/{orgID}/stages/{entryID}", h.removeStage)

	mux.HandleFunc("POST /v1/orgs/{orgID}/statuses", h.addStatus)
	mux.HandleFunc("PUT /v1/orgs/{orgID}/statuses/order", h.reorderStatuses)
	mux.HandleFunc("PATCH /v1/orgs/{orgID}/statuses/{entryID}", h.renameStatus)
	mux.HandleFunc("DELETE /v1/orgs/{orgID}/statuses/{entryID}", h.removeStatus)

	mux.HandleFunc("PUT /v1/orgs/{orgID}/notifications/{key}", h.setNotificationFlag)
	mux.HandleFunc("PUT /v1/orgs/{orgID}/integrations/{key}", h.setIntegration)

	mux.HandleFunc("GET /v1/events", h.streamEvents)

	return mux
}

func decodeBody(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return &settings.ValidationError{Field: "body", Reason: fmt.Sprintf("malformed request: %v", err)}
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, &settings.ValidationError{Field: name, Reason: "must be a UUID"}
	}
	return id, nil
}

func (h *Handler) listLocales(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"locales":        h.catalog.Locales(),
		"default_locale": h.catalog.DefaultLocale(),
	})
}

func (h *Handler) resolvePreference(w http.ResponseWriter, r *http.Request) {
	pref, err := h.preferences.Resolve(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPreferenceResponse(pref))
}

func (h *Handler) updatePreference(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Locale   *string `json:"locale"`
		Timezone *string `json:"timezone"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	pref, err := h.preferences.Update(r.Context(), r.PathValue("userID"), settings.PreferenceUpdate{
		Locale:   req.Locale,
		Timezone: req.Timezone,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPreferenceResponse(pref))
}

func (h *Handler) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.organizations.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrganizationResponse(cfg))
}

func (h *Handler) listOrganizations(w http.ResponseWriter, r *http.Request) {
	configs, err := h.organizations.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]organizationResponse, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, newOrganizationResponse(cfg))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) resolveOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.organizations.Resolve(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrganizationResponse(cfg))
}

func (h *Handler) updateOrganizationField(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.organizations.UpdateField(r.Context(), orgID, req.Field, req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrganizationResponse(cfg))
}

func (h *Handler) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.organizations.Delete(r.Context(), orgID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type namedEntryRequest struct {
	Name string `json:"name"`
}

type orderRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) addStage(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req namedEntryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.organizations.AddStage(r.Context(), orgID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrganizationResponse(cfg))
}

func (h *Handler) addStatus(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req namedEntryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.organizations.AddStatus(r.Context(), orgID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrganizationResponse(cfg))
}

func (h *Handler) reorderStages(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req orderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.organizations.ReorderStages(r.Context(), orgID, req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrganizationResponse(cfg))
}

func (h *Handler) reorderStatuses(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req orderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.organizations.ReorderStatuses(r.Context(), orgID, req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrganizationResponse(cfg))
}

func (h *Handler) renameStage(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		writeError(w, err)
		return
	}
	entryID, err := pathUUID(r, "entryID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req namedEntryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.organizations.RenameStage(r.Context(), orgID, entryID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrganizationResponse(cfg))
}

func (h *Handler) renameStatus(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		writeError(w, err)
		return
	}
	entryID, err := pathUUID(r, "entryID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req namedEntryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.organizations.RenameStatus(r.Context(), orgID, entryID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrganizationResponse(cfg))
}

func (h *Handler) removeStage(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		writeError(w, err)
		return
	}
	entryID, err := pathUUID(r, "entryID")
	if err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.organizations.RemoveStage(r.Context(), orgID, entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrganizationResponse(cfg))
}

func (h *Handler) removeStatus(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		writeError(w, err)
		return
	}
	entryID, err := pathUUID(r, "entryID")
	if err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.organizations.RemoveStatus(r.Context(), orgID, entryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrganizationResponse(cfg))
}

func (h *Handler) setNotificationFlag(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req toggleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.organizations.SetNotificationFlag(r.Context(), orgID, r.PathValue("key"), req.Enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrganizationResponse(cfg))
}

func (h *Handler) setIntegration(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathUUID(r, "orgID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req toggleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.organizations.SetIntegration(r.Context(), orgID, r.PathValue("key"), req.Enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrganizationResponse(cfg))
}
