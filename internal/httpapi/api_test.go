package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jbalderas/prefcore/internal/catalog"
	"github.com/jbalderas/prefcore/internal/events"
	"github.com/jbalderas/prefcore/internal/settings"
	memorystore "github.com/jbalderas/prefcore/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cat := catalog.Default()
	broker := events.NewBroker(16)
	prefs := settings.NewPreferenceService(memorystore.NewPreferenceStore(), cat, broker)
	orgs := settings.NewOrganizationService(memorystore.NewOrganizationStore(), cat, broker)

	srv := httptest.NewServer(NewHandler(prefs, orgs, broker, cat).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func createOrg(t *testing.T, srv *httptest.Server, name string) organizationResponse {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/orgs", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var org organizationResponse
	require.NoError(t, json.Unmarshal(body, &org))
	return org
}

func TestLocalesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/locales", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Locales       []string `json:"locales"`
		DefaultLocale string   `json:"default_locale"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, "es-MX", out.DefaultLocale)
	require.Contains(t, out.Locales, "en-US")
}

func TestPreferenceEndpoints(t *testing.T) {
	t.Run("resolve returns defaults for a new user", func(t *testing.T) {
		srv := newTestServer(t)

		resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/users/user-1/preferences", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var pref preferenceResponse
		require.NoError(t, json.Unmarshal(body, &pref))
		require.Equal(t, "user-1", pref.UserID)
		require.Equal(t, "es-MX", pref.Locale)
		require.Equal(t, "America/Mexico_City", pref.Timezone)
	})

	t.Run("put updates locale", func(t *testing.T) {
		srv := newTestServer(t)

		resp, body := doJSON(t, http.MethodPut, srv.URL+"/v1/users/user-1/preferences",
			map[string]string{"locale": "en-US"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var pref preferenceResponse
		require.NoError(t, json.Unmarshal(body, &pref))
		require.Equal(t, "en-US", pref.Locale)
		require.Equal(t, "America/Mexico_City", pref.Timezone)
	})

	t.Run("unsupported locale is 422 with field", func(t *testing.T) {
		srv := newTestServer(t)

		resp, body := doJSON(t, http.MethodPut, srv.URL+"/v1/users/user-1/preferences",
			map[string]string{"locale": "xx-ZZ"})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))
	})

	t.Run("unknown body field is 422", func(t *testing.T) {
		srv := newTestServer(t)

		resp, _ := doJSON(t, http.MethodPut, srv.URL+"/v1/users/user-1/preferences",
			map[string]string{"language": "en-US"})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestOrganizationEndpoints(t *testing.T) {
	t.Run("create seeds defaults", func(t *testing.T) {
		srv := newTestServer(t)

		org := createOrg(t, srv, "Acme MX")
		require.Equal(t, "Acme MX", org.Name)
		require.Equal(t, "MXN", org.Currency)
		require.Len(t, org.PipelineStages, 3)
		require.Len(t, org.ContactStatuses, 3)
	})

	t.Run("patch updates a scalar field", func(t *testing.T) {
		srv := newTestServer(t)
		org := createOrg(t, srv, "Acme MX")

		resp, body := doJSON(t, http.MethodPatch, srv.URL+"/v1/orgs/"+org.OrgID,
			map[string]string{"field": "currency", "value": "USD"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var updated organizationResponse
		require.NoError(t, json.Unmarshal(body, &updated))
		require.Equal(t, "USD", updated.Currency)
	})

	t.Run("invalid field value is 422 with field name", func(t *testing.T) {
		srv := newTestServer(t)
		org := createOrg(t, srv, "Acme MX")

		resp, body := doJSON(t, http.MethodPatch, srv.URL+"/v1/orgs/"+org.OrgID,
			map[string]string{"field": "primary_color", "value": "red"})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var out errorResponse
		require.NoError(t, json.Unmarshal(body, &out))
		require.Equal(t, "primary_color", out.Field)
	})

	t.Run("get unknown org is 404", func(t *testing.T) {
		srv := newTestServer(t)

		resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/orgs/0198c6a0-0000-7000-8000-000000000000", nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed org id is 422", func(t *testing.T) {
		srv := newTestServer(t)

		resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/orgs/not-a-uuid", nil)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("delete then list", func(t *testing.T) {
		srv := newTestServer(t)
		org := createOrg(t, srv, "Acme MX")

		resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/v1/orgs/"+org.OrgID, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/orgs", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var list []organizationResponse
		require.NoError(t, json.Unmarshal(body, &list))
		require.Empty(t, list)
	})
}

func TestStageEndpoints(t *testing.T) {
	t.Run("add stage with empty name uses the default", func(t *testing.T) {
		srv := newTestServer(t)
		org := createOrg(t, srv, "Acme MX")

		resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/orgs/"+org.OrgID+"/stages",
			map[string]string{"name": ""})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

		var updated organizationResponse
		require.NoError(t, json.Unmarshal(body, &updated))
		require.Len(t, updated.PipelineStages, 4)
		require.Equal(t, "Nueva etapa", updated.PipelineStages[3].Name)
	})

	t.Run("reorder round-trips through the API", func(t *testing.T) {
		srv := newTestServer(t)
		org := createOrg(t, srv, "Acme MX")

		ids := make([]string, len(org.PipelineStages))
		for i, s := range org.PipelineStages {
			ids[len(ids)-1-i] = s.ID.String()
		}

		resp, body := doJSON(t, http.MethodPut, srv.URL+"/v1/orgs/"+org.OrgID+"/stages/order",
			map[string]any{"ids": ids})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var updated organizationResponse
		require.NoError(t, json.Unmarshal(body, &updated))
		require.Equal(t, "Perdido", updated.PipelineStages[0].Name)
		require.Equal(t, "Lead", updated.PipelineStages[2].Name)
	})

	t.Run("partial order is 422", func(t *testing.T) {
		srv := newTestServer(t)
		org := createOrg(t, srv, "Acme MX")

		resp, _ := doJSON(t, http.MethodPut, srv.URL+"/v1/orgs/"+org.OrgID+"/stages/order",
			map[string]any{"ids": []string{org.PipelineStages[0].ID.String()}})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("rename stage", func(t *testing.T) {
		srv := newTestServer(t)
		org := createOrg(t, srv, "Acme MX")

		url := fmt.Sprintf("%s/v1/orgs/%s/stages/%s", srv.URL, org.OrgID, org.PipelineStages[0].ID)
		resp, body := doJSON(t, http.MethodPatch, url, map[string]string{"name": "Contactado"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var updated organizationResponse
		require.NoError(t, json.Unmarshal(body, &updated))
		require.Equal(t, "Contactado", updated.PipelineStages[0].Name)
	})

	t.Run("remove unknown stage is 404", func(t *testing.T) {
		srv := newTestServer(t)
		org := createOrg(t, srv, "Acme MX")

		url := fmt.Sprintf("%s/v1/orgs/%s/stages/%s", srv.URL, org.OrgID, "0198c6a0-0000-7000-8000-000000000000")
		resp, _ := doJSON(t, http.MethodDelete, url, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("removing down to the last stage is 422", func(t *testing.T) {
		srv := newTestServer(t)
		org := createOrg(t, srv, "Acme MX")

		current := org
		for len(current.PipelineStages) > 1 {
			url := fmt.Sprintf("%s/v1/orgs/%s/stages/%s", srv.URL, org.OrgID, current.PipelineStages[0].ID)
			resp, body := doJSON(t, http.MethodDelete, url, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			require.NoError(t, json.Unmarshal(body, &current))
		}

		url := fmt.Sprintf("%s/v1/orgs/%s/stages/%s", srv.URL, org.OrgID, current.PipelineStages[0].ID)
		resp, _ := doJSON(t, http.MethodDelete, url, nil)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestToggleEndpoints(t *testing.T) {
	t.Run("enable a notification flag", func(t *testing.T) {
		srv := newTestServer(t)
		org := createOrg(t, srv, "Acme MX")

		resp, body := doJSON(t, http.MethodPut, srv.URL+"/v1/orgs/"+org.OrgID+"/notifications/deal_won",
			map[string]bool{"enabled": true})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var updated organizationResponse
		require.NoError(t, json.Unmarshal(body, &updated))
		require.True(t, updated.NotificationFlags["deal_won"])
	})

	t.Run("unknown integration key is 422", func(t *testing.T) {
		srv := newTestServer(t)
		org := createOrg(t, srv, "Acme MX")

		resp, _ := doJSON(t, http.MethodPut, srv.URL+"/v1/orgs/"+org.OrgID+"/integrations/facebook",
			map[string]bool{"enabled": true})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestEventStream(t *testing.T) {
	srv := newTestServer(t)
	org := createOrg(t, srv, "Acme MX")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Trigger a mutation and expect the stream to carry it.
	go func() {
		doJSON(t, http.MethodPatch, srv.URL+"/v1/orgs/"+org.OrgID,
			map[string]string{"field": "currency", "value": "USD"})
	}()

	buf := make([]byte, 4096)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "event: invalidation")
	require.Contains(t, string(buf[:n]), `"currency":"USD"`)
}
