package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jbalderas/prefcore/internal/events"
	"github.com/jbalderas/prefcore/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// invalidationEvent is the wire shape of one SSE payload.
type invalidationEvent struct {
	Scope      events.Scope          `json:"scope"`
	UserID     string                `json:"user_id,omitempty"`
	OrgID      string                `json:"org_id,omitempty"`
	Preference *preferenceResponse   `json:"preference,omitempty"`
	Config     *organizationResponse `json:"config,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
}

func newInvalidationEvent(ev events.Invalidation) invalidationEvent {
	out := invalidationEvent{
		Scope:      ev.Scope,
		UserID:     ev.UserID,
		OccurredAt: ev.OccurredAt,
	}
	if ev.Preference != nil {
		pref := newPreferenceResponse(ev.Preference)
		out.Preference = &pref
	}
	if ev.Config != nil {
		out.OrgID = ev.OrgID.String()
		cfg := newOrganizationResponse(ev.Config)
		out.Config = &cfg
	}
	return out
}

// streamEvents delivers invalidation events as server-sent events. Rendering
// surfaces hold one stream open per tab and re-fetch whatever the event names;
// a dropped stream is recovered by reconnecting and re-resolving everything.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, cancel := h.broker.Subscribe()
	defer cancel()

	metrics := telemetry.GetMetrics()
	metrics.ActiveEventStreams.Add(r.Context(), 1)
	defer metrics.ActiveEventStreams.Add(r.Context(), -1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Debug().Str("addr", r.RemoteAddr).Msg("Invalidation stream opened")

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("addr", r.RemoteAddr).Msg("Invalidation stream closed")
			return
		case ev, open := <-ch:
			if !open {
				return
			}

			data, err := json.Marshal(newInvalidationEvent(ev))
			if err != nil {
				log.Error().Err(err).Msg("Failed to marshal invalidation event")
				continue
			}

			if _, err := fmt.Fprintf(w, "event: invalidation\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
