// Package events delivers invalidation signals to rendering surfaces. When a
// preference or organization config changes, every open surface for the
// affected user or tenant must re-fetch the resolved state it renders from.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jbalderas/prefcore/internal/models"
	"github.com/jbalderas/prefcore/internal/telemetry"
)

// Scope identifies which kind of state an invalidation refers to.
type Scope string

const (
	ScopeUserPreference     Scope = "user_preference"
	ScopeOrganizationConfig Scope = "organization_config"
)

// Invalidation tells a rendering surface that previously resolved state is
// stale. The new snapshot rides along so simple consumers can re-render
// without a second round trip.
type Invalidation struct {
	Scope      Scope
	UserID     string
	OrgID      uuid.UUID
	Preference *models.UserPreference
	Config     *models.OrganizationConfig
	OccurredAt time.Time
}

// Broker fans invalidations out to subscribers. Publishing never blocks: a
// subscriber that falls behind its buffer loses events, and consumers are
// expected to re-resolve on reconnect anyway.
type Broker struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Invalidation
	nextID  uint64
	bufSize int
}

// NewBroker creates a broker with the given per-subscriber buffer size.
func NewBroker(bufSize int) *Broker {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Broker{
		subs:    make(map[uint64]chan Invalidation),
		bufSize: bufSize,
	}
}

// Subscribe registers a new subscriber. The returned cancel function removes
// the subscription and closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe() (<-chan Invalidation, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Invalidation, b.bufSize)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if ch, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}

	return ch, cancel
}

// PublishPreference announces that a user's resolved preference changed.
func (b *Broker) PublishPreference(pref *models.UserPreference) {
	b.publish(Invalidation{
		Scope:      ScopeUserPreference,
		UserID:     pref.UserID,
		Preference: pref,
		OccurredAt: time.Now(),
	})
}

// PublishOrganization announces that a tenant's config changed.
func (b *Broker) PublishOrganization(cfg *models.OrganizationConfig) {
	b.publish(Invalidation{
		Scope:      ScopeOrganizationConfig,
		OrgID:      cfg.OrgID,
		Config:     cfg,
		OccurredAt: time.Now(),
	})
}

func (b *Broker) publish(ev Invalidation) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	metrics := telemetry.GetMetrics()
	metrics.InvalidationsPublishedTotal.Add(context.Background(), 1)

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber - drop rather than block a save path.
			metrics.InvalidationsDroppedTotal.Add(context.Background(), 1)
			log.Warn().
				Str("scope", string(ev.Scope)).
				Msg("Dropped invalidation for slow subscriber")
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
