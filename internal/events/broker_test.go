package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jbalderas/prefcore/internal/models"
	"github.com/stretchr/testify/require"
)

func TestBrokerFanOut(t *testing.T) {
	t.Run("all subscribers receive each event", func(t *testing.T) {
		b := NewBroker(4)

		ch1, cancel1 := b.Subscribe()
		defer cancel1()
		ch2, cancel2 := b.Subscribe()
		defer cancel2()

		b.PublishPreference(&models.UserPreference{UserID: "user-1", Locale: "en-US"})

		for _, ch := range []<-chan Invalidation{ch1, ch2} {
			select {
			case ev := <-ch:
				require.Equal(t, ScopeUserPreference, ev.Scope)
				require.Equal(t, "user-1", ev.UserID)
				require.Equal(t, "en-US", ev.Preference.Locale)
				require.False(t, ev.OccurredAt.IsZero())
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for invalidation")
			}
		}
	})

	t.Run("organization events carry the org id and snapshot", func(t *testing.T) {
		b := NewBroker(4)

		ch, cancel := b.Subscribe()
		defer cancel()

		orgID := uuid.Must(uuid.NewV7())
		b.PublishOrganization(&models.OrganizationConfig{OrgID: orgID, Currency: "USD"})

		ev := <-ch
		require.Equal(t, ScopeOrganizationConfig, ev.Scope)
		require.Equal(t, orgID, ev.OrgID)
		require.Equal(t, "USD", ev.Config.Currency)
	})

	t.Run("publish without subscribers is a no-op", func(t *testing.T) {
		b := NewBroker(4)
		b.PublishPreference(&models.UserPreference{UserID: "user-1"})
		require.Equal(t, 0, b.SubscriberCount())
	})
}

func TestBrokerSlowSubscriber(t *testing.T) {
	t.Run("full buffer drops events instead of blocking", func(t *testing.T) {
		b := NewBroker(2)

		ch, cancel := b.Subscribe()
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 5; i++ {
				b.PublishPreference(&models.UserPreference{UserID: "user-1"})
			}
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publish blocked on a slow subscriber")
		}

		// Only the buffered events survive.
		require.Len(t, ch, 2)
	})
}

func TestBrokerCancel(t *testing.T) {
	t.Run("cancel removes the subscription and closes the channel", func(t *testing.T) {
		b := NewBroker(4)

		ch, cancel := b.Subscribe()
		require.Equal(t, 1, b.SubscriberCount())

		cancel()
		require.Equal(t, 0, b.SubscriberCount())

		_, open := <-ch
		require.False(t, open)
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		b := NewBroker(4)

		_, cancel := b.Subscribe()
		cancel()
		cancel()
		require.Equal(t, 0, b.SubscriberCount())
	})

	t.Run("remaining subscribers keep receiving", func(t *testing.T) {
		b := NewBroker(4)

		_, cancelled := b.Subscribe()
		ch, cancel := b.Subscribe()
		defer cancel()
		cancelled()

		b.PublishPreference(&models.UserPreference{UserID: "user-1"})

		select {
		case ev := <-ch:
			require.Equal(t, "user-1", ev.UserID)
		case <-time.After(time.Second):
			t.Fatal("surviving subscriber did not receive event")
		}
	})
}
