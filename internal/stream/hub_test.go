package stream

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"signalbot/internal/config"
	"signalbot/internal/models"
	"signalbot/internal/notify"
)

func event(t notify.EventType) notify.Event {
	return notify.Event{ID: string(t), Type: t, Timestamp: time.Now()}
}

func drain(ch <-chan notify.Event) []notify.Event {
	var out []notify.Event
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

// Every broadcast to a subscriber is either delivered or counted as
// dropped, and delivery stops exactly when the buffer fills.
func TestProperty_EveryEventDeliveredOrDropped(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("delivered + dropped == sent per subscriber", prop.ForAll(
		func(subscribers, buffer, events int) bool {
			h := NewHubWithConfig(HubConfig{SubscriberBufferSize: buffer})
			subs := make([]*Subscriber, subscribers)
			for i := range subs {
				subs[i] = h.Subscribe()
			}

			for i := 0; i < events; i++ {
				_ = h.Send(context.Background(), event(notify.EventSignalsGenerated))
			}

			wantDelivered := min(events, buffer)
			for _, sub := range subs {
				got := len(drain(sub.C))
				if got != wantDelivered || int(sub.Dropped()) != events-wantDelivered {
					return false
				}
			}

			m := h.GetMetrics()
			return m.EventsReceived == uint64(events) &&
				m.EventsDelivered == uint64(subscribers*wantDelivered) &&
				m.EventsDropped == uint64(subscribers*(events-wantDelivered))
		},
		gen.IntRange(0, 5),
		gen.IntRange(1, 8),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

func TestHub_FiltersByType(t *testing.T) {
	h := NewHub()
	trades := h.Subscribe(notify.EventTradesExecuted)
	all := h.Subscribe()

	require.NoError(t, h.Send(context.Background(), event(notify.EventSignalsGenerated)))
	require.NoError(t, h.Send(context.Background(), event(notify.EventTradesExecuted)))

	got := drain(trades.C)
	require.Len(t, got, 1)
	assert.Equal(t, notify.EventTradesExecuted, got[0].Type)
	assert.Len(t, drain(all.C), 2)
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	assert.Equal(t, 1, h.SubscriberCount())

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	assert.Equal(t, 0, h.SubscriberCount())

	_, ok := <-sub.C
	assert.False(t, ok)

	require.NoError(t, h.Send(context.Background(), event(notify.EventBotToggled)))
}

func TestHub_StopClosesEverySubscriber(t *testing.T) {
	h := NewHub()
	a, b := h.Subscribe(), h.Subscribe()

	require.NoError(t, h.Close())
	for _, sub := range []*Subscriber{a, b} {
		_, ok := <-sub.C
		assert.False(t, ok)
	}

	late := h.Subscribe()
	_, ok := <-late.C
	assert.False(t, ok)
	assert.Equal(t, 0, h.SubscriberCount())
}

func TestHub_BehindMultiNotifier(t *testing.T) {
	h := NewHub()
	mn, err := notify.NewMultiNotifier(config.EventsConfig{}, zerolog.Nop())
	require.NoError(t, err)
	mn.AddChannel(h)
	sub := h.Subscribe()

	require.NoError(t, mn.BotToggled(context.Background(), models.BotState{Active: true, Strategy: "momentum"}))

	select {
	case e := <-sub.C:
		assert.Equal(t, notify.EventBotToggled, e.Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}
