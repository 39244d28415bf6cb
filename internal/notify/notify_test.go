package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"signalbot/internal/config"
	"signalbot/internal/models"
	"signalbot/internal/resilience"
)

type recordingChannel struct {
	mu      sync.Mutex
	name    string
	enabled bool
	err     error
	events  []Event
}

func (r *recordingChannel) Name() string    { return r.name }
func (r *recordingChannel) IsEnabled() bool { return r.enabled }
func (r *recordingChannel) Send(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func TestMultiNotifier_FansOutAndStampsEvents(t *testing.T) {
	mn, err := NewMultiNotifier(config.EventsConfig{}, zerolog.Nop())
	require.NoError(t, err)

	a := &recordingChannel{name: "a", enabled: true}
	b := &recordingChannel{name: "b", enabled: true}
	off := &recordingChannel{name: "off", enabled: false}
	mn.AddChannel(a)
	mn.AddChannel(b)
	mn.AddChannel(off)

	err = mn.SignalsGenerated(context.Background(), []models.TradeSignal{
		{Timestamp: 1, Pair: "ICP/USD", Action: models.ActionBuy, Confidence: 0.75, Price: 12.34},
	})
	require.NoError(t, err)

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Empty(t, off.events)

	e := a.events[0]
	assert.Equal(t, EventSignalsGenerated, e.Type)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, e.ID, b.events[0].ID)
	assert.Contains(t, e.Message, "BUY ICP/USD @ 12.34")
}

func TestMultiNotifier_AttemptsEveryChannelAndJoinsErrors(t *testing.T) {
	mn, err := NewMultiNotifier(config.EventsConfig{}, zerolog.Nop())
	require.NoError(t, err)

	failing := &recordingChannel{name: "failing", enabled: true, err: errors.New("down")}
	ok := &recordingChannel{name: "ok", enabled: true}
	mn.AddChannel(failing)
	mn.AddChannel(ok)

	err = mn.BotToggled(context.Background(), models.BotState{Active: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing: down")
	assert.Len(t, ok.events, 1)
	assert.Equal(t, "Bot activated", ok.events[0].Title)
}

func TestMultiNotifier_TypeFilter(t *testing.T) {
	mn, err := NewMultiNotifier(config.EventsConfig{Types: []string{"trades_executed"}}, zerolog.Nop())
	require.NoError(t, err)

	ch := &recordingChannel{name: "rec", enabled: true}
	mn.AddChannel(ch)

	require.NoError(t, mn.StrategyUpdated(context.Background(), models.BotState{Strategy: "meanrev", RiskLevel: 0.8}))
	require.NoError(t, mn.TradesExecuted(context.Background(), []models.Trade{{ID: 7, Executed: true}}))

	require.Len(t, ch.events, 1)
	assert.Equal(t, EventTradesExecuted, ch.events[0].Type)
}

func TestWebhookNotifier_PostsJSON(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, got.ID, r.Header.Get("X-Event-ID"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	mn, err := NewMultiNotifier(config.EventsConfig{
		Webhook: config.WebhookConfig{Enabled: true, URL: srv.URL},
	}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, mn.StrategyUpdated(context.Background(), models.BotState{Strategy: "meanrev", RiskLevel: 0.8}))
	assert.Equal(t, EventStrategyUpdated, got.Type)
	assert.Equal(t, "Strategy meanrev, risk level 0.80", got.Message)
}

func TestWebhookNotifier_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: srv.URL})
	err := w.Send(context.Background(), Event{ID: "x", Type: EventBotToggled})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestMultiNotifier_BreakerStopsCallingFailingWebhook(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	mn, err := NewMultiNotifier(config.EventsConfig{
		Webhook: config.WebhookConfig{Enabled: true, URL: srv.URL},
	}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, mn.Breakers(), 1)

	threshold := int(resilience.DefaultBreakerConfig().FailureThreshold)
	for i := 0; i < threshold; i++ {
		require.Error(t, mn.BotToggled(context.Background(), models.BotState{Active: true}))
	}
	assert.Equal(t, "open", mn.Breakers()[0].State())

	err = mn.BotToggled(context.Background(), models.BotState{Active: false})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, threshold, hits)
}

func TestWebhookNotifier_DisabledWithoutURL(t *testing.T) {
	w := NewWebhookNotifier(config.WebhookConfig{Enabled: true})
	assert.False(t, w.IsEnabled())
	assert.NoError(t, w.Send(context.Background(), Event{}))
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaChannel_KeysByEventType(t *testing.T) {
	fw := &fakeWriter{}
	kc := NewKafkaChannelWithWriter(fw, "signalbot.events")

	mn, err := NewMultiNotifier(config.EventsConfig{}, zerolog.Nop())
	require.NoError(t, err)
	mn.AddChannel(kc)

	require.NoError(t, mn.TradesExecuted(context.Background(), []models.Trade{{ID: 42, Executed: true}}))
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	assert.Equal(t, "trades_executed", string(msg.Key))
	var e Event
	require.NoError(t, json.Unmarshal(msg.Value, &e))
	assert.Equal(t, EventTradesExecuted, e.Type)
	assert.Equal(t, float64(1), e.Data["count"])

	require.NoError(t, kc.Close())
	assert.True(t, fw.closed)
}

func TestNewKafkaChannel_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaChannel(config.KafkaConfig{Topic: "x"})
	assert.Error(t, err)

	_, err = NewMultiNotifier(config.EventsConfig{Kafka: config.KafkaConfig{Enabled: true}}, zerolog.Nop())
	assert.Error(t, err)
}
