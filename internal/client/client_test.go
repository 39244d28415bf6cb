package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"signalbot/internal/api"
	"signalbot/internal/bot"
	"signalbot/internal/config"
	"signalbot/internal/models"
	"signalbot/internal/notify"
	"signalbot/internal/store"
	"signalbot/internal/stream"
	"signalbot/internal/trading"
)

type echoLLM struct{}

func (echoLLM) Complete(_ context.Context, prompt string) (string, error) { return "re: " + prompt, nil }
func (echoLLM) Chat(_ context.Context, msgs []models.ChatMessage) (string, error) {
	return "re: " + msgs[len(msgs)-1].Content, nil
}
func (echoLLM) Model() string { return "echo" }

func newTestServer(t *testing.T, withLLM bool) (*Client, *trading.ManualClock) {
	t.Helper()
	clock := trading.NewManualClock(1_700_000_000_000_000_000)
	deps := bot.Deps{
		Store:    store.NewStateStore(),
		Clock:    clock,
		Strategy: trading.FixedStrategy{},
		Logger:   zerolog.Nop(),
	}
	if withLLM {
		deps.LLM = echoLLM{}
	}
	svc := bot.NewService(deps)

	srv, err := api.NewServer(api.NewHandler(svc, nil))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)

	return NewClient(ts.URL+"/", WithTimeout(5*time.Second)), clock
}

func TestClient_Scenario(t *testing.T) {
	c, clock := newTestServer(t, false)
	ctx := context.Background()

	st, err := c.GetBotState(ctx)
	require.NoError(t, err)
	assert.False(t, st.Active)

	signals, err := c.AnalyzeMarket(ctx, []byte("raw market data"))
	require.NoError(t, err)
	require.Len(t, signals, 2)

	_, err = c.ExecuteTrades(ctx)
	require.Error(t, err)
	assert.True(t, IsCode(err, "ERR_BOT_INACTIVE"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	st, err = c.ToggleBot(ctx, true)
	require.NoError(t, err)
	assert.True(t, st.Active)

	clock.Advance(1)
	trades, err := c.ExecuteTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	history, err := c.GetTradeHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, trades, history)

	all, err := c.GetSignals(ctx)
	require.NoError(t, err)
	assert.Equal(t, signals, all)

	st, err = c.UpdateStrategy(ctx, "meanrev", 0.8)
	require.NoError(t, err)
	assert.Equal(t, "meanrev", st.Strategy)
	assert.Equal(t, 0.8, st.RiskLevel)

	sum, err := c.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.SignalCount)
	assert.Equal(t, 1, sum.BuyTrades)
}

func TestClient_PromptAndChat(t *testing.T) {
	c, _ := newTestServer(t, true)
	ctx := context.Background()

	out, err := c.Prompt(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "re: hello", out)

	out, err = c.Chat(ctx, []models.ChatMessage{{Role: models.RoleUser, Content: "status?"}})
	require.NoError(t, err)
	assert.Equal(t, "re: status?", out)
}

func TestClient_LLMUnavailable(t *testing.T) {
	c, _ := newTestServer(t, false)

	_, err := c.Prompt(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, IsCode(err, "ERR_LLM_UNAVAILABLE"))
	assert.Contains(t, err.Error(), "503")
}

func TestClient_Health(t *testing.T) {
	c, _ := newTestServer(t, false)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "fixed", h.Analyzer)
}

func TestClient_NonEnvelopeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).GetBotState(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Empty(t, apiErr.Code())
}

func TestClient_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewClient(url, WithTimeout(time.Second)).GetBotState(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestClient_Events(t *testing.T) {
	hub := stream.NewHub()
	mn, err := notify.NewMultiNotifier(config.EventsConfig{}, zerolog.Nop())
	require.NoError(t, err)
	mn.AddChannel(hub)

	svc := bot.NewService(bot.Deps{
		Store:    store.NewStateStore(),
		Clock:    trading.NewManualClock(1),
		Strategy: trading.FixedStrategy{},
		Notifier: mn,
		Logger:   zerolog.Nop(),
	})
	srv, err := api.NewServer(api.NewHandler(svc, nil).WithEvents(hub))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Echo())
	defer ts.Close()
	defer hub.Stop()

	c := NewClient(ts.URL)
	got := make(chan notify.Event, 4)
	errc := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		errc <- c.Events(ctx, func(e notify.Event) error {
			got <- e
			return nil
		}, notify.EventSignalsGenerated, notify.EventStrategyUpdated)
	}()
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	_, err = c.ToggleBot(ctx, true)
	require.NoError(t, err)
	_, err = c.AnalyzeMarket(ctx, nil)
	require.NoError(t, err)
	_, err = c.UpdateStrategy(ctx, "meanrev", 0.3)
	require.NoError(t, err)

	for _, want := range []notify.EventType{notify.EventSignalsGenerated, notify.EventStrategyUpdated} {
		select {
		case e := <-got:
			assert.Equal(t, want, e.Type)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing %s event", want)
		}
	}

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Events did not return after cancel")
	}
}

func TestClient_EventsNotServed(t *testing.T) {
	c, _ := newTestServer(t, false)

	err := c.Events(context.Background(), func(notify.Event) error { return nil })
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
