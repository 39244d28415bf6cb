package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"signalbot/internal/bot"
	"signalbot/internal/config"
	"signalbot/internal/notify"
	"signalbot/internal/store"
	"signalbot/internal/stream"
	"signalbot/internal/trading"
)

func newEventsServer(t *testing.T) (*httptest.Server, *stream.Hub) {
	t.Helper()
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
	srv, err := NewServer(NewHandler(svc, nil).WithEvents(hub))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(func() {
		hub.Stop()
		ts.Close()
	})
	return ts, hub
}

func post(t *testing.T, url, contentType, body string) {
	t.Helper()
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEvents_StreamsBotEvents(t *testing.T) {
	ts, hub := newEventsServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events?type=bot_toggled", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	// Filtered out by ?type=.
	post(t, ts.URL+"/api/analyze", "application/octet-stream", "")
	post(t, ts.URL+"/api/toggle", "application/json", `{"active":true}`)

	scanner := bufio.NewScanner(resp.Body)
	var eventName, data string
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			eventName = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = v
		}
		if line == "" && data != "" {
			break
		}
	}

	assert.Equal(t, "bot_toggled", eventName)
	var e notify.Event
	require.NoError(t, json.Unmarshal([]byte(data), &e))
	assert.Equal(t, notify.EventBotToggled, e.Type)
	assert.Equal(t, "Bot activated", e.Title)
	assert.NotEmpty(t, e.ID)
}

func TestEvents_EndsWhenHubStops(t *testing.T) {
	ts, hub := newEventsServer(t)

	resp, err := http.Get(ts.URL + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after hub stopped")
	}
}

func TestEvents_RejectsUnknownType(t *testing.T) {
	ts, _ := newEventsServer(t)

	resp, err := http.Get(ts.URL + "/api/events?type=weather")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	errs := decodeErrors(t, env)
	assert.Equal(t, "type", errs[0].Field)
}

func TestEvents_NotRoutedWithoutSource(t *testing.T) {
	e := newTestEnv(t, nil, nil)
	rec, _ := e.do(t, http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
