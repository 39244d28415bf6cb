package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"signalbot/internal/models"
)

func TestRedisSnapshotter_SaveWritesJSONUnderPrefixedKey(t *testing.T) {
	client, mock := redismock.NewClientMock()
	r := newRedisSnapshotter(client, "bot1")

	snap := Snapshot{
		State:   models.NewBotState(),
		Signals: []models.TradeSignal{{Timestamp: 1, Pair: "ICP/USD", Action: models.ActionBuy, Confidence: 0.75, Price: 12.34}},
		Trades:  []models.Trade{},
	}
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectSet("bot1:snapshot", data, 0).SetVal("OK")
	require.NoError(t, r.Save(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSnapshotter_Load(t *testing.T) {
	client, mock := redismock.NewClientMock()
	r := newRedisSnapshotter(client, "signalbot")
	ctx := context.Background()

	pl := 1.5
	want := Snapshot{
		State:  models.BotState{Active: true, Strategy: "meanrev", RiskLevel: 0.8},
		Trades: []models.Trade{{ID: 9, Executed: true, ProfitLoss: &pl, Timestamp: 9}},
	}
	data, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectGet("signalbot:snapshot").SetVal(string(data))
	got, ok, err := r.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.State, got.State)
	require.Len(t, got.Trades, 1)
	assert.Equal(t, 1.5, *got.Trades[0].ProfitLoss)

	mock.ExpectGet("signalbot:snapshot").RedisNil()
	_, ok, err = r.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectGet("signalbot:snapshot").SetErr(errors.New("connection reset"))
	_, _, err = r.Load(ctx)
	assert.ErrorContains(t, err, "connection reset")

	mock.ExpectGet("signalbot:snapshot").SetVal("{not json")
	_, _, err = r.Load(ctx)
	assert.ErrorContains(t, err, "unmarshal snapshot")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSnapshotter_Ping(t *testing.T) {
	client, mock := redismock.NewClientMock()
	r := newRedisSnapshotter(client, "signalbot")

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, r.Ping(context.Background()))

	mock.ExpectPing().SetErr(errors.New("refused"))
	assert.Error(t, r.Ping(context.Background()))
}
