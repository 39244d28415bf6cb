package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"signalbot/internal/logging"
	"signalbot/internal/models"
	"signalbot/internal/resilience"
)

// Bot is the set of operations served over HTTP.
type Bot interface {
	Analyzer() string
	Prompt(ctx context.Context, prompt string) (string, error)
	Chat(ctx context.Context, messages []models.ChatMessage) (string, error)
	AnalyzeMarket(ctx context.Context, raw []byte) ([]models.TradeSignal, error)
	ExecuteTrades(ctx context.Context) ([]models.Trade, error)
	GetBotState() models.BotState
	GetTradeHistory() []models.Trade
	GetSignals() []models.TradeSignal
	ToggleBot(ctx context.Context, active bool) models.BotState
	UpdateStrategy(ctx context.Context, strategy string, riskLevel float64) models.BotState
	Summary() models.Summary
}

// Handler serves the bot's routes.
type Handler struct {
	bot     Bot
	health  *resilience.HealthChecker
	events  EventSource
	started time.Time
}

// NewHandler creates a Handler for bot. health may be nil, in which case
// /healthz reports only the process itself.
func NewHandler(bot Bot, health *resilience.HealthChecker) *Handler {
	return &Handler{bot: bot, health: health, started: time.Now()}
}

// RegisterRoutes registers every bot route on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.healthz)

	g := e.Group("/api")
	g.POST("/prompt", h.prompt)
	g.POST("/chat", h.chat)
	g.POST("/analyze", h.analyze)
	g.POST("/execute", h.execute)
	g.POST("/toggle", h.toggle)
	g.POST("/strategy", h.updateStrategy)

	g.GET("/state", h.state)
	g.GET("/trades", h.trades)
	g.GET("/signals", h.signals)
	g.GET("/summary", h.summary)

	if h.events != nil {
		g.GET("/events", h.streamEvents)
	}
}

func (h *Handler) healthz(c echo.Context) error {
	sys := resilience.SystemHealth{Status: resilience.HealthStatusHealthy}
	if h.health != nil {
		sys = h.health.Check(c.Request().Context())
	}

	uptime := time.Since(h.started)
	status := http.StatusOK
	if sys.Status == resilience.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	return DataResponse(c, status, HealthResponse{
		Status:        string(sys.Status),
		Active:        h.bot.GetBotState().Active,
		Analyzer:      h.bot.Analyzer(),
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		Components:    sys.Components,
	})
}

func (h *Handler) prompt(c echo.Context) error {
	var req PromptRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return DataResponse(c, errs[0].Status, errs)
	}

	out, err := h.bot.Prompt(c.Request().Context(), req.Prompt)
	if err != nil {
		return err
	}
	return SuccessResponse(c, TextResponse{Response: out})
}

func (h *Handler) chat(c echo.Context) error {
	var req ChatRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return DataResponse(c, errs[0].Status, errs)
	}

	out, err := h.bot.Chat(c.Request().Context(), req.Messages)
	if err != nil {
		return err
	}
	return SuccessResponse(c, TextResponse{Response: out})
}

// analyze passes the raw request body to the analysis strategy untouched.
func (h *Handler) analyze(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}

	ctx := c.Request().Context()
	signals, err := h.bot.AnalyzeMarket(ctx, raw)
	if err != nil {
		return err
	}
	logger := logging.FromContext(ctx)
	logger.Debug().Int("signals", len(signals)).Int("bytes", len(raw)).Msg("Market analyzed")
	return SuccessResponse(c, nonNil(signals))
}

func (h *Handler) execute(c echo.Context) error {
	ctx := c.Request().Context()
	trades, err := h.bot.ExecuteTrades(ctx)
	if err != nil {
		return err
	}
	logger := logging.FromContext(ctx)
	logger.Debug().Int("trades", len(trades)).Msg("Trades executed")
	return SuccessResponse(c, nonNil(trades))
}

func (h *Handler) toggle(c echo.Context) error {
	var req ToggleRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return DataResponse(c, errs[0].Status, errs)
	}
	return SuccessResponse(c, h.bot.ToggleBot(c.Request().Context(), *req.Active))
}

func (h *Handler) updateStrategy(c echo.Context) error {
	var req StrategyRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return DataResponse(c, errs[0].Status, errs)
	}
	return SuccessResponse(c, h.bot.UpdateStrategy(c.Request().Context(), req.Strategy, *req.RiskLevel))
}

func (h *Handler) state(c echo.Context) error {
	return SuccessResponse(c, h.bot.GetBotState())
}

func (h *Handler) trades(c echo.Context) error {
	return SuccessResponse(c, nonNil(h.bot.GetTradeHistory()))
}

func (h *Handler) signals(c echo.Context) error {
	return SuccessResponse(c, nonNil(h.bot.GetSignals()))
}

func (h *Handler) summary(c echo.Context) error {
	return SuccessResponse(c, h.bot.Summary())
}

// nonNil makes empty collections encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

