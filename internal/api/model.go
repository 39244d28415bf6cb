// Package api serves the bot's operations over HTTP.
package api

import (
	"signalbot/internal/models"
	"signalbot/internal/resilience"
)

// APIResponse is the envelope of every response body.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// PromptRequest is the body of POST /api/prompt.
type PromptRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []models.ChatMessage `json:"messages" validate:"required,min=1,dive"`
}

// ToggleRequest is the body of POST /api/toggle.
type ToggleRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// StrategyRequest is the body of POST /api/strategy. Neither field is
// range checked; the label is free-form.
type StrategyRequest struct {
	Strategy  string   `json:"strategy"`
	RiskLevel *float64 `json:"risk_level" validate:"required"`
}

// TextResponse carries the language model's reply.
type TextResponse struct {
	Response string `json:"response"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status        string  `json:"status"`
	Active        bool    `json:"active"`
	Analyzer      string  `json:"analyzer"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`

	Components []resilience.ComponentHealth `json:"components,omitempty"`
}
