package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"signalbot/internal/notify"
	"signalbot/internal/stream"
)

const heartbeatInterval = 15 * time.Second

// EventSource hands out live event subscriptions.
type EventSource interface {
	Subscribe(types ...notify.EventType) *stream.Subscriber
	Unsubscribe(sub *stream.Subscriber)
}

// WithEvents serves GET /api/events from src.
func (h *Handler) WithEvents(src EventSource) *Handler {
	h.events = src
	return h
}

// streamEvents writes bot events as server-sent events until the client
// goes away or the source closes the subscription. Repeating ?type=
// narrows the stream to those event types.
func (h *Handler) streamEvents(c echo.Context) error {
	var types []notify.EventType
	for _, t := range c.QueryParams()["type"] {
		et := notify.EventType(t)
		if !et.Valid() {
			return DataResponse(c, http.StatusBadRequest, []*AppError{
				NewAppError("ERR_ONEOF", "type", fmt.Sprintf("unknown event type %q", t), http.StatusBadRequest),
			})
		}
		types = append(types, et)
	}

	sub := h.events.Subscribe(types...)
	defer h.events.Unsubscribe(sub)

	w := c.Response()
	// Streams outlive the server's read and write timeouts.
	rc := http.NewResponseController(w.Writer)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal event: %w", err)
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
