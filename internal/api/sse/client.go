package sse

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/rps-ledger/internal/model"
)

const (
	// Time between keepalive pings
	pingPeriod = 15 * time.Second

	// Buffer size for outgoing events
	sendBufferSize = 256
)

// Client represents one subscriber of a contract's events
type Client struct {
	hub         *Hub
	subscriber  string
	send        chan model.LedgerEvent
	connectedAt time.Time
}

// NewClient creates a new subscriber; it receives nothing until registered
func NewClient(hub *Hub, subscriber string) *Client {
	return &Client{
		hub:         hub,
		subscriber:  subscriber,
		send:        make(chan model.LedgerEvent, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// Events returns the client's event channel, closed when the client is
// unregistered or its hub stops
func (c *Client) Events() <-chan model.LedgerEvent {
	return c.send
}

// Unregister removes the client from its hub
func (c *Client) Unregister() {
	c.hub.Unregister(c)
}

// ServeSSE streams a contract's events to an HTTP client as Server-Sent
// Events. Each event is named by its type and carries the JSON-encoded
// ledger event. Events rejected by match are skipped. The client must
// already be registered and is unregistered when the stream ends.
func ServeSSE(w http.ResponseWriter, r *http.Request, client *Client, match func(model.LedgerEvent) bool, logger *slog.Logger) {
	defer client.Unregister()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	_, _ = w.Write(formatSSEMessage("connected", `{"status":"connected"}`))
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client.send:
			if !ok {
				// Hub closed the channel
				return
			}
			if match != nil && !match(event) {
				continue
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error("sse failed to encode event",
					slog.String("event", string(event.Type)),
					slog.Any("error", err))
				continue
			}
			if _, err := w.Write(formatSSEMessage(string(event.Type), string(data))); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
