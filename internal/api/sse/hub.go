// Package sse fans ledger events out to subscribers of a contract, both
// in-process gateways and Server-Sent Events connections.
package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/rps-ledger/internal/model"
)

// Hub manages subscribers for a single contract
type Hub struct {
	contract model.Address
	clients  map[*Client]bool
	mu       sync.RWMutex
	logger   *slog.Logger

	// Channels for managing clients
	unregister chan *Client
	broadcast  chan model.LedgerEvent
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new Hub for a contract
func NewHub(contract model.Address, logger *slog.Logger) *Hub {
	return &Hub{
		contract:   contract,
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("contract", contract.String())),
		unregister: make(chan *Client),
		broadcast:  make(chan model.LedgerEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Info("sse hub started")
	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				clientCount := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("sse client unregistered",
					slog.String("subscriber", client.subscriber),
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", clientCount))
			} else {
				h.mu.Unlock()
			}

		case event := <-h.broadcast:
			h.mu.RLock()
			sentCount := 0
			droppedCount := 0
			for client := range h.clients {
				select {
				case client.send <- event:
					sentCount++
				default:
					droppedCount++
					h.logger.Warn("sse event dropped - client buffer full",
						slog.String("subscriber", client.subscriber),
						slog.String("event", string(event.Type)))
				}
			}
			h.mu.RUnlock()
			if droppedCount > 0 {
				h.logger.Warn("sse broadcast partial failure",
					slog.Int("sent", sentCount),
					slog.Int("dropped", droppedCount))
			}

		case <-h.done:
			h.mu.Lock()
			clientCount := len(h.clients)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("sse hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

// Register adds a client to the hub. The client counts towards ClientCount
// as soon as Register returns. On a closed hub the client is ended instead.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		close(client.send)
		return
	default:
	}
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("sse client registered",
		slog.String("subscriber", client.subscriber),
		slog.Int("total_clients", clientCount))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends an event to all clients
func (h *Hub) Broadcast(event model.LedgerEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("sse broadcast dropped - hub buffer full",
			slog.String("event", string(event.Type)))
	}
}

// Close shuts down the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// formatSSEMessage formats an SSE message with event name and data
// Multi-line data is properly formatted with "data: " prefix on each line
func formatSSEMessage(eventName, data string) []byte {
	msg := "event: " + eventName + "\n"
	for _, line := range splitLines(data) {
		msg += "data: " + line + "\n"
	}
	msg += "\n"
	return []byte(msg)
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	var lines []string
	var current string
	for _, r := range s {
		if r == '\n' {
			lines = append(lines, current)
			current = ""
		} else if r != '\r' {
			current += string(r)
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		lines = append(lines, "")
	}
	return lines
}

// HubManager manages hubs for all contracts. It is the ledger's event publisher.
type HubManager struct {
	hubs   map[model.Address]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.Address]*Hub),
		logger: logger.With(slog.String("component", "sse")),
	}
}

// Subscribe registers a new client on the contract's hub. Lookup and
// registration happen under the manager lock, so a concurrent cleanup
// never closes the hub in between.
func (m *HubManager) Subscribe(contract model.Address, subscriber string) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	hub, ok := m.hubs[contract]
	if !ok {
		hub = NewHub(contract, m.logger)
		m.hubs[contract] = hub
		go hub.Run()
	}
	client := NewClient(hub, subscriber)
	hub.Register(client)
	return client
}

// GetHub returns the hub for a contract, or nil if it doesn't exist
func (m *HubManager) GetHub(contract model.Address) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[contract]
}

// Publish broadcasts an event to its contract's subscribers.
// Events for contracts nobody is watching are discarded.
func (m *HubManager) Publish(event model.LedgerEvent) {
	hub := m.GetHub(event.Contract)
	if hub == nil {
		return
	}
	hub.Broadcast(event)
}

// CleanupEmptyHubs removes hubs with no clients
func (m *HubManager) CleanupEmptyHubs() {
	m.mu.Lock()
	defer m.mu.Unlock()

	removedCount := 0
	for addr, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(m.hubs, addr)
			removedCount++
		}
	}
	if removedCount > 0 {
		m.logger.Info("sse empty hubs cleaned up", slog.Int("removed", removedCount))
	}
}

// RunCleanup removes empty hubs every interval until ctx is done
func (m *HubManager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.CleanupEmptyHubs()
		case <-ctx.Done():
			return
		}
	}
}

// Close shuts down every hub
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for addr, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, addr)
	}
}
