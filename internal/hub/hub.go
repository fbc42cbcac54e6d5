// Package hub fans analysis events out to connected websocket clients.
//
// Delivery is best-effort: there is no replay or backlog, and a client
// that connects after an event was broadcast never receives it.
package hub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/pullsense/pullsense/internal/bus"
	"github.com/pullsense/pullsense/internal/metrics"
	"github.com/pullsense/pullsense/pkg/logger"
)

// Conn is one connected client. Send must be safe for concurrent use.
type Conn interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

// Hub tracks connected clients and broadcasts payloads to all of them.
type Hub struct {
	mu    sync.Mutex
	conns map[string]Conn
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{conns: make(map[string]Conn)}
}

// Register adds a connection. A second registration with the same ID
// replaces the first.
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logger.Debug("client connected", zap.String("client_id", c.ID()))
}

// Unregister removes a connection if it is still registered.
func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	_, present := h.conns[c.ID()]
	if present {
		delete(h.conns, c.ID())
	}
	h.mu.Unlock()

	if present {
		metrics.WSConnections.Dec()
		logger.Debug("client disconnected", zap.String("client_id", c.ID()))
	}
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast sends payload to every registered connection. A connection
// whose Send fails is removed in the same pass; the failure never blocks
// delivery to the remaining connections.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	snapshot := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	metrics.EventsBroadcast.Inc()
	for _, c := range snapshot {
		if err := c.Send(payload); err != nil {
			logger.Warn("dropping client after failed send",
				zap.String("client_id", c.ID()),
				zap.Error(err))
			h.Unregister(c)
			_ = c.Close()
		}
	}
}

// CloseAll closes and unregisters every connection, used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	snapshot := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	for _, c := range snapshot {
		h.Unregister(c)
		_ = c.Close()
	}
}

// RunRelay subscribes to channel on b and broadcasts every payload
// verbatim until ctx is canceled. It blocks and is meant to run in its
// own goroutine.
func (h *Hub) RunRelay(ctx context.Context, b bus.Bus, channel string) error {
	msgs, err := b.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	logger.Info("event relay started", zap.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			h.Broadcast(msg)
		}
	}
}
