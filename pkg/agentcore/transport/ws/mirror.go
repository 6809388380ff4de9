// Package ws mirrors published events to remote WebSocket subscribers. It
// is a read-only fan-out: a Mirror registers itself as a wildcard handler
// on a Router so it observes every event a Dispatcher delivers, and pushes
// each one as a JSON frame to every currently-connected subscriber. It
// never feeds anything back into the event system and never backpressures
// Dispatcher.Submit — a subscriber that falls behind is disconnected, not
// allowed to slow down dispatch.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentcore/agentcore/pkg/agentcore/event"
)

// Frame is the JSON shape one mirrored event is written to a subscriber
// as.
type Frame struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Source         string          `json:"source"`
	CorrelationKey string          `json:"correlation_key,omitempty"`
	CausationID    string          `json:"causation_id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Data           json.RawMessage `json:"data"`
}

func toFrame(evt event.Event) Frame {
	return Frame{
		ID:             evt.ID(),
		Type:           evt.Type(),
		Source:         evt.Source(),
		CorrelationKey: evt.CorrelationKey(),
		CausationID:    evt.CausationID(),
		Timestamp:      evt.Timestamp(),
		Data:           evt.DataBytes(),
	}
}

// Mirror upgrades HTTP connections to WebSocket and broadcasts every
// event it's handed as a JSON Frame to each connection currently open.
type Mirror struct {
	upgrader   websocket.Upgrader
	logger     *slog.Logger
	sendBuffer int

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn     *websocket.Conn
	outgoing chan Frame
}

// MirrorOption configures a Mirror.
type MirrorOption func(*Mirror)

// WithLogger sets the logger used for connection and write errors.
func WithLogger(l *slog.Logger) MirrorOption {
	return func(m *Mirror) { m.logger = l }
}

// WithSendBuffer sets the per-subscriber outgoing channel size. A
// subscriber whose buffer fills (it can't keep up with the event rate)
// is disconnected rather than allowed to block the broadcast.
func WithSendBuffer(n int) MirrorOption {
	return func(m *Mirror) {
		if n > 0 {
			m.sendBuffer = n
		}
	}
}

// WithOriginCheck overrides the upgrader's origin check. By default any
// origin is accepted, matching a read-only fan-out with no session state
// to protect.
func WithOriginCheck(fn func(r *http.Request) bool) MirrorOption {
	return func(m *Mirror) { m.upgrader.CheckOrigin = fn }
}

// NewMirror creates a Mirror with no subscribers yet.
func NewMirror(opts ...MirrorOption) *Mirror {
	m := &Mirror{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:     slog.Default(),
		sendBuffer: 64,
		subs:       make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ServeHTTP upgrades the connection and keeps it registered as a
// subscriber until the client disconnects or the request context is
// canceled. Mount it at whatever path the deployment wants to expose the
// mirror on.
func (m *Mirror) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	sub := &subscriber{conn: conn, outgoing: make(chan Frame, m.sendBuffer)}
	m.register(sub)
	defer m.unregister(sub)

	ctx := r.Context()
	done := make(chan struct{})
	go m.drainIncoming(conn, done)

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		case <-done:
			return
		case frame, ok := <-sub.outgoing:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				m.logger.Debug("websocket write failed, disconnecting subscriber",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

// drainIncoming discards anything the client sends — this is a
// read-only mirror — but still has to read control frames so the
// connection's close/ping handling fires and a dead peer is detected.
func (m *Mirror) drainIncoming(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (m *Mirror) register(sub *subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub] = struct{}{}
}

func (m *Mirror) unregister(sub *subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[sub]; ok {
		delete(m.subs, sub)
		close(sub.outgoing)
	}
}

// Handle implements event.Handler. Handles returns nil, so Router treats
// a Mirror as a wildcard handler that observes every event type.
func (m *Mirror) Handle(_ context.Context, evt event.Event) ([]event.Event, error) {
	frame := toFrame(evt)

	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range m.subs {
		select {
		case sub.outgoing <- frame:
		default:
			// Subscriber's buffer is full: it's too slow to keep up.
			// Disconnect it rather than block the broadcast loop.
			delete(m.subs, sub)
			close(sub.outgoing)
		}
	}
	return nil, nil
}

// Handles reports no specific event types, registering this Mirror as a
// Router wildcard handler.
func (m *Mirror) Handles() []string { return nil }

var _ event.Handler = (*Mirror)(nil)

// SubscriberCount returns the number of currently connected subscribers.
// Useful for health checks and tests.
func (m *Mirror) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
