package status

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lanternops/timecodesvr/internal/logging"
	"github.com/lanternops/timecodesvr/internal/registry"
)

var log = logging.L("status")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	subscriberQueueSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Snapshot is the periodic payload pushed to every /status subscriber.
type Snapshot struct {
	SessionCount int                      `json:"session_count"`
	ClientCount  int                      `json:"client_count"`
	Sessions     []registry.SessionStatus `json:"sessions"`
}

// Hub polls a registry on an interval and fans each snapshot out to every
// connected /status websocket subscriber, and serves /metrics for
// Prometheus scraping. It has no visibility into the wire protocol itself.
type Hub struct {
	registry *registry.Registry
	interval time.Duration

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan Snapshot
}

// NewHub creates a Hub that polls reg every interval.
func NewHub(reg *registry.Registry, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Hub{
		registry:    reg,
		interval:    interval,
		subscribers: make(map[*subscriber]struct{}),
	}
}

// Handler returns an http.Handler serving /status (websocket push) and
// /metrics (Prometheus).
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", h.serveWS)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("status upgrade failed", "error", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan Snapshot, subscriberQueueSize)}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	sub.send <- h.snapshot()

	go h.readLoop(sub)
	h.writeLoop(sub)
}

// readLoop exists only to surface client-initiated close/pong control
// frames and to notice a dead connection; subscribers never send data.
func (h *Hub) readLoop(sub *subscriber) {
	defer h.remove(sub)
	sub.conn.SetReadLimit(maxMessageSize)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer sub.conn.Close()

	for {
		select {
		case snap, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			b, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

func (h *Hub) snapshot() Snapshot {
	statuses := h.registry.Statuses()
	sessionCount := h.registry.SessionCount()
	clientCount := h.registry.ClientCount()
	SetSessionCount(sessionCount)
	SetClientCount(clientCount)
	return Snapshot{
		SessionCount: sessionCount,
		ClientCount:  clientCount,
		Sessions:     statuses,
	}
}

func (h *Hub) publish() {
	snap := h.snapshot()
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- snap:
		default:
			// Subscriber is behind; drop this tick rather than block the
			// publisher. Unlike session delivery, which disconnects a full
			// member, the subscriber stays connected.
		}
	}
}

// Run publishes a snapshot to every subscriber on the hub's interval until
// ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.publish()
		}
	}
}

// ListenAndServe serves the hub's handler on addr until ctx is cancelled,
// then shuts the HTTP server down gracefully.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.Handler()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
