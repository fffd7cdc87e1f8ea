package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"flowstate/internal/domain"
	"flowstate/internal/metrics"
	"flowstate/pkg/logger"
)

const (
	clientSendBuffer = 8
	writeWait        = 5 * time.Second
)

// SnapshotSource yields the current render state
type SnapshotSource interface {
	Snapshot() domain.Snapshot
}

// outFrame is the wire envelope pushed to viewers
type outFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Hub fans engine snapshots out to WebSocket viewers. Slow consumers are
// disconnected rather than allowed to stall the broadcast loop.
type Hub struct {
	source   SnapshotSource
	interval time.Duration
	limiter  *rate.Limiter
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu      sync.Mutex
	clients map[string]*hubClient
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{} // closed by drop; send stays open for racing broadcasts
}

// NewHub creates a hub broadcasting every interval, rate-limited to
// maxPerSec pushes across load spikes
func NewHub(source SnapshotSource, interval time.Duration, maxPerSec float64, log *logger.Logger) *Hub {
	return &Hub{
		source:   source,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Limit(maxPerSec), 1),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16384,
			// Viewers are browser extensions on arbitrary origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:     log.With("component", "hub"),
		clients: make(map[string]*hubClient),
	}
}

// Run broadcasts snapshots until the context ends
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case <-ticker.C:
			if !h.limiter.Allow() {
				continue
			}
			h.broadcast()
		}
	}
}

// HandleWS upgrades a viewer connection and streams snapshots to it
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Viewer upgrade failed", "error", err)
		return
	}

	c := &hubClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()
	metrics.ConnectedViewers.Set(float64(count))

	h.log.Info("Viewer connected", "client_id", c.id, "total", count)

	// Immediate first frame so new viewers never see an empty canvas
	if frame, err := h.encodeSnapshot(); err == nil {
		select {
		case c.send <- frame:
		default:
		}
	}

	go h.writeLoop(c)
	go h.readLoop(c)
}

// ClientCount reports connected viewers
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast() {
	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return
	}
	clients := make([]*hubClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	frame, err := h.encodeSnapshot()
	if err != nil {
		h.log.Error("Snapshot encode failed", "error", err)
		return
	}

	for _, c := range clients {
		select {
		case c.send <- frame:
		default:
			// Full buffer means the viewer cannot keep up
			h.log.Warn("Dropping slow viewer", "client_id", c.id)
			h.drop(c)
		}
	}
	metrics.SnapshotsBroadcast.Inc()
}

func (h *Hub) encodeSnapshot() ([]byte, error) {
	data, err := json.Marshal(h.source.Snapshot())
	if err != nil {
		return nil, err
	}
	return json.Marshal(outFrame{Type: "snapshot", Data: data})
}

// writeLoop owns the connection for writes and is the only place that closes
// it. Broadcasters never close c.send, so a send racing a disconnect lands in
// the buffer of a departing client instead of panicking.
func (h *Hub) writeLoop(c *hubClient) {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.drop(c)
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			_ = c.conn.Close()
			return
		}
	}
}

// readLoop discards inbound frames; its job is to notice disconnects
func (h *Hub) readLoop(c *hubClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

// drop unregisters a client and signals its writeLoop to shut the connection.
// Map membership makes the done close exactly-once under concurrent drops.
func (h *Hub) drop(c *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.done)
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectedViewers.Set(float64(count))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*hubClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c)
	}
}
