// Package relay forwards backend commands to connected browsers, where the
// vendor script actually runs, and learns which trackers they have loaded.
package relay

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/EchoPBX/trackbus-gateway/pkg/sdk"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultQueue = 64

	readLimit  = 4096
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

// Message types on the relay socket.
const (
	TypeCommand  = "command"
	TypeTrackers = "trackers"
)

// Outbound is what the browser receives for every command.
type Outbound struct {
	Type string `json:"type"`
	sdk.Command
}

// Inbound is what the browser may announce.
type Inbound struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids,omitempty"`
}

type client struct {
	id   string
	conn *websocket.Conn
	out  chan []byte
}

// Hub implements sdk.Sender and settings.Discoverer.
type Hub struct {
	log      *zap.Logger
	queue    int
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	clients  map[*client]struct{}
	trackers []string
	closed   bool
}

func NewHub(log *zap.Logger, queue int) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if queue <= 0 {
		queue = DefaultQueue
	}
	return &Hub{
		log:      log,
		queue:    queue,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*client]struct{}),
	}
}

// Send broadcasts cmd to every client. Clients whose queue is full miss
// the command.
func (h *Hub) Send(cmd sdk.Command) {
	b, err := json.Marshal(Outbound{Type: TypeCommand, Command: cmd})
	if err != nil {
		h.log.Warn("relay encode failed", zap.String("command", cmd.Name), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.out <- b:
		default:
			h.log.Debug("relay queue full, dropping command", zap.String("client", c.id))
		}
	}
}

// Trackers returns every tracking ID announced so far, in first-seen order.
func (h *Hub) Trackers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.trackers)
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("relay upgrade failed", zap.Error(err))
		return
	}
	c := &client{id: uuid.NewString(), conn: conn, out: make(chan []byte, h.queue)}
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	h.log.Debug("relay client connected", zap.String("client", c.id))

	go h.writer(c)
	h.reader(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		_ = c.conn.Close()
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.out)
}

func (h *Hub) announce(ids []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		if id != "" && !slices.Contains(h.trackers, id) {
			h.trackers = append(h.trackers, id)
		}
	}
}

func (h *Hub) reader(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			// any read error means the client is gone
			return
		}
		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Debug("relay bad message", zap.String("client", c.id), zap.Error(err))
			continue
		}
		if msg.Type == TypeTrackers {
			h.announce(msg.IDs)
		}
	}
}

func (h *Hub) writer(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.out:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("relay write error", zap.String("client", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
