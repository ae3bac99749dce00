package stub

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/leocder07/tavily-stock-research-sub002/internal/router"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// sendBuffer is the per-client queue depth. A client that falls this far
// behind starts losing frames rather than stalling the broadcaster.
const sendBuffer = 64

type hubClient struct {
	conn *websocket.Conn
	send chan router.Envelope
}

// hub fans push envelopes out to every connected websocket client.
type hub struct {
	mu      sync.Mutex
	clients map[*hubClient]struct{}
	dropped atomic.Int64
}

func newHub() *hub {
	return &hub{clients: make(map[*hubClient]struct{})}
}

func (h *hub) add(conn *websocket.Conn) *hubClient {
	c := &hubClient{conn: conn, send: make(chan router.Envelope, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *hub) remove(c *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast queues env on every client, dropping for clients whose
// buffer is full.
func (h *hub) broadcast(env router.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- env:
		default:
			h.dropped.Add(1)
		}
	}
}

// count returns the number of connected clients.
func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// closeAll disconnects every client.
func (h *hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
	h.mu.Unlock()
}

// writePump drains the client's send queue onto the wire.
func (c *hubClient) writePump() {
	for env := range c.send {
		if err := c.conn.WriteJSON(env); err != nil {
			return
		}
	}
}
