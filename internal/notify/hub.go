package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const clientSendBuffer = 64

// Hub is a websocket Broadcaster. Clients connect with a comma-separated
// rooms query parameter and receive every event addressed to any room they
// joined. Slow clients have events dropped rather than blocking the hub.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	conn  *websocket.Conn
	rooms map[string]struct{}
	send  chan []byte
	once  sync.Once
}

// NewHub creates an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The surrounding API layer owns origin policy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
	}
}

// Handler returns the HTTP handler that upgrades connections and subscribes
// them to the rooms named in the "rooms" query parameter.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &hubClient{
			conn:  conn,
			rooms: parseRooms(r.URL.Query().Get("rooms")),
			send:  make(chan []byte, clientSendBuffer),
		}

		h.mu.Lock()
		h.clients[client] = struct{}{}
		h.mu.Unlock()

		h.log.Debug().Str("remote", r.RemoteAddr).Int("rooms", len(client.rooms)).Msg("client subscribed")

		go h.writePump(client)
		go h.readPump(client)
	}
}

// Broadcast implements Broadcaster: the envelope is delivered to every
// client subscribed to at least one of the rooms.
func (h *Hub) Broadcast(rooms []string, event string, payload any) error {
	data, err := json.Marshal(Envelope{
		Event:   event,
		Rooms:   rooms,
		Payload: payload,
		SentAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("notify: marshal event %s: %w", event, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.inAny(rooms) {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Slow consumer: drop rather than block the broadcast.
			h.log.Warn().Str("event", event).Msg("client send buffer full, dropping event")
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*hubClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) writePump(c *hubClient) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) readPump(c *hubClient) {
	// Inbound frames are ignored; the read loop exists to detect closure.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (c *hubClient) close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

func (c *hubClient) inAny(rooms []string) bool {
	for _, room := range rooms {
		if _, ok := c.rooms[room]; ok {
			return true
		}
	}
	return false
}

// parseRooms splits a comma-separated rooms parameter into a set.
func parseRooms(raw string) map[string]struct{} {
	rooms := make(map[string]struct{})
	for _, room := range strings.Split(raw, ",") {
		room = strings.TrimSpace(room)
		if room != "" {
			rooms[room] = struct{}{}
		}
	}
	return rooms
}
