package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"

	"github.com/dokzlo13/lightdeck/internal/eventbus"
)

// Hub fans change signals out to connected WebSocket clients.
type Hub struct {
	clients map[*wsClient]struct{}
	mu      sync.RWMutex

	allowedOrigins []string

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan eventbus.Event

	done     chan struct{}
	stopOnce sync.Once
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. allowedOrigins is passed to websocket.Accept as
// origin patterns; empty means same-origin only.
func NewHub(allowedOrigins []string) *Hub {
	return &Hub{
		clients:        make(map[*wsClient]struct{}),
		allowedOrigins: allowedOrigins,
		register:       make(chan *wsClient),
		unregister:     make(chan *wsClient),
		broadcast:      make(chan eventbus.Event, 256),
		done:           make(chan struct{}),
	}
}

// Run is the hub loop. It returns when Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			log.Debug().Int("total", total).Msg("WS client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Debug().Int("total", total).Msg("WS client disconnected")

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Msg("Failed to marshal WS event")
				continue
			}
			h.mu.Lock()
			var slow []*wsClient
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					slow = append(slow, client)
				}
			}
			for _, client := range slow {
				delete(h.clients, client)
				close(client.send)
				log.Warn().Msg("WS client evicted (too slow)")
			}
			h.mu.Unlock()
		}
	}
}

// Stop shuts the hub down. Safe to call multiple times.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handle is an eventbus handler that forwards every event to the clients.
func (h *Hub) Handle(event eventbus.Event) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	default:
		log.Warn().Str("type", string(event.Type)).Msg("WS broadcast channel full, dropping event")
	}
}

// Subscribe registers the hub on every bus event type it forwards.
func (h *Hub) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.EventFixturesChanged, h.Handle)
	bus.Subscribe(eventbus.EventGroupsChanged, h.Handle)
}

// ServeHTTP upgrades the request and pumps events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(h.allowedOrigins) > 0 {
		opts.OriginPatterns = h.allowedOrigins
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		log.Error().Err(err).Msg("WS accept failed")
		return
	}
	conn.SetReadLimit(4096)

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}

	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) writePump(client *wsClient) {
	for msg := range client.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := client.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
	client.conn.Close(websocket.StatusNormalClosure, "")
}

// readPump only drains control frames; clients never send commands over WS.
func (h *Hub) readPump(client *wsClient) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
			client.conn.Close(websocket.StatusGoingAway, "server shutdown")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-h.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if _, _, err := client.conn.Read(ctx); err != nil {
			return
		}
	}
}
