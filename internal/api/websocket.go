package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"cryptopolis/internal/commands"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// MaxWSConnectionsTotal caps concurrent viewers across the whole server.
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP caps concurrent viewers behind a single address.
	MaxWSConnectionsPerIP = 10

	// clientSendBuffer is the per-client outbound queue. When it fills,
	// the client is considered too slow and is dropped.
	clientSendBuffer = 32

	// wsWriteWait bounds a single frame write to one client
	wsWriteWait = 5 * time.Second

	// wsReadLimit bounds inbound message size at the transport level.
	// The command parser enforces its own tighter limit in-band.
	wsReadLimit = 4096

	// broadcastInterval is how often city state is pushed to viewers
	broadcastInterval = 100 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if IsAllowedOrigin(origin) {
			return true
		}
		log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// wsClient tracks a WebSocket connection with its source IP and send queue.
// The send channel is never closed; done signals the write pump to exit,
// so inbound error replies can never race a channel close.
type wsClient struct {
	id   string
	conn *websocket.Conn
	ip   string
	send chan []byte
	done chan struct{}
}

// sendError queues an error frame without ever blocking the caller
func (c *wsClient) sendError(message string) {
	payload, err := json.Marshal(map[string]interface{}{
		"event": "error",
		"data":  map[string]string{"message": message},
	})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// WebSocketHub owns the set of connected viewers. Viewers receive
// periodic city state; inbound frames are parsed into typed commands
// and queued for the engine to drain at the next tick.
type WebSocketHub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex

	// Inbound command queue. Nil makes connections spectate-only.
	queue *commands.Queue

	// Per-IP admission slots. Allow reserves one, Release returns it.
	wsLimiter *WebSocketRateLimiter
}

// NewWebSocketHub builds an empty hub feeding the given command queue.
func NewWebSocketHub(queue *commands.Queue) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		queue:      queue,
		wsLimiter:  NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
	}
}

// Run serializes joins, leaves and fan-out. It never returns; start it
// once on its own goroutine.
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Viewer connected from %s (%d total)", client.ip, count)
			UpdateWSConnections(count)

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				h.wsLimiter.Release(client.ip)
				delete(h.clients, client)
				close(client.done)
			}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Viewer disconnected (%d remaining)", count)
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full: the client can't keep up, drop
					// it rather than stall every other viewer
					h.wsLimiter.Release(client.ip)
					delete(h.clients, client)
					close(client.done)
					log.Printf("⚠️ Dropped slow WebSocket viewer from %s", client.ip)
					RecordWSClientDropped()
				}
			}
			count := len(h.clients)
			h.mu.Unlock()

			UpdateWSConnections(count)
			IncrementWSMessages()
		}
	}
}

// Broadcast fans an event frame out to every connected viewer. When
// the hub's intake is full the frame is dropped; state pushes are
// periodic, so the next one covers the gap.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	msg := map[string]interface{}{
		"event": event,
		"data":  data,
	}

	jsonBytes, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
	}
}

// ClientCount reports how many viewers are currently connected.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop pushes city state and stream stats to viewers on
// a fixed cadence, skipping the work entirely while nobody is watching.
func (h *WebSocketHub) StartBroadcastLoop(engine EngineInterface, streamer StreamerInterface) {
	ticker := time.NewTicker(broadcastInterval)

	go func() {
		for range ticker.C {
			if h.ClientCount() == 0 {
				continue
			}

			snap := engine.GetSnapshot()

			buildings := make([]map[string]interface{}, 0, len(snap.Buildings))
			for i := range snap.Buildings {
				buildings = append(buildings, snap.Buildings[i].ToJSON())
			}

			h.Broadcast("city:state", map[string]interface{}{
				"tick":           snap.TickNumber,
				"gridVersion":    snap.GridVersion,
				"treasury":       snap.Treasury,
				"pendingYield":   snap.PendingYield,
				"lifetimeEarned": snap.LifetimeEarned,
				"buildings":      buildings,
				"buildingCount":  snap.BuildingCount,
				"connections":    snap.Connections,
				"eventHead":      snap.EventHead,
			})

			h.Broadcast("stream:stats", streamer.GetStats())
		}
	}()
}

// HandleWebSocket admits one viewer: origin check in the upgrader,
// then the global cap, then the per-IP cap. Each rejection is counted
// under its own reason label.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	h.mu.RLock()
	total := len(h.clients)
	h.mu.RUnlock()

	if total >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip) // Allow reserved a slot; hand it back
		return
	}

	client := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		ip:   ip,
		send: make(chan []byte, clientSendBuffer),
		done: make(chan struct{}),
	}
	h.register <- client

	go h.writePump(client)
	go h.readPump(client)
}

// writePump drains the client's send queue onto the wire.
// It exits when the hub drops the client or a write fails.
func (h *WebSocketHub) writePump(client *wsClient) {
	defer func() {
		client.conn.Close()
		h.unregister <- client
	}()

	for {
		select {
		case message := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-client.done:
			return
		}
	}
}

// readPump parses inbound frames into commands and queues them.
// Refused commands get an error frame back; the connection stays up.
func (h *WebSocketHub) readPump(client *wsClient) {
	defer func() {
		h.unregister <- client
	}()

	client.conn.SetReadLimit(wsReadLimit)

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			break
		}

		if h.queue == nil {
			// Spectate-only mode
			continue
		}

		cmd, err := commands.Parse(message, client.id)
		if err != nil {
			RecordWSCommand("invalid")
			client.sendError(err.Error())
			continue
		}

		if err := h.queue.Submit(cmd); err != nil {
			RecordWSCommand("rejected")
			client.sendError(err.Error())
			continue
		}
		RecordWSCommand("queued")
	}
}
