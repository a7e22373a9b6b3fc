package websocket

import (
	"context"
	"time"

	"github.com/cristianortiz/carauction/internal/shared/logger"
	"github.com/cristianortiz/carauction/internal/shared/metrics"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// Outbound messages buffered per client before it is dropped as slow.
	sendBuffer = 32

	hubBuffer = 256
)

// Hub keeps the registry of connected clients grouped by room (one room per
// auction) and fans messages out to them. All registry changes happen on the
// goroutine running Run.
type Hub struct {
	rooms      map[string]map[*Client]struct{}
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
}

// Client is one websocket connection subscribed to a room.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	// Send is closed by the hub when the client is unregistered.
	Send chan []byte
	Room string
	ID   string
	// IP is the remote address the connection was upgraded from.
	IP string
}

// Message is delivered to every client of Room, or only to Client when set.
type Message struct {
	Room   string
	Client *Client
	Data   []byte
}

// FrameHandler handles one frame read from c.
type FrameHandler func(ctx context.Context, c *Client, data []byte)

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		broadcast:  make(chan *Message, hubBuffer),
		register:   make(chan *Client, hubBuffer),
		unregister: make(chan *Client, hubBuffer),
	}
}

// NewClient builds a client for room with its own send buffer.
func (h *Hub) NewClient(conn *websocket.Conn, room, id string) *Client {
	return &Client{
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
		Room: room,
		ID:   id,
	}
}

// Run serves registry changes and broadcasts until ctx is cancelled, then
// drops every client.
func (h *Hub) Run(ctx context.Context) error {
	log.Info("WebSocket hub started")
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.rooms {
				for c := range clients {
					h.drop(c)
				}
			}
			log.Info("WebSocket hub stopped")
			return nil

		case c := <-h.register:
			h.add(c)

		case c := <-h.unregister:
			h.drainRegistrations()
			if h.drop(c) {
				log.Info("Client unregistered",
					zap.String("clientID", c.ID),
					zap.String("room", c.Room),
				)
			}

		case m := <-h.broadcast:
			// a client registered before the message was queued receives it
			h.drainRegistrations()
			clients := h.rooms[m.Room]
			if m.Client != nil {
				if _, ok := clients[m.Client]; !ok {
					continue
				}
				clients = map[*Client]struct{}{m.Client: {}}
			}
			log.Debug("Broadcasting to room", zap.String("room", m.Room), zap.Int("clients", len(clients)))
			for c := range clients {
				select {
				case c.Send <- m.Data:
				default:
					h.drop(c)
					log.Warn("Client too slow, dropped",
						zap.String("clientID", c.ID),
						zap.String("room", c.Room),
					)
				}
			}
		}
	}
}

func (h *Hub) add(c *Client) {
	clients, ok := h.rooms[c.Room]
	if !ok {
		clients = make(map[*Client]struct{})
		h.rooms[c.Room] = clients
	}
	clients[c] = struct{}{}
	metrics.WebSocketClients.Inc()
	log.Info("Client registered",
		zap.String("clientID", c.ID),
		zap.String("room", c.Room),
		zap.Int("roomClients", len(clients)),
	)
}

func (h *Hub) drainRegistrations() {
	for {
		select {
		case c := <-h.register:
			h.add(c)
		default:
			return
		}
	}
}

// drop removes c from its room and closes its send channel. It reports
// whether c was still registered.
func (h *Hub) drop(c *Client) bool {
	clients, ok := h.rooms[c.Room]
	if !ok {
		return false
	}
	if _, ok := clients[c]; !ok {
		return false
	}
	delete(clients, c)
	close(c.Send)
	metrics.WebSocketClients.Dec()
	if len(clients) == 0 {
		delete(h.rooms, c.Room)
	}
	return true
}

func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// Broadcast queues data for every client in room. It never blocks; when the
// hub is saturated the message is dropped.
func (h *Hub) Broadcast(room string, data []byte) {
	select {
	case h.broadcast <- &Message{Room: room, Data: data}:
	default:
		log.Error("Broadcast queue full, message dropped", zap.String("room", room))
	}
}

// SendTo queues data for c alone. It is a no-op once c is unregistered.
func (h *Hub) SendTo(c *Client, data []byte) {
	select {
	case h.broadcast <- &Message{Room: c.Room, Client: c, Data: data}:
	default:
		log.Error("Broadcast queue full, message dropped", zap.String("clientID", c.ID))
	}
}

// ReadPump hands each frame to handle until the peer goes away or ctx ends.
// Frames are handled one at a time in arrival order; the next frame is not
// read until handle returns. Run it on the connection's own goroutine.
func (c *Client) ReadPump(ctx context.Context, handle FrameHandler) {
	defer c.Hub.UnregisterClient(c)

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for ctx.Err() == nil {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read error",
					zap.String("clientID", c.ID),
					zap.String("room", c.Room),
					zap.Error(err),
				)
			}
			return
		}
		handle(ctx, c, data)
	}
}

// WritePump writes queued messages and keepalive pings. It is the only
// writer on the connection and returns when the hub closes Send.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return

		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one JSON document per frame
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warn("WebSocket write failed",
					zap.String("clientID", c.ID),
					zap.String("room", c.Room),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug("Ping failed", zap.String("clientID", c.ID), zap.Error(err))
				return
			}
		}
	}
}
