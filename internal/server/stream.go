package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/elastic_grid/internal/models"
)

const (
	// writeWait bounds one websocket write.
	writeWait = 10 * time.Second
	// pongWait is how long a client may stay silent before it is dropped.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound frames; the stream is one-way.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The REST surface is already open to any origin; the stream follows.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans engine state updates out to every connected dashboard. All client
// set mutations happen on the Run goroutine.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	logger     *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		logger:     logger,
	}
}

// Run owns the client set until ctx is cancelled, then hangs up on everyone.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*client]bool)
			return nil

		case c := <-h.register:
			h.clients[c] = true
			h.logger.WithField("clients", len(h.clients)).Info("Stream client connected")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.logger.WithField("clients", len(h.clients)).Info("Stream client disconnected")

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow consumer, drop it.
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

// BroadcastState queues the ui-data document for every client. Never blocks:
// when the buffer is full the update is dropped, the next one supersedes it.
func (h *Hub) BroadcastState(st *models.SystemState) {
	data, err := json.Marshal(uiDocument(st))
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal state update")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Stream buffer full, dropping update")
	}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// newClient queues the initial document, registers with the hub and starts
// the pumps. The initial send happens before registration so it cannot race
// the hub closing the channel.
func newClient(hub *Hub, conn *websocket.Conn, initial []byte) *client {
	c := &client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	if initial != nil {
		c.send <- initial
	}
	c.hub.register <- c

	go c.writePump()
	go c.readPump()
	return c
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Warn("Stream read error")
			}
			break
		}
		// The stream is one-way, client messages are ignored.
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "stream disabled", http.StatusServiceUnavailable)
		return
	}

	initial, err := json.Marshal(uiDocument(s.engine.Snapshot()))
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal initial snapshot")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Error("Websocket upgrade failed")
		return
	}
	newClient(s.hub, conn, initial)
}
