package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Hub fans published events out to websocket clients grouped by topic.
// Topics match the channels the notifier publishes to ("lot:<id>",
// "auction:<id>").
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMessage

	logger *slog.Logger
}

// Client is a single websocket subscriber watching one topic.
type Client struct {
	topic string
	conn  *websocket.Conn
	send  chan []byte
}

type broadcastMessage struct {
	topic   string
	payload []byte
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan broadcastMessage, 256),
		logger:      logger,
	}
}

// Run processes registrations and broadcasts until the channel loop is
// stopped with the process.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.broadcastToTopic(msg.topic, msg.payload)
		}
	}
}

// Broadcast queues a payload for every client watching the topic.
func (h *Hub) Broadcast(topic string, payload []byte) {
	h.broadcast <- broadcastMessage{topic: topic, payload: payload}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	set, ok := h.subscribers[client.topic]
	if !ok {
		set = make(map[*Client]struct{})
		h.subscribers[client.topic] = set
	}
	set[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("client subscribed", "topic", client.topic)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if set, ok := h.subscribers[client.topic]; ok {
		if _, present := set[client]; present {
			delete(set, client)
			close(client.send)
			if len(set) == 0 {
				delete(h.subscribers, client.topic)
			}
		}
	}
	h.mu.Unlock()

	client.conn.Close()
	h.logger.Debug("client unsubscribed", "topic", client.topic)
}

func (h *Hub) broadcastToTopic(topic string, payload []byte) {
	h.mu.RLock()
	set := h.subscribers[topic]
	clients := make([]*Client, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- payload:
		default:
			// A full send buffer means the client cannot keep up.
			// Drop it rather than block the rest of the topic.
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (c *Client) writePump() {
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

func (c *Client) readPump(unregister chan<- *Client) {
	defer func() {
		unregister <- c
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
