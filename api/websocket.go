package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xai-network/xaid/logger"

	"github.com/btcsuite/btclog"
)

// Topic is a WebSocket push-notification channel a client may subscribe
// to (spec §4.12: "subscribers register for topics {stats, sync,
// new_block, new_tx}").
type Topic string

const (
	TopicStats    Topic = "stats"
	TopicSync     Topic = "sync"
	TopicNewBlock Topic = "new_block"
	TopicNewTx    Topic = "new_tx"
)

// idleTimeout disconnects a client that sends nothing for this long
// (spec §5: "WebSocket sessions have idle timeouts (5 min default)").
const idleTimeout = 5 * time.Minute

// rateLimitPerMinute and sizeLimitBytes bound a single client's inbound message rate
// and size (spec §5: "per-client rate limits (~100 msg/min, ~1 MB/msg)").
const (
	rateLimitPerMinute = 100
	sizeLimitBytes     = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is a message the core emits for a topic, fanned out to every
// subscribed client.
type Event struct {
	Topic Topic       `json:"topic"`
	Data  interface{} `json:"data"`
}

// subscribeRequest is the inbound client message shape: {"action":
// "subscribe"|"unsubscribe", "topic": "..."}.
type subscribeRequest struct {
	Action string `json:"action"`
	Topic  Topic  `json:"topic"`
}

// client is one connected WebSocket session, grounded on
// rpcwebsocket.go's wsClient: a buffered send channel plus a dedicated
// outHandler goroutine so a slow reader can never block the publisher.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	quit   chan struct{}
	topics map[Topic]bool

	mu         sync.Mutex
	msgCount   int
	windowOpen time.Time
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:       conn,
		send:       make(chan []byte, 64),
		quit:       make(chan struct{}),
		topics:     make(map[Topic]bool),
		windowOpen: time.Now(),
	}
}

func (c *client) subscribed(topic Topic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics[topic]
}

func (c *client) setSubscribed(topic Topic, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.topics[topic] = true
	} else {
		delete(c.topics, topic)
	}
}

// allowMessage enforces the per-client rate limit, resetting its window
// every minute.
func (c *client) allowMessage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.Sub(c.windowOpen) > time.Minute {
		c.windowOpen = now
		c.msgCount = 0
	}
	c.msgCount++
	return c.msgCount <= rateLimitPerMinute
}

// Hub fans out Events to subscribed clients (spec §4.12: "the core emits
// events; the adapter fans out with per-client rate and size caps").
type Hub struct {
	mu      sync.Mutex
	clients map[*client]bool
	log     btclog.Logger
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	log, _ := logger.Get(logger.SubsystemTags.APIS)
	return &Hub{clients: make(map[*client]bool), log: log}
}

// Publish fans out an event to every client subscribed to its topic.
func (h *Hub) Publish(topic Topic, data interface{}) {
	payload, err := json.Marshal(Event{Topic: topic, Data: data})
	if err != nil {
		h.log.Warnf("marshaling event for topic %s: %s", topic, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.subscribed(topic) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			h.log.Warnf("dropping event for slow client on topic %s", topic)
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.quit)
	}
}

// handleWebSocket implements WS /ws: upgrades the connection, then runs
// the read/write pump pair until disconnect or idle timeout.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade failed: %s", err)
		return
	}

	c := newClient(conn)
	s.hub.register(c)

	go s.outPump(c)
	s.inPump(c)
}

func (s *Server) inPump(c *client) {
	defer s.hub.unregister(c)
	defer c.conn.Close()

	c.conn.SetReadLimit(sizeLimitBytes)
	c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if !c.allowMessage() {
			s.log.Warnf("client exceeded rate limit, disconnecting")
			return
		}

		var req subscribeRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		switch req.Action {
		case "subscribe":
			c.setSubscribed(req.Topic, true)
		case "unsubscribe":
			c.setSubscribed(req.Topic, false)
		}
	}
}

func (s *Server) outPump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.quit:
			return
		}
	}
}

const pingInterval = idleTimeout / 2
