package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantumlife/meetingagent/internal/core"
	"github.com/quantumlife/meetingagent/internal/logging"
)

const (
	feedWriteTimeout = 10 * time.Second
	feedBuffer       = 16
)

// FeedMessage is one event pushed to feed subscribers
type FeedMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// RunFeed pushes finished run statistics to websocket subscribers.
// It implements agent.RunObserver.
type RunFeed struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger

	clients map[*feedClient]struct{}
	closed  bool
	mu      sync.Mutex
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewRunFeed creates an empty feed
func NewRunFeed(logger *logging.Logger) *RunFeed {
	if logger == nil {
		logger = logging.Nop()
	}
	return &RunFeed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // read-only status data
			},
		},
		logger:  logger,
		clients: make(map[*feedClient]struct{}),
	}
}

// ServeHTTP upgrades the request and subscribes the connection
func (f *RunFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		f.logger.Debug("Feed upgrade failed: %v", err)
		return
	}

	c := &feedClient{conn: conn, send: make(chan []byte, feedBuffer)}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		conn.Close()
		return
	}
	f.clients[c] = struct{}{}
	f.mu.Unlock()

	go f.writeLoop(c)
	f.readLoop(c)
}

// readLoop discards inbound frames until the peer goes away
func (f *RunFeed) readLoop(c *feedClient) {
	defer f.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *RunFeed) writeLoop(c *feedClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (f *RunFeed) remove(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
}

// Broadcast sends a message to every subscriber. Slow subscribers are dropped.
func (f *RunFeed) Broadcast(msgType string, data interface{}) {
	payload, err := json.Marshal(FeedMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		f.logger.Warn("Failed to encode feed message: %v", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- payload:
		default:
			delete(f.clients, c)
			close(c.send)
		}
	}
}

// RunFinished publishes a finished cycle
func (f *RunFeed) RunFinished(stats core.RunStatistics) {
	f.Broadcast("run.finished", stats)
}

// Subscribers returns the number of connected clients
func (f *RunFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Close disconnects all subscribers and rejects new ones
func (f *RunFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for c := range f.clients {
		delete(f.clients, c)
		close(c.send)
	}
}
