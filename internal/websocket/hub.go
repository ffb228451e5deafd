package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/makeasinger/stemsplit/internal/logging"
	"github.com/makeasinger/stemsplit/internal/model"
)

const (
	sendBuffer   = 64
	pingInterval = 30 * time.Second
)

// Client represents a WebSocket subscriber to one job
type Client struct {
	JobID string
	Conn  *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(jobID string, conn *websocket.Conn) *Client {
	return &Client{JobID: jobID, Conn: conn, send: make(chan []byte, sendBuffer)}
}

// offer queues msg without blocking. It reports false when the client is
// closed or too slow to keep up.
func (c *Client) offer(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub fans job events out to the WebSocket clients subscribed to each job
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	logger *zap.Logger
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		logger:     logger.Named("ws"),
	}
}

// Run owns the subscriber set until ctx is cancelled, then closes every
// client. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, clients := range h.clients {
				for client := range clients {
					client.close()
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			return

		case client := <-h.register:
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]struct{})
			}
			h.clients[client.JobID][client] = struct{}{}
			h.logger.Debug("client registered", logging.JobID(client.JobID))

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Debug("client unregistered", logging.JobID(client.JobID))

		case msg := <-h.broadcast:
			for client := range h.clients[msg.JobID] {
				if !client.offer(msg.Message) {
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	client.close()
	if len(clients) == 0 {
		delete(h.clients, client.JobID)
	}
}

// Register adds a new client. After shutdown the client is closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// publish marshals msg and queues it. Events are dropped rather than
// stalling a worker when the hub is backed up.
func (h *Hub) publish(jobID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal message", logging.JobID(jobID), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{JobID: strings.Clone(jobID), Message: data}:
	default:
		h.logger.Warn("broadcast queue full, dropping event", logging.JobID(jobID))
	}
}

// Progress sends a progress update to all job subscribers
func (h *Hub) Progress(jobID string, progress int, status model.JobStatus, step string) {
	h.publish(jobID, model.WSProgressMessage{
		Type:        model.WSMessageTypeProgress,
		JobID:       jobID,
		Progress:    progress,
		Status:      status,
		CurrentStep: step,
	})
}

// Complete sends a completion message to all job subscribers
func (h *Hub) Complete(jobID string, result model.StatusResponse) {
	h.publish(jobID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	})
}

// Failed sends an error message to all job subscribers
func (h *Hub) Failed(jobID, code, message string) {
	h.publish(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{Code: code, Message: message},
	})
}

// Deleted tells subscribers the job record was cleared
func (h *Hub) Deleted(jobID string) {
	h.publish(jobID, model.WSDeletedMessage{Type: model.WSMessageTypeDeleted, JobID: jobID})
}

// HandleConnection serves one WebSocket subscriber until it disconnects.
// initial, when set, is sent first so late subscribers see the current state.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string, initial interface{}) {
	client := newClient(jobID, c)
	if initial != nil {
		if data, err := json.Marshal(initial); err == nil {
			client.offer(data)
		}
	}

	h.Register(client)
	defer h.Unregister(client)

	go writePump(c, client)

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", logging.JobID(jobID), zap.Error(err))
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			client.offer(data)
		}
	}
}

func writePump(c *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				_ = c.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
