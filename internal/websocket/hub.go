package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/sheetsight/api/internal/model"
)

// Client represents a WebSocket client
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub maintains active WebSocket connections, grouped by the job they
// watch, and pushes job state changes to them so interactive clients can
// skip the polling loop.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	jobID   string
	message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.JobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.JobID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.jobID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastState pushes a job state change to all subscribers of the job.
func (h *Hub) BroadcastState(jobID string, state model.JobStatus, columns []string, errMsg *string) {
	msg := model.WSStateMessage{
		Type:    model.WSMessageTypeState,
		JobID:   jobID,
		State:   state,
		Columns: columns,
		Error:   errMsg,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal state message: %v", err)
		return
	}

	h.broadcast <- &broadcastMessage{jobID: jobID, message: data}
}

// HandleConnection serves one subscriber until it disconnects. Terminal
// states end the stream from the server side.
func (h *Hub) HandleConnection(conn *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  conn,
		Send:  make(chan []byte, 16),
	}

	h.register <- client
	defer func() {
		h.unregister <- client
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

			var state model.WSStateMessage
			if err := json.Unmarshal(msg, &state); err == nil && state.State.Terminal() {
				return
			}
		case <-done:
			return
		}
	}
}
