package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/slemay/globedash/internal/window"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPingPeriod = 30 * time.Second
	feedSendBuffer = 16
)

// FeedHub pushes each cycle's visual batch to connected websocket clients.
// A client that cannot keep up is dropped rather than allowed to stall the
// broadcast.
type FeedHub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*feedClient
}

type feedClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func NewFeedHub() *FeedHub {
	return &FeedHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*feedClient),
	}
}

// HandleFeed upgrades the request and streams batches until the client
// disconnects.
func (h *FeedHub) HandleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("Feed upgrade failed", "error", err)
		return
	}

	client := &feedClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, feedSendBuffer),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()

	slog.Debug("Feed client connected", "id", client.id, "clients", count)

	go h.writePump(client)
	h.readPump(client)
}

// BroadcastBatch sends the batch to every connected client. Empty batches
// are skipped.
func (h *FeedHub) BroadcastBatch(batch window.Batch) {
	if len(batch.Visuals) == 0 {
		return
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		slog.Error("Failed to encode visual batch", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- payload:
		default:
			slog.Debug("Dropping batch for slow feed client", "id", client.id)
		}
	}
}

// ClientCount returns the number of connected feed clients.
func (h *FeedHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *FeedHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
}

func (h *FeedHub) remove(client *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.id]; ok {
		close(client.send)
		delete(h.clients, client.id)
	}
}

func (h *FeedHub) readPump(client *feedClient) {
	defer func() {
		h.remove(client)
		_ = client.conn.Close()
	}()

	// The feed is one-way; reads only serve to detect disconnects.
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *FeedHub) writePump(client *feedClient) {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
