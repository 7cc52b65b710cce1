package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"trackscan/internal/dto"
	"trackscan/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	// broadcastQueue bounds the events waiting for the hub; extra events are dropped.
	broadcastQueue = 64
	// viewerQueue bounds the events waiting for one viewer. A viewer that
	// falls this far behind is disconnected.
	viewerQueue = 16

	writeWait = 5 * time.Second
	// PongWait is how long a viewer may stay silent before its read fails.
	PongWait   = 60 * time.Second
	pingPeriod = PongWait * 9 / 10
)

type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

// HubService fans prediction events out to every connected live feed
// viewer. Each viewer gets its own writer goroutine.
type HubService struct {
	viewers map[*websocket.Conn]*viewer
	events  chan []byte
	joins   chan *websocket.Conn
	leaves  chan *websocket.Conn
	done    chan struct{}
	mu      sync.RWMutex
	logger  *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		viewers: make(map[*websocket.Conn]*viewer),
		events:  make(chan []byte, broadcastQueue),
		joins:   make(chan *websocket.Conn),
		leaves:  make(chan *websocket.Conn),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run owns the viewer set until ctx is cancelled, then disconnects everyone.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn, v := range h.viewers {
				close(v.send)
				delete(h.viewers, conn)
			}
			h.mu.Unlock()
			return

		case conn := <-h.joins:
			v := &viewer{conn: conn, send: make(chan []byte, viewerQueue)}
			h.mu.Lock()
			h.viewers[conn] = v
			count := len(h.viewers)
			h.mu.Unlock()
			go h.pump(v)
			h.logger.Info("Viewer connected. Total: %d", count)

		case conn := <-h.leaves:
			if h.drop(conn) {
				h.logger.Info("Viewer disconnected. Total: %d", h.GetClientCount())
			}

		case message := <-h.events:
			h.mu.RLock()
			var lagging []*websocket.Conn
			for conn, v := range h.viewers {
				select {
				case v.send <- message:
				default:
					lagging = append(lagging, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range lagging {
				h.logger.Warning("Viewer %s is not keeping up, disconnecting", conn.RemoteAddr())
				h.drop(conn)
			}
		}
	}
}

// drop forgets a viewer and stops its writer, which closes the connection.
func (h *HubService) drop(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	v, ok := h.viewers[conn]
	if !ok {
		return false
	}
	delete(h.viewers, conn)
	close(v.send)
	return true
}

// pump writes queued events and keepalive pings to one viewer.
func (h *HubService) pump(v *viewer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case message, ok := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("Error sending message: %v", err)
				go h.Unregister(v.conn)
				return
			}

		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				go h.Unregister(v.conn)
				return
			}
		}
	}
}

// Register adds a viewer. It returns false when the hub has stopped.
func (h *HubService) Register(conn *websocket.Conn) bool {
	select {
	case h.joins <- conn:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a viewer and closes its connection.
func (h *HubService) Unregister(conn *websocket.Conn) {
	select {
	case h.leaves <- conn:
	case <-h.done:
		conn.Close()
	}
}

// Broadcast queues message for every viewer without blocking the caller.
// It reports whether the message was queued.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.events <- message:
		return true
	default:
		h.logger.Warning("Live feed queue full, dropping event")
		return false
	}
}

// BroadcastEvent encodes a prediction event and queues it.
func (h *HubService) BroadcastEvent(event dto.PredictionEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Error encoding live feed event: %v", err)
		return
	}
	h.Broadcast(message)
}

func (h *HubService) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}
