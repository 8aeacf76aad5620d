package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/sollane/worldstate-watcher/internal/worldstate"
)

// NotificationEvent is the wire shape broadcast to event-stream clients
// whenever a fissure notification is dispatched.
type NotificationEvent struct {
	Node        string    `json:"node"`
	NodeName    string    `json:"node_name"`
	MissionType string    `json:"mission_type"`
	Difficulty  string    `json:"difficulty"`
	Tier        string    `json:"tier"`
	Planet      string    `json:"planet,omitempty"`
	Expiry      time.Time `json:"expiry"`
	Channel     string    `json:"channel"`
	Mentions    []string  `json:"mentions"`
	Timestamp   int64     `json:"timestamp"`
}

// Hub fans dispatched notifications out to connected websocket clients.
type Hub struct {
	logger  *zap.Logger
	encoder *zstd.Encoder

	mu      sync.RWMutex
	clients map[string]*wsClient
}

type wsClient struct {
	connID   string
	conn     *websocket.Conn
	sendCh   chan []byte
	compress bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func NewHub(logger *zap.Logger) (*Hub, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	return &Hub{
		logger:  logger,
		encoder: enc,
		clients: make(map[string]*wsClient),
	}, nil
}

// Broadcast queues an event for every connected client. Slow clients
// drop events rather than stalling the monitor.
func (h *Hub) Broadcast(ev worldstate.Event, channel string, mentions []string) {
	msg := NotificationEvent{
		Node:        ev.Node,
		NodeName:    ev.NodeName,
		MissionType: ev.MissionType,
		Difficulty:  ev.Difficulty(),
		Tier:        ev.Tier,
		Planet:      ev.Planet,
		Expiry:      ev.Expiry,
		Channel:     channel,
		Mentions:    mentions,
		Timestamp:   time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		data := payload
		if client.compress {
			data = h.encoder.EncodeAll(payload, nil)
		}
		select {
		case client.sendCh <- data:
		default:
			h.logger.Debug("event client channel full, dropping event",
				zap.String("connID", client.connID))
		}
	}
}

// HandleWS upgrades the connection and streams notification events until
// the client disconnects. Pass ?compress=zstd for zstd-compressed binary
// frames instead of JSON text frames.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		connID:   uuid.New().String(),
		conn:     conn,
		sendCh:   make(chan []byte, 16),
		compress: r.URL.Query().Get("compress") == "zstd",
	}

	h.mu.Lock()
	h.clients[client.connID] = client
	h.mu.Unlock()

	h.logger.Info("event client connected",
		zap.String("connID", client.connID),
		zap.String("remote_addr", r.RemoteAddr),
		zap.Bool("compress", client.compress),
	)

	go h.writeLoop(client)
	h.readLoop(client)
}

func (h *Hub) writeLoop(client *wsClient) {
	messageType := websocket.TextMessage
	if client.compress {
		messageType = websocket.BinaryMessage
	}
	for data := range client.sendCh {
		if err := client.conn.WriteMessage(messageType, data); err != nil {
			h.logger.Debug("write to event client failed",
				zap.String("connID", client.connID), zap.Error(err))
			_ = client.conn.Close()
			return
		}
	}
}

// readLoop drains the connection so pings and close frames are handled,
// then unregisters the client.
func (h *Hub) readLoop(client *wsClient) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, client.connID)
	h.mu.Unlock()
	close(client.sendCh)
	_ = client.conn.Close()

	h.logger.Info("event client disconnected", zap.String("connID", client.connID))
}

// ClientCount reports the number of connected event clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
