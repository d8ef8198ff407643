package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"referral-system/pkg/config"
)

// Gateway is the slice of the persistence layer the hub needs for
// client-initiated frames.
type Gateway interface {
	MarkNotificationAsRead(ctx context.Context, notificationID, userID uint64) error
}

type frameHandler func(c *Client, data json.RawMessage)

// Hub owns the connection registry and the heartbeat. All registry
// mutations go through Admit/Remove; everything else only reads.
type Hub struct {
	gateway Gateway
	logger  *zap.Logger

	heartbeatInterval time.Duration
	sendBufferSize    int
	maxMessageSize    int64

	mu      sync.RWMutex
	clients map[uint64]map[*Client]struct{}

	handlers map[string]frameHandler

	done     chan struct{}
	stopOnce sync.Once
	closed   atomic.Bool
}

func NewHub(gateway Gateway, cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	h := &Hub{
		gateway:           gateway,
		logger:            logger,
		heartbeatInterval: cfg.HeartbeatInterval,
		sendBufferSize:    cfg.SendBufferSize,
		maxMessageSize:    cfg.MaxMessageSize,
		clients:           make(map[uint64]map[*Client]struct{}),
		done:              make(chan struct{}),
	}
	if h.heartbeatInterval <= 0 {
		h.heartbeatInterval = 30 * time.Second
	}
	if h.sendBufferSize <= 0 {
		h.sendBufferSize = 256
	}
	if h.maxMessageSize <= 0 {
		h.maxMessageSize = 4096
	}

	h.handlers = map[string]frameHandler{
		FramePing:       h.handlePing,
		FrameSubscribe:  h.handleSubscribe,
		FrameMarkAsRead: h.handleMarkAsRead,
	}

	return h
}

// Run drives the heartbeat until Shutdown. Call it once, in its own
// goroutine.
func (h *Hub) Run() {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.checkLiveness()
		case <-h.done:
			return
		}
	}
}

// Admit registers a connection under its user and confirms the session
// with a connection frame.
func (h *Hub) Admit(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("websocket client connected", zap.Uint64("userID", c.UserID))

	h.sendToClient(c, Frame{
		Type: FrameConnection,
		Data: connectionData{UserID: c.UserID, Message: "connected"},
	})
}

// Remove drops a connection from the registry. The user's entry is
// deleted entirely once its last connection is gone. Safe to call more
// than once for the same client.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, in := set[c]; !in {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	close(c.send)

	h.logger.Info("websocket client disconnected", zap.Uint64("userID", c.UserID))
}

func (h *Hub) IsOnline(userID uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) ConnectedUserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) UserIDs() []uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]uint64, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// SendToUser pushes one frame to every live connection of the user.
// Having no live connection is not an error: the live push is
// best-effort, persistence is the caller's concern.
func (h *Hub) SendToUser(userID uint64, frame Frame) error {
	message, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to serialize websocket frame",
			zap.String("type", frame.Type),
			zap.Error(err),
		)
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		if !c.enqueue(message) {
			h.logger.Warn("websocket send buffer full, dropping connection",
				zap.Uint64("userID", userID),
			)
			_ = c.conn.Close()
		}
	}
	return nil
}

// sendToClient enqueues a frame for a single connection, skipping it if
// it has already been removed.
func (h *Hub) sendToClient(c *Client, frame Frame) {
	message, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to serialize websocket frame",
			zap.String("type", frame.Type),
			zap.Error(err),
		)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, in := set[c]; !in {
		return
	}
	if !c.enqueue(message) {
		_ = c.conn.Close()
	}
}

// checkLiveness is one heartbeat tick: connections that never answered
// the previous ping are terminated, the rest are suspected and pinged
// again. A dead connection is therefore reaped within two intervals.
func (h *Hub) checkLiveness() {
	h.mu.RLock()
	snapshot := make([]*Client, 0, len(h.clients))
	for _, set := range h.clients {
		for c := range set {
			snapshot = append(snapshot, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		if !c.alive.Load() {
			h.logger.Warn("websocket connection failed heartbeat, terminating",
				zap.Uint64("userID", c.UserID),
			)
			_ = c.conn.Close()
			continue
		}

		c.alive.Store(false)
		deadline := time.Now().Add(writeWait)
		if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			_ = c.conn.Close()
		}
	}
}

// handleFrame routes one inbound client frame. Malformed frames are
// logged and discarded; the connection stays up.
func (h *Hub) handleFrame(c *Client, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.logger.Warn("discarding malformed websocket frame",
			zap.Uint64("userID", c.UserID),
			zap.Error(err),
		)
		return
	}

	handler, ok := h.handlers[frame.Type]
	if !ok {
		h.logger.Debug("unknown websocket frame type",
			zap.Uint64("userID", c.UserID),
			zap.String("type", frame.Type),
		)
		return
	}
	handler(c, frame.Data)
}

func (h *Hub) handlePing(c *Client, _ json.RawMessage) {
	h.sendToClient(c, Frame{
		Type: FramePong,
		Data: pongData{Timestamp: time.Now().UTC()},
	})
}

func (h *Hub) handleSubscribe(c *Client, data json.RawMessage) {
	h.logger.Info("websocket client subscribed",
		zap.Uint64("userID", c.UserID),
		zap.ByteString("data", data),
	)
}

func (h *Hub) handleMarkAsRead(c *Client, data json.RawMessage) {
	var payload markAsReadData
	if err := json.Unmarshal(data, &payload); err != nil || payload.NotificationID == 0 {
		h.logger.Warn("markAsRead frame without a notification id",
			zap.Uint64("userID", c.UserID),
		)
		return
	}

	if err := h.gateway.MarkNotificationAsRead(context.Background(), payload.NotificationID, c.UserID); err != nil {
		h.logger.Error("failed to mark notification as read",
			zap.Uint64("userID", c.UserID),
			zap.Uint64("notificationID", payload.NotificationID),
			zap.Error(err),
		)
		return
	}

	_ = h.SendToUser(c.UserID, Frame{
		Type: FrameNotificationRead,
		Data: notificationReadData{NotificationID: payload.NotificationID},
	})
}

// Shutdown stops the heartbeat first so a reap cannot race the close
// calls, then closes every live connection and refuses new admissions.
func (h *Hub) Shutdown() {
	h.closed.Store(true)
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.RLock()
	snapshot := make([]*Client, 0, len(h.clients))
	for _, set := range h.clients {
		for c := range set {
			snapshot = append(snapshot, c)
		}
	}
	h.mu.RUnlock()

	deadline := time.Now().Add(writeWait)
	for _, c := range snapshot {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			deadline,
		)
		_ = c.conn.Close()
		h.Remove(c)
	}

	h.logger.Info("websocket hub stopped")
}

// Closed reports whether the hub has been shut down and no longer
// accepts connections.
func (h *Hub) Closed() bool {
	return h.closed.Load()
}
