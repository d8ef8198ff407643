package websocket

import (
	"encoding/json"
	"time"
)

// Frame type names on the wire. Inbound and outbound frames share the
// same shape: {"type": string, "data": object?}.
const (
	// inbound
	FramePing       = "ping"
	FrameSubscribe  = "subscribe"
	FrameMarkAsRead = "markAsRead"

	// outbound
	FrameConnection       = "connection"
	FrameNotification     = "notification"
	FrameNotificationRead = "notificationRead"
	FramePong             = "pong"
)

// Frame is an outbound message envelope.
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// inboundFrame defers data decoding until the frame type is known.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type connectionData struct {
	UserID  uint64 `json:"userId"`
	Message string `json:"message"`
}

type pongData struct {
	Timestamp time.Time `json:"timestamp"`
}

type markAsReadData struct {
	NotificationID uint64 `json:"notificationId"`
}

type notificationReadData struct {
	NotificationID uint64 `json:"notificationId"`
}
