package controllers

import (
	"errors"
	"net/http"
	"strconv"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"referral-system/internal/repositories"
	apperrors "referral-system/pkg/errors"
	appwebsocket "referral-system/pkg/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketController struct {
	hub      *appwebsocket.Hub
	userRepo repositories.UserRepositoryInterface
	logger   *zap.Logger
}

func NewWebSocketController(hub *appwebsocket.Hub, userRepo repositories.UserRepositoryInterface, logger *zap.Logger) *WebSocketController {
	return &WebSocketController{
		hub:      hub,
		userRepo: userRepo,
		logger:   logger,
	}
}

// ServeWs gates the upgrade on the claimed identity: the userId query
// parameter must resolve to an existing user before any connection
// state is created. The identity itself is not signed; the session
// layer in front of this endpoint is expected to close that gap.
func (c *WebSocketController) ServeWs(ctx echo.Context) error {
	if c.hub.Closed() {
		return ctx.String(http.StatusServiceUnavailable, "server shutting down")
	}

	rawUserID := ctx.QueryParam("userId")
	if rawUserID == "" {
		return ctx.String(http.StatusUnauthorized, "Missing userId")
	}

	userID, err := strconv.ParseUint(rawUserID, 10, 64)
	if err != nil {
		return ctx.String(http.StatusUnauthorized, "Invalid userId")
	}

	if _, err := c.userRepo.FindUser(ctx.Request().Context(), userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ctx.String(http.StatusUnauthorized, "Unknown user")
		}
		c.logger.Error("websocket admission check failed",
			zap.Uint64("userID", userID),
			zap.Error(err),
		)
		return ctx.String(http.StatusInternalServerError, "Internal error")
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		c.logger.Error("websocket upgrade failed", zap.Error(err))
		return err
	}

	client := appwebsocket.NewClient(c.hub, conn, userID)
	c.hub.Admit(client)

	go client.WritePump()
	go client.ReadPump()

	return nil
}
