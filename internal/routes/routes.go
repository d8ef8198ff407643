package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"referral-system/internal/controllers"
	"referral-system/internal/repositories"
	"referral-system/internal/services"
	"referral-system/pkg/eventbus"
	"referral-system/pkg/middleware"
	"referral-system/pkg/service"
	appwebsocket "referral-system/pkg/websocket"
)

// InitRouter wires the controllers onto the echo instance. The hub and
// the dispatcher are built in main because their lifecycle outlives any
// single request.
func InitRouter(
	e *echo.Echo,
	hub *appwebsocket.Hub,
	notificationService services.NotificationServiceInterface,
	notificationRepo repositories.NotificationRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	jwtSvc service.JWTService,
	bus *eventbus.Bus,
	logger *zap.Logger,
) {
	authMW := middleware.NewAuthMiddleware(jwtSvc, logger)

	authService := services.NewAuthService(userRepo, jwtSvc, logger)
	authController := controllers.NewAuthController(authService, logger)
	notificationController := controllers.NewNotificationController(notificationService, logger)
	reportController := controllers.NewReportController(notificationRepo, logger)
	pipelineController := controllers.NewPipelineController(bus, logger)
	wsController := controllers.NewWebSocketController(hub, userRepo, logger)

	// realtime gateway
	e.GET("/ws", wsController.ServeWs)

	api := e.Group("/api")
	api.POST("/auth/login", authController.Login)

	notifications := api.Group("/notifications", authMW.Auth)
	notifications.GET("", notificationController.GetNotifications)
	notifications.GET("/unread-count", notificationController.GetUnreadCount)
	notifications.PATCH("/:id/read", notificationController.MarkAsRead)
	notifications.POST("/read-all", notificationController.MarkAllAsRead)
	notifications.GET("/export", reportController.ExportNotifications)

	admin := api.Group("/admin", authMW.Auth, authMW.RequireAdmin)
	admin.POST("/notifications/broadcast", notificationController.Broadcast)
	admin.GET("/connections", notificationController.GetConnectionStats)
	admin.POST("/pipeline/referral-status", pipelineController.ReferralStatusChanged)
	admin.POST("/pipeline/deal-stage", pipelineController.DealStageChanged)
}
