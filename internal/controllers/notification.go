package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"referral-system/internal/dto"
	"referral-system/internal/services"
	apperrors "referral-system/pkg/errors"
	"referral-system/pkg/types"
	"referral-system/pkg/utils"
)

type NotificationController struct {
	notificationService services.NotificationServiceInterface
	logger              *zap.Logger
}

func NewNotificationController(notificationService services.NotificationServiceInterface, logger *zap.Logger) *NotificationController {
	return &NotificationController{
		notificationService: notificationService,
		logger:              logger,
	}
}

func (c *NotificationController) GetNotifications(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	userID, err := utils.GetUserIDFromCtx(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())
	notifications, total, err := c.notificationService.GetNotifications(reqCtx, userID, filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	return utils.SuccessResponse(ctx, dto.NotificationListResponse{
		Notifications: notifications,
		Pagination: types.Pagination{
			TotalCount: total,
			Page:       filter.Page,
			Limit:      filter.Limit,
		},
	}, "Notifications fetched", http.StatusOK)
}

func (c *NotificationController) GetUnreadCount(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	userID, err := utils.GetUserIDFromCtx(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	count, err := c.notificationService.CountUnread(reqCtx, userID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	return utils.SuccessResponse(ctx, dto.UnreadCountResponse{Count: count}, "Unread count fetched", http.StatusOK)
}

func (c *NotificationController) MarkAsRead(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	userID, err := utils.GetUserIDFromCtx(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	notificationID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || notificationID == 0 {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}

	if err := c.notificationService.MarkAsRead(reqCtx, notificationID, userID); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	return utils.SuccessResponse(ctx, nil, "Notification marked as read", http.StatusOK)
}

func (c *NotificationController) MarkAllAsRead(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	userID, err := utils.GetUserIDFromCtx(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.notificationService.MarkAllAsRead(reqCtx, userID); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	return utils.SuccessResponse(ctx, nil, "All notifications marked as read", http.StatusOK)
}

// Broadcast lets an admin push an announcement to selected partners or
// to everyone currently connected.
func (c *NotificationController) Broadcast(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	var payload dto.BroadcastNotificationDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.NewInvalidInputError("invalid broadcast payload: %v", err), c.logger)
	}

	var err error
	if payload.All {
		err = c.notificationService.DispatchToAll(reqCtx, payload.Draft)
	} else {
		if len(payload.UserIDs) == 0 {
			return utils.ErrorResponse(ctx, apperrors.NewInvalidInputError("userIds is required when all=false"), c.logger)
		}
		err = c.notificationService.DispatchToMany(reqCtx, payload.UserIDs, payload.Draft)
	}
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	return utils.SuccessResponse(ctx, nil, "Notification broadcast dispatched", http.StatusOK)
}

// GetConnectionStats exposes the read-only registry queries.
func (c *NotificationController) GetConnectionStats(ctx echo.Context) error {
	body := map[string]interface{}{
		"connectedUsers": c.notificationService.ConnectedUserCount(),
	}
	if rawUserID := ctx.QueryParam("userId"); rawUserID != "" {
		if userID, err := strconv.ParseUint(rawUserID, 10, 64); err == nil {
			body["online"] = c.notificationService.IsOnline(userID)
		}
	}
	return utils.SuccessResponse(ctx, body, "Connection stats fetched", http.StatusOK)
}
