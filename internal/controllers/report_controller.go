package controllers

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"referral-system/internal/entities"
	"referral-system/internal/repositories"
	"referral-system/pkg/utils"
)

type ReportController struct {
	notificationRepo repositories.NotificationRepositoryInterface
	logger           *zap.Logger
}

func NewReportController(notificationRepo repositories.NotificationRepositoryInterface, logger *zap.Logger) *ReportController {
	return &ReportController{notificationRepo: notificationRepo, logger: logger}
}

// ExportNotifications downloads the caller's notification history as a
// spreadsheet, optionally bounded by date_from/date_to (RFC3339).
func (c *ReportController) ExportNotifications(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	userID, err := utils.GetUserIDFromCtx(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var from, to *time.Time
	if df := ctx.QueryParam("date_from"); df != "" {
		if t, err := time.Parse(time.RFC3339, df); err == nil {
			from = &t
		}
	}
	if dt := ctx.QueryParam("date_to"); dt != "" {
		if t, err := time.Parse(time.RFC3339, dt); err == nil {
			to = &t
		}
	}

	notifications, err := c.notificationRepo.GetForExport(reqCtx, userID, from, to)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	return c.respondWithXLSX(ctx, notifications)
}

func (c *ReportController) respondWithXLSX(ctx echo.Context, notifications []entities.Notification) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Notifications"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	headers := []interface{}{"ID", "Type", "Title", "Message", "Business", "Read", "Created At"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	for i, n := range notifications {
		row := []interface{}{
			n.ID, n.Type, n.Title, n.Message,
			n.BusinessName.String, n.Read,
			n.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return utils.ErrorResponse(ctx, err, c.logger)
		}
	}

	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="notifications.xlsx"`)

	return f.Write(ctx.Response().Writer)
}
