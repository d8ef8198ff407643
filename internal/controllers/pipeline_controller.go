package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"referral-system/internal/dto"
	"referral-system/internal/events"
	apperrors "referral-system/pkg/errors"
	"referral-system/pkg/eventbus"
	"referral-system/pkg/utils"
)

// PipelineController receives pipeline transitions from the CRM layer
// and publishes them on the event bus; the notification listener picks
// them up from there.
type PipelineController struct {
	bus    *eventbus.Bus
	logger *zap.Logger
}

func NewPipelineController(bus *eventbus.Bus, logger *zap.Logger) *PipelineController {
	return &PipelineController{bus: bus, logger: logger}
}

func (c *PipelineController) ReferralStatusChanged(ctx echo.Context) error {
	var payload dto.ReferralStatusChangeDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.NewInvalidInputError("invalid status change payload: %v", err), c.logger)
	}

	c.bus.Publish(ctx.Request().Context(), events.ReferralStatusChangedEvent{
		EventID:      uuid.New(),
		PartnerID:    payload.PartnerID,
		ReferralID:   payload.ReferralID,
		BusinessName: payload.BusinessName,
		OldStatus:    payload.OldStatus,
		NewStatus:    payload.NewStatus,
	})

	return utils.SuccessResponse(ctx, nil, "Status change accepted", http.StatusAccepted)
}

func (c *PipelineController) DealStageChanged(ctx echo.Context) error {
	var payload dto.DealStageChangeDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.NewInvalidInputError("invalid stage change payload: %v", err), c.logger)
	}

	c.bus.Publish(ctx.Request().Context(), events.DealStageChangedEvent{
		EventID:      uuid.New(),
		PartnerID:    payload.PartnerID,
		ReferralID:   payload.ReferralID,
		BusinessName: payload.BusinessName,
		OldStage:     payload.OldStage,
		NewStage:     payload.NewStage,
	})

	return utils.SuccessResponse(ctx, nil, "Stage change accepted", http.StatusAccepted)
}
