package listeners

import (
	"context"

	"go.uber.org/zap"

	"referral-system/internal/events"
	"referral-system/internal/services"
	"referral-system/pkg/eventbus"
)

// NotificationListener bridges CRM events to the notification
// dispatcher. It is the only consumer of the pipeline events here; the
// CRM handlers themselves never talk to the hub directly.
type NotificationListener struct {
	notificationService services.NotificationServiceInterface
	logger              *zap.Logger
}

func NewNotificationListener(notificationService services.NotificationServiceInterface, logger *zap.Logger) *NotificationListener {
	return &NotificationListener{
		notificationService: notificationService,
		logger:              logger,
	}
}

func (l *NotificationListener) Register(bus *eventbus.Bus) {
	bus.Subscribe("referral.status.changed", l.handleReferralStatusChanged)
	bus.Subscribe("deal.stage.changed", l.handleDealStageChanged)
	l.logger.Info("NotificationListener subscribed to referral pipeline events")
}

func (l *NotificationListener) handleReferralStatusChanged(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.ReferralStatusChangedEvent)
	if !ok {
		return nil
	}

	_, err := l.notificationService.NotifyStatusChange(
		ctx, e.PartnerID, e.ReferralID, e.BusinessName, e.OldStatus, e.NewStatus,
	)
	if err != nil {
		l.logger.Error("failed to notify partner about status change",
			zap.String("eventID", e.EventID.String()),
			zap.Uint64("partnerID", e.PartnerID),
			zap.Uint64("referralID", e.ReferralID),
			zap.Error(err),
		)
	}
	return err
}

func (l *NotificationListener) handleDealStageChanged(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.DealStageChangedEvent)
	if !ok {
		return nil
	}

	_, err := l.notificationService.NotifyStageChange(
		ctx, e.PartnerID, e.ReferralID, e.BusinessName, e.OldStage, e.NewStage,
	)
	if err != nil {
		l.logger.Error("failed to notify partner about stage change",
			zap.String("eventID", e.EventID.String()),
			zap.Uint64("partnerID", e.PartnerID),
			zap.Uint64("referralID", e.ReferralID),
			zap.Error(err),
		)
	}
	return err
}
