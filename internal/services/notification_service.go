package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/aarondl/null/v8"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"referral-system/internal/dto"
	"referral-system/internal/entities"
	"referral-system/internal/repositories"
	"referral-system/pkg/types"
	"referral-system/pkg/websocket"
)

// NotificationPusher is the live-delivery side of the dispatcher,
// satisfied by the websocket hub.
type NotificationPusher interface {
	SendToUser(userID uint64, frame websocket.Frame) error
	UserIDs() []uint64
	IsOnline(userID uint64) bool
	ConnectedUserCount() int
}

type NotificationServiceInterface interface {
	// DispatchNew persists a brand-new notification, then pushes it to
	// every live connection of the recipient.
	DispatchNew(ctx context.Context, userID uint64, draft dto.NotificationDraft) (*entities.Notification, error)
	// BroadcastExisting pushes an already-persisted record without ever
	// touching storage again.
	BroadcastExisting(userID uint64, notification *entities.Notification)
	DispatchToMany(ctx context.Context, userIDs []uint64, draft dto.NotificationDraft) error
	DispatchToAll(ctx context.Context, draft dto.NotificationDraft) error
	NotifyStatusChange(ctx context.Context, userID, referralID uint64, businessName, oldStatus, newStatus string) (*entities.Notification, error)
	NotifyStageChange(ctx context.Context, userID, referralID uint64, businessName, oldStage, newStage string) (*entities.Notification, error)

	GetNotifications(ctx context.Context, userID uint64, filter types.Filter) ([]entities.Notification, uint64, error)
	CountUnread(ctx context.Context, userID uint64) (uint64, error)
	MarkAsRead(ctx context.Context, notificationID, userID uint64) error
	MarkAllAsRead(ctx context.Context, userID uint64) error

	IsOnline(userID uint64) bool
	ConnectedUserCount() int
}

type NotificationService struct {
	repo   repositories.NotificationRepositoryInterface
	pusher NotificationPusher
	logger *zap.Logger
}

func NewNotificationService(
	repo repositories.NotificationRepositoryInterface,
	pusher NotificationPusher,
	logger *zap.Logger,
) NotificationServiceInterface {
	return &NotificationService{
		repo:   repo,
		pusher: pusher,
		logger: logger,
	}
}

// Referral status changes a partner is notified about. Unmapped
// statuses fall back to a generic "changed from X to Y" message.
var statusMessages = map[string]string{
	"contacted":   "Our team has reached out to %s to qualify the opportunity.",
	"qualified":   "%s has been qualified and entered the sales pipeline.",
	"proposal":    "A proposal has been sent to %s.",
	"negotiation": "Contract negotiation with %s is underway.",
	"closed_won":  "Congratulations! The deal with %s has closed. Your commission is on its way.",
	"closed_lost": "Unfortunately the deal with %s did not close this time.",
}

var stageMessages = map[string]string{
	"discovery":     "The deal for %s moved into discovery.",
	"demo":          "A product demo has been scheduled for %s.",
	"proposal":      "The deal for %s is at the proposal stage.",
	"contract_sent": "A contract has been sent to %s.",
	"won":           "The deal for %s was won. Commission processing has started.",
	"lost":          "The deal for %s was marked as lost.",
}

func (s *NotificationService) DispatchNew(ctx context.Context, userID uint64, draft dto.NotificationDraft) (*entities.Notification, error) {
	notification, err := s.repo.CreateNotification(ctx, userID, draft)
	if err != nil {
		s.logger.Error("failed to persist notification",
			zap.Uint64("userID", userID),
			zap.String("type", draft.Type),
			zap.Error(err),
		)
		return nil, err
	}

	s.BroadcastExisting(userID, notification)
	return notification, nil
}

func (s *NotificationService) BroadcastExisting(userID uint64, notification *entities.Notification) {
	if err := s.pusher.SendToUser(userID, websocket.Frame{
		Type: websocket.FrameNotification,
		Data: notification,
	}); err != nil {
		s.logger.Error("failed to push notification",
			zap.Uint64("userID", userID),
			zap.Uint64("notificationID", notification.ID),
			zap.Error(err),
		)
	}
}

// DispatchToMany fans a draft out to every recipient concurrently.
// Every recipient is attempted; the combined error reports the ones
// that failed.
func (s *NotificationService) DispatchToMany(ctx context.Context, userIDs []uint64, draft dto.NotificationDraft) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(userIDs))

	for _, id := range userIDs {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			if _, err := s.DispatchNew(ctx, userID, draft); err != nil {
				errCh <- fmt.Errorf("dispatch to user %d: %w", userID, err)
			}
		}(id)
	}

	wg.Wait()
	close(errCh)

	var combined error
	for err := range errCh {
		combined = multierr.Append(combined, err)
	}
	return combined
}

func (s *NotificationService) DispatchToAll(ctx context.Context, draft dto.NotificationDraft) error {
	return s.DispatchToMany(ctx, s.pusher.UserIDs(), draft)
}

func (s *NotificationService) NotifyStatusChange(ctx context.Context, userID, referralID uint64, businessName, oldStatus, newStatus string) (*entities.Notification, error) {
	message, ok := statusMessages[newStatus]
	if ok {
		message = fmt.Sprintf(message, businessName)
	} else {
		message = fmt.Sprintf("Status for %s changed from %s to %s.", businessName, oldStatus, newStatus)
	}

	return s.DispatchNew(ctx, userID, dto.NotificationDraft{
		Type:         "status_update",
		Title:        "Referral status updated",
		Message:      message,
		ReferralID:   null.Uint64From(referralID),
		BusinessName: null.StringFrom(businessName),
		Metadata: map[string]interface{}{
			"oldStatus": oldStatus,
			"newStatus": newStatus,
		},
	})
}

func (s *NotificationService) NotifyStageChange(ctx context.Context, userID, referralID uint64, businessName, oldStage, newStage string) (*entities.Notification, error) {
	message, ok := stageMessages[newStage]
	if ok {
		message = fmt.Sprintf(message, businessName)
	} else {
		message = fmt.Sprintf("Deal stage for %s changed from %s to %s.", businessName, oldStage, newStage)
	}

	return s.DispatchNew(ctx, userID, dto.NotificationDraft{
		Type:         "deal_stage_update",
		Title:        "Deal stage updated",
		Message:      message,
		ReferralID:   null.Uint64From(referralID),
		BusinessName: null.StringFrom(businessName),
		Metadata: map[string]interface{}{
			"oldStage": oldStage,
			"newStage": newStage,
		},
	})
}

func (s *NotificationService) GetNotifications(ctx context.Context, userID uint64, filter types.Filter) ([]entities.Notification, uint64, error) {
	return s.repo.GetNotifications(ctx, userID, filter)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uint64) (uint64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkAsRead is the REST counterpart of the markAsRead frame: it flips
// the record and tells the user's other open tabs about it.
func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID, userID uint64) error {
	if err := s.repo.MarkNotificationAsRead(ctx, notificationID, userID); err != nil {
		s.logger.Error("failed to mark notification as read",
			zap.Uint64("userID", userID),
			zap.Uint64("notificationID", notificationID),
			zap.Error(err),
		)
		return err
	}

	return s.pusher.SendToUser(userID, websocket.Frame{
		Type: websocket.FrameNotificationRead,
		Data: map[string]uint64{"notificationId": notificationID},
	})
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint64) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *NotificationService) IsOnline(userID uint64) bool {
	return s.pusher.IsOnline(userID)
}

func (s *NotificationService) ConnectedUserCount() int {
	return s.pusher.ConnectedUserCount()
}
