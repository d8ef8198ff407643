package listeners

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"referral-system/internal/dto"
	"referral-system/internal/entities"
	"referral-system/internal/events"
	"referral-system/pkg/eventbus"
	"referral-system/pkg/types"
)

type notifyCall struct {
	userID       uint64
	referralID   uint64
	businessName string
	oldValue     string
	newValue     string
}

// spyNotificationService records dispatch calls made by the listener.
type spyNotificationService struct {
	mu      sync.Mutex
	status  []notifyCall
	stage   []notifyCall
}

func (s *spyNotificationService) NotifyStatusChange(_ context.Context, userID, referralID uint64, businessName, oldStatus, newStatus string) (*entities.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = append(s.status, notifyCall{userID, referralID, businessName, oldStatus, newStatus})
	return &entities.Notification{ID: 1}, nil
}

func (s *spyNotificationService) NotifyStageChange(_ context.Context, userID, referralID uint64, businessName, oldStage, newStage string) (*entities.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = append(s.stage, notifyCall{userID, referralID, businessName, oldStage, newStage})
	return &entities.Notification{ID: 1}, nil
}

func (s *spyNotificationService) DispatchNew(_ context.Context, _ uint64, _ dto.NotificationDraft) (*entities.Notification, error) {
	return nil, nil
}

func (s *spyNotificationService) BroadcastExisting(_ uint64, _ *entities.Notification) {}

func (s *spyNotificationService) DispatchToMany(_ context.Context, _ []uint64, _ dto.NotificationDraft) error {
	return nil
}

func (s *spyNotificationService) DispatchToAll(_ context.Context, _ dto.NotificationDraft) error {
	return nil
}

func (s *spyNotificationService) GetNotifications(_ context.Context, _ uint64, _ types.Filter) ([]entities.Notification, uint64, error) {
	return nil, 0, nil
}

func (s *spyNotificationService) CountUnread(_ context.Context, _ uint64) (uint64, error) {
	return 0, nil
}

func (s *spyNotificationService) MarkAsRead(_ context.Context, _, _ uint64) error    { return nil }
func (s *spyNotificationService) MarkAllAsRead(_ context.Context, _ uint64) error    { return nil }
func (s *spyNotificationService) IsOnline(_ uint64) bool                             { return false }
func (s *spyNotificationService) ConnectedUserCount() int                            { return 0 }

func TestListenerHandlesReferralStatusChanged(t *testing.T) {
	spy := &spyNotificationService{}
	bus := eventbus.New(zap.NewNop())
	NewNotificationListener(spy, zap.NewNop()).Register(bus)

	bus.Publish(context.Background(), events.ReferralStatusChangedEvent{
		EventID:      uuid.New(),
		PartnerID:    7,
		ReferralID:   31,
		BusinessName: "Acme Corp",
		OldStatus:    "proposal",
		NewStatus:    "closed_won",
	})

	require.Eventually(t, func() bool {
		spy.mu.Lock()
		defer spy.mu.Unlock()
		return len(spy.status) == 1
	}, time.Second, 10*time.Millisecond)

	spy.mu.Lock()
	defer spy.mu.Unlock()
	assert.Equal(t, notifyCall{7, 31, "Acme Corp", "proposal", "closed_won"}, spy.status[0])
	assert.Empty(t, spy.stage)
}

func TestListenerHandlesDealStageChanged(t *testing.T) {
	spy := &spyNotificationService{}
	bus := eventbus.New(zap.NewNop())
	NewNotificationListener(spy, zap.NewNop()).Register(bus)

	bus.Publish(context.Background(), events.DealStageChangedEvent{
		EventID:      uuid.New(),
		PartnerID:    7,
		ReferralID:   31,
		BusinessName: "Acme Corp",
		OldStage:     "demo",
		NewStage:     "won",
	})

	require.Eventually(t, func() bool {
		spy.mu.Lock()
		defer spy.mu.Unlock()
		return len(spy.stage) == 1
	}, time.Second, 10*time.Millisecond)

	spy.mu.Lock()
	defer spy.mu.Unlock()
	assert.Equal(t, notifyCall{7, 31, "Acme Corp", "demo", "won"}, spy.stage[0])
}
