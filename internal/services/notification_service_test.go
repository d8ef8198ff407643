package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"referral-system/internal/dto"
	"referral-system/internal/entities"
	"referral-system/pkg/types"
	"referral-system/pkg/websocket"
)

// fakeNotificationRepo is an in-memory stand-in for the postgres
// repository. Per-user errors let tests simulate partial storage
// failures during fan-out.
type fakeNotificationRepo struct {
	mu      sync.Mutex
	nextID  uint64
	stored  []entities.Notification
	read    []uint64
	failFor map[uint64]error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{failFor: make(map[uint64]error)}
}

func (r *fakeNotificationRepo) CreateNotification(_ context.Context, userID uint64, draft dto.NotificationDraft) (*entities.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.failFor[userID]; err != nil {
		return nil, err
	}

	r.nextID++
	n := entities.Notification{
		ID:           r.nextID,
		UserID:       userID,
		Type:         draft.Type,
		Title:        draft.Title,
		Message:      draft.Message,
		ReferralID:   draft.ReferralID,
		BusinessName: draft.BusinessName,
		Read:         false,
		CreatedAt:    time.Now().UTC(),
	}
	r.stored = append(r.stored, n)
	return &n, nil
}

func (r *fakeNotificationRepo) MarkNotificationAsRead(_ context.Context, notificationID, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failFor[userID]; err != nil {
		return err
	}
	r.read = append(r.read, notificationID)
	return nil
}

func (r *fakeNotificationRepo) MarkAllAsRead(_ context.Context, _ uint64) error { return nil }

func (r *fakeNotificationRepo) GetNotifications(_ context.Context, _ uint64, _ types.Filter) ([]entities.Notification, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entities.Notification(nil), r.stored...), uint64(len(r.stored)), nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, _ uint64) (uint64, error) {
	return 0, nil
}

func (r *fakeNotificationRepo) GetForExport(_ context.Context, _ uint64, _, _ *time.Time) ([]entities.Notification, error) {
	return nil, nil
}

func (r *fakeNotificationRepo) createCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stored)
}

func (r *fakeNotificationRepo) storedFor(userID uint64) []entities.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []entities.Notification
	for _, n := range r.stored {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type pushedFrame struct {
	userID uint64
	frame  websocket.Frame
}

type fakePusher struct {
	mu      sync.Mutex
	pushed  []pushedFrame
	userIDs []uint64
}

func (p *fakePusher) SendToUser(userID uint64, frame websocket.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, pushedFrame{userID: userID, frame: frame})
	return nil
}

func (p *fakePusher) UserIDs() []uint64 { return p.userIDs }

func (p *fakePusher) IsOnline(userID uint64) bool {
	for _, id := range p.userIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (p *fakePusher) ConnectedUserCount() int { return len(p.userIDs) }

func (p *fakePusher) frames() []pushedFrame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushedFrame(nil), p.pushed...)
}

func newTestService() (NotificationServiceInterface, *fakeNotificationRepo, *fakePusher) {
	repo := newFakeNotificationRepo()
	pusher := &fakePusher{}
	return NewNotificationService(repo, pusher, zap.NewNop()), repo, pusher
}

func TestDispatchNewPersistsThenPushes(t *testing.T) {
	svc, repo, pusher := newTestService()

	notification, err := svc.DispatchNew(context.Background(), 7, dto.NotificationDraft{
		Type:    "status_update",
		Title:   "Referral status updated",
		Message: "Acme moved forward",
	})
	require.NoError(t, err)

	require.NotNil(t, notification)
	assert.NotZero(t, notification.ID)
	assert.Equal(t, uint64(7), notification.UserID)
	assert.False(t, notification.Read, "new notifications start unread")

	require.Equal(t, 1, repo.createCount())

	frames := pusher.frames()
	require.Len(t, frames, 1)
	assert.Equal(t, uint64(7), frames[0].userID)
	assert.Equal(t, websocket.FrameNotification, frames[0].frame.Type)
	assert.Same(t, notification, frames[0].frame.Data, "the stored record itself is pushed")
}

func TestDispatchNewStorageFailure(t *testing.T) {
	svc, repo, pusher := newTestService()
	repo.failFor[7] = assert.AnError

	notification, err := svc.DispatchNew(context.Background(), 7, dto.NotificationDraft{
		Type:    "status_update",
		Title:   "t",
		Message: "m",
	})
	require.Error(t, err)
	assert.Nil(t, notification)

	// nothing leaves the process when persistence failed
	assert.Empty(t, pusher.frames())
}

func TestBroadcastExistingNeverPersists(t *testing.T) {
	svc, repo, pusher := newTestService()

	stored := &entities.Notification{ID: 12, UserID: 7, Type: "status_update", Title: "t", Message: "m"}
	svc.BroadcastExisting(7, stored)
	svc.BroadcastExisting(7, stored)

	assert.Equal(t, 0, repo.createCount())
	assert.Len(t, pusher.frames(), 2)
}

func TestDispatchToMany(t *testing.T) {
	svc, repo, pusher := newTestService()

	err := svc.DispatchToMany(context.Background(), []uint64{1, 2, 3}, dto.NotificationDraft{
		Type:    "announcement",
		Title:   "t",
		Message: "m",
	})
	require.NoError(t, err)

	// one stored record per recipient, never a shared one
	assert.Equal(t, 3, repo.createCount())
	assert.Len(t, pusher.frames(), 3)
	for _, userID := range []uint64{1, 2, 3} {
		assert.Len(t, repo.storedFor(userID), 1)
	}
}

func TestDispatchToManyPartialFailure(t *testing.T) {
	svc, repo, pusher := newTestService()
	repo.failFor[2] = assert.AnError

	err := svc.DispatchToMany(context.Background(), []uint64{1, 2, 3}, dto.NotificationDraft{
		Type:    "announcement",
		Title:   "t",
		Message: "m",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch to user 2")

	// the healthy recipients were still served
	assert.Len(t, repo.storedFor(1), 1)
	assert.Empty(t, repo.storedFor(2))
	assert.Len(t, repo.storedFor(3), 1)
	assert.Len(t, pusher.frames(), 2)
}

func TestDispatchToAll(t *testing.T) {
	svc, repo, pusher := newTestService()
	pusher.userIDs = []uint64{4, 5}

	err := svc.DispatchToAll(context.Background(), dto.NotificationDraft{
		Type:    "announcement",
		Title:   "t",
		Message: "m",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.createCount())
}

func TestNotifyStatusChangeKnownStatus(t *testing.T) {
	svc, _, _ := newTestService()

	notification, err := svc.NotifyStatusChange(context.Background(), 7, 31, "Acme Corp", "negotiation", "closed_won")
	require.NoError(t, err)

	assert.Equal(t, "status_update", notification.Type)
	assert.Contains(t, notification.Message, "Congratulations")
	assert.Contains(t, notification.Message, "Acme Corp")
	require.True(t, notification.ReferralID.Valid)
	assert.Equal(t, uint64(31), notification.ReferralID.Uint64)
	assert.Equal(t, "Acme Corp", notification.BusinessName.String)
}

func TestNotifyStatusChangeUnknownStatusFallsBack(t *testing.T) {
	svc, _, _ := newTestService()

	notification, err := svc.NotifyStatusChange(context.Background(), 7, 31, "Acme Corp", "qualified", "on_hold")
	require.NoError(t, err)
	assert.Equal(t, "Status for Acme Corp changed from qualified to on_hold.", notification.Message)
}

func TestNotifyStageChange(t *testing.T) {
	svc, _, _ := newTestService()

	notification, err := svc.NotifyStageChange(context.Background(), 7, 31, "Acme Corp", "demo", "contract_sent")
	require.NoError(t, err)

	assert.Equal(t, "deal_stage_update", notification.Type)
	assert.Contains(t, notification.Message, "contract has been sent")

	fallback, err := svc.NotifyStageChange(context.Background(), 7, 31, "Acme Corp", "demo", "paused")
	require.NoError(t, err)
	assert.Equal(t, "Deal stage for Acme Corp changed from demo to paused.", fallback.Message)
}

func TestMarkAsReadAnnouncesTransition(t *testing.T) {
	svc, repo, pusher := newTestService()

	require.NoError(t, svc.MarkAsRead(context.Background(), 42, 7))

	repo.mu.Lock()
	read := append([]uint64(nil), repo.read...)
	repo.mu.Unlock()
	assert.Equal(t, []uint64{42}, read)

	frames := pusher.frames()
	require.Len(t, frames, 1)
	assert.Equal(t, websocket.FrameNotificationRead, frames[0].frame.Type)
}

func TestMarkAsReadTwice(t *testing.T) {
	svc, repo, pusher := newTestService()

	require.NoError(t, svc.MarkAsRead(context.Background(), 42, 7))
	require.NoError(t, svc.MarkAsRead(context.Background(), 42, 7))

	repo.mu.Lock()
	read := append([]uint64(nil), repo.read...)
	repo.mu.Unlock()
	assert.Equal(t, []uint64{42, 42}, read)
	assert.Len(t, pusher.frames(), 2)
}

func TestMarkAsReadStorageFailure(t *testing.T) {
	svc, repo, pusher := newTestService()
	repo.failFor[7] = assert.AnError

	require.Error(t, svc.MarkAsRead(context.Background(), 42, 7))
	assert.Empty(t, pusher.frames())
}
