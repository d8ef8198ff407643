package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"referral-system/internal/dto"
	"referral-system/internal/entities"
	"referral-system/internal/repositories"
	"referral-system/internal/services"
	"referral-system/pkg/config"
	apperrors "referral-system/pkg/errors"
	"referral-system/pkg/types"
	appwebsocket "referral-system/pkg/websocket"
)

type fakeUserRepo struct {
	users map[uint64]*entities.User
	err   error
}

func (r *fakeUserRepo) FindUser(_ context.Context, id uint64) (*entities.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	user, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) FindUserByEmail(_ context.Context, _ string) (*entities.User, error) {
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepo) CreateUser(_ context.Context, _ *entities.User) (uint64, error) {
	return 0, nil
}

// memoryNotificationRepo backs the end-to-end test without postgres. It
// also satisfies the hub's gateway contract.
type memoryNotificationRepo struct {
	mu     sync.Mutex
	nextID uint64
	stored []entities.Notification
	read   []uint64
}

func (r *memoryNotificationRepo) CreateNotification(_ context.Context, userID uint64, draft dto.NotificationDraft) (*entities.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	n := entities.Notification{
		ID:        r.nextID,
		UserID:    userID,
		Type:      draft.Type,
		Title:     draft.Title,
		Message:   draft.Message,
		CreatedAt: time.Now().UTC(),
	}
	r.stored = append(r.stored, n)
	return &n, nil
}

func (r *memoryNotificationRepo) MarkNotificationAsRead(_ context.Context, notificationID, _ uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.read = append(r.read, notificationID)
	return nil
}

func (r *memoryNotificationRepo) MarkAllAsRead(_ context.Context, _ uint64) error { return nil }

func (r *memoryNotificationRepo) GetNotifications(_ context.Context, _ uint64, _ types.Filter) ([]entities.Notification, uint64, error) {
	return nil, 0, nil
}

func (r *memoryNotificationRepo) CountUnread(_ context.Context, _ uint64) (uint64, error) {
	return 0, nil
}

func (r *memoryNotificationRepo) GetForExport(_ context.Context, _ uint64, _, _ *time.Time) ([]entities.Notification, error) {
	return nil, nil
}

var _ repositories.NotificationRepositoryInterface = (*memoryNotificationRepo)(nil)

func newWsFixture(users ...uint64) (*appwebsocket.Hub, *memoryNotificationRepo, *WebSocketController) {
	repo := &memoryNotificationRepo{}
	hub := appwebsocket.NewHub(repo, config.WebSocketConfig{HeartbeatInterval: time.Hour}, zap.NewNop())

	userRepo := &fakeUserRepo{users: make(map[uint64]*entities.User)}
	for _, id := range users {
		userRepo.users[id] = &entities.User{ID: id, Email: "partner@example.com", Role: "partner"}
	}

	return hub, repo, NewWebSocketController(hub, userRepo, zap.NewNop())
}

func wsRequest(ctrl *WebSocketController, target string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	_ = ctrl.ServeWs(e.NewContext(req, rec))
	return rec
}

func TestServeWsMissingUserID(t *testing.T) {
	hub, _, ctrl := newWsFixture(1)

	rec := wsRequest(ctrl, "/ws")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, hub.ConnectedUserCount(), "a refused handshake leaves no registry entry")
}

func TestServeWsMalformedUserID(t *testing.T) {
	hub, _, ctrl := newWsFixture(1)

	rec := wsRequest(ctrl, "/ws?userId=abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, hub.ConnectedUserCount())
}

func TestServeWsUnknownUser(t *testing.T) {
	hub, _, ctrl := newWsFixture(1)

	rec := wsRequest(ctrl, "/ws?userId=999")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unknown user", rec.Body.String())
	assert.Equal(t, 0, hub.ConnectedUserCount())
}

func TestServeWsStorageFailure(t *testing.T) {
	hub, _, ctrl := newWsFixture()
	ctrl.userRepo.(*fakeUserRepo).err = assert.AnError

	rec := wsRequest(ctrl, "/ws?userId=1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, hub.ConnectedUserCount())
}

func TestServeWsAfterShutdown(t *testing.T) {
	hub, _, ctrl := newWsFixture(1)
	hub.Shutdown()

	rec := wsRequest(ctrl, "/ws?userId=1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// TestServeWsEndToEnd drives the full path: two browser tabs of the
// same partner connect, a dispatch reaches both, and a mark-as-read
// from one tab is announced to the other.
func TestServeWsEndToEnd(t *testing.T) {
	hub, repo, ctrl := newWsFixture(7)

	e := echo.New()
	e.GET("/ws", ctrl.ServeWs)
	srv := httptest.NewServer(e)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=7"

	firstTab, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer firstTab.Close()

	secondTab, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer secondTab.Close()

	readWire := func(conn *gorillaws.Conn) (string, json.RawMessage) {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &frame))
		return frame.Type, frame.Data
	}

	for _, conn := range []*gorillaws.Conn{firstTab, secondTab} {
		frameType, _ := readWire(conn)
		require.Equal(t, "connection", frameType)
	}
	assert.True(t, hub.IsOnline(7))
	assert.Equal(t, 1, hub.ConnectedUserCount(), "two tabs, one user")

	// a status change dispatch lands in storage once and on both tabs
	svc := services.NewNotificationService(repo, hub, zap.NewNop())
	notification, err := svc.NotifyStatusChange(context.Background(), 7, 31, "Acme Corp", "proposal", "closed_won")
	require.NoError(t, err)

	for _, conn := range []*gorillaws.Conn{firstTab, secondTab} {
		frameType, data := readWire(conn)
		require.Equal(t, "notification", frameType)

		var got entities.Notification
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, notification.ID, got.ID)
		assert.Contains(t, got.Message, "Congratulations")
		assert.False(t, got.Read)
	}
	repo.mu.Lock()
	storedCount := len(repo.stored)
	repo.mu.Unlock()
	assert.Equal(t, 1, storedCount, "fan-out to tabs must not duplicate the record")

	// the first tab marks it read; the second tab hears about it
	require.NoError(t, firstTab.WriteMessage(gorillaws.TextMessage,
		[]byte(`{"type":"markAsRead","data":{"notificationId":1}}`)))

	frameType, data := readWire(secondTab)
	require.Equal(t, "notificationRead", frameType)
	assert.JSONEq(t, `{"notificationId":1}`, string(data))

	repo.mu.Lock()
	read := append([]uint64(nil), repo.read...)
	repo.mu.Unlock()
	assert.Equal(t, []uint64{1}, read)

	// closing one tab keeps the user online, closing both removes it
	require.NoError(t, firstTab.Close())
	require.Eventually(t, func() bool { return hub.IsOnline(7) }, time.Second, 10*time.Millisecond)

	require.NoError(t, secondTab.Close())
	require.Eventually(t, func() bool { return !hub.IsOnline(7) }, time.Second, 10*time.Millisecond)
}
