package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"referral-system/internal/dto"
	"referral-system/internal/entities"
	"referral-system/pkg/types"
)

const unreadCountTTL = 5 * time.Minute

// CachedNotificationRepository decorates the notification repository
// with a per-user unread-count cache. Every write path invalidates the
// counter so the badge in the client UI never lags behind.
type CachedNotificationRepository struct {
	inner  NotificationRepositoryInterface
	cache  CacheRepositoryInterface
	logger *zap.Logger
}

func NewCachedNotificationRepository(inner NotificationRepositoryInterface, cache CacheRepositoryInterface, logger *zap.Logger) NotificationRepositoryInterface {
	return &CachedNotificationRepository{inner: inner, cache: cache, logger: logger}
}

func unreadCountKey(userID uint64) string {
	return fmt.Sprintf("notifications:unread:%d", userID)
}

func (r *CachedNotificationRepository) invalidate(ctx context.Context, userID uint64) {
	if err := r.cache.Del(ctx, unreadCountKey(userID)); err != nil {
		r.logger.Warn("failed to invalidate unread-count cache",
			zap.Uint64("userID", userID),
			zap.Error(err),
		)
	}
}

func (r *CachedNotificationRepository) CreateNotification(ctx context.Context, userID uint64, draft dto.NotificationDraft) (*entities.Notification, error) {
	n, err := r.inner.CreateNotification(ctx, userID, draft)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, userID)
	return n, nil
}

func (r *CachedNotificationRepository) MarkNotificationAsRead(ctx context.Context, notificationID, userID uint64) error {
	if err := r.inner.MarkNotificationAsRead(ctx, notificationID, userID); err != nil {
		return err
	}
	r.invalidate(ctx, userID)
	return nil
}

func (r *CachedNotificationRepository) MarkAllAsRead(ctx context.Context, userID uint64) error {
	if err := r.inner.MarkAllAsRead(ctx, userID); err != nil {
		return err
	}
	r.invalidate(ctx, userID)
	return nil
}

func (r *CachedNotificationRepository) CountUnread(ctx context.Context, userID uint64) (uint64, error) {
	key := unreadCountKey(userID)

	if cached, err := r.cache.Get(ctx, key); err == nil {
		if count, err := strconv.ParseUint(cached, 10, 64); err == nil {
			return count, nil
		}
	}

	count, err := r.inner.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err := r.cache.Set(ctx, key, count, unreadCountTTL); err != nil {
		r.logger.Warn("failed to cache unread count",
			zap.Uint64("userID", userID),
			zap.Error(err),
		)
	}
	return count, nil
}

func (r *CachedNotificationRepository) GetNotifications(ctx context.Context, userID uint64, filter types.Filter) ([]entities.Notification, uint64, error) {
	return r.inner.GetNotifications(ctx, userID, filter)
}

func (r *CachedNotificationRepository) GetForExport(ctx context.Context, userID uint64, from, to *time.Time) ([]entities.Notification, error) {
	return r.inner.GetForExport(ctx, userID, from, to)
}
