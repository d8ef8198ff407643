package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"referral-system/internal/dto"
	"referral-system/internal/entities"
	apperrors "referral-system/pkg/errors"
	"referral-system/pkg/types"
)

const notificationTable = "notifications"
const notificationSelectFields = "id, user_id, type, title, message, referral_id, lead_id, contact_id, opportunity_id, business_name, metadata, read, created_at"

type NotificationRepositoryInterface interface {
	CreateNotification(ctx context.Context, userID uint64, draft dto.NotificationDraft) (*entities.Notification, error)
	MarkNotificationAsRead(ctx context.Context, notificationID, userID uint64) error
	MarkAllAsRead(ctx context.Context, userID uint64) error
	GetNotifications(ctx context.Context, userID uint64, filter types.Filter) ([]entities.Notification, uint64, error)
	CountUnread(ctx context.Context, userID uint64) (uint64, error)
	GetForExport(ctx context.Context, userID uint64, from, to *time.Time) ([]entities.Notification, error)
}

type NotificationRepository struct {
	storage querier
	logger  *zap.Logger
}

func NewNotificationRepository(storage *pgxpool.Pool, logger *zap.Logger) NotificationRepositoryInterface {
	return &NotificationRepository{storage: storage, logger: logger}
}

func scanNotification(row pgx.Row) (*entities.Notification, error) {
	var n entities.Notification
	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
		&n.ReferralID, &n.LeadID, &n.ContactID, &n.OpportunityID,
		&n.BusinessName, &n.Metadata, &n.Read, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}
	return &n, nil
}

// CreateNotification inserts a draft and returns the stored record with
// the assigned id. The row is always created unread; created_at falls
// back to now() when the draft does not carry one.
func (r *NotificationRepository) CreateNotification(ctx context.Context, userID uint64, draft dto.NotificationDraft) (*entities.Notification, error) {
	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var metadata interface{}
	if len(draft.Metadata) > 0 {
		raw, err := json.Marshal(draft.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notification metadata: %w", err)
		}
		metadata = raw
	}

	query, args, err := sq.Insert(notificationTable).
		Columns("user_id", "type", "title", "message", "referral_id", "lead_id",
			"contact_id", "opportunity_id", "business_name", "metadata", "read", "created_at").
		Values(userID, draft.Type, draft.Title, draft.Message, draft.ReferralID,
			draft.LeadID, draft.ContactID, draft.OpportunityID, draft.BusinessName,
			metadata, false, createdAt).
		Suffix("RETURNING " + notificationSelectFields).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	return scanNotification(r.storage.QueryRow(ctx, query, args...))
}

// MarkNotificationAsRead is scoped to the owning user and is idempotent:
// re-marking an already read (or missing) notification is not an error.
func (r *NotificationRepository) MarkNotificationAsRead(ctx context.Context, notificationID, userID uint64) error {
	query, args, err := sq.Update(notificationTable).
		Set("read", true).
		Where(sq.Eq{"id": notificationID, "user_id": userID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.storage.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uint64) error {
	query, args, err := sq.Update(notificationTable).
		Set("read", true).
		Where(sq.Eq{"user_id": userID, "read": false}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.storage.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetNotifications(ctx context.Context, userID uint64, filter types.Filter) ([]entities.Notification, uint64, error) {
	where := sq.And{sq.Eq{"user_id": userID}}
	if filter.OnlyUnread {
		where = append(where, sq.Eq{"read": false})
	}
	if filter.Type != "" {
		where = append(where, sq.Eq{"type": filter.Type})
	}

	countQuery, countArgs, err := sq.Select("COUNT(id)").
		From(notificationTable).
		Where(where).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, 0, err
	}

	var totalCount uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	if totalCount == 0 {
		return []entities.Notification{}, 0, nil
	}

	builder := sq.Select(notificationSelectFields).
		From(notificationTable).
		Where(where).
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)
	if filter.WithPagination {
		builder = builder.Limit(filter.Limit).Offset(filter.Offset)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]entities.Notification, 0, filter.Limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return notifications, totalCount, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uint64) (uint64, error) {
	query, args, err := sq.Select("COUNT(id)").
		From(notificationTable).
		Where(sq.Eq{"user_id": userID, "read": false}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	var count uint64
	if err := r.storage.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *NotificationRepository) GetForExport(ctx context.Context, userID uint64, from, to *time.Time) ([]entities.Notification, error) {
	where := sq.And{sq.Eq{"user_id": userID}}
	if from != nil {
		where = append(where, sq.GtOrEq{"created_at": *from})
	}
	if to != nil {
		where = append(where, sq.LtOrEq{"created_at": *to})
	}

	query, args, err := sq.Select(notificationSelectFields).
		From(notificationTable).
		Where(where).
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications for export: %w", err)
	}
	defer rows.Close()

	var notifications []entities.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}
