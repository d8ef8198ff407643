package dto

import (
	"time"

	"github.com/aarondl/null/v8"

	"referral-system/internal/entities"
	"referral-system/pkg/types"
)

// NotificationDraft is a notification that has not been persisted yet.
// It is a distinct type from entities.Notification on purpose: the
// dispatcher persists drafts and only broadcasts stored records, so a
// caller cannot double-insert by passing the wrong one.
type NotificationDraft struct {
	Type          string                 `json:"type" validate:"required"`
	Title         string                 `json:"title" validate:"required"`
	Message       string                 `json:"message" validate:"required"`
	ReferralID    null.Uint64            `json:"referralId,omitempty"`
	LeadID        null.Uint64            `json:"leadId,omitempty"`
	ContactID     null.Uint64            `json:"contactId,omitempty"`
	OpportunityID null.Uint64            `json:"opportunityId,omitempty"`
	BusinessName  null.String            `json:"businessName,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"createdAt,omitempty"`
}

type BroadcastNotificationDTO struct {
	UserIDs []uint64          `json:"userIds"`
	All     bool              `json:"all"`
	Draft   NotificationDraft `json:"notification" validate:"required"`
}

type NotificationListResponse struct {
	Notifications []entities.Notification `json:"notifications"`
	Pagination    types.Pagination        `json:"pagination"`
}

type UnreadCountResponse struct {
	Count uint64 `json:"count"`
}
