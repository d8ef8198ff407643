package entities

import (
	"time"

	"github.com/aarondl/null/v8"
)

// Notification is the persisted record pushed to partners over the
// realtime gateway. The correlation fields deep-link the client UI to
// the referral, lead, contact or opportunity the event is about.
type Notification struct {
	ID            uint64      `json:"id"`
	UserID        uint64      `json:"userId"`
	Type          string      `json:"type"`
	Title         string      `json:"title"`
	Message       string      `json:"message"`
	ReferralID    null.Uint64 `json:"referralId,omitempty"`
	LeadID        null.Uint64 `json:"leadId,omitempty"`
	ContactID     null.Uint64 `json:"contactId,omitempty"`
	OpportunityID null.Uint64 `json:"opportunityId,omitempty"`
	BusinessName  null.String `json:"businessName,omitempty"`
	Metadata      null.JSON   `json:"metadata,omitempty"`
	Read          bool        `json:"read"`
	CreatedAt     time.Time   `json:"createdAt"`
}
