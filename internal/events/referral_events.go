package events

import "github.com/google/uuid"

// ReferralStatusChangedEvent is published by the CRM layer whenever a
// submitted referral moves through the qualification pipeline.
type ReferralStatusChangedEvent struct {
	EventID      uuid.UUID
	PartnerID    uint64
	ReferralID   uint64
	BusinessName string
	OldStatus    string
	NewStatus    string
}

func (e ReferralStatusChangedEvent) Name() string {
	return "referral.status.changed"
}

// DealStageChangedEvent is published when an opportunity created from a
// referral moves to another stage of the sales pipeline.
type DealStageChangedEvent struct {
	EventID      uuid.UUID
	PartnerID    uint64
	ReferralID   uint64
	BusinessName string
	OldStage     string
	NewStage     string
}

func (e DealStageChangedEvent) Name() string {
	return "deal.stage.changed"
}
