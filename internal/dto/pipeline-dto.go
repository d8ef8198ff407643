package dto

type ReferralStatusChangeDTO struct {
	PartnerID    uint64 `json:"partnerId" validate:"required"`
	ReferralID   uint64 `json:"referralId" validate:"required"`
	BusinessName string `json:"businessName" validate:"required"`
	OldStatus    string `json:"oldStatus"`
	NewStatus    string `json:"newStatus" validate:"required"`
}

type DealStageChangeDTO struct {
	PartnerID    uint64 `json:"partnerId" validate:"required"`
	ReferralID   uint64 `json:"referralId" validate:"required"`
	BusinessName string `json:"businessName" validate:"required"`
	OldStage     string `json:"oldStage"`
	NewStage     string `json:"newStage" validate:"required"`
}
