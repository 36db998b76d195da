package models

import "time"

// Outbox dispatch states.
const (
	EmailStatusPending = "pending"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed" // gave up after max attempts
)

// Notification kinds, one per domain event.
const (
	EmailKindClaimSubmittedAdmin  = "claim_submitted_admin"
	EmailKindClaimSubmittedPlayer = "claim_submitted_player"
	EmailKindWitnessConfirm       = "witness_confirm"
	EmailKindClaimVerified        = "claim_verified"
	EmailKindClaimRejected        = "claim_rejected"
)

// OutboundEmail is an outbox row for the external mail dispatcher.
// Domain transitions enqueue rows and commit; the email worker delivers
// them at-least-once. A delivery failure never touches domain state.
type OutboundEmail struct {
	ID        string `json:"id" gorm:"primaryKey"`
	Kind      string `json:"kind" gorm:"type:varchar(32);not null;index"`
	Recipient string `json:"recipient" gorm:"not null"`
	Subject   string `json:"subject" gorm:"not null"`
	Body      string `json:"body" gorm:"type:text"`

	// Optional link back to the claim that produced this message
	VerificationID string `json:"verification_id,omitempty" gorm:"index"`

	Status    string     `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	Attempts  int        `json:"attempts" gorm:"default:0"`
	LastError string     `json:"last_error,omitempty" gorm:"type:text"`
	SentAt    *time.Time `json:"sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
