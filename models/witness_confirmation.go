package models

import "time"

// WitnessConfirmation is a single-use confirmation link granted to a named
// witness. A resend issues a new row; earlier unexpired tokens stay valid
// until they age out on their own.
type WitnessConfirmation struct {
	ID             string `json:"id" gorm:"primaryKey"`
	VerificationID string `json:"verification_id" gorm:"not null;index"`

	// Opaque random token embedded in the confirmation URL
	Token string `json:"-" gorm:"uniqueIndex;not null"`

	WitnessName  string `json:"witness_name"`
	WitnessEmail string `json:"witness_email"`

	ExpiresAt   time.Time  `json:"expires_at" gorm:"not null"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"` // set at most once, on first redemption

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
