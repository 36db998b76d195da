package models

import (
	"time"
)

// Entry lifecycle stages.
const (
	EntryStatusPending             = "pending"              // attempt not yet reported
	EntryStatusPendingVerification = "pending_verification" // win reported, one open verification exists
	EntryStatusCompleted           = "completed"            // terminal: outcome settled
	EntryStatusExpired             = "expired"              // terminal: attempt window lapsed / auto-missed
)

// Self-reported outcomes.
const (
	OutcomeWin      = "win"
	OutcomeMiss     = "miss"
	OutcomeAutoMiss = "auto_miss" // stamped by the deadline sweep, not by the player
)

// Entry is one player's attempt in one competition.
// Entries are never deleted; every outcome transition is recorded in place.
type Entry struct {
	ID            string `json:"id" gorm:"primaryKey"`
	CompetitionID string `json:"competition_id" gorm:"not null;index"`
	PlayerID      string `json:"player_id" gorm:"not null;index"` // external user id from the gateway

	// Denormalized from profile context at entry time
	PlayerName  string `json:"player_name"`
	PlayerEmail string `json:"player_email"`

	// A shot is only legal inside this window
	AttemptStart time.Time `json:"attempt_start" gorm:"not null"`
	AttemptEnd   time.Time `json:"attempt_end" gorm:"not null"`

	OutcomeSelf       *string    `json:"outcome_self,omitempty" gorm:"type:varchar(16)"` // win | miss | auto_miss
	Status            string     `json:"status" gorm:"type:varchar(24);default:'pending';index"`
	OutcomeReportedAt *time.Time `json:"outcome_reported_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Competition Competition `json:"competition,omitempty" gorm:"foreignKey:CompetitionID"`
}

// Terminal reports whether the entry can still move.
func (e *Entry) Terminal() bool {
	return e.Status == EntryStatusCompleted || e.Status == EntryStatusExpired
}
