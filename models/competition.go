package models

import (
	"time"
)

// Competition publishing lifecycle.
const (
	CompetitionStatusDraft     = "draft"
	CompetitionStatusPublished = "published"
	CompetitionStatusClosed    = "closed"
)

// Competition is one hole-in-one challenge run by a club.
type Competition struct {
	ID     string `json:"id" gorm:"primaryKey"`
	ClubID string `json:"club_id" gorm:"not null;index"`

	Name        string `json:"name" gorm:"not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex;not null"`
	Description string `json:"description"`
	HoleNumber  int    `json:"hole_number" gorm:"default:0"`
	PrizeText   string `json:"prize_text"`

	EntryFee     float64 `json:"entry_fee" gorm:"default:0"`
	MainPhotoURL string  `json:"main_photo_url"` // object-store reference, signed at read time

	Status      string     `json:"status" gorm:"type:varchar(16);default:'draft';index"`
	OpensAt     time.Time  `json:"opens_at" gorm:"not null"`
	ClosesAt    time.Time  `json:"closes_at" gorm:"not null"`
	PublishedAt *time.Time `json:"published_at,omitempty" gorm:"index"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Club    Club    `json:"club,omitempty" gorm:"foreignKey:ClubID"`
	Entries []Entry `json:"entries,omitempty" gorm:"foreignKey:CompetitionID"`
}

// Club owns competitions and receives claim notifications.
type Club struct {
	ID           string `json:"id" gorm:"primaryKey"`
	Name         string `json:"name" gorm:"not null"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email" gorm:"not null"` // claim notifications land here

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
