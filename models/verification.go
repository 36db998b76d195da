package models

import (
	"strings"
	"time"
)

// Verification status values. Terminal once verified or rejected.
const (
	VerificationStatusPending  = "pending"
	VerificationStatusVerified = "verified"
	VerificationStatusRejected = "rejected"
)

// Decision reason recorded when the deadline sweep rejects a claim.
const AutoMissReason = "automatic timeout"

// EvidenceSlot names one piece of evidence attached to a claim.
type EvidenceSlot string

const (
	EvidenceSelfie        EvidenceSlot = "selfie"
	EvidenceIDDocument    EvidenceSlot = "id_document"
	EvidenceHandicapProof EvidenceSlot = "handicap_proof"
	EvidenceVideo         EvidenceSlot = "video"
)

// RequiredEvidenceSlots must all be present at submission; video is optional.
var RequiredEvidenceSlots = []EvidenceSlot{EvidenceSelfie, EvidenceIDDocument, EvidenceHandicapProof}

// EvidenceRefs holds opaque object-store references ("<bucket>/<path>"),
// never raw bytes or permanent public URLs.
type EvidenceRefs struct {
	Selfie        string `json:"selfie_url"`
	IDDocument    string `json:"id_document_url"`
	HandicapProof string `json:"handicap_proof_url"`
	Video         string `json:"video_url,omitempty"`
}

// MissingRequired returns the required slots with no reference set.
func (r EvidenceRefs) MissingRequired() []EvidenceSlot {
	var missing []EvidenceSlot
	bySlot := map[EvidenceSlot]string{
		EvidenceSelfie:        r.Selfie,
		EvidenceIDDocument:    r.IDDocument,
		EvidenceHandicapProof: r.HandicapProof,
	}
	for _, slot := range RequiredEvidenceSlots {
		if bySlot[slot] == "" {
			missing = append(missing, slot)
		}
	}
	return missing
}

// Verification is one attestation attempt for a win claim.
// Exactly one non-terminal verification may exist per entry at a time;
// finalized rows are kept for history and are immutable.
type Verification struct {
	ID      string `json:"id" gorm:"primaryKey"`
	EntryID string `json:"entry_id" gorm:"not null;index"`

	SelfieURL        string `json:"selfie_url" gorm:"not null"`
	IDDocumentURL    string `json:"id_document_url" gorm:"not null"`
	HandicapProofURL string `json:"handicap_proof_url" gorm:"not null"`
	VideoURL         string `json:"video_url,omitempty"`

	// Witness details as given by the player; unconfirmed free text
	WitnessName  string `json:"witness_name"`
	WitnessEmail string `json:"witness_email"`

	Status             string    `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	EvidenceCapturedAt time.Time `json:"evidence_captured_at"`

	// Deadline handling
	AutoMissAt      time.Time `json:"auto_miss_at" gorm:"index"`
	AutoMissApplied bool      `json:"auto_miss_applied" gorm:"default:false"`

	// Decision audit trail
	DecidedBy      string     `json:"decided_by,omitempty"`
	DecisionReason string     `json:"decision_reason,omitempty" gorm:"type:text"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Entry Entry `json:"entry,omitempty" gorm:"foreignKey:EntryID"`
}

// Refs repacks the stored references for read-time URL signing.
func (v *Verification) Refs() EvidenceRefs {
	return EvidenceRefs{
		Selfie:        v.SelfieURL,
		IDDocument:    v.IDDocumentURL,
		HandicapProof: v.HandicapProofURL,
		Video:         v.VideoURL,
	}
}

// ClaimReference is the human-readable reference quoted in player emails:
// last 8 characters of the verification id, upper-cased.
func (v *Verification) ClaimReference() string {
	id := v.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return strings.ToUpper(id)
}
