package services

import (
	"fmt"
	"log"

	"hio-competition-system/models"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// Notifier turns domain events into outbox rows for the external mail
// dispatcher. Enqueueing is best-effort from the caller's point of view:
// the domain transition has already committed, so a failure here is logged
// and reported as degraded success, never rolled back.
type Notifier struct {
	DB *gorm.DB
}

func NewNotifier(db *gorm.DB) *Notifier {
	return &Notifier{DB: db}
}

// cases.Caser carries transform state and is not safe for concurrent use,
// so each call builds its own instead of sharing a package-level instance.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func (n *Notifier) enqueue(kind, recipient, subject, body, verificationID string) error {
	if recipient == "" {
		log.Printf("⚠️ [NOTIFY] No recipient for %s notification (verification %s) — skipping", kind, verificationID)
		return nil
	}
	email := &models.OutboundEmail{
		ID:             uuid.NewString(),
		Kind:           kind,
		Recipient:      recipient,
		Subject:        subject,
		Body:           body,
		VerificationID: verificationID,
		Status:         models.EmailStatusPending,
	}
	if err := n.DB.Create(email).Error; err != nil {
		log.Printf("❌ [NOTIFY] Failed to enqueue %s notification to %s: %v", kind, recipient, err)
		return err
	}
	return nil
}

// ClaimSubmittedAdmin alerts the club of a new win claim awaiting review.
func (n *Notifier) ClaimSubmittedAdmin(v *models.Verification, entry *models.Entry, clubEmail string) error {
	subject := fmt.Sprintf("New hole-in-one claim %s awaiting review", v.ClaimReference())
	body := fmt.Sprintf(
		"%s has reported a hole-in-one in competition %s.\n\n"+
			"Claim reference: %s\n"+
			"Evidence and witness details are ready for review. The claim will "+
			"time out automatically if no decision is made before %s.",
		titleCase(entry.PlayerName), entry.CompetitionID,
		v.ClaimReference(), v.AutoMissAt.Format("Mon, 02 Jan 2006 15:04 MST"),
	)
	return n.enqueue(models.EmailKindClaimSubmittedAdmin, clubEmail, subject, body, v.ID)
}

// ClaimSubmittedPlayer confirms receipt of the claim to the player.
func (n *Notifier) ClaimSubmittedPlayer(v *models.Verification, entry *models.Entry) error {
	subject := fmt.Sprintf("We received your claim %s", v.ClaimReference())
	body := fmt.Sprintf(
		"Hi %s,\n\nYour hole-in-one claim has been received and is being verified.\n"+
			"Your claim reference is %s. We will be in touch once a decision is made.",
		titleCase(entry.PlayerName), v.ClaimReference(),
	)
	return n.enqueue(models.EmailKindClaimSubmittedPlayer, entry.PlayerEmail, subject, body, v.ID)
}

// WitnessInvite sends (or resends) the confirmation link to the witness.
func (n *Notifier) WitnessInvite(conf *models.WitnessConfirmation, playerName, confirmURL string) error {
	subject := fmt.Sprintf("%s named you as a witness to a hole-in-one", titleCase(playerName))
	body := fmt.Sprintf(
		"Hi %s,\n\n%s reported a hole-in-one and listed you as a witness.\n"+
			"If you saw the shot, please confirm it here:\n\n%s\n\n"+
			"This link expires on %s and can only be used once.",
		titleCase(conf.WitnessName), titleCase(playerName),
		confirmURL, conf.ExpiresAt.Format("Mon, 02 Jan 2006 15:04 MST"),
	)
	return n.enqueue(models.EmailKindWitnessConfirm, conf.WitnessEmail, subject, body, conf.VerificationID)
}

// ClaimVerified tells the player their win was confirmed.
func (n *Notifier) ClaimVerified(v *models.Verification, entry *models.Entry) error {
	subject := fmt.Sprintf("Your claim %s has been verified 🏆", v.ClaimReference())
	body := fmt.Sprintf(
		"Congratulations %s!\n\nYour hole-in-one claim %s has been verified. "+
			"The club will contact you about your prize.",
		titleCase(entry.PlayerName), v.ClaimReference(),
	)
	return n.enqueue(models.EmailKindClaimVerified, entry.PlayerEmail, subject, body, v.ID)
}

// ClaimRejected tells the player their claim was not accepted, including
// the adjudicator's reason text.
func (n *Notifier) ClaimRejected(v *models.Verification, entry *models.Entry, reason string) error {
	subject := fmt.Sprintf("Your claim %s was not accepted", v.ClaimReference())
	body := fmt.Sprintf(
		"Hi %s,\n\nYour hole-in-one claim %s was not accepted.\n\nReason: %s",
		titleCase(entry.PlayerName), v.ClaimReference(), reason,
	)
	return n.enqueue(models.EmailKindClaimRejected, entry.PlayerEmail, subject, body, v.ID)
}
