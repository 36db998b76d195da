package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"hio-competition-system/models"
	"hio-competition-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WitnessTokenTTL is the fixed lifetime of a confirmation link.
const WitnessTokenTTL = 48 * time.Hour

// WitnessService issues, validates and consumes the single-use confirmation
// tokens sent to witnesses. Redemption is purely informational: it never
// changes verification or entry status, it is a corroborating signal shown
// to the adjudicator.
type WitnessService struct {
	DB       *gorm.DB
	Notifier *Notifier
	BaseURL  string
}

func NewWitnessService(db *gorm.DB, notifier *Notifier) *WitnessService {
	baseURL := strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = "http://localhost:5300"
		log.Printf("⚠️ PUBLIC_BASE_URL not set — witness links will use %s", baseURL)
	}
	return &WitnessService{DB: db, Notifier: notifier, BaseURL: baseURL}
}

// ConfirmURL builds the link embedded in the witness email.
func (s *WitnessService) ConfirmURL(verificationID, token string) string {
	return fmt.Sprintf("%s/witness/confirm?id=%s&token=%s", s.BaseURL, verificationID, token)
}

// Issue creates a fresh single-use token bound to the verification and
// dispatches the confirmation link. Calling it again (resend) issues a new,
// independent token; earlier unexpired tokens stay valid until they age out.
func (s *WitnessService) Issue(verificationID, witnessEmail, witnessName string) (*models.WitnessConfirmation, error) {
	var verification models.Verification
	if err := s.DB.Preload("Entry").First(&verification, "id = ?", verificationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if verification.Status != models.VerificationStatusPending {
		return nil, ErrAlreadyFinalized
	}

	token, err := utils.NewConfirmationToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate confirmation token: %w", err)
	}

	conf := &models.WitnessConfirmation{
		ID:             uuid.NewString(),
		VerificationID: verificationID,
		Token:          token,
		WitnessName:    witnessName,
		WitnessEmail:   witnessEmail,
		ExpiresAt:      time.Now().Add(WitnessTokenTTL),
	}
	if err := s.DB.Create(conf).Error; err != nil {
		return nil, err
	}

	if err := s.Notifier.WitnessInvite(conf, verification.Entry.PlayerName, s.ConfirmURL(verificationID, token)); err != nil {
		log.Printf("⚠️ [WITNESS] Invite for %s not enqueued: %v", verificationID, err)
	}
	return conf, nil
}

// Redeem consumes a token. Exactly one of two near-simultaneous redemption
// attempts succeeds; the loser gets ErrAlreadyConfirmed from the atomic
// check-and-set on confirmed_at.
func (s *WitnessService) Redeem(verificationID, token string) (*models.WitnessConfirmation, error) {
	if verificationID == "" || token == "" {
		return nil, fmt.Errorf("%w: id and token are required", ErrValidation)
	}

	var conf models.WitnessConfirmation
	if err := s.DB.Where("verification_id = ? AND token = ?", verificationID, token).
		First(&conf).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	now := time.Now()
	if now.After(conf.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	res := s.DB.Model(&models.WitnessConfirmation{}).
		Where("id = ? AND confirmed_at IS NULL", conf.ID).
		Update("confirmed_at", now)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyConfirmed
	}

	conf.ConfirmedAt = &now
	return &conf, nil
}

// --- HTTP handlers ---

// ConfirmEndpoint handles GET /witness/confirm?id=<verificationId>&token=<token>.
// Browser-facing: renders a small page rather than JSON.
func (s *WitnessService) ConfirmEndpoint(c *fiber.Ctx) error {
	verificationID := c.Query("id")
	token := c.Query("token")

	c.Type("html", "utf-8")
	_, err := s.Redeem(verificationID, token)
	switch {
	case err == nil:
		return c.SendString(witnessPage("Thank you!", "Your confirmation has been recorded. The club will take it into account when reviewing the claim."))
	case errors.Is(err, ErrAlreadyConfirmed):
		return c.SendString(witnessPage("Already confirmed", "This claim has already been confirmed — no further action is needed."))
	case errors.Is(err, ErrTokenExpired):
		return c.Status(fiber.StatusGone).
			SendString(witnessPage("Link expired", "This confirmation link is older than 48 hours and can no longer be used. Ask the player to resend it."))
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrValidation):
		return c.Status(fiber.StatusNotFound).
			SendString(witnessPage("Not found", "We could not find a claim matching this link."))
	default:
		log.Printf("❌ [WITNESS] Redeem failed for %s: %v", verificationID, err)
		return c.Status(500).SendString(witnessPage("Something went wrong", "Please try the link again in a moment."))
	}
}

type resendWitnessRequest struct {
	WitnessName  string `json:"witness_name"`
	WitnessEmail string `json:"witness_email"`
}

// ResendEndpoint handles POST /claims/:id/witness/resend. A fresh token is
// generated; prior ones are left alone and simply expire.
func (s *WitnessService) ResendEndpoint(c *fiber.Ctx) error {
	verificationID := c.Params("id")

	var verification models.Verification
	if err := s.DB.Preload("Entry").First(&verification, "id = ?", verificationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "claim not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	actor := ActorFromCtx(c)
	if !actor.CanAdjudicate() && !actor.CanActOnEntry(verification.Entry.PlayerID) {
		return c.Status(403).JSON(fiber.Map{"error": "not your claim"})
	}

	// Default to the witness captured at submission; allow corrections
	req := resendWitnessRequest{
		WitnessName:  verification.WitnessName,
		WitnessEmail: verification.WitnessEmail,
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
	}
	if req.WitnessEmail == "" {
		return c.Status(400).JSON(fiber.Map{"error": "witness_email is required"})
	}

	conf, err := s.Issue(verificationID, req.WitnessEmail, req.WitnessName)
	if err != nil {
		status := StatusForError(err)
		if status == fiber.StatusInternalServerError {
			log.Printf("❌ [WITNESS] Resend failed for %s: %v", verificationID, err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to reissue witness link"})
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"message":    "witness confirmation link reissued",
		"expires_at": conf.ExpiresAt,
	})
}

func witnessPage(title, message string) string {
	return fmt.Sprintf(
		`<!DOCTYPE html><html><head><title>%s</title></head>`+
			`<body style="font-family:sans-serif;max-width:34em;margin:4em auto">`+
			`<h1>%s</h1><p>%s</p></body></html>`,
		title, title, message,
	)
}
