package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"hio-competition-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AdjudicationService applies a human verify/reject decision to a pending
// claim. It is the only component allowed to accept a human decision; it
// inspects no evidence itself.
type AdjudicationService struct {
	DB            *gorm.DB
	Verifications *VerificationService
	Entries       *EntryService
	Notifier      *Notifier
}

func NewAdjudicationService(db *gorm.DB, verifications *VerificationService, entries *EntryService, notifier *Notifier) *AdjudicationService {
	return &AdjudicationService{
		DB:            db,
		Verifications: verifications,
		Entries:       entries,
		Notifier:      notifier,
	}
}

// Verify confirms the win. Fails with ErrAlreadyFinalized when the deadline
// sweep (or another adjudicator) got there first.
func (s *AdjudicationService) Verify(actor Actor, verificationID, notes string) error {
	return s.decide(actor, verificationID, models.VerificationStatusVerified, notes)
}

// Reject denies the claim with a reason that is relayed to the player.
func (s *AdjudicationService) Reject(actor Actor, verificationID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: a rejection reason is required", ErrValidation)
	}
	return s.decide(actor, verificationID, models.VerificationStatusRejected, reason)
}

func (s *AdjudicationService) decide(actor Actor, verificationID, status, reason string) error {
	if !actor.CanAdjudicate() {
		return ErrForbidden
	}

	var verification models.Verification
	if err := s.DB.Preload("Entry").First(&verification, "id = ?", verificationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	// First caller wins; the conditional update inside Finalize arbitrates
	if err := s.Verifications.Finalize(verificationID, status, actor.ID, reason); err != nil {
		return err
	}

	if err := s.Entries.ApplyVerificationResult(verification.EntryID, status); err != nil {
		if errors.Is(err, ErrEntrySettled) {
			// Entry side already settled; the verification decision stands
			log.Printf("⚠️ [ADJUDICATE] Entry %s was already settled when applying %s", verification.EntryID, status)
		} else {
			log.Printf("❌ [ADJUDICATE] Entry update for %s failed: %v", verification.EntryID, err)
		}
	}

	entry := verification.Entry
	var notifyErr error
	if status == models.VerificationStatusVerified {
		notifyErr = s.Notifier.ClaimVerified(&verification, &entry)
	} else {
		notifyErr = s.Notifier.ClaimRejected(&verification, &entry, reason)
	}
	if notifyErr != nil {
		log.Printf("⚠️ [ADJUDICATE] Player notification for %s not enqueued: %v", verificationID, notifyErr)
	}
	return nil
}

// --- HTTP handlers ---

type decisionRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// VerifyClaimEndpoint handles POST /claims/:id/verify.
func (s *AdjudicationService) VerifyClaimEndpoint(c *fiber.Ctx) error {
	var req decisionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
	}
	return s.respond(c, s.Verify(ActorFromCtx(c), c.Params("id"), req.Notes), "claim verified")
}

// RejectClaimEndpoint handles POST /claims/:id/reject.
func (s *AdjudicationService) RejectClaimEndpoint(c *fiber.Ctx) error {
	var req decisionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	return s.respond(c, s.Reject(ActorFromCtx(c), c.Params("id"), req.Reason), "claim rejected")
}

func (s *AdjudicationService) respond(c *fiber.Ctx, err error, okMessage string) error {
	if err == nil {
		return c.JSON(fiber.Map{"message": okMessage})
	}
	if errors.Is(err, ErrAlreadyFinalized) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "this claim has already been decided or timed out",
		})
	}
	status := StatusForError(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("❌ [ADJUDICATE] Decision failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to record decision"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
