package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"hio-competition-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// EntryService is the authoritative lifecycle for a competition entry's
// outcome status. All transitions are conditional updates against the
// persisted row; the database row is the single source of truth.
type EntryService struct {
	DB *gorm.DB
}

func NewEntryService(db *gorm.DB) *EntryService {
	return &EntryService{DB: db}
}

// ReportOutcome records the player's own report for an entry.
//
// A win moves the entry into pending_verification and is only legal once;
// evidence submission then creates the verification record. A miss settles
// the entry immediately with no verification.
func (s *EntryService) ReportOutcome(actor Actor, entryID, outcome string) (*models.Entry, error) {
	if outcome != models.OutcomeWin && outcome != models.OutcomeMiss {
		return nil, fmt.Errorf("%w: outcome must be win or miss", ErrValidation)
	}

	var entry models.Entry
	if err := s.DB.First(&entry, "id = ?", entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !actor.CanActOnEntry(entry.PlayerID) {
		return nil, ErrForbidden
	}

	if entry.Status != models.EntryStatusPending {
		if outcome == models.OutcomeWin && entry.Status == models.EntryStatusPendingVerification {
			return nil, ErrWinAlreadyReported
		}
		return nil, fmt.Errorf("%w: entry is %s", ErrInvalidTransition, entry.Status)
	}

	now := time.Now()
	if now.Before(entry.AttemptStart) || now.After(entry.AttemptEnd) {
		return nil, fmt.Errorf("%w: attempt window is closed", ErrInvalidTransition)
	}

	updates := map[string]interface{}{
		"outcome_self":        outcome,
		"outcome_reported_at": now,
	}
	if outcome == models.OutcomeWin {
		updates["status"] = models.EntryStatusPendingVerification
	} else {
		updates["status"] = models.EntryStatusCompleted
	}

	// Atomic claim of the pending state; a concurrent report loses here
	res := s.DB.Model(&models.Entry{}).
		Where("id = ? AND status = ?", entryID, models.EntryStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race; classify from what the winner actually did
		if err := s.DB.First(&entry, "id = ?", entryID).Error; err != nil {
			return nil, err
		}
		if outcome == models.OutcomeWin && entry.Status == models.EntryStatusPendingVerification {
			return nil, ErrWinAlreadyReported
		}
		return nil, fmt.Errorf("%w: entry is %s", ErrInvalidTransition, entry.Status)
	}

	if err := s.DB.First(&entry, "id = ?", entryID).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// ApplyVerificationResult folds a finalized verification back into the
// entry. Called only by the adjudication processor and the auto-miss sweep.
// An entry that already left pending_verification yields ErrEntrySettled —
// a conflict no-op, not a corruption.
func (s *EntryService) ApplyVerificationResult(entryID, result string) error {
	updates := map[string]interface{}{}
	switch result {
	case models.VerificationStatusVerified:
		updates["status"] = models.EntryStatusCompleted
	case models.VerificationStatusRejected:
		updates["status"] = models.EntryStatusCompleted
	case models.OutcomeAutoMiss:
		updates["status"] = models.EntryStatusExpired
		updates["outcome_self"] = models.OutcomeAutoMiss
	default:
		return fmt.Errorf("%w: unknown verification result %q", ErrValidation, result)
	}

	res := s.DB.Model(&models.Entry{}).
		Where("id = ? AND status = ?", entryID, models.EntryStatusPendingVerification).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEntrySettled
	}
	return nil
}

// --- HTTP handlers ---

type reportOutcomeRequest struct {
	Outcome string `json:"outcome"`
}

// ReportOutcomeEndpoint handles POST /entries/:id/outcome.
// A miss settles the entry; a win opens verification and the client is
// expected to follow up with the evidence submission.
func (s *EntryService) ReportOutcomeEndpoint(c *fiber.Ctx) error {
	entryID := c.Params("id")
	var req reportOutcomeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	entry, err := s.ReportOutcome(ActorFromCtx(c), entryID, req.Outcome)
	if err != nil {
		status := StatusForError(err)
		if status == fiber.StatusInternalServerError {
			log.Printf("❌ [ENTRY] ReportOutcome failed for %s: %v", entryID, err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to report outcome"})
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	resp := fiber.Map{"entry": entry}
	if req.Outcome == models.OutcomeWin {
		resp["next"] = "submit evidence to open the verification"
	}
	return c.JSON(resp)
}

// GetEntryEndpoint handles GET /entries/:id.
func (s *EntryService) GetEntryEndpoint(c *fiber.Ctx) error {
	var entry models.Entry
	if err := s.DB.Preload("Competition").First(&entry, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "entry not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	actor := ActorFromCtx(c)
	if !actor.CanActOnEntry(entry.PlayerID) && !actor.CanAdjudicate() {
		return c.Status(403).JSON(fiber.Map{"error": "not your entry"})
	}
	return c.JSON(entry)
}
