package services

import (
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hio-competition-system/models"
	"hio-competition-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultTimeoutHours is the window a club has to adjudicate a claim
// before the sweep rejects it, unless VERIFICATION_TIMEOUT_HOURS overrides.
const DefaultTimeoutHours = 48

// How long signed evidence URLs stay valid after a read.
const evidenceURLTTL = 15 * time.Minute

// WitnessInput is the witness contact captured at submission time.
// Free text from the player; nothing about it is confirmed yet.
type WitnessInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// VerificationService owns creation and finalization of verification
// attempts tied to an entry, plus the auto-miss deadline sweep.
type VerificationService struct {
	DB           *gorm.DB
	Entries      *EntryService
	Witness      *WitnessService
	Notifier     *Notifier
	TimeoutHours int
}

func NewVerificationService(db *gorm.DB, entries *EntryService, witness *WitnessService, notifier *Notifier) *VerificationService {
	timeoutHours := DefaultTimeoutHours
	if raw := os.Getenv("VERIFICATION_TIMEOUT_HOURS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			timeoutHours = n
		} else {
			log.Printf("⚠️ Invalid VERIFICATION_TIMEOUT_HOURS %q — using default %d", raw, DefaultTimeoutHours)
		}
	}
	return &VerificationService{
		DB:           db,
		Entries:      entries,
		Witness:      witness,
		Notifier:     notifier,
		TimeoutHours: timeoutHours,
	}
}

// EnsureIndexes creates the partial unique index that makes "one open
// verification per entry" a database guarantee, not just a read-then-write
// check. Works on both Postgres and SQLite.
func EnsureIndexes(db *gorm.DB) error {
	return db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_verifications_one_open " +
			"ON verifications (entry_id) WHERE status = 'pending'",
	).Error
}

// Submit persists a new pending verification for an entry that has a win
// report open. The three mandatory evidence references must be present;
// video is optional. The auto-miss deadline is stamped here.
func (s *VerificationService) Submit(actor Actor, entryID string, refs models.EvidenceRefs, witness WitnessInput) (*models.Verification, error) {
	var entry models.Entry
	if err := s.DB.Preload("Competition").Preload("Competition.Club").
		First(&entry, "id = ?", entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !actor.CanActOnEntry(entry.PlayerID) {
		return nil, ErrForbidden
	}
	if entry.Status != models.EntryStatusPendingVerification {
		return nil, fmt.Errorf("%w: entry is %s, report a win first", ErrInvalidTransition, entry.Status)
	}

	if missing := refs.MissingRequired(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, m := range missing {
			names[i] = string(m)
		}
		return nil, fmt.Errorf("%w: missing required evidence: %s", ErrValidation, strings.Join(names, ", "))
	}

	var open int64
	if err := s.DB.Model(&models.Verification{}).
		Where("entry_id = ? AND status = ?", entryID, models.VerificationStatusPending).
		Count(&open).Error; err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, ErrClaimAlreadyOpen
	}

	now := time.Now()
	verification := &models.Verification{
		ID:                 uuid.NewString(),
		EntryID:            entryID,
		SelfieURL:          refs.Selfie,
		IDDocumentURL:      refs.IDDocument,
		HandicapProofURL:   refs.HandicapProof,
		VideoURL:           refs.Video,
		WitnessName:        witness.Name,
		WitnessEmail:       witness.Email,
		Status:             models.VerificationStatusPending,
		EvidenceCapturedAt: now,
		AutoMissAt:         now.Add(time.Duration(s.TimeoutHours) * time.Hour),
	}
	if err := s.DB.Create(verification).Error; err != nil {
		// The partial unique index wins races the count above cannot see
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, ErrClaimAlreadyOpen
		}
		return nil, err
	}

	// Notifications are side effects past the commit point: log and move on
	clubEmail := entry.Competition.Club.ContactEmail
	if clubEmail == "" {
		clubEmail = os.Getenv("PLATFORM_ADMIN_EMAIL")
	}
	if err := s.Notifier.ClaimSubmittedAdmin(verification, &entry, clubEmail); err != nil {
		log.Printf("⚠️ [CLAIM] Admin notification for %s not enqueued: %v", verification.ID, err)
	}
	if err := s.Notifier.ClaimSubmittedPlayer(verification, &entry); err != nil {
		log.Printf("⚠️ [CLAIM] Player notification for %s not enqueued: %v", verification.ID, err)
	}

	return verification, nil
}

// Finalize moves a pending verification to verified or rejected, stamping
// the decision audit trail. First caller wins; later callers get
// ErrAlreadyFinalized. A finalized verification is immutable.
func (s *VerificationService) Finalize(verificationID, status, decidedBy, reason string) error {
	if status != models.VerificationStatusVerified && status != models.VerificationStatusRejected {
		return fmt.Errorf("%w: final status must be verified or rejected", ErrValidation)
	}

	now := time.Now()
	res := s.DB.Model(&models.Verification{}).
		Where("id = ? AND status = ?", verificationID, models.VerificationStatusPending).
		Updates(map[string]interface{}{
			"status":          status,
			"decided_by":      decidedBy,
			"decision_reason": reason,
			"decided_at":      now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.DB.Model(&models.Verification{}).Where("id = ?", verificationID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrAlreadyFinalized
	}
	return nil
}

// SweepOverdue is the auto-miss deadline enforcer. One tick:
//
//  1. claim every pending verification past its deadline — a conditional
//     update on auto_miss_applied arbitrates concurrent sweep runs, and the
//     loser skips silently;
//  2. propagate the result to the entry;
//  3. re-drive entry propagation for any terminal verification whose entry
//     is still pending_verification — whether the stall came from a sweep
//     crash or an admin decision whose entry update failed.
//
// Safe to run from multiple instances and across restarts: every decision
// lives in the verification row, never in memory.
func (s *VerificationService) SweepOverdue(now time.Time) (int, error) {
	var overdue []models.Verification
	if err := s.DB.
		Where("status = ? AND auto_miss_applied = ? AND auto_miss_at <= ?",
			models.VerificationStatusPending, false, now).
		Find(&overdue).Error; err != nil {
		return 0, err
	}

	applied := 0
	for _, v := range overdue {
		res := s.DB.Model(&models.Verification{}).
			Where("id = ? AND status = ? AND auto_miss_applied = ?",
				v.ID, models.VerificationStatusPending, false).
			Updates(map[string]interface{}{
				"status":            models.VerificationStatusRejected,
				"auto_miss_applied": true,
				"decided_by":        "system",
				"decision_reason":   models.AutoMissReason,
				"decided_at":        now,
			})
		if res.Error != nil {
			log.Printf("❌ [AUTO_MISS] Failed to claim verification %s: %v", v.ID, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			// An admin decision or a concurrent sweep got there first
			continue
		}
		applied++

		if err := s.Entries.ApplyVerificationResult(v.EntryID, models.OutcomeAutoMiss); err != nil {
			if errors.Is(err, ErrEntrySettled) {
				log.Printf("🛑 [AUTO_MISS] LOGIC ERROR: entry %s already settled while verification %s was still pending", v.EntryID, v.ID)
			} else {
				log.Printf("⚠️ [AUTO_MISS] Entry update for %s failed, will retry next tick: %v", v.EntryID, err)
			}
		}
	}

	// Resumption pass: verification already terminal, entry still open
	var stale []models.Verification
	if err := s.DB.
		Select("verifications.*").
		Joins("JOIN entries ON entries.id = verifications.entry_id").
		Where("verifications.status IN ? AND entries.status = ?",
			[]string{models.VerificationStatusVerified, models.VerificationStatusRejected},
			models.EntryStatusPendingVerification).
		Find(&stale).Error; err != nil {
		return applied, err
	}
	for _, v := range stale {
		result := v.Status
		if v.AutoMissApplied {
			result = models.OutcomeAutoMiss
		}
		if err := s.Entries.ApplyVerificationResult(v.EntryID, result); err != nil && !errors.Is(err, ErrEntrySettled) {
			log.Printf("⚠️ [AUTO_MISS] Retry of entry update for %s failed: %v", v.EntryID, err)
		}
	}

	return applied, nil
}

// --- HTTP handlers ---

// SubmitClaimEndpoint handles POST /entries/:id/claim — multipart form with
// evidence files (selfie, id_document, handicap_proof, optional video) and
// witness_name/witness_email fields. Reports the win if the entry is still
// pending, uploads evidence, persists the verification and issues the
// witness confirmation link.
func (s *VerificationService) SubmitClaimEndpoint(c *fiber.Ctx) error {
	entryID := c.Params("id")
	actor := ActorFromCtx(c)

	witness := WitnessInput{
		Name:  strings.TrimSpace(c.FormValue("witness_name")),
		Email: strings.TrimSpace(c.FormValue("witness_email")),
	}
	if witness.Name == "" || witness.Email == "" {
		return c.Status(400).JSON(fiber.Map{"error": "witness_name and witness_email are required"})
	}

	files := map[models.EvidenceSlot]*multipart.FileHeader{}
	for _, slot := range []models.EvidenceSlot{
		models.EvidenceSelfie, models.EvidenceIDDocument,
		models.EvidenceHandicapProof, models.EvidenceVideo,
	} {
		if fh, err := c.FormFile(string(slot)); err == nil && fh.Size > 0 {
			files[slot] = fh
		}
	}
	var missing []string
	for _, slot := range models.RequiredEvidenceSlots {
		if files[slot] == nil {
			missing = append(missing, string(slot))
		}
	}
	if len(missing) > 0 {
		return c.Status(400).JSON(fiber.Map{
			"error": "missing required evidence: " + strings.Join(missing, ", "),
		})
	}

	// Open the win report if the player has not done so already
	var entry models.Entry
	if err := s.DB.First(&entry, "id = ?", entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "entry not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if entry.Status == models.EntryStatusPending {
		if _, err := s.Entries.ReportOutcome(actor, entryID, models.OutcomeWin); err != nil {
			status := StatusForError(err)
			if status == fiber.StatusInternalServerError {
				log.Printf("❌ [CLAIM] Win report failed for entry %s: %v", entryID, err)
				return c.Status(500).JSON(fiber.Map{"error": "failed to open win report"})
			}
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		}
	}

	refs := models.EvidenceRefs{}
	for slot, fh := range files {
		key := fmt.Sprintf("evidence/%s/%s%s", entryID, slot, filepath.Ext(fh.Filename))
		ref, err := utils.UploadObject(fh, key)
		if err != nil {
			log.Printf("❌ [CLAIM] Evidence upload (%s) failed for entry %s: %v", slot, entryID, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "evidence store unavailable — win report is open, retry the submission",
			})
		}
		switch slot {
		case models.EvidenceSelfie:
			refs.Selfie = ref
		case models.EvidenceIDDocument:
			refs.IDDocument = ref
		case models.EvidenceHandicapProof:
			refs.HandicapProof = ref
		case models.EvidenceVideo:
			refs.Video = ref
		}
	}

	verification, err := s.Submit(actor, entryID, refs, witness)
	if err != nil {
		status := StatusForError(err)
		if status == fiber.StatusInternalServerError {
			log.Printf("❌ [CLAIM] Submit failed for entry %s: %v", entryID, err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to record claim"})
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	resp := fiber.Map{
		"verification":    verification,
		"claim_reference": verification.ClaimReference(),
	}
	if _, err := s.Witness.Issue(verification.ID, witness.Email, witness.Name); err != nil {
		// Claim is durably recorded; the witness mail can be resent
		log.Printf("⚠️ [CLAIM] Witness link for %s not issued: %v", verification.ID, err)
		resp["warning"] = "claim recorded, witness confirmation email may be delayed"
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// PendingClaimsEndpoint handles GET /claims/pending for adjudicators,
// oldest deadline first.
func (s *VerificationService) PendingClaimsEndpoint(c *fiber.Ctx) error {
	if !ActorFromCtx(c).CanAdjudicate() {
		return c.Status(403).JSON(fiber.Map{"error": "adjudicator role required"})
	}
	var claims []models.Verification
	if err := s.DB.Preload("Entry").
		Where("status = ?", models.VerificationStatusPending).
		Order("auto_miss_at asc").
		Find(&claims).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(fiber.Map{"count": len(claims), "claims": claims})
}

// GetClaimEndpoint handles GET /claims/:id. Evidence references are
// resolved to short-lived signed URLs here, at read time only.
func (s *VerificationService) GetClaimEndpoint(c *fiber.Ctx) error {
	var verification models.Verification
	if err := s.DB.Preload("Entry").First(&verification, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "claim not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	actor := ActorFromCtx(c)
	if !actor.CanAdjudicate() && !actor.CanActOnEntry(verification.Entry.PlayerID) {
		return c.Status(403).JSON(fiber.Map{"error": "not your claim"})
	}

	evidence := fiber.Map{}
	refs := verification.Refs()
	for slot, ref := range map[models.EvidenceSlot]string{
		models.EvidenceSelfie:        refs.Selfie,
		models.EvidenceIDDocument:    refs.IDDocument,
		models.EvidenceHandicapProof: refs.HandicapProof,
		models.EvidenceVideo:         refs.Video,
	} {
		if ref == "" {
			continue
		}
		signed, err := utils.SignedObjectURL(ref, evidenceURLTTL)
		if err != nil {
			log.Printf("⚠️ [CLAIM] Could not sign %s for %s: %v", slot, verification.ID, err)
			continue
		}
		evidence[string(slot)] = signed
	}

	var confirmations []models.WitnessConfirmation
	if err := s.DB.Where("verification_id = ?", verification.ID).
		Order("created_at asc").Find(&confirmations).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(fiber.Map{
		"verification":          verification,
		"claim_reference":       verification.ClaimReference(),
		"evidence":              evidence,
		"witness_confirmations": confirmations,
	})
}
