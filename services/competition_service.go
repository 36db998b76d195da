package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"time"

	"hio-competition-system/models"
	"hio-competition-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// CompetitionService covers the platform CRUD around the verification core:
// clubs, competitions and entry creation.
type CompetitionService struct {
	DB *gorm.DB
}

func NewCompetitionService(db *gorm.DB) *CompetitionService {
	return &CompetitionService{DB: db}
}

// --- Clubs ---

type createClubRequest struct {
	Name         string `json:"name"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
}

func (s *CompetitionService) CreateClub(c *fiber.Ctx) error {
	if !ActorFromCtx(c).HasRole(RoleAdmin) {
		return c.Status(403).JSON(fiber.Map{"error": "admin role required"})
	}
	var req createClubRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Name == "" || req.ContactEmail == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name and contact_email are required"})
	}

	club := &models.Club{
		ID:           uuid.NewString(),
		Name:         req.Name,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
	}
	if err := s.DB.Create(club).Error; err != nil {
		log.Printf("DB error creating club: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create club"})
	}
	return c.Status(fiber.StatusCreated).JSON(club)
}

func (s *CompetitionService) GetAllClubs(c *fiber.Ctx) error {
	var clubs []models.Club
	if err := s.DB.Order("name asc").Find(&clubs).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(clubs)
}

func (s *CompetitionService) GetClubByID(c *fiber.Ctx) error {
	var club models.Club
	if err := s.DB.First(&club, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "club not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(club)
}

// --- Competitions ---

// CreateCompetition handles multipart form input: club_id, name, and the
// open/close window are required; an optional main_photo goes to the object
// store. The URL slug is derived from the name.
func (s *CompetitionService) CreateCompetition(c *fiber.Ctx) error {
	actor := ActorFromCtx(c)
	if !actor.CanAdjudicate() {
		return c.Status(403).JSON(fiber.Map{"error": "club or admin role required"})
	}

	clubID := c.FormValue("club_id")
	name := c.FormValue("name")
	description := c.FormValue("description")
	prizeText := c.FormValue("prize_text")
	holeStr := c.FormValue("hole_number")
	entryFeeStr := c.FormValue("entry_fee")
	opensAtStr := c.FormValue("opens_at")
	closesAtStr := c.FormValue("closes_at")

	if clubID == "" || name == "" || opensAtStr == "" || closesAtStr == "" {
		return c.Status(400).JSON(fiber.Map{"error": "club_id, name, opens_at and closes_at are required"})
	}

	var club models.Club
	if err := s.DB.First(&club, "id = ?", clubID).Error; err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "club_id not found"})
	}

	holeNumber := 0
	if holeStr != "" {
		if n, err := strconv.Atoi(holeStr); err == nil && n > 0 {
			holeNumber = n
		} else {
			return c.Status(400).JSON(fiber.Map{"error": "hole_number must be a positive integer"})
		}
	}

	entryFee := 0.0
	if entryFeeStr != "" {
		if f, err := strconv.ParseFloat(entryFeeStr, 64); err == nil && f >= 0 {
			entryFee = f
		} else {
			return c.Status(400).JSON(fiber.Map{"error": "entry_fee must be a non-negative number"})
		}
	}

	opensAt, err := time.Parse(time.RFC3339, opensAtStr)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid opens_at (use RFC3339)"})
	}
	closesAt, err := time.Parse(time.RFC3339, closesAtStr)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid closes_at (use RFC3339)"})
	}
	if !closesAt.After(opensAt) {
		return c.Status(400).JSON(fiber.Map{"error": "closes_at must be after opens_at"})
	}

	id := uuid.NewString()

	// Slug from the name; suffix with the id's head on collision
	compSlug := slug.Make(name)
	var count int64
	s.DB.Model(&models.Competition{}).Where("slug = ?", compSlug).Count(&count)
	if count > 0 {
		compSlug = fmt.Sprintf("%s-%s", compSlug, id[:8])
	}

	var mainPhotoRef string
	if photo, err := c.FormFile("main_photo"); err == nil && photo.Size > 0 {
		ext := filepath.Ext(photo.Filename)
		if ext == "" {
			ext = ".jpg"
		}
		key := fmt.Sprintf("competitions/%s/main%s", id, ext)
		if mainPhotoRef, err = utils.UploadObject(photo, key); err != nil {
			log.Printf("❌ Failed to upload competition photo: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "photo upload failed"})
		}
	}

	comp := &models.Competition{
		ID:           id,
		ClubID:       clubID,
		Name:         name,
		Slug:         compSlug,
		Description:  description,
		HoleNumber:   holeNumber,
		PrizeText:    prizeText,
		EntryFee:     entryFee,
		MainPhotoURL: mainPhotoRef,
		Status:       models.CompetitionStatusDraft,
		OpensAt:      opensAt,
		ClosesAt:     closesAt,
	}
	if err := s.DB.Create(comp).Error; err != nil {
		log.Printf("DB error creating competition: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create competition"})
	}
	return c.Status(fiber.StatusCreated).JSON(comp)
}

type updateCompetitionRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	PrizeText   *string    `json:"prize_text,omitempty"`
	HoleNumber  *int       `json:"hole_number,omitempty"`
	EntryFee    *float64   `json:"entry_fee,omitempty"`
	OpensAt     *time.Time `json:"opens_at,omitempty"`
	ClosesAt    *time.Time `json:"closes_at,omitempty"`
}

func (s *CompetitionService) UpdateCompetition(c *fiber.Ctx) error {
	if !ActorFromCtx(c).CanAdjudicate() {
		return c.Status(403).JSON(fiber.Map{"error": "club or admin role required"})
	}
	id := c.Params("id")
	var req updateCompetitionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.PrizeText != nil {
		updates["prize_text"] = *req.PrizeText
	}
	if req.HoleNumber != nil {
		updates["hole_number"] = *req.HoleNumber
	}
	if req.EntryFee != nil {
		if *req.EntryFee < 0 {
			return c.Status(400).JSON(fiber.Map{"error": "entry_fee must be >= 0"})
		}
		updates["entry_fee"] = *req.EntryFee
	}
	if req.OpensAt != nil {
		updates["opens_at"] = *req.OpensAt
	}
	if req.ClosesAt != nil {
		updates["closes_at"] = *req.ClosesAt
	}
	if len(updates) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "no fields to update"})
	}

	res := s.DB.Model(&models.Competition{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "update failed", "details": res.Error.Error()})
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "competition not found"})
	}

	var updated models.Competition
	if err := s.DB.First(&updated, "id = ?", id).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch updated competition"})
	}
	return c.JSON(updated)
}

// PublishNow moves a draft competition live immediately.
func (s *CompetitionService) PublishNow(c *fiber.Ctx) error {
	if !ActorFromCtx(c).CanAdjudicate() {
		return c.Status(403).JSON(fiber.Map{"error": "club or admin role required"})
	}
	now := time.Now()
	res := s.DB.Model(&models.Competition{}).
		Where("id = ? AND status = ?", c.Params("id"), models.CompetitionStatusDraft).
		Updates(map[string]interface{}{
			"status":       models.CompetitionStatusPublished,
			"published_at": now,
		})
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(409).JSON(fiber.Map{"error": "competition not found or not in draft"})
	}
	return c.JSON(fiber.Map{"message": "competition published", "published_at": now})
}

// CloseCompetition ends entry acceptance.
func (s *CompetitionService) CloseCompetition(c *fiber.Ctx) error {
	if !ActorFromCtx(c).CanAdjudicate() {
		return c.Status(403).JSON(fiber.Map{"error": "club or admin role required"})
	}
	res := s.DB.Model(&models.Competition{}).
		Where("id = ? AND status = ?", c.Params("id"), models.CompetitionStatusPublished).
		Update("status", models.CompetitionStatusClosed)
	if res.Error != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if res.RowsAffected == 0 {
		return c.Status(409).JSON(fiber.Map{"error": "competition not found or not published"})
	}
	return c.JSON(fiber.Map{"message": "competition closed"})
}

// GetPublishedCompetitions is the public listing.
func (s *CompetitionService) GetPublishedCompetitions(c *fiber.Ctx) error {
	var comps []models.Competition
	if err := s.DB.Preload("Club").
		Where("status = ?", models.CompetitionStatusPublished).
		Order("opens_at asc").
		Find(&comps).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(comps)
}

func (s *CompetitionService) GetCompetitionByID(c *fiber.Ctx) error {
	var comp models.Competition
	if err := s.DB.Preload("Club").First(&comp, "id = ? OR slug = ?", c.Params("id"), c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "competition not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(comp)
}

// --- Entries ---

// EnterCompetition handles POST /competitions/:id/enter. The entry's
// attempt window is the competition's open/close window.
func (s *CompetitionService) EnterCompetition(c *fiber.Ctx) error {
	actor := ActorFromCtx(c)

	var comp models.Competition
	if err := s.DB.First(&comp, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "competition not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if comp.Status != models.CompetitionStatusPublished {
		return c.Status(409).JSON(fiber.Map{"error": "competition is not open for entries"})
	}
	if time.Now().After(comp.ClosesAt) {
		return c.Status(409).JSON(fiber.Map{"error": "competition entry window has closed"})
	}

	entry := &models.Entry{
		ID:            uuid.NewString(),
		CompetitionID: comp.ID,
		PlayerID:      actor.ID,
		PlayerName:    actor.Name,
		PlayerEmail:   actor.Email,
		AttemptStart:  comp.OpensAt,
		AttemptEnd:    comp.ClosesAt,
		Status:        models.EntryStatusPending,
	}
	if err := s.DB.Create(entry).Error; err != nil {
		log.Printf("DB error creating entry: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create entry"})
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// GetMyEntries lists the calling player's entries, newest first.
func (s *CompetitionService) GetMyEntries(c *fiber.Ctx) error {
	actor := ActorFromCtx(c)
	var entries []models.Entry
	if err := s.DB.Preload("Competition").
		Where("player_id = ?", actor.ID).
		Order("created_at desc").
		Find(&entries).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(entries)
}
