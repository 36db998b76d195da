package services

import (
	"fmt"
	"testing"
	"time"

	"hio-competition-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Shared-cache sqlite returns lock errors under concurrent writers;
	// one connection serializes them while the conditional updates still
	// arbitrate who wins.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Club{},
		&models.Competition{},
		&models.Entry{},
		&models.Verification{},
		&models.WitnessConfirmation{},
		&models.OutboundEmail{},
	))
	require.NoError(t, EnsureIndexes(db))
	return db
}

type testEnv struct {
	db            *gorm.DB
	notifier      *Notifier
	entries       *EntryService
	witness       *WitnessService
	verifications *VerificationService
	adjudication  *AdjudicationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	notifier := NewNotifier(db)
	entries := NewEntryService(db)
	witness := NewWitnessService(db, notifier)
	verifications := NewVerificationService(db, entries, witness, notifier)
	adjudication := NewAdjudicationService(db, verifications, entries, notifier)
	return &testEnv{
		db:            db,
		notifier:      notifier,
		entries:       entries,
		witness:       witness,
		verifications: verifications,
		adjudication:  adjudication,
	}
}

var adminActor = Actor{ID: "admin-1", Name: "Ada Admin", Roles: []string{RoleAdmin}}

func playerActor(id string) Actor {
	return Actor{ID: id, Name: "Pat Player", Email: "pat@example.com", Roles: []string{RolePlayer}}
}

// seedEntry creates a club, a published competition and one entry whose
// attempt window spans now-1h to now+24h.
func seedEntry(t *testing.T, db *gorm.DB, status string) *models.Entry {
	t.Helper()
	now := time.Now()

	club := &models.Club{
		ID:           uuid.NewString(),
		Name:         "Pinewood Golf Club",
		ContactEmail: "office@pinewood.example",
	}
	require.NoError(t, db.Create(club).Error)

	publishedAt := now.Add(-2 * time.Hour)
	comp := &models.Competition{
		ID:          uuid.NewString(),
		ClubID:      club.ID,
		Name:        "Summer Hole-in-One Challenge",
		Slug:        "summer-hole-in-one-" + uuid.NewString()[:8],
		HoleNumber:  7,
		Status:      models.CompetitionStatusPublished,
		OpensAt:     now.Add(-1 * time.Hour),
		ClosesAt:    now.Add(24 * time.Hour),
		PublishedAt: &publishedAt,
	}
	require.NoError(t, db.Create(comp).Error)

	entry := &models.Entry{
		ID:            uuid.NewString(),
		CompetitionID: comp.ID,
		PlayerID:      "player-" + uuid.NewString()[:8],
		PlayerName:    "Pat Player",
		PlayerEmail:   "pat@example.com",
		AttemptStart:  comp.OpensAt,
		AttemptEnd:    comp.ClosesAt,
		Status:        status,
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

func fullEvidence(entryID string) models.EvidenceRefs {
	return models.EvidenceRefs{
		Selfie:        "claims/evidence/" + entryID + "/selfie.jpg",
		IDDocument:    "claims/evidence/" + entryID + "/id_document.jpg",
		HandicapProof: "claims/evidence/" + entryID + "/handicap_proof.pdf",
	}
}

func testWitness() WitnessInput {
	return WitnessInput{Name: "Wendy Witness", Email: "wendy@example.com"}
}

// seedVerification inserts a pending verification directly, bypassing the
// submission flow, for tests that only care about what happens afterwards.
func seedVerification(t *testing.T, db *gorm.DB, entryID string, autoMissAt time.Time) *models.Verification {
	t.Helper()
	v := &models.Verification{
		ID:                 uuid.NewString(),
		EntryID:            entryID,
		SelfieURL:          "claims/evidence/" + entryID + "/selfie.jpg",
		IDDocumentURL:      "claims/evidence/" + entryID + "/id_document.jpg",
		HandicapProofURL:   "claims/evidence/" + entryID + "/handicap_proof.pdf",
		WitnessName:        "Wendy Witness",
		WitnessEmail:       "wendy@example.com",
		Status:             models.VerificationStatusPending,
		EvidenceCapturedAt: time.Now(),
		AutoMissAt:         autoMissAt,
	}
	require.NoError(t, db.Create(v).Error)
	return v
}

func countEmails(t *testing.T, db *gorm.DB, kind string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.OutboundEmail{}).Where("kind = ?", kind).Count(&n).Error)
	return n
}
