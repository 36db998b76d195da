package services

import (
	"sync"
	"testing"
	"time"

	"hio-competition-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportOutcome_WinOpensVerification(t *testing.T) {
	env := newTestEnv(t)
	entry := seedEntry(t, env.db, models.EntryStatusPending)

	got, err := env.entries.ReportOutcome(playerActor(entry.PlayerID), entry.ID, models.OutcomeWin)
	require.NoError(t, err)

	assert.Equal(t, models.EntryStatusPendingVerification, got.Status)
	require.NotNil(t, got.OutcomeSelf)
	assert.Equal(t, models.OutcomeWin, *got.OutcomeSelf)
	assert.NotNil(t, got.OutcomeReportedAt)
}

func TestReportOutcome_MissSettlesImmediately(t *testing.T) {
	env := newTestEnv(t)
	entry := seedEntry(t, env.db, models.EntryStatusPending)

	got, err := env.entries.ReportOutcome(playerActor(entry.PlayerID), entry.ID, models.OutcomeMiss)
	require.NoError(t, err)

	assert.Equal(t, models.EntryStatusCompleted, got.Status)
	require.NotNil(t, got.OutcomeSelf)
	assert.Equal(t, models.OutcomeMiss, *got.OutcomeSelf)

	// A miss never opens a verification
	var n int64
	require.NoError(t, env.db.Model(&models.Verification{}).Where("entry_id = ?", entry.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestReportOutcome_DoubleWinIsConflict(t *testing.T) {
	env := newTestEnv(t)
	entry := seedEntry(t, env.db, models.EntryStatusPending)
	actor := playerActor(entry.PlayerID)

	_, err := env.entries.ReportOutcome(actor, entry.ID, models.OutcomeWin)
	require.NoError(t, err)

	_, err = env.entries.ReportOutcome(actor, entry.ID, models.OutcomeWin)
	assert.ErrorIs(t, err, ErrWinAlreadyReported)
}

func TestReportOutcome_ConcurrentWinAndMiss(t *testing.T) {
	env := newTestEnv(t)
	entry := seedEntry(t, env.db, models.EntryStatusPending)
	actor := playerActor(entry.PlayerID)

	var wg sync.WaitGroup
	outcomes := []string{models.OutcomeWin, models.OutcomeMiss}
	errs := make([]error, len(outcomes))
	for i, outcome := range outcomes {
		wg.Add(1)
		go func(i int, outcome string) {
			defer wg.Done()
			_, errs[i] = env.entries.ReportOutcome(actor, entry.ID, outcome)
		}(i, outcome)
	}
	wg.Wait()
	winErr, missErr := errs[0], errs[1]

	var got models.Entry
	require.NoError(t, env.db.First(&got, "id = ?", entry.ID).Error)
	require.NotNil(t, got.OutcomeSelf)

	// Exactly one report lands; the loser's error names the actual state
	switch *got.OutcomeSelf {
	case models.OutcomeWin:
		require.NoError(t, winErr)
		assert.ErrorIs(t, missErr, ErrInvalidTransition)
		assert.Equal(t, models.EntryStatusPendingVerification, got.Status)
	case models.OutcomeMiss:
		require.NoError(t, missErr)
		assert.ErrorIs(t, winErr, ErrInvalidTransition)
		assert.NotErrorIs(t, winErr, ErrWinAlreadyReported)
		assert.Equal(t, models.EntryStatusCompleted, got.Status)
	default:
		t.Fatalf("unexpected outcome %q", *got.OutcomeSelf)
	}
}

func TestReportOutcome_ClosedWindow(t *testing.T) {
	env := newTestEnv(t)
	entry := seedEntry(t, env.db, models.EntryStatusPending)
	require.NoError(t, env.db.Model(&models.Entry{}).Where("id = ?", entry.ID).Updates(map[string]interface{}{
		"attempt_start": time.Now().Add(-48 * time.Hour),
		"attempt_end":   time.Now().Add(-24 * time.Hour),
	}).Error)

	_, err := env.entries.ReportOutcome(playerActor(entry.PlayerID), entry.ID, models.OutcomeWin)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReportOutcome_WrongPlayerForbidden(t *testing.T) {
	env := newTestEnv(t)
	entry := seedEntry(t, env.db, models.EntryStatusPending)

	_, err := env.entries.ReportOutcome(playerActor("someone-else"), entry.ID, models.OutcomeWin)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestReportOutcome_UnknownOutcome(t *testing.T) {
	env := newTestEnv(t)
	entry := seedEntry(t, env.db, models.EntryStatusPending)

	_, err := env.entries.ReportOutcome(playerActor(entry.PlayerID), entry.ID, "draw")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestApplyVerificationResult_SettlesOnce(t *testing.T) {
	env := newTestEnv(t)
	entry := seedEntry(t, env.db, models.EntryStatusPendingVerification)

	require.NoError(t, env.entries.ApplyVerificationResult(entry.ID, models.VerificationStatusRejected))

	var got models.Entry
	require.NoError(t, env.db.First(&got, "id = ?", entry.ID).Error)
	assert.Equal(t, models.EntryStatusCompleted, got.Status)

	// Second application is a conflict no-op, never an overwrite
	err := env.entries.ApplyVerificationResult(entry.ID, models.VerificationStatusVerified)
	assert.ErrorIs(t, err, ErrEntrySettled)

	require.NoError(t, env.db.First(&got, "id = ?", entry.ID).Error)
	assert.Equal(t, models.EntryStatusCompleted, got.Status)
}

func TestApplyVerificationResult_AutoMissExpiresEntry(t *testing.T) {
	env := newTestEnv(t)
	entry := seedEntry(t, env.db, models.EntryStatusPendingVerification)

	require.NoError(t, env.entries.ApplyVerificationResult(entry.ID, models.OutcomeAutoMiss))

	var got models.Entry
	require.NoError(t, env.db.First(&got, "id = ?", entry.ID).Error)
	assert.Equal(t, models.EntryStatusExpired, got.Status)
	require.NotNil(t, got.OutcomeSelf)
	assert.Equal(t, models.OutcomeAutoMiss, *got.OutcomeSelf)
}
