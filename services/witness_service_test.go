package services

import (
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"hio-competition-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingClaim(t *testing.T, env *testEnv) *models.Verification {
	t.Helper()
	entry := seedEntry(t, env.db, models.EntryStatusPendingVerification)
	return seedVerification(t, env.db, entry.ID, time.Now().Add(48*time.Hour))
}

func TestIssueAndRedeem(t *testing.T) {
	env := newTestEnv(t)
	v := pendingClaim(t, env)

	conf, err := env.witness.Issue(v.ID, "wendy@example.com", "Wendy Witness")
	require.NoError(t, err)
	assert.NotEmpty(t, conf.Token)
	assert.WithinDuration(t, time.Now().Add(WitnessTokenTTL), conf.ExpiresAt, time.Minute)
	assert.EqualValues(t, 1, countEmails(t, env.db, models.EmailKindWitnessConfirm))

	redeemed, err := env.witness.Redeem(v.ID, conf.Token)
	require.NoError(t, err)
	require.NotNil(t, redeemed.ConfirmedAt)

	// Redemption is informational only: claim status is untouched
	var gotV models.Verification
	require.NoError(t, env.db.First(&gotV, "id = ?", v.ID).Error)
	assert.Equal(t, models.VerificationStatusPending, gotV.Status)
}

func TestRedeem_SecondAttemptConflicts(t *testing.T) {
	env := newTestEnv(t)
	v := pendingClaim(t, env)
	conf, err := env.witness.Issue(v.ID, "wendy@example.com", "Wendy Witness")
	require.NoError(t, err)

	_, err = env.witness.Redeem(v.ID, conf.Token)
	require.NoError(t, err)

	_, err = env.witness.Redeem(v.ID, conf.Token)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)

	// confirmed_at was set exactly once and did not move
	var got models.WitnessConfirmation
	require.NoError(t, env.db.First(&got, "id = ?", conf.ID).Error)
	require.NotNil(t, got.ConfirmedAt)
}

func TestRedeem_SimultaneousAttempts(t *testing.T) {
	env := newTestEnv(t)
	v := pendingClaim(t, env)
	conf, err := env.witness.Issue(v.ID, "wendy@example.com", "Wendy Witness")
	require.NoError(t, err)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, redeemErr := env.witness.Redeem(v.ID, conf.Token)
			errs <- redeemErr
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, conflicted := 0, 0
	for redeemErr := range errs {
		switch {
		case redeemErr == nil:
			succeeded++
		case errors.Is(redeemErr, ErrAlreadyConfirmed):
			conflicted++
		default:
			t.Fatalf("unexpected redeem error: %v", redeemErr)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one redemption wins")
	assert.Equal(t, 1, conflicted, "the loser gets a conflict, not an error")
}

func TestRedeem_ExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	v := pendingClaim(t, env)
	conf, err := env.witness.Issue(v.ID, "wendy@example.com", "Wendy Witness")
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&models.WitnessConfirmation{}).
		Where("id = ?", conf.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	_, err = env.witness.Redeem(v.ID, conf.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRedeem_UnknownToken(t *testing.T) {
	env := newTestEnv(t)
	v := pendingClaim(t, env)
	conf, err := env.witness.Issue(v.ID, "wendy@example.com", "Wendy Witness")
	require.NoError(t, err)

	_, err = env.witness.Redeem(v.ID, "not-a-real-token")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// A valid token bound to a different verification does not match either
	_, err = env.witness.Redeem("other-verification", conf.Token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestIssue_ResendLeavesEarlierTokenValid(t *testing.T) {
	env := newTestEnv(t)
	v := pendingClaim(t, env)

	first, err := env.witness.Issue(v.ID, "wendy@example.com", "Wendy Witness")
	require.NoError(t, err)
	second, err := env.witness.Issue(v.ID, "wendy@example.com", "Wendy Witness")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	// No revocation on resend: the first token still redeems
	_, err = env.witness.Redeem(v.ID, first.Token)
	require.NoError(t, err)
	_, err = env.witness.Redeem(v.ID, second.Token)
	require.NoError(t, err)
}

func TestIssue_FinalizedClaim(t *testing.T) {
	env := newTestEnv(t)
	v := pendingClaim(t, env)
	require.NoError(t, env.verifications.Finalize(v.ID, models.VerificationStatusRejected, "admin-1", "no evidence"))

	_, err := env.witness.Issue(v.ID, "wendy@example.com", "Wendy Witness")
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestConfirmEndpoint(t *testing.T) {
	env := newTestEnv(t)
	v := pendingClaim(t, env)
	conf, err := env.witness.Issue(v.ID, "wendy@example.com", "Wendy Witness")
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/witness/confirm", env.witness.ConfirmEndpoint)

	get := func(id, token string) (int, string) {
		req := httptest.NewRequest("GET", "/witness/confirm?id="+id+"&token="+token, nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	status, body := get(v.ID, conf.Token)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "Thank you")

	status, body = get(v.ID, conf.Token)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "Already confirmed")

	status, _ = get(v.ID, "bogus")
	assert.Equal(t, fiber.StatusNotFound, status)

	expired, err := env.witness.Issue(v.ID, "wendy@example.com", "Wendy Witness")
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&models.WitnessConfirmation{}).
		Where("id = ?", expired.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	status, body = get(v.ID, expired.Token)
	assert.Equal(t, fiber.StatusGone, status)
	assert.Contains(t, body, "expired")
}
