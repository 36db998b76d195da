package services

import (
	"sync"
	"testing"
	"time"

	"hio-competition-system/models"

	"github.com/stretchr/testify/assert"
)

// Notifications are enqueued from concurrent request handlers; the subject
// and body rendering must hold up under that, not just the DB writes.
// Run with the race detector to enforce it.
func TestNotifier_ConcurrentEnqueue(t *testing.T) {
	env := newTestEnv(t)
	entry := seedEntry(t, env.db, models.EntryStatusPendingVerification)
	v := seedVerification(t, env.db, entry.ID, time.Now().Add(48*time.Hour))

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				assert.NoError(t, env.notifier.ClaimSubmittedPlayer(v, entry))
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, workers*perWorker, countEmails(t, env.db, models.EmailKindClaimSubmittedPlayer))
}

func TestTitleCaseConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				assert.Equal(t, "Pat Player", titleCase("pat player"))
			}
		}()
	}
	wg.Wait()
}
