// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartAutoMissScheduler runs the deadline sweep every minute. The sweep
// itself is idempotent, so overlapping ticks or multiple instances are
// harmless.
func (s *VerificationService) StartAutoMissScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			applied, err := s.SweepOverdue(time.Now())
			if err != nil {
				log.Printf("[AutoMiss] Sweep error: %v", err)
				return
			}
			if applied > 0 {
				log.Printf("⏱️ Auto-missed %d overdue claim(s)", applied)
			}
		}),
	)
}
