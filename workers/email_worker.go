package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"hio-competition-system/models"

	"gorm.io/gorm"
)

// Delivery gives up after this many attempts; the row stays for audit.
const maxSendAttempts = 5

// MailClient talks to the external mail dispatch service. The outbox table
// is the queue: domain code enqueues rows and this worker delivers them
// at-least-once.
type MailClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewMailClient(db *gorm.DB) *MailClient {
	baseURL := os.Getenv("MAIL_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("MAIL_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("HIO_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("HIO_SERVICE_TOKEN environment variable is required for mail dispatch")
	}

	return &MailClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Send delivers a single message to the mail service.
func (c *MailClient) Send(ctx context.Context, email *models.OutboundEmail) error {
	payload, err := json.Marshal(map[string]string{
		"recipient": email.Recipient,
		"subject":   email.Subject,
		"body":      email.Body,
		"kind":      email.Kind,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/api/v1/messages", c.BaseURL), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call mail service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mail service returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// PollOutbox drains pending outbox rows on an interval until the context is
// cancelled. Failures bump the attempt counter; rows that exhaust their
// attempts are marked failed and left in place for inspection.
func PollOutbox(ctx context.Context, client *MailClient, pollInterval time.Duration) {
	log.Println("Starting outbound email worker (outbox-backed)...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Email worker stopped.")
			return
		case <-ticker.C:
			var pending []models.OutboundEmail
			if err := client.DB.
				Where("status = ? AND attempts < ?", models.EmailStatusPending, maxSendAttempts).
				Order("created_at asc").
				Limit(50).
				Find(&pending).Error; err != nil {
				log.Printf("❌ [EMAIL] Failed to load outbox: %v", err)
				continue
			}
			if len(pending) == 0 {
				continue
			}

			sent := 0
			for i := range pending {
				email := &pending[i]
				if err := client.Send(ctx, email); err != nil {
					attempts := email.Attempts + 1
					updates := map[string]interface{}{
						"attempts":   attempts,
						"last_error": err.Error(),
					}
					if attempts >= maxSendAttempts {
						updates["status"] = models.EmailStatusFailed
						log.Printf("❌ [EMAIL] Giving up on %s (%s) after %d attempts: %v", email.ID, email.Kind, attempts, err)
					} else {
						log.Printf("⚠️ [EMAIL] Send %s (%s) failed (attempt %d): %v", email.ID, email.Kind, attempts, err)
					}
					if dbErr := client.DB.Model(email).Updates(updates).Error; dbErr != nil {
						log.Printf("❌ [EMAIL] Failed to record attempt for %s: %v", email.ID, dbErr)
					}
					continue
				}

				now := time.Now()
				if err := client.DB.Model(email).Updates(map[string]interface{}{
					"status":   models.EmailStatusSent,
					"attempts": email.Attempts + 1,
					"sent_at":  now,
				}).Error; err != nil {
					log.Printf("❌ [EMAIL] Sent %s but failed to mark it: %v", email.ID, err)
					continue
				}
				sent++
			}
			if sent > 0 {
				log.Printf("📧 Dispatched %d outbound email(s)", sent)
			}
		}
	}
}
