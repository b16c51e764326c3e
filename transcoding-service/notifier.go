package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

const (
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"

	headerSignature = "X-Webhook-Signature"
	headerTimestamp = "X-Webhook-Timestamp"
)

// Notifier delivers the terminal-state event for a job. Delivery is
// best-effort: a failed notification never touches the job's own status.
type Notifier interface {
	Notify(job Job)
}

// webhookPayload is the exact JSON shape signed and delivered.
type webhookPayload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Job       Job    `json:"job"`
}

// WebhookNotifier posts a signed completion/failure event to the job's
// callback URL. The orchestrator calls Notify exactly once per terminal
// transition; there is no delivery retry.
type WebhookNotifier struct {
	Secret string
	Client *http.Client
}

func NewWebhookNotifier(secret string) *WebhookNotifier {
	return &WebhookNotifier{
		Secret: secret,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(job Job) {
	if job.CallbackURL == "" {
		return
	}

	event := EventJobCompleted
	if job.Status == StatusError {
		event = EventJobFailed
	}
	timestamp := time.Now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(webhookPayload{Event: event, Timestamp: timestamp, Job: job})
	if err != nil {
		log.Printf("❌ Failed to marshal webhook payload (job_id=%s): %v", job.JobID, err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, job.CallbackURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("❌ Failed to build webhook request (job_id=%s): %v", job.JobID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, signPayload(n.Secret, body))
	req.Header.Set(headerTimestamp, timestamp)

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Printf("⚠️ Webhook delivery failed (job_id=%s): %v", job.JobID, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("⚠️ Webhook rejected (job_id=%s): status %d", job.JobID, resp.StatusCode)
		return
	}
	log.Printf("📤 Webhook delivered: job_id=%s, event=%s", job.JobID, event)
}

// signPayload computes the hex HMAC-SHA256 of the exact payload bytes with
// the shared secret, so receivers can verify authenticity independently.
func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature is the receiver-side check; it lives here so both ends
// agree on the signing scheme.
func verifySignature(secret string, body []byte, signature string) bool {
	expected := signPayload(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
