// Package relay forwards accepted contact submissions to an external
// webhook. Delivery is best-effort and fully asynchronous: the submitting
// client has already received its response by the time the webhook fires,
// and failures are logged, never surfaced.
package relay

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foliohq/folio/internal/model"
)

const httpTimeout = 3 * time.Second

// Relay posts contact submissions to a configured webhook URL.
type Relay struct {
	url    string
	client *http.Client
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates a Relay. Returns nil when no webhook URL is configured;
// callers treat a nil Relay as disabled.
func New(webhookURL string, logger *slog.Logger) *Relay {
	if webhookURL == "" {
		return nil
	}
	return &Relay{
		url:    webhookURL,
		client: &http.Client{Timeout: httpTimeout},
		logger: logger,
	}
}

// event is the webhook payload shape.
type event struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Subject    string    `json:"subject,omitempty"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"received_at"`
}

// Send delivers a submission in a background goroutine. It never blocks the
// caller and never reports failure to it.
func (r *Relay) Send(sub model.ContactSubmission) {
	if r == nil {
		return
	}

	ev := event{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Kind:       "contact.submission",
		Name:       sub.Name,
		Email:      sub.Email,
		Subject:    sub.Subject,
		Message:    sub.Message,
		ReceivedAt: time.Now().UTC(),
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.deliver(ev)
	}()
}

func (r *Relay) deliver(ev event) {
	body, err := json.Marshal(ev)
	if err != nil {
		r.logger.Warn("contact relay marshal failed", "error", err)
		return
	}

	resp, err := r.client.Post(r.url, "application/json", bytes.NewReader(body))
	if err != nil {
		r.logger.Warn("contact relay delivery failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		r.logger.Warn("contact relay rejected", "status", resp.StatusCode)
	}
}

// Close waits for in-flight deliveries to finish.
func (r *Relay) Close() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
