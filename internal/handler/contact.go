package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/relay"
)

// ContactHandler accepts contact-form submissions and forwards them to the
// configured webhook. The response is always generic: relay outcomes, the
// honeypot, and the timing gate are never revealed to the submitter.
type ContactHandler struct {
	relay    *relay.Relay
	minFill  time.Duration
	logger   *slog.Logger
	now      func() time.Time // injectable for tests
	maxField int
}

// NewContactHandler creates a ContactHandler. minFill is the minimum time a
// human plausibly needs between rendering the form and submitting it;
// submissions faster than that are treated as automated.
func NewContactHandler(rl *relay.Relay, minFill time.Duration, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		relay:    rl,
		minFill:  minFill,
		logger:   logger,
		now:      time.Now,
		maxField: 5000,
	}
}

const acceptedMessage = "Thanks for reaching out. I'll get back to you soon."

// Submit handles a contact-form submission.
// POST /api/contact
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var sub model.ContactSubmission
	if err := readJSON(r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if sub.Name == "" || sub.Message == "" {
		writeError(w, http.StatusBadRequest, "Name and message are required")
		return
	}
	if !validEmail(sub.Email) {
		writeError(w, http.StatusBadRequest, "A valid email address is required")
		return
	}
	if len(sub.Message) > h.maxField || len(sub.Name) > h.maxField || len(sub.Subject) > h.maxField {
		writeError(w, http.StatusBadRequest, "Submission is too long")
		return
	}

	// Honeypot: real users never fill this field. Respond as if accepted so
	// bots learn nothing.
	if sub.Website != "" {
		h.logger.Info("contact submission dropped", "reason", "honeypot")
		writeJSON(w, http.StatusOK, map[string]any{"message": acceptedMessage})
		return
	}

	// Timing gate: a submission that arrives implausibly fast after the form
	// was rendered is automated. A negative elapsed means the timestamp is
	// from the future, which no real browser produces, so it fails the gate
	// too. Same silent accept as the honeypot.
	if sub.StartedAtMs > 0 {
		started := time.UnixMilli(sub.StartedAtMs)
		if elapsed := h.now().Sub(started); elapsed < h.minFill {
			h.logger.Info("contact submission dropped", "reason", "too_fast", "elapsed", elapsed)
			writeJSON(w, http.StatusOK, map[string]any{"message": acceptedMessage})
			return
		}
	}

	h.relay.Send(sub)

	writeJSON(w, http.StatusOK, map[string]any{"message": acceptedMessage})
}
