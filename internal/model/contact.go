package model

// ContactSubmission is an incoming contact-form payload. Website is a
// honeypot field: legitimate clients never populate it. StartedAtMs is the
// client-side epoch millisecond timestamp of when the form was rendered,
// used for the minimum-fill-time gate.
type ContactSubmission struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
	Website     string `json:"website,omitempty"`
	StartedAtMs int64  `json:"form_started_at,omitempty"`
}
