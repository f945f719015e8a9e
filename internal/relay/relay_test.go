package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/foliohq/folio/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_EmptyURLDisables(t *testing.T) {
	if r := New("", discardLogger()); r != nil {
		t.Errorf("New(\"\") = %v, want nil", r)
	}
}

func TestNilRelay_SafeToUse(t *testing.T) {
	var r *Relay
	r.Send(model.ContactSubmission{Name: "x", Message: "y"})
	r.Close() // must not panic
}

func TestSend_DeliversEvent(t *testing.T) {
	var mu sync.Mutex
	var received []event

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("webhook decode: %v", err)
		}
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer webhook.Close()

	r := New(webhook.URL, discardLogger())
	r.Send(model.ContactSubmission{
		Name:    "A Visitor",
		Email:   "visitor@example.com",
		Subject: "Hi",
		Message: "Hello there",
	})
	r.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
	ev := received[0]
	if ev.Kind != "contact.submission" {
		t.Errorf("kind = %q, want contact.submission", ev.Kind)
	}
	if ev.ID == "" {
		t.Error("event has no ID")
	}
	if ev.Name != "A Visitor" || ev.Email != "visitor@example.com" || ev.Message != "Hello there" {
		t.Errorf("event fields = %+v, want the submitted values", ev)
	}
	if ev.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not set")
	}
}

func TestSend_FailureNeverSurfaces(t *testing.T) {
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer webhook.Close()

	r := New(webhook.URL, discardLogger())
	r.Send(model.ContactSubmission{Name: "x", Email: "x@example.com", Message: "y"})
	r.Close() // a rejected delivery is logged, not returned

	// An unreachable endpoint behaves the same.
	dead := New("http://127.0.0.1:1/webhook", discardLogger())
	dead.Send(model.ContactSubmission{Name: "x", Email: "x@example.com", Message: "y"})
	dead.Close()
}

func TestClose_WaitsForInflight(t *testing.T) {
	release := make(chan struct{})
	var delivered bool
	var mu sync.Mutex

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		mu.Lock()
		delivered = true
		mu.Unlock()
	}))
	defer webhook.Close()

	r := New(webhook.URL, discardLogger())
	r.Send(model.ContactSubmission{Name: "x", Email: "x@example.com", Message: "y"})

	close(release)
	r.Close()

	mu.Lock()
	defer mu.Unlock()
	if !delivered {
		t.Error("Close returned before the in-flight delivery finished")
	}
}
