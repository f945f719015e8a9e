package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/server"
	"github.com/foliohq/folio/internal/service"
	"github.com/foliohq/folio/internal/store"
)

const (
	testEmail    = "admin@example.com"
	testPassword = "supersecretpassword"
)

// newBackend spins up a full API server over an in-memory store with one
// seeded admin, and returns its base URL.
func newBackend(t *testing.T) string {
	t.Helper()

	st, err := store.OpenSQLite("")
	if err != nil {
		t.Fatalf("store.OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	admin := &model.Admin{Email: testEmail, PasswordHash: string(hash), DisplayName: "Test Admin"}
	if err := st.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authSvc, err := service.NewAuthService(st, "client-test-secret", time.Hour, logger)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	srv := server.New(server.DefaultConfig(), st, authSvc, nil, logger)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts.URL
}

func newClient(t *testing.T, baseURL string) (*Client, string) {
	t.Helper()
	tokenPath := filepath.Join(t.TempDir(), "token")
	return New(baseURL, NewSession(tokenPath)), tokenPath
}

func login(t *testing.T, c *Client) {
	t.Helper()
	if err := c.Login(context.Background(), testEmail, testPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestLogin_PopulatesSession(t *testing.T) {
	baseURL := newBackend(t)
	c, tokenPath := newClient(t, baseURL)

	login(t, c)

	if c.Session().Token() == "" {
		t.Error("no token in session after login")
	}
	if _, err := os.Stat(tokenPath); err != nil {
		t.Errorf("token not persisted: %v", err)
	}
	admin := c.Session().Admin()
	if admin == nil || admin.Email != testEmail {
		t.Errorf("admin = %+v, want %s", admin, testEmail)
	}

	activity := c.Session().Activity()
	if len(activity) != 1 || activity[0].Action != "login" {
		t.Errorf("activity = %+v, want a single login entry", activity)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	baseURL := newBackend(t)
	c, _ := newClient(t, baseURL)

	err := c.Login(context.Background(), testEmail, "nottherightone")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != 401 {
		t.Errorf("status = %d, want 401", apiErr.Status)
	}
	if c.Session().Token() != "" {
		t.Error("token set despite failed login")
	}
}

func TestLogout_ClearsEverything(t *testing.T) {
	baseURL := newBackend(t)
	c, tokenPath := newClient(t, baseURL)

	login(t, c)
	c.Logout()

	if c.Session().Token() != "" {
		t.Error("token survived logout")
	}
	if c.Session().Admin() != nil {
		t.Error("admin survived logout")
	}
	if len(c.Session().Activity()) != 0 {
		t.Error("activity survived logout")
	}
	if _, err := os.Stat(tokenPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("persisted token survived logout: %v", err)
	}
}

func TestBootstrap_NoStoredToken(t *testing.T) {
	baseURL := newBackend(t)
	c, _ := newClient(t, baseURL)

	active, err := c.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if active {
		t.Error("Bootstrap reported an active session with no stored token")
	}
}

func TestBootstrap_RestoresSession(t *testing.T) {
	baseURL := newBackend(t)
	c, tokenPath := newClient(t, baseURL)
	login(t, c)

	// A second client over the same token file revalidates and restores.
	fresh := New(baseURL, NewSession(tokenPath))
	active, err := fresh.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if !active {
		t.Fatal("Bootstrap did not restore the session")
	}
	admin := fresh.Session().Admin()
	if admin == nil || admin.Email != testEmail {
		t.Errorf("admin = %+v, want %s", admin, testEmail)
	}
}

func TestBootstrap_RejectedTokenClears(t *testing.T) {
	baseURL := newBackend(t)
	c, tokenPath := newClient(t, baseURL)

	if err := os.WriteFile(tokenPath, []byte("stale-or-forged-token"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	active, err := c.Bootstrap(context.Background())
	if err == nil {
		t.Fatal("Bootstrap accepted a forged token")
	}
	if active {
		t.Error("Bootstrap reported active after rejection")
	}
	if c.Session().Token() != "" {
		t.Error("rejected token left in session")
	}
	if _, statErr := os.Stat(tokenPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("rejected token left on disk")
	}
}

func TestProjectMirror_FollowsWrites(t *testing.T) {
	baseURL := newBackend(t)
	c, _ := newClient(t, baseURL)
	login(t, c)
	ctx := context.Background()

	created, warnings, err := c.CreateProject(ctx, map[string]any{
		"title": "Mirrored",
		"stack": []string{"Go"},
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}

	projects := c.Session().Projects()
	if len(projects) != 1 || projects[0].ID != created.ID {
		t.Fatalf("mirror = %+v, want the created project", projects)
	}

	if _, _, err := c.UpdateProject(ctx, created.ID, map[string]any{"title": "Renamed"}); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if got := c.Session().Projects()[0].Title; got != "Renamed" {
		t.Errorf("mirror title = %q, want Renamed", got)
	}

	if err := c.DeleteProject(ctx, created.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if got := c.Session().Projects(); len(got) != 0 {
		t.Errorf("mirror = %+v after delete, want empty", got)
	}
}

func TestProjectMirror_UnchangedOnFailure(t *testing.T) {
	baseURL := newBackend(t)
	c, _ := newClient(t, baseURL)
	login(t, c)
	ctx := context.Background()

	if _, _, err := c.CreateProject(ctx, map[string]any{"title": "Keep", "slug": "keep"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	// Slug conflict: the server rejects, the mirror must not change.
	_, _, err := c.CreateProject(ctx, map[string]any{"title": "Clash", "slug": "keep"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 409 {
		t.Fatalf("err = %v, want 409 APIError", err)
	}
	if got := c.Session().Projects(); len(got) != 1 {
		t.Errorf("mirror = %d projects after failed create, want 1", len(got))
	}
}

func TestCreateProject_SurfacesWarnings(t *testing.T) {
	baseURL := newBackend(t)
	c, _ := newClient(t, baseURL)
	login(t, c)

	_, warnings, err := c.CreateProject(context.Background(), map[string]any{
		"title": "Odd Payload",
		"stack": "not-an-array",
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one dropped-field warning", warnings)
	}
}

func TestReorderProjects_RefreshesMirror(t *testing.T) {
	baseURL := newBackend(t)
	c, _ := newClient(t, baseURL)
	login(t, c)
	ctx := context.Background()

	a, _, err := c.CreateProject(ctx, map[string]any{"title": "A", "order_index": 0})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	b, _, err := c.CreateProject(ctx, map[string]any{"title": "B", "order_index": 1})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	err = c.ReorderProjects(ctx, []model.OrderEntry{
		{ID: a.ID, OrderIndex: 1},
		{ID: b.ID, OrderIndex: 0},
	})
	if err != nil {
		t.Fatalf("ReorderProjects: %v", err)
	}

	projects := c.Session().Projects()
	if len(projects) != 2 || projects[0].ID != b.ID {
		t.Errorf("mirror order = %+v, want B first", projects)
	}
}

func TestCustomizationMirror(t *testing.T) {
	baseURL := newBackend(t)
	c, _ := newClient(t, baseURL)
	login(t, c)
	ctx := context.Background()

	if _, err := c.SetCustomization(ctx, "accent", "#ff6600", "color"); err != nil {
		t.Fatalf("SetCustomization: %v", err)
	}
	got, ok := c.Session().Customization("accent")
	if !ok || got.Value != "#ff6600" {
		t.Errorf("mirror = %+v/%v, want #ff6600", got, ok)
	}

	project, _, err := c.CreateProject(ctx, map[string]any{"title": "Host"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := c.SaveProjectSettings(ctx, project.ID, map[string]any{"layout": "wide"}); err != nil {
		t.Fatalf("SaveProjectSettings: %v", err)
	}
	if got := c.Session().ProjectSettings(project.ID); got["layout"] != "wide" {
		t.Errorf("settings mirror = %v, want layout wide", got)
	}
}

func TestActivity_RingBufferCap(t *testing.T) {
	s := NewSession(filepath.Join(t.TempDir(), "token"))

	for i := 0; i < activityLimit+10; i++ {
		s.Record("action", "")
	}

	activity := s.Activity()
	if len(activity) != activityLimit {
		t.Errorf("len(activity) = %d, want %d", len(activity), activityLimit)
	}
}

func TestProjectSettings_ReturnsCopy(t *testing.T) {
	s := NewSession(filepath.Join(t.TempDir(), "token"))
	s.setProjectSettings("p1", map[string]any{"theme": "dark"})

	got := s.ProjectSettings("p1")
	got["theme"] = "light"
	got["extra"] = true

	again := s.ProjectSettings("p1")
	if again["theme"] != "dark" {
		t.Errorf("theme = %v, want dark; caller mutation leaked into the session", again["theme"])
	}
	if _, ok := again["extra"]; ok {
		t.Error("caller-added key leaked into the session")
	}
}
