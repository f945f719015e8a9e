package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/service"
	"github.com/foliohq/folio/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-integration-tests"
	testPassword  = "supersecretpassword"
	testEmail     = "admin@example.com"
)

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server  *Server
	store   store.Store
	authSvc *service.AuthService
}

// newTestEnv creates a fresh test environment backed by an in-memory SQLite
// store and a fully wired Server.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.OpenSQLite("") // in-memory
	if err != nil {
		t.Fatalf("store.OpenSQLite: %v", err)
	}
	return newTestEnvWith(t, st)
}

// newFileTestEnv creates an environment on the file-backed store, used to
// exercise the degraded variant.
func newFileTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.OpenFile(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("store.OpenFile: %v", err)
	}
	return newTestEnvWith(t, st)
}

func newTestEnvWith(t *testing.T, st store.Store) *testEnv {
	t.Helper()
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authSvc, err := service.NewAuthService(st, testJWTSecret, time.Hour, logger)
	if err != nil {
		t.Fatalf("service.NewAuthService: %v", err)
	}

	srv := New(DefaultConfig(), st, authSvc, nil, logger)

	return &testEnv{server: srv, store: st, authSvc: authSvc}
}

// seedAdmin creates the default admin account.
func (e *testEnv) seedAdmin(t *testing.T) *model.Admin {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	admin := &model.Admin{
		Email:        testEmail,
		PasswordHash: string(hash),
		DisplayName:  "Test Admin",
	}
	if err := e.store.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return admin
}

// adminToken logs in as the default admin and returns the session token.
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	body := jsonBody(t, map[string]string{"email": testEmail, "password": testPassword})
	rr := e.do(t, "POST", "/api/auth/login", body, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Token string `json:"token"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Token == "" {
		t.Fatal("adminToken: got empty token from login")
	}
	return resp.Token
}

// do executes an HTTP request against the test server and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

// doAuth executes an authenticated HTTP request using the admin JWT.
func (e *testEnv) doAuth(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeJSON(t, rr, &resp)
	return resp.Error.Message
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/health", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want ok", resp["status"])
	}
	if resp["timestamp"] == "" {
		t.Error("timestamp missing from health response")
	}
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	seeded := env.seedAdmin(t)

	body := jsonBody(t, map[string]string{"email": testEmail, "password": testPassword})
	rr := env.do(t, "POST", "/api/auth/login", body, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Token string `json:"token"`
		Admin struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"admin"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Token == "" {
		t.Error("login returned no token")
	}
	if resp.Admin.ID != seeded.ID || resp.Admin.Email != testEmail {
		t.Errorf("admin = %+v, want id %d / %s", resp.Admin, seeded.ID, testEmail)
	}
}

func TestLogin_GenericFailureMessage(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	wrongPw := env.do(t, "POST", "/api/auth/login",
		jsonBody(t, map[string]string{"email": testEmail, "password": "nottherightone"}), nil)
	unknown := env.do(t, "POST", "/api/auth/login",
		jsonBody(t, map[string]string{"email": "ghost@example.com", "password": testPassword}), nil)

	assertStatus(t, wrongPw, http.StatusUnauthorized)
	assertStatus(t, unknown, http.StatusUnauthorized)

	msgA := errorMessage(t, wrongPw)
	msgB := errorMessage(t, unknown)
	if msgA != msgB {
		t.Errorf("failure messages differ: %q vs %q (must not reveal which field was wrong)", msgA, msgB)
	}
}

func TestLogin_Validation(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/auth/login",
		jsonBody(t, map[string]string{"email": "not-an-email", "password": "x"}), nil)
	assertStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "POST", "/api/auth/login",
		jsonBody(t, map[string]string{"email": testEmail}), nil)
	assertStatus(t, rr, http.StatusBadRequest)
}

// ---------------------------------------------------------------------------
// Authorization boundary
// ---------------------------------------------------------------------------

func TestProtectedRoutes_NoToken(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/projects", nil, nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestProtectedRoutes_BadToken(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doAuth(t, "GET", "/api/projects", nil, "garbage-token")
	assertStatus(t, rr, http.StatusForbidden)
}

func TestProtectedRoutes_ForeignToken(t *testing.T) {
	env := newTestEnv(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	other, err := service.NewAuthService(env.store, "some-other-secret", time.Hour, logger)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	token, err := other.IssueToken(1, testEmail)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	rr := env.doAuth(t, "GET", "/api/projects", nil, token)
	assertStatus(t, rr, http.StatusForbidden)
}

func TestPublicRoutes_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/public/projects", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "GET", "/api/public/customizations", nil, nil)
	assertStatus(t, rr, http.StatusOK)
}

// ---------------------------------------------------------------------------
// Profile and password change
// ---------------------------------------------------------------------------

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "GET", "/api/auth/profile", nil, token)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]any
	decodeJSON(t, rr, &resp)
	if resp["email"] != testEmail {
		t.Errorf("email = %v, want %s", resp["email"], testEmail)
	}
}

func TestChangePassword_Flow(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	// Wrong current password.
	rr := env.doAuth(t, "PATCH", "/api/auth/password",
		jsonBody(t, map[string]string{"currentPassword": "wrong", "newPassword": "anothersecret"}), token)
	assertStatus(t, rr, http.StatusUnauthorized)

	// New password equals current.
	rr = env.doAuth(t, "PATCH", "/api/auth/password",
		jsonBody(t, map[string]string{"currentPassword": testPassword, "newPassword": testPassword}), token)
	assertStatus(t, rr, http.StatusBadRequest)

	// Too short.
	rr = env.doAuth(t, "PATCH", "/api/auth/password",
		jsonBody(t, map[string]string{"currentPassword": testPassword, "newPassword": "short"}), token)
	assertStatus(t, rr, http.StatusBadRequest)

	// Success.
	rr = env.doAuth(t, "PATCH", "/api/auth/password",
		jsonBody(t, map[string]string{"currentPassword": testPassword, "newPassword": "anothersecret"}), token)
	assertStatus(t, rr, http.StatusOK)

	// The old token stays valid: sessions are stateless.
	rr = env.doAuth(t, "GET", "/api/auth/profile", nil, token)
	assertStatus(t, rr, http.StatusOK)

	// The new password is what login now accepts.
	rr = env.do(t, "POST", "/api/auth/login",
		jsonBody(t, map[string]string{"email": testEmail, "password": testPassword}), nil)
	assertStatus(t, rr, http.StatusUnauthorized)
	rr = env.do(t, "POST", "/api/auth/login",
		jsonBody(t, map[string]string{"email": testEmail, "password": "anothersecret"}), nil)
	assertStatus(t, rr, http.StatusOK)
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

func TestProjectLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	// Create: slug derived from the title when omitted.
	rr := env.doAuth(t, "POST", "/api/projects",
		jsonBody(t, map[string]any{
			"title":       "My First Project",
			"description": "hello",
			"stack":       []string{"Go"},
		}), token)
	assertStatus(t, rr, http.StatusCreated)

	var created model.Project
	decodeJSON(t, rr, &created)
	if created.ID == "" {
		t.Fatal("created project has no ID")
	}
	if created.Slug != "my-first-project" {
		t.Errorf("slug = %q, want my-first-project", created.Slug)
	}

	// Appears in the authenticated list and the public mirror.
	rr = env.doAuth(t, "GET", "/api/projects", nil, token)
	assertStatus(t, rr, http.StatusOK)
	var list []model.Project
	decodeJSON(t, rr, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("list = %+v, want the created project", list)
	}

	rr = env.do(t, "GET", "/api/public/projects", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &list)
	if len(list) != 1 {
		t.Errorf("public list has %d projects, want 1", len(list))
	}

	// Partial update preserves unspecified fields.
	rr = env.doAuth(t, "PUT", "/api/projects/"+created.ID,
		jsonBody(t, map[string]any{"title": "Renamed"}), token)
	assertStatus(t, rr, http.StatusOK)
	var updated model.Project
	decodeJSON(t, rr, &updated)
	if updated.Title != "Renamed" {
		t.Errorf("title = %q, want Renamed", updated.Title)
	}
	if updated.Description != "hello" {
		t.Errorf("description = %q; update must not clear untouched fields", updated.Description)
	}

	// Delete, then further operations 404.
	rr = env.doAuth(t, "DELETE", "/api/projects/"+created.ID, nil, token)
	assertStatus(t, rr, http.StatusOK)
	var delResp map[string]any
	decodeJSON(t, rr, &delResp)
	if delResp["success"] != true {
		t.Errorf("delete response = %v, want success true", delResp)
	}

	rr = env.doAuth(t, "PUT", "/api/projects/"+created.ID,
		jsonBody(t, map[string]any{"title": "Ghost"}), token)
	assertStatus(t, rr, http.StatusNotFound)
	rr = env.doAuth(t, "DELETE", "/api/projects/"+created.ID, nil, token)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestProjectCreate_RequiresTitle(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "POST", "/api/projects",
		jsonBody(t, map[string]any{"description": "no title"}), token)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestProjectCreate_SlugConflict(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "POST", "/api/projects",
		jsonBody(t, map[string]any{"title": "One", "slug": "shared"}), token)
	assertStatus(t, rr, http.StatusCreated)

	rr = env.doAuth(t, "POST", "/api/projects",
		jsonBody(t, map[string]any{"title": "Two", "slug": "shared"}), token)
	assertStatus(t, rr, http.StatusConflict)
}

func TestProjectCreate_MalformedFieldWarns(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	// stack should be an array of strings; a bare string is dropped with a
	// warning rather than failing the request.
	rr := env.doAuth(t, "POST", "/api/projects",
		jsonBody(t, map[string]any{
			"title": "Warned",
			"stack": "not-an-array",
			"tags":  []string{"ok"},
		}), token)
	assertStatus(t, rr, http.StatusCreated)

	var resp struct {
		Project  model.Project `json:"project"`
		Warnings []string      `json:"warnings"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", resp.Warnings)
	}
	if len(resp.Project.Stack) != 0 {
		t.Errorf("stack = %v, want dropped", resp.Project.Stack)
	}
	if len(resp.Project.Tags) != 1 {
		t.Errorf("tags = %v; valid fields must still apply", resp.Project.Tags)
	}
}

func TestProjectReorder(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	var ids []string
	for _, title := range []string{"Alpha", "Beta"} {
		rr := env.doAuth(t, "POST", "/api/projects",
			jsonBody(t, map[string]any{"title": title}), token)
		assertStatus(t, rr, http.StatusCreated)
		var p model.Project
		decodeJSON(t, rr, &p)
		ids = append(ids, p.ID)
	}

	rr := env.doAuth(t, "POST", "/api/projects/order",
		jsonBody(t, []map[string]any{
			{"id": ids[0], "order_index": 1},
			{"id": ids[1], "order_index": 0},
		}), token)
	assertStatus(t, rr, http.StatusOK)

	rr = env.doAuth(t, "GET", "/api/projects", nil, token)
	var list []model.Project
	decodeJSON(t, rr, &list)
	if list[0].ID != ids[1] {
		t.Errorf("first project = %s, want %s after reorder", list[0].ID, ids[1])
	}

	// Empty batch is a validation error.
	rr = env.doAuth(t, "POST", "/api/projects/order", jsonBody(t, []map[string]any{}), token)
	assertStatus(t, rr, http.StatusBadRequest)

	// Unknown ID rejects the whole batch.
	rr = env.doAuth(t, "POST", "/api/projects/order",
		jsonBody(t, []map[string]any{{"id": "no-such-id", "order_index": 0}}), token)
	assertStatus(t, rr, http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// Customizations
// ---------------------------------------------------------------------------

func TestCustomizationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "PUT", "/api/customizations/key/columns",
		jsonBody(t, map[string]any{"value": 3, "type": "number"}), token)
	assertStatus(t, rr, http.StatusOK)

	var c model.Customization
	decodeJSON(t, rr, &c)
	if c.Value != float64(3) {
		t.Errorf("value = %v (%T), want 3", c.Value, c.Value)
	}

	rr = env.doAuth(t, "GET", "/api/customizations/key/columns", nil, token)
	assertStatus(t, rr, http.StatusOK)

	rr = env.doAuth(t, "GET", "/api/customizations/key/missing", nil, token)
	assertStatus(t, rr, http.StatusNotFound)

	rr = env.doAuth(t, "PUT", "/api/customizations/key/bad",
		jsonBody(t, map[string]any{"value": "x", "type": "nonsense"}), token)
	assertStatus(t, rr, http.StatusBadRequest)

	// Type mismatch between value and declared type.
	rr = env.doAuth(t, "PUT", "/api/customizations/key/bad",
		jsonBody(t, map[string]any{"value": "three", "type": "number"}), token)
	assertStatus(t, rr, http.StatusBadRequest)

	// Public mirror wraps the list.
	rr = env.do(t, "GET", "/api/public/customizations", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var pub struct {
		Customizations []model.Customization `json:"customizations"`
	}
	decodeJSON(t, rr, &pub)
	if len(pub.Customizations) != 1 {
		t.Errorf("public customizations = %d, want 1", len(pub.Customizations))
	}
}

func TestProjectSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "POST", "/api/projects",
		jsonBody(t, map[string]any{"title": "Settings Host"}), token)
	assertStatus(t, rr, http.StatusCreated)
	var p model.Project
	decodeJSON(t, rr, &p)

	// Unset settings come back as an empty default, not 404.
	rr = env.doAuth(t, "GET", "/api/customizations/projects/"+p.ID, nil, token)
	assertStatus(t, rr, http.StatusOK)
	var settings model.ProjectSettings
	decodeJSON(t, rr, &settings)
	if len(settings.Settings) != 0 {
		t.Errorf("settings = %v, want empty default", settings.Settings)
	}

	rr = env.doAuth(t, "PUT", "/api/customizations/projects/"+p.ID,
		jsonBody(t, map[string]any{"settings": map[string]any{"layout": "wide"}}), token)
	assertStatus(t, rr, http.StatusOK)

	rr = env.doAuth(t, "GET", "/api/customizations/projects/"+p.ID, nil, token)
	decodeJSON(t, rr, &settings)
	if settings.Settings["layout"] != "wide" {
		t.Errorf("layout = %v, want wide", settings.Settings["layout"])
	}
}

// ---------------------------------------------------------------------------
// File-variant degradation
// ---------------------------------------------------------------------------

func TestFileVariant_UnsupportedOperations(t *testing.T) {
	env := newFileTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "POST", "/api/projects",
		jsonBody(t, map[string]any{"title": "Stored In A File"}), token)
	assertStatus(t, rr, http.StatusCreated)
	var p model.Project
	decodeJSON(t, rr, &p)

	rr = env.doAuth(t, "POST", "/api/projects/order",
		jsonBody(t, []map[string]any{{"id": p.ID, "order_index": 0}}), token)
	assertStatus(t, rr, http.StatusNotImplemented)

	rr = env.doAuth(t, "PUT", "/api/customizations/key/theme",
		jsonBody(t, map[string]any{"value": "dark", "type": "string"}), token)
	assertStatus(t, rr, http.StatusNotImplemented)

	// Reads degrade gracefully instead of erroring.
	rr = env.do(t, "GET", "/api/public/customizations", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	rr = env.doAuth(t, "GET", "/api/customizations/projects/"+p.ID, nil, token)
	assertStatus(t, rr, http.StatusOK)
}

// ---------------------------------------------------------------------------
// Contact form
// ---------------------------------------------------------------------------

func validContactBody(t *testing.T, extra map[string]any) *bytes.Buffer {
	t.Helper()
	body := map[string]any{
		"name":    "A Visitor",
		"email":   "visitor@example.com",
		"subject": "Hi",
		"message": "I saw your work and wanted to say hello.",
	}
	for k, v := range extra {
		body[k] = v
	}
	return jsonBody(t, body)
}

func TestContact_Accepts(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/contact", validContactBody(t, nil), nil)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["message"] == "" {
		t.Error("no acknowledgement message in contact response")
	}
}

func TestContact_Validation(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/contact",
		jsonBody(t, map[string]any{"email": "visitor@example.com", "message": "no name"}), nil)
	assertStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "POST", "/api/contact", validContactBody(t, map[string]any{"email": "nope"}), nil)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestContact_HoneypotSilentAccept(t *testing.T) {
	env := newTestEnv(t)

	// A filled honeypot field gets the same 200 and the same message as a
	// real submission.
	rr := env.do(t, "POST", "/api/contact", validContactBody(t, map[string]any{"website": "spam.example"}), nil)
	assertStatus(t, rr, http.StatusOK)

	real := env.do(t, "POST", "/api/contact", validContactBody(t, nil), nil)
	var a, b map[string]string
	decodeJSON(t, rr, &a)
	decodeJSON(t, real, &b)
	if a["message"] != b["message"] {
		t.Errorf("honeypot response %q differs from genuine response %q", a["message"], b["message"])
	}
}

func TestContact_RateLimited(t *testing.T) {
	env := newTestEnv(t)

	limit := DefaultConfig().ContactRatePerMin
	for i := 0; i < limit; i++ {
		rr := env.do(t, "POST", "/api/contact", validContactBody(t, nil), nil)
		assertStatus(t, rr, http.StatusOK)
	}

	rr := env.do(t, "POST", "/api/contact", validContactBody(t, nil), nil)
	assertStatus(t, rr, http.StatusTooManyRequests)
}
