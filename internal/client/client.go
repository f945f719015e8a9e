// Package client is the Go admin client for the Folio API. It pairs an
// HTTP client with an injectable Session holding the token and local
// mirrors of server data.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/foliohq/folio/internal/model"
)

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client calls the Folio HTTP API on behalf of an admin session.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

// New creates a Client for the API at baseURL, bound to the given session.
func New(baseURL string, session *Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		session: session,
	}
}

// Session returns the underlying session state.
func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope model.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Message != "" {
			return &APIError{Status: resp.StatusCode, Message: envelope.Error.Message}
		}
		return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Session lifecycle
// ---------------------------------------------------------------------------

// Login authenticates and stores the session token and admin identity.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp struct {
		Token string `json:"token"`
		Admin struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"admin"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return err
	}

	if err := c.session.SetToken(resp.Token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	c.session.setAdmin(&AdminInfo{ID: resp.Admin.ID, Email: resp.Admin.Email})
	c.session.Record("login", resp.Admin.Email)
	return nil
}

// Logout clears all session state, including the persisted token. The token
// itself stays cryptographically valid server-side until its natural expiry.
func (c *Client) Logout() {
	c.session.Clear()
}

// Bootstrap restores a previous session: if a token is stored, it is
// revalidated by fetching the profile. A stored token is never trusted
// without that round trip; any failure clears all state so the caller falls
// back to the login view. Returns whether a session is active.
func (c *Client) Bootstrap(ctx context.Context) (bool, error) {
	token, err := c.session.LoadStoredToken()
	if err != nil {
		c.session.Clear()
		return false, err
	}
	if token == "" {
		return false, nil
	}

	admin, err := c.FetchProfile(ctx)
	if err != nil {
		c.session.Clear()
		return false, err
	}
	c.session.setAdmin(admin)
	return true, nil
}

// FetchProfile retrieves the authenticated admin's account details.
func (c *Client) FetchProfile(ctx context.Context) (*AdminInfo, error) {
	var admin AdminInfo
	if err := c.do(ctx, http.MethodGet, "/api/auth/profile", nil, &admin); err != nil {
		return nil, err
	}
	return &admin, nil
}

// ChangePassword rotates the admin's password.
func (c *Client) ChangePassword(ctx context.Context, current, newPassword string) error {
	err := c.do(ctx, http.MethodPatch, "/api/auth/password",
		map[string]string{"currentPassword": current, "newPassword": newPassword}, nil)
	if err != nil {
		return err
	}
	c.session.Record("password.change", "")
	return nil
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// projectResult decodes both response shapes: a bare project, or a
// {project, warnings} wrapper when the server dropped malformed fields.
type projectResult struct {
	Project  *model.Project `json:"project"`
	Warnings []string       `json:"warnings"`
}

func decodeProject(raw json.RawMessage) (*model.Project, []string, error) {
	var wrapped projectResult
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Project != nil {
		return wrapped.Project, wrapped.Warnings, nil
	}
	var p model.Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("decode project: %w", err)
	}
	return &p, nil, nil
}

// RefreshProjects re-fetches the project list and replaces the mirror.
func (c *Client) RefreshProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &projects); err != nil {
		return nil, err
	}
	c.session.setProjects(projects)
	return projects, nil
}

// CreateProject creates a project and mirrors it locally on success.
// Returned warnings name any payload fields the server dropped.
func (c *Client) CreateProject(ctx context.Context, payload map[string]any) (*model.Project, []string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/projects", payload, &raw); err != nil {
		return nil, nil, err
	}
	project, warnings, err := decodeProject(raw)
	if err != nil {
		return nil, nil, err
	}
	c.session.upsertProject(*project)
	c.session.Record("project.create", project.Title)
	return project, warnings, nil
}

// UpdateProject applies a partial update and mirrors the merged record.
func (c *Client) UpdateProject(ctx context.Context, id string, payload map[string]any) (*model.Project, []string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPut, "/api/projects/"+id, payload, &raw); err != nil {
		return nil, nil, err
	}
	project, warnings, err := decodeProject(raw)
	if err != nil {
		return nil, nil, err
	}
	c.session.upsertProject(*project)
	c.session.Record("project.update", project.Title)
	return project, warnings, nil
}

// DeleteProject deletes a project and drops it from the mirror.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/projects/"+id, nil, nil); err != nil {
		return err
	}
	c.session.removeProject(id)
	c.session.Record("project.delete", id)
	return nil
}

// ReorderProjects submits a batch of order-index assignments, then
// re-fetches the list so the mirror reflects the committed order.
func (c *Client) ReorderProjects(ctx context.Context, entries []model.OrderEntry) error {
	if err := c.do(ctx, http.MethodPost, "/api/projects/order", entries, nil); err != nil {
		return err
	}
	c.session.Record("project.reorder", fmt.Sprintf("%d entries", len(entries)))
	_, err := c.RefreshProjects(ctx)
	return err
}

// ---------------------------------------------------------------------------
// Customizations
// ---------------------------------------------------------------------------

// RefreshCustomizations re-fetches all global customizations into the mirror.
func (c *Client) RefreshCustomizations(ctx context.Context) ([]model.Customization, error) {
	var all []model.Customization
	if err := c.do(ctx, http.MethodGet, "/api/customizations", nil, &all); err != nil {
		return nil, err
	}
	c.session.setCustomizations(all)
	return all, nil
}

// SetCustomization upserts a global key/value override and mirrors it.
func (c *Client) SetCustomization(ctx context.Context, key string, value any, valueType string) (*model.Customization, error) {
	var result model.Customization
	err := c.do(ctx, http.MethodPut, "/api/customizations/key/"+key,
		map[string]any{"value": value, "type": valueType}, &result)
	if err != nil {
		return nil, err
	}
	c.session.setCustomization(result)
	c.session.Record("customization.set", key)
	return &result, nil
}

// FetchProjectSettings retrieves a project's settings blob and mirrors it.
func (c *Client) FetchProjectSettings(ctx context.Context, projectID string) (map[string]any, error) {
	var result model.ProjectSettings
	if err := c.do(ctx, http.MethodGet, "/api/customizations/projects/"+projectID, nil, &result); err != nil {
		return nil, err
	}
	c.session.setProjectSettings(projectID, result.Settings)
	return result.Settings, nil
}

// SaveProjectSettings replaces a project's settings blob and mirrors it.
func (c *Client) SaveProjectSettings(ctx context.Context, projectID string, settings map[string]any) error {
	var result model.ProjectSettings
	err := c.do(ctx, http.MethodPut, "/api/customizations/projects/"+projectID,
		map[string]any{"settings": settings}, &result)
	if err != nil {
		return err
	}
	c.session.setProjectSettings(projectID, result.Settings)
	c.session.Record("customization.project", projectID)
	return nil
}
