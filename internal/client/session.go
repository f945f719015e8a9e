package client

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/foliohq/folio/internal/model"
)

// activityLimit caps the in-memory activity ring buffer.
const activityLimit = 25

// ActivityEntry records one admin action for the dashboard's activity feed.
// Entries are ephemeral: they live only in the session.
type ActivityEntry struct {
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// AdminInfo is the client-side view of the authenticated admin.
type AdminInfo struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Session is the admin client's state container: the session token, the
// authenticated admin, and local mirrors of server data. The mirrors are a
// read-through, write-around cache — they mutate only after a successful
// server round trip and never originate state on their own.
//
// The token is the only durable piece: a non-empty token is persisted to
// tokenPath, an empty one removes the file. Everything else is re-fetched
// from the server on each bootstrap.
//
// Session is safe for concurrent use and carries no package-level state;
// construct one per admin surface and inject it.
type Session struct {
	mu        sync.Mutex
	tokenPath string

	token           string
	admin           *AdminInfo
	projects        []model.Project
	customizations  map[string]model.Customization
	projectSettings map[string]map[string]any
	activity        []ActivityEntry
}

// NewSession creates an empty session persisting its token at tokenPath.
func NewSession(tokenPath string) *Session {
	return &Session{
		tokenPath:       tokenPath,
		customizations:  map[string]model.Customization{},
		projectSettings: map[string]map[string]any{},
	}
}

// SetToken stores the session token and persists it. An empty token removes
// the persisted copy.
func (s *Session) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return s.persistTokenLocked()
}

func (s *Session) persistTokenLocked() error {
	if s.token == "" {
		if err := os.Remove(s.tokenPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return os.WriteFile(s.tokenPath, []byte(s.token), 0o600)
}

// Token returns the current session token, or empty when logged out.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// LoadStoredToken reads the persisted token from disk into the session.
// Returns the token, which is empty when none is stored.
func (s *Session) LoadStoredToken() (string, error) {
	raw, err := os.ReadFile(s.tokenPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = string(raw)
	return s.token, nil
}

// Clear resets every field and removes the persisted token. It is the sole
// teardown path, invoked on logout or when a stored token fails
// revalidation at startup.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.admin = nil
	s.projects = nil
	s.customizations = map[string]model.Customization{}
	s.projectSettings = map[string]map[string]any{}
	s.activity = nil
	_ = s.persistTokenLocked()
}

// Admin returns the authenticated admin, or nil when logged out.
func (s *Session) Admin() *AdminInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin == nil {
		return nil
	}
	a := *s.admin
	return &a
}

func (s *Session) setAdmin(a *AdminInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admin = a
}

// Projects returns a copy of the local projects mirror.
func (s *Session) Projects() []model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Project, len(s.projects))
	copy(out, s.projects)
	return out
}

func (s *Session) setProjects(projects []model.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = projects
}

func (s *Session) upsertProject(p model.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.projects {
		if s.projects[i].ID == p.ID {
			s.projects[i] = p
			return
		}
	}
	s.projects = append(s.projects, p)
}

func (s *Session) removeProject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.projects {
		if s.projects[i].ID == id {
			s.projects = append(s.projects[:i], s.projects[i+1:]...)
			return
		}
	}
}

// Customization returns the mirrored customization for key, if present.
func (s *Session) Customization(key string) (model.Customization, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customizations[key]
	return c, ok
}

func (s *Session) setCustomizations(all []model.Customization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customizations = make(map[string]model.Customization, len(all))
	for _, c := range all {
		s.customizations[c.Key] = c
	}
}

func (s *Session) setCustomization(c model.Customization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customizations[c.Key] = c
}

// ProjectSettings returns a copy of the mirrored settings for a project;
// absent projects yield an empty map.
func (s *Session) ProjectSettings(projectID string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.projectSettings[projectID]))
	for k, v := range s.projectSettings[projectID] {
		out[k] = v
	}
	return out
}

func (s *Session) setProjectSettings(projectID string, settings map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings == nil {
		settings = map[string]any{}
	}
	s.projectSettings[projectID] = settings
}

// Record appends an activity entry, keeping only the most recent
// activityLimit entries.
func (s *Session) Record(action, details string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, ActivityEntry{
		Action:    action,
		Details:   details,
		Timestamp: time.Now(),
	})
	if len(s.activity) > activityLimit {
		s.activity = s.activity[len(s.activity)-activityLimit:]
	}
}

// Activity returns a copy of the activity feed, newest last.
func (s *Session) Activity() []ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActivityEntry, len(s.activity))
	copy(out, s.activity)
	return out
}
