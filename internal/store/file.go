package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foliohq/folio/internal/model"
)

// FileStore is the flat-file implementation of Store, used for deployments
// without a database: admin records in admins.json and the project list in
// projects.json under a data directory.
//
// All operations are serialized behind a single mutex, so concurrent
// read-modify-write cycles cannot drop a writer's change. Reordering and
// customization writes are not available in this variant and return
// ErrUnsupported; customization reads degrade to empty defaults.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger

	// Admin records are loaded once at open and mutated in memory. Persisting
	// a password change is best-effort: some deployment targets have
	// ephemeral or read-only filesystems, and the change then holds for the
	// life of the process only.
	admins []model.Admin
}

// OpenFile opens the file-backed store rooted at dir, creating the directory
// and loading any existing admin records.
func OpenFile(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &FileStore{dir: dir, logger: logger}

	admins, err := readJSONFile[[]model.Admin](s.adminsPath())
	if err != nil {
		return nil, fmt.Errorf("load admins: %w", err)
	}
	s.admins = admins
	return s, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) adminsPath() string   { return filepath.Join(s.dir, "admins.json") }
func (s *FileStore) projectsPath() string { return filepath.Join(s.dir, "projects.json") }

// readJSONFile loads a JSON document, returning the zero value when the file
// does not exist yet.
func readJSONFile[T any](path string) (T, error) {
	var v T
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return v, nil
}

// writeJSONFile persists v atomically via a temp file and rename.
func writeJSONFile(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ---------------------------------------------------------------------------
// Admins
// ---------------------------------------------------------------------------

// CreateAdmin appends a new admin record and persists the admin file.
func (s *FileStore) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID int64
	for _, a := range s.admins {
		if a.Email == admin.Email {
			return fmt.Errorf("admin %q: %w", admin.Email, ErrConflict)
		}
		if a.ID > maxID {
			maxID = a.ID
		}
	}

	now := time.Now().UTC()
	admin.ID = maxID + 1
	admin.CreatedAt = now
	admin.UpdatedAt = now
	s.admins = append(s.admins, *admin)

	if err := writeJSONFile(s.adminsPath(), s.admins); err != nil {
		s.admins = s.admins[:len(s.admins)-1]
		return fmt.Errorf("persist admins: %w", err)
	}
	return nil
}

// GetAdminByEmail returns an admin by exact email match.
func (s *FileStore) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.admins {
		if s.admins[i].Email == email {
			a := s.admins[i]
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

// GetAdminByID returns an admin by ID.
func (s *FileStore) GetAdminByID(ctx context.Context, id int64) (*model.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.admins {
		if s.admins[i].ID == id {
			a := s.admins[i]
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

// ListAdmins returns all admin accounts.
func (s *FileStore) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Admin, len(s.admins))
	copy(out, s.admins)
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// HasAnyAdmin reports whether at least one admin record exists.
func (s *FileStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.admins) > 0, nil
}

// UpdateAdminPassword replaces the stored hash in memory and persists the
// admin file best-effort: a failed write is logged, not returned, since the
// validation already succeeded and the caller cannot act on a read-only
// filesystem.
func (s *FileStore) UpdateAdminPassword(ctx context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.admins {
		if s.admins[i].ID == id {
			s.admins[i].PasswordHash = passwordHash
			s.admins[i].UpdatedAt = time.Now().UTC()
			if err := writeJSONFile(s.adminsPath(), s.admins); err != nil {
				s.logger.Warn("password change not persisted; change holds until restart",
					"admin_id", id, "error", err)
			}
			return nil
		}
	}
	return ErrNotFound
}

// UpdateAdminLastLogin records the login time in memory; persistence is
// best-effort for the same reason as UpdateAdminPassword.
func (s *FileStore) UpdateAdminLastLogin(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.admins {
		if s.admins[i].ID == id {
			now := time.Now().UTC()
			s.admins[i].LastLoginAt = &now
			if err := writeJSONFile(s.adminsPath(), s.admins); err != nil {
				s.logger.Warn("last login not persisted", "admin_id", id, "error", err)
			}
			return nil
		}
	}
	return ErrNotFound
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// loadProjects re-reads the backing file on each call so reads always see
// the latest persisted state. Callers must hold s.mu.
func (s *FileStore) loadProjects() ([]model.Project, error) {
	projects, err := readJSONFile[[]model.Project](s.projectsPath())
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	return projects, nil
}

func sortProjects(projects []model.Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		a, b := projects[i], projects[j]
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// ListProjects returns all projects ordered by order_index ascending, newest
// first among equal order.
func (s *FileStore) ListProjects(ctx context.Context) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return nil, err
	}
	sortProjects(projects)
	return projects, nil
}

// ListPublicProjects returns the same ordering as ListProjects; the
// featured-first mirror is a relational-variant behavior.
func (s *FileStore) ListPublicProjects(ctx context.Context) ([]model.Project, error) {
	return s.ListProjects(ctx)
}

// GetProject returns a project by ID.
func (s *FileStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].ID == id {
			p := projects[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

// CreateProject appends a new project and rewrites the backing file. An ID
// is assigned when the caller did not supply one.
func (s *FileStore) CreateProject(ctx context.Context, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return err
	}

	for _, existing := range projects {
		if existing.ID == p.ID && p.ID != "" {
			return fmt.Errorf("project %s: %w", p.ID, ErrConflict)
		}
		if existing.Slug == p.Slug {
			return fmt.Errorf("slug %q: %w", p.Slug, ErrConflict)
		}
	}

	if p.ID == "" {
		p.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	projects = append(projects, *p)
	if err := writeJSONFile(s.projectsPath(), projects); err != nil {
		return fmt.Errorf("persist projects: %w", err)
	}
	return nil
}

// UpdateProject merges patch onto the stored project and rewrites the file.
func (s *FileStore) UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range projects {
		if projects[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrNotFound
	}

	merged := projects[idx]
	patch.Apply(&merged)
	merged.UpdatedAt = time.Now().UTC()

	if patch.Slug != nil {
		for i := range projects {
			if i != idx && projects[i].Slug == merged.Slug {
				return nil, fmt.Errorf("slug %q: %w", merged.Slug, ErrConflict)
			}
		}
	}

	projects[idx] = merged
	if err := writeJSONFile(s.projectsPath(), projects); err != nil {
		return nil, fmt.Errorf("persist projects: %w", err)
	}
	return &merged, nil
}

// DeleteProject removes a project permanently.
func (s *FileStore) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects()
	if err != nil {
		return err
	}

	idx := -1
	for i := range projects {
		if projects[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrNotFound
	}

	projects = append(projects[:idx], projects[idx+1:]...)
	if err := writeJSONFile(s.projectsPath(), projects); err != nil {
		return fmt.Errorf("persist projects: %w", err)
	}
	return nil
}

// ReorderProjects is not available without a transactional store.
func (s *FileStore) ReorderProjects(ctx context.Context, entries []model.OrderEntry) error {
	return fmt.Errorf("reorder projects: %w", ErrUnsupported)
}

// ---------------------------------------------------------------------------
// Customizations — reads degrade to defaults, writes are unsupported
// ---------------------------------------------------------------------------

// ListCustomizations returns an empty list in the file variant.
func (s *FileStore) ListCustomizations(ctx context.Context) ([]model.Customization, error) {
	return []model.Customization{}, nil
}

// GetCustomization always reports absence in the file variant.
func (s *FileStore) GetCustomization(ctx context.Context, key string) (*model.Customization, error) {
	return nil, ErrNotFound
}

// UpsertCustomization is not available in the file variant.
func (s *FileStore) UpsertCustomization(ctx context.Context, key string, value any, valueType string) (*model.Customization, error) {
	return nil, fmt.Errorf("upsert customization: %w", ErrUnsupported)
}

// GetProjectSettings returns the empty-settings default so clients degrade
// gracefully.
func (s *FileStore) GetProjectSettings(ctx context.Context, projectID string) (*model.ProjectSettings, error) {
	return &model.ProjectSettings{ProjectID: projectID, Settings: map[string]any{}}, nil
}

// UpsertProjectSettings is not available in the file variant.
func (s *FileStore) UpsertProjectSettings(ctx context.Context, projectID string, settings map[string]any) (*model.ProjectSettings, error) {
	return nil, fmt.Errorf("upsert project settings: %w", ErrUnsupported)
}

// LogActivity is a no-op; the file variant does not persist activity.
func (s *FileStore) LogActivity(ctx context.Context, action, details string) error {
	return nil
}
