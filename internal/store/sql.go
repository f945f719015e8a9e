package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/foliohq/folio/internal/model"
)

// SQLStore is the relational implementation of Store, backed by SQLite
// (modernc, pure Go) or Postgres (pgx). Queries are written with ? bindvars
// and rebound per driver.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
}

type dialect struct {
	name      string
	serialPK  string
	boolType  string
	timeType  string
	falseExpr string
}

var dialects = map[string]dialect{
	"sqlite": {
		name:      "sqlite",
		serialPK:  "INTEGER PRIMARY KEY AUTOINCREMENT",
		boolType:  "INTEGER",
		timeType:  "DATETIME",
		falseExpr: "0",
	},
	"postgres": {
		name:      "postgres",
		serialPK:  "BIGSERIAL PRIMARY KEY",
		boolType:  "BOOLEAN",
		timeType:  "TIMESTAMPTZ",
		falseExpr: "FALSE",
	},
}

// OpenSQLite opens (or creates) the SQLite database under dataDir. Pass an
// empty string for an in-memory database, used by tests.
func OpenSQLite(dataDir string) (*SQLStore, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "folio.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLStore{db: db, dialect: dialects["sqlite"]}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// OpenPostgres connects to a Postgres database using a pgx DSN.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLStore{db: db, dialect: dialects["postgres"]}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Admins
// ---------------------------------------------------------------------------

// CreateAdmin inserts a new admin account. The ID, CreatedAt, and UpdatedAt
// fields on admin are populated after a successful insert.
func (s *SQLStore) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	if existing, err := s.GetAdminByEmail(ctx, admin.Email); err == nil && existing != nil {
		return fmt.Errorf("admin %q: %w", admin.Email, ErrConflict)
	}

	if s.dialect.name == "postgres" {
		q := s.db.Rebind(`INSERT INTO admins
			(email, password_hash, display_name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?) RETURNING id`)
		if err := s.db.QueryRowxContext(ctx, q,
			admin.Email, admin.PasswordHash, admin.DisplayName, admin.CreatedAt, admin.UpdatedAt,
		).Scan(&admin.ID); err != nil {
			return fmt.Errorf("insert admin: %w", err)
		}
		return nil
	}

	result, err := s.db.ExecContext(ctx, `INSERT INTO admins
		(email, password_hash, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		admin.Email, admin.PasswordHash, admin.DisplayName, admin.CreatedAt, admin.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get admin id: %w", err)
	}
	admin.ID = id
	return nil
}

// GetAdminByEmail returns an admin by exact email match.
func (s *SQLStore) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	q := s.db.Rebind("SELECT * FROM admins WHERE email = ?")
	if err := s.db.GetContext(ctx, &admin, q, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &admin, nil
}

// GetAdminByID returns an admin by ID.
func (s *SQLStore) GetAdminByID(ctx context.Context, id int64) (*model.Admin, error) {
	var admin model.Admin
	q := s.db.Rebind("SELECT * FROM admins WHERE id = ?")
	if err := s.db.GetContext(ctx, &admin, q, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all admin accounts ordered by email.
func (s *SQLStore) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins, "SELECT * FROM admins ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin account exists. Used for
// first-run detection.
func (s *SQLStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// UpdateAdminPassword replaces the stored password hash for an admin.
func (s *SQLStore) UpdateAdminPassword(ctx context.Context, id int64, passwordHash string) error {
	now := time.Now().UTC()
	q := s.db.Rebind("UPDATE admins SET password_hash = ?, updated_at = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, passwordHash, now, id)
	if err != nil {
		return fmt.Errorf("update admin password: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admin password rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAdminLastLogin sets the last_login_at timestamp for an admin.
func (s *SQLStore) UpdateAdminLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	q := s.db.Rebind("UPDATE admins SET last_login_at = ?, updated_at = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, now, now, id)
	if err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admin last login rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// projectRow is a flat struct that maps 1:1 to the projects table columns.
// Structured fields are stored as JSON text.
type projectRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Slug         string    `db:"slug"`
	Description  string    `db:"description"`
	StackJSON    string    `db:"stack_json"`
	TagsJSON     string    `db:"tags_json"`
	Tech         string    `db:"tech"`
	Image        string    `db:"image"`
	ImagesJSON   string    `db:"images_json"`
	LinksJSON    string    `db:"links_json"`
	Category     string    `db:"category"`
	MetricsJSON  string    `db:"metrics_json"`
	FeaturesJSON string    `db:"features_json"`
	Duration     string    `db:"duration"`
	Client       string    `db:"client"`
	OrderIndex   int       `db:"order_index"`
	IsFeatured   bool      `db:"is_featured"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func projectRowFromModel(p *model.Project) (projectRow, error) {
	stack, err := json.Marshal(orEmptySlice(p.Stack))
	if err != nil {
		return projectRow{}, fmt.Errorf("marshal stack: %w", err)
	}
	tags, err := json.Marshal(orEmptySlice(p.Tags))
	if err != nil {
		return projectRow{}, fmt.Errorf("marshal tags: %w", err)
	}
	images, err := json.Marshal(orEmptySlice(p.Images))
	if err != nil {
		return projectRow{}, fmt.Errorf("marshal images: %w", err)
	}
	links, err := json.Marshal(p.Links)
	if err != nil {
		return projectRow{}, fmt.Errorf("marshal links: %w", err)
	}
	metrics, err := json.Marshal(orEmptyMap(p.Metrics))
	if err != nil {
		return projectRow{}, fmt.Errorf("marshal metrics: %w", err)
	}
	features, err := json.Marshal(orEmptySlice(p.Features))
	if err != nil {
		return projectRow{}, fmt.Errorf("marshal features: %w", err)
	}
	return projectRow{
		ID:           p.ID,
		Title:        p.Title,
		Slug:         p.Slug,
		Description:  p.Description,
		StackJSON:    string(stack),
		TagsJSON:     string(tags),
		Tech:         p.Tech,
		Image:        p.Image,
		ImagesJSON:   string(images),
		LinksJSON:    string(links),
		Category:     p.Category,
		MetricsJSON:  string(metrics),
		FeaturesJSON: string(features),
		Duration:     p.Duration,
		Client:       p.Client,
		OrderIndex:   p.OrderIndex,
		IsFeatured:   p.IsFeatured,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}, nil
}

func (r projectRow) toModel() (model.Project, error) {
	p := model.Project{
		ID:          r.ID,
		Title:       r.Title,
		Slug:        r.Slug,
		Description: r.Description,
		Tech:        r.Tech,
		Image:       r.Image,
		Category:    r.Category,
		Duration:    r.Duration,
		Client:      r.Client,
		OrderIndex:  r.OrderIndex,
		IsFeatured:  r.IsFeatured,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.StackJSON), &p.Stack); err != nil {
		return model.Project{}, fmt.Errorf("unmarshal stack: %w", err)
	}
	if err := json.Unmarshal([]byte(r.TagsJSON), &p.Tags); err != nil {
		return model.Project{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(r.ImagesJSON), &p.Images); err != nil {
		return model.Project{}, fmt.Errorf("unmarshal images: %w", err)
	}
	if err := json.Unmarshal([]byte(r.LinksJSON), &p.Links); err != nil {
		return model.Project{}, fmt.Errorf("unmarshal links: %w", err)
	}
	if err := json.Unmarshal([]byte(r.MetricsJSON), &p.Metrics); err != nil {
		return model.Project{}, fmt.Errorf("unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(r.FeaturesJSON), &p.Features); err != nil {
		return model.Project{}, fmt.Errorf("unmarshal features: %w", err)
	}
	return p, nil
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

const projectOrderClause = "ORDER BY order_index ASC, created_at DESC, id DESC"

// ListProjects returns all projects ordered by order_index ascending, newest
// first among equal order.
func (s *SQLStore) ListProjects(ctx context.Context) ([]model.Project, error) {
	return s.selectProjects(ctx, "SELECT * FROM projects "+projectOrderClause)
}

// ListPublicProjects returns all projects for the unauthenticated mirror,
// featured entries first.
func (s *SQLStore) ListPublicProjects(ctx context.Context) ([]model.Project, error) {
	return s.selectProjects(ctx,
		"SELECT * FROM projects ORDER BY is_featured DESC, order_index ASC, created_at DESC, id DESC")
}

func (s *SQLStore) selectProjects(ctx context.Context, query string) ([]model.Project, error) {
	var rows []projectRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	projects := make([]model.Project, 0, len(rows))
	for _, r := range rows {
		p, err := r.toModel()
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// GetProject returns a project by ID.
func (s *SQLStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var row projectRow
	q := s.db.Rebind("SELECT * FROM projects WHERE id = ?")
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	p, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject persists a new project. An ID is assigned when the caller
// did not supply one; the slug must be unique across the collection.
func (s *SQLStore) CreateProject(ctx context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	taken, err := s.slugTaken(ctx, p.Slug, "")
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("slug %q: %w", p.Slug, ErrConflict)
	}

	row, err := projectRowFromModel(p)
	if err != nil {
		return err
	}

	const q = `INSERT INTO projects
		(id, title, slug, description, stack_json, tags_json, tech, image, images_json,
		 links_json, category, metrics_json, features_json, duration, client,
		 order_index, is_featured, created_at, updated_at)
		VALUES
		(:id, :title, :slug, :description, :stack_json, :tags_json, :tech, :image, :images_json,
		 :links_json, :category, :metrics_json, :features_json, :duration, :client,
		 :order_index, :is_featured, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// UpdateProject merges patch onto the stored project and persists the
// result. Fields absent from the patch are preserved.
func (s *SQLStore) UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	existing, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(existing)
	existing.UpdatedAt = time.Now().UTC()

	if patch.Slug != nil {
		taken, err := s.slugTaken(ctx, existing.Slug, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("slug %q: %w", existing.Slug, ErrConflict)
		}
	}

	row, err := projectRowFromModel(existing)
	if err != nil {
		return nil, err
	}

	const q = `UPDATE projects SET
		title = :title, slug = :slug, description = :description,
		stack_json = :stack_json, tags_json = :tags_json, tech = :tech, image = :image,
		images_json = :images_json, links_json = :links_json, category = :category,
		metrics_json = :metrics_json, features_json = :features_json,
		duration = :duration, client = :client, order_index = :order_index,
		is_featured = :is_featured, updated_at = :updated_at
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update project rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return existing, nil
}

// DeleteProject removes a project permanently. There is no recovery path.
func (s *SQLStore) DeleteProject(ctx context.Context, id string) error {
	q := s.db.Rebind("DELETE FROM projects WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderProjects applies all order-index updates in a single transaction.
// Any unknown ID rolls back the whole batch; no partial reordering is
// observable.
func (s *SQLStore) ReorderProjects(ctx context.Context, entries []model.OrderEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	q := tx.Rebind("UPDATE projects SET order_index = ?, updated_at = ? WHERE id = ?")
	for _, e := range entries {
		result, err := tx.ExecContext(ctx, q, e.OrderIndex, now, e.ID)
		if err != nil {
			return fmt.Errorf("reorder project %s: %w", e.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("reorder rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("project %s: %w", e.ID, ErrNotFound)
		}
	}

	return tx.Commit()
}

func (s *SQLStore) slugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	var count int
	q := s.db.Rebind("SELECT COUNT(*) FROM projects WHERE slug = ? AND id <> ?")
	if err := s.db.GetContext(ctx, &count, q, slug, excludeID); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return count > 0, nil
}

// ---------------------------------------------------------------------------
// Customizations
// ---------------------------------------------------------------------------

type customizationRow struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	Type      string    `db:"type"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r customizationRow) toModel() model.Customization {
	return model.Customization{
		Key:       r.Key,
		Value:     coerceValue(r.Value, r.Type),
		Type:      r.Type,
		UpdatedAt: r.UpdatedAt,
	}
}

// ListCustomizations returns all global key/value overrides with values
// coerced to their native types.
func (s *SQLStore) ListCustomizations(ctx context.Context) ([]model.Customization, error) {
	var rows []customizationRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM site_customizations ORDER BY key`); err != nil {
		return nil, fmt.Errorf("list customizations: %w", err)
	}
	out := make([]model.Customization, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// GetCustomization returns a single override by key.
func (s *SQLStore) GetCustomization(ctx context.Context, key string) (*model.Customization, error) {
	var row customizationRow
	q := s.db.Rebind(`SELECT * FROM site_customizations WHERE key = ?`)
	if err := s.db.GetContext(ctx, &row, q, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get customization: %w", err)
	}
	c := row.toModel()
	return &c, nil
}

// UpsertCustomization inserts or fully replaces the value stored under key.
func (s *SQLStore) UpsertCustomization(ctx context.Context, key string, value any, valueType string) (*model.Customization, error) {
	encoded, err := encodeValue(value, valueType)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	q := s.db.Rebind(`INSERT INTO site_customizations (key, value, type, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, type = excluded.type, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, key, encoded, valueType, now); err != nil {
		return nil, fmt.Errorf("upsert customization: %w", err)
	}

	return &model.Customization{
		Key:       key,
		Value:     coerceValue(encoded, valueType),
		Type:      valueType,
		UpdatedAt: now,
	}, nil
}

// GetProjectSettings returns the settings blob for a project. A project with
// no stored row yields empty settings, not an error.
func (s *SQLStore) GetProjectSettings(ctx context.Context, projectID string) (*model.ProjectSettings, error) {
	var raw string
	q := s.db.Rebind(`SELECT settings_json FROM project_customizations WHERE project_id = ?`)
	if err := s.db.GetContext(ctx, &raw, q, projectID); err != nil {
		if err == sql.ErrNoRows {
			return &model.ProjectSettings{ProjectID: projectID, Settings: map[string]any{}}, nil
		}
		return nil, fmt.Errorf("get project settings: %w", err)
	}

	settings := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, fmt.Errorf("unmarshal project settings: %w", err)
	}
	return &model.ProjectSettings{ProjectID: projectID, Settings: settings}, nil
}

// UpsertProjectSettings fully replaces the settings blob for a project.
func (s *SQLStore) UpsertProjectSettings(ctx context.Context, projectID string, settings map[string]any) (*model.ProjectSettings, error) {
	if settings == nil {
		settings = map[string]any{}
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("marshal project settings: %w", err)
	}
	now := time.Now().UTC()

	q := s.db.Rebind(`INSERT INTO project_customizations (project_id, settings_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (project_id) DO UPDATE SET settings_json = excluded.settings_json, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, projectID, string(raw), now); err != nil {
		return nil, fmt.Errorf("upsert project settings: %w", err)
	}

	return &model.ProjectSettings{ProjectID: projectID, Settings: settings}, nil
}

// ---------------------------------------------------------------------------
// Activity log
// ---------------------------------------------------------------------------

// LogActivity appends an entry to the activity log. Callers treat failures
// as non-fatal.
func (s *SQLStore) LogActivity(ctx context.Context, action, details string) error {
	q := s.db.Rebind(`INSERT INTO activity_logs (action, details, created_at) VALUES (?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, action, details, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}
