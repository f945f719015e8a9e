package store

import (
	"context"

	"github.com/foliohq/folio/internal/model"
)

// AdminStore manages administrator accounts. Admins are created offline
// (CLI) and mutated only by the password-change flow; no handler deletes
// them.
type AdminStore interface {
	CreateAdmin(ctx context.Context, admin *model.Admin) error
	GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	GetAdminByID(ctx context.Context, id int64) (*model.Admin, error)
	ListAdmins(ctx context.Context) ([]model.Admin, error)
	HasAnyAdmin(ctx context.Context) (bool, error)
	UpdateAdminPassword(ctx context.Context, id int64, passwordHash string) error
	UpdateAdminLastLogin(ctx context.Context, id int64) error
}

// ProjectStore manages the portfolio projects collection.
//
// ListProjects orders by order_index ascending, tie-broken by creation
// recency (newest first). ListPublicProjects is the unauthenticated mirror;
// the relational variant orders it featured-first.
type ProjectStore interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	ListPublicProjects(ctx context.Context) ([]model.Project, error)
	GetProject(ctx context.Context, id string) (*model.Project, error)
	CreateProject(ctx context.Context, p *model.Project) error
	UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error)
	DeleteProject(ctx context.Context, id string) error
	ReorderProjects(ctx context.Context, entries []model.OrderEntry) error
}

// CustomizationStore manages global key/value overrides and per-project
// settings blobs. Writes are upserts: each fully replaces the prior value.
type CustomizationStore interface {
	ListCustomizations(ctx context.Context) ([]model.Customization, error)
	GetCustomization(ctx context.Context, key string) (*model.Customization, error)
	UpsertCustomization(ctx context.Context, key string, value any, valueType string) (*model.Customization, error)
	GetProjectSettings(ctx context.Context, projectID string) (*model.ProjectSettings, error)
	UpsertProjectSettings(ctx context.Context, projectID string, settings map[string]any) (*model.ProjectSettings, error)
}

// Store is the full persistence contract behind the HTTP handlers. Both the
// relational and the file-backed implementations satisfy it; operations a
// variant cannot support return ErrUnsupported.
type Store interface {
	AdminStore
	ProjectStore
	CustomizationStore

	// LogActivity records an admin action. Best-effort: callers ignore the
	// returned error. The file variant does not persist activity at all.
	LogActivity(ctx context.Context, action, details string) error

	Close() error
}
