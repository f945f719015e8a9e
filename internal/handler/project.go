package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/store"
)

// ProjectHandler serves the projects collection: authenticated CRUD plus
// reordering and the public read-only mirror.
type ProjectHandler struct {
	store  store.Store
	logger *slog.Logger
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(st store.Store, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{store: st, logger: logger}
}

// projectPayload is the wire form of a project create/update body. The
// structured fields decode as raw JSON so a malformed value drops that
// field with a warning instead of rejecting the whole request.
type projectPayload struct {
	Title       *string `json:"title"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	Tech        *string `json:"tech"`
	Image       *string `json:"image"`
	Category    *string `json:"category"`
	Duration    *string `json:"duration"`
	Client      *string `json:"client"`
	OrderIndex  *int    `json:"order_index"`
	IsFeatured  *bool   `json:"is_featured"`

	Stack    json.RawMessage `json:"stack"`
	Tags     json.RawMessage `json:"tags"`
	Images   json.RawMessage `json:"images"`
	Links    json.RawMessage `json:"links"`
	Metrics  json.RawMessage `json:"metrics"`
	Features json.RawMessage `json:"features"`
}

// toPatch converts the payload into a ProjectPatch, collecting a warning for
// every structured field that failed to parse.
func (p projectPayload) toPatch() (model.ProjectPatch, []string) {
	patch := model.ProjectPatch{
		Title:       p.Title,
		Slug:        p.Slug,
		Description: p.Description,
		Tech:        p.Tech,
		Image:       p.Image,
		Category:    p.Category,
		Duration:    p.Duration,
		Client:      p.Client,
		OrderIndex:  p.OrderIndex,
		IsFeatured:  p.IsFeatured,
	}

	var warnings []string
	warn := func(field string) {
		warnings = append(warnings, fmt.Sprintf("field %q contained invalid JSON and was ignored", field))
	}

	if p.Stack != nil {
		var v []string
		if err := json.Unmarshal(p.Stack, &v); err != nil {
			warn("stack")
		} else {
			patch.Stack = &v
		}
	}
	if p.Tags != nil {
		var v []string
		if err := json.Unmarshal(p.Tags, &v); err != nil {
			warn("tags")
		} else {
			patch.Tags = &v
		}
	}
	if p.Images != nil {
		var v []string
		if err := json.Unmarshal(p.Images, &v); err != nil {
			warn("images")
		} else {
			patch.Images = &v
		}
	}
	if p.Links != nil {
		var v model.ProjectLinks
		if err := json.Unmarshal(p.Links, &v); err != nil {
			warn("links")
		} else {
			patch.Links = &v
		}
	}
	if p.Metrics != nil {
		var v map[string]any
		if err := json.Unmarshal(p.Metrics, &v); err != nil {
			warn("metrics")
		} else {
			patch.Metrics = &v
		}
	}
	if p.Features != nil {
		var v []string
		if err := json.Unmarshal(p.Features, &v); err != nil {
			warn("features")
		} else {
			patch.Features = &v
		}
	}

	return patch, warnings
}

// withWarnings wraps a project response with any per-field diagnostics.
func withWarnings(p *model.Project, warnings []string) any {
	if len(warnings) == 0 {
		return p
	}
	return map[string]any{
		"project":  p,
		"warnings": warnings,
	}
}

// slugify derives a URL slug from a title when the caller did not supply one.
func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// List returns all projects for the admin dashboard.
// GET /api/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListProjects(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err, "Projects not found")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// PublicList returns the unauthenticated read-only mirror.
// GET /api/public/projects
func (h *ProjectHandler) PublicList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListPublicProjects(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err, "Projects not found")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// Create persists a new project, assigning an ID (and a slug derived from
// the title when absent).
// POST /api/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload projectPayload
	if err := readJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	patch, warnings := payload.toPatch()
	if patch.Title == nil || *patch.Title == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}

	var project model.Project
	patch.Apply(&project)
	if project.Slug == "" {
		project.Slug = slugify(project.Title)
	}

	if err := h.store.CreateProject(r.Context(), &project); err != nil {
		writeStoreError(w, h.logger, err, "Project not found")
		return
	}

	h.logActivity(r, "project.create", project.ID)
	writeJSON(w, http.StatusCreated, withWarnings(&project, warnings))
}

// Update merges a partial payload onto an existing project. Fields absent
// from the payload keep their stored values.
// PUT /api/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var payload projectPayload
	if err := readJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	patch, warnings := payload.toPatch()

	project, err := h.store.UpdateProject(r.Context(), id, patch)
	if err != nil {
		writeStoreError(w, h.logger, err, "Project not found: "+id)
		return
	}

	h.logActivity(r, "project.update", id)
	writeJSON(w, http.StatusOK, withWarnings(project, warnings))
}

// Delete removes a project permanently.
// DELETE /api/projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteProject(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, err, "Project not found: "+id)
		return
	}

	h.logActivity(r, "project.delete", id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Reorder applies a batch of order-index assignments as a single unit.
// POST /api/projects/order
func (h *ProjectHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var entries []model.OrderEntry
	if err := readJSON(r, &entries); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusBadRequest, "At least one order entry is required")
		return
	}

	if err := h.store.ReorderProjects(r.Context(), entries); err != nil {
		writeStoreError(w, h.logger, err, "Project not found")
		return
	}

	h.logActivity(r, "project.reorder", fmt.Sprintf("%d entries", len(entries)))
	writeJSON(w, http.StatusOK, map[string]any{"message": "Projects reordered"})
}

// logActivity records an admin action best-effort; failures never affect the
// request outcome.
func (h *ProjectHandler) logActivity(r *http.Request, action, details string) {
	if err := h.store.LogActivity(r.Context(), action, details); err != nil {
		h.logger.Debug("activity log write failed", "action", action, "error", err)
	}
}
