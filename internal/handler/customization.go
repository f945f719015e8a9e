package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/store"
)

// CustomizationHandler serves the site customization endpoints: global
// key/value overrides and per-project settings blobs.
type CustomizationHandler struct {
	store  store.Store
	logger *slog.Logger
}

// NewCustomizationHandler creates a new CustomizationHandler.
func NewCustomizationHandler(st store.Store, logger *slog.Logger) *CustomizationHandler {
	return &CustomizationHandler{store: st, logger: logger}
}

// List returns all global customizations.
// GET /api/customizations
func (h *CustomizationHandler) List(w http.ResponseWriter, r *http.Request) {
	customizations, err := h.store.ListCustomizations(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err, "Customizations not found")
		return
	}
	writeJSON(w, http.StatusOK, customizations)
}

// PublicList is the unauthenticated mirror. Deployments without
// customization storage return an empty list here rather than erroring.
// GET /api/public/customizations
func (h *CustomizationHandler) PublicList(w http.ResponseWriter, r *http.Request) {
	customizations, err := h.store.ListCustomizations(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err, "Customizations not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customizations": customizations})
}

// GetByKey returns a single customization by key.
// GET /api/customizations/key/{key}
func (h *CustomizationHandler) GetByKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	c, err := h.store.GetCustomization(r.Context(), key)
	if err != nil {
		writeStoreError(w, h.logger, err, "Customization not found: "+key)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type upsertCustomizationRequest struct {
	Value any    `json:"value"`
	Type  string `json:"type"`
}

// UpsertByKey inserts or fully replaces the value stored under a key.
// PUT /api/customizations/key/{key}
func (h *CustomizationHandler) UpsertByKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req upsertCustomizationRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = model.TypeString
	}
	if !model.ValidCustomizationType(req.Type) {
		writeError(w, http.StatusBadRequest, "Unknown customization type: "+req.Type)
		return
	}

	c, err := h.store.UpsertCustomization(r.Context(), key, req.Value, req.Type)
	if err != nil {
		writeStoreError(w, h.logger, err, "Customization not found: "+key)
		return
	}

	h.logActivity(r, "customization.set", key)
	writeJSON(w, http.StatusOK, c)
}

// GetProjectSettings returns the per-project settings blob; a project with
// no stored settings yields an empty object, not an error.
// GET /api/customizations/projects/{projectId}
func (h *CustomizationHandler) GetProjectSettings(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")

	settings, err := h.store.GetProjectSettings(r.Context(), projectID)
	if err != nil {
		writeStoreError(w, h.logger, err, "Project not found: "+projectID)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type upsertProjectSettingsRequest struct {
	Settings map[string]any `json:"settings"`
}

// UpsertProjectSettings fully replaces the settings blob for a project.
// PUT /api/customizations/projects/{projectId}
func (h *CustomizationHandler) UpsertProjectSettings(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")

	var req upsertProjectSettingsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings, err := h.store.UpsertProjectSettings(r.Context(), projectID, req.Settings)
	if err != nil {
		writeStoreError(w, h.logger, err, "Project not found: "+projectID)
		return
	}

	h.logActivity(r, "customization.project", projectID)
	writeJSON(w, http.StatusOK, settings)
}

func (h *CustomizationHandler) logActivity(r *http.Request, action, details string) {
	if err := h.store.LogActivity(r.Context(), action, details); err != nil {
		h.logger.Debug("activity log write failed", "action", action, "error", err)
	}
}
