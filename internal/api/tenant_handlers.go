package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/textback/textback/internal/database/models"
)

// tenantRequest is the JSON request body for creating/updating a tenant.
type tenantRequest struct {
	Kind             string `json:"kind"`
	ParentID         *int64 `json:"parent_id"`
	Name             string `json:"name"`
	Category         string `json:"category"`
	Number           string `json:"number"`
	ForwardingNumber string `json:"forwarding_number"`
	Tier             string `json:"tier"`
	OrderingLink     string `json:"ordering_link"`
	QuoteLink        string `json:"quote_link"`
	FAQ              string `json:"faq"`
	OwnerEmail       string `json:"owner_email"`
	OwnerPushToken   string `json:"owner_push_token"`
	OwnerPushOS      string `json:"owner_push_os"`
	Enabled          *bool  `json:"enabled"`
}

// tenantResponse is the JSON response for a single tenant.
type tenantResponse struct {
	ID               int64  `json:"id"`
	Kind             string `json:"kind"`
	ParentID         *int64 `json:"parent_id"`
	Name             string `json:"name"`
	Category         string `json:"category"`
	Number           string `json:"number"`
	ForwardingNumber string `json:"forwarding_number"`
	Tier             string `json:"tier"`
	OrderingLink     string `json:"ordering_link"`
	QuoteLink        string `json:"quote_link"`
	FAQ              string `json:"faq"`
	OwnerEmail       string `json:"owner_email"`
	OwnerPushToken   string `json:"owner_push_token"`
	OwnerPushOS      string `json:"owner_push_os"`
	Enabled          bool   `json:"enabled"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// toTenantResponse converts a models.Tenant to the API response.
func toTenantResponse(t *models.Tenant) tenantResponse {
	return tenantResponse{
		ID:               t.ID,
		Kind:             t.Kind,
		ParentID:         t.ParentID,
		Name:             t.Name,
		Category:         t.Category,
		Number:           t.Number,
		ForwardingNumber: t.ForwardingNumber,
		Tier:             t.Tier,
		OrderingLink:     t.OrderingLink,
		QuoteLink:        t.QuoteLink,
		FAQ:              t.FAQ,
		OwnerEmail:       t.OwnerEmail,
		OwnerPushToken:   t.OwnerPushToken,
		OwnerPushOS:      t.OwnerPushOS,
		Enabled:          t.Enabled,
		CreatedAt:        t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        t.UpdatedAt.Format(time.RFC3339),
	}
}

// handleListTenants returns all tenants.
func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.tenants.List(r.Context())
	if err != nil {
		slog.Error("list tenants: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]tenantResponse, len(tenants))
	for i := range tenants {
		items[i] = toTenantResponse(&tenants[i])
	}

	writeJSON(w, http.StatusOK, items)
}

// handleCreateTenant creates a new tenant.
func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if errMsg := validateTenantRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	tier := req.Tier
	if tier == "" {
		tier = models.TierBasic
	}

	tenant := &models.Tenant{
		Kind:             req.Kind,
		ParentID:         req.ParentID,
		Name:             req.Name,
		Category:         req.Category,
		Number:           req.Number,
		ForwardingNumber: req.ForwardingNumber,
		Tier:             tier,
		OrderingLink:     req.OrderingLink,
		QuoteLink:        req.QuoteLink,
		FAQ:              req.FAQ,
		OwnerEmail:       req.OwnerEmail,
		OwnerPushToken:   req.OwnerPushToken,
		OwnerPushOS:      req.OwnerPushOS,
		Enabled:          enabled,
	}

	if err := s.tenants.Create(r.Context(), tenant); err != nil {
		slog.Error("create tenant: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Re-fetch to get timestamps populated by the database.
	created, err := s.tenants.GetByID(r.Context(), tenant.ID)
	if err != nil || created == nil {
		slog.Error("create tenant: failed to re-fetch", "error", err, "tenant_id", tenant.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("tenant created", "tenant_id", created.ID, "number", created.Number)

	writeJSON(w, http.StatusCreated, toTenantResponse(created))
}

// handleGetTenant returns a single tenant by ID.
func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	id, err := parseTenantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	tenant, err := s.tenants.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("get tenant: failed to query", "error", err, "tenant_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tenant == nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}

// handleUpdateTenant updates an existing tenant.
func (s *Server) handleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	id, err := parseTenantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	existing, err := s.tenants.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("update tenant: failed to query", "error", err, "tenant_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	var req tenantRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if errMsg := validateTenantRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	existing.Kind = req.Kind
	existing.ParentID = req.ParentID
	existing.Name = req.Name
	existing.Category = req.Category
	existing.Number = req.Number
	existing.ForwardingNumber = req.ForwardingNumber
	if req.Tier != "" {
		existing.Tier = req.Tier
	}
	existing.OrderingLink = req.OrderingLink
	existing.QuoteLink = req.QuoteLink
	existing.FAQ = req.FAQ
	existing.OwnerEmail = req.OwnerEmail
	existing.OwnerPushToken = req.OwnerPushToken
	existing.OwnerPushOS = req.OwnerPushOS
	if req.Enabled != nil {
		existing.Enabled = *req.Enabled
	}

	if err := s.tenants.Update(r.Context(), existing); err != nil {
		slog.Error("update tenant: failed to update", "error", err, "tenant_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	updated, err := s.tenants.GetByID(r.Context(), id)
	if err != nil || updated == nil {
		slog.Error("update tenant: failed to re-fetch", "error", err, "tenant_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("tenant updated", "tenant_id", id)

	writeJSON(w, http.StatusOK, toTenantResponse(updated))
}

// handleDeleteTenant deletes a tenant by ID.
func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	id, err := parseTenantID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	existing, err := s.tenants.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("delete tenant: failed to query", "error", err, "tenant_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	if err := s.tenants.Delete(r.Context(), id); err != nil {
		slog.Error("delete tenant: failed to delete", "error", err, "tenant_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("tenant deleted", "tenant_id", id, "number", existing.Number)

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// parseTenantID extracts the {id} URL parameter.
func parseTenantID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
