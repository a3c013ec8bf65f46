package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/accounts/internal/domain"
	"github.com/utafrali/accounts/internal/service"
	apperrors "github.com/utafrali/accounts/pkg/errors"
	"github.com/utafrali/accounts/pkg/httputil"
	"github.com/utafrali/accounts/pkg/pagination"
	"github.com/utafrali/accounts/pkg/validator"
)

// UserHandler handles HTTP requests for user endpoints.
type UserHandler struct {
	service *service.UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// UpdateUserRequest is the JSON request body for a partial profile update.
// Empty strings clear a field. Avatar keys must live under the caller's
// avatars/<id>/ prefix.
type UpdateUserRequest struct {
	Name   *string `json:"name" validate:"omitempty,max=100"`
	Email  *string `json:"email" validate:"omitempty,clearable_email"`
	Phone  *string `json:"phone" validate:"omitempty,max=32"`
	Avatar *string `json:"avatar" validate:"omitempty,max=512"`
}

// RoleCount is one row of the role breakdown.
type RoleCount struct {
	Role  string `json:"role"`
	Count int    `json:"count"`
}

// CountResponse is the body of GET /api/v1/users/count.
type CountResponse struct {
	Total  int         `json:"total"`
	ByRole []RoleCount `json:"by_role"`
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	h.writeUser(w, r, userID, "Profile retrieved successfully!")
}

// UpdateMe handles PATCH /api/v1/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	user, err := h.service.Update(r.Context(), userID, service.UpdateUserInput{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Avatar: req.Avatar,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Profile updated successfully!", UserResponse{User: user})
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	q := r.URL.Query()

	result, err := h.service.List(r.Context(), service.ListUsersInput{
		Page:   params.Page,
		Limit:  params.Limit,
		Search: q.Get("search"),
		Role:   q.Get("role"),
		Omit:   q.Get("omit"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WritePage(w, "Users retrieved successfully!", result.Users, result.Meta)
}

// Count handles GET /api/v1/users/count
func (h *UserHandler) Count(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.CountByRole(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := CountResponse{ByRole: make([]RoleCount, 0, len(counts))}
	for _, role := range domain.ValidRoles() {
		resp.ByRole = append(resp.ByRole, RoleCount{Role: role, Count: counts[role]})
		resp.Total += counts[role]
	}

	httputil.WriteSuccess(w, http.StatusOK, "Users counted successfully!", resp)
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	h.writeUser(w, r, id.String(), "User retrieved successfully!")
}

// Delete handles DELETE /api/v1/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "User deleted successfully!", nil)
}

// writeUser looks up userID honoring the omit query parameter.
func (h *UserHandler) writeUser(w http.ResponseWriter, r *http.Request, userID, message string) {
	omit, err := domain.ParseOmit(r.URL.Query().Get("omit"))
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return
	}

	user, err := h.service.GetByID(r.Context(), userID, omit...)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if user == nil {
		httputil.WriteError(w, r, apperrors.NotFoundMessage("User doesn't exist"), h.logger)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, message, UserResponse{User: user})
}
