package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the admin module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new admin handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers administration routes (manage_users).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Patch("/{id}", h.UpdateUser)
			r.Delete("/{id}", h.DeleteUser)
		})
		r.Route("/groups", func(r chi.Router) {
			r.Get("/", h.ListGroups)
			r.Post("/", h.CreateGroup)
			r.Get("/{id}", h.GetGroup)
			r.Patch("/{id}", h.UpdateGroup)
			r.Delete("/{id}", h.DeleteGroup)
		})
	})
}

// RegisterDirectoryRoutes registers read-only group listing for any signed-in user.
func (h *Handler) RegisterDirectoryRoutes(r chi.Router) {
	r.Get("/groups", h.ListGroups)
}

// CreateUserRequest represents the request body for creating a user.
type CreateUserRequest struct {
	Name     string   `json:"name" validate:"required,max=255"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Role     string   `json:"role" validate:"omitempty,oneof=customer agent admin vendor"`
	Groups   []string `json:"groups"`
	Password string   `json:"password" validate:"omitempty,min=8"`
}

// UpdateUserRequest represents the request body for updating a user.
type UpdateUserRequest struct {
	Name     *string   `json:"name" validate:"omitempty,min=1,max=255"`
	Email    *string   `json:"email" validate:"omitempty,email"`
	Role     *string   `json:"role" validate:"omitempty,oneof=customer agent admin vendor"`
	Groups   *[]string `json:"groups"`
	Password *string   `json:"password" validate:"omitempty,min=8"`
}

// ListUsers handles GET /admin/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.Success(w, http.StatusOK, users)
}

// GetUser handles GET /admin/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.Success(w, http.StatusOK, user)
}

// CreateUser handles POST /admin/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Role:     domain.Role(req.Role),
		Groups:   req.Groups,
		Password: req.Password,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.Success(w, http.StatusCreated, user)
}

// UpdateUser handles PATCH /admin/users/{id}.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Groups:   req.Groups,
		Password: req.Password,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		input.Role = &role
	}

	user, err := h.service.UpdateUser(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.Success(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /admin/users/{id}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// GroupRequest represents the request body for creating a resolver group.
type GroupRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
	Lead        string `json:"lead"`
}

// UpdateGroupRequest represents the request body for updating a resolver group.
type UpdateGroupRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	Lead        *string `json:"lead"`
}

// ListGroups handles GET /admin/groups and GET /groups.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGroups(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.Success(w, http.StatusOK, groups)
}

// GetGroup handles GET /admin/groups/{id}.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.Success(w, http.StatusOK, group)
}

// CreateGroup handles POST /admin/groups.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	group, err := h.service.CreateGroup(r.Context(), CreateGroupInput(req))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.Success(w, http.StatusCreated, group)
}

// UpdateGroup handles PATCH /admin/groups/{id}.
func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req UpdateGroupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	group, err := h.service.UpdateGroup(r.Context(), chi.URLParam(r, "id"), UpdateGroupInput(req))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.Success(w, http.StatusOK, group)
}

// DeleteGroup handles DELETE /admin/groups/{id}.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteGroup(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrGroupNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrNameTaken), errors.Is(err, ErrGroupNameTaken):
		httputil.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrInvalidRole), errors.Is(err, ErrUnknownGroup):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("internal error", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}
