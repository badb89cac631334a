package identity

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/httputil"
	"github.com/bissquit/onestop-itsm/internal/pkg/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const loginLimiterName = "login"

// Handler handles HTTP requests for the identity module.
type Handler struct {
	service   *Service
	limiter   ratelimit.Limiter
	validator *validator.Validate
}

// NewHandler creates a new identity handler. limiter may be nil.
func NewHandler(service *Service, limiter ratelimit.Limiter) *Handler {
	return &Handler{
		service:   service,
		limiter:   limiter,
		validator: validator.New(),
	}
}

// RegisterRoutes registers identity routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
	})
}

// RegisterProtectedRoutes registers routes that require authentication.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/me", h.Me)
	r.Get("/access-control", h.AccessControl)
}

// LoginRequest represents login request body.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=72"`
	Portal   string `json:"portal" validate:"required,oneof=agent customer"`
}

// LoginResponse represents login response.
type LoginResponse struct {
	Token
	User *domain.User `json:"user"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if h.limiter != nil {
		key := ratelimit.ClientIP(r) + ":" + strings.ToLower(req.Username)
		if !ratelimit.Check(w, r, h.limiter, loginLimiterName, key) {
			return
		}
	}

	user, token, err := h.service.Login(r.Context(), LoginInput{
		Username: req.Username,
		Password: req.Password,
		Portal:   Portal(req.Portal),
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, LoginResponse{
		Token: *token,
		User:  user,
	})
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if userID == "" {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	httputil.Success(w, http.StatusOK, user)
}

// AccessControl handles GET /access-control.
func (h *Handler) AccessControl(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, domain.AccessMatrix())
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		httputil.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrWrongPortal):
		httputil.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidPortal):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("internal error", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}
