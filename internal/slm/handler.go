package slm

import (
	"net/http"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrSLANotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidType, Status: http.StatusBadRequest},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: ErrInvalidTarget, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for service level management.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new SLM handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers agreement routes. Reads need view_service_console,
// writes define_slas.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/slas", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httputil.RequirePermission(domain.PermViewServiceConsole))
			r.Get("/", h.List)
			r.Get("/summary", h.Summary)
			r.Get("/{id}", h.Get)
		})
		r.Group(func(r chi.Router) {
			r.Use(httputil.RequirePermission(domain.PermDefineSLAs))
			r.Post("/", h.Create)
			r.Patch("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// CreateSLARequest represents the request body for defining an agreement.
type CreateSLARequest struct {
	Name      string   `json:"name" validate:"max=255"`
	Type      string   `json:"type" validate:"omitempty,oneof=SLA OLA 'Underpinning Contract'"`
	Duration  string   `json:"duration" validate:"max=100"`
	Condition string   `json:"condition" validate:"max=255"`
	Target    *float64 `json:"target" validate:"omitempty,gte=0,lte=100"`
	Status    string   `json:"status" validate:"omitempty,oneof=Active Retired Draft"`
}

// UpdateSLARequest represents the request body for updating an agreement.
type UpdateSLARequest struct {
	Name      *string  `json:"name" validate:"omitempty,max=255"`
	Type      *string  `json:"type" validate:"omitempty,oneof=SLA OLA 'Underpinning Contract'"`
	Duration  *string  `json:"duration" validate:"omitempty,max=100"`
	Condition *string  `json:"condition" validate:"omitempty,max=255"`
	Target    *float64 `json:"target" validate:"omitempty,gte=0,lte=100"`
	Actual    *float64 `json:"actual" validate:"omitempty,gte=0,lte=100"`
	Status    *string  `json:"status" validate:"omitempty,oneof=Active Retired Draft"`
}

// List handles GET /slas.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	slas, err := h.service.List(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, slas)
}

// Summary handles GET /slas/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, summary)
}

// Get handles GET /slas/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sla, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, sla)
}

// Create handles POST /slas.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSLARequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	sla, err := h.service.Create(r.Context(), SLAInput{
		Name:      req.Name,
		Type:      domain.AgreementType(req.Type),
		Duration:  req.Duration,
		Condition: req.Condition,
		Target:    req.Target,
		Status:    domain.AgreementStatus(req.Status),
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusCreated, sla)
}

// Update handles PATCH /slas/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateSLARequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	patch := SLAPatch{
		Name:      req.Name,
		Duration:  req.Duration,
		Condition: req.Condition,
		Target:    req.Target,
		Actual:    req.Actual,
	}
	if req.Type != nil {
		t := domain.AgreementType(*req.Type)
		patch.Type = &t
	}
	if req.Status != nil {
		s := domain.AgreementStatus(*req.Status)
		patch.Status = &s
	}

	sla, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, sla)
}

// Delete handles DELETE /slas/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.NoContent(w)
}
