package changes

import (
	"net/http"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrChangeNotFound, Status: http.StatusNotFound},
	{Error: ErrShortDescriptionRequired, Status: http.StatusBadRequest},
	{Error: ErrInvalidType, Status: http.StatusBadRequest},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the changes module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new changes handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers change routes (view_service_console).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/changes", func(r chi.Router) {
		r.Use(httputil.RequirePermission(domain.PermViewServiceConsole))
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// CreateChangeRequest represents the request body for raising a change.
type CreateChangeRequest struct {
	ShortDescription string `json:"short_description" validate:"required,max=500"`
	Type             string `json:"type" validate:"omitempty,oneof=Standard Normal Emergency"`
	Status           string `json:"status" validate:"omitempty,oneof=Pending Approved 'In Progress' Completed Rejected"`
	AssignedTo       string `json:"assigned_to" validate:"max=255"`
	PlannedStartDate string `json:"planned_start_date" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateChangeRequest represents the request body for updating a change.
type UpdateChangeRequest struct {
	ShortDescription *string `json:"short_description" validate:"omitempty,min=1,max=500"`
	Type             *string `json:"type" validate:"omitempty,oneof=Standard Normal Emergency"`
	Status           *string `json:"status" validate:"omitempty,oneof=Pending Approved 'In Progress' Completed Rejected"`
	AssignedTo       *string `json:"assigned_to" validate:"omitempty,max=255"`
	PlannedStartDate *string `json:"planned_start_date" validate:"omitempty,datetime=2006-01-02"`
}

// List handles GET /changes?status=&type=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		Status: domain.ChangeStatus(q.Get("status")),
		Type:   domain.ChangeType(q.Get("type")),
	}

	changes, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, changes)
}

// Get handles GET /changes/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	change, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, change)
}

// Create handles POST /changes.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateChangeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	change, err := h.service.Create(r.Context(), ChangeInput{
		ShortDescription: req.ShortDescription,
		Type:             domain.ChangeType(req.Type),
		Status:           domain.ChangeStatus(req.Status),
		AssignedTo:       req.AssignedTo,
		PlannedStartDate: req.PlannedStartDate,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusCreated, change)
}

// Update handles PATCH /changes/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateChangeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	patch := ChangePatch{
		ShortDescription: req.ShortDescription,
		AssignedTo:       req.AssignedTo,
		PlannedStartDate: req.PlannedStartDate,
	}
	if req.Type != nil {
		t := domain.ChangeType(*req.Type)
		patch.Type = &t
	}
	if req.Status != nil {
		s := domain.ChangeStatus(*req.Status)
		patch.Status = &s
	}

	change, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, change)
}

// Delete handles DELETE /changes/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.NoContent(w)
}
