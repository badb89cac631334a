package incidents

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
	{Error: ErrShortDescriptionRequired, Status: http.StatusBadRequest},
	{Error: ErrCallerRequired, Status: http.StatusBadRequest},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: ErrInvalidPriority, Status: http.StatusBadRequest},
	{Error: ErrInvalidResolutionCode, Status: http.StatusBadRequest},
	{Error: ErrResolutionNotesRequired, Status: http.StatusBadRequest},
	{Error: ErrForbidden, Status: http.StatusForbidden},
	{Error: ErrForbiddenField, Status: http.StatusForbidden},
}

// Handler handles HTTP requests for incidents.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers incident routes. Every authenticated role may call
// them; the service applies the role filter and field rules.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/incidents", func(r chi.Router) {
		r.Get("/", h.List)
		r.With(httputil.RequirePermission(domain.PermCreateIncidents)).Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.With(httputil.RequirePermission(domain.PermEditIncidents)).Patch("/{id}", h.Update)
		r.Get("/{id}/activity", h.Activity)
	})
}

// CreateIncidentRequest represents the request body for filing an incident.
type CreateIncidentRequest struct {
	ShortDescription string `json:"short_description" validate:"required,max=255"`
	Description      string `json:"description" validate:"max=10000"`
	Caller           string `json:"caller" validate:"max=255"`
	AssignmentGroup  string `json:"assignment_group" validate:"max=255"`
	Status           string `json:"status" validate:"omitempty,oneof=New 'In Progress' 'On Hold' Resolved Closed"`
	Priority         int    `json:"priority" validate:"omitempty,min=1,max=4"`
	ResolutionCode   string `json:"resolution_code" validate:"max=255"`
	ResolutionNotes  string `json:"resolution_notes" validate:"max=10000"`
	Comment          string `json:"comment" validate:"max=10000"`
}

// UpdateIncidentRequest represents the request body for saving an incident.
// Omitted fields keep their stored values.
type UpdateIncidentRequest struct {
	ShortDescription *string `json:"short_description" validate:"omitempty,min=1,max=255"`
	Description      *string `json:"description" validate:"omitempty,max=10000"`
	Caller           *string `json:"caller" validate:"omitempty,min=1,max=255"`
	AssignmentGroup  *string `json:"assignment_group" validate:"omitempty,max=255"`
	Status           *string `json:"status" validate:"omitempty,oneof=New 'In Progress' 'On Hold' Resolved Closed"`
	Priority         *int    `json:"priority" validate:"omitempty,min=1,max=4"`
	ResolutionCode   *string `json:"resolution_code" validate:"omitempty,max=255"`
	ResolutionNotes  *string `json:"resolution_notes" validate:"omitempty,max=10000"`
	Comment          string  `json:"comment" validate:"max=10000"`
}

// List handles GET /incidents.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	viewer, _ := httputil.ViewerFrom(r.Context())

	filter, err := parseListFilter(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.service.List(r.Context(), viewer, filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, list)
}

// Get handles GET /incidents/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	viewer, _ := httputil.ViewerFrom(r.Context())

	inc, err := h.service.Get(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, inc)
}

// Activity handles GET /incidents/{id}/activity.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	viewer, _ := httputil.ViewerFrom(r.Context())

	log, err := h.service.Activity(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, log)
}

// Create handles POST /incidents.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	viewer, _ := httputil.ViewerFrom(r.Context())
	inc, err := h.service.Create(r.Context(), CreateIncidentInput{
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		Caller:           req.Caller,
		AssignmentGroup:  req.AssignmentGroup,
		Status:           domain.IncidentStatus(req.Status),
		Priority:         domain.Priority(req.Priority),
		ResolutionCode:   domain.ResolutionCode(req.ResolutionCode),
		ResolutionNotes:  req.ResolutionNotes,
	}, viewer, req.Comment)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusCreated, inc)
}

// Update handles PATCH /incidents/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateIncidentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	patch := IncidentPatch{
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		Caller:           req.Caller,
		AssignmentGroup:  req.AssignmentGroup,
		ResolutionNotes:  req.ResolutionNotes,
	}
	if req.Status != nil {
		status := domain.IncidentStatus(*req.Status)
		patch.Status = &status
	}
	if req.Priority != nil {
		priority := domain.Priority(*req.Priority)
		patch.Priority = &priority
	}
	if req.ResolutionCode != nil {
		code := domain.ResolutionCode(*req.ResolutionCode)
		patch.ResolutionCode = &code
	}

	viewer, _ := httputil.ViewerFrom(r.Context())
	inc, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch, viewer, req.Comment)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, inc)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{
		Status:          domain.IncidentStatus(q.Get("status")),
		AssignmentGroup: q.Get("assignment_group"),
		Caller:          q.Get("caller"),
		Query:           q.Get("q"),
	}
	if raw := q.Get("priority"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return ListFilter{}, errors.New("priority must be a number")
		}
		filter.Priority = domain.Priority(n)
	}
	return filter, nil
}
