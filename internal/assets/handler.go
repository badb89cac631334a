package assets

import (
	"net/http"

	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrAssetNotFound, Status: http.StatusNotFound},
	{Error: ErrNameRequired, Status: http.StatusBadRequest},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the assets module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new assets handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers asset routes. Reads need view_assets, writes manage_assets.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/assets", func(r chi.Router) {
		r.With(httputil.RequirePermission(domain.PermViewAssets)).Get("/", h.List)
		r.With(httputil.RequirePermission(domain.PermViewAssets)).Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(httputil.RequirePermission(domain.PermManageAssets))
			r.Post("/", h.Create)
			r.Patch("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// CreateAssetRequest represents the request body for creating an asset.
type CreateAssetRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	Category     string `json:"category" validate:"max=255"`
	AssignedTo   string `json:"assigned_to" validate:"max=255"`
	Status       string `json:"status" validate:"omitempty,oneof='In Use' 'In Stock' 'Retired'"`
	PurchaseDate string `json:"purchase_date" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateAssetRequest represents the request body for updating an asset.
type UpdateAssetRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	Category     *string `json:"category" validate:"omitempty,max=255"`
	AssignedTo   *string `json:"assigned_to" validate:"omitempty,max=255"`
	Status       *string `json:"status" validate:"omitempty,oneof='In Use' 'In Stock' 'Retired'"`
	PurchaseDate *string `json:"purchase_date" validate:"omitempty,datetime=2006-01-02"`
}

// List handles GET /assets.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	viewer, _ := httputil.ViewerFrom(r.Context())

	assets, err := h.service.List(r.Context(), viewer)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, assets)
}

// Get handles GET /assets/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	viewer, _ := httputil.ViewerFrom(r.Context())

	asset, err := h.service.Get(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, asset)
}

// Create handles POST /assets.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAssetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	asset, err := h.service.Create(r.Context(), AssetInput{
		Name:         req.Name,
		Category:     req.Category,
		AssignedTo:   req.AssignedTo,
		Status:       domain.AssetStatus(req.Status),
		PurchaseDate: req.PurchaseDate,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusCreated, asset)
}

// Update handles PATCH /assets/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateAssetRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	patch := AssetPatch{
		Name:         req.Name,
		Category:     req.Category,
		AssignedTo:   req.AssignedTo,
		PurchaseDate: req.PurchaseDate,
	}
	if req.Status != nil {
		status := domain.AssetStatus(*req.Status)
		patch.Status = &status
	}

	asset, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, asset)
}

// Delete handles DELETE /assets/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.NoContent(w)
}
