package dashboard

import (
	"net/http"

	"github.com/bissquit/onestop-itsm/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Handler serves the dashboard.
type Handler struct {
	service *Service
}

// NewHandler creates a new dashboard handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers dashboard routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.Get)
}

// Get handles GET /dashboard.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	viewer, ok := httputil.ViewerFrom(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	view, err := h.service.ForViewer(r.Context(), viewer)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}
	httputil.Success(w, http.StatusOK, view)
}
