package incidents

import "github.com/bissquit/onestop-itsm/internal/domain"

// CanView reports whether the viewer may see the incident.
//
// Customers see the incidents they called in, vendors see the incidents
// assigned to one of their resolver groups, agents and admins see all.
func CanView(viewer domain.Viewer, inc *domain.Incident) bool {
	switch viewer.Role {
	case domain.RoleAgent, domain.RoleAdmin:
		return true
	case domain.RoleCustomer:
		return inc.Caller == viewer.Name
	case domain.RoleVendor:
		return viewer.InGroup(inc.AssignmentGroup)
	default:
		return false
	}
}

// VisibleTo returns the subset of incidents the viewer may see, preserving order.
func VisibleTo(viewer domain.Viewer, all []domain.Incident) []domain.Incident {
	if viewer.Role.IsResolver() {
		return all
	}

	visible := make([]domain.Incident, 0)
	for i := range all {
		if CanView(viewer, &all[i]) {
			visible = append(visible, all[i])
		}
	}
	return visible
}
