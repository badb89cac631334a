package domain

// Permission names a capability checked against a role.
type Permission string

// Permissions.
const (
	PermCreateIncidents    Permission = "create_incidents"
	PermEditIncidents      Permission = "edit_incidents"
	PermAssignGroups       Permission = "assign_groups"
	PermCloseIncidents     Permission = "close_incidents"
	PermDefineSLAs         Permission = "define_slas"
	PermManageUsers        Permission = "manage_users"
	PermViewAnalytics      Permission = "view_analytics"
	PermViewAssets         Permission = "view_assets"
	PermManageAssets       Permission = "manage_assets"
	PermViewServiceConsole Permission = "view_service_console"
)

// Grant describes how a role holds a permission.
type Grant string

// Grants.
const (
	GrantNone     Grant = "none"
	GrantFull     Grant = "full"
	GrantOwn      Grant = "own"
	GrantAssigned Grant = "assigned"
)

// AccessRule is one row of the access control matrix.
type AccessRule struct {
	Permission Permission     `json:"permission"`
	Grants     map[Role]Grant `json:"grants"`
}

var accessMatrix = []AccessRule{
	{PermCreateIncidents, map[Role]Grant{RoleAdmin: GrantFull, RoleAgent: GrantFull, RoleCustomer: GrantFull, RoleVendor: GrantNone}},
	{PermEditIncidents, map[Role]Grant{RoleAdmin: GrantFull, RoleAgent: GrantFull, RoleCustomer: GrantOwn, RoleVendor: GrantAssigned}},
	{PermAssignGroups, map[Role]Grant{RoleAdmin: GrantFull, RoleAgent: GrantFull, RoleCustomer: GrantNone, RoleVendor: GrantNone}},
	{PermCloseIncidents, map[Role]Grant{RoleAdmin: GrantFull, RoleAgent: GrantFull, RoleCustomer: GrantOwn, RoleVendor: GrantNone}},
	{PermDefineSLAs, map[Role]Grant{RoleAdmin: GrantFull, RoleAgent: GrantNone, RoleCustomer: GrantNone, RoleVendor: GrantNone}},
	{PermManageUsers, map[Role]Grant{RoleAdmin: GrantFull, RoleAgent: GrantNone, RoleCustomer: GrantNone, RoleVendor: GrantNone}},
	{PermViewAnalytics, map[Role]Grant{RoleAdmin: GrantFull, RoleAgent: GrantFull, RoleCustomer: GrantNone, RoleVendor: GrantNone}},
	{PermViewAssets, map[Role]Grant{RoleAdmin: GrantFull, RoleAgent: GrantFull, RoleCustomer: GrantOwn, RoleVendor: GrantNone}},
	{PermManageAssets, map[Role]Grant{RoleAdmin: GrantFull, RoleAgent: GrantFull, RoleCustomer: GrantNone, RoleVendor: GrantNone}},
	{PermViewServiceConsole, map[Role]Grant{RoleAdmin: GrantFull, RoleAgent: GrantFull, RoleCustomer: GrantNone, RoleVendor: GrantNone}},
}

// AccessMatrix returns a copy of the role/permission matrix.
func AccessMatrix() []AccessRule {
	out := make([]AccessRule, 0, len(accessMatrix))
	for _, rule := range accessMatrix {
		grants := make(map[Role]Grant, len(rule.Grants))
		for role, g := range rule.Grants {
			grants[role] = g
		}
		out = append(out, AccessRule{Permission: rule.Permission, Grants: grants})
	}
	return out
}

// GrantFor returns how the role holds the permission.
func (r Role) GrantFor(p Permission) Grant {
	for _, rule := range accessMatrix {
		if rule.Permission == p {
			if g, ok := rule.Grants[r]; ok {
				return g
			}
			return GrantNone
		}
	}
	return GrantNone
}

// Can reports whether the role holds the permission in any scope.
func (r Role) Can(p Permission) bool {
	return r.GrantFor(p) != GrantNone
}
