package auth

// Role is the closed set of account roles. Anything outside the four constants
// is denied everywhere.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleUsuario    Role = "usuario"
	RoleAuditor    Role = "auditor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleUsuario, RoleAuditor:
		return true
	}
	return false
}

// Resource names the protected record collections.
type Resource string

const (
	ResourcePersonal  Resource = "personal"
	ResourceJerarquia Resource = "jerarquia"
	ResourceSeccion   Resource = "seccion"
	ResourceUsuario   Resource = "usuario"
	ResourceAuditoria Resource = "auditoria"
	ResourceReporte   Resource = "reporte"
)

// Action is a CRUD verb on a Resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// permissionTable is the static role → resource → actions allow-list. A role,
// resource or action absent here is denied.
var permissionTable = map[Role]map[Resource][]Action{
	RoleAdmin: {
		ResourcePersonal:  {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		ResourceJerarquia: {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		ResourceSeccion:   {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		ResourceUsuario:   {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		ResourceAuditoria: {ActionRead},
		ResourceReporte:   {ActionRead, ActionCreate},
	},
	RoleSupervisor: {
		ResourcePersonal:  {ActionCreate, ActionRead, ActionUpdate},
		ResourceJerarquia: {ActionRead},
		ResourceSeccion:   {ActionRead},
		ResourceUsuario:   {ActionRead},
		ResourceAuditoria: {ActionRead},
		ResourceReporte:   {ActionRead, ActionCreate},
	},
	RoleUsuario: {
		ResourcePersonal:  {ActionRead},
		ResourceJerarquia: {ActionRead},
		ResourceSeccion:   {ActionRead},
		ResourceUsuario:   {ActionRead},
		ResourceReporte:   {ActionRead},
	},
	RoleAuditor: {
		ResourcePersonal:  {ActionRead},
		ResourceJerarquia: {ActionRead},
		ResourceSeccion:   {ActionRead},
		ResourceUsuario:   {ActionRead},
		ResourceAuditoria: {ActionRead},
		ResourceReporte:   {ActionRead},
	},
}

// Can reports whether role may perform action on resource. Pure lookup, fails
// closed on unknown role, resource or action.
func Can(role Role, resource Resource, action Action) bool {
	byResource, ok := permissionTable[role]
	if !ok {
		return false
	}
	actions, ok := byResource[resource]
	if !ok {
		return false
	}
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}
