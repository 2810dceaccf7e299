package auth

import "strings"

// Roles conocidos por el núcleo de custodia.
const (
	RoleOwner  = "owner"
	RoleHelper = "helper"
	RoleAdmin  = "admin"
)

// Permisos finos que puede traer el token (Odin).
const (
	// PermManageFosterAssignments habilita a soporte a operar asignaciones ajenas.
	PermManageFosterAssignments = "foster_assignments:manage"
)

// Claims representa la información extraída del token.
// Es también el "acting user" que reciben todas las operaciones de dominio.
type Claims struct {
	UserID   string
	Email    string
	TenantID string

	Roles       []string
	Permissions []string
}

// HasRole devuelve true si el usuario tiene alguno de los roles indicados.
func (c Claims) HasRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range c.Roles {
			if strings.EqualFold(strings.TrimSpace(have), want) {
				return true
			}
		}
	}
	return false
}

// Can valida un permiso fino. Admin puede todo.
func (c Claims) Can(permission string) bool {
	if c.HasRole(RoleAdmin) {
		return true
	}
	for _, p := range c.Permissions {
		if strings.TrimSpace(p) == permission {
			return true
		}
	}
	return false
}
