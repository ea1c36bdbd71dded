package enums

import "fmt"

// ListRole is a user's effective permission on a shopping list.
type ListRole string

const (
	ListRoleNone   ListRole = ""
	ListRoleViewer ListRole = "viewer"
	ListRoleEditor ListRole = "editor"
	ListRoleOwner  ListRole = "owner"
)

var listRoleRanks = map[ListRole]int{
	ListRoleViewer: 1,
	ListRoleEditor: 2,
	ListRoleOwner:  3,
}

// String implements fmt.Stringer.
func (r ListRole) String() string {
	if r == ListRoleNone {
		return "none"
	}
	return string(r)
}

// IsValid reports whether the value is a concrete role (none is not).
func (r ListRole) IsValid() bool {
	_, ok := listRoleRanks[r]
	return ok
}

// IsAssignable reports whether the role can be stored on a membership row.
// Ownership is implied by the list itself and never granted.
func (r ListRole) IsAssignable() bool {
	return r == ListRoleEditor || r == ListRoleViewer
}

// Rank orders roles: none(0) < viewer(1) < editor(2) < owner(3).
func (r ListRole) Rank() int {
	return listRoleRanks[r]
}

// AtLeast reports whether r satisfies the min role under the hierarchy.
func (r ListRole) AtLeast(min ListRole) bool {
	if !r.IsValid() {
		return false
	}
	return r.Rank() >= min.Rank()
}

// ParseListRole converts raw input into a ListRole.
func ParseListRole(value string) (ListRole, error) {
	role := ListRole(value)
	if role.IsValid() {
		return role, nil
	}
	return ListRoleNone, fmt.Errorf("invalid list role %q", value)
}
