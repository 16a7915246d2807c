// Package entities defines the domain types shared across the console:
// users, roles, permissions, and the auth audit trail.
package entities

import (
	"encoding/json"
	"strings"
)

// Permission is a named capability attached to a role. The backend encodes
// permissions either as bare strings or as {"name": ...} records, so the
// JSON decoding accepts both.
type Permission struct {
	Name string
}

// Is reports whether the permission matches the given name, ignoring case.
func (p Permission) Is(name string) bool {
	return strings.EqualFold(p.Name, name)
}

func (p *Permission) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Name = s
		return nil
	}

	var rec struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	p.Name = rec.Name
	return nil
}

func (p Permission) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name string `json:"name"`
	}{p.Name})
}

// Role is the tagged union of the two shapes a user's role arrives in from
// the backend: a bare role name carrying no permission data, or a full
// record with a permission list. Callers go through Name and Permissions
// instead of inspecting the shape themselves.
type Role struct {
	name        string
	permissions []Permission
	detailed    bool
}

// NamedRole builds a role known only by name.
func NamedRole(name string) Role {
	return Role{name: name}
}

// DetailedRole builds a role carrying a permission list.
func DetailedRole(name string, permissions []Permission) Role {
	return Role{name: name, permissions: permissions, detailed: true}
}

// Name returns the role name, empty when no role is set.
func (r Role) Name() string {
	return r.name
}

// Permissions returns the permission list and whether one is available at
// all. A role known only by name has no permission data, which is distinct
// from a detailed role whose list happens to be empty.
func (r Role) Permissions() ([]Permission, bool) {
	if !r.detailed {
		return nil, false
	}
	return r.permissions, true
}

// Detailed reports whether the role carries permission data.
func (r Role) Detailed() bool {
	return r.detailed
}

// IsZero reports whether no role is set.
func (r Role) IsZero() bool {
	return r.name == "" && !r.detailed
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = NamedRole(s)
		return nil
	}

	var rec struct {
		Name        string       `json:"name"`
		Permissions []Permission `json:"permissions"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*r = DetailedRole(rec.Name, rec.Permissions)
	return nil
}

func (r Role) MarshalJSON() ([]byte, error) {
	if !r.detailed {
		return json.Marshal(r.name)
	}
	return json.Marshal(struct {
		Name        string       `json:"name"`
		Permissions []Permission `json:"permissions"`
	}{r.name, r.permissions})
}

// User is the account record as served by the backend.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// HasRole reports whether any role is attached to the user.
func (u *User) HasRole() bool {
	return u != nil && !u.Role.IsZero()
}
