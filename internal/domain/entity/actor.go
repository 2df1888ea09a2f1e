package entity

// Actor is a user known to the directory
type Actor struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Email      string   `json:"email,omitempty" yaml:"email"`
	Roles      []string `json:"roles" yaml:"roles"`
	Department string   `json:"department,omitempty" yaml:"department"`
	ManagerID  string   `json:"manager_id,omitempty" yaml:"manager"`
}

// HasRole reports whether the actor holds the given role
func (a *Actor) HasRole(role string) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsDirector reports whether the actor holds the director role
func (a *Actor) IsDirector() bool {
	return a.HasRole(RoleDirector)
}
