package auth

import (
	"encoding/json"
	"fmt"
)

// Role is the closed set of staff roles. The zero value is not a valid role.
type Role int

const (
	RolePractitioner Role = iota + 1
	RoleAssistant
)

func (r Role) String() string {
	switch r {
	case RolePractitioner:
		return "practitioner"
	case RoleAssistant:
		return "assistant"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole maps the wire name of a role back to its value.
func ParseRole(s string) (Role, error) {
	switch s {
	case "practitioner":
		return RolePractitioner, nil
	case "assistant":
		return RoleAssistant, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) Valid() bool {
	return r == RolePractitioner || r == RoleAssistant
}

// CanSchedule reports whether the role may open booking forms on the calendar.
func (r Role) CanSchedule() bool {
	return r == RoleAssistant
}

// CanEditPatients reports whether the role may create and edit patient records.
func (r Role) CanEditPatients() bool {
	return r == RolePractitioner
}

func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("marshal invalid role %d", int(r))
	}
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("role must be a string: %w", err)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
