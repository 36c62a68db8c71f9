package schema

import (
	"strconv"
	"strings"
	"time"

	"github.com/invosuite/billdesk/internal/types"
)

// Role is the acting role resolved from the user directory.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAccounts Role = "accounts"
	RoleSupport  Role = "support"
	RoleMember   Role = "member"
)

// ParseRole normalizes a stored role string. Unknown roles degrade to
// member, the read-only role.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleAccounts:
		return RoleAccounts
	case RoleSupport:
		return RoleSupport
	}
	return RoleMember
}

// CanEdit reports whether role may edit cells of field f. Admin edits every
// field, Member none, Accounts and Support follow the field's flags.
func CanEdit(f Field, role Role) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleAccounts:
		return f.Permissions.Accounts
	case RoleSupport:
		return f.Permissions.Support
	}
	return false
}

// CanEditAny reports whether role may edit any cell at all.
func CanEditAny(role Role) bool {
	return role != RoleMember
}

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
	longLayout  = "January 2, 2006"
)

// Coerce validates a raw cell value against the field's type and returns
// the canonical stored form. Empty values pass for every type.
func Coerce(f Field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	switch f.Type {
	case FieldDropdown:
		for _, v := range f.Values {
			if v == value {
				return value, nil
			}
		}
		return "", types.NewValidationError(f.Name, "value must be one of: "+strings.Join(f.Values, ", "))
	case FieldDate:
		t, err := time.Parse(dateLayout, value)
		if err != nil {
			return "", types.NewValidationError(f.Name, "date must be YYYY-MM-DD")
		}
		return t.Format(dateLayout), nil
	case FieldMonth:
		t, err := time.Parse(monthLayout, value)
		if err != nil {
			return "", types.NewValidationError(f.Name, "month must be YYYY-MM")
		}
		return t.Format(monthLayout), nil
	case FieldNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "", types.NewValidationError(f.Name, "value must be numeric")
		}
		return value, nil
	}
	return value, nil
}

// Display renders a stored cell value for read-only views. Empty cells
// render as an em dash, dates in long form, everything else verbatim.
func Display(f Field, value string) string {
	if value == "" {
		return "—"
	}
	if f.Type == FieldDate {
		if t, err := time.Parse(dateLayout, value); err == nil {
			return t.Format(longLayout)
		}
	}
	return value
}
