// Package catalog holds the built-in job roles, custom role validation and
// the offline question bank.
package catalog

import (
	"errors"
	"strings"
)

// MinRoleLen is the shortest accepted custom role, in runes, after trimming.
const MinRoleLen = 2

var (
	ErrRoleEmpty     = errors.New("role name is required")
	ErrRoleTooShort  = errors.New("role name must be at least 2 characters")
	ErrRoleDuplicate = errors.New("role already exists")
)

var builtinRoles = []string{
	"Frontend Developer",
	"Backend Developer",
	"Full Stack Developer",
	"DevOps Engineer",
	"Data Scientist",
	"Product Manager",
	"UI/UX Designer",
	"Mobile Developer",
	"Software Architect",
	"QA Engineer",
	"Machine Learning Engineer",
	"Cloud Engineer",
	"Cybersecurity Specialist",
	"Database Administrator",
	"Technical Lead",
}

// BuiltinRoles returns a copy of the built-in job roles.
func BuiltinRoles() []string {
	return append([]string(nil), builtinRoles...)
}

// IsBuiltin reports whether role matches a built-in role, ignoring case.
func IsBuiltin(role string) bool {
	return containsFold(builtinRoles, role)
}

// ValidateCustomRole trims role and checks it against the built-in roles and
// the given custom roles. It returns the trimmed role.
func ValidateCustomRole(role string, custom []string) (string, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return "", ErrRoleEmpty
	}
	if len([]rune(role)) < MinRoleLen {
		return "", ErrRoleTooShort
	}
	if IsBuiltin(role) || containsFold(custom, role) {
		return "", ErrRoleDuplicate
	}
	return role, nil
}

// AllRoles returns the built-in roles followed by custom.
func AllRoles(custom []string) []string {
	return append(BuiltinRoles(), custom...)
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
