package model

import (
	"fmt"
	"strings"
)

// FieldRole is the semantic meaning assigned to one source column.
// The set is closed: ParseFieldRole rejects anything not listed here.
type FieldRole string

const (
	RoleUnmapped      FieldRole = "unmapped"
	RoleStudentNumber FieldRole = "student_number"
	RoleNationalID    FieldRole = "national_id"
	RoleFullName      FieldRole = "full_name"
	RoleClassName     FieldRole = "class_name"
	RoleBooklet       FieldRole = "booklet"
	RoleAnswers       FieldRole = "answers"
	RoleIgnore        FieldRole = "ignore"
)

// AssignableRoles lists the roles the column mapper may infer, in priority
// order. Unmapped and ignore are never inferred.
var AssignableRoles = []FieldRole{
	RoleStudentNumber,
	RoleNationalID,
	RoleFullName,
	RoleClassName,
	RoleBooklet,
	RoleAnswers,
}

// Valid reports whether r is one of the declared roles.
func (r FieldRole) Valid() bool {
	switch r {
	case RoleUnmapped, RoleStudentNumber, RoleNationalID, RoleFullName,
		RoleClassName, RoleBooklet, RoleAnswers, RoleIgnore:
		return true
	}
	return false
}

// Unique reports whether at most one column may carry r.
func (r FieldRole) Unique() bool {
	return r != RoleIgnore && r != RoleUnmapped
}

// Identity reports whether r can identify a student on its own.
func (r FieldRole) Identity() bool {
	return r == RoleStudentNumber || r == RoleNationalID || r == RoleFullName
}

// ParseFieldRole accepts the canonical name, case-insensitively, with
// hyphens or spaces in place of underscores.
func ParseFieldRole(s string) (FieldRole, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	r := FieldRole(norm)
	if !r.Valid() {
		return "", fmt.Errorf("unknown field role %q", s)
	}
	return r, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *FieldRole) UnmarshalText(b []byte) error {
	parsed, err := ParseFieldRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
