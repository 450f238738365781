package model

import "errors"

var (
	ErrFileUnreadable     = errors.New("file unreadable")
	ErrBookletConfig      = errors.New("invalid booklet configuration")
	ErrUnknownBooklet     = errors.New("unknown booklet")
	ErrInvalidTransition  = errors.New("invalid session transition")
	ErrBlockingIssues     = errors.New("blocking issues outstanding")
	ErrDuplicateRole      = errors.New("role assigned to more than one column")
	ErrColumnOutOfRange   = errors.New("column index out of range")
	ErrRowOutOfRange      = errors.New("row index out of range")
	ErrStudentNotInRoster = errors.New("student not in roster")
	ErrSessionNotFound    = errors.New("import session not found")
	ErrNotOverridable     = errors.New("issue kind cannot be overridden")
)
