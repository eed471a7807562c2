package domain

import (
	"errors"
	"strings"
)

// ErrInvalidEnum marks an unknown status or priority value.
var ErrInvalidEnum = errors.New("invalid enum value")

// FieldError reports fields rejected by domain validation.
type FieldError struct {
	Fields []string
	Reason string
}

func (e *FieldError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	return strings.Join(e.Fields, ", ") + ": " + e.Reason
}
