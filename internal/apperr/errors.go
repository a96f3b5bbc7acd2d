/**
 * @description
 * Typed application errors shared by the ledger, services and HTTP layers.
 * Each error carries a Kind that the API maps to an HTTP status.
 *
 * @notes
 * - Kinds are matched with errors.Is against the exported sentinels
 *   (ErrValidation, ErrConflict, ErrNotFound).
 * - Details hold per-field messages rendered as the "details" field of error responses.
 */

package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
)

// Sentinels for errors.Is matching.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrNotFound   = &Error{Kind: KindNotFound}
)

// Detail is a single field-level problem.
type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the concrete application error.
type Error struct {
	Kind    Kind
	Message string
	Details []Detail
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for i, d := range e.Details {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s %s", d.Field, d.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// DetailString flattens Details for the API "details" field.
func (e *Error) DetailString() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Field+" "+d.Message)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, "; ")
}

// Validation builds a ValidationError.
func Validation(msg string, details ...Detail) error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// Conflict builds a ConflictError.
func Conflict(msg string, details ...Detail) error {
	return &Error{Kind: KindConflict, Message: msg, Details: details}
}

// NotFound builds a NotFoundError.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
