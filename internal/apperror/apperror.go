// Package apperror defines the domain error taxonomy shared by every layer.
//
// Services and repositories return these errors; only the handler layer
// knows how they map onto HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error

	// Fields holds per-field messages for validation errors that cover
	// more than one field. Field/Message are still set to the first entry.
	Fields map[string][]string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  map[string][]string{field: {message}},
	}
}

// Unauthorized returns an AppError for missing or bad credentials.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Validation accumulates field errors so a single response can report every
// problem in a payload at once, instead of making the client fix them one
// round-trip at a time.
//
//	v := apperror.NewValidation()
//	if title == "" {
//	    v.Add("title", "This field is required.")
//	}
//	if err := v.Err(); err != nil {
//	    return nil, err
//	}
type Validation struct {
	fields map[string][]string
	order  []string
}

// NewValidation returns an empty accumulator.
func NewValidation() *Validation {
	return &Validation{fields: make(map[string][]string)}
}

// Add records a message for field.
func (v *Validation) Add(field, message string) {
	if _, seen := v.fields[field]; !seen {
		v.order = append(v.order, field)
	}
	v.fields[field] = append(v.fields[field], message)
}

// Err returns nil when nothing was added, otherwise an *AppError wrapping
// ErrValidation whose Fields holds every recorded message.
func (v *Validation) Err() error {
	if len(v.order) == 0 {
		return nil
	}

	first := v.order[0]
	fields := make(map[string][]string, len(v.fields))
	for k, msgs := range v.fields {
		fields[k] = append([]string(nil), msgs...)
	}

	message := v.fields[first][0]
	if len(v.order) > 1 {
		names := append([]string(nil), v.order...)
		sort.Strings(names)
		message = "invalid fields: " + strings.Join(names, ", ")
	}

	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   first,
		Fields:  fields,
	}
}
