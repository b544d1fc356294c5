package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Kind classifies service failures; controllers map each kind to one HTTP
// status.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindUnauthenticated
	KindUnauthorized
	KindNotFound
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	default:
		return "unexpected"
	}
}

// Error is a classified service error.
type Error struct {
	Kind    Kind
	Message string
	// Fields maps request fields to their validation messages.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NewFieldError builds a validation error from per-field messages.
func NewFieldError(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// FieldsOf returns the per-field messages carried by err, if any.
func FieldsOf(err error) map[string]string {
	var se *Error
	if errors.As(err, &se) {
		return se.Fields
	}
	return nil
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnexpected.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnexpected
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return "Internal server error"
}

// translateDBError maps GORM sentinel errors into the taxonomy.
func translateDBError(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NewError(KindNotFound, entity+" not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return WrapError(KindConflict, entity+" already exists", err)
	default:
		var se *Error
		if errors.As(err, &se) {
			return err
		}
		return WrapError(KindUnexpected, "failed to access "+entity, err)
	}
}

// checkID rejects ids that cannot name a row, so they read as not found
// rather than as a database type error.
func checkID(id, entity string) error {
	if _, err := uuid.Parse(id); err != nil {
		return NewError(KindNotFound, entity+" not found")
	}
	return nil
}
