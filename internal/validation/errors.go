// Package validation holds the error taxonomy shared by trajectory
// construction and reference-feature evaluation.
//
// Each failure carries a kind (one of the Err* sentinels), an optional
// reason and the offending field name. Callers match kinds with errors.Is
// and recover the detail with errors.As:
//
//	var verr *validation.Error
//	if errors.As(err, &verr) && verr.Reason == validation.ReasonNoRecords { ... }
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds.
var (
	ErrInvalidLayer        = errors.New("invalid layer")
	ErrInvalidGeometryType = errors.New("invalid geometry type")
	ErrInvalidDirection    = errors.New("invalid direction")
	ErrInvalidTrajectory   = errors.New("invalid trajectory")
	ErrInvalidFeature      = errors.New("invalid feature")
	ErrInvalidSegment      = errors.New("invalid segment")
)

// Reason narrows down why a layer failed validation.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonNotValid           Reason = "not_valid"
	ReasonNotAPointSource    Reason = "not_a_point_source"
	ReasonNoRecords          Reason = "no_records"
	ReasonMissingOrWrongType Reason = "missing_or_wrong_type"
)

// Error is a validation failure with enough context to reproduce the
// diagnostic shown to the user.
type Error struct {
	Kind   error
	Reason Reason
	Field  string
	Msg    string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("%v: field %q", e.Kind, e.Field)
	}
	return e.Kind.Error()
}

// Unwrap exposes the kind so errors.Is(err, ErrInvalidLayer) works.
func (e *Error) Unwrap() error { return e.Kind }

// LayerError builds an ErrInvalidLayer failure. role is the human label of
// the field ("id", "timestamp", "width", ...) and is only used for
// ReasonMissingOrWrongType.
func LayerError(reason Reason, role, field string) *Error {
	e := &Error{Kind: ErrInvalidLayer, Reason: reason, Field: field}
	switch reason {
	case ReasonNotValid:
		e.Msg = "Layer is not valid."
	case ReasonNotAPointSource:
		e.Msg = "Layer is not a point layer."
	case ReasonNoRecords:
		e.Msg = "Layer has no features."
	case ReasonMissingOrWrongType:
		e.Msg = fmt.Sprintf("%s field either not found or of incorrect type.", capitalize(role))
	}
	return e
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ReasonOf returns the reason carried by err, or ReasonNone.
func ReasonOf(err error) Reason {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ReasonNone
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
