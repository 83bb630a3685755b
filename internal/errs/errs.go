// Package errs classifies engine errors per the taxonomy the Worker and
// Coordinator use to decide between retry, dead-lettering, and the HTTP
// status code an external REST layer should surface.
package errs

import "errors"

// Kind is the error taxonomy from spec.md §7.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindNetwork            Kind = "NETWORK"
	KindTimeout            Kind = "TIMEOUT"
	KindServer             Kind = "SERVER"
	KindClient             Kind = "CLIENT"
	KindUnauthorizedTarget Kind = "UNAUTHORIZED_TARGET"
	KindPayloadTooLarge    Kind = "PAYLOAD_TOO_LARGE"
	KindUnknown            Kind = "UNKNOWN"
)

// Retryable reports whether this kind is transient, per spec.md §7: the
// Worker's inner retry re-attempts it and keeps the Job ACTIVE instead of
// dead-lettering it. The Queue's outer retry does not consult it.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindServer:
		return true
	default:
		return false
	}
}

// Error wraps an underlying cause with a classification.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Classify extracts the Kind from an error produced anywhere in the engine,
// defaulting to UNKNOWN (non-retryable) for anything it does not recognize.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ValidationErrors aggregates multiple field-level validation failures into
// a single reportable error, grounded on GoFire's custom_errors.ValidationError.
type ValidationErrors struct {
	Errors []error
}

func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	return errors.Join(v.Errors...).Error()
}
