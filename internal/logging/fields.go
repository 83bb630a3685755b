// Package logging wires structured, leveled logging for the scheduler
// core, grounded on the field-name-constants convention used across
// teranos/QNTX's logger package.
package logging

// Standard field names, used instead of raw strings so every component
// logs the same key for the same concept.
const (
	FieldJobID      = "job_id"
	FieldDispatchKey = "dispatch_key"
	FieldComponent  = "component"
	FieldOperation  = "operation"
	FieldStatus     = "status"
	FieldTarget     = "target"
	FieldAttempt    = "attempt"
	FieldErrorKind  = "error_kind"
	FieldDurationMS = "duration_ms"
)
