// Package bgerr defines the error taxonomy shared by every browseragent
// component: a small set of named Kinds plus a wrapper that carries both a
// short human-facing Details string and a structured DetailsObject for
// observability, the way internal/perception's provider clients wrap HTTP
// failures with status codes and response bodies.
package bgerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories fixed by the orchestration
// design. Kinds are values, not types, so they compare with ==, and the
// zero value is never produced.
type Kind string

const (
	// InvalidInput: action input failed schema validation.
	InvalidInput Kind = "INVALID_INPUT"
	// ElementStale: requested index no longer present in the current snapshot.
	ElementStale Kind = "ELEMENT_STALE"
	// URLDisallowed: navigation target blocked by policy.
	URLDisallowed Kind = "URL_DISALLOWED"
	// ModelAuth: model endpoint rejected credentials.
	ModelAuth Kind = "MODEL_AUTH"
	// ModelForbidden: model endpoint denied the request for policy reasons.
	ModelForbidden Kind = "MODEL_FORBIDDEN"
	// RequestCancelled: a suspension point observed cancellation.
	RequestCancelled Kind = "REQUEST_CANCELLED"
	// ModelFormat: model output could not be parsed and no tool-call fallback applied.
	ModelFormat Kind = "MODEL_FORMAT"
	// BatchAborted: an action batch exceeded its per-batch error budget.
	BatchAborted Kind = "BATCH_ABORTED"
)

// Fatal reports whether errors of this kind always terminate the task,
// independent of any retry budget (see spec §7 propagation policy).
func (k Kind) Fatal() bool {
	switch k {
	case URLDisallowed, ModelAuth, ModelForbidden:
		return true
	default:
		return false
	}
}

// Error is the concrete error value produced throughout the pipeline.
type Error struct {
	Kind          Kind
	Details       string
	DetailsObject map[string]any
	Err           error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Details, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Details)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, bgerr.New(kind, "", nil)) style kind comparisons
// by matching on Kind alone; the target's details and wrapped error are
// ignored.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// New constructs an Error of the given kind with a details string and an
// optional structured payload.
func New(kind Kind, details string, obj map[string]any) *Error {
	return &Error{Kind: kind, Details: details, DetailsObject: obj}
}

// Wrap attaches a Kind and a details string to an existing error without
// discarding it, mirroring the teacher's fmt.Errorf("...: %w", err) style
// but keeping the Kind queryable via errors.As.
func Wrap(kind Kind, err error, details string) *Error {
	return &Error{Kind: kind, Details: details, Err: err}
}

// KindOf extracts the Kind from err, returning ok=false if err does not
// carry one.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
