// Package device wires memalloc, resource, samplerpool, fence, submit,
// sparse and shadercache behind the single Device/ShaderCache contract
// spec.md §6 lists, grounded on driver/core.go's GPU interface shape
// (one method per resource kind) narrowed to those exact operations.
package device

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a device error by outcome, not by originating
// type, matching spec.md §7's error taxonomy table exactly.
type ErrorKind int

const (
	KindOOM ErrorKind = iota
	KindResource
	KindCacheCorrupt
	KindSparseBind
	KindShaderCompile
	KindSubmission
	KindShutdown
)

func (k ErrorKind) String() string {
	switch k {
	case KindOOM:
		return "out-of-memory"
	case KindResource:
		return "resource-creation"
	case KindCacheCorrupt:
		return "cache-corruption"
	case KindSparseBind:
		return "sparse-bind"
	case KindShaderCompile:
		return "shader-compilation"
	case KindSubmission:
		return "queue-submission"
	case KindShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Error is the typed outcome every call across the device package
// boundary returns on failure (spec.md §7: "a kind-tagged error").
// Cause is reachable through errors.Cause/errors.Unwrap for callers
// that need the underlying driver or subsystem failure.
type Error struct {
	Kind  ErrorKind
	cause error
}

func newError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("device: %s", e.Kind)
	}
	return fmt.Sprintf("device: %s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// Cause implements github.com/pkg/errors's Causer, so errors.Cause
// unwraps through an *Error the same way it unwraps a Wrap chain.
func (e *Error) Cause() error { return e.cause }

// wrap attaches kind to cause, adding msg as call-site context via
// github.com/pkg/errors the same way every other package in this
// module annotates a failure (spec.md §7a "Wrapping with context").
func wrap(kind ErrorKind, cause error, msg string) *Error {
	return newError(kind, errors.Wrap(cause, msg))
}
