// Package errs defines the error kinds surfaced by docuflow components.
//
// Every kind has a sentinel that callers match with errors.Is. Kinds that carry
// structured detail (PermissionDeniedError, ProviderError) also match their
// sentinel, so errors.Is(err, ErrPermissionDenied) works on the concrete type.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input to a core operation.
	ErrValidation = errors.New("validation error")
	// ErrConfig marks a malformed rule or role source. Fatal at startup.
	ErrConfig = errors.New("config error")
	// ErrPermissionDenied marks a role lacking a capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrProvider marks an embedding provider failure.
	ErrProvider = errors.New("provider error")
	// ErrEmptyResults marks a governed query that retrieved nothing.
	ErrEmptyResults = errors.New("no search results")
	// ErrNoRouteMatched marks a governed query whose evidence matched no rule and no default route.
	ErrNoRouteMatched = errors.New("no route matched")
	// ErrIntegrity marks persisted artifacts that disagree with each other.
	ErrIntegrity = errors.New("integrity error")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Validation returns an error matching ErrValidation.
func Validation(format string, args ...any) error {
	return &kindError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// Config returns an error matching ErrConfig.
func Config(format string, args ...any) error {
	return &kindError{kind: ErrConfig, msg: fmt.Sprintf(format, args...)}
}

// Integrity returns an error matching ErrIntegrity.
func Integrity(format string, args ...any) error {
	return &kindError{kind: ErrIntegrity, msg: fmt.Sprintf(format, args...)}
}

// PermissionDeniedError reports which role was refused which capability.
type PermissionDeniedError struct {
	Role       string
	Capability string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("role %q is not allowed to perform %q", e.Role, e.Capability)
}

// Is reports whether target is ErrPermissionDenied.
func (e *PermissionDeniedError) Is(target error) bool { return target == ErrPermissionDenied }

// ProviderError wraps a failure from an embedding provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is reports whether target is ErrProvider.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// Provider wraps err as a ProviderError. A nil err returns nil, and an err that is
// already a provider error is returned unchanged.
func Provider(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProvider) {
		return err
	}
	return &ProviderError{Op: op, Err: err}
}

// Kind maps err to the short name used in audit payloads and API responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrEmptyResults):
		return "empty_results"
	case errors.Is(err, ErrNoRouteMatched):
		return "no_route_matched"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	default:
		return "internal"
	}
}
