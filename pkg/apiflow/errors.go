package apiflow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Static errors that can be wrapped with context.
var (
	ErrSpecRequired      = errors.New("spec is required")
	ErrInvokerRequired   = errors.New("invoker is required")
	ErrEndpointNotFound  = errors.New("endpoint not found in spec")
	ErrSelectionRejected = errors.New("selection rejected")
	ErrValueNotFound     = errors.New("value not found in provider response")
)

// SpecError reports malformed or ambiguous specification input. It is
// fatal: graph building aborts before any planning happens.
type SpecError struct {
	Endpoint EndpointKey
	Reason   string
}

func (e *SpecError) Error() string {
	if e.Endpoint.Path == "" {
		return "invalid specification: " + e.Reason
	}

	return fmt.Sprintf("invalid specification for %s: %s", e.Endpoint, e.Reason)
}

// UnresolvedParameterError reports a required parameter with no cached
// value, no provider, and no value from the selection collaborator. It
// aborts the plan.
type UnresolvedParameterError struct {
	Endpoint  EndpointKey
	Parameter string
}

func (e *UnresolvedParameterError) Error() string {
	return fmt.Sprintf("parameter %q of %s could not be resolved", e.Parameter, e.Endpoint)
}

// ProviderCallError reports a failed provider invocation. The plan is
// aborted; Context entries already written remain valid for a retry.
type ProviderCallError struct {
	Provider  EndpointKey
	Dependent EndpointKey
	Err       error
}

func (e *ProviderCallError) Error() string {
	if e.Dependent.Path == "" {
		return fmt.Sprintf("call to %s failed: %v", e.Provider, e.Err)
	}

	return fmt.Sprintf("call to %s (needed by %s) failed: %v", e.Provider, e.Dependent, e.Err)
}

func (e *ProviderCallError) Unwrap() error {
	return e.Err
}

// PaginationLimitError reports that the page safety cap was reached
// before the provider signalled termination. It is fatal for the step;
// partial data is never silently returned as success.
type PaginationLimitError struct {
	Endpoint     EndpointKey
	PagesFetched int
	Limit        int
}

func (e *PaginationLimitError) Error() string {
	return fmt.Sprintf("pagination safety cap reached for %s: fetched %d pages (limit %d) without termination signal",
		e.Endpoint, e.PagesFetched, e.Limit)
}

// IsUnresolved checks whether err is an UnresolvedParameterError.
func IsUnresolved(err error) bool {
	target := &UnresolvedParameterError{}

	return errors.As(err, &target)
}

// IsProviderFailure checks whether err is a ProviderCallError.
func IsProviderFailure(err error) bool {
	target := &ProviderCallError{}

	return errors.As(err, &target)
}

// IsPaginationLimit checks whether err is a PaginationLimitError.
func IsPaginationLimit(err error) bool {
	target := &PaginationLimitError{}

	return errors.As(err, &target)
}

var (
	validateOnce sync.Once
	endpointVal  *validator.Validate
)

func validateEndpoint(endpoint *Endpoint) error {
	validateOnce.Do(func() {
		endpointVal = validator.New()
	})

	if err := endpointVal.Struct(endpoint); err != nil {
		return &SpecError{Endpoint: endpoint.Key(), Reason: err.Error()}
	}

	return nil
}
