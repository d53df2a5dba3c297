package testfixtures

import (
	"errors"
	"fmt"
)

var (
	// ErrGateway is matched by every error reported by a store gateway operation.
	ErrGateway = errors.New("store gateway failure")

	// ErrFixtureUnavailable is matched when a fixture file cannot be resolved or parsed.
	ErrFixtureUnavailable = errors.New("fixture unavailable")

	// ErrAssertion is matched by comparison failures of a Check directive.
	ErrAssertion = errors.New("collection assertion failed")
)

// GatewayError reports a failed store operation on a collection.
type GatewayError struct {
	Op         string
	Collection string
	Err        error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s collection %q: %v", e.Op, e.Collection, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == ErrGateway }

// FixtureUnavailableError reports a fixture file that could not be loaded.
type FixtureUnavailableError struct {
	Path string
	Err  error
}

func (e *FixtureUnavailableError) Error() string {
	return fmt.Sprintf("unable to load fixture file '%s': %v", e.Path, e.Err)
}

func (e *FixtureUnavailableError) Unwrap() error { return e.Err }

func (e *FixtureUnavailableError) Is(target error) bool { return target == ErrFixtureUnavailable }

// SizeMismatchError is returned when the expected and actual collections
// do not hold the same number of documents.
type SizeMismatchError struct {
	Expected int
	Actual   int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("The expected collection does not have the same number of documents as mongodb collection. expected:<%d> but was:<%d>",
		e.Expected, e.Actual)
}

func (e *SizeMismatchError) Is(target error) bool { return target == ErrAssertion }

// DocumentNotFoundError is returned when an expected document has no equal
// counterpart in the actual collection. Document is the projected document.
type DocumentNotFoundError struct {
	Document Document
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("The expected document <%s> was not found in the mongodb collection.", e.Document)
}

func (e *DocumentNotFoundError) Is(target error) bool { return target == ErrAssertion }

// DirectiveError attaches the failing directive to an error.
type DirectiveError struct {
	Kind       Kind
	Collection string
	Err        error
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("testfixtures: %s %q: %v", e.Kind, e.Collection, e.Err)
}

func (e *DirectiveError) Unwrap() error { return e.Err }
