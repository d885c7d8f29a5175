// Package errs defines the closed error-kind set surfaced at the memory
// engine's facade boundary. Every public operation that fails
// returns an *Error whose Kind a caller can switch on with errors.As,
// independent of which internal package produced it.
package errs

import "fmt"

// Kind is one of the closed set of facade-level error kinds.
type Kind string

const (
	// NotInitialized means the facade was used before Initialize.
	NotInitialized Kind = "not_initialized"
	// ConfigurationError means the config is invalid or internally inconsistent.
	ConfigurationError Kind = "configuration_error"
	// EmbeddingUnavailable means the embedder collaborator failed or timed out.
	EmbeddingUnavailable Kind = "embedding_unavailable"
	// StoreUnavailable means the durable store had an I/O failure.
	StoreUnavailable Kind = "store_unavailable"
	// MemoryNotFound means an id did not resolve to a node.
	MemoryNotFound Kind = "memory_not_found"
	// DanglingEndpoint means an edge referenced a nonexistent node.
	DanglingEndpoint Kind = "dangling_endpoint"
	// Cancelled means the caller cancelled the operation.
	Cancelled Kind = "cancelled"
)

// Error wraps an underlying error with a closed Kind and the operation name
// that produced it, giving callers a stable field to branch on across
// package boundaries instead of matching on error strings.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, errs.Of(errs.NotInitialized)) style comparisons:
// it matches any *Error target with the same Kind, such as one from Of.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error for the given kind and operation, optionally
// wrapping a lower-level cause.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Of returns a sentinel *Error of the given kind with no wrapped cause,
// suitable as the target of errors.Is.
func Of(kind Kind) *Error {
	return &Error{Kind: kind}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, and
// reports whether extraction succeeded.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if asError(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// asError is a small local errors.As to avoid importing "errors" just for
// this one call site from both New and KindOf callers.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
