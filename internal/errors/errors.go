package errors

import "fmt"

// CodelensError is the structured error type returned by the core
// components. It carries enough context for the ToolSurface to report
// {error_kind, message} without inspecting message text.
type CodelensError struct {
	// Kind is the taxonomy member this error belongs to.
	Kind Kind

	// Message is the human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates the operation may succeed if retried.
	Retryable bool
}

// Error implements the error interface.
func (e *CodelensError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As support.
func (e *CodelensError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a CodelensError of the same Kind, enabling
// errors.Is(err, &CodelensError{Kind: KindNoIndex}) checks.
func (e *CodelensError) Is(target error) bool {
	t, ok := target.(*CodelensError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a CodelensError of the given kind. Retryable is derived from
// the kind unless overridden with WithRetryable.
func New(kind Kind, message string, cause error) *CodelensError {
	return &CodelensError{
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryableKind(kind),
	}
}

// WithRetryable overrides the derived retryable flag.
func (e *CodelensError) WithRetryable(retryable bool) *CodelensError {
	e.Retryable = retryable
	return e
}

func NotInitialized(message string) *CodelensError {
	return New(KindNotInitialized, message, nil)
}

func ConfigInvalid(message string, cause error) *CodelensError {
	return New(KindConfigInvalid, message, cause)
}

func EmbedderUnavailable(message string, cause error) *CodelensError {
	return New(KindEmbedderUnavailable, message, cause)
}

func StoreError(message string, cause error) *CodelensError {
	return New(KindStoreError, message, cause)
}

func QueryInvalid(message string) *CodelensError {
	return New(KindQueryInvalid, message, nil)
}

func NoIndex(message string) *CodelensError {
	return New(KindNoIndex, message, nil)
}

func ScanError(message string, cause error) *CodelensError {
	return New(KindScanError, message, cause)
}

// IsRetryable reports whether err is a CodelensError with Retryable set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*CodelensError); ok {
		return ce.Retryable
	}
	return false
}

// GetKind extracts the Kind from err, or "" if err is not a CodelensError.
func GetKind(err error) Kind {
	if ce, ok := err.(*CodelensError); ok {
		return ce.Kind
	}
	return ""
}
