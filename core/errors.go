package core

import "fmt"

// ConnectionError reports a transport or network level failure. It is the
// retryable category: clients retry these locally with a bounded budget and
// surface one consolidated ConnectionError naming the attempt count once the
// budget is exhausted.
type ConnectionError struct {
	Provider string // Provider name
	Attempts int    // Number of attempts performed (0 if not applicable)
	Err      error  // Last underlying cause
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("provider %q: connection failed after %d attempts: %v", e.Provider, e.Attempts, e.Err)
	}
	return fmt.Sprintf("provider %q: connection failed: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error { return e.Err }

// TaskError reports a protocol level failure: an explicit JSON-RPC error
// field, a failed task status, or a tool result flagged as an error by the
// provider. These are not transient conditions and are never retried.
type TaskError struct {
	Provider string // Provider name
	Message  string // Failure text extracted from the response
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("provider %q: task failed: %s", e.Provider, e.Message)
}

// NotInitializedError indicates a sequencing mistake by the caller: an
// operation that requires an established session was invoked before Connect
// succeeded.
type NotInitializedError struct {
	Provider string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("provider %q not initialized: call Connect first", e.Provider)
}
