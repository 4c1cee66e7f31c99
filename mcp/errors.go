package mcp

import "fmt"

// RPCError is a JSON-RPC error returned by the provider. It indicates a
// protocol level condition, not a transport failure.
type RPCError struct {
	Code    int64
	Message string
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("mcp rpc error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mcp rpc error %d", e.Code)
}

// HTTPStatusError is returned by HTTP-based transports on a non-2xx
// response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("mcp http %s: status %d: %s", e.URL, e.StatusCode, string(e.Body))
}

// MiddlewareError wraps a failure raised by a middleware step. Middleware
// failures abort the call before any network attempt and are never retried.
type MiddlewareError struct {
	ToolName string
	Err      error
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("middleware for tool %q: %v", e.ToolName, e.Err)
}

// Unwrap returns the underlying middleware failure.
func (e *MiddlewareError) Unwrap() error { return e.Err }
