package mcp

import (
	"context"
	"encoding/json"
)

// Transport is one open duplex exchange channel with an MCP provider. The
// client treats it as opaque: it sends a raw JSON-RPC request and receives
// the matching raw response.
//
// Implementations must be safe for concurrent use unless documented
// otherwise.
type Transport interface {
	// Call sends one JSON-RPC message and returns the provider's response
	// for it.
	Call(ctx context.Context, req json.RawMessage) (json.RawMessage, error)

	// Close releases the underlying connection. Safe to call multiple
	// times.
	Close() error
}

// TransportFactory opens a fresh Transport. The client invokes it on every
// connection attempt, so implementations must not share per-connection
// state across invocations.
type TransportFactory func(ctx context.Context) (Transport, error)
