package core

import "context"

// Callable describes one remotely invocable capability exposed by a provider.
// For streaming providers this is an MCP tool; for stateless providers it is
// an agent skill. The descriptor is only valid for the lifetime of the
// listing that produced it: a reconnect or cache invalidation on the owning
// provider may change names and schemas.
type Callable struct {
	// Name is the provider-supplied identifier, unmodified. Consumers that
	// expose callables externally should sanitize it first.
	Name string

	// Description is a human-readable summary shown to models.
	Description string

	// InputSchema is a JSON-Schema-shaped document describing the accepted
	// argument object.
	InputSchema map[string]any
}

// ProviderClient is the capability set every tool provider client exposes,
// regardless of wire protocol. The tool preparer dispatches exclusively on
// this interface and never on concrete client types.
//
// Implementations:
//   - mcp.Client — persistent session over a streaming transport
//   - a2a.Client — independent request/response task exchanges
type ProviderClient interface {
	// Name returns a readable identifier for the provider, used for
	// logging and for allow-list lookups.
	Name() string

	// Connect establishes whatever session the protocol requires. Stateless
	// protocols implement this as a no-op.
	Connect(ctx context.Context) error

	// Callables discovers the tools or skills currently offered by the
	// provider.
	Callables(ctx context.Context) ([]Callable, error)

	// Invoke executes the named callable with the given arguments and
	// returns its textual result.
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)

	// Close releases any held transport resources. Safe to call multiple
	// times.
	Close() error
}
