// Package core defines the central domain contracts shared by the provider
// client implementations and the tool preparer.
//
// The canonical ProviderClient interface lives here to avoid dependency
// cycles and keep domain contracts central. Implementation packages (mcp,
// a2a) provide protocol-specific clients that can be swapped without
// touching calling code. Callers should depend on the interface rather than
// concrete types so they can substitute fakes in tests.
package core
