// Package toolmesh turns the capabilities advertised by heterogeneous tool
// providers into a uniform, callable tool collection. Applications interact
// with this package by:
//  1. Constructing provider clients (mcp.Client for streaming providers,
//     a2a.Client for stateless ones)
//  2. Calling Prepare() with the clients and an optional per-provider
//     allowed-tool filter
//  3. Invoking the returned PreparedTools with JSON-compatible argument maps
//
// Prepare normalizes tool names, compiles each tool's input schema for
// argument validation and isolates per-tool failures: a tool that cannot be
// prepared is logged and skipped without affecting its siblings.
package toolmesh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/internal/util"
	"github.com/hupe1980/toolmesh/logging"
)

// Options configures tool preparation.
type Options struct {
	// AutoConnect establishes each provider's session before discovery.
	// Stateless providers treat this as a no-op.
	AutoConnect bool

	// ValidateArgs checks invocation arguments against the tool's compiled
	// input schema before they reach the provider.
	ValidateArgs bool

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// PreparedTool is one callable tool bound to its provider. Its external name
// is sanitized; the original provider-side name is kept for dispatch.
type PreparedTool struct {
	name         string
	description  string
	schema       map[string]any
	compiled     *jsonschema.Schema
	provider     core.ProviderClient
	target       string
	validateArgs bool
}

// Name returns the sanitized external tool name.
func (t *PreparedTool) Name() string { return t.name }

// Description returns the provider-supplied tool description.
func (t *PreparedTool) Description() string { return t.description }

// Schema returns the tool's JSON input schema.
func (t *PreparedTool) Schema() map[string]any { return t.schema }

// Provider returns the name of the provider serving this tool.
func (t *PreparedTool) Provider() string { return t.provider.Name() }

// Invoke validates args against the tool's input schema (when enabled) and
// dispatches to the provider under the tool's original name.
func (t *PreparedTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	if t.validateArgs && t.compiled != nil {
		// Round-trip through JSON so the validator sees the same value
		// shapes a decoded request body would have.
		raw, err := json.Marshal(args)
		if err != nil {
			return "", fmt.Errorf("tool %s: encode arguments: %w", t.name, err)
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return "", fmt.Errorf("tool %s: decode arguments: %w", t.name, err)
		}
		if err := t.compiled.Validate(doc); err != nil {
			return "", fmt.Errorf("tool %s: invalid arguments: %w", t.name, err)
		}
	}
	return t.provider.Invoke(ctx, t.target, args)
}

// Prepare discovers the callables of every provider and returns them as a
// flat tool list. allowedTools filters per provider by glob patterns keyed on
// provider name; a provider with no entry exposes all of its tools. Discovery
// failures of a provider propagate; failures of a single tool (bad schema,
// duplicate normalized name) are logged and the tool skipped.
func Prepare(ctx context.Context, providers []core.ProviderClient, allowedTools map[string][]string, optFns ...func(o *Options)) ([]*PreparedTool, error) {
	opts := Options{
		AutoConnect:  true,
		ValidateArgs: true,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var prepared []*PreparedTool
	seen := map[string]string{} // sanitized name -> provider

	for _, provider := range providers {
		if opts.AutoConnect {
			if err := provider.Connect(ctx); err != nil {
				return nil, err
			}
		}

		callables, err := provider.Callables(ctx)
		if err != nil {
			return nil, err
		}

		patterns, filtered := allowedTools[provider.Name()]
		for _, c := range callables {
			if filtered && !util.MatchesAny(c.Name, patterns) {
				opts.Logger.Debug("tool.prepare.filtered", "provider", provider.Name(), "tool", c.Name)
				continue
			}

			name := util.SanitizeToolName(c.Name)
			if owner, dup := seen[name]; dup {
				opts.Logger.Warn("tool.prepare.duplicate",
					"provider", provider.Name(), "tool", c.Name, "normalized", name, "first_provider", owner)
				continue
			}

			compiled, err := compileSchema(name, c.InputSchema)
			if err != nil {
				opts.Logger.Error("tool.prepare.failed", "provider", provider.Name(), "tool", c.Name, "error", err.Error())
				continue
			}

			seen[name] = provider.Name()
			prepared = append(prepared, &PreparedTool{
				name:         name,
				description:  c.Description,
				schema:       c.InputSchema,
				compiled:     compiled,
				provider:     provider,
				target:       c.Name,
				validateArgs: opts.ValidateArgs,
			})
		}

		opts.Logger.Info("tool.prepare.provider_done", "provider", provider.Name(), "tools", len(prepared))
	}

	return prepared, nil
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := c.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema resource: %w", err)
	}
	compiled, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}
