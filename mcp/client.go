package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/logging"
)

const (
	// DefaultMaxRetries is the connection / call attempt budget.
	DefaultMaxRetries = 5
	// DefaultRetryDelay is the fixed pause between attempts.
	DefaultRetryDelay = 2 * time.Second

	protocolVersion = "2025-06-18"
	clientName      = "toolmesh"
	clientVersion   = "0.1.0"
)

// ToolMiddleware transforms tool call arguments before dispatch. Steps run
// in registration order on every call; a failing step aborts the call
// without retry. Steps must not mutate the map they receive.
type ToolMiddleware func(ctx context.Context, toolName string, args map[string]any) (map[string]any, error)

// State is the connection state of a streaming client.
type State int32

const (
	// StateDisconnected means no live session exists.
	StateDisconnected State = iota
	// StateConnecting means a connection attempt is in flight.
	StateConnecting
	// StateConnected means a session is established and usable.
	StateConnected
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Options configures a streaming client.
type Options struct {
	// Name is a readable identifier for the provider.
	Name string

	// Transport opens a fresh transport for each connection attempt.
	// Required.
	Transport TransportFactory

	// CacheToolsList enables caching of the tool listing. Enable when the
	// provider's tool set is static; it removes a network round trip from
	// every listing after the first.
	CacheToolsList bool

	// Middleware steps applied to the arguments of every tool call.
	Middleware []ToolMiddleware

	// MaxRetries is the attempt budget for Connect and CallTool
	// (default 5).
	MaxRetries int

	// RetryDelay is the pause between attempts (default 2s).
	RetryDelay time.Duration

	// Logger defaults to a slog-backed logger.
	Logger logging.Logger
}

// Client maintains at most one live session to a streaming tool provider.
// All operations from a single caller are sequential; Cleanup is the only
// operation that may race with others and is serialized internally.
type Client struct {
	name           string
	factory        TransportFactory
	cacheToolsList bool
	middleware     []ToolMiddleware
	maxRetries     int
	retryDelay     time.Duration
	logger         logging.Logger

	nextID atomic.Int64
	state  atomic.Int32

	// cleanupMu serializes teardown so concurrent Cleanup calls cannot
	// double-release the transport.
	cleanupMu sync.Mutex

	mu         sync.Mutex // guards transport and tool cache
	transport  Transport
	cacheDirty bool
	tools      []ToolInfo
}

// NewClient creates a streaming client. The session is not opened until
// Connect is called.
func NewClient(opts Options) (*Client, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("mcp: transport factory is required")
	}
	name := opts.Name
	if name == "" {
		name = "mcp-provider"
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDefaultSlogLogger()
	}
	return &Client{
		name:           name,
		factory:        opts.Transport,
		cacheToolsList: opts.CacheToolsList,
		middleware:     opts.Middleware,
		maxRetries:     maxRetries,
		retryDelay:     retryDelay,
		logger:         logger,
		// The cache starts dirty so tools are fetched at least once.
		cacheDirty: true,
	}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return c.name }

// State returns the current connection state.
func (c *Client) State() State { return State(c.state.Load()) }

// Connect establishes the session, retrying up to the configured budget
// with a fixed delay between attempts. Partially opened resources are torn
// down before each retry. Calling Connect on an already connected client
// re-runs the full handshake.
func (c *Client) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		c.state.Store(int32(StateConnecting))
		err := c.establish(ctx)
		if err == nil {
			c.state.Store(int32(StateConnected))
			c.logger.Info("mcp.connect.success", "provider", c.name, "attempt", attempt)
			return nil
		}
		lastErr = err
		c.logger.Error("mcp.connect.failed", "provider", c.name, "attempt", attempt, "max_retries", c.maxRetries, "error", err.Error())
		c.Cleanup()
		if attempt < c.maxRetries {
			c.logger.Info("mcp.connect.retry", "provider", c.name, "delay", c.retryDelay.String())
			if serr := sleep(ctx, c.retryDelay); serr != nil {
				return serr
			}
		}
	}
	c.state.Store(int32(StateDisconnected))
	return &core.ConnectionError{Provider: c.name, Attempts: c.maxRetries, Err: lastErr}
}

// establish performs one connection attempt: open a transport and run the
// initialize handshake over it.
func (c *Client) establish(ctx context.Context) error {
	t, err := c.factory(ctx)
	if err != nil {
		return err
	}
	var res initializeResult
	params := initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: clientName, Version: clientVersion},
	}
	if err := c.roundTrip(ctx, t, "initialize", params, &res); err != nil {
		_ = t.Close()
		return err
	}
	if err := c.notify(ctx, t, "notifications/initialized"); err != nil {
		_ = t.Close()
		return err
	}

	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()
	return nil
}

// ListTools returns the provider's tool listing, serving from cache when
// caching is enabled and the cache is clean and non-empty. The dirty flag
// is cleared only after a successful fetch, so a failed fetch leaves the
// cache dirty and the next call re-fetches.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	t := c.session()
	if t == nil {
		return nil, &core.NotInitializedError{Provider: c.name}
	}

	c.mu.Lock()
	if c.cacheToolsList && !c.cacheDirty && len(c.tools) > 0 {
		tools := c.tools
		c.mu.Unlock()
		return tools, nil
	}
	c.mu.Unlock()

	var res toolListResult
	if err := c.roundTrip(ctx, t, "tools/list", nil, &res); err != nil {
		c.logger.Error("mcp.list_tools.failed", "provider", c.name, "error", err.Error())
		return nil, err
	}

	c.mu.Lock()
	c.tools = res.Tools
	c.cacheDirty = false
	c.mu.Unlock()
	return res.Tools, nil
}

// InvalidateToolsCache forces the next ListTools call to re-fetch.
func (c *Client) InvalidateToolsCache() {
	c.mu.Lock()
	c.cacheDirty = true
	c.mu.Unlock()
}

// CallTool invokes a tool. The arguments pass through the middleware
// pipeline once; the (possibly transformed) arguments are then dispatched
// with up to the configured number of attempts, reconnecting after each
// failure. A middleware failure aborts immediately without retry.
func (c *Client) CallTool(ctx context.Context, toolName string, args map[string]any) (*CallToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	processed := args
	for _, mw := range c.middleware {
		var err error
		processed, err = mw(ctx, toolName, processed)
		if err != nil {
			c.logger.Error("mcp.middleware.failed", "provider", c.name, "tool", toolName, "error", err.Error())
			return nil, &MiddlewareError{ToolName: toolName, Err: err}
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		result, err := c.attemptCall(ctx, toolName, processed)
		if err == nil {
			return result, nil
		}
		lastErr = err
		c.logger.Error("mcp.call_tool.failed", "provider", c.name, "tool", toolName, "attempt", attempt, "max_retries", c.maxRetries, "error", err.Error())
		c.Cleanup()
		if attempt < c.maxRetries {
			c.logger.Info("mcp.call_tool.reconnect", "provider", c.name, "tool", toolName, "delay", c.retryDelay.String())
			if serr := sleep(ctx, c.retryDelay); serr != nil {
				return nil, serr
			}
			if cerr := c.Connect(ctx); cerr != nil {
				return nil, cerr
			}
		}
	}
	c.logger.Error("mcp.call_tool.exhausted", "provider", c.name, "tool", toolName, "max_retries", c.maxRetries)
	return nil, lastErr
}

func (c *Client) attemptCall(ctx context.Context, toolName string, args map[string]any) (*CallToolResult, error) {
	t := c.session()
	if t == nil {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		if t = c.session(); t == nil {
			return nil, &core.NotInitializedError{Provider: c.name}
		}
	}
	var res CallToolResult
	if err := c.roundTrip(ctx, t, "tools/call", callToolParams{Name: toolName, Arguments: args}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Cleanup releases the transport and resets the session. It is safe to call
// multiple times and serialized against concurrent cleanups. The tool cache
// is marked dirty because descriptors from the old session are no longer
// trustworthy.
func (c *Client) Cleanup() {
	c.cleanupMu.Lock()
	defer c.cleanupMu.Unlock()

	c.mu.Lock()
	t := c.transport
	c.transport = nil
	c.cacheDirty = true
	c.mu.Unlock()
	c.state.Store(int32(StateDisconnected))

	if t == nil {
		return
	}
	if err := t.Close(); err != nil {
		c.logger.Error("mcp.cleanup.failed", "provider", c.name, "error", err.Error())
		return
	}
	c.logger.Info("mcp.cleanup.success", "provider", c.name)
}

// Close implements core.ProviderClient.
func (c *Client) Close() error {
	c.Cleanup()
	return nil
}

// Callables implements core.ProviderClient by mapping the tool listing onto
// uniform descriptors.
func (c *Client) Callables(ctx context.Context) ([]core.Callable, error) {
	tools, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Callable, 0, len(tools))
	for _, t := range tools {
		schema := map[string]any{}
		if len(t.InputSchema) > 0 {
			if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
				c.logger.Warn("mcp.schema.invalid", "provider", c.name, "tool", t.Name, "error", err.Error())
				schema = map[string]any{}
			}
		}
		if len(schema) == 0 {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, core.Callable{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return out, nil
}

// Invoke implements core.ProviderClient: it calls the tool and concatenates
// the text content parts of the result.
func (c *Client) Invoke(ctx context.Context, toolName string, args map[string]any) (string, error) {
	result, err := c.CallTool(ctx, toolName, args)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, part := range result.Content {
		sb.WriteString(part.Text())
	}
	text := sb.String()
	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", &core.TaskError{Provider: c.name, Message: text}
	}
	return text, nil
}

func (c *Client) session() Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

func (c *Client) roundTrip(ctx context.Context, t Transport, method string, params any, out any) error {
	id := c.nextID.Add(1)
	req := rpcRequest{JSONRPC: "2.0", ID: &id, Method: method, Params: params}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	raw, err := t.Call(ctx, b)
	if err != nil {
		return err
	}
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("mcp: decode response for %s: %w", method, err)
	}
	if resp.Error != nil {
		return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if out == nil {
		return nil
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("mcp: empty result for %s", method)
	}
	return json.Unmarshal(resp.Result, out)
}

func (c *Client) notify(ctx context.Context, t Transport, method string) error {
	req := rpcRequest{JSONRPC: "2.0", Method: method}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = t.Call(ctx, b)
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
