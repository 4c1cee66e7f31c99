// Package mcp implements the streaming provider client: a resilient MCP
// (Model Context Protocol) client that maintains at most one live session
// per provider, retries connection establishment and tool calls with a
// bounded budget, caches the tool listing and applies a configurable
// middleware pipeline to every call's arguments.
//
// The wire transport is pluggable via the Transport interface; the package
// ships a streamable HTTP (with SSE responses) implementation and a
// WebSocket implementation.
package mcp
