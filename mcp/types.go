package mcp

import "encoding/json"

// JSON-RPC 2.0 envelope (subset used by MCP).

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcErrorBody   `json:"error,omitempty"`
}

type rpcErrorBody struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ToolInfo describes one tool offered by the provider. The descriptor is
// only valid for the lifetime of the session that produced it.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type toolListResult struct {
	Tools []ToolInfo `json:"tools"`
}

type callToolParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments,omitempty"`
}

// CallToolResult is the raw outcome of a tools/call request.
type CallToolResult struct {
	Content []ContentPart `json:"content,omitempty"`
	IsError bool          `json:"isError,omitempty"`
}

// ContentPart preserves the raw payload of one result content part. The
// protocol defines several part shapes; only text parts are interpreted
// here, everything else stays available through Raw.
type ContentPart struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the full payload alongside the extracted type tag.
func (p *ContentPart) UnmarshalJSON(b []byte) error {
	p.Raw = append(p.Raw[:0], b...)
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &tag); err != nil {
		return err
	}
	p.Type = tag.Type
	return nil
}

// Text returns the text of a text-typed part, or "" for other part kinds.
func (p *ContentPart) Text() string {
	if p.Type != "text" {
		return ""
	}
	var t struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(p.Raw, &t); err != nil {
		return ""
	}
	return t.Text
}

// Session initialization.

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version,omitempty"`
	} `json:"serverInfo"`
}
