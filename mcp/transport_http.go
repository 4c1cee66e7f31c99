package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/toolmesh/internal/sse"
)

const (
	defaultHTTPTimeout    = 5 * time.Second
	defaultSSEReadTimeout = 5 * time.Minute
)

// HTTPTransport speaks MCP streamable HTTP: every JSON-RPC message is POSTed
// to the provider URL and the response arrives either as a plain JSON body
// or as an SSE stream from which the matching message is extracted. A
// session identifier issued by the provider is echoed on subsequent
// requests.
type HTTPTransport struct {
	url     string
	headers map[string]string
	client  *http.Client

	mu        sync.Mutex
	sessionID string
}

// HTTPTransportConfig configures NewHTTPTransportFactory.
type HTTPTransportConfig struct {
	// URL of the provider endpoint. Required.
	URL string
	// Headers are added to every request.
	Headers map[string]string
	// Timeout bounds a plain JSON exchange (default 5s).
	Timeout time.Duration
	// SSEReadTimeout bounds reading a streamed response (default 5m).
	SSEReadTimeout time.Duration
}

// NewHTTPTransportFactory returns a factory producing streamable HTTP
// transports for the given endpoint.
func NewHTTPTransportFactory(cfg HTTPTransportConfig) TransportFactory {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	sseTimeout := cfg.SSEReadTimeout
	if sseTimeout <= 0 {
		sseTimeout = defaultSSEReadTimeout
	}
	return func(ctx context.Context) (Transport, error) {
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp: http transport url is required")
		}
		return &HTTPTransport{
			url:     cfg.URL,
			headers: cfg.Headers,
			// The SSE read timeout dominates: a streamed response may stay
			// open long past the plain request timeout.
			client: &http.Client{Timeout: sseTimeout},
		}, nil
	}
}

// Call implements Transport.
func (t *HTTPTransport) Call(ctx context.Context, req json.RawMessage) (json.RawMessage, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(req))
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", "application/json")
	// Streamable HTTP requires clients to advertise both response types.
	r.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range t.headers {
		if v != "" {
			r.Header.Set(k, v)
		}
	}
	t.mu.Lock()
	if t.sessionID != "" {
		r.Header.Set("Mcp-Session-Id", t.sessionID)
	}
	t.mu.Unlock()

	resp, err := t.client.Do(r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get("Mcp-Session-Id"); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &HTTPStatusError{URL: t.url, StatusCode: resp.StatusCode, Body: body}
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return t.readSSEResponse(resp.Body, req)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	// 202 Accepted with an empty body is valid for notifications.
	if resp.StatusCode == http.StatusAccepted && len(body) == 0 {
		return json.RawMessage(`{"jsonrpc":"2.0","id":0,"result":{}}`), nil
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("mcp: empty response body")
	}
	return json.RawMessage(body), nil
}

// readSSEResponse scans the event stream for the message answering req,
// skipping unrelated server messages and notifications.
func (t *HTTPTransport) readSSEResponse(r io.Reader, req json.RawMessage) (json.RawMessage, error) {
	var want struct {
		ID *int64 `json:"id"`
	}
	_ = json.Unmarshal(req, &want)

	scanner := sse.NewScanner(r)
	for scanner.Next() {
		data := scanner.Data()
		if len(data) == 0 {
			continue
		}
		var msg struct {
			ID *int64 `json:"id"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if want.ID != nil && msg.ID != nil && *msg.ID == *want.ID {
			return json.RawMessage(append([]byte(nil), data...)), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("mcp: event stream ended without a response")
}

// Close terminates the provider session if one was negotiated.
func (t *HTTPTransport) Close() error {
	t.mu.Lock()
	sid := t.sessionID
	t.sessionID = ""
	t.mu.Unlock()
	if sid == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultHTTPTimeout)
	defer cancel()

	r, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.url, nil)
	if err != nil {
		return nil
	}
	r.Header.Set("Mcp-Session-Id", sid)
	for k, v := range t.headers {
		if v != "" {
			r.Header.Set(k, v)
		}
	}
	resp, err := t.client.Do(r)
	if err != nil {
		return nil
	}
	// Providers may answer 405 when they do not support explicit session
	// termination.
	_ = resp.Body.Close()
	return nil
}
