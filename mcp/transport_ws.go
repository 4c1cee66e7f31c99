package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSTransport carries JSON-RPC messages over a single WebSocket connection.
// Calls are serialized: one request is written and the stream is read until
// the matching response arrives, skipping unrelated server messages.
type WSTransport struct {
	mu          sync.Mutex
	conn        *websocket.Conn
	readTimeout time.Duration
}

// WSTransportConfig configures NewWSTransportFactory.
type WSTransportConfig struct {
	// URL of the provider endpoint. http/https schemes are rewritten to
	// ws/wss.
	URL string
	// Headers are sent with the opening handshake.
	Headers map[string]string
	// HandshakeTimeout bounds the dial (default 5s).
	HandshakeTimeout time.Duration
	// ReadTimeout bounds waiting for a single response (default 5m).
	ReadTimeout time.Duration
}

// NewWSTransportFactory returns a factory that dials the endpoint on every
// connection attempt.
func NewWSTransportFactory(cfg WSTransportConfig) TransportFactory {
	handshake := cfg.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHTTPTimeout
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultSSEReadTimeout
	}
	return func(ctx context.Context) (Transport, error) {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("mcp: parse websocket url: %w", err)
		}
		switch u.Scheme {
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		}

		header := make(map[string][]string, len(cfg.Headers))
		for k, v := range cfg.Headers {
			if v != "" {
				header[k] = []string{v}
			}
		}

		dialer := websocket.Dialer{HandshakeTimeout: handshake}
		conn, resp, err := dialer.DialContext(ctx, u.String(), header)
		if err != nil {
			if resp != nil {
				_ = resp.Body.Close()
			}
			return nil, fmt.Errorf("mcp: dial websocket: %w", err)
		}
		return &WSTransport{conn: conn, readTimeout: readTimeout}, nil
	}
}

// Call implements Transport.
func (t *WSTransport) Call(ctx context.Context, req json.RawMessage) (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, fmt.Errorf("mcp: websocket transport closed")
	}

	var want struct {
		ID *int64 `json:"id"`
	}
	_ = json.Unmarshal(req, &want)

	deadline := time.Now().Add(t.readTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteMessage(websocket.TextMessage, req); err != nil {
		return nil, err
	}

	// Notifications carry no id and expect no response.
	if want.ID == nil {
		return json.RawMessage(`{"jsonrpc":"2.0","id":0,"result":{}}`), nil
	}

	_ = t.conn.SetReadDeadline(deadline)
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		var msg struct {
			ID *int64 `json:"id"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.ID != nil && *msg.ID == *want.ID {
			return json.RawMessage(data), nil
		}
	}
}

// Close implements Transport.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	_ = t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := t.conn.Close()
	t.conn = nil
	return err
}
