package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransportJSONResponse(t *testing.T) {
	var gotSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.Header.Get("Mcp-Session-Id")
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Mcp-Session-Id", "sess-1")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":7,"result":{"ok":true}}`))
	}))
	defer srv.Close()

	factory := NewHTTPTransportFactory(HTTPTransportConfig{URL: srv.URL})
	tr, err := factory(context.Background())
	require.NoError(t, err)

	resp, err := tr.Call(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":{"ok":true}}`, string(resp))

	// The negotiated session id is echoed on the next request.
	_, err = tr.Call(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":8,"method":"tools/list"}`))
	require.NoError(t, err)
	assert.Equal(t, "sess-1", gotSession)
}

func TestHTTPTransportSSEResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"data: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/progress\"}\n\n" +
				"data: {\"jsonrpc\":\"2.0\",\"id\":3,\"result\":{\"tools\":[]}}\n\n"))
	}))
	defer srv.Close()

	factory := NewHTTPTransportFactory(HTTPTransportConfig{URL: srv.URL})
	tr, err := factory(context.Background())
	require.NoError(t, err)

	resp, err := tr.Call(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`))
	require.NoError(t, err)

	var parsed rpcResponse
	require.NoError(t, json.Unmarshal(resp, &parsed))
	assert.Equal(t, int64(3), parsed.ID)
}

func TestHTTPTransportStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	factory := NewHTTPTransportFactory(HTTPTransportConfig{URL: srv.URL})
	tr, err := factory(context.Background())
	require.NoError(t, err)

	_, err = tr.Call(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestHTTPTransportSendsHeaders(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	}))
	defer srv.Close()

	factory := NewHTTPTransportFactory(HTTPTransportConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer token-123"},
	})
	tr, err := factory(context.Background())
	require.NoError(t, err)

	_, err = tr.Call(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	require.NoError(t, err)
	assert.Equal(t, "Bearer token-123", gotAuth)
}
