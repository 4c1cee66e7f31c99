package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/logging"
)

var _ core.ProviderClient = (*Client)(nil)

func newTestClient(srv *httptest.Server, rt http.RoundTripper) *Client {
	if rt == nil {
		rt = srv.Client().Transport
	}
	c := NewClient("agent", srv.URL, &Options{
		HTTPClient: &http.Client{Transport: rt},
		Logger:     logging.NoOpLogger{},
	})
	c.backoffBase = time.Millisecond
	return c
}

// flakyRoundTripper fails the first n requests at the transport level.
type flakyRoundTripper struct {
	failures int32
	calls    atomic.Int32
	next     http.RoundTripper
}

func (f *flakyRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, errors.New("read tcp: i/o timeout")
	}
	return f.next.RoundTrip(r)
}

func TestListSkills(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/.well-known/agent.json", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"skills":[{"id":"sum","name":"calculate_sum","description":"Adds numbers"},{"id":"echo"}]}`))
	}))
	defer srv.Close()

	c := NewClient("agent", srv.URL+"/", &Options{
		Headers: map[string]string{"Authorization": "Bearer tok"},
		Logger:  logging.NoOpLogger{},
	})
	c.httpClient = &http.Client{Transport: srv.Client().Transport}

	skills, err := c.ListSkills(context.Background())
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "calculate_sum", skills[0].DisplayName())
	// Cards without a skill name fall back to the id.
	assert.Equal(t, "echo", skills[1].DisplayName())
}

func TestListSkillsErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-success status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "denied", http.StatusForbidden)
			},
		},
		{
			name: "malformed JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"skills": [`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := newTestClient(srv, nil)
			_, err := c.ListSkills(context.Background())

			var connErr *core.ConnectionError
			require.ErrorAs(t, err, &connErr)
			assert.Equal(t, "agent", connErr.Provider)
		})
	}
}

func TestSendTaskCompletedWithArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, "message/send", req.Method)
		assert.NotEmpty(t, req.ID)
		require.Len(t, req.Params.Message.Parts, 1)
		assert.Equal(t, "user", req.Params.Message.Role)
		assert.Equal(t, "text", req.Params.Message.Parts[0].Kind)
		assert.Equal(t, "what's up", req.Params.Message.Parts[0].Text)

		_, _ = w.Write([]byte(`{"result":{"status":{"state":"completed"},"artifacts":[{"parts":[{"kind":"text","text":"hi"}]}]}}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv, nil).SendTask(context.Background(), "what's up", nil)
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, result.State)
	assert.Equal(t, "hi", result.Text)
	assert.False(t, result.Empty)
}

func TestSendTaskConcatenatesTextParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"status":{"state":"completed"},"artifacts":[{"parts":[{"kind":"text","text":"hel"},{"kind":"data","data":{}},{"kind":"text","text":"lo"}]}]}}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv, nil).SendTask(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Text)
}

func TestSendTaskFallsBackToHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"status":{"state":"completed"},"artifacts":[{"parts":[{"kind":"data","data":{}}]}],"history":[{"role":"user","parts":[{"kind":"text","text":"question"}]},{"role":"agent","parts":[{"kind":"text","text":"hist"}]}]}}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv, nil).SendTask(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "hist", result.Text)
}

func TestSendTaskCompletedButEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"status":{"state":"completed"}}}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv, nil).SendTask(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, result.State)
	assert.True(t, result.Empty)
	assert.Empty(t, result.Text)
}

func TestSendTaskFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"status":{"state":"failed","message":{"parts":[{"kind":"text","text":"boom"}]}}}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).SendTask(context.Background(), "hi", nil)
	var taskErr *core.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Contains(t, taskErr.Message, "boom")
}

func TestSendTaskFailedWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"status":{"state":"failed"}}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).SendTask(context.Background(), "hi", nil)
	var taskErr *core.TaskError
	require.ErrorAs(t, err, &taskErr)
	// The raw status is surfaced when no structured message exists.
	assert.Contains(t, taskErr.Message, "failed")
}

func TestSendTaskIncomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"status":{"state":"running","progress":0.5}}}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv, nil).SendTask(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, TaskStateRunning, result.State)
	assert.Contains(t, string(result.RawStatus), "progress")
}

func TestSendTaskJSONRPCErrorNotRetried(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"error":{"code":-32600,"message":"invalid request"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).SendTask(context.Background(), "hi", nil)
	var taskErr *core.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Contains(t, taskErr.Message, "invalid request")
	assert.Equal(t, int32(1), requests.Load())
}

func TestSendTaskStatusErrorNotRetried(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).SendTask(context.Background(), "hi", nil)
	var taskErr *core.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, int32(1), requests.Load())
}

func TestSendTaskTransientFailuresRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"status":{"state":"completed"},"artifacts":[{"parts":[{"kind":"text","text":"recovered"}]}]}}`))
	}))
	defer srv.Close()

	// Two timeouts, then success: within a budget of two retries.
	rt := &flakyRoundTripper{failures: 2, next: srv.Client().Transport}
	result, err := newTestClient(srv, rt).SendTask(context.Background(), "hi", &TaskOptions{MaxRetries: 2})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Text)
	assert.Equal(t, int32(3), rt.calls.Load())
}

func TestSendTaskExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"status":{"state":"completed"}}}`))
	}))
	defer srv.Close()

	rt := &flakyRoundTripper{failures: 2, next: srv.Client().Transport}
	_, err := newTestClient(srv, rt).SendTask(context.Background(), "hi", &TaskOptions{MaxRetries: 1})

	var connErr *core.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, 2, connErr.Attempts)
	assert.Equal(t, int32(2), rt.calls.Load())
}

func TestCallablesUsePromptSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"skills":[{"name":"plan trip","description":"Plans a trip"}]}`))
	}))
	defer srv.Close()

	callables, err := newTestClient(srv, nil).Callables(context.Background())
	require.NoError(t, err)
	require.Len(t, callables, 1)

	assert.Equal(t, "plan trip", callables[0].Name)
	props, ok := callables[0].InputSchema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "prompt")
	assert.Equal(t, []any{"prompt"}, callables[0].InputSchema["required"])
}

func TestInvokeForwardsPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "book a flight", req.Params.Message.Parts[0].Text)
		_, _ = w.Write([]byte(`{"result":{"status":{"state":"completed"},"artifacts":[{"parts":[{"kind":"text","text":"done"}]}]}}`))
	}))
	defer srv.Close()

	text, err := newTestClient(srv, nil).Invoke(context.Background(), "travel", map[string]any{"prompt": "book a flight"})
	require.NoError(t, err)
	assert.Equal(t, "done", text)
}
