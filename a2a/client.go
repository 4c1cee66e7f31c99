package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/logging"
)

const (
	// DefaultMaxRetries is the number of additional attempts after the
	// first transient failure.
	DefaultMaxRetries = 2

	agentCardPath = "/.well-known/agent.json"

	connectTimeout = 10 * time.Second
	readTimeout    = 60 * time.Second
	totalTimeout   = 75 * time.Second
)

// Options configures a stateless client.
type Options struct {
	// Headers are added to every request (discovery and task submission).
	Headers map[string]string

	// HTTPClient overrides the default client. The default uses a 10s
	// connect timeout and a 60s response timeout to accommodate
	// long-running tasks.
	HTTPClient *http.Client

	// Logger defaults to a slog-backed logger.
	Logger logging.Logger
}

// TaskOptions tunes a single SendTask call.
type TaskOptions struct {
	// SessionID groups tasks into one logical conversation. A fresh id is
	// generated when empty.
	SessionID string

	// MaxRetries is the number of additional attempts after a transient
	// failure (default 2). Values below 1 select the default.
	MaxRetries int
}

// Client exchanges tasks with an A2A provider. It holds no session state:
// every operation is an independent network exchange, so there is nothing
// to connect or reconnect.
type Client struct {
	name       string
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	logger     logging.Logger

	// backoffBase scales the exponential backoff; tests shrink it.
	backoffBase time.Duration
}

// NewClient creates a stateless client for the provider at baseURL.
func NewClient(name, baseURL string, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: totalTimeout,
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
				ResponseHeaderTimeout: readTimeout,
				MaxIdleConnsPerHost:   5,
				MaxConnsPerHost:       10,
			},
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDefaultSlogLogger()
	}
	return &Client{
		name:        name,
		baseURL:     strings.TrimRight(baseURL, "/"),
		headers:     opts.Headers,
		httpClient:  httpClient,
		logger:      logger,
		backoffBase: time.Second,
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string { return c.name }

// Connect implements core.ProviderClient. Stateless providers have no
// session to establish.
func (c *Client) Connect(context.Context) error { return nil }

// Close implements core.ProviderClient.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// ListSkills fetches the provider's agent card and returns the advertised
// skills. Transport failures, non-success statuses and malformed JSON all
// surface as *core.ConnectionError.
func (c *Client) ListSkills(ctx context.Context) ([]Skill, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+agentCardPath, nil)
	if err != nil {
		return nil, &core.ConnectionError{Provider: c.name, Err: err}
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &core.ConnectionError{Provider: c.name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.ConnectionError{Provider: c.name, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &core.ConnectionError{
			Provider: c.name,
			Err:      fmt.Errorf("agent card request returned status %d: %s", resp.StatusCode, body),
		}
	}

	var card agentCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, &core.ConnectionError{Provider: c.name, Err: fmt.Errorf("invalid agent card: %w", err)}
	}

	c.logger.Info("a2a.list_skills.success", "provider", c.name, "skills", len(card.Skills))
	return card.Skills, nil
}

// SendTask submits userText as a task and returns the extracted result.
// Transport-level failures are retried with exponential backoff (1s, 2s,
// 4s, ...); protocol-level failures are returned immediately as
// *core.TaskError. Exhausting the retry budget yields a
// *core.ConnectionError naming the attempt count.
func (c *Client) SendTask(ctx context.Context, userText string, opts *TaskOptions) (*TaskResult, error) {
	maxRetries := DefaultMaxRetries
	sessionID := ""
	if opts != nil {
		if opts.MaxRetries >= 1 {
			maxRetries = opts.MaxRetries
		}
		sessionID = opts.SessionID
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	// One task id per logical send; retried attempts reuse it.
	taskID := uuid.NewString()

	payload, err := json.Marshal(jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      taskID,
		Method:  "message/send",
		Params: messageSendParams{
			Message: taskMessage{
				Role:  "user",
				Parts: []messagePart{{Kind: "text", Text: userText}},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		c.logger.Debug("a2a.send_task.attempt",
			"provider", c.name, "task_id", taskID, "session_id", sessionID,
			"attempt", attempt+1, "max_attempts", maxRetries+1)

		result, err := c.exchange(ctx, payload)
		if err == nil {
			return result, nil
		}
		var transient *transientError
		if !errors.As(err, &transient) {
			return nil, err
		}
		lastErr = transient.err
		c.logger.Warn("a2a.send_task.transient", "provider", c.name, "attempt", attempt+1, "error", lastErr.Error())
		if attempt < maxRetries {
			if serr := sleep(ctx, c.backoffBase<<attempt); serr != nil {
				return nil, serr
			}
		}
	}

	c.logger.Error("a2a.send_task.exhausted", "provider", c.name, "attempts", maxRetries+1)
	return nil, &core.ConnectionError{Provider: c.name, Attempts: maxRetries + 1, Err: lastErr}
}

// exchange performs one POST attempt and classifies its failure mode:
// transient failures are wrapped in *transientError, everything else is
// final.
func (c *Client) exchange(ctx context.Context, payload []byte) (*TaskResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(payload))
	if err != nil {
		return nil, &core.ConnectionError{Provider: c.name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &core.TaskError{
			Provider: c.name,
			Message:  fmt.Sprintf("task request returned status %d: %s", resp.StatusCode, body),
		}
	}

	return c.parseEnvelope(body)
}

// parseEnvelope extracts the task outcome from a JSON-RPC response body.
// The reply text may live in several places; they are tried in order:
// artifact text parts, then the most recent agent message in history, then
// an explicit empty sentinel.
func (c *Client) parseEnvelope(body []byte) (*TaskResult, error) {
	if !gjson.ValidBytes(body) {
		// Malformed payloads are a persistent server problem; retrying
		// would reproduce them, so fail immediately.
		return nil, &core.ConnectionError{Provider: c.name, Err: fmt.Errorf("invalid JSON in task response")}
	}

	if errField := gjson.GetBytes(body, "error"); errField.Exists() {
		msg := errField.Get("message").String()
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &core.TaskError{Provider: c.name, Message: msg}
	}

	result := gjson.GetBytes(body, "result")
	status := result.Get("status")

	switch TaskState(status.Get("state").String()) {
	case TaskStateCompleted:
		if text := textFromParts(result.Get("artifacts.0.parts")); text != "" {
			c.logger.Debug("a2a.reply.from_artifacts", "provider", c.name, "chars", len(text))
			return &TaskResult{State: TaskStateCompleted, Text: text}, nil
		}
		history := result.Get("history").Array()
		for i := len(history) - 1; i >= 0; i-- {
			msg := history[i]
			if msg.Get("role").String() != "agent" {
				continue
			}
			if text := textFromParts(msg.Get("parts")); text != "" {
				c.logger.Debug("a2a.reply.from_history", "provider", c.name, "chars", len(text))
				return &TaskResult{State: TaskStateCompleted, Text: text}, nil
			}
		}
		return &TaskResult{State: TaskStateCompleted, Empty: true}, nil

	case TaskStateFailed:
		if text := textFromParts(status.Get("message.parts")); text != "" {
			return nil, &core.TaskError{Provider: c.name, Message: text}
		}
		return nil, &core.TaskError{Provider: c.name, Message: status.Raw}

	default:
		return &TaskResult{
			State:     TaskState(status.Get("state").String()),
			RawStatus: json.RawMessage(status.Raw),
		}, nil
	}
}

// Callables implements core.ProviderClient. Every skill is exposed with the
// same fixed schema: one required string field "prompt". Richer
// skill-specific parameterization declared in the agent card is not mapped.
func (c *Client) Callables(ctx context.Context) ([]core.Callable, error) {
	skills, err := c.ListSkills(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Callable, 0, len(skills))
	for _, s := range skills {
		out = append(out, core.Callable{
			Name:        s.DisplayName(),
			Description: s.Description,
			InputSchema: promptSchema(),
		})
	}
	return out, nil
}

// Invoke implements core.ProviderClient: the "prompt" argument is forwarded
// as the task's user text.
func (c *Client) Invoke(ctx context.Context, _ string, args map[string]any) (string, error) {
	prompt, _ := args["prompt"].(string)
	result, err := c.SendTask(ctx, prompt, nil)
	if err != nil {
		return "", err
	}
	switch {
	case result.Empty:
		return "task completed but returned no text content", nil
	case result.State == TaskStateCompleted:
		return result.Text, nil
	default:
		return fmt.Sprintf("task did not complete (state: %s)", result.State), nil
	}
}

func promptSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "Prompt forwarded to the remote skill",
			},
		},
		"required": []any{"prompt"},
	}
}

func (c *Client) applyHeaders(req *http.Request) {
	for k, v := range c.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
}

func textFromParts(parts gjson.Result) string {
	var sb strings.Builder
	for _, p := range parts.Array() {
		if p.Get("kind").String() != "text" {
			continue
		}
		if t := p.Get("text"); t.Exists() {
			sb.WriteString(t.String())
		}
	}
	return sb.String()
}

// transientError marks a failure worth retrying (connect errors, timeouts,
// interrupted reads).
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

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
