package a2a

import "encoding/json"

// TaskState is the lifecycle state a task reports in its status object.
type TaskState string

const (
	// TaskStatePending means the task has been accepted but not started.
	TaskStatePending TaskState = "pending"
	// TaskStateRunning means the task is being processed.
	TaskStateRunning TaskState = "running"
	// TaskStateCompleted is the terminal success state.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed is the terminal failure state.
	TaskStateFailed TaskState = "failed"
	// TaskStateCancelled means the task was cancelled before completion.
	TaskStateCancelled TaskState = "cancelled"
)

// Skill is one capability advertised in the provider's agent card.
type Skill struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// DisplayName returns the skill name, falling back to the id when the card
// carries no name.
func (s Skill) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.ID != "" {
		return s.ID
	}
	return "unknown_skill"
}

// TaskResult is the outcome of one task exchange. It is derived from exactly
// one successful response and never mutated afterwards.
type TaskResult struct {
	// State reported by the provider.
	State TaskState

	// Text is the extracted agent reply for completed tasks.
	Text string

	// Empty marks a completed task that carried no extractable text in
	// either artifacts or history.
	Empty bool

	// RawStatus preserves the status object of a task that ended in a
	// non-terminal state, for caller inspection.
	RawStatus json.RawMessage
}

// JSON-RPC wire envelope for message/send.

type jsonrpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	Params  messageSendParams `json:"params"`
}

type messageSendParams struct {
	Message taskMessage `json:"message"`
}

type taskMessage struct {
	Role  string        `json:"role"`
	Parts []messagePart `json:"parts"`
}

type messagePart struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type agentCard struct {
	Skills []Skill `json:"skills"`
}
