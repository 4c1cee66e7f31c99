// Package a2a implements the stateless provider client: every operation is
// an independent HTTP exchange with an A2A (agent-to-agent) provider. Skills
// are discovered from the well-known agent card; tasks are submitted as
// JSON-RPC message/send requests and the reply text is extracted from the
// response envelope, which may carry it in artifacts, in message history or
// embedded in the task status.
//
// Transport-level failures are retried with exponential backoff; protocol
// level failures (JSON-RPC error, failed task state) surface immediately as
// *core.TaskError.
package a2a
