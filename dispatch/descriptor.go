// Package dispatch normalizes REST, GraphQL and gRPC invocations behind one
// call contract. A CallDescriptor names exactly one protocol and carries the
// payload prepared by the operator; every outcome, including local rejection
// of a malformed descriptor, is reported as a ResultEnvelope rather than an
// error so the recovery layer can reason about it uniformly.
package dispatch

import (
	"fmt"
)

// Protocol identifies the wire protocol of a call.
type Protocol string

const (
	ProtocolREST    Protocol = "rest"
	ProtocolGraphQL Protocol = "graphql"
	ProtocolGRPC    Protocol = "grpc"
)

// ToolMetadata is the protocol-specific address and routing information of a
// tool, as produced by the operator. Only the fields of the named protocol
// are meaningful.
type ToolMetadata struct {
	Type Protocol `json:"type"`

	// REST
	BaseURL      string `json:"base_url,omitempty"`
	PathTemplate string `json:"path_template,omitempty"`
	Method       string `json:"method,omitempty"`

	// gRPC
	Service string `json:"service,omitempty"`
	RPC     string `json:"rpc,omitempty"`
}

// CallDescriptor describes one remote call. It is owned exclusively by the
// invoking step for the duration of a dispatch; the recovery loop replaces
// Payload wholesale when a fix is applied, never merges into it.
type CallDescriptor struct {
	Metadata      ToolMetadata   `json:"tool_metadata"`
	Payload       map[string]any `json:"payload,omitempty"`
	ExtractFields []string       `json:"extract_fields,omitempty"`
}

// CallContext carries the per-step execution context a dispatch may need:
// credentials for outbound calls and the plan context used by oracle-driven
// projection. It is scoped to one plan execution, never process-wide.
type CallContext struct {
	Session   *Session
	Task      string
	UserQuery string
	Plan      []string
	// Prior holds outputs of causally preceding steps, keyed step_N_result.
	Prior map[string]any
}

// ResultEnvelope is the normalized outcome of one dispatch. Envelopes are
// immutable once produced; the recovery loop wraps a terminal explanation
// into a fresh envelope instead of mutating the last one.
type ResultEnvelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	// RawErrorBody preserves the remote response body of a failed call for
	// the failure classifier.
	RawErrorBody string `json:"raw_error_body,omitempty"`

	// Set by the recovery loop on terminal explanations only.
	IsFinalError bool   `json:"is_final_error,omitempty"`
	Explanation  string `json:"explanation,omitempty"`

	defect bool
}

// DescriptorDefect reports whether the failure originated in the descriptor
// itself (missing path parameter, unregistered gRPC method, unknown payload
// field). Such failures are planning bugs: they are never retried.
func (e *ResultEnvelope) DescriptorDefect() bool {
	return e != nil && e.defect
}

// NewSuccess returns a successful envelope carrying data.
func NewSuccess(data any) *ResultEnvelope {
	return &ResultEnvelope{Success: true, Data: data}
}

// NewFailure returns a failed envelope for a remote or transport error.
func NewFailure(format string, args ...any) *ResultEnvelope {
	return &ResultEnvelope{Error: fmt.Sprintf(format, args...)}
}

// NewDefect returns a failed envelope for a descriptor-level defect.
func NewDefect(format string, args ...any) *ResultEnvelope {
	return &ResultEnvelope{Error: fmt.Sprintf(format, args...), defect: true}
}
