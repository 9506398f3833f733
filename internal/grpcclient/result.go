package grpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RPCError is the application-level failure payload of a non-zero client
// exit: a gRPC status decoded from the client's error output.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error: code = %d, message = %q", e.Code, e.Message)
}

// Result is the captured outcome of one client invocation.
type Result struct {
	// Messages holds each response message as compact JSON, in arrival
	// order. Unary calls produce exactly one entry.
	Messages []json.RawMessage
	// Headers and Trailers are the call metadata reported by the client.
	Headers  map[string]string
	Trailers map[string]string
	// ExitCode is the client process exit status.
	ExitCode int
	// RPCError is set when the client exited non-zero with a parseable
	// status payload. A Result with a nil RPCError is a successful call.
	RPCError *RPCError
	// Invocation is the rendered command, retained for diagnostics and
	// dry-run display.
	Invocation Invocation
	// Stderr is the raw diagnostic output of the client.
	Stderr string
}

// grpcCodeNames maps canonical gRPC status names to numeric codes, for
// clients that report failures as "Code: NotFound" text rather than JSON.
var grpcCodeNames = map[string]int{
	"OK":                 0,
	"Canceled":           1,
	"Unknown":            2,
	"InvalidArgument":    3,
	"DeadlineExceeded":   4,
	"NotFound":           5,
	"AlreadyExists":      6,
	"PermissionDenied":   7,
	"ResourceExhausted":  8,
	"FailedPrecondition": 9,
	"Aborted":            10,
	"OutOfRange":         11,
	"Unimplemented":      12,
	"Internal":           13,
	"Unavailable":        14,
	"DataLoss":           15,
	"Unauthenticated":    16,
}

// parseMessages decodes the successive JSON documents the client writes to
// standard output, one per response message.
func parseMessages(stdout []byte) ([]json.RawMessage, error) {
	var messages []json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(stdout))
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("client emitted invalid JSON: %w", err)
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		messages = append(messages, json.RawMessage(buf.Bytes()))
	}
	return messages, nil
}

// parseErrorPayload extracts the {code,message,details} status from the
// client's error output. The primary form is a JSON object anywhere in the
// output; the fallback accepts grpcurl's "Code:"/"Message:" text lines.
func parseErrorPayload(output string) *RPCError {
	if idx := strings.Index(output, "{"); idx >= 0 {
		var rpcErr RPCError
		dec := json.NewDecoder(strings.NewReader(output[idx:]))
		if err := dec.Decode(&rpcErr); err == nil && (rpcErr.Message != "" || rpcErr.Code != 0) {
			return &rpcErr
		}
	}

	var rpcErr RPCError
	found := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(line, "Code:"); ok {
			name = strings.TrimSpace(name)
			if code, known := grpcCodeNames[name]; known {
				rpcErr.Code = code
				found = true
			}
		}
		if msg, ok := strings.CutPrefix(line, "Message:"); ok {
			rpcErr.Message = strings.TrimSpace(msg)
			found = true
		}
	}
	if !found {
		return nil
	}
	return &rpcErr
}

// parseMetadata collects header and trailer blocks from the client's
// diagnostic output:
//
//	Response headers received:
//	content-type: application/grpc
//
//	Response trailers received:
//	x-request-id: abc
//
// A blank line or a new block heading ends the current block.
func parseMetadata(output string) (headers, trailers map[string]string) {
	headers = make(map[string]string)
	trailers = make(map[string]string)

	var current map[string]string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "Response headers received"):
			current = headers
		case strings.HasPrefix(trimmed, "Response trailers received"):
			current = trailers
		case trimmed == "":
			current = nil
		case current != nil:
			if name, value, ok := strings.Cut(trimmed, ":"); ok {
				current[strings.TrimSpace(name)] = strings.TrimSpace(value)
			}
		}
	}
	return headers, trailers
}
