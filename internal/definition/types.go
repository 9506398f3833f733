package definition

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"grpcheck/internal/compare"
)

// TestDefinition is the structured form of one definition file: one RPC call
// plus its expected results.
type TestDefinition struct {
	// Path is the file the definition was parsed from.
	Path string
	// Address is the target host:port. Empty when the file has no ADDRESS
	// section; the orchestrator then supplies the configured default.
	Address string
	// Endpoint is the fully-qualified method, e.g. "pkg.Service/Method".
	Endpoint string
	// Requests holds one compact JSON document per request message, in file
	// order. Multiple entries drive client-streaming and bidi calls.
	Requests []json.RawMessage
	// ExpectedResponse is the RESPONSE section body, nil when absent.
	ExpectedResponse json.RawMessage
	// ExpectedError is the ERROR section, nil when absent.
	ExpectedError *ExpectedError
	// Assertions holds one predicate group per ASSERTS section, matched 1:1
	// in order to streamed response messages.
	Assertions [][]string
	// Headers are sent as call metadata.
	Headers map[string]string
	// TLS is nil for plaintext calls.
	TLS *TLSConfig
	// Proto selects the schema source for the external client.
	Proto ProtoConfig
	// Response controls how ExpectedResponse is compared.
	Response compare.Options
	// Options are per-test execution overrides.
	Options Options
}

// ValidationKind identifies which validation branch applies to a definition.
type ValidationKind int

const (
	// ValidateNone means successful execution is the only expectation.
	ValidateNone ValidationKind = iota
	// ValidateError compares an RPC failure against the ERROR section.
	ValidateError
	// ValidateAssertions runs predicate groups against streamed messages.
	ValidateAssertions
	// ValidateResponse compares the response against the RESPONSE section.
	ValidateResponse
)

// Validation returns the authoritative validation branch for this
// definition. Priority when several expectations are present:
// error > assertions > response > none. A RESPONSE marked with_asserts is
// combined with assertions by the orchestrator; the parser has already
// rejected the conflicting case.
func (d *TestDefinition) Validation() ValidationKind {
	switch {
	case d.ExpectedError != nil:
		return ValidateError
	case len(d.Assertions) > 0:
		return ValidateAssertions
	case d.ExpectedResponse != nil:
		return ValidateResponse
	default:
		return ValidateNone
	}
}

// ExpectedError is the ERROR section: the application error the RPC is
// expected to fail with.
type ExpectedError struct {
	// Code is the gRPC status code. Nil means any code matches.
	Code *int `json:"code"`
	// Message must be contained in the actual error message when set.
	Message string `json:"message"`
	// Details, when present, must be a subset of the actual error details.
	Details json.RawMessage `json:"details"`
}

// Matches reports whether an actual RPC failure satisfies this expectation
// and, when it does not, why.
func (e *ExpectedError) Matches(code int, message string, details []byte) (bool, string) {
	if e.Code != nil && *e.Code != code {
		return false, fmt.Sprintf("expected error code %d, got %d", *e.Code, code)
	}
	if e.Message != "" && !strings.Contains(strings.ToLower(message), strings.ToLower(e.Message)) {
		return false, fmt.Sprintf("error message %q does not contain %q", message, e.Message)
	}
	if len(e.Details) > 0 {
		if len(details) == 0 {
			return false, "expected error details but none were returned"
		}
		res, err := compare.Compare(e.Details, details, compare.Options{Mode: compare.ModePartial})
		if err != nil {
			return false, "error details are not comparable: " + err.Error()
		}
		if !res.Equal {
			return false, "error details mismatch:\n" + res.Diff
		}
	}
	return true, ""
}

// TLSConfig is the TLS section. A present-but-empty section enables TLS with
// system roots.
type TLSConfig struct {
	CACert             string
	Cert               string
	Key                string
	ServerName         string
	InsecureSkipVerify bool
}

// ProtoMode selects how the external client resolves the service schema.
type ProtoMode string

const (
	// ProtoReflection uses server reflection. The default.
	ProtoReflection ProtoMode = "reflection"
	// ProtoFiles compiles local .proto files.
	ProtoFiles ProtoMode = "files"
	// ProtoDescriptor loads a precompiled descriptor set.
	ProtoDescriptor ProtoMode = "descriptor"
)

// ProtoConfig is the PROTO section.
type ProtoConfig struct {
	Mode        ProtoMode
	Files       []string
	ImportPaths []string
	Descriptor  string
}

// Options is the OPTIONS section: per-test execution overrides.
type Options struct {
	// Timeout bounds the external client invocation. Zero means the runner
	// default applies.
	Timeout time.Duration
	// Retries overrides the runner's maximum attempt count. Nil means no
	// override; zero disables retries for this test.
	Retries *int
}
