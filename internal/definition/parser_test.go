package definition

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grpcheck/internal/compare"
)

func writeDefinition(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "case.gct")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseMinimalDefinition(t *testing.T) {
	path := writeDefinition(t, `
--- ADDRESS ---
localhost:50051

--- ENDPOINT ---
user.UserService/GetUser

--- REQUEST ---
{"user_id": "123"}
`)

	def, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:50051", def.Address)
	assert.Equal(t, "user.UserService/GetUser", def.Endpoint)
	require.Len(t, def.Requests, 1)
	assert.JSONEq(t, `{"user_id": "123"}`, string(def.Requests[0]))
	assert.Equal(t, ValidateNone, def.Validation())
	assert.Equal(t, ProtoReflection, def.Proto.Mode)
}

func TestParseAllSections(t *testing.T) {
	path := writeDefinition(t, `
--- ADDRESS ---
api.example.com:443

--- ENDPOINT ---
order.OrderService/CreateOrder

--- HEADERS ---
Authorization: Bearer token-123
X-Request-Id: abc

--- TLS ---
ca_cert = /etc/certs/ca.pem
server_name = api.example.com

--- PROTO ---
mode = files
files = order.proto, common.proto
import_paths = ./proto

--- OPTIONS ---
timeout = 5s
retries = 2

--- REQUEST ---
{"item": "widget", "qty": 3}

--- RESPONSE mode=partial ---
{"order_id": "*"}
`)

	def, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-123", def.Headers["Authorization"])
	assert.Equal(t, "abc", def.Headers["X-Request-Id"])

	require.NotNil(t, def.TLS)
	assert.Equal(t, "/etc/certs/ca.pem", def.TLS.CACert)
	assert.Equal(t, "api.example.com", def.TLS.ServerName)

	assert.Equal(t, ProtoFiles, def.Proto.Mode)
	assert.Equal(t, []string{"order.proto", "common.proto"}, def.Proto.Files)
	assert.Equal(t, []string{"./proto"}, def.Proto.ImportPaths)

	assert.Equal(t, "5s", def.Options.Timeout.String())
	require.NotNil(t, def.Options.Retries)
	assert.Equal(t, 2, *def.Options.Retries)

	assert.Equal(t, compare.ModePartial, def.Response.Mode)
	assert.Equal(t, ValidateResponse, def.Validation())
}

func TestParseStreamingRequests(t *testing.T) {
	path := writeDefinition(t, `
--- ENDPOINT ---
chat.ChatService/Stream

--- REQUEST ---
{"seq": 1}

--- REQUEST ---
{"seq": 2}

--- REQUEST ---
{"seq": 3}
`)

	def, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, def.Requests, 3)
	assert.JSONEq(t, `{"seq": 2}`, string(def.Requests[1]))
}

func TestParseComments(t *testing.T) {
	path := writeDefinition(t, `
# file-level comment
--- ENDPOINT --- # trailing comment on a marker
user.UserService/GetUser

--- REQUEST ---
{
  "note": "contains a # mark",  # but this one goes
  "id": "7"
}
`)

	def, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "user.UserService/GetUser", def.Endpoint)
	assert.JSONEq(t, `{"note": "contains a # mark", "id": "7"}`, string(def.Requests[0]))
}

func TestParseAsserts(t *testing.T) {
	path := writeDefinition(t, `
--- ENDPOINT ---
job.JobService/Watch

--- REQUEST ---
{"job_id": "j1"}

--- ASSERTS ---
.status == "RUNNING"
.progress >= 0

--- ASSERTS ---
.status == "DONE"
`)

	def, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, def.Assertions, 2)
	assert.Equal(t, []string{`.status == "RUNNING"`, ".progress >= 0"}, def.Assertions[0])
	assert.Equal(t, []string{`.status == "DONE"`}, def.Assertions[1])
	assert.Equal(t, ValidateAssertions, def.Validation())
}

func TestParseExpectedError(t *testing.T) {
	path := writeDefinition(t, `
--- ENDPOINT ---
user.UserService/GetUser

--- REQUEST ---
{"user_id": "missing"}

--- ERROR ---
{"code": 5, "message": "not found"}
`)

	def, err := Parse(path)
	require.NoError(t, err)
	require.NotNil(t, def.ExpectedError)
	require.NotNil(t, def.ExpectedError.Code)
	assert.Equal(t, 5, *def.ExpectedError.Code)
	assert.Equal(t, "not found", def.ExpectedError.Message)
	assert.Equal(t, ValidateError, def.Validation())
}

func TestParseTemplateExpansion(t *testing.T) {
	t.Setenv("GRPCHECK_TEST_USER", "alice")
	path := writeDefinition(t, `
--- ENDPOINT ---
user.UserService/GetUser

--- REQUEST ---
{"user": "{{ env "GRPCHECK_TEST_USER" }}", "n": {{ add 1 2 }}}
`)

	def, err := Parse(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user": "alice", "n": 3}`, string(def.Requests[0]))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		section string
	}{
		{
			name: "missing endpoint",
			content: `
--- REQUEST ---
{}
`,
			section: "ENDPOINT",
		},
		{
			name: "unknown section",
			content: `
--- ENDPOINT ---
a.B/C

--- BOGUS ---
x
`,
			section: "BOGUS",
		},
		{
			name: "duplicate singleton section",
			content: `
--- ENDPOINT ---
a.B/C

--- ENDPOINT ---
d.E/F
`,
			section: "ENDPOINT",
		},
		{
			name: "content before first marker",
			content: `stray text
--- ENDPOINT ---
a.B/C
`,
		},
		{
			name: "invalid request JSON",
			content: `
--- ENDPOINT ---
a.B/C

--- REQUEST ---
{"unterminated":
`,
			section: "REQUEST",
		},
		{
			name: "empty request",
			content: `
--- ENDPOINT ---
a.B/C

--- REQUEST ---
`,
			section: "REQUEST",
		},
		{
			name: "response and asserts conflict",
			content: `
--- ENDPOINT ---
a.B/C

--- REQUEST ---
{}

--- RESPONSE ---
{"ok": true}

--- ASSERTS ---
.ok
`,
			section: "RESPONSE",
		},
		{
			name: "malformed header line",
			content: `
--- ENDPOINT ---
a.B/C

--- HEADERS ---
not-a-header
`,
			section: "HEADERS",
		},
		{
			name: "unknown tls key",
			content: `
--- ENDPOINT ---
a.B/C

--- TLS ---
shiny = yes
`,
			section: "TLS",
		},
		{
			name: "proto files mode without files",
			content: `
--- ENDPOINT ---
a.B/C

--- PROTO ---
mode = files
`,
			section: "PROTO",
		},
		{
			name: "invalid timeout",
			content: `
--- ENDPOINT ---
a.B/C

--- OPTIONS ---
timeout = fast
`,
			section: "OPTIONS",
		},
		{
			name: "negative retries",
			content: `
--- ENDPOINT ---
a.B/C

--- OPTIONS ---
retries = -1
`,
			section: "OPTIONS",
		},
		{
			name: "multiple endpoint lines",
			content: `
--- ENDPOINT ---
a.B/C
d.E/F
`,
			section: "ENDPOINT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseContent("case.gct", tt.content)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "want ValidationError, got %T", err)
			assert.Equal(t, tt.section, verr.Section)
		})
	}
}

func TestParseResponseWithAssertsOptIn(t *testing.T) {
	def, err := parseContent("case.gct", `
--- ENDPOINT ---
a.B/C

--- REQUEST ---
{}

--- RESPONSE with_asserts partial ---
{"ok": true}

--- ASSERTS ---
.ok
`)
	require.NoError(t, err)
	assert.True(t, def.Response.WithAsserts)
	assert.Equal(t, compare.ModePartial, def.Response.Mode)
	assert.Equal(t, ValidateAssertions, def.Validation(), "assertions branch drives, response is combined by the runner")
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "absent.gct"))
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
