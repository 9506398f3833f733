package grpcclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessages(t *testing.T) {
	t.Run("single message", func(t *testing.T) {
		msgs, err := parseMessages([]byte(`{"id": "7"}`))
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, `{"id":"7"}`, string(msgs[0]))
	})

	t.Run("streamed messages", func(t *testing.T) {
		msgs, err := parseMessages([]byte(`{"seq": 1}
{"seq": 2}
{"seq": 3}`))
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, `{"seq":2}`, string(msgs[1]))
	})

	t.Run("empty output", func(t *testing.T) {
		msgs, err := parseMessages(nil)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := parseMessages([]byte(`{"ok": true} garbage`))
		assert.Error(t, err)
	})
}

func TestParseErrorPayload(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   *RPCError
	}{
		{
			name:   "json payload",
			output: `ERROR: {"code": 5, "message": "user not found"}`,
			want:   &RPCError{Code: 5, Message: "user not found"},
		},
		{
			name: "grpcurl text form",
			output: `ERROR:
  Code: NotFound
  Message: user not found`,
			want: &RPCError{Code: 5, Message: "user not found"},
		},
		{
			name:   "text form with unknown code name keeps message",
			output: "Message: it broke",
			want:   &RPCError{Message: "it broke"},
		},
		{
			name:   "no parseable payload",
			output: "something went sideways",
			want:   nil,
		},
		{
			name:   "empty output",
			output: "",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseErrorPayload(tt.output)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want.Code, got.Code)
			assert.Equal(t, tt.want.Message, got.Message)
		})
	}
}

func TestParseErrorPayloadDetails(t *testing.T) {
	got := parseErrorPayload(`{"code": 3, "message": "bad request", "details": {"field": "user_id"}}`)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Code)
	assert.JSONEq(t, `{"field": "user_id"}`, string(got.Details))
}

func TestParseMetadata(t *testing.T) {
	output := `Resolved method descriptor ...

Response headers received:
content-type: application/grpc
x-served-by: backend-2

Response trailers received:
x-request-id: req-42
`
	headers, trailers := parseMetadata(output)
	assert.Equal(t, "application/grpc", headers["content-type"])
	assert.Equal(t, "backend-2", headers["x-served-by"])
	assert.Equal(t, "req-42", trailers["x-request-id"])
	assert.NotContains(t, headers, "x-request-id")
}

func TestParseMetadataEmpty(t *testing.T) {
	headers, trailers := parseMetadata("no metadata here")
	assert.Empty(t, headers)
	assert.Empty(t, trailers)
}

func TestRPCErrorString(t *testing.T) {
	err := &RPCError{Code: 5, Message: "not found"}
	assert.Equal(t, `rpc error: code = 5, message = "not found"`, err.Error())
}
