package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryNames(t *testing.T) {
	r := NewDefaultRegistry()
	names := r.Names()
	for _, want := range []string{"header", "trailer", "uuid", "timestamp", "url", "email", "ip"} {
		assert.Contains(t, names, want)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	fn := func(Response, []string) (interface{}, error) { return true, nil }

	require.NoError(t, r.Register("custom", fn))
	assert.Error(t, r.Register("custom", fn))

	got, ok := r.Lookup("custom")
	assert.True(t, ok)
	assert.NotNil(t, got)

	_, ok = r.Lookup("absent")
	assert.False(t, ok)
}

func TestHeaderVerbIsCaseInsensitive(t *testing.T) {
	resp := Response{Headers: map[string]string{"X-Request-Id": "abc"}}

	v, err := verbHeader(resp, []string{"x-request-id"})
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	v, err = verbHeader(resp, []string{"missing"})
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = verbHeader(resp, []string{"a", "b"})
	assert.Error(t, err)
}

func TestValidatorVerbs(t *testing.T) {
	r := NewDefaultRegistry()

	doc := map[string]interface{}{
		"id":      "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		"ts":      "2024-06-01T12:00:00Z",
		"link":    "https://example.com/path",
		"contact": "alice@example.com",
		"addr":    "192.168.1.10",
		"count":   float64(3),
	}
	resp := Response{Message: doc}

	tests := []struct {
		name string
		verb string
		path string
		want bool
	}{
		{name: "valid uuid", verb: "uuid", path: ".id", want: true},
		{name: "non-uuid string", verb: "uuid", path: ".ts", want: false},
		{name: "valid timestamp", verb: "timestamp", path: ".ts", want: true},
		{name: "non-timestamp", verb: "timestamp", path: ".id", want: false},
		{name: "valid url", verb: "url", path: ".link", want: true},
		{name: "non-url", verb: "url", path: ".contact", want: false},
		{name: "valid email", verb: "email", path: ".contact", want: true},
		{name: "non-email", verb: "email", path: ".addr", want: false},
		{name: "valid ip", verb: "ip", path: ".addr", want: true},
		{name: "non-ip", verb: "ip", path: ".link", want: false},
		{name: "non-string value fails validation", verb: "uuid", path: ".count", want: false},
		{name: "missing field fails validation", verb: "uuid", path: ".absent", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, ok := r.Lookup(tt.verb)
			require.True(t, ok)
			v, err := fn(resp, []string{tt.path})
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestValidatorVerbArgumentCount(t *testing.T) {
	r := NewDefaultRegistry()
	fn, ok := r.Lookup("uuid")
	require.True(t, ok)

	_, err := fn(Response{Message: map[string]interface{}{}}, nil)
	assert.Error(t, err)

	_, err = fn(Response{Message: map[string]interface{}{}}, []string{".a", ".b"})
	assert.Error(t, err)
}
