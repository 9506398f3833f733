package compare

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		steps   []pathStep
		wantErr bool
	}{
		{
			name:  "single field",
			path:  ".price",
			steps: []pathStep{{field: "price", index: -1}},
		},
		{
			name:  "leading dot is optional",
			path:  "price",
			steps: []pathStep{{field: "price", index: -1}},
		},
		{
			name:  "nested fields",
			path:  ".user.name",
			steps: []pathStep{{field: "user", index: -1}, {field: "name", index: -1}},
		},
		{
			name:  "array index",
			path:  ".items[2].name",
			steps: []pathStep{{field: "items", index: 2}, {field: "name", index: -1}},
		},
		{
			name:    "empty path",
			path:    ".",
			wantErr: true,
		},
		{
			name:    "empty segment",
			path:    ".a..b",
			wantErr: true,
		},
		{
			name:    "non-numeric index",
			path:    ".items[x]",
			wantErr: true,
		},
		{
			name:    "unterminated index",
			path:    ".items[2",
			wantErr: true,
		},
		{
			name:    "negative index",
			path:    ".items[-1]",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := parsePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.steps, steps)
		})
	}
}

func decode(t *testing.T, doc string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(doc), &v))
	return v
}

func TestGetSetPath(t *testing.T) {
	doc := decode(t, `{"items": [{"qty": 1}, {"qty": 2}], "total": 3}`)

	steps, err := parsePath(".items[1].qty")
	require.NoError(t, err)

	v, ok := getPath(doc, steps)
	require.True(t, ok)
	assert.Equal(t, float64(2), v)

	require.True(t, setPath(doc, steps, float64(9)))
	v, ok = getPath(doc, steps)
	require.True(t, ok)
	assert.Equal(t, float64(9), v)

	missing, err := parsePath(".items[5].qty")
	require.NoError(t, err)
	_, ok = getPath(doc, missing)
	assert.False(t, ok)
	assert.False(t, setPath(doc, missing, 0))
}

func TestDeletePathFansOutOverArrays(t *testing.T) {
	doc := decode(t, `{"items": [{"id": "a", "qty": 1}, {"id": "b", "qty": 2}]}`)

	steps, err := parsePath(".items.id")
	require.NoError(t, err)
	deletePath(doc, steps)

	assert.Equal(t, `{"items":[{"qty":1},{"qty":2}]}`, canonicalString(doc))
}

func TestDeletePathWithIndexRemovesElement(t *testing.T) {
	doc := decode(t, `{"items": [1, 2, 3]}`)

	steps, err := parsePath(".items[1]")
	require.NoError(t, err)
	deletePath(doc, steps)

	assert.Equal(t, `{"items":[1,3]}`, canonicalString(doc))
}
