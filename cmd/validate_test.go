package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.gct", `
--- ENDPOINT ---
a.B/C

--- REQUEST ---
{}
`)

	t.Run("valid definitions pass", func(t *testing.T) {
		err := validateDefinitions(validateCmd, []string{dir})
		assert.NoError(t, err)
	})

	t.Run("invalid definition is reported", func(t *testing.T) {
		broken := t.TempDir()
		writeFile(t, broken, "bad.gct", "--- REQUEST ---\n{}\n")

		err := validateDefinitions(validateCmd, []string{broken})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 1")
	})

	t.Run("empty directory errors", func(t *testing.T) {
		err := validateDefinitions(validateCmd, []string{t.TempDir()})
		assert.Error(t, err)
	})
}

func TestCommandsAreRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["validate"])
	assert.True(t, names["version"])
}
