package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	opts := Default()
	assert.Equal(t, DiagnosticText, opts.DiagnosticFormat)
	assert.Equal(t, 0, opts.MaxErrors)
	assert.Equal(t, 64, opts.WordSize)
	assert.Empty(t, opts.ImportRoots)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chrispp.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
diagnostic_format = "json"
max_errors = 20
import_roots = ["lib", "vendor/chr"]
word_size = 32
`), 0o644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DiagnosticJSON, opts.DiagnosticFormat)
	assert.Equal(t, 20, opts.MaxErrors)
	assert.Equal(t, []string{"lib", "vendor/chr"}, opts.ImportRoots)
	assert.Equal(t, 32, opts.WordSize)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chrispp.toml")
	require.NoError(t, os.WriteFile(path, []byte(`max_errors = 5`), 0o644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, opts.MaxErrors)
	assert.Equal(t, DiagnosticText, opts.DiagnosticFormat)
	assert.Equal(t, 64, opts.WordSize)
}

func TestLoadRejectsBadWordSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chrispp.toml")
	require.NoError(t, os.WriteFile(path, []byte(`word_size = 16`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
