package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, text string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "main.chr")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestCompileSimpleProgram(t *testing.T) {
	path := writeSource(t, `
func add(a: Int, b: Int) -> Int {
    return a + b;
}
func main() -> Int {
    return add(2, 3);
}
`)
	res, err := Compile(context.Background(), path, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.False(t, res.Diags.HasErrors())
	require.NotNil(t, res.Module)
	assert.NotEmpty(t, res.Module.BuildID)

	var names []string
	for _, fn := range res.Module.Functions {
		names = append(names, fn.Name)
	}
	assert.Contains(t, names, "add")
	assert.Contains(t, names, "main")
}

func TestCompileStopsAtSemaErrors(t *testing.T) {
	path := writeSource(t, `
func main() -> Int {
    return undefinedName;
}
`)
	res, err := Compile(context.Background(), path, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Diags.HasErrors())
	assert.Nil(t, res.Module)
}

func TestCompileCancelledContext(t *testing.T) {
	path := writeSource(t, `func main() -> Int { return 0; }`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compile(ctx, path, nil, nil)
	assert.Error(t, err)
}

func TestCompileMissingFile(t *testing.T) {
	_, err := Compile(context.Background(), filepath.Join(t.TempDir(), "missing.chr"), nil, nil)
	assert.Error(t, err)
}
