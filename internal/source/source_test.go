package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLineIndexing(t *testing.T) {
	f := New("t.chr", "var x = 1;\nvar y = 2;\nprint(x);")
	require.Equal(t, 3, f.LineCount())
	assert.Equal(t, "var x = 1;", f.Line(1))
	assert.Equal(t, "var y = 2;", f.Line(2))
	assert.Equal(t, "print(x);", f.Line(3))
	assert.Equal(t, "", f.Line(4))
}

func TestFileSnippetCaret(t *testing.T) {
	f := New("t.chr", "var x = 1;")
	snip := f.Snippet(Span{File: "t.chr", Line: 1, Column: 5})
	assert.Equal(t, "var x = 1;\n    ^", snip)
}

func TestSpanString(t *testing.T) {
	s := Span{File: "a.chr", Line: 3, Column: 7}
	assert.Equal(t, "a.chr:3:7", s.String())
}
