// Package source loads chrispp source files and indexes line offsets so
// that the line a span points at can be recovered as a printable snippet.
package source

import (
	"fmt"
	"os"
	"strings"
)

// Span is an immutable (file, line, column) triple. Both line and column
// are 1-based. Every token and AST node carries one.
type Span struct {
	File   string
	Line   int
	Column int
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// File holds the full text of a source file plus a precomputed index of
// where each line begins, so Snippet can recover a line of context
// without rescanning the file on every diagnostic.
type File struct {
	Name        string
	Text        string
	lineOffsets []int // byte offset of the start of each line (0-based)
}

// Load reads path and builds its line index.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: load %s: %w", path, err)
	}
	return New(path, string(data)), nil
}

// New builds a File directly from already-available text (used by Load
// once the file is read, and by tests).
func New(name, text string) *File {
	f := &File{Name: name, Text: text}
	f.indexLines()
	return f
}

func (f *File) indexLines() {
	f.lineOffsets = []int{0}
	for i, b := range []byte(f.Text) {
		if b == '\n' {
			f.lineOffsets = append(f.lineOffsets, i+1)
		}
	}
}

// LineCount returns the number of lines in the file.
func (f *File) LineCount() int {
	return len(f.lineOffsets)
}

// Line returns the text of the given 1-based line number, without its
// trailing newline. Returns "" for an out-of-range line.
func (f *File) Line(n int) string {
	if n < 1 || n > len(f.lineOffsets) {
		return ""
	}
	start := f.lineOffsets[n-1]
	var end int
	if n < len(f.lineOffsets) {
		end = f.lineOffsets[n] - 1 // drop the newline
	} else {
		end = len(f.Text)
	}
	if end < start {
		end = start
	}
	return strings.TrimRight(f.Text[start:end], "\r")
}

// Snippet renders the source line referenced by span plus a caret
// pointing at its column, for human-readable diagnostics.
func (f *File) Snippet(span Span) string {
	line := f.Line(span.Line)
	col := span.Column
	if col < 1 {
		col = 1
	}
	caret := strings.Repeat(" ", col-1) + "^"
	return line + "\n" + caret
}
