// Package config loads pipeline-wide compiler settings from an optional
// TOML document. Loading is optional by design: Default() returns a
// complete, usable CompilerOptions so unit tests and simple invocations
// never need a file on disk, and Load starts from those defaults so a
// partial file only overrides the fields it sets.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// DiagnosticFormat selects how the diagnostic engine renders its output.
type DiagnosticFormat string

const (
	DiagnosticText DiagnosticFormat = "text"
	DiagnosticJSON DiagnosticFormat = "json"
)

// CompilerOptions holds every setting the pipeline driver and codegen
// consult outside of the source being compiled.
type CompilerOptions struct {
	// DiagnosticFormat selects text or json rendering of diagnostics.
	DiagnosticFormat DiagnosticFormat `toml:"diagnostic_format"`

	// MaxErrors caps how many errors the diagnostic engine records;
	// errors reported past the cap are dropped. Zero means unlimited.
	MaxErrors int `toml:"max_errors"`

	// ImportRoots is searched, in order, for each unresolved import path,
	// after the importing file's own directory.
	ImportRoots []string `toml:"import_roots"`

	// WordSize is the target machine word size in bits; Load accepts only
	// 32 or 64. Codegen does not read it: the native Int type is always
	// lowered as a 64-bit integer.
	WordSize int `toml:"word_size"`
}

// Default returns the hardcoded settings used when no TOML file is
// supplied: text diagnostics, no error cutoff, no extra import roots,
// and a 64-bit target word.
func Default() *CompilerOptions {
	return &CompilerOptions{
		DiagnosticFormat: DiagnosticText,
		MaxErrors:        0,
		ImportRoots:      nil,
		WordSize:         64,
	}
}

// Load decodes path as a TOML document into a CompilerOptions, starting
// from Default() so a partial file only overrides the fields it sets.
func Load(path string) (*CompilerOptions, error) {
	opts := Default()
	if _, err := toml.DecodeFile(path, opts); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	if opts.WordSize != 32 && opts.WordSize != 64 {
		return nil, fmt.Errorf("config: %s: word_size must be 32 or 64, got %d", path, opts.WordSize)
	}
	if opts.DiagnosticFormat != DiagnosticText && opts.DiagnosticFormat != DiagnosticJSON {
		return nil, fmt.Errorf("config: %s: diagnostic_format must be %q or %q, got %q", path, DiagnosticText, DiagnosticJSON, opts.DiagnosticFormat)
	}
	return opts, nil
}
