// Package importresolver expands `import` declarations: starting from
// an entry source file, every import is resolved to a file on disk,
// lexed and parsed in turn, and its top-level declarations folded into
// one merged ast.Program — so every later pass (sema, codegen) sees a
// single flat declaration list regardless of how many files the program
// spans. A visited set keyed by resolved absolute path breaks import
// cycles and collapses diamond-shaped import graphs to one parse per
// file.
package importresolver

import (
	"fmt"
	"path/filepath"

	"github.com/gmofishsauce/chrispp/internal/ast"
	"github.com/gmofishsauce/chrispp/internal/diag"
	"github.com/gmofishsauce/chrispp/internal/lexer"
	"github.com/gmofishsauce/chrispp/internal/parser"
	"github.com/gmofishsauce/chrispp/internal/source"
)

// Resolver walks import declarations reachable from an entry file,
// searching each import path against a list of root directories (the
// compiler-options import search roots), and merges every file's
// declarations into one ast.Program.
type Resolver struct {
	roots   []string
	diags   *diag.Engine
	visited map[string]bool
	decls   []ast.Stmt
}

// New creates a Resolver that searches roots (in order) for each import
// path, reporting lex/parse diagnostics into diags.
func New(roots []string, diags *diag.Engine) *Resolver {
	return &Resolver{
		roots:   roots,
		diags:   diags,
		visited: make(map[string]bool),
	}
}

// Resolve parses entryPath and every file it (transitively) imports,
// returning one ast.Program whose Decls is the concatenation of every
// file's own declarations in import order, entry file last so that its
// top-level statements can reference names the imports define.
func (r *Resolver) Resolve(entryPath string) (*ast.Program, error) {
	if err := r.resolveFile(entryPath); err != nil {
		return nil, err
	}
	return &ast.Program{Decls: r.decls}, nil
}

func (r *Resolver) resolveFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("importresolver: resolve %s: %w", path, err)
	}
	if r.visited[abs] {
		return nil
	}
	r.visited[abs] = true

	f, err := source.Load(abs)
	if err != nil {
		return err
	}
	toks := lexer.Tokenize(f, r.diags)
	prog := parser.New(abs, toks, r.diags).ParseProgram()

	var ownDecls []ast.Stmt
	for _, d := range prog.Decls {
		imp, ok := d.(*ast.Import)
		if !ok {
			ownDecls = append(ownDecls, d)
			continue
		}
		importedPath, err := r.findImport(imp.Path, filepath.Dir(abs))
		if err != nil {
			r.diags.Errorf(diag.EImportNotFound, imp.Span(), imp.Path)
			continue
		}
		if err := r.resolveFile(importedPath); err != nil {
			return err
		}
	}
	r.decls = append(r.decls, ownDecls...)
	return nil
}

// findImport searches importDir (the importing file's own directory,
// tried first so sibling-relative imports need no search root) and then
// every configured root for a file satisfying path, trying both the
// bare path and path+".chr" so the extension may be omitted.
func (r *Resolver) findImport(path, importDir string) (string, error) {
	candidates := []string{path, path + ".chr"}
	searchDirs := append([]string{importDir}, r.roots...)
	for _, dir := range searchDirs {
		for _, c := range candidates {
			full := filepath.Join(dir, c)
			if _, err := source.Load(full); err == nil {
				return full, nil
			}
		}
	}
	return "", fmt.Errorf("importresolver: import %q not found (searched %v)", path, searchDirs)
}
