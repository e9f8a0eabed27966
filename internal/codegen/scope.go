package codegen

import (
	"github.com/gmofishsauce/chrispp/internal/ir"
	"github.com/gmofishsauce/chrispp/internal/types"
)

// cell is one local variable's storage: the alloca'd address plus the
// semantic type of the value it holds, so later loads/stores and member
// lookups (array element type, class struct name) don't need to be
// re-derived from the instruction stream.
type cell struct {
	addr ir.Value
	typ  *types.Type
}

// varScope is a lexical frame of local variable cells, chained to its
// parent exactly like symbols.Scope — kept as its own lightweight type
// here because codegen additionally needs each variable's IR address,
// not just its semantic type.
type varScope struct {
	parent *varScope
	vars   map[string]cell
}

func newVarScope(parent *varScope) *varScope {
	return &varScope{parent: parent, vars: make(map[string]cell)}
}

func (s *varScope) define(name string, c cell) {
	s.vars[name] = c
}

func (s *varScope) lookup(name string) (cell, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if c, ok := sc.vars[name]; ok {
			return c, true
		}
	}
	return cell{}, false
}
