// Package codegen lowers a successfully analyzed chrispp program
// (sema.Result) into the typed SSA module defined by internal/ir.
//
// Lowering runs in four passes: Pass 0 registers struct layouts for
// classes and tagged enums, Pass 1 declares every function, method, and
// runtime-ABI extern, Pass 1.5 fills in the monomorphic layouts and
// signatures for each recorded generic instantiation, and Pass 2 walks
// the typed AST emitting every function and method body.
package codegen

import (
	"fmt"
	"sort"

	"github.com/gmofishsauce/chrispp/internal/ast"
	"github.com/gmofishsauce/chrispp/internal/diag"
	"github.com/gmofishsauce/chrispp/internal/ir"
	"github.com/gmofishsauce/chrispp/internal/sema"
	"github.com/gmofishsauce/chrispp/internal/symbols"
	"github.com/gmofishsauce/chrispp/internal/types"
)

// gen carries the state threaded through every lowering pass: the class
// registry and resolved signatures sema produced, the module being
// built, and the per-method context (current function/block, variable
// cells, loop labels, generic substitution) that changes as Pass 2
// walks from one method or function body to the next.
type gen struct {
	diags   *diag.Engine
	classes *symbols.ClassTable
	funcs   map[string]*sema.FuncSig
	externs map[string]*sema.FuncSig
	mod     *ir.Module

	classByName    map[string]*ast.ClassDecl
	funcDeclByName map[string]*ast.FuncDecl
	allDecls       []ast.Stmt
	globalTypes    map[string]*types.Type
	lambdaNum      int

	// Per-body context, valid only while emitting one function/method.
	fn        *ir.Function
	b         *ir.Builder
	scope     *varScope
	subst     map[string]*types.Type // generic substitution, nil outside an instantiation
	thisClass *types.Type            // resolved `this` type, nil outside a method
	thisVal   ir.Value               // `this` pointer parameter, valid only inside a method
	retType   *types.Type            // current function/method's (unwrapped) result type
	breakLbl  []string
	contLbl   []string
	blockNum  int
}

// Generate runs all four codegen passes over res and returns the typed
// IR module, stamped with buildID so its diagnostics and log lines can
// be correlated with the earlier phases of the same compilation.
// Callers should check diags.HasErrors() before trusting the module.
func Generate(res *sema.Result, diags *diag.Engine, buildID string) *ir.Module {
	g := &gen{
		diags:       diags,
		classes:     res.Classes,
		funcs:       res.Funcs,
		externs:     res.Externs,
		mod:            ir.NewModule("chrispp", buildID),
		classByName:    make(map[string]*ast.ClassDecl),
		funcDeclByName: make(map[string]*ast.FuncDecl),
		allDecls:       res.Program.Decls,
		globalTypes:    make(map[string]*types.Type),
	}
	for _, d := range res.Program.Decls {
		switch decl := d.(type) {
		case *ast.ClassDecl:
			g.classByName[decl.Name] = decl
		case *ast.FuncDecl:
			g.funcDeclByName[decl.Name] = decl
		}
	}

	registerABI(g.mod)
	g.pass0()
	g.pass1(res.Program)
	g.pass1_5()
	g.pass2(res.Program)
	return g.mod
}

// ---------------------------------------------------------------------
// Pass 0 — struct layouts for non-generic classes and tagged enums
// ---------------------------------------------------------------------

func (g *gen) pass0() {
	// Every array value, regardless of element type, shares this one
	// backing layout — a data pointer plus a length word — so indexing
	// and iteration lowering always know the field offsets to use.
	g.mod.AddStruct(&ir.Struct{
		Name: "Array",
		Fields: []ir.Field{
			{Name: "data", Type: ir.Type{Kind: ir.KPtr}},
			{Name: "length", Type: ir.Type{Kind: ir.KI64}},
		},
	})
	for name, d := range g.classByName {
		if len(d.TypeParams) > 0 {
			continue // monomorphized in pass 1.5
		}
		h, ok := g.classes.LookupClass(name)
		if !ok {
			continue
		}
		g.mod.AddStruct(g.buildClassStruct(h, name, nil))
	}
	// Top-level variable declarations become module globals; their
	// initializers run in main's prologue (see genTopFunc).
	for _, d := range g.allDecls {
		if vd, ok := d.(*ast.VarDecl); ok {
			t := vd.ResolvedType()
			g.globalTypes[vd.Name] = t
			g.mod.AddGlobal(&ir.Global{Name: vd.Name, Type: g.irType(t)})
		}
	}
	// Enum structs: only variants carrying an associated value need a
	// backing struct; a plain enum is just a word-sized tag.
	for _, d := range enumDecls(g) {
		info, ok := g.classes.LookupEnum(d.Name)
		if !ok || !enumHasPayload(info) {
			continue
		}
		g.mod.AddStruct(&ir.Struct{
			Name: enumStructName(d.Name),
			Fields: []ir.Field{
				{Name: "tag", Type: ir.Type{Kind: ir.KI64}},
				{Name: "payload", Type: ir.Type{Kind: ir.KI64}},
			},
		})
	}
}

func enumDecls(g *gen) []*ast.EnumDecl {
	var out []*ast.EnumDecl
	seen := map[string]bool{}
	for _, d := range g.allDecls {
		if ed, ok := d.(*ast.EnumDecl); ok && !seen[ed.Name] {
			seen[ed.Name] = true
			out = append(out, ed)
		}
	}
	return out
}

// buildClassStruct lays out h's fields, inherited fields first so a
// base-class field keeps the same index in every subclass, applying
// subst (nil outside a generic instantiation) to every field's type.
func (g *gen) buildClassStruct(h symbols.ClassHandle, structName string, subst map[string]*types.Type) *ir.Struct {
	chain := g.classes.AncestorChain(h)
	var fields []ir.Field
	for i := len(chain) - 1; i >= 0; i-- {
		info, ok := g.classes.Class(chain[i])
		if !ok {
			continue
		}
		for _, m := range info.Members {
			if m.Kind != symbols.KindField {
				continue
			}
			ft := m.Type
			if subst != nil {
				ft = types.Substitute(ft, subst)
			}
			fields = append(fields, ir.Field{Name: m.Name, Type: g.irType(ft)})
		}
	}
	return &ir.Struct{Name: structName, Fields: fields}
}

// fieldIndex returns the struct-layout index of name on h, honoring the
// same inherited-fields-first order buildClassStruct uses.
func (g *gen) fieldIndex(h symbols.ClassHandle, name string) (int, symbols.Member, bool) {
	chain := g.classes.AncestorChain(h)
	idx := 0
	for i := len(chain) - 1; i >= 0; i-- {
		info, ok := g.classes.Class(chain[i])
		if !ok {
			continue
		}
		for _, m := range info.Members {
			if m.Kind != symbols.KindField {
				continue
			}
			if m.Name == name {
				return idx, m, true
			}
			idx++
		}
	}
	return 0, symbols.Member{}, false
}

func enumHasPayload(info symbols.EnumInfo) bool {
	for _, v := range info.Variants {
		if v.AssociatedType != nil {
			return true
		}
	}
	return false
}

func enumStructName(name string) string { return "Enum$" + name }

func variantIndex(info symbols.EnumInfo, name string) int {
	for i, v := range info.Variants {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// variantAssociatedType returns the declared payload type of variant name,
// or Int for a variant with no associated value.
func variantAssociatedType(info symbols.EnumInfo, name string) *types.Type {
	for _, v := range info.Variants {
		if v.Name == name && v.AssociatedType != nil {
			return v.AssociatedType
		}
	}
	return types.Int
}

// ---------------------------------------------------------------------
// Pass 1 — declare functions, externs, and methods
// ---------------------------------------------------------------------

func (g *gen) pass1(prog *ast.Program) {
	names := make([]string, 0, len(g.funcs))
	for name := range g.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sig := g.funcs[name]
		g.mod.AddFunction(ir.NewFunction(name, g.irParams(sig.ParamNames, sig.Params), g.funcResultType(sig)))
	}

	for name, d := range g.classByName {
		if len(d.TypeParams) > 0 {
			continue
		}
		h, ok := g.classes.LookupClass(name)
		if !ok {
			continue
		}
		info, _ := g.classes.Class(h)
		for _, m := range info.Members {
			if m.Kind != symbols.KindMethod {
				continue
			}
			g.declareMethod(name, m.Name, m.Type, nil)
		}
	}
}

func (g *gen) declareMethod(className, methodName string, sig *types.Type, subst map[string]*types.Type) {
	params := []ir.Param{{Name: "this", Type: ir.Type{Kind: ir.KPtr}}}
	for i, p := range sig.Params {
		pt := p
		if subst != nil {
			pt = types.Substitute(pt, subst)
		}
		params = append(params, ir.Param{Name: fmt.Sprintf("p%d", i), Type: g.irType(pt)})
	}
	result := sig.Result
	if subst != nil {
		result = types.Substitute(result, subst)
	}
	g.mod.AddFunction(ir.NewFunction(className+"_"+methodName, params, g.irType(g.unwrapFuture(result))))
}

func (g *gen) irParams(names []string, ts []*types.Type) []ir.Param {
	params := make([]ir.Param, len(ts))
	for i, t := range ts {
		n := fmt.Sprintf("p%d", i)
		if i < len(names) && names[i] != "" {
			n = names[i]
		}
		params[i] = ir.Param{Name: n, Type: g.irType(t)}
	}
	return params
}

// unwrapFuture returns t's Future element directly: async is a
// type-level wrapper only (there is no executor), so codegen never
// materializes a Future value — a function declared `async` simply
// returns its unwrapped result.
func (g *gen) unwrapFuture(t *types.Type) *types.Type {
	if t != nil && t.Kind == types.KFuture {
		return t.Elem
	}
	return t
}

func (g *gen) funcResultType(sig *sema.FuncSig) ir.Type {
	return g.irType(g.unwrapFuture(sig.Result))
}

// ---------------------------------------------------------------------
// Pass 1.5 — monomorphize generic class instantiations
// ---------------------------------------------------------------------

func (g *gen) pass1_5() {
	insts := g.classes.Instantiations()
	sort.Slice(insts, func(i, j int) bool { return insts[i].MangledName < insts[j].MangledName })
	for _, inst := range insts {
		if anyTypeParam(inst.ConcreteArgs) {
			// A self-referential construction inside the template's own
			// body (e.g. `Box { v: v }` in Box<T>.new) resolves its
			// hint to Box<T> itself, not a concrete instantiation — skip
			// it here; the real monomorphization is driven by a caller's
			// concrete type annotation or constructor argument.
			continue
		}
		d, ok := g.classByName[inst.TemplateName]
		if !ok {
			continue
		}
		h, ok := g.classes.LookupClass(inst.TemplateName)
		if !ok {
			continue
		}
		subst := make(map[string]*types.Type, len(inst.TypeParamNames))
		for i, n := range inst.TypeParamNames {
			subst[n] = inst.ConcreteArgs[i]
		}
		g.mod.AddStruct(g.buildClassStruct(h, inst.MangledName, subst))

		info, _ := g.classes.Class(h)
		for _, m := range info.Members {
			if m.Kind != symbols.KindMethod {
				continue
			}
			g.declareMethod(inst.MangledName, m.Name, m.Type, subst)
		}
		_ = d // body emission happens in pass2, keyed by MangledName
	}
}

func anyTypeParam(ts []*types.Type) bool {
	for _, t := range ts {
		if hasTypeParam(t) {
			return true
		}
	}
	return false
}

func hasTypeParam(t *types.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case types.KTypeParam:
		return true
	case types.KNullable, types.KArray, types.KFuture, types.KSet:
		return hasTypeParam(t.Elem)
	case types.KMap:
		return hasTypeParam(t.Key) || hasTypeParam(t.Value)
	case types.KFunction:
		if hasTypeParam(t.Result) {
			return true
		}
		return anyTypeParam(t.Params)
	case types.KClass, types.KInterface:
		return anyTypeParam(t.Args)
	default:
		return false
	}
}

// ---------------------------------------------------------------------
// Type mapping: semantic *types.Type -> ir.Type
// ---------------------------------------------------------------------

func (g *gen) irType(t *types.Type) ir.Type {
	if t == nil {
		return ir.Type{Kind: ir.KVoid}
	}
	switch t.Kind {
	case types.KPrimitive:
		switch t.Primitive {
		case types.PInt:
			return ir.Type{Kind: ir.KI64}
		case types.PI8:
			return ir.Type{Kind: ir.KI8}
		case types.PI16:
			return ir.Type{Kind: ir.KI16}
		case types.PI32:
			return ir.Type{Kind: ir.KI32}
		case types.PU8:
			return ir.Type{Kind: ir.KU8}
		case types.PU16:
			return ir.Type{Kind: ir.KU16}
		case types.PU32:
			return ir.Type{Kind: ir.KU32}
		case types.PFloat64:
			return ir.Type{Kind: ir.KF64}
		case types.PFloat32:
			return ir.Type{Kind: ir.KF32}
		case types.PBool:
			return ir.Type{Kind: ir.KBool}
		case types.PChar:
			return ir.Type{Kind: ir.KI32}
		case types.PString:
			return ir.Type{Kind: ir.KPtr}
		case types.PVoid:
			return ir.Type{Kind: ir.KVoid}
		case types.PNil:
			return ir.Type{Kind: ir.KPtr}
		}
	case types.KNullable:
		// A nullable reference type (class/string/array) is represented
		// by its own pointer with a null sentinel for `nil`; a nullable
		// value type (Int?, Bool?, ...) falls back to the same
		// representation the value itself uses, with zero standing in
		// for absence — chrispp never interrogates a numeric nullable's
		// presence at the machine level independent of its value, only
		// through `??`/`!`/`?.`: `??` compares the value against its
		// type's zero value, `?.` compares the object pointer against
		// null, and `!` performs no check (see lower_expr.go). Recorded as an
		// open simplification in DESIGN.md.
		return g.irType(t.Elem)
	case types.KArray:
		return ir.StructRef("Array")
	case types.KFuture:
		return g.irType(t.Elem)
	case types.KMap, types.KSet:
		return ir.Type{Kind: ir.KPtr}
	case types.KFunction:
		return ir.Type{Kind: ir.KPtr}
	case types.KClass, types.KInterface:
		return ir.Type{Kind: ir.KPtr}
	case types.KEnum:
		info, ok := g.classes.LookupEnum(t.Name)
		if ok && enumHasPayload(info) {
			return ir.StructRef(enumStructName(t.Name))
		}
		return ir.Type{Kind: ir.KI64}
	case types.KTypeParam:
		// Only reachable if a generic body's substitution context was
		// not supplied — codegen always substitutes before calling
		// irType on a template body's node types (see g.resolve).
		return ir.Type{Kind: ir.KPtr}
	}
	return ir.Type{Kind: ir.KI64}
}

// resolve applies the active generic substitution (if any) to t, the
// way every expression-type lookup in lower_expr.go/lower_stmt.go must
// before calling irType, since a generic method body's AST nodes carry
// type-parameterized types until a specific monomorphization
// substitutes them.
func (g *gen) resolve(t *types.Type) *types.Type {
	if g.subst == nil {
		return t
	}
	return types.Substitute(t, g.subst)
}

// classStructName returns the struct name backing t (Kind == KClass):
// the plain class name, or the mangled monomorphization name if the
// class is a generic template.
func (g *gen) classStructName(t *types.Type) string {
	info, ok := g.classes.Class(g.mustClassHandle(t.Name))
	if ok && info.IsGeneric {
		args := make([]*types.Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = g.resolve(a)
		}
		return symbols.MangleGenericName(t.Name, args)
	}
	return t.Name
}

func (g *gen) mustClassHandle(name string) symbols.ClassHandle {
	h, _ := g.classes.LookupClass(name)
	return h
}
