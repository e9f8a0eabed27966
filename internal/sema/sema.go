// Package sema implements chrispp's semantic analyzer: three passes over
// the top-level declarations that resolve names, infer and check types,
// verify interface conformance and access control, check match
// exhaustiveness, and monomorphize generic class references.
//
// Pass 0 registers every class/interface/enum name, Pass 1 resolves
// every signature against that registry, and Pass 2 type-checks every
// body — so declarations may reference one another in any textual
// order. IR generation is deliberately left to internal/codegen; this
// package's output is the typed AST plus the class registry and the set
// of generic instantiations codegen consumes.
package sema

import (
	"sort"
	"strings"

	"github.com/gmofishsauce/chrispp/internal/ast"
	"github.com/gmofishsauce/chrispp/internal/diag"
	"github.com/gmofishsauce/chrispp/internal/symbols"
	"github.com/gmofishsauce/chrispp/internal/types"
)

// FuncSig is a resolved function or extern signature.
type FuncSig struct {
	Name       string
	ParamNames []string
	Params     []*types.Type
	Result     *types.Type
	Async      bool
}

// Result is everything codegen needs from a successfully analyzed
// program: the class/interface/enum registry (with every generic
// instantiation recorded), every top-level function and extern
// signature, and the typed AST itself (types are set in place on every
// ast.Expr via SetType).
type Result struct {
	Program *ast.Program
	Classes *symbols.ClassTable
	Funcs   map[string]*FuncSig
	Externs map[string]*FuncSig
}

// builtinFuncs are global built-ins with no declaration of their own.
// print is untyped: its argument accepts Unknown (anything) and it
// returns Void.
var builtinFuncs = map[string]*types.Type{
	"print": types.Function([]*types.Type{types.Unknown}, types.Void),
}

type analyzer struct {
	diags   *diag.Engine
	classes *symbols.ClassTable
	funcs   map[string]*FuncSig
	externs map[string]*FuncSig

	// typeParams is the set of generic type-parameter names in scope
	// while resolving types inside the class currently being analyzed
	// (empty outside any class, or inside a non-generic class).
	typeParams map[string]bool

	// currentClass is the handle of the class whose method body is
	// currently being checked (InvalidHandle outside any method), used
	// for `this` typing and access-control checks.
	currentClass symbols.ClassHandle
	// currentAsync and currentRet are the async flag and declared result
	// type of the function or method whose body is being checked.
	currentAsync bool
	currentRet   *types.Type

	// collectingReturns, when non-nil, receives the checked type of every
	// `return` statement encountered while it is set — used only while
	// checking a block-bodied lambda whose result type was not supplied
	// by its call-site hint (see checkLambda), since such a lambda has no
	// declared return type to check against.
	collectingReturns *[]*types.Type

	// selfName/selfParams are the name and type-parameter names of the
	// generic class whose signatures or body are currently being
	// resolved, so that a bare reference to the class's own name inside
	// its own declaration (e.g. a constructor's `-> Box` return
	// annotation on `class Box<T>`) resolves to `Box<T>` rather than
	// tripping the generic-arity check. Empty outside a generic class.
	selfName   string
	selfParams []string
}

// Analyze runs all three passes over prog and returns the resolved
// program. Analyze itself always completes all three passes so that
// later errors (which may be spurious cascades) are still visible for
// tests that want every diagnostic; callers compiling for real should
// check diags.HasErrors() afterward and stop at the first failing
// phase.
func Analyze(prog *ast.Program, diags *diag.Engine) *Result {
	a := &analyzer{
		diags:      diags,
		classes:    symbols.NewClassTable(),
		funcs:      make(map[string]*FuncSig),
		externs:    make(map[string]*FuncSig),
		typeParams: make(map[string]bool),

		currentClass: symbols.InvalidHandle,
	}
	a.pass0(prog)
	a.pass1(prog)
	a.pass2(prog)
	return &Result{Program: prog, Classes: a.classes, Funcs: a.funcs, Externs: a.externs}
}

// ---------------------------------------------------------------------
// Pass 0 — register names
// ---------------------------------------------------------------------

func (a *analyzer) pass0(prog *ast.Program) {
	for _, decl := range prog.Decls {
		switch d := decl.(type) {
		case *ast.ClassDecl:
			if _, err := a.classes.DefineClass(symbols.ClassInfo{
				Name:       d.Name,
				Public:     d.Public,
				Shared:     d.Shared,
				TypeParams: d.TypeParams,
				Parent:     symbols.InvalidHandle,
				IsGeneric:  len(d.TypeParams) > 0,
			}); err != nil {
				a.diags.Errorf(diag.ESemDuplicate, d.Span(), d.Name)
			}
		case *ast.InterfaceDecl:
			if err := a.classes.DefineInterface(symbols.InterfaceInfo{Name: d.Name, Public: d.Public}); err != nil {
				a.diags.Errorf(diag.ESemDuplicate, d.Span(), d.Name)
			}
		case *ast.EnumDecl:
			if err := a.classes.DefineEnum(symbols.EnumInfo{Name: d.Name, Public: d.Public}); err != nil {
				a.diags.Errorf(diag.ESemDuplicate, d.Span(), d.Name)
			}
		}
	}
}

// ---------------------------------------------------------------------
// Pass 1 — resolve signatures
// ---------------------------------------------------------------------

// pass1 resolves funcs/externs/interfaces/enums before any class, so a
// class's interface-conformance and base-class checks see a fully
// populated registry regardless of each declaration's textual order.
func (a *analyzer) pass1(prog *ast.Program) {
	for _, decl := range prog.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			a.registerFunc(d)
		case *ast.ExternFuncDecl:
			a.registerExtern(d)
		case *ast.InterfaceDecl:
			a.registerInterface(d)
		case *ast.EnumDecl:
			a.registerEnum(d)
		}
	}
	for _, decl := range prog.Decls {
		if d, ok := decl.(*ast.ClassDecl); ok {
			a.registerClass(d)
		}
	}
}

func (a *analyzer) registerFunc(d *ast.FuncDecl) {
	if _, exists := a.funcs[d.Name]; exists {
		a.diags.Errorf(diag.ESemDuplicate, d.Span(), d.Name)
		return
	}
	sig := a.resolveFuncSig(d.Name, d.Params, d.ReturnType, d.Async)
	a.funcs[d.Name] = sig
}

func (a *analyzer) registerExtern(d *ast.ExternFuncDecl) {
	if _, exists := a.externs[d.Name]; exists {
		a.diags.Errorf(diag.ESemDuplicate, d.Span(), d.Name)
		return
	}
	a.externs[d.Name] = a.resolveFuncSig(d.Name, d.Params, d.ReturnType, false)
}

func (a *analyzer) resolveFuncSig(name string, params []ast.Param, retAnnot *ast.TypeExpr, async bool) *FuncSig {
	sig := &FuncSig{Name: name, Async: async}
	for _, p := range params {
		sig.ParamNames = append(sig.ParamNames, p.Name)
		if p.TypeAnnot != nil {
			sig.Params = append(sig.Params, a.resolveType(p.TypeAnnot))
		} else {
			sig.Params = append(sig.Params, types.Unknown)
		}
	}
	result := types.Void
	if retAnnot != nil {
		result = a.resolveType(retAnnot)
	}
	if async {
		result = types.Future(result)
	}
	sig.Result = result
	return sig
}

func (a *analyzer) registerInterface(d *ast.InterfaceDecl) {
	members := make([]symbols.Member, 0, len(d.Methods))
	for _, m := range d.Methods {
		members = append(members, symbols.Member{
			Name:   m.Name,
			Kind:   symbols.KindMethod,
			Type:   a.methodType(m.Params, m.ReturnType, false),
			Access: int(ast.AccessPublic),
		})
	}
	a.classes.SetInterfaceMembers(d.Name, members)
}

func (a *analyzer) registerEnum(d *ast.EnumDecl) {
	variants := make([]symbols.EnumVariantInfo, 0, len(d.Variants))
	for _, v := range d.Variants {
		var assoc *types.Type
		if v.AssociatedType != nil {
			assoc = a.resolveType(v.AssociatedType)
		}
		variants = append(variants, symbols.EnumVariantInfo{Name: v.Name, AssociatedType: assoc})
	}
	a.classes.SetEnumVariants(d.Name, variants)
}

func (a *analyzer) methodType(params []ast.Param, retAnnot *ast.TypeExpr, async bool) *types.Type {
	paramTypes := make([]*types.Type, len(params))
	for i, p := range params {
		if p.TypeAnnot != nil {
			paramTypes[i] = a.resolveType(p.TypeAnnot)
		} else {
			paramTypes[i] = types.Unknown
		}
	}
	result := types.Void
	if retAnnot != nil {
		result = a.resolveType(retAnnot)
	}
	if async {
		result = types.Future(result)
	}
	return types.Function(paramTypes, result)
}

func (a *analyzer) registerClass(d *ast.ClassDecl) {
	if d.Shared {
		a.diags.Errorf(diag.ESemSharedUnsupport, d.Span())
	}
	handle, ok := a.classes.LookupClass(d.Name)
	if !ok {
		return // DefineClass failed in Pass 0; already diagnosed
	}

	// Push this class's type-parameter names so field/method type
	// annotations that name them resolve to TypeParam references instead
	// of unknown-type errors.
	a.pushTypeParams(d.TypeParams)
	defer a.popTypeParams(d.TypeParams)
	if len(d.TypeParams) > 0 {
		prevName, prevParams := a.selfName, a.selfParams
		a.selfName, a.selfParams = d.Name, d.TypeParams
		defer func() { a.selfName, a.selfParams = prevName, prevParams }()
	}

	parent := symbols.InvalidHandle
	var interfaces []string
	if d.BaseClass != "" {
		if ph, ok := a.classes.LookupClass(d.BaseClass); ok {
			parent = ph
		} else if _, ok := a.classes.LookupInterface(d.BaseClass); ok {
			// A "base class" that actually names an interface is moved
			// into the implemented-interface list.
			interfaces = append(interfaces, d.BaseClass)
		} else {
			a.diags.Errorf(diag.ESemUnknownBase, d.Span(), d.BaseClass)
		}
	}
	for _, iface := range d.Interfaces {
		if _, ok := a.classes.LookupInterface(iface); !ok {
			a.diags.Errorf(diag.ESemUnknownBase, d.Span(), iface)
			continue
		}
		interfaces = append(interfaces, iface)
	}

	members := make([]symbols.Member, 0, len(d.Fields)+len(d.Methods))
	for _, f := range d.Fields {
		members = append(members, symbols.Member{
			Name:    f.Name,
			Kind:    symbols.KindField,
			Type:    a.resolveType(f.TypeAnnot),
			Access:  int(f.Access),
			Mutable: f.Mutable,
		})
	}
	for _, m := range d.Methods {
		members = append(members, symbols.Member{
			Name:   m.Name,
			Kind:   symbols.KindMethod,
			Type:   a.methodType(m.Params, m.ReturnType, m.Async),
			Access: int(m.Access),
		})
	}
	a.classes.SetClassMembers(handle, parent, interfaces, members)

	a.checkInterfaceConformance(handle, d)
}

func (a *analyzer) checkInterfaceConformance(h symbols.ClassHandle, d *ast.ClassDecl) {
	for _, ifaceName := range d.Interfaces {
		iface, ok := a.classes.LookupInterface(ifaceName)
		if !ok {
			continue
		}
		for _, want := range iface.Members {
			_, _, found := a.classes.ResolveMember(h, want.Name)
			if !found {
				a.diags.Errorf(diag.ESemMissingIfaceImpl, d.Span(), d.Name, want.Name)
			}
		}
	}
}

func (a *analyzer) pushTypeParams(names []string) {
	for _, n := range names {
		a.typeParams[n] = true
	}
}

func (a *analyzer) popTypeParams(names []string) {
	for _, n := range names {
		delete(a.typeParams, n)
	}
}

// ---------------------------------------------------------------------
// Type-expression resolution
// ---------------------------------------------------------------------

var primitiveTypeNames = map[string]*types.Type{
	"Int": types.Int, "I8": types.I8, "I16": types.I16, "I32": types.I32,
	"U8": types.U8, "U16": types.U16, "U32": types.U32,
	"Float64": types.Float64, "Float32": types.Float32,
	"Bool": types.Bool, "Char": types.Char, "String": types.String,
	"Void": types.Void,
}

func (a *analyzer) resolveType(te *ast.TypeExpr) *types.Type {
	if te == nil {
		return types.Void
	}
	var resolved *types.Type
	switch {
	case te.Name == ast.FuncTypeName:
		params := make([]*types.Type, len(te.ParamTypes))
		for i, p := range te.ParamTypes {
			params[i] = a.resolveType(p)
		}
		resolved = types.Function(params, a.resolveType(te.ReturnType))
	case te.Name == "Array" && len(te.Args) == 1:
		resolved = types.Array(a.resolveType(te.Args[0]))
	case te.Name == "Future" && len(te.Args) == 1:
		resolved = types.Future(a.resolveType(te.Args[0]))
	case te.Name == "Map" && len(te.Args) == 2:
		resolved = types.Map(a.resolveType(te.Args[0]), a.resolveType(te.Args[1]))
	case te.Name == "Set" && len(te.Args) == 1:
		resolved = types.Set(a.resolveType(te.Args[0]))
	case primitiveTypeNames[te.Name] != nil && len(te.Args) == 0:
		resolved = primitiveTypeNames[te.Name]
	case a.typeParams[te.Name] && len(te.Args) == 0:
		resolved = types.TypeParam(te.Name)
	default:
		resolved = a.resolveNamedType(te)
	}
	if te.Nullable {
		resolved = types.Nullable(resolved)
	}
	return resolved
}

func (a *analyzer) resolveNamedType(te *ast.TypeExpr) *types.Type {
	if te.Name == a.selfName && len(te.Args) == 0 {
		return types.Class(te.Name, typeParamTypes(a.selfParams)...)
	}
	if h, ok := a.classes.LookupClass(te.Name); ok {
		info, _ := a.classes.Class(h)
		if len(info.TypeParams) != len(te.Args) && (len(info.TypeParams) > 0 || len(te.Args) > 0) {
			a.diags.Errorf(diag.ESemBadGenericArity, te.Span(), len(info.TypeParams), len(te.Args))
		}
		args := make([]*types.Type, len(te.Args))
		for i, arg := range te.Args {
			args[i] = a.resolveType(arg)
		}
		t := types.Class(te.Name, args...)
		if info.IsGeneric && len(args) > 0 {
			a.classes.Instantiate(te.Name, symbols.MangleGenericName(te.Name, args), info.TypeParams, args)
		}
		return t
	}
	if _, ok := a.classes.LookupInterface(te.Name); ok {
		return types.Interface(te.Name)
	}
	if _, ok := a.classes.LookupEnum(te.Name); ok {
		return types.Enum(te.Name)
	}
	a.diags.Errorf(diag.ESemUnknownType, te.Span(), te.Name)
	return types.Unknown
}

// ---------------------------------------------------------------------
// isAssignable
// ---------------------------------------------------------------------

func (a *analyzer) isAssignable(target, value *types.Type) bool {
	if target == nil || value == nil {
		return false
	}
	if target == types.Unknown || value == types.Unknown {
		return true
	}
	if target.Kind == types.KTypeParam || value.Kind == types.KTypeParam {
		return true
	}
	if target.Equal(value) {
		return true
	}
	if value == types.Nil && target.IsNullable() {
		return true
	}
	if target.IsNullable() {
		return a.isAssignable(target.Elem, value)
	}
	if target.IsInteger() && value.Kind == types.KPrimitive && value.Primitive == types.PInt {
		return true
	}
	if target.Kind == types.KClass && value.Kind == types.KClass {
		targetHandle, tok := a.classes.LookupClass(target.Name)
		valueHandle, vok := a.classes.LookupClass(value.Name)
		if tok && vok && a.classes.IsSubclassOf(valueHandle, targetHandle) {
			return true
		}
	}
	if target.Kind == types.KInterface && value.Kind == types.KClass {
		if valueHandle, ok := a.classes.LookupClass(value.Name); ok {
			return a.implementsInterface(valueHandle, target.Name)
		}
	}
	return false
}

func (a *analyzer) implementsInterface(h symbols.ClassHandle, ifaceName string) bool {
	for _, anc := range a.classes.AncestorChain(h) {
		info, ok := a.classes.Class(anc)
		if !ok {
			continue
		}
		for _, iface := range info.Interfaces {
			if iface == ifaceName {
				return true
			}
		}
	}
	return false
}

// promote returns the widest of two numeric operand types, in the order
// Float64 > Float32 > Int > sized ints > unsigned sized ints.
func promote(l, r *types.Type) *types.Type {
	rank := func(t *types.Type) int {
		switch {
		case t == types.Float64:
			return 6
		case t == types.Float32:
			return 5
		case t == types.Int:
			return 4
		case t.IsSignedInteger():
			return 3
		case t.IsUnsignedInteger():
			return 2
		default:
			return 0
		}
	}
	if rank(l) >= rank(r) {
		return l
	}
	return r
}

// missingVariants returns, sorted by name, the variant names of
// enumName not present in covered.
func missingVariants(enumInfo symbols.EnumInfo, covered map[string]bool) []string {
	var missing []string
	for _, v := range enumInfo.Variants {
		if !covered[v.Name] {
			missing = append(missing, v.Name)
		}
	}
	sort.Strings(missing)
	return missing
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}

// ---------------------------------------------------------------------
// Pass 2 — statement and expression type-checking
// ---------------------------------------------------------------------

func (a *analyzer) pass2(prog *ast.Program) {
	global := symbols.NewScope(nil)
	// Top-level variables are installed first so every function body sees
	// them regardless of declaration order; their initializers are checked
	// in declaration order, so a global may only reference globals that
	// precede it textually (the same declare-before-use rule locals have).
	for _, decl := range prog.Decls {
		if d, ok := decl.(*ast.VarDecl); ok {
			a.checkVarDecl(d, global)
		}
	}
	for _, decl := range prog.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			a.checkFunc(d, global)
		case *ast.ClassDecl:
			a.checkClass(d, global)
		}
	}
}

func typeParamTypes(names []string) []*types.Type {
	out := make([]*types.Type, len(names))
	for i, n := range names {
		out[i] = types.TypeParam(n)
	}
	return out
}

func (a *analyzer) checkFunc(d *ast.FuncDecl, parent *symbols.Scope) {
	sig, ok := a.funcs[d.Name]
	if !ok {
		return
	}
	scope := symbols.NewScope(parent)
	for i, p := range d.Params {
		pt := types.Unknown
		if i < len(sig.Params) {
			pt = sig.Params[i]
		}
		if err := scope.Define(p.Name, pt, true, d.Span()); err != nil {
			a.diags.Errorf(diag.ESemDuplicate, d.Span(), p.Name)
		}
	}
	prevAsync, prevRet, prevClass := a.currentAsync, a.currentRet, a.currentClass
	a.currentAsync, a.currentRet, a.currentClass = d.Async, sig.Result, symbols.InvalidHandle
	a.checkBlock(d.Body, scope)
	a.currentAsync, a.currentRet, a.currentClass = prevAsync, prevRet, prevClass
}

func (a *analyzer) checkClass(d *ast.ClassDecl, parent *symbols.Scope) {
	handle, ok := a.classes.LookupClass(d.Name)
	if !ok {
		return
	}
	a.pushTypeParams(d.TypeParams)
	defer a.popTypeParams(d.TypeParams)
	if len(d.TypeParams) > 0 {
		prevName, prevParams := a.selfName, a.selfParams
		a.selfName, a.selfParams = d.Name, d.TypeParams
		defer func() { a.selfName, a.selfParams = prevName, prevParams }()
	}

	thisType := types.Class(d.Name, typeParamTypes(d.TypeParams)...)
	for _, m := range d.Methods {
		scope := symbols.NewScope(parent)
		scope.Define("this", thisType, false, d.Span())

		resultType := types.Void
		member, _, found := a.classes.ResolveMember(handle, m.Name)
		if found && member.Type.Kind == types.KFunction {
			resultType = member.Type.Result
			for i, p := range m.Params {
				pt := types.Unknown
				if i < len(member.Type.Params) {
					pt = member.Type.Params[i]
				}
				if err := scope.Define(p.Name, pt, true, d.Span()); err != nil {
					a.diags.Errorf(diag.ESemDuplicate, d.Span(), p.Name)
				}
			}
		}

		prevAsync, prevRet, prevClass := a.currentAsync, a.currentRet, a.currentClass
		a.currentAsync, a.currentRet, a.currentClass = m.Async, resultType, handle
		a.checkBlock(m.Body, scope)
		a.currentAsync, a.currentRet, a.currentClass = prevAsync, prevRet, prevClass
	}
}

func (a *analyzer) checkBlock(b *ast.Block, parent *symbols.Scope) {
	if b == nil {
		return
	}
	inner := symbols.NewScope(parent)
	for _, s := range b.Stmts {
		a.checkStmt(s, inner)
	}
}

func (a *analyzer) checkStmt(s ast.Stmt, scope *symbols.Scope) {
	switch st := s.(type) {
	case *ast.VarDecl:
		a.checkVarDecl(st, scope)
	case *ast.ExprStmt:
		a.checkExpr(st.X, nil, scope)
	case *ast.Return:
		a.checkReturn(st, scope)
	case *ast.If:
		ct := a.checkExpr(st.Cond, types.Bool, scope)
		if ct != types.Bool && ct != types.Unknown {
			a.diags.Errorf(diag.ESemNonBoolCondition, st.Span(), ct.String())
		}
		a.checkBlock(st.Then, scope)
		if st.Else != nil {
			a.checkStmt(st.Else, scope)
		}
	case *ast.Block:
		a.checkBlock(st, scope)
	case *ast.While:
		ct := a.checkExpr(st.Cond, types.Bool, scope)
		if ct != types.Bool && ct != types.Unknown {
			a.diags.Errorf(diag.ESemNonBoolCondition, st.Span(), ct.String())
		}
		a.checkBlock(st.Body, scope)
	case *ast.ForIn:
		a.checkForIn(st, scope)
	case *ast.Break, *ast.Continue:
		// nothing to check
	case *ast.Throw:
		a.checkExpr(st.Value, nil, scope)
	case *ast.Try:
		a.checkBlock(st.Body, scope)
		for _, c := range st.Catches {
			inner := symbols.NewScope(scope)
			ct := types.Unknown
			if c.Type != nil {
				// The runtime's exception ABI carries a message string, so a
				// catch annotated `Error` with no user-declared Error class
				// binds the message itself.
				if _, declared := a.classes.LookupClass(c.Type.Name); !declared && c.Type.Name == "Error" {
					ct = types.String
				} else {
					ct = a.resolveType(c.Type)
				}
			}
			inner.Define(c.Name, ct, false, st.Span())
			a.checkBlock(c.Body, inner)
		}
		if st.Finally != nil {
			a.checkBlock(st.Finally, scope)
		}
	case *ast.Unsafe:
		a.checkBlock(st.Body, scope)
	}
}

func (a *analyzer) checkVarDecl(st *ast.VarDecl, scope *symbols.Scope) {
	var declared *types.Type
	if st.TypeAnnot != nil {
		declared = a.resolveType(st.TypeAnnot)
	}
	if st.Init == nil {
		if declared == nil {
			a.diags.Errorf(diag.ESemNilNeedsAnnot, st.Span())
			declared = types.Unknown
		}
		if err := scope.Define(st.Name, declared, st.Mutable, st.Span()); err != nil {
			a.diags.Errorf(diag.ESemDuplicate, st.Span(), st.Name)
		}
		st.SetResolvedType(declared)
		return
	}
	if _, isNil := st.Init.(*ast.NilLit); isNil && declared == nil {
		a.diags.Errorf(diag.ESemNilNeedsAnnot, st.Span())
	}
	valType := a.checkExpr(st.Init, declared, scope)
	finalType := declared
	if finalType == nil {
		finalType = valType
	} else if !a.isAssignable(declared, valType) {
		a.diags.Errorf(diag.ESemTypeMismatch, st.Span(), valType.String(), declared.String())
	}
	if err := scope.Define(st.Name, finalType, st.Mutable, st.Span()); err != nil {
		a.diags.Errorf(diag.ESemDuplicate, st.Span(), st.Name)
	}
	st.SetResolvedType(finalType)
}

func (a *analyzer) checkReturn(st *ast.Return, scope *symbols.Scope) {
	want := a.currentRet
	if want != nil && want.Kind == types.KFuture {
		want = want.Elem
	}
	if st.Value == nil {
		if a.collectingReturns != nil {
			*a.collectingReturns = append(*a.collectingReturns, types.Void)
		}
		return
	}
	vt := a.checkExpr(st.Value, want, scope)
	if a.collectingReturns != nil {
		*a.collectingReturns = append(*a.collectingReturns, vt)
	}
	if want != nil && !a.isAssignable(want, vt) {
		a.diags.Errorf(diag.ESemTypeMismatch, st.Span(), vt.String(), want.String())
	}
}

// inferredReturnType folds the checked types of every `return` statement
// collected from a block-bodied lambda whose result type wasn't supplied
// by its call-site hint. A lambda with no return statements yields Void;
// one whose returns disagree on type yields Unknown rather than guessing.
func inferredReturnType(collected []*types.Type) *types.Type {
	if len(collected) == 0 {
		return types.Void
	}
	result := collected[0]
	for _, t := range collected[1:] {
		if t != result {
			return types.Unknown
		}
	}
	return result
}

func (a *analyzer) checkForIn(st *ast.ForIn, scope *symbols.Scope) {
	var elemType *types.Type
	if _, isRange := st.Iterable.(*ast.Range); isRange {
		a.checkExpr(st.Iterable, nil, scope)
		elemType = types.Int
	} else {
		it := a.checkExpr(st.Iterable, nil, scope)
		switch {
		case it.Kind == types.KArray:
			elemType = it.Elem
		case it == types.Unknown:
			elemType = types.Unknown
		default:
			a.diags.Errorf(diag.ESemBadIterable, st.Span(), it.String())
			elemType = types.Unknown
		}
	}
	inner := symbols.NewScope(scope)
	inner.Define(st.Var, elemType, true, st.Span())
	a.checkBlock(st.Body, inner)
}

// ---------------------------------------------------------------------
// Expression type-checking
// ---------------------------------------------------------------------

func (a *analyzer) checkExpr(e ast.Expr, hint *types.Type, scope *symbols.Scope) *types.Type {
	if e == nil {
		return types.Unknown
	}
	var result *types.Type
	switch ex := e.(type) {
	case *ast.IntLit:
		result = types.Int
	case *ast.FloatLit:
		result = types.Float64
	case *ast.StringLit:
		result = types.String
	case *ast.CharLit:
		result = types.Char
	case *ast.BoolLit:
		result = types.Bool
	case *ast.NilLit:
		result = types.Nil
	case *ast.StringInterp:
		for _, sub := range ex.Exprs {
			a.checkExpr(sub, nil, scope)
		}
		result = types.String
	case *ast.Ident:
		result = a.checkIdent(ex, scope)
	case *ast.BinOp:
		result = a.checkBinOp(ex, scope)
	case *ast.UnaryOp:
		operand := a.checkExpr(ex.Operand, nil, scope)
		switch ex.Op {
		case "!":
			result = types.Bool
		default:
			result = operand
		}
	case *ast.Call:
		result = a.checkCall(ex, hint, scope)
	case *ast.MemberAccess:
		result = a.checkMemberAccess(ex, scope)
	case *ast.This:
		result = a.checkThis(ex)
	case *ast.Construct:
		result = a.checkConstruct(ex, hint, scope)
	case *ast.Assign:
		result = a.checkAssign(ex, scope)
	case *ast.Range:
		a.checkExpr(ex.Start, types.Int, scope)
		a.checkExpr(ex.End, types.Int, scope)
		result = types.Int
	case *ast.Lambda:
		result = a.checkLambda(ex, hint, scope)
	case *ast.NilCoalesce:
		vt := a.checkExpr(ex.Value, nil, scope)
		base := vt.Underlying()
		a.checkExpr(ex.Default, base, scope)
		result = base
	case *ast.ForceUnwrap:
		vt := a.checkExpr(ex.Value, nil, scope)
		result = vt.Underlying()
	case *ast.OptionalChain:
		result = a.checkOptionalChain(ex, scope)
	case *ast.ArrayLit:
		result = a.checkArrayLit(ex, hint, scope)
	case *ast.Index:
		result = a.checkIndex(ex, scope)
	case *ast.IfExpr:
		ct := a.checkExpr(ex.Cond, types.Bool, scope)
		if ct != types.Bool && ct != types.Unknown {
			a.diags.Errorf(diag.ESemNonBoolCondition, ex.Span(), ct.String())
		}
		tt := a.checkExpr(ex.Then, hint, scope)
		a.checkExpr(ex.Else, hint, scope)
		result = tt
	case *ast.Await:
		if !a.currentAsync {
			a.diags.Errorf(diag.ESemAwaitOutsideSync, ex.Span())
		}
		vt := a.checkExpr(ex.Value, nil, scope)
		if vt.Kind == types.KFuture {
			result = vt.Elem
		} else {
			result = vt
		}
	case *ast.Match:
		result = a.checkMatch(ex, hint, scope)
	default:
		result = types.Unknown
	}
	e.SetType(result)
	return result
}

func (a *analyzer) checkIdent(ex *ast.Ident, scope *symbols.Scope) *types.Type {
	if sym, ok := scope.Lookup(ex.Name); ok {
		return sym.Type
	}
	if fn, ok := a.funcs[ex.Name]; ok {
		return types.Function(fn.Params, fn.Result)
	}
	if fn, ok := a.externs[ex.Name]; ok {
		return types.Function(fn.Params, fn.Result)
	}
	if bt, ok := builtinFuncs[ex.Name]; ok {
		return bt
	}
	a.diags.Errorf(diag.ESemUnknownName, ex.Span(), ex.Name)
	return types.Unknown
}

func (a *analyzer) checkThis(ex *ast.This) *types.Type {
	if a.currentClass == symbols.InvalidHandle {
		a.diags.Errorf(diag.ESemThisOutsideMeth, ex.Span())
		return types.Unknown
	}
	info, ok := a.classes.Class(a.currentClass)
	if !ok {
		return types.Unknown
	}
	return types.Class(info.Name, typeParamTypes(info.TypeParams)...)
}

func (a *analyzer) checkAssign(ex *ast.Assign, scope *symbols.Scope) *types.Type {
	targetType := a.checkExpr(ex.Target, nil, scope)
	valType := a.checkExpr(ex.Value, targetType, scope)
	if id, ok := ex.Target.(*ast.Ident); ok {
		if sym, ok := scope.Lookup(id.Name); ok && !sym.Mutable {
			a.diags.Errorf(diag.ESemImmutableAssign, ex.Span(), id.Name)
		}
	}
	if !a.isAssignable(targetType, valType) {
		a.diags.Errorf(diag.ESemTypeMismatch, ex.Span(), valType.String(), targetType.String())
	}
	return targetType
}

func (a *analyzer) checkBinOp(ex *ast.BinOp, scope *symbols.Scope) *types.Type {
	lt := a.checkExpr(ex.Left, nil, scope)
	rt := a.checkExpr(ex.Right, lt, scope)
	switch ex.Op {
	case "&&", "||":
		if lt != types.Bool && lt != types.Unknown {
			a.diags.Errorf(diag.ESemNonBoolCondition, ex.Span(), lt.String())
		}
		if rt != types.Bool && rt != types.Unknown {
			a.diags.Errorf(diag.ESemNonBoolCondition, ex.Span(), rt.String())
		}
		return types.Bool
	case "==", "!=":
		return types.Bool
	case "<", "<=", ">", ">=":
		if lt.IsNumeric() || lt == types.Unknown {
			return types.Bool
		}
		if fn, ok := a.operatorOverload(lt, ex.Op); ok {
			return fn.Result
		}
		a.diags.Errorf(diag.ESemBadOperator, ex.Span(), ex.Op, lt.String())
		return types.Bool
	default:
		if lt.IsNumeric() && rt.IsNumeric() {
			return promote(lt, rt)
		}
		if lt == types.String && ex.Op == "+" {
			return types.String
		}
		if fn, ok := a.operatorOverload(lt, ex.Op); ok {
			return fn.Result
		}
		if lt != types.Unknown && rt != types.Unknown {
			a.diags.Errorf(diag.ESemBadOperator, ex.Span(), ex.Op, lt.String())
		}
		return types.Unknown
	}
}

func (a *analyzer) operatorOverload(t *types.Type, op string) (*types.Type, bool) {
	if t.Kind != types.KClass {
		return nil, false
	}
	h, ok := a.classes.LookupClass(t.Name)
	if !ok {
		return nil, false
	}
	m, _, found := a.classes.ResolveMember(h, "operator"+op)
	if !found || m.Type.Kind != types.KFunction {
		return nil, false
	}
	return m.Type, true
}

func (a *analyzer) checkCall(ex *ast.Call, hint *types.Type, scope *symbols.Scope) *types.Type {
	calleeType := a.checkExpr(ex.Callee, nil, scope)
	if calleeType.Kind != types.KFunction {
		if calleeType != types.Unknown {
			a.diags.Errorf(diag.ESemBadOperator, ex.Span(), "call", calleeType.String())
		}
		for _, arg := range ex.Args {
			a.checkExpr(arg, nil, scope)
		}
		return types.Unknown
	}
	if len(ex.Args) != len(calleeType.Params) {
		a.diags.Errorf(diag.ESemArityMismatch, ex.Span(), len(calleeType.Params), len(ex.Args))
	}
	for i, arg := range ex.Args {
		var want *types.Type
		if i < len(calleeType.Params) {
			want = calleeType.Params[i]
		}
		at := a.checkExpr(arg, want, scope)
		if want != nil && !a.isAssignable(want, at) {
			a.diags.Errorf(diag.ESemTypeMismatch, ex.Span(), at.String(), want.String())
		}
	}
	return calleeType.Result
}

func (a *analyzer) isAccessible(m symbols.Member, owner symbols.ClassHandle) bool {
	switch ast.Access(m.Access) {
	case ast.AccessPrivate:
		return a.currentClass == owner
	case ast.AccessProtected:
		return a.currentClass != symbols.InvalidHandle && a.classes.IsSubclassOf(a.currentClass, owner)
	default:
		return true
	}
}

func (a *analyzer) checkMemberAccess(ex *ast.MemberAccess, scope *symbols.Scope) *types.Type {
	if id, ok := ex.Object.(*ast.Ident); ok {
		if _, isVar := scope.Lookup(id.Name); !isVar {
			if einfo, ok := a.classes.LookupEnum(id.Name); ok {
				for _, v := range einfo.Variants {
					if v.Name == ex.Name {
						// A variant carrying an associated value is a
						// constructor: `Maybe.Some` has type (T) -> Maybe.
						if v.AssociatedType != nil {
							return types.Function([]*types.Type{v.AssociatedType}, types.Enum(id.Name))
						}
						return types.Enum(id.Name)
					}
				}
				a.diags.Errorf(diag.ESemUnknownName, ex.Span(), ex.Name)
				return types.Unknown
			}
			// A bare class name on the left of `.` (not a local variable)
			// is a class-qualified reference to one of its members — the
			// pattern a factory method like `Box.new(...)` uses. The
			// member is resolved the same way an instance member would be;
			// codegen tells the two apart by re-checking whether Object
			// names a class, so no receiver is pushed for this form.
			if h, ok := a.classes.LookupClass(id.Name); ok {
				member, owner, found := a.classes.ResolveMember(h, ex.Name)
				if !found {
					a.diags.Errorf(diag.ESemUnknownName, ex.Span(), ex.Name)
					return types.Unknown
				}
				if !a.isAccessible(member, owner) {
					a.diags.Errorf(diag.ESemAccessViolation, ex.Span(), ex.Name)
				}
				return member.Type
			}
		}
	}
	objType := a.checkExpr(ex.Object, nil, scope)
	base := objType.Underlying()
	switch base.Kind {
	case types.KClass:
		h, ok := a.classes.LookupClass(base.Name)
		if !ok {
			return types.Unknown
		}
		member, owner, found := a.classes.ResolveMember(h, ex.Name)
		if !found {
			a.diags.Errorf(diag.ESemUnknownName, ex.Span(), ex.Name)
			return types.Unknown
		}
		if !a.isAccessible(member, owner) {
			a.diags.Errorf(diag.ESemAccessViolation, ex.Span(), ex.Name)
		}
		t := member.Type
		if info, ok := a.classes.Class(h); ok && len(info.TypeParams) > 0 && len(info.TypeParams) == len(base.Args) {
			subst := make(map[string]*types.Type, len(info.TypeParams))
			for i, tp := range info.TypeParams {
				subst[tp] = base.Args[i]
			}
			t = types.Substitute(t, subst)
		}
		return t
	case types.KArray:
		if t, ok := arrayMemberType(base, ex.Name); ok {
			return t
		}
		a.diags.Errorf(diag.ESemUnknownName, ex.Span(), ex.Name)
		return types.Unknown
	case types.KPrimitive:
		if base.Primitive == types.PString {
			if t, ok := stringMemberTypes[ex.Name]; ok {
				return t
			}
		}
		if t, ok := primitiveMemberTypes[ex.Name]; ok {
			return t
		}
		a.diags.Errorf(diag.ESemUnknownName, ex.Span(), ex.Name)
		return types.Unknown
	default:
		return types.Unknown
	}
}

func (a *analyzer) checkOptionalChain(ex *ast.OptionalChain, scope *symbols.Scope) *types.Type {
	objType := a.checkExpr(ex.Object, nil, scope)
	base := objType.Underlying()
	if base.Kind != types.KClass {
		return types.Unknown
	}
	h, ok := a.classes.LookupClass(base.Name)
	if !ok {
		return types.Unknown
	}
	member, _, found := a.classes.ResolveMember(h, ex.Member)
	if !found {
		a.diags.Errorf(diag.ESemUnknownName, ex.Span(), ex.Member)
		return types.Unknown
	}
	return types.Nullable(member.Type)
}

func (a *analyzer) checkArrayLit(ex *ast.ArrayLit, hint *types.Type, scope *symbols.Scope) *types.Type {
	var elemHint *types.Type
	if hint != nil && hint.Kind == types.KArray {
		elemHint = hint.Elem
	}
	elem := types.Unknown
	for i, el := range ex.Elements {
		t := a.checkExpr(el, elemHint, scope)
		if i == 0 {
			elem = t
		}
	}
	if elemHint != nil {
		elem = elemHint
	}
	return types.Array(elem)
}

func (a *analyzer) checkIndex(ex *ast.Index, scope *symbols.Scope) *types.Type {
	objType := a.checkExpr(ex.Object, nil, scope)
	a.checkExpr(ex.Idx, types.Int, scope)
	switch objType.Kind {
	case types.KArray:
		return objType.Elem
	case types.KMap:
		return objType.Value
	default:
		return types.Unknown
	}
}

func (a *analyzer) checkLambda(ex *ast.Lambda, hint *types.Type, scope *symbols.Scope) *types.Type {
	var hintParams []*types.Type
	hintResult := types.Unknown
	if hint != nil && hint.Kind == types.KFunction {
		hintParams = hint.Params
		hintResult = hint.Result
	}
	inner := symbols.NewScope(scope)
	paramTypes := make([]*types.Type, len(ex.Params))
	for i, p := range ex.Params {
		var pt *types.Type
		switch {
		case p.TypeAnnot != nil:
			pt = a.resolveType(p.TypeAnnot)
		case i < len(hintParams):
			pt = hintParams[i]
		default:
			pt = types.Unknown
		}
		paramTypes[i] = pt
		if err := inner.Define(p.Name, pt, true, ex.Span()); err != nil {
			a.diags.Errorf(diag.ESemDuplicate, ex.Span(), p.Name)
		}
	}
	var resultType *types.Type
	switch {
	case ex.Body != nil:
		resultType = a.checkExpr(ex.Body, hintResult, inner)
	case ex.BlockBody != nil:
		prevRet, prevCollect := a.currentRet, a.collectingReturns
		if hintResult == types.Unknown {
			// No usable result hint (e.g. the array.map/filter/forEach
			// callback slots) — infer the lambda's result type from its
			// own return statements instead of trusting the wildcard.
			collected := []*types.Type{}
			a.currentRet = nil
			a.collectingReturns = &collected
			a.checkBlock(ex.BlockBody, inner)
			resultType = inferredReturnType(collected)
		} else {
			a.currentRet = hintResult
			a.collectingReturns = nil
			a.checkBlock(ex.BlockBody, inner)
			resultType = hintResult
		}
		a.currentRet, a.collectingReturns = prevRet, prevCollect
	default:
		resultType = types.Void
	}
	return types.Function(paramTypes, resultType)
}

func (a *analyzer) checkConstruct(ex *ast.Construct, hint *types.Type, scope *symbols.Scope) *types.Type {
	handle, ok := a.classes.LookupClass(ex.ClassName)
	if !ok {
		a.diags.Errorf(diag.ESemUnknownType, ex.Span(), ex.ClassName)
		for _, f := range ex.Fields {
			a.checkExpr(f.Value, nil, scope)
		}
		return types.Unknown
	}
	info, _ := a.classes.Class(handle)

	var concreteArgs []*types.Type
	var subst map[string]*types.Type
	if info.IsGeneric {
		if hint != nil && hint.Kind == types.KClass && hint.Name == ex.ClassName && len(hint.Args) == len(info.TypeParams) {
			concreteArgs = hint.Args
		} else {
			concreteArgs = make([]*types.Type, len(info.TypeParams))
			for i := range concreteArgs {
				concreteArgs[i] = types.Unknown
			}
		}
		a.classes.Instantiate(ex.ClassName, symbols.MangleGenericName(ex.ClassName, concreteArgs), info.TypeParams, concreteArgs)
		subst = make(map[string]*types.Type, len(info.TypeParams))
		for i, tp := range info.TypeParams {
			subst[tp] = concreteArgs[i]
		}
	}

	for _, f := range ex.Fields {
		member, _, found := a.classes.ResolveMember(handle, f.Name)
		if !found {
			a.diags.Errorf(diag.ESemUnknownName, ex.Span(), f.Name)
			a.checkExpr(f.Value, nil, scope)
			continue
		}
		fieldType := member.Type
		if subst != nil {
			fieldType = types.Substitute(fieldType, subst)
		}
		vt := a.checkExpr(f.Value, fieldType, scope)
		if !a.isAssignable(fieldType, vt) {
			a.diags.Errorf(diag.ESemTypeMismatch, ex.Span(), vt.String(), fieldType.String())
		}
	}

	if info.IsGeneric {
		return types.Class(ex.ClassName, concreteArgs...)
	}
	return types.Class(ex.ClassName)
}

func (a *analyzer) checkMatch(ex *ast.Match, hint *types.Type, scope *symbols.Scope) *types.Type {
	subjType := a.checkExpr(ex.Subject, nil, scope)
	enumInfo, isEnum := symbols.EnumInfo{}, false
	if subjType.Kind == types.KEnum {
		enumInfo, isEnum = a.classes.LookupEnum(subjType.Name)
	}

	resultType := types.Void
	hasCatchAll := false
	covered := make(map[string]bool)
	for _, arm := range ex.Arms {
		armScope := scope
		if arm.Binding != "" && isEnum {
			var assoc *types.Type = types.Unknown
			for _, v := range enumInfo.Variants {
				if v.Name == arm.Pattern && v.AssociatedType != nil {
					assoc = v.AssociatedType
				}
			}
			armScope = symbols.NewScope(scope)
			armScope.Define(arm.Binding, assoc, false, ex.Span())
		}
		if arm.IsCatchAll {
			hasCatchAll = true
		} else {
			covered[arm.Pattern] = true
		}
		rt := a.checkExpr(arm.Result, hint, armScope)
		// The match's type is the first non-void arm body's type; a match
		// whose every arm is void (all side effects) stays Void.
		if resultType == types.Void && rt != types.Void {
			resultType = rt
		}
	}

	if isEnum && !hasCatchAll {
		if missing := missingVariants(enumInfo, covered); len(missing) > 0 {
			a.diags.Errorf(diag.ESemNonExhaustive, ex.Span(), joinNames(missing))
		}
	}
	return resultType
}

// ---------------------------------------------------------------------
// Built-in member tables for arrays, strings, and primitives
// ---------------------------------------------------------------------

func arrayMemberType(arr *types.Type, name string) (*types.Type, bool) {
	elem := arr.Elem
	switch name {
	case "length":
		return types.Function(nil, types.Int), true
	case "push":
		return types.Function([]*types.Type{elem}, types.Void), true
	case "pop":
		return types.Function(nil, types.Nullable(elem)), true
	case "reverse":
		return types.Function(nil, arr), true
	case "join":
		return types.Function([]*types.Type{types.String}, types.String), true
	case "map":
		return types.Function([]*types.Type{types.Function([]*types.Type{elem}, types.Unknown)}, types.Array(types.Unknown)), true
	case "filter":
		return types.Function([]*types.Type{types.Function([]*types.Type{elem}, types.Bool)}, arr), true
	case "forEach":
		return types.Function([]*types.Type{types.Function([]*types.Type{elem}, types.Void)}, types.Void), true
	default:
		return nil, false
	}
}

var stringMemberTypes = map[string]*types.Type{
	"contains":   types.Function([]*types.Type{types.String}, types.Bool),
	"startsWith": types.Function([]*types.Type{types.String}, types.Bool),
	"endsWith":   types.Function([]*types.Type{types.String}, types.Bool),
	"indexOf":    types.Function([]*types.Type{types.String}, types.Int),
	"substring":  types.Function([]*types.Type{types.Int, types.Int}, types.String),
	"replace":    types.Function([]*types.Type{types.String, types.String}, types.String),
	"trim":       types.Function(nil, types.String),
	"toUpper":    types.Function(nil, types.String),
	"toLower":    types.Function(nil, types.String),
	"split":      types.Function([]*types.Type{types.String}, types.Array(types.String)),
	"charAt":     types.Function([]*types.Type{types.Int}, types.Char),
	"length":     types.Function(nil, types.Int),
}

var primitiveMemberTypes = map[string]*types.Type{
	"toString": types.Function(nil, types.String),
	"toInt":    types.Function(nil, types.Int),
	"toFloat":  types.Function(nil, types.Float64),
	"toChar":   types.Function(nil, types.Char),
}
