// lower_expr.go lowers every ast.Expr variant to an ir.Value, mirroring
// the shape of internal/sema's checkExpr dispatcher (including its hint
// parameter, threaded the same way sema threads it to resolve a generic
// factory call's concrete instantiation) but emitting instructions
// instead of inferring types.
package codegen

import (
	"fmt"

	"github.com/gmofishsauce/chrispp/internal/ast"
	"github.com/gmofishsauce/chrispp/internal/ir"
	"github.com/gmofishsauce/chrispp/internal/symbols"
	"github.com/gmofishsauce/chrispp/internal/types"
)

// genExpr lowers e, using hint the same way sema's checkExpr does: to
// recover the concrete type arguments a generic factory call or
// construct expression needs but cannot read off its own (possibly
// type-parameterized) inferred type.
func (g *gen) genExpr(e ast.Expr, hint *types.Type) ir.Value {
	switch ex := e.(type) {
	case *ast.IntLit:
		return g.b.ConstI64(ir.Type{Kind: ir.KI64}, ex.Value)
	case *ast.FloatLit:
		return g.b.ConstF64(ir.Type{Kind: ir.KF64}, ex.Value)
	case *ast.StringLit:
		return g.b.ConstStr(ex.Value)
	case *ast.CharLit:
		return g.b.ConstI64(ir.Type{Kind: ir.KI32}, int64(ex.Value))
	case *ast.BoolLit:
		return g.b.ConstBool(ex.Value)
	case *ast.NilLit:
		return g.b.ConstI64(ir.Type{Kind: ir.KPtr}, 0)
	case *ast.StringInterp:
		return g.genStringInterp(ex)
	case *ast.Ident:
		return g.genIdent(ex)
	case *ast.BinOp:
		return g.genBinOp(ex)
	case *ast.UnaryOp:
		return g.genUnaryOp(ex)
	case *ast.Call:
		return g.genCall(ex, hint)
	case *ast.MemberAccess:
		return g.genMemberAccess(ex)
	case *ast.This:
		return g.thisVal
	case *ast.Construct:
		return g.genConstruct(ex, hint)
	case *ast.Assign:
		return g.genAssign(ex)
	case *ast.Range:
		return g.genExpr(ex.Start, types.Int)
	case *ast.Lambda:
		name := g.genLambda(ex)
		return g.b.ConstStr(name)
	case *ast.NilCoalesce:
		return g.genNilCoalesce(ex)
	case *ast.ForceUnwrap:
		return g.genExpr(ex.Value, nil)
	case *ast.OptionalChain:
		return g.genOptionalChain(ex)
	case *ast.ArrayLit:
		return g.genArrayLit(ex)
	case *ast.Index:
		addr := g.genExprAddr(ex)
		return g.b.Load(g.irType(g.resolve(ex.Type())), addr)
	case *ast.IfExpr:
		return g.genIfExpr(ex)
	case *ast.Await:
		return g.genExpr(ex.Value, hint)
	case *ast.Match:
		return g.genMatch(ex)
	default:
		return g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0)
	}
}

// coerce adjusts v (of semantic type from) to fit where a value of
// semantic type to is expected. Numeric conversions (integer widening
// and truncation, int/float conversion, float width changes) are the
// only cases that need an actual instruction; every other assignable pair (the
// same representation, or a reference/pointer pair) passes through
// unchanged, since internal/ir's verifier does not itself enforce type
// agreement between a value and its use.
func (g *gen) coerce(v ir.Value, from, to *types.Type) ir.Value {
	if from == nil || to == nil || from == to {
		return v
	}
	if from.IsFloat() && to.IsFloat() && from != to {
		return g.b.Cast(ir.OpFPCast, g.irType(to), v)
	}
	if from.IsInteger() && to.IsFloat() {
		return g.b.Cast(ir.OpSIToFP, g.irType(to), v)
	}
	if from.IsFloat() && to.IsInteger() {
		return g.b.Cast(ir.OpFPToSI, g.irType(to), v)
	}
	if from.IsInteger() && to.IsInteger() && from != to {
		fromIT, toIT := g.irType(from), g.irType(to)
		if widthOf(toIT) > widthOf(fromIT) {
			if to.IsUnsignedInteger() {
				return g.b.Cast(ir.OpIntZExt, toIT, v)
			}
			return g.b.Cast(ir.OpIntSExt, toIT, v)
		}
		if widthOf(toIT) < widthOf(fromIT) {
			return g.b.Cast(ir.OpIntTrunc, toIT, v)
		}
	}
	return v
}

func widthOf(t ir.Type) int {
	switch t.Kind {
	case ir.KI8, ir.KU8:
		return 8
	case ir.KI16, ir.KU16:
		return 16
	case ir.KI32, ir.KU32:
		return 32
	default:
		return 64
	}
}

// toStringValue converts v (of semantic type t) to a ptr-typed string
// value via the runtime ABI's scalar-to-string primitives, used by
// print and string interpolation.
func (g *gen) toStringValue(t *types.Type, v ir.Value) ir.Value {
	if t == nil {
		return v
	}
	tPtrT := ir.Type{Kind: ir.KPtr}
	if t.Kind == types.KPrimitive {
		switch t.Primitive {
		case types.PString:
			return v
		case types.PBool:
			return g.b.CallExtern(tPtrT, "bool_to_string", v)
		case types.PChar:
			return g.b.CallExtern(tPtrT, "char_to_string", v)
		case types.PFloat64, types.PFloat32:
			return g.b.CallExtern(tPtrT, "f64_to_string", v)
		case types.PI8, types.PU8:
			return g.b.CallExtern(tPtrT, "i8_to_string", v)
		default:
			return g.b.CallExtern(tPtrT, "i64_to_string", v)
		}
	}
	return v
}

func (g *gen) genStringInterp(ex *ast.StringInterp) ir.Value {
	acc := g.b.ConstStr(ex.Parts[0])
	for i, sub := range ex.Exprs {
		v := g.genExpr(sub, nil)
		s := g.toStringValue(g.resolve(sub.Type()), v)
		acc = g.b.CallExtern(ir.Type{Kind: ir.KPtr}, "strcat", acc, s)
		acc = g.b.CallExtern(ir.Type{Kind: ir.KPtr}, "strcat", acc, g.b.ConstStr(ex.Parts[i+1]))
	}
	return acc
}

func (g *gen) genIdent(ex *ast.Ident) ir.Value {
	if c, ok := g.scope.lookup(ex.Name); ok {
		return g.b.Load(g.irType(c.typ), c.addr)
	}
	if gt, ok := g.globalTypes[ex.Name]; ok {
		addr := g.b.GlobalAddr(ex.Name)
		return g.b.Load(g.irType(gt), addr)
	}
	// A bare reference to a top-level function or extern used as a value
	// (e.g. passed to a higher-order array builtin) is represented by its
	// mangled name, not a true function pointer — internal/ir has no
	// indirect-call instruction, so only direct Call/CallExtern sites can
	// ever consume this placeholder.
	return g.b.ConstStr(ex.Name)
}

func (g *gen) genUnaryOp(ex *ast.UnaryOp) ir.Value {
	operandType := g.resolve(ex.Operand.Type())
	v := g.genExpr(ex.Operand, nil)
	switch ex.Op {
	case "!":
		return g.b.Not(v)
	case "-":
		if operandType.IsFloat() {
			return g.b.FNeg(g.irType(operandType), v)
		}
		return g.b.Neg(g.irType(operandType), v)
	default:
		return v
	}
}

func (g *gen) genBinOp(ex *ast.BinOp) ir.Value {
	if ex.Op == "&&" || ex.Op == "||" {
		return g.genShortCircuit(ex)
	}

	lt := g.resolve(ex.Left.Type())
	lv := g.genExpr(ex.Left, nil)
	rv := g.genExpr(ex.Right, lt)

	if lt.Kind == types.KClass {
		if fn, ok := g.operatorOverload(lt, ex.Op); ok {
			return fn(lv, rv)
		}
	}
	switch ex.Op {
	case "==":
		return g.b.Eq(lv, rv)
	case "!=":
		return g.b.Ne(lv, rv)
	case "+":
		if lt.Kind == types.KPrimitive && lt.Primitive == types.PString {
			return g.b.CallExtern(ir.Type{Kind: ir.KPtr}, "strcat", lv, rv)
		}
		return g.arithOp(arithAdd, lt, lv, rv)
	case "-":
		return g.arithOp(arithSub, lt, lv, rv)
	case "*":
		return g.arithOp(arithMul, lt, lv, rv)
	case "/":
		if lt.IsFloat() {
			return g.b.FDiv(g.irType(lt), lv, rv)
		}
		if lt.IsUnsignedInteger() {
			return g.b.UDiv(g.irType(lt), lv, rv)
		}
		return g.b.SDiv(g.irType(lt), lv, rv)
	case "%":
		if lt.IsUnsignedInteger() {
			return g.b.UMod(g.irType(lt), lv, rv)
		}
		return g.b.SMod(g.irType(lt), lv, rv)
	case "<":
		return g.cmpOp(cmpLt, lt, lv, rv)
	case "<=":
		return g.cmpOp(cmpLe, lt, lv, rv)
	case ">":
		return g.cmpOp(cmpGt, lt, lv, rv)
	case ">=":
		return g.cmpOp(cmpGe, lt, lv, rv)
	default:
		return lv
	}
}

func (g *gen) genShortCircuit(ex *ast.BinOp) ir.Value {
	lv := g.genExpr(ex.Left, types.Bool)
	resultAddr := g.b.Alloca(ir.Type{Kind: ir.KBool})
	g.b.Store(resultAddr, lv)

	rhsL, skipL := g.newLabel("sc_rhs"), g.newLabel("sc_skip")
	if ex.Op == "&&" {
		g.b.CondBr(lv, rhsL, skipL)
	} else {
		g.b.CondBr(lv, skipL, rhsL)
	}

	rhsBlk := g.fn.NewBlock(rhsL)
	g.b.SetBlock(rhsBlk)
	rv := g.genExpr(ex.Right, types.Bool)
	g.b.Store(resultAddr, rv)
	g.b.Br(skipL)

	skipBlk := g.fn.NewBlock(skipL)
	g.b.SetBlock(skipBlk)
	return g.b.Load(ir.Type{Kind: ir.KBool}, resultAddr)
}

// arithKind selects which of the three add/sub/mul shapes (int, float)
// a binary arithmetic operator lowers to for operand type t.
type arithKind int

const (
	arithAdd arithKind = iota
	arithSub
	arithMul
)

func (g *gen) arithOp(kind arithKind, t *types.Type, l, r ir.Value) ir.Value {
	it := g.irType(t)
	if t.IsFloat() {
		switch kind {
		case arithAdd:
			return g.b.FAdd(it, l, r)
		case arithSub:
			return g.b.FSub(it, l, r)
		default:
			return g.b.FMul(it, l, r)
		}
	}
	switch kind {
	case arithAdd:
		return g.b.Add(it, l, r)
	case arithSub:
		return g.b.Sub(it, l, r)
	default:
		return g.b.Mul(it, l, r)
	}
}

// cmpKind selects which relation (lt, le, gt, ge) a relational operator
// lowers to; the comparison family (signed, unsigned, float) comes from
// the operand type t.
type cmpKind int

const (
	cmpLt cmpKind = iota
	cmpLe
	cmpGt
	cmpGe
)

func (g *gen) cmpOp(kind cmpKind, t *types.Type, l, r ir.Value) ir.Value {
	switch {
	case t.IsFloat():
		switch kind {
		case cmpLt:
			return g.b.FLt(l, r)
		case cmpLe:
			return g.b.FLe(l, r)
		case cmpGt:
			return g.b.FGt(l, r)
		default:
			return g.b.FGe(l, r)
		}
	case t.IsUnsignedInteger():
		switch kind {
		case cmpLt:
			return g.b.ULt(l, r)
		case cmpLe:
			return g.b.ULe(l, r)
		case cmpGt:
			return g.b.UGt(l, r)
		default:
			return g.b.UGe(l, r)
		}
	default:
		switch kind {
		case cmpLt:
			return g.b.SLt(l, r)
		case cmpLe:
			return g.b.SLe(l, r)
		case cmpGt:
			return g.b.SGt(l, r)
		default:
			return g.b.SGe(l, r)
		}
	}
}

// operatorOverload returns a closure emitting a call to classType's
// "operator<op>" method, the same lookup sema's operatorOverload uses
// to type-check the expression in the first place.
func (g *gen) operatorOverload(classType *types.Type, op string) (func(this, arg ir.Value) ir.Value, bool) {
	h, ok := g.classes.LookupClass(classType.Name)
	if !ok {
		return nil, false
	}
	member, _, found := g.classes.ResolveMember(h, "operator"+op)
	if !found || member.Type.Kind != types.KFunction {
		return nil, false
	}
	target := g.classStructName(g.resolve(classType)) + "_operator" + op
	resultType := member.Type.Result
	return func(this, arg ir.Value) ir.Value {
		return g.b.Call(g.irType(resultType), target, this, arg)
	}, true
}

// genExprAddr computes the address an assignment or an array-index read
// needs, for every expression shape that can appear as an lvalue.
func (g *gen) genExprAddr(target ast.Expr) ir.Value {
	switch t := target.(type) {
	case *ast.Ident:
		if c, ok := g.scope.lookup(t.Name); ok {
			return c.addr
		}
		if _, ok := g.globalTypes[t.Name]; ok {
			return g.b.GlobalAddr(t.Name)
		}
		return g.b.Alloca(ir.Type{Kind: ir.KI64})
	case *ast.MemberAccess:
		objVal := g.genExpr(t.Object, nil)
		objType := g.resolve(t.Object.Type()).Underlying()
		h, _ := g.classes.LookupClass(objType.Name)
		idx, _, _ := g.fieldIndex(h, t.Name)
		return g.b.FieldAddr(objVal, idx)
	case *ast.Index:
		objVal := g.genExpr(t.Object, nil)
		idxVal := g.genExpr(t.Idx, types.Int)
		arrType := g.resolve(t.Object.Type())
		dataAddr := g.b.FieldAddr(objVal, 0)
		data := g.b.Load(ir.Type{Kind: ir.KPtr}, dataAddr)
		lenAddr := g.b.FieldAddr(objVal, 1)
		length := g.b.Load(ir.Type{Kind: ir.KI64}, lenAddr)
		g.b.CallExtern(ir.Type{Kind: ir.KVoid}, "array_bounds_check", idxVal, length)
		return g.b.IndexAddr(g.irType(arrType.Elem), data, idxVal)
	default:
		return g.b.Alloca(ir.Type{Kind: ir.KI64})
	}
}

func (g *gen) genAssign(ex *ast.Assign) ir.Value {
	targetType := g.resolve(ex.Target.Type())
	addr := g.genExprAddr(ex.Target)
	v := g.genExpr(ex.Value, targetType)
	stored := g.coerce(v, g.resolve(ex.Value.Type()), targetType)
	g.b.Store(addr, stored)
	return stored
}

// ---------------------------------------------------------------------
// Member access and calls
// ---------------------------------------------------------------------

func (g *gen) genMemberAccess(ex *ast.MemberAccess) ir.Value {
	if id, ok := ex.Object.(*ast.Ident); ok {
		if _, isVar := g.scope.lookup(id.Name); !isVar {
			if _, ok := g.classes.LookupEnum(id.Name); ok {
				return g.genPlainEnumVariant(id.Name, ex.Name)
			}
			if h, ok := g.classes.LookupClass(id.Name); ok {
				// A class-static member referenced (not called) as a
				// value — only a method can appear here (classes have no
				// static fields), so fall back to the same name
				// placeholder a bare function reference uses.
				_ = h
				return g.b.ConstStr(id.Name + "_" + ex.Name)
			}
		}
	}

	objVal := g.genExpr(ex.Object, nil)
	objType := g.resolve(ex.Object.Type()).Underlying()
	switch objType.Kind {
	case types.KClass:
		h, ok := g.classes.LookupClass(objType.Name)
		if !ok {
			return g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0)
		}
		idx, member, found := g.fieldIndex(h, ex.Name)
		if found {
			ft := member.Type
			if info, ok := g.classes.Class(h); ok && len(info.TypeParams) == len(objType.Args) && len(objType.Args) > 0 {
				subst := make(map[string]*types.Type, len(info.TypeParams))
				for i, tp := range info.TypeParams {
					subst[tp] = objType.Args[i]
				}
				ft = types.Substitute(ft, subst)
			}
			addr := g.b.FieldAddr(objVal, idx)
			return g.b.Load(g.irType(ft), addr)
		}
		return g.b.ConstStr(g.classStructName(objType) + "_" + ex.Name)
	default:
		return g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0)
	}
}

func (g *gen) genCall(ex *ast.Call, hint *types.Type) ir.Value {
	switch callee := ex.Callee.(type) {
	case *ast.Ident:
		return g.genCallIdent(callee, ex.Args)
	case *ast.MemberAccess:
		if id, ok := callee.Object.(*ast.Ident); ok {
			if _, isVar := g.scope.lookup(id.Name); !isVar {
				if einfo, ok := g.classes.LookupEnum(id.Name); ok {
					return g.genTaggedEnumConstruct(id.Name, callee.Name, ex.Args, einfo)
				}
				if h, ok := g.classes.LookupClass(id.Name); ok {
					return g.genStaticCall(h, id.Name, callee.Name, ex.Args, hint)
				}
			}
		}
		return g.genInstanceCall(callee, ex.Args)
	default:
		return g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0)
	}
}

func (g *gen) genCallIdent(callee *ast.Ident, args []ast.Expr) ir.Value {
	if callee.Name == "print" {
		v := g.genExpr(args[0], nil)
		s := g.toStringValue(g.resolve(args[0].Type()), v)
		return g.b.CallExtern(ir.Type{Kind: ir.KVoid}, "print", s)
	}
	if sig, ok := g.funcs[callee.Name]; ok {
		vals := g.evalArgs(args, sig.Params)
		return g.b.Call(g.irType(g.unwrapFuture(sig.Result)), callee.Name, vals...)
	}
	if sig, ok := g.externs[callee.Name]; ok {
		vals := g.evalArgs(args, sig.Params)
		return g.b.CallExtern(g.irType(sig.Result), callee.Name, vals...)
	}
	// A local variable holding a function value (lambda) cannot be
	// called indirectly — internal/ir has no call-through-pointer
	// instruction — so only the named-function and extern forms above
	// are supported call targets.
	return g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0)
}

func (g *gen) evalArgs(args []ast.Expr, paramTypes []*types.Type) []ir.Value {
	out := make([]ir.Value, len(args))
	for i, a := range args {
		var want *types.Type
		if i < len(paramTypes) {
			want = paramTypes[i]
		}
		v := g.genExpr(a, want)
		out[i] = g.coerce(v, g.resolve(a.Type()), want)
	}
	return out
}

// genStaticCall lowers a class-qualified factory call like `Box.new(42)`.
// hint carries the enclosing context's expected type (a VarDecl's
// annotation, a return statement's result type, ...) — exactly what lets
// codegen pick the concrete monomorphization (Box$Int) that the call
// expression's own inferred type does not by itself carry, since sema's
// checkCall returns the callee's declared (still type-parameterized)
// result type unchanged.
func (g *gen) genStaticCall(h symbols.ClassHandle, className, methodName string, args []ast.Expr, hint *types.Type) ir.Value {
	member, _, found := g.classes.ResolveMember(h, methodName)
	resultType := types.Void
	var paramTypes []*types.Type
	if found && member.Type.Kind == types.KFunction {
		resultType = member.Type.Result
		paramTypes = member.Type.Params
	}

	targetName := className
	info, _ := g.classes.Class(h)
	if info != nil && info.IsGeneric {
		var concreteArgs []*types.Type
		if hint != nil && hint.Kind == types.KClass && hint.Name == className && len(hint.Args) == len(info.TypeParams) {
			concreteArgs = hint.Args
		} else if g.subst != nil {
			concreteArgs = make([]*types.Type, len(info.TypeParams))
			for i, tp := range info.TypeParams {
				concreteArgs[i] = g.resolve(types.TypeParam(tp))
			}
		}
		if concreteArgs != nil && !anyTypeParam(concreteArgs) {
			targetName = symbols.MangleGenericName(className, concreteArgs)
			subst := make(map[string]*types.Type, len(info.TypeParams))
			for i, tp := range info.TypeParams {
				subst[tp] = concreteArgs[i]
			}
			resultType = types.Substitute(resultType, subst)
			subbed := make([]*types.Type, len(paramTypes))
			for i, p := range paramTypes {
				subbed[i] = types.Substitute(p, subst)
			}
			paramTypes = subbed
		}
	}

	// Every method carries an implicit leading `this` parameter; a
	// class-qualified call has no receiver, so a null pointer fills the
	// slot to keep the call's arity aligned with the declaration.
	nullThis := g.b.ConstI64(ir.Type{Kind: ir.KPtr}, 0)
	vals := append([]ir.Value{nullThis}, g.evalArgs(args, paramTypes)...)
	return g.b.Call(g.irType(g.unwrapFuture(resultType)), targetName+"_"+methodName, vals...)
}

// genInstanceCall lowers obj.method(args) to a direct call against the
// method backing obj's (possibly monomorphized) class, or to a runtime
// ABI extern for an array/string/primitive built-in member.
func (g *gen) genInstanceCall(ma *ast.MemberAccess, args []ast.Expr) ir.Value {
	objType := g.resolve(ma.Object.Type())
	base := objType.Underlying()
	objVal := g.genExpr(ma.Object, nil)

	switch base.Kind {
	case types.KClass:
		h, ok := g.classes.LookupClass(base.Name)
		if !ok {
			return g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0)
		}
		member, _, found := g.classes.ResolveMember(h, ma.Name)
		resultType := types.Void
		var paramTypes []*types.Type
		if found && member.Type.Kind == types.KFunction {
			resultType = member.Type.Result
			paramTypes = member.Type.Params
		}
		info, _ := g.classes.Class(h)
		if info != nil && len(info.TypeParams) == len(base.Args) && len(base.Args) > 0 {
			subst := make(map[string]*types.Type, len(info.TypeParams))
			for i, tp := range info.TypeParams {
				subst[tp] = base.Args[i]
			}
			resultType = types.Substitute(resultType, subst)
			subbed := make([]*types.Type, len(paramTypes))
			for i, p := range paramTypes {
				subbed[i] = types.Substitute(p, subst)
			}
			paramTypes = subbed
		}
		target := g.classStructName(base) + "_" + ma.Name
		vals := append([]ir.Value{objVal}, g.evalArgs(args, paramTypes)...)
		return g.b.Call(g.irType(g.unwrapFuture(resultType)), target, vals...)
	case types.KArray:
		return g.genArrayBuiltinCall(objVal, base, ma.Name, args)
	case types.KPrimitive:
		if base.Primitive == types.PString {
			return g.genStringBuiltinCall(objVal, ma.Name, args)
		}
		return g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0)
	default:
		return g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0)
	}
}

func (g *gen) genArrayBuiltinCall(arr ir.Value, arrType *types.Type, name string, args []ast.Expr) ir.Value {
	lenAddr := g.b.FieldAddr(arr, 1)
	length := g.b.Load(ir.Type{Kind: ir.KI64}, lenAddr)
	switch name {
	case "length":
		return length
	case "push":
		v := g.genExpr(args[0], arrType.Elem)
		return g.b.CallExtern(ir.Type{Kind: ir.KVoid}, "array_push", arr, v)
	case "pop":
		return g.b.CallExtern(ir.Type{Kind: ir.KI64}, "array_pop", arr)
	case "reverse":
		return g.b.CallExtern(ir.Type{Kind: ir.KVoid}, "array_reverse", arr)
	case "join":
		sep := g.genExpr(args[0], types.String)
		return g.b.CallExtern(ir.Type{Kind: ir.KPtr}, "array_join", arr, sep)
	case "map":
		fn := g.genExpr(args[0], nil)
		return g.b.CallExtern(ir.Type{Kind: ir.KPtr}, "array_map", arr, fn)
	case "filter":
		fn := g.genExpr(args[0], nil)
		return g.b.CallExtern(ir.Type{Kind: ir.KPtr}, "array_filter", arr, fn)
	case "forEach":
		fn := g.genExpr(args[0], nil)
		return g.b.CallExtern(ir.Type{Kind: ir.KVoid}, "array_foreach", arr, fn)
	default:
		return g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0)
	}
}

func (g *gen) genStringBuiltinCall(s ir.Value, name string, args []ast.Expr) ir.Value {
	argVals := make([]ir.Value, len(args))
	for i, a := range args {
		argVals[i] = g.genExpr(a, nil)
	}
	call := func(extern string, typ ir.Type) ir.Value {
		return g.b.CallExtern(typ, extern, append([]ir.Value{s}, argVals...)...)
	}
	tPtr := ir.Type{Kind: ir.KPtr}
	switch name {
	case "length":
		return call("string_len", ir.Type{Kind: ir.KI64})
	case "contains":
		return call("string_contains", ir.Type{Kind: ir.KBool})
	case "startsWith":
		return call("string_starts_with", ir.Type{Kind: ir.KBool})
	case "endsWith":
		return call("string_ends_with", ir.Type{Kind: ir.KBool})
	case "indexOf":
		return call("string_index_of", ir.Type{Kind: ir.KI64})
	case "substring":
		return call("string_substring", tPtr)
	case "replace":
		return call("string_replace", tPtr)
	case "trim":
		return call("string_trim", tPtr)
	case "toUpper":
		return call("string_to_upper", tPtr)
	case "toLower":
		return call("string_to_lower", tPtr)
	case "charAt":
		return call("string_char_at", ir.Type{Kind: ir.KI32})
	case "split":
		return call("string_split", ir.Type{Kind: ir.KVoid})
	case "toInt":
		return call("string_to_int", ir.Type{Kind: ir.KI64})
	case "toFloat":
		return call("string_to_float", ir.Type{Kind: ir.KF64})
	default:
		return g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0)
	}
}

// ---------------------------------------------------------------------
// Construct and enum values
// ---------------------------------------------------------------------

func (g *gen) genConstruct(ex *ast.Construct, hint *types.Type) ir.Value {
	h := g.mustClassHandle(ex.ClassName)
	resolvedType := g.resolve(ex.Type())
	if hint != nil && hint.Kind == types.KClass && hint.Name == ex.ClassName && len(hint.Args) > 0 {
		resolvedType = hint
	}
	structName := g.classStructName(resolvedType)

	var subst map[string]*types.Type
	info, _ := g.classes.Class(h)
	if info != nil && len(info.TypeParams) == len(resolvedType.Args) && len(resolvedType.Args) > 0 {
		subst = make(map[string]*types.Type, len(info.TypeParams))
		for i, tp := range info.TypeParams {
			subst[tp] = resolvedType.Args[i]
		}
	}

	sdef, ok := g.mod.Struct(structName)
	size := int64(8)
	if ok {
		size = int64(len(sdef.Fields)*8 + 8)
	}
	ptr := g.b.CallExtern(ir.Type{Kind: ir.KPtr}, "object_alloc", g.b.ConstI64(ir.Type{Kind: ir.KI64}, size))

	for _, f := range ex.Fields {
		idx, member, found := g.fieldIndex(h, f.Name)
		if !found {
			continue
		}
		ft := member.Type
		if subst != nil {
			ft = types.Substitute(ft, subst)
		}
		v := g.genExpr(f.Value, ft)
		v = g.coerce(v, g.resolve(f.Value.Type()), ft)
		addr := g.b.FieldAddr(ptr, idx)
		g.b.Store(addr, v)
	}
	return ptr
}

func (g *gen) genPlainEnumVariant(enumName, variantName string) ir.Value {
	info, _ := g.classes.LookupEnum(enumName)
	tag := int64(variantIndex(info, variantName))
	if !enumHasPayload(info) {
		return g.b.ConstI64(ir.Type{Kind: ir.KI64}, tag)
	}
	structName := enumStructName(enumName)
	addr := g.b.Alloca(ir.StructRef(structName))
	tagAddr := g.b.FieldAddr(addr, 0)
	g.b.Store(tagAddr, g.b.ConstI64(ir.Type{Kind: ir.KI64}, tag))
	payloadAddr := g.b.FieldAddr(addr, 1)
	g.b.Store(payloadAddr, g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0))
	return g.b.Load(ir.StructRef(structName), addr)
}

func (g *gen) genTaggedEnumConstruct(enumName, variantName string, args []ast.Expr, info symbols.EnumInfo) ir.Value {
	tag := int64(variantIndex(info, variantName))
	structName := enumStructName(enumName)
	addr := g.b.Alloca(ir.StructRef(structName))
	tagAddr := g.b.FieldAddr(addr, 0)
	g.b.Store(tagAddr, g.b.ConstI64(ir.Type{Kind: ir.KI64}, tag))
	payloadAddr := g.b.FieldAddr(addr, 1)
	if len(args) > 0 {
		v := g.genExpr(args[0], nil)
		if at := g.resolve(args[0].Type()); g.irType(at).Kind != ir.KI64 {
			v = g.b.Cast(ir.OpBitcast, ir.Type{Kind: ir.KI64}, v)
		}
		g.b.Store(payloadAddr, v)
	} else {
		g.b.Store(payloadAddr, g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0))
	}
	return g.b.Load(ir.StructRef(structName), addr)
}

// ---------------------------------------------------------------------
// Nullable operators, arrays, conditionals
// ---------------------------------------------------------------------

func (g *gen) genNilCoalesce(ex *ast.NilCoalesce) ir.Value {
	baseT := g.resolve(ex.Value.Type()).Underlying()
	it := g.irType(baseT)
	v := g.genExpr(ex.Value, nil)
	zero := g.zeroValue(baseT)
	isNil := g.b.Eq(v, zero)

	resultAddr := g.b.Alloca(it)
	g.b.Store(resultAddr, v)
	elseL, endL := g.newLabel("coalesce_else"), g.newLabel("coalesce_end")
	g.b.CondBr(isNil, elseL, endL)

	elseBlk := g.fn.NewBlock(elseL)
	g.b.SetBlock(elseBlk)
	def := g.genExpr(ex.Default, baseT)
	g.b.Store(resultAddr, g.coerce(def, g.resolve(ex.Default.Type()), baseT))
	g.b.Br(endL)

	endBlk := g.fn.NewBlock(endL)
	g.b.SetBlock(endBlk)
	return g.b.Load(it, resultAddr)
}

func (g *gen) genOptionalChain(ex *ast.OptionalChain) ir.Value {
	objVal := g.genExpr(ex.Object, nil)
	baseObjType := g.resolve(ex.Object.Type()).Underlying()
	resultType := g.resolve(ex.Type()).Underlying()
	it := g.irType(resultType)

	zero := g.b.ConstI64(ir.Type{Kind: ir.KPtr}, 0)
	isNil := g.b.Eq(objVal, zero)
	resultAddr := g.b.Alloca(it)

	thenL, elseL, endL := g.newLabel("opt_then"), g.newLabel("opt_else"), g.newLabel("opt_end")
	g.b.CondBr(isNil, elseL, thenL)

	thenBlk := g.fn.NewBlock(thenL)
	g.b.SetBlock(thenBlk)
	if h, ok := g.classes.LookupClass(baseObjType.Name); ok {
		if idx, member, found := g.fieldIndex(h, ex.Member); found {
			addr := g.b.FieldAddr(objVal, idx)
			v := g.b.Load(g.irType(member.Type), addr)
			g.b.Store(resultAddr, v)
		}
	}
	g.b.Br(endL)

	elseBlk := g.fn.NewBlock(elseL)
	g.b.SetBlock(elseBlk)
	g.b.Store(resultAddr, g.zeroValue(resultType))
	g.b.Br(endL)

	endBlk := g.fn.NewBlock(endL)
	g.b.SetBlock(endBlk)
	return g.b.Load(it, resultAddr)
}

func (g *gen) genArrayLit(ex *ast.ArrayLit) ir.Value {
	elemType := types.Unknown
	if t := g.resolve(ex.Type()); t != nil && t.Kind == types.KArray {
		elemType = t.Elem
	}
	count := int64(len(ex.Elements))
	arrPtr := g.b.CallExtern(ir.Type{Kind: ir.KPtr}, "array_alloc",
		g.b.ConstI64(ir.Type{Kind: ir.KI64}, count), g.b.ConstI64(ir.Type{Kind: ir.KI64}, 8))

	dataAddr := g.b.FieldAddr(arrPtr, 0)
	data := g.b.Load(ir.Type{Kind: ir.KPtr}, dataAddr)
	for i, el := range ex.Elements {
		v := g.genExpr(el, elemType)
		idxV := g.b.ConstI64(ir.Type{Kind: ir.KI64}, int64(i))
		eAddr := g.b.IndexAddr(g.irType(elemType), data, idxV)
		g.b.Store(eAddr, v)
	}
	return arrPtr
}

func (g *gen) genIfExpr(ex *ast.IfExpr) ir.Value {
	resultType := g.resolve(ex.Type())
	it := g.irType(resultType)
	cond := g.genExpr(ex.Cond, types.Bool)
	resultAddr := g.b.Alloca(it)

	thenL, elseL, endL := g.newLabel("ifexpr_then"), g.newLabel("ifexpr_else"), g.newLabel("ifexpr_end")
	g.b.CondBr(cond, thenL, elseL)

	thenBlk := g.fn.NewBlock(thenL)
	g.b.SetBlock(thenBlk)
	tv := g.genExpr(ex.Then, resultType)
	g.b.Store(resultAddr, g.coerce(tv, g.resolve(ex.Then.Type()), resultType))
	g.b.Br(endL)

	elseBlk := g.fn.NewBlock(elseL)
	g.b.SetBlock(elseBlk)
	ev := g.genExpr(ex.Else, resultType)
	g.b.Store(resultAddr, g.coerce(ev, g.resolve(ex.Else.Type()), resultType))
	g.b.Br(endL)

	endBlk := g.fn.NewBlock(endL)
	g.b.SetBlock(endBlk)
	return g.b.Load(it, resultAddr)
}

// genMatch lowers a match expression to a chain of tag comparisons
// followed by a shared result cell — the same alloca-and-join pattern
// genIfExpr uses, rather than a Phi node, so the two expression forms
// that need to unify typed branches share one idiom.
func (g *gen) genMatch(ex *ast.Match) ir.Value {
	subjType := g.resolve(ex.Subject.Type())
	resultType := g.resolve(ex.Type())
	it := g.irType(resultType)
	resultAddr := g.b.Alloca(it)
	endL := g.newLabel("match_end")

	var enumInfo symbols.EnumInfo
	isEnum := subjType.Kind == types.KEnum
	if isEnum {
		enumInfo, _ = g.classes.LookupEnum(subjType.Name)
	}
	hasPayload := isEnum && enumHasPayload(enumInfo)

	subjVal := g.genExpr(ex.Subject, nil)
	var tagVal, payloadVal ir.Value
	if hasPayload {
		structName := enumStructName(subjType.Name)
		tmp := g.b.Alloca(ir.StructRef(structName))
		g.b.Store(tmp, subjVal)
		tagAddr := g.b.FieldAddr(tmp, 0)
		tagVal = g.b.Load(ir.Type{Kind: ir.KI64}, tagAddr)
		payloadAddr := g.b.FieldAddr(tmp, 1)
		payloadVal = g.b.Load(ir.Type{Kind: ir.KI64}, payloadAddr)
	} else {
		tagVal = subjVal
	}

	for i, arm := range ex.Arms {
		last := i == len(ex.Arms)-1
		var armL, nextL string
		if !arm.IsCatchAll {
			armL = g.newLabel("arm")
			if last {
				nextL = endL
			} else {
				nextL = g.newLabel("arm_next")
			}
			variantTag := int64(-1)
			if isEnum {
				variantTag = int64(variantIndex(enumInfo, arm.Pattern))
			}
			cond := g.b.Eq(tagVal, g.b.ConstI64(ir.Type{Kind: ir.KI64}, variantTag))
			g.b.CondBr(cond, armL, nextL)
			armBlk := g.fn.NewBlock(armL)
			g.b.SetBlock(armBlk)
		}

		parent := g.scope
		g.scope = newVarScope(parent)
		if arm.Binding != "" && hasPayload {
			assoc := variantAssociatedType(enumInfo, arm.Pattern)
			bound := payloadVal
			bindIT := g.irType(assoc)
			if bindIT.Kind != ir.KI64 {
				// The payload is stored as a machine word; cast it back to
				// the variant's declared type for the arm's scope.
				bound = g.b.Cast(ir.OpBitcast, bindIT, payloadVal)
			}
			bindAddr := g.b.Alloca(bindIT)
			g.b.Store(bindAddr, bound)
			g.scope.define(arm.Binding, cell{addr: bindAddr, typ: assoc})
		}
		rv := g.genExpr(arm.Result, resultType)
		g.b.Store(resultAddr, g.coerce(rv, g.resolve(arm.Result.Type()), resultType))
		g.scope = parent
		if g.b.Block().Terminator() == nil {
			g.b.Br(endL)
		}

		if !arm.IsCatchAll && !last {
			nextBlk := g.fn.NewBlock(nextL)
			g.b.SetBlock(nextBlk)
		}
	}

	endBlk := g.fn.NewBlock(endL)
	g.b.SetBlock(endBlk)
	return g.b.Load(it, resultAddr)
}

// genLambda emits a lambda body as its own top-level function — chrispp
// lambdas do not capture their enclosing scope (the only values they
// see are their own parameters), so a lambda needs no environment
// pointer, just a uniquely mangled name the enclosing expression can
// reference as a function-value placeholder.
func (g *gen) genLambda(ex *ast.Lambda) string {
	name := fmt.Sprintf("__lambda_%d", g.lambdaNum)
	g.lambdaNum++

	lt := g.resolve(ex.Type())
	paramTypes := make([]*types.Type, len(ex.Params))
	for i := range ex.Params {
		if lt != nil && i < len(lt.Params) {
			paramTypes[i] = lt.Params[i]
		} else {
			paramTypes[i] = types.Unknown
		}
	}
	resultType := types.Void
	if lt != nil {
		resultType = lt.Result
	}

	fn := ir.NewFunction(name, g.irParams(lambdaParamNames(ex.Params), paramTypes), g.irType(g.unwrapFuture(resultType)))
	g.mod.AddFunction(fn)

	savedFn, savedB, savedScope := g.fn, g.b, g.scope
	savedSubst, savedThisClass, savedThisVal := g.subst, g.thisClass, g.thisVal
	savedRet, savedBreak, savedCont, savedBlockNum := g.retType, g.breakLbl, g.contLbl, g.blockNum

	g.fn = fn
	g.retType = g.unwrapFuture(resultType)
	g.breakLbl, g.contLbl, g.blockNum = nil, nil, 0
	entry := fn.NewBlock("entry")
	g.b = ir.NewBuilder(fn, entry)
	g.scope = newVarScope(nil)
	for i, p := range ex.Params {
		addr := g.b.Alloca(g.irType(paramTypes[i]))
		g.b.Store(addr, fn.Param(i))
		g.scope.define(p.Name, cell{addr: addr, typ: paramTypes[i]})
	}

	if ex.BlockBody != nil {
		g.genBlock(ex.BlockBody)
		g.ensureTerminator(g.retType)
	} else {
		v := g.genExpr(ex.Body, g.retType)
		g.b.Ret(g.coerce(v, g.resolve(ex.Body.Type()), g.retType))
	}

	g.fn, g.b, g.scope = savedFn, savedB, savedScope
	g.subst, g.thisClass, g.thisVal = savedSubst, savedThisClass, savedThisVal
	g.retType, g.breakLbl, g.contLbl, g.blockNum = savedRet, savedBreak, savedCont, savedBlockNum

	return name
}

func lambdaParamNames(params []ast.Param) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}
