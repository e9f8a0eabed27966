// lower_stmt.go lowers function/method bodies and every ast.Stmt
// variant (If/While/ForIn/Try/Throw/Unsafe and the rest) into the
// active Builder's basic blocks, including the per-function prologue:
// entry-block allocas for parameters and, in main, the one-time global
// initializers.
package codegen

import (
	"fmt"

	"github.com/gmofishsauce/chrispp/internal/ast"
	"github.com/gmofishsauce/chrispp/internal/ir"
	"github.com/gmofishsauce/chrispp/internal/symbols"
	"github.com/gmofishsauce/chrispp/internal/types"
)

// ---------------------------------------------------------------------
// Pass 2 — emit bodies
// ---------------------------------------------------------------------

func (g *gen) pass2(prog *ast.Program) {
	for _, d := range prog.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok {
			g.genTopFunc(fd)
		}
	}
	for name, d := range g.classByName {
		if len(d.TypeParams) > 0 {
			continue
		}
		h, ok := g.classes.LookupClass(name)
		if !ok {
			continue
		}
		for _, m := range d.Methods {
			g.genMethod(h, name, name, m, nil)
		}
	}
	for _, inst := range g.classes.Instantiations() {
		if anyTypeParam(inst.ConcreteArgs) {
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
		for _, m := range d.Methods {
			g.genMethod(h, inst.TemplateName, inst.MangledName, m, subst)
		}
	}
}

func (g *gen) genTopFunc(d *ast.FuncDecl) {
	sig, ok := g.funcs[d.Name]
	if !ok {
		return
	}
	fn, ok := g.mod.Function(d.Name)
	if !ok {
		return
	}
	g.fn = fn
	g.subst = nil
	g.thisClass = nil
	g.retType = g.unwrapFuture(sig.Result)
	g.breakLbl, g.contLbl, g.blockNum = nil, nil, 0

	entry := fn.NewBlock("entry")
	g.b = ir.NewBuilder(fn, entry)
	g.scope = newVarScope(nil)

	for i, p := range d.Params {
		pt := types.Unknown
		if i < len(sig.Params) {
			pt = sig.Params[i]
		}
		addr := g.b.Alloca(g.irType(pt))
		g.b.Store(addr, fn.Param(i))
		g.scope.define(p.Name, cell{addr: addr, typ: pt})
	}

	// Global initializers run once, in declaration order, before main's
	// own body — the runtime has no separate module-init hook.
	if d.Name == "main" {
		for _, decl := range g.allDecls {
			vd, ok := decl.(*ast.VarDecl)
			if !ok || vd.Init == nil {
				continue
			}
			t := vd.ResolvedType()
			addr := g.b.GlobalAddr(vd.Name)
			v := g.genExpr(vd.Init, t)
			g.b.Store(addr, g.coerce(v, g.resolve(vd.Init.Type()), t))
		}
	}

	g.genBlock(d.Body)
	g.ensureTerminator(g.retType)
}

func (g *gen) genMethod(h symbols.ClassHandle, templateName, targetName string, m ast.Method, subst map[string]*types.Type) {
	fn, ok := g.mod.Function(targetName + "_" + m.Name)
	if !ok {
		return
	}
	member, _, found := g.classes.ResolveMember(h, m.Name)
	resultType := types.Void
	var paramTypes []*types.Type
	if found && member.Type.Kind == types.KFunction {
		resultType = member.Type.Result
		paramTypes = member.Type.Params
		if subst != nil {
			resultType = types.Substitute(resultType, subst)
		}
	}

	g.fn = fn
	g.subst = subst
	info, _ := g.classes.Class(h)
	thisArgs := make([]*types.Type, len(info.TypeParams))
	for i, tp := range info.TypeParams {
		if subst != nil {
			thisArgs[i] = subst[tp]
		} else {
			thisArgs[i] = types.TypeParam(tp)
		}
	}
	g.thisClass = types.Class(info.Name, thisArgs...)
	g.retType = g.unwrapFuture(resultType)
	g.breakLbl, g.contLbl, g.blockNum = nil, nil, 0

	entry := fn.NewBlock("entry")
	g.b = ir.NewBuilder(fn, entry)
	g.scope = newVarScope(nil)
	g.scope.define("this", cell{addr: ir.NoValue, typ: g.thisClass})
	g.thisVal = fn.Param(0)

	for i, p := range m.Params {
		pt := types.Unknown
		if i < len(paramTypes) {
			pt = paramTypes[i]
			if subst != nil {
				pt = types.Substitute(pt, subst)
			}
		}
		addr := g.b.Alloca(g.irType(pt))
		g.b.Store(addr, fn.Param(i+1))
		g.scope.define(p.Name, cell{addr: addr, typ: pt})
	}

	g.genBlock(m.Body)
	g.ensureTerminator(g.retType)
}

// ensureTerminator appends a default return to the current block if the
// body fell off the end without one (e.g. a Void function with no final
// return statement).
func (g *gen) ensureTerminator(resultType *types.Type) {
	if b := g.b.Block(); b.Terminator() == nil {
		if resultType == nil || resultType == types.Void {
			g.b.Ret(ir.NoValue)
		} else {
			g.b.Ret(g.zeroValue(resultType))
		}
	}
}

// zeroValue returns a default-valued constant of t's IR type. It keeps a
// fallen-through block's terminator well-typed (reachable chrispp programs
// never observe that value, since sema requires every control path of a
// non-Void function to return), and it is also the nil sentinel that
// genNilCoalesce and genOptionalChain compare against or yield.
func (g *gen) zeroValue(t *types.Type) ir.Value {
	it := g.irType(t)
	switch it.Kind {
	case ir.KF64, ir.KF32:
		return g.b.ConstF64(it, 0)
	case ir.KBool:
		return g.b.ConstBool(false)
	default:
		return g.b.ConstI64(it, 0)
	}
}

func (g *gen) newLabel(prefix string) string {
	g.blockNum++
	return fmt.Sprintf("%s%d", prefix, g.blockNum)
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

func (g *gen) genBlock(b *ast.Block) {
	if b == nil {
		return
	}
	parent := g.scope
	g.scope = newVarScope(parent)
	for _, s := range b.Stmts {
		if g.b.Block().Terminator() != nil {
			break // unreachable code after return/break/continue/throw
		}
		g.genStmt(s)
	}
	g.scope = parent
}

func (g *gen) genStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.VarDecl:
		g.genVarDecl(st)
	case *ast.ExprStmt:
		g.genExpr(st.X, nil)
	case *ast.Return:
		g.genReturn(st)
	case *ast.If:
		g.genIf(st)
	case *ast.Block:
		g.genBlock(st)
	case *ast.While:
		g.genWhile(st)
	case *ast.ForIn:
		g.genForIn(st)
	case *ast.Break:
		if len(g.breakLbl) > 0 {
			g.b.Br(g.breakLbl[len(g.breakLbl)-1])
		}
	case *ast.Continue:
		if len(g.contLbl) > 0 {
			g.b.Br(g.contLbl[len(g.contLbl)-1])
		}
	case *ast.Throw:
		v := g.genExpr(st.Value, nil)
		msg := g.toStringValue(g.resolve(st.Value.Type()), v)
		g.b.CallExtern(ir.Type{Kind: ir.KVoid}, "throw", msg)
	case *ast.Try:
		g.genTry(st)
	case *ast.Unsafe:
		g.genBlock(st.Body)
	}
}

func (g *gen) genVarDecl(st *ast.VarDecl) {
	t := st.ResolvedType()
	t = g.resolve(t)
	it := g.irType(t)
	addr := g.b.Alloca(it)
	if st.Init != nil {
		v := g.genExpr(st.Init, t)
		g.b.Store(addr, g.coerce(v, g.resolve(st.Init.Type()), t))
	}
	g.scope.define(st.Name, cell{addr: addr, typ: t})
}

func (g *gen) genReturn(st *ast.Return) {
	if st.Value == nil {
		g.b.Ret(ir.NoValue)
		return
	}
	v := g.genExpr(st.Value, g.retType)
	g.b.Ret(v)
}

func (g *gen) genIf(st *ast.If) {
	cond := g.genExpr(st.Cond, types.Bool)
	thenL, elseL, endL := g.newLabel("if_then"), g.newLabel("if_else"), g.newLabel("if_end")
	if st.Else == nil {
		g.b.CondBr(cond, thenL, endL)
	} else {
		g.b.CondBr(cond, thenL, elseL)
	}

	thenBlk := g.fn.NewBlock(thenL)
	g.b.SetBlock(thenBlk)
	g.genBlock(st.Then)
	if g.b.Block().Terminator() == nil {
		g.b.Br(endL)
	}

	if st.Else != nil {
		elseBlk := g.fn.NewBlock(elseL)
		g.b.SetBlock(elseBlk)
		g.genStmt(st.Else)
		if g.b.Block().Terminator() == nil {
			g.b.Br(endL)
		}
	}

	endBlk := g.fn.NewBlock(endL)
	g.b.SetBlock(endBlk)
}

func (g *gen) genWhile(st *ast.While) {
	condL, bodyL, endL := g.newLabel("while_cond"), g.newLabel("while_body"), g.newLabel("while_end")
	g.b.Br(condL)

	condBlk := g.fn.NewBlock(condL)
	g.b.SetBlock(condBlk)
	cond := g.genExpr(st.Cond, types.Bool)
	g.b.CondBr(cond, bodyL, endL)

	bodyBlk := g.fn.NewBlock(bodyL)
	g.b.SetBlock(bodyBlk)
	g.breakLbl = append(g.breakLbl, endL)
	g.contLbl = append(g.contLbl, condL)
	g.genBlock(st.Body)
	g.breakLbl = g.breakLbl[:len(g.breakLbl)-1]
	g.contLbl = g.contLbl[:len(g.contLbl)-1]
	if g.b.Block().Terminator() == nil {
		g.b.Br(condL)
	}

	endBlk := g.fn.NewBlock(endL)
	g.b.SetBlock(endBlk)
}

// genForIn lowers both `for x in a..b` (an integer Range) and
// `for x in arr` (array iteration) to an equivalent index-counted while
// loop, since internal/ir has no dedicated iterator instruction.
func (g *gen) genForIn(st *ast.ForIn) {
	idxAddr := g.b.Alloca(ir.Type{Kind: ir.KI64})
	var limit ir.Value
	var arrData ir.Value
	elemType := types.Int
	isRange := false

	if rng, ok := st.Iterable.(*ast.Range); ok {
		isRange = true
		start := g.genExpr(rng.Start, types.Int)
		g.b.Store(idxAddr, start)
		limit = g.genExpr(rng.End, types.Int)
	} else {
		arrVal := g.genExpr(st.Iterable, nil)
		arrType := g.resolve(st.Iterable.Type())
		if arrType != nil {
			elemType = arrType.Elem
		}
		dataAddr := g.b.FieldAddr(arrVal, 0)
		arrData = g.b.Load(ir.Type{Kind: ir.KPtr}, dataAddr)
		lenAddr := g.b.FieldAddr(arrVal, 1)
		limit = g.b.Load(ir.Type{Kind: ir.KI64}, lenAddr)
		g.b.Store(idxAddr, g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0))
	}

	condL, bodyL, endL := g.newLabel("forin_cond"), g.newLabel("forin_body"), g.newLabel("forin_end")
	g.b.Br(condL)

	condBlk := g.fn.NewBlock(condL)
	g.b.SetBlock(condBlk)
	idx := g.b.Load(ir.Type{Kind: ir.KI64}, idxAddr)
	cond := g.b.SLt(idx, limit)
	g.b.CondBr(cond, bodyL, endL)

	bodyBlk := g.fn.NewBlock(bodyL)
	g.b.SetBlock(bodyBlk)
	parent := g.scope
	g.scope = newVarScope(parent)
	idx2 := g.b.Load(ir.Type{Kind: ir.KI64}, idxAddr)
	var elemVal ir.Value
	if isRange {
		elemVal = idx2
	} else {
		g.b.CallExtern(ir.Type{Kind: ir.KVoid}, "array_bounds_check", idx2, limit)
		eAddr := g.b.IndexAddr(g.irType(elemType), arrData, idx2)
		elemVal = g.b.Load(g.irType(elemType), eAddr)
	}
	varAddr := g.b.Alloca(g.irType(elemType))
	g.b.Store(varAddr, elemVal)
	g.scope.define(st.Var, cell{addr: varAddr, typ: elemType})

	g.breakLbl = append(g.breakLbl, endL)
	g.contLbl = append(g.contLbl, condL)
	for _, s := range st.Body.Stmts {
		if g.b.Block().Terminator() != nil {
			break
		}
		g.genStmt(s)
	}
	g.breakLbl = g.breakLbl[:len(g.breakLbl)-1]
	g.contLbl = g.contLbl[:len(g.contLbl)-1]
	g.scope = parent

	if g.b.Block().Terminator() == nil {
		idx3 := g.b.Load(ir.Type{Kind: ir.KI64}, idxAddr)
		one := g.b.ConstI64(ir.Type{Kind: ir.KI64}, 1)
		next := g.b.Add(ir.Type{Kind: ir.KI64}, idx3, one)
		g.b.Store(idxAddr, next)
		g.b.Br(condL)
	}

	endBlk := g.fn.NewBlock(endL)
	g.b.SetBlock(endBlk)
}

// genTry lowers a try/catch/finally using the runtime's setjmp-style
// exception ABI: try_begin fetches the current
// try-stack depth, get_jmpbuf fetches that frame's jump buffer, and
// setjmp saves it — a zero result falls through into the try body, a
// non-zero result means a `throw` further down the call stack just
// longjmp'd back here, so control goes straight to the catch block
// without ever running the try body again. Only the first catch clause
// is distinguished — the ABI communicates a thrown message string, not a
// typed exception value, so multiple catch types cannot be told apart
// at this level (recorded in DESIGN.md).
func (g *gen) genTry(st *ast.Try) {
	tryID := g.b.CallExtern(ir.Type{Kind: ir.KI64}, "try_begin")
	jmpbuf := g.b.CallExtern(ir.Type{Kind: ir.KPtr}, "get_jmpbuf", tryID)
	setjmpRes := g.b.CallExtern(ir.Type{Kind: ir.KI64}, "setjmp", jmpbuf)
	zero := g.b.ConstI64(ir.Type{Kind: ir.KI64}, 0)
	normalEntry := g.b.Eq(setjmpRes, zero)

	tryL, catchL, afterL := g.newLabel("try_body"), g.newLabel("catch"), g.newLabel("try_after")
	g.b.CondBr(normalEntry, tryL, catchL)

	tryBlk := g.fn.NewBlock(tryL)
	g.b.SetBlock(tryBlk)
	g.genBlock(st.Body)
	if g.b.Block().Terminator() == nil {
		g.b.CallExtern(ir.Type{Kind: ir.KVoid}, "try_end")
		g.b.Br(afterL)
	}

	catchBlk := g.fn.NewBlock(catchL)
	g.b.SetBlock(catchBlk)
	excPtr := g.b.CallExtern(ir.Type{Kind: ir.KPtr}, "get_exception")
	if len(st.Catches) > 0 {
		c := st.Catches[0]
		parent := g.scope
		g.scope = newVarScope(parent)
		addr := g.b.Alloca(ir.Type{Kind: ir.KPtr})
		g.b.Store(addr, excPtr)
		g.scope.define(c.Name, cell{addr: addr, typ: types.String})
		g.genBlock(c.Body)
		g.scope = parent
	}
	if g.b.Block().Terminator() == nil {
		g.b.Br(afterL)
	}

	afterBlk := g.fn.NewBlock(afterL)
	g.b.SetBlock(afterBlk)

	if st.Finally != nil {
		g.genBlock(st.Finally)
	}
}
