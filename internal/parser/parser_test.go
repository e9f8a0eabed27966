package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/chrispp/internal/ast"
	"github.com/gmofishsauce/chrispp/internal/diag"
	"github.com/gmofishsauce/chrispp/internal/lexer"
	"github.com/gmofishsauce/chrispp/internal/source"
)

func parse(t *testing.T, src string) (*ast.Program, *diag.Engine) {
	t.Helper()
	f := source.New("t.chr", src)
	diags := diag.New()
	toks := lexer.Tokenize(f, diags)
	p := New("t.chr", toks, diags)
	return p.ParseProgram(), diags
}

func TestParseFuncDeclWithParamsAndReturnType(t *testing.T) {
	prog, diags := parse(t, `func add(a: Int, b: Int) -> Int { return a + b; }`)
	require.False(t, diags.HasErrors())
	require.Len(t, prog.Decls, 1)

	fn, ok := prog.Decls[0].(*ast.FuncDecl)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "a", fn.Params[0].Name)
	assert.Equal(t, "Int", fn.ReturnType.Name)
	require.Len(t, fn.Body.Stmts, 1)

	ret, ok := fn.Body.Stmts[0].(*ast.Return)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestParseClassDeclWithFieldsAndMethods(t *testing.T) {
	src := `
class Point : Shape {
	var x: Int;
	let y: Int;
	func length() -> Int {
		return x + y;
	}
}`
	prog, diags := parse(t, src)
	require.False(t, diags.HasErrors())
	require.Len(t, prog.Decls, 1)

	cd, ok := prog.Decls[0].(*ast.ClassDecl)
	require.True(t, ok)
	assert.Equal(t, "Point", cd.Name)
	assert.Equal(t, "Shape", cd.BaseClass)
	require.Len(t, cd.Fields, 2)
	assert.Equal(t, "x", cd.Fields[0].Name)
	assert.True(t, cd.Fields[0].Mutable)
	assert.False(t, cd.Fields[1].Mutable)
	require.Len(t, cd.Methods, 1)
	assert.Equal(t, "length", cd.Methods[0].Name)
}

func TestSharedClassDeclParsesSharedFlag(t *testing.T) {
	prog, diags := parse(t, `shared class Counter { var n: Int; }`)
	require.False(t, diags.HasErrors())
	require.Len(t, prog.Decls, 1)

	cd, ok := prog.Decls[0].(*ast.ClassDecl)
	require.True(t, ok)
	assert.Equal(t, "Counter", cd.Name)
	assert.True(t, cd.Shared)
}

func TestExpressionPrecedenceClimbsCorrectly(t *testing.T) {
	prog, diags := parse(t, `func f() { return 1 + 2 * 3; }`)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.Return)

	top, ok := ret.Value.(*ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, "+", top.Op)
	_, leftIsInt := top.Left.(*ast.IntLit)
	assert.True(t, leftIsInt)

	right, ok := top.Right.(*ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, "*", right.Op)
}

func TestRangeBindsLooserThanNilCoalesce(t *testing.T) {
	prog, diags := parse(t, `func f() { return 0 ?? 1 .. 10; }`)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.Return)

	rng, ok := ret.Value.(*ast.Range)
	require.True(t, ok)
	_, startIsNilCoalesce := rng.Start.(*ast.NilCoalesce)
	assert.True(t, startIsNilCoalesce)
}

func TestCompoundAssignmentDesugarsToBinOp(t *testing.T) {
	prog, diags := parse(t, `func f() { x += 1; }`)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	es := fn.Body.Stmts[0].(*ast.ExprStmt)

	assign, ok := es.X.(*ast.Assign)
	require.True(t, ok)
	bin, ok := assign.Value.(*ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestLambdaVsGroupedExpressionDisambiguation(t *testing.T) {
	prog, diags := parse(t, `func f() { return (x) => x + 1; }`)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.Return)
	lam, ok := ret.Value.(*ast.Lambda)
	require.True(t, ok)
	require.Len(t, lam.Params, 1)
	assert.Equal(t, "x", lam.Params[0].Name)
	assert.NotNil(t, lam.Body)
}

func TestGroupedExpressionWithoutArrowStaysGrouped(t *testing.T) {
	prog, diags := parse(t, `func f() { return (1 + 2) * 3; }`)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.Return)
	bin, ok := ret.Value.(*ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, "*", bin.Op)
	_, leftIsBinOp := bin.Left.(*ast.BinOp)
	assert.True(t, leftIsBinOp)
}

func TestConstructExpressionParsesFieldInits(t *testing.T) {
	prog, diags := parse(t, `func f() { return Point { x: 1, y: 2 }; }`)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.Return)
	cons, ok := ret.Value.(*ast.Construct)
	require.True(t, ok)
	assert.Equal(t, "Point", cons.ClassName)
	require.Len(t, cons.Fields, 2)
	assert.Equal(t, "x", cons.Fields[0].Name)
}

func TestStringInterpolationParsesEmbeddedExpression(t *testing.T) {
	prog, diags := parse(t, `func f() { return "total: ${a + b}"; }`)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.Return)
	si, ok := ret.Value.(*ast.StringInterp)
	require.True(t, ok)
	require.Len(t, si.Exprs, 1)
	require.Len(t, si.Parts, 2)
	_, ok = si.Exprs[0].(*ast.BinOp)
	assert.True(t, ok)
}

func TestMatchExpressionParsesArmsAndCatchAll(t *testing.T) {
	src := `func f() { return match result { Ok(v) => v, _ => 0 }; }`
	prog, diags := parse(t, src)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.Return)
	m, ok := ret.Value.(*ast.Match)
	require.True(t, ok)
	require.Len(t, m.Arms, 2)
	assert.Equal(t, "Ok", m.Arms[0].Pattern)
	assert.Equal(t, "v", m.Arms[0].Binding)
	assert.True(t, m.Arms[1].IsCatchAll)
}

func TestIfStatementWithElseIfChain(t *testing.T) {
	src := `func f() { if a { return 1; } else if b { return 2; } else { return 3; } }`
	prog, diags := parse(t, src)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	ifStmt, ok := fn.Body.Stmts[0].(*ast.If)
	require.True(t, ok)
	elseIf, ok := ifStmt.Else.(*ast.If)
	require.True(t, ok)
	_, elseIsBlock := elseIf.Else.(*ast.Block)
	assert.True(t, elseIsBlock)
}

func TestForInAndWhileStatements(t *testing.T) {
	src := `func f() {
		for x in xs { continue; }
		while true { break; }
	}`
	prog, diags := parse(t, src)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	require.Len(t, fn.Body.Stmts, 2)
	forIn, ok := fn.Body.Stmts[0].(*ast.ForIn)
	require.True(t, ok)
	assert.Equal(t, "x", forIn.Var)
	_, ok = fn.Body.Stmts[1].(*ast.While)
	assert.True(t, ok)
}

func TestTryCatchFinally(t *testing.T) {
	src := `func f() {
		try {
			throw e;
		} catch (err: Error) {
			return 0;
		} finally {
			x = 1;
		}
	}`
	prog, diags := parse(t, src)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	tr, ok := fn.Body.Stmts[0].(*ast.Try)
	require.True(t, ok)
	require.Len(t, tr.Catches, 1)
	assert.Equal(t, "err", tr.Catches[0].Name)
	assert.Equal(t, "Error", tr.Catches[0].Type.Name)
	assert.NotNil(t, tr.Finally)
}

func TestArrayLiteralAndIndex(t *testing.T) {
	src := `func f() { return [1, 2, 3][0]; }`
	prog, diags := parse(t, src)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.Return)
	idx, ok := ret.Value.(*ast.Index)
	require.True(t, ok)
	arr, ok := idx.Object.(*ast.ArrayLit)
	require.True(t, ok)
	assert.Len(t, arr.Elements, 3)
}

func TestOptionalChainAndForceUnwrap(t *testing.T) {
	prog, diags := parse(t, `func f() { return a?.b!; }`)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.Return)
	fu, ok := ret.Value.(*ast.ForceUnwrap)
	require.True(t, ok)
	oc, ok := fu.Value.(*ast.OptionalChain)
	require.True(t, ok)
	assert.Equal(t, "b", oc.Member)
}

func TestAsyncFuncAndAwaitExpression(t *testing.T) {
	prog, diags := parse(t, `async func f() -> Int { return await g(); }`)
	require.False(t, diags.HasErrors())
	fn := prog.Decls[0].(*ast.FuncDecl)
	assert.True(t, fn.Async)
	ret := fn.Body.Stmts[0].(*ast.Return)
	await, ok := ret.Value.(*ast.Await)
	require.True(t, ok)
	_, ok = await.Value.(*ast.Call)
	assert.True(t, ok)
}

func TestGenericClassDeclarationParsesTypeParams(t *testing.T) {
	src := `class Box<T> { var value: T; }`
	prog, diags := parse(t, src)
	require.False(t, diags.HasErrors())
	cd := prog.Decls[0].(*ast.ClassDecl)
	assert.Equal(t, []string{"T"}, cd.TypeParams)
}

func TestInterfaceAndEnumDecls(t *testing.T) {
	src := `
interface Shape {
	func area() -> Float64;
}
enum Color {
	Red, Green, Blue
}`
	prog, diags := parse(t, src)
	require.False(t, diags.HasErrors())
	require.Len(t, prog.Decls, 2)
	iface := prog.Decls[0].(*ast.InterfaceDecl)
	assert.Equal(t, "Shape", iface.Name)
	require.Len(t, iface.Methods, 1)

	enumDecl := prog.Decls[1].(*ast.EnumDecl)
	assert.Equal(t, "Color", enumDecl.Name)
	require.Len(t, enumDecl.Variants, 3)
}

func TestExternFuncDeclHasNoBody(t *testing.T) {
	prog, diags := parse(t, `extern func puts(s: String) -> Int;`)
	require.False(t, diags.HasErrors())
	ext, ok := prog.Decls[0].(*ast.ExternFuncDecl)
	require.True(t, ok)
	assert.Equal(t, "puts", ext.Name)
}

func TestTopLevelVarDeclWithAccessModifier(t *testing.T) {
	prog, diags := parse(t, `public var version: Int = 3;
let greeting = "hi";`)
	require.False(t, diags.HasErrors())
	require.Len(t, prog.Decls, 2)

	vd, ok := prog.Decls[0].(*ast.VarDecl)
	require.True(t, ok)
	assert.Equal(t, "version", vd.Name)
	assert.True(t, vd.Mutable)
	assert.Equal(t, ast.AccessPublic, vd.Access)

	ld, ok := prog.Decls[1].(*ast.VarDecl)
	require.True(t, ok)
	assert.False(t, ld.Mutable)
}

func TestUnexpectedTokenRecoversAtNextDeclaration(t *testing.T) {
	src := `
} garbage ;
func ok() -> Int { return 1; }`
	prog, diags := parse(t, src)
	assert.True(t, diags.HasErrors())
	require.Len(t, prog.Decls, 1)
	fn, ok := prog.Decls[0].(*ast.FuncDecl)
	require.True(t, ok)
	assert.Equal(t, "ok", fn.Name)
}
