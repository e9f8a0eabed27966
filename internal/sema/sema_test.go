package sema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/chrispp/internal/ast"
	"github.com/gmofishsauce/chrispp/internal/diag"
	"github.com/gmofishsauce/chrispp/internal/source"
)

func nospan() source.Span { return source.Span{} }

func ty(name string, args ...*ast.TypeExpr) *ast.TypeExpr {
	return &ast.TypeExpr{Name: name, Args: args}
}

func TestDuplicateClassNameReportsE3001(t *testing.T) {
	prog := &ast.Program{Decls: []ast.Stmt{
		ast.NewClassDecl(nospan(), "Foo", true, false, nil, "", nil, nil, nil),
		ast.NewClassDecl(nospan(), "Foo", true, false, nil, "", nil, nil, nil),
	}}
	diags := diag.New()
	Analyze(prog, diags)
	assert.Contains(t, diags.Codes(), diag.ESemDuplicate)
}

func TestSharedClassReportsE3030(t *testing.T) {
	prog := &ast.Program{Decls: []ast.Stmt{
		ast.NewClassDecl(nospan(), "Counter", true, true, nil, "", nil, nil, nil),
	}}
	diags := diag.New()
	Analyze(prog, diags)
	assert.Contains(t, diags.Codes(), diag.ESemSharedUnsupport)
}

func TestUnknownFieldTypeReportsE3002(t *testing.T) {
	fields := []ast.Field{{Name: "x", TypeAnnot: ty("Bogus")}}
	prog := &ast.Program{Decls: []ast.Stmt{
		ast.NewClassDecl(nospan(), "Foo", true, false, nil, "", nil, fields, nil),
	}}
	diags := diag.New()
	Analyze(prog, diags)
	assert.Contains(t, diags.Codes(), diag.ESemUnknownType)
}

func TestVarDeclTypeMismatchReportsE3007(t *testing.T) {
	body := ast.NewBlock(nospan(), []ast.Stmt{
		ast.NewVarDecl(nospan(), "a", true, ty("Int"), ast.NewStringLit(nospan(), "hi")),
	})
	fn := ast.NewFuncDecl(nospan(), "f", ast.AccessPublic, false, nil, nil, body)
	prog := &ast.Program{Decls: []ast.Stmt{fn}}
	diags := diag.New()
	Analyze(prog, diags)
	assert.Contains(t, diags.Codes(), diag.ESemTypeMismatch)
}

func TestUndefinedNameReportsE3005(t *testing.T) {
	body := ast.NewBlock(nospan(), []ast.Stmt{
		ast.NewExprStmt(nospan(), ast.NewIdent(nospan(), "nope")),
	})
	fn := ast.NewFuncDecl(nospan(), "f", ast.AccessPublic, false, nil, nil, body)
	prog := &ast.Program{Decls: []ast.Stmt{fn}}
	diags := diag.New()
	Analyze(prog, diags)
	assert.Contains(t, diags.Codes(), diag.ESemUnknownName)
}

func TestGenericConstructInstantiatesViaDeclaredTypeHint(t *testing.T) {
	fields := []ast.Field{{Name: "value", TypeAnnot: ty("T"), Access: ast.AccessPublic, Mutable: true}}
	boxClass := ast.NewClassDecl(nospan(), "Box", true, false, []string{"T"}, "", nil, fields, nil)

	construct := ast.NewConstruct(nospan(), "Box", []ast.FieldInit{
		{Name: "value", Value: ast.NewIntLit(nospan(), 42)},
	})
	body := ast.NewBlock(nospan(), []ast.Stmt{
		ast.NewVarDecl(nospan(), "b", true, ty("Box", ty("Int")), construct),
	})
	fn := ast.NewFuncDecl(nospan(), "main", ast.AccessPublic, false, nil, nil, body)

	prog := &ast.Program{Decls: []ast.Stmt{boxClass, fn}}
	diags := diag.New()
	result := Analyze(prog, diags)

	assert.False(t, diags.HasErrors(), diags.Format())
	insts := result.Classes.Instantiations()
	require.Len(t, insts, 1)
	assert.Equal(t, "Box$Int", insts[0].MangledName)
}

func TestEnumMatchNonExhaustiveReportsE3023(t *testing.T) {
	variants := []ast.EnumVariant{{Name: "Red"}, {Name: "Green"}, {Name: "Blue"}}
	enumDecl := ast.NewEnumDecl(nospan(), "Color", true, variants)

	match := ast.NewMatch(nospan(), ast.NewIdent(nospan(), "c"), []ast.MatchArm{
		{Pattern: "Red", Result: ast.NewIntLit(nospan(), 1)},
		{Pattern: "Green", Result: ast.NewIntLit(nospan(), 2)},
	})
	body := ast.NewBlock(nospan(), []ast.Stmt{
		ast.NewVarDecl(nospan(), "c", true, ty("Color"), nil),
		ast.NewExprStmt(nospan(), match),
	})
	fn := ast.NewFuncDecl(nospan(), "f", ast.AccessPublic, false, nil, nil, body)

	prog := &ast.Program{Decls: []ast.Stmt{enumDecl, fn}}
	diags := diag.New()
	Analyze(prog, diags)
	assert.Contains(t, diags.Codes(), diag.ESemNonExhaustive)
}

func TestTaggedEnumVariantTypesAsConstructor(t *testing.T) {
	variants := []ast.EnumVariant{
		{Name: "Some", AssociatedType: ty("Int")},
		{Name: "None"},
	}
	enumDecl := ast.NewEnumDecl(nospan(), "Maybe", true, variants)

	call := ast.NewCall(nospan(),
		ast.NewMemberAccess(nospan(), ast.NewIdent(nospan(), "Maybe"), "Some"),
		[]ast.Expr{ast.NewIntLit(nospan(), 42)})
	body := ast.NewBlock(nospan(), []ast.Stmt{
		ast.NewVarDecl(nospan(), "m", true, nil, call),
	})
	fn := ast.NewFuncDecl(nospan(), "f", ast.AccessPublic, false, nil, nil, body)

	prog := &ast.Program{Decls: []ast.Stmt{enumDecl, fn}}
	diags := diag.New()
	Analyze(prog, diags)
	assert.False(t, diags.HasErrors(), diags.Format())
	assert.Equal(t, "Maybe", call.Type().Name)
}

func TestTopLevelVarVisibleInFunctionBodies(t *testing.T) {
	global := ast.NewVarDecl(nospan(), "limit", false, ty("Int"), ast.NewIntLit(nospan(), 10))
	body := ast.NewBlock(nospan(), []ast.Stmt{
		ast.NewReturn(nospan(), ast.NewIdent(nospan(), "limit")),
	})
	fn := ast.NewFuncDecl(nospan(), "f", ast.AccessPublic, false, nil, ty("Int"), body)

	prog := &ast.Program{Decls: []ast.Stmt{fn, global}}
	diags := diag.New()
	Analyze(prog, diags)
	assert.False(t, diags.HasErrors(), diags.Format())
}

func TestMissingIfaceImplReportsE3011(t *testing.T) {
	iface := ast.NewInterfaceDecl(nospan(), "Greeter", true, []ast.InterfaceMethod{
		{Name: "greet", ReturnType: ty("String")},
	})
	class := ast.NewClassDecl(nospan(), "Dog", true, false, nil, "", []string{"Greeter"}, nil, nil)
	prog := &ast.Program{Decls: []ast.Stmt{iface, class}}
	diags := diag.New()
	Analyze(prog, diags)
	assert.Contains(t, diags.Codes(), diag.ESemMissingIfaceImpl)
}

func TestAssignToImmutableReportsE3010(t *testing.T) {
	body := ast.NewBlock(nospan(), []ast.Stmt{
		ast.NewVarDecl(nospan(), "a", false, ty("Int"), ast.NewIntLit(nospan(), 1)),
		ast.NewExprStmt(nospan(), ast.NewAssign(nospan(), ast.NewIdent(nospan(), "a"), ast.NewIntLit(nospan(), 2))),
	})
	fn := ast.NewFuncDecl(nospan(), "f", ast.AccessPublic, false, nil, nil, body)
	prog := &ast.Program{Decls: []ast.Stmt{fn}}
	diags := diag.New()
	Analyze(prog, diags)
	assert.Contains(t, diags.Codes(), diag.ESemImmutableAssign)
}

func TestForInOverNonIterableReportsE3032(t *testing.T) {
	body := ast.NewBlock(nospan(), []ast.Stmt{
		ast.NewVarDecl(nospan(), "n", true, ty("Int"), ast.NewIntLit(nospan(), 1)),
		ast.NewForIn(nospan(), "x", ast.NewIdent(nospan(), "n"), ast.NewBlock(nospan(), nil)),
	})
	fn := ast.NewFuncDecl(nospan(), "f", ast.AccessPublic, false, nil, nil, body)
	prog := &ast.Program{Decls: []ast.Stmt{fn}}
	diags := diag.New()
	Analyze(prog, diags)
	assert.Contains(t, diags.Codes(), diag.ESemBadIterable)
}

func TestWellTypedProgramHasNoDiagnostics(t *testing.T) {
	body := ast.NewBlock(nospan(), []ast.Stmt{
		ast.NewVarDecl(nospan(), "total", true, nil, ast.NewIntLit(nospan(), 0)),
		ast.NewForIn(nospan(), "i", ast.NewRange(nospan(), ast.NewIntLit(nospan(), 0), ast.NewIntLit(nospan(), 10)),
			ast.NewBlock(nospan(), []ast.Stmt{
				ast.NewExprStmt(nospan(), ast.NewAssign(nospan(), ast.NewIdent(nospan(), "total"),
					ast.NewBinOp(nospan(), "+", ast.NewIdent(nospan(), "total"), ast.NewIdent(nospan(), "i")))),
			})),
		ast.NewReturn(nospan(), ast.NewIdent(nospan(), "total")),
	})
	fn := ast.NewFuncDecl(nospan(), "sumRange", ast.AccessPublic, false, nil, ty("Int"), body)
	prog := &ast.Program{Decls: []ast.Stmt{fn}}
	diags := diag.New()
	Analyze(prog, diags)
	assert.False(t, diags.HasErrors(), diags.Format())
}
