package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/chrispp/internal/source"
	"github.com/gmofishsauce/chrispp/internal/types"
)

func sp() source.Span {
	return source.Span{File: "t.chr", Line: 1, Column: 1}
}

func TestExprNodesSatisfyExprInterface(t *testing.T) {
	var exprs []Expr
	exprs = append(exprs,
		NewIntLit(sp(), 1),
		NewFloatLit(sp(), 1.5),
		NewStringLit(sp(), "s"),
		NewCharLit(sp(), 'c'),
		NewBoolLit(sp(), true),
		NewNilLit(sp()),
		NewIdent(sp(), "x"),
		NewBinOp(sp(), "+", NewIntLit(sp(), 1), NewIntLit(sp(), 2)),
		NewUnaryOp(sp(), "-", NewIntLit(sp(), 1)),
		NewCall(sp(), NewIdent(sp(), "f"), nil),
		NewMemberAccess(sp(), NewIdent(sp(), "o"), "field"),
		NewThis(sp()),
		NewConstruct(sp(), "Point", nil),
		NewAssign(sp(), NewIdent(sp(), "x"), NewIntLit(sp(), 1)),
		NewRange(sp(), NewIntLit(sp(), 0), NewIntLit(sp(), 10)),
		NewLambda(sp(), nil, NewIntLit(sp(), 1), nil),
		NewNilCoalesce(sp(), NewIdent(sp(), "x"), NewIntLit(sp(), 0)),
		NewForceUnwrap(sp(), NewIdent(sp(), "x")),
		NewOptionalChain(sp(), NewIdent(sp(), "x"), "field"),
		NewArrayLit(sp(), nil),
		NewIndex(sp(), NewIdent(sp(), "a"), NewIntLit(sp(), 0)),
		NewIfExpr(sp(), NewBoolLit(sp(), true), NewIntLit(sp(), 1), NewIntLit(sp(), 2)),
		NewAwait(sp(), NewIdent(sp(), "f")),
		NewMatch(sp(), NewIdent(sp(), "x"), nil),
	)
	for _, e := range exprs {
		assert.Equal(t, sp(), e.Span())
		assert.Equal(t, types.Unknown, e.Type())
	}
}

func TestStmtNodesSatisfyStmtInterface(t *testing.T) {
	var stmts []Stmt
	stmts = append(stmts,
		NewBlock(sp(), nil),
		NewExprStmt(sp(), NewIntLit(sp(), 1)),
		NewVarDecl(sp(), "x", true, nil, NewIntLit(sp(), 1)),
		NewReturn(sp(), nil),
		NewIf(sp(), NewBoolLit(sp(), true), NewBlock(sp(), nil), nil),
		NewWhile(sp(), NewBoolLit(sp(), true), NewBlock(sp(), nil)),
		NewForIn(sp(), "x", NewIdent(sp(), "xs"), NewBlock(sp(), nil)),
		NewBreak(sp()),
		NewContinue(sp()),
		NewThrow(sp(), NewIdent(sp(), "e")),
		NewTry(sp(), NewBlock(sp(), nil), nil, nil),
		NewUnsafe(sp(), NewBlock(sp(), nil)),
		NewFuncDecl(sp(), "f", AccessPublic, false, nil, nil, NewBlock(sp(), nil)),
		NewExternFuncDecl(sp(), "puts", nil, nil),
		NewImport(sp(), "other"),
		NewClassDecl(sp(), "Point", true, false, nil, "", nil, nil, nil),
		NewInterfaceDecl(sp(), "Shape", true, nil),
		NewEnumDecl(sp(), "Color", true, nil),
	)
	for _, s := range stmts {
		assert.Equal(t, sp(), s.Span())
	}
}

func TestSetTypeMutatesInferredType(t *testing.T) {
	lit := NewIntLit(sp(), 42)
	require.Equal(t, types.Unknown, lit.Type())
	lit.SetType(types.Int)
	assert.Equal(t, types.Int, lit.Type())
}

func TestStringInterpPartsExprsInvariant(t *testing.T) {
	parts := []string{"a", "b", "c"}
	exprs := []Expr{NewIdent(sp(), "x"), NewIdent(sp(), "y")}
	si := NewStringInterp(sp(), parts, exprs)
	assert.Len(t, si.Parts, len(si.Exprs)+1)
}

func TestElseChainsAnotherIfStatement(t *testing.T) {
	inner := NewIf(sp(), NewBoolLit(sp(), false), NewBlock(sp(), nil), nil)
	outer := NewIf(sp(), NewBoolLit(sp(), true), NewBlock(sp(), nil), inner)
	elseIf, ok := outer.Else.(*If)
	require.True(t, ok)
	assert.Same(t, inner, elseIf)
}

func TestLambdaHasExpressionOrBlockBodyNotBoth(t *testing.T) {
	exprLambda := NewLambda(sp(), []Param{{Name: "x"}}, NewIdent(sp(), "x"), nil)
	assert.NotNil(t, exprLambda.Body)
	assert.Nil(t, exprLambda.BlockBody)

	blockLambda := NewLambda(sp(), []Param{{Name: "x"}}, nil, NewBlock(sp(), nil))
	assert.Nil(t, blockLambda.Body)
	assert.NotNil(t, blockLambda.BlockBody)
}
