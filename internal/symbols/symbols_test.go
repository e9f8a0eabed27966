package symbols

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/chrispp/internal/source"
	"github.com/gmofishsauce/chrispp/internal/types"
)

func sp() source.Span {
	return source.Span{File: "t.chr", Line: 1, Column: 1}
}

func TestScopeDefineAndLookup(t *testing.T) {
	s := NewScope(nil)
	require.NoError(t, s.Define("x", types.Int, true, sp()))

	sym, ok := s.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, types.Int, sym.Type)
	assert.True(t, sym.Mutable)
}

func TestScopeDuplicateDefinitionIsError(t *testing.T) {
	s := NewScope(nil)
	require.NoError(t, s.Define("x", types.Int, true, sp()))
	err := s.Define("x", types.String, false, sp())
	assert.Error(t, err)
}

func TestScopeShadowingAcrossParentIsAllowed(t *testing.T) {
	outer := NewScope(nil)
	require.NoError(t, outer.Define("x", types.Int, true, sp()))

	inner := NewScope(outer)
	require.NoError(t, inner.Define("x", types.String, false, sp()))

	sym, ok := inner.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, types.String, sym.Type)

	outerSym, ok := outer.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, types.Int, outerSym.Type)
}

func TestScopeLookupWalksParentChain(t *testing.T) {
	outer := NewScope(nil)
	require.NoError(t, outer.Define("g", types.Bool, true, sp()))
	inner := NewScope(outer)

	_, ok := inner.LookupLocal("g")
	assert.False(t, ok, "LookupLocal must not see the parent's bindings")

	_, ok = inner.Lookup("g")
	assert.True(t, ok, "Lookup must walk to the parent")
}

func TestClassTableDefineAndLookup(t *testing.T) {
	ct := NewClassTable()
	h, err := ct.DefineClass(ClassInfo{Name: "Animal", Public: true, Parent: InvalidHandle})
	require.NoError(t, err)

	found, ok := ct.LookupClass("Animal")
	require.True(t, ok)
	assert.Equal(t, h, found)
}

func TestClassTableRejectsDuplicateNames(t *testing.T) {
	ct := NewClassTable()
	_, err := ct.DefineClass(ClassInfo{Name: "Animal"})
	require.NoError(t, err)
	_, err = ct.DefineClass(ClassInfo{Name: "Animal"})
	assert.Error(t, err)
}

func TestClassTableAncestorChainAndSubclass(t *testing.T) {
	ct := NewClassTable()
	animal, err := ct.DefineClass(ClassInfo{Name: "Animal", Parent: InvalidHandle})
	require.NoError(t, err)
	dog, err := ct.DefineClass(ClassInfo{Name: "Dog", Parent: animal})
	require.NoError(t, err)

	chain := ct.AncestorChain(dog)
	assert.Equal(t, []ClassHandle{dog, animal}, chain)
	assert.True(t, ct.IsSubclassOf(dog, animal))
	assert.False(t, ct.IsSubclassOf(animal, dog))
}

func TestClassTableResolveMemberWalksParentChain(t *testing.T) {
	ct := NewClassTable()
	animal, err := ct.DefineClass(ClassInfo{
		Name:   "Animal",
		Parent: InvalidHandle,
		Members: []Member{
			{Name: "name", Kind: KindField, Type: types.String},
		},
	})
	require.NoError(t, err)
	dog, err := ct.DefineClass(ClassInfo{
		Name:   "Dog",
		Parent: animal,
		Members: []Member{
			{Name: "bark", Kind: KindMethod, Type: types.Function(nil, types.Void)},
		},
	})
	require.NoError(t, err)

	m, owner, ok := ct.ResolveMember(dog, "name")
	require.True(t, ok)
	assert.Equal(t, animal, owner)
	assert.Equal(t, types.String, m.Type)

	_, _, ok = ct.ResolveMember(dog, "nonexistent")
	assert.False(t, ok)
}

func TestInstantiateMemoizesByMangledName(t *testing.T) {
	ct := NewClassTable()
	name := MangleGenericName("Box", []*types.Type{types.Int})
	a := ct.Instantiate("Box", name, []string{"T"}, []*types.Type{types.Int})
	b := ct.Instantiate("Box", name, []string{"T"}, []*types.Type{types.Int})
	assert.Same(t, a, b, "requesting the same concrete instantiation twice must return the same record")

	insts := ct.Instantiations()
	require.Len(t, insts, 1)
}

func TestInstantiateDistinctArgsProduceDistinctRecords(t *testing.T) {
	ct := NewClassTable()
	intName := MangleGenericName("Box", []*types.Type{types.Int})
	strName := MangleGenericName("Box", []*types.Type{types.String})
	ct.Instantiate("Box", intName, []string{"T"}, []*types.Type{types.Int})
	ct.Instantiate("Box", strName, []string{"T"}, []*types.Type{types.String})

	insts := ct.Instantiations()
	require.Len(t, insts, 2)

	names := []string{insts[0].MangledName, insts[1].MangledName}
	sort.Strings(names)
	assert.Equal(t, []string{"Box$Int", "Box$String"}, names)
}

func TestIsTemplateReportsGenericClasses(t *testing.T) {
	ct := NewClassTable()
	_, err := ct.DefineClass(ClassInfo{Name: "Box", TypeParams: []string{"T"}})
	require.NoError(t, err)
	_, err = ct.DefineClass(ClassInfo{Name: "Plain"})
	require.NoError(t, err)

	assert.True(t, ct.IsTemplate("Box"))
	assert.False(t, ct.IsTemplate("Plain"))
}
