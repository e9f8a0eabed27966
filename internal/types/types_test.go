package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrimitivesAreSingletons(t *testing.T) {
	assert.True(t, Int == Int)
	a := Array(Int)
	b := Array(Int)
	assert.True(t, a == b, "Array(Int) should be memoized to the same pointer")
}

func TestNullableWrapsUnderlying(t *testing.T) {
	n := Nullable(String)
	assert.True(t, n.IsNullable())
	assert.Equal(t, String, n.Underlying())
	assert.Equal(t, Int, Int.Underlying())
}

func TestEqualStructuralForComposites(t *testing.T) {
	m1 := Map(String, Int)
	m2 := Map(String, Int)
	assert.True(t, m1.Equal(m2))

	diff := Map(String, Float64)
	assert.False(t, m1.Equal(diff))
}

func TestEqualDistinguishesGenericArgs(t *testing.T) {
	boxInt := Class("Box", Int)
	boxStr := Class("Box", String)
	assert.False(t, boxInt.Equal(boxStr))
	assert.True(t, boxInt.Equal(Class("Box", Int)))
}

func TestStringRendersComposites(t *testing.T) {
	fn := Function([]*Type{Int, String}, Bool)
	assert.Equal(t, "(Int, String) -> Bool", fn.String())
	assert.Equal(t, "Array<Int>", Array(Int).String())
	assert.Equal(t, "Int?", Nullable(Int).String())
	assert.Equal(t, "Future<Int>", Future(Int).String())
}

func TestIntegerAndFloatClassification(t *testing.T) {
	assert.True(t, Int.IsInteger())
	assert.True(t, I8.IsSignedInteger())
	assert.True(t, U16.IsUnsignedInteger())
	assert.False(t, Int.IsUnsignedInteger())
	assert.True(t, Float32.IsFloat())
	assert.True(t, Float32.IsNumeric())
	assert.False(t, String.IsNumeric())
}

func TestUnknownIsDistinctFromEveryPrimitive(t *testing.T) {
	assert.False(t, Unknown.Equal(Int))
	assert.False(t, Int.Equal(Unknown))
}

func TestSubstituteReplacesTypeParamsThroughComposites(t *testing.T) {
	tparam := TypeParam("T")
	subst := map[string]*Type{"T": Int}

	assert.True(t, Substitute(tparam, subst).Equal(Int))
	assert.True(t, Substitute(Array(tparam), subst).Equal(Array(Int)))
	assert.True(t, Substitute(Nullable(tparam), subst).Equal(Nullable(Int)))
	assert.True(t, Substitute(Class("Box", tparam), subst).Equal(Class("Box", Int)))
	assert.True(t, Substitute(Function([]*Type{tparam}, tparam), subst).Equal(Function([]*Type{Int}, Int)))
}

func TestSubstituteLeavesUnrelatedTypeParamsAlone(t *testing.T) {
	u := TypeParam("U")
	subst := map[string]*Type{"T": Int}
	assert.True(t, Substitute(u, subst).Equal(u))
}
