// Package types implements the chrispp type system: primitive
// singletons, a nullable wrapper, and the composite type constructors
// (function, array, future, map, set, class, interface, enum, type
// parameter).
//
// A single Kind enum plus *Type struct carries kind-specific fields for
// every shape. Primitive types are predefined singleton vars compared
// by pointer identity. Composite types are memoized in an acyclic DAG
// cache keyed by their constituent arguments, so two requests for the
// same composite (e.g. Array(Int) twice) return the identical pointer.
package types

import (
	"fmt"
	"strings"
)

// Kind identifies the variety of a Type.
type Kind int

const (
	KPrimitive Kind = iota
	KNullable
	KFunction
	KArray
	KFuture
	KMap
	KSet
	KClass
	KInterface
	KEnum
	KTypeParam
	KUnknown
)

// Primitive distinguishes the primitive singleton types.
type Primitive int

const (
	PInt Primitive = iota
	PI8
	PI16
	PI32
	PU8
	PU16
	PU32
	PFloat64
	PFloat32
	PBool
	PChar
	PString
	PVoid
	PNil
)

var primitiveNames = map[Primitive]string{
	PInt: "Int", PI8: "I8", PI16: "I16", PI32: "I32",
	PU8: "U8", PU16: "U16", PU32: "U32",
	PFloat64: "Float64", PFloat32: "Float32",
	PBool: "Bool", PChar: "Char", PString: "String",
	PVoid: "Void", PNil: "Nil",
}

// Type is the single representation for every kind of chrispp type.
// Only the fields relevant to Kind are populated; primitives and Unknown
// are singletons compared by pointer identity.
type Type struct {
	Kind Kind

	Primitive Primitive // KPrimitive

	Elem *Type // KNullable, KArray, KFuture, KSet (element type)

	Params []*Type // KFunction (parameter types)
	Result *Type   // KFunction (return type)

	Key   *Type // KMap
	Value *Type // KMap

	Name string // KClass, KInterface, KEnum, KTypeParam
	Args []*Type // generic type arguments, for instantiated KClass/KInterface
}

// Primitive singletons. Compared by identity — two callers that ask for
// Int always get the same *Type.
var (
	Int     = &Type{Kind: KPrimitive, Primitive: PInt}
	I8      = &Type{Kind: KPrimitive, Primitive: PI8}
	I16     = &Type{Kind: KPrimitive, Primitive: PI16}
	I32     = &Type{Kind: KPrimitive, Primitive: PI32}
	U8      = &Type{Kind: KPrimitive, Primitive: PU8}
	U16     = &Type{Kind: KPrimitive, Primitive: PU16}
	U32     = &Type{Kind: KPrimitive, Primitive: PU32}
	Float64 = &Type{Kind: KPrimitive, Primitive: PFloat64}
	Float32 = &Type{Kind: KPrimitive, Primitive: PFloat32}
	Bool    = &Type{Kind: KPrimitive, Primitive: PBool}
	Char    = &Type{Kind: KPrimitive, Primitive: PChar}
	String  = &Type{Kind: KPrimitive, Primitive: PString}
	Void    = &Type{Kind: KPrimitive, Primitive: PVoid}
	Nil     = &Type{Kind: KPrimitive, Primitive: PNil}

	// Unknown is the wildcard that trivially satisfies assignability,
	// used only during inference and for the untyped print builtin.
	Unknown = &Type{Kind: KUnknown}
)

var signedInts = map[Primitive]bool{PI8: true, PI16: true, PI32: true}
var unsignedInts = map[Primitive]bool{PU8: true, PU16: true, PU32: true}

// IsInteger reports whether t is Int or one of the fixed-width signed or
// unsigned integer primitives.
func (t *Type) IsInteger() bool {
	if t == nil || t.Kind != KPrimitive {
		return false
	}
	return t.Primitive == PInt || signedInts[t.Primitive] || unsignedInts[t.Primitive]
}

// IsSignedInteger reports whether t is a fixed-width signed integer.
func (t *Type) IsSignedInteger() bool {
	return t != nil && t.Kind == KPrimitive && signedInts[t.Primitive]
}

// IsUnsignedInteger reports whether t is a fixed-width unsigned integer.
func (t *Type) IsUnsignedInteger() bool {
	return t != nil && t.Kind == KPrimitive && unsignedInts[t.Primitive]
}

// IsFloat reports whether t is Float64 or Float32.
func (t *Type) IsFloat() bool {
	return t != nil && t.Kind == KPrimitive && (t.Primitive == PFloat64 || t.Primitive == PFloat32)
}

// IsNumeric reports whether t is any integer or float primitive.
func (t *Type) IsNumeric() bool {
	return t.IsInteger() || t.IsFloat()
}

// dagCache memoizes composite type constructors so that two requests for
// the same composite (e.g. Array<Int> built twice) return the identical
// *Type rather than allocating a fresh node per call site, keeping the
// type graph an acyclic DAG addressable by structural key.
var dagCache = map[string]*Type{}

func cacheKey(parts ...string) string {
	return strings.Join(parts, "\x00")
}

// Nullable returns (and caches) the nullable wrapper T? for elem.
func Nullable(elem *Type) *Type {
	key := cacheKey("?", elem.key())
	if t, ok := dagCache[key]; ok {
		return t
	}
	t := &Type{Kind: KNullable, Elem: elem}
	dagCache[key] = t
	return t
}

// Array returns (and caches) Array<elem>.
func Array(elem *Type) *Type {
	key := cacheKey("[]", elem.key())
	if t, ok := dagCache[key]; ok {
		return t
	}
	t := &Type{Kind: KArray, Elem: elem}
	dagCache[key] = t
	return t
}

// Future returns (and caches) Future<elem>, the type an async function's
// declared return type is wrapped in for callers.
func Future(elem *Type) *Type {
	key := cacheKey("future", elem.key())
	if t, ok := dagCache[key]; ok {
		return t
	}
	t := &Type{Kind: KFuture, Elem: elem}
	dagCache[key] = t
	return t
}

// Map returns (and caches) Map<key, value>.
func Map(key, value *Type) *Type {
	k := cacheKey("map", key.key(), value.key())
	if t, ok := dagCache[k]; ok {
		return t
	}
	t := &Type{Kind: KMap, Key: key, Value: value}
	dagCache[k] = t
	return t
}

// Set returns (and caches) Set<elem>.
func Set(elem *Type) *Type {
	key := cacheKey("set", elem.key())
	if t, ok := dagCache[key]; ok {
		return t
	}
	t := &Type{Kind: KSet, Elem: elem}
	dagCache[key] = t
	return t
}

// Function returns (and caches) the function type (params) -> result.
func Function(params []*Type, result *Type) *Type {
	parts := []string{"func", result.key()}
	for _, p := range params {
		parts = append(parts, p.key())
	}
	key := cacheKey(parts...)
	if t, ok := dagCache[key]; ok {
		return t
	}
	t := &Type{Kind: KFunction, Params: params, Result: result}
	dagCache[key] = t
	return t
}

// Class returns (and caches) a reference to class name, with optional
// concrete generic arguments (empty for a non-generic class).
func Class(name string, args ...*Type) *Type {
	return namedRef(KClass, name, args)
}

// Interface returns (and caches) a reference to interface name.
func Interface(name string, args ...*Type) *Type {
	return namedRef(KInterface, name, args)
}

// Enum returns (and caches) a reference to enum name.
func Enum(name string) *Type {
	return namedRef(KEnum, name, nil)
}

// TypeParam returns (and caches) a reference to generic type parameter
// name, used inside a generic class/function body before instantiation.
func TypeParam(name string) *Type {
	return namedRef(KTypeParam, name, nil)
}

func namedRef(kind Kind, name string, args []*Type) *Type {
	parts := []string{kindTag(kind), name}
	for _, a := range args {
		parts = append(parts, a.key())
	}
	key := cacheKey(parts...)
	if t, ok := dagCache[key]; ok {
		return t
	}
	t := &Type{Kind: kind, Name: name, Args: args}
	dagCache[key] = t
	return t
}

func kindTag(k Kind) string {
	switch k {
	case KClass:
		return "class"
	case KInterface:
		return "iface"
	case KEnum:
		return "enum"
	case KTypeParam:
		return "tparam"
	default:
		return "?"
	}
}

// key returns a stable string identity for t, used to memoize composite
// constructors. Primitives and Unknown key on their pointer-stable name.
func (t *Type) key() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KPrimitive:
		return "prim:" + primitiveNames[t.Primitive]
	case KUnknown:
		return "unknown"
	case KNullable:
		return "?" + t.Elem.key()
	case KArray:
		return "[]" + t.Elem.key()
	case KFuture:
		return "future<" + t.Elem.key() + ">"
	case KMap:
		return "map<" + t.Key.key() + "," + t.Value.key() + ">"
	case KSet:
		return "set<" + t.Elem.key() + ">"
	case KFunction:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.key()
		}
		return "func(" + strings.Join(parts, ",") + ")->" + t.Result.key()
	case KClass, KInterface, KEnum, KTypeParam:
		if len(t.Args) == 0 {
			return kindTag(t.Kind) + ":" + t.Name
		}
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = a.key()
		}
		return kindTag(t.Kind) + ":" + t.Name + "<" + strings.Join(parts, ",") + ">"
	default:
		return "?"
	}
}

// Equal reports whether two types are structurally identical. Primitive
// and Unknown comparisons reduce to pointer identity since they are
// singletons; composites compare by their cache key, which is
// structural.
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.key() == other.key()
}

// String renders a human-readable type name, used in diagnostics.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KPrimitive:
		return primitiveNames[t.Primitive]
	case KUnknown:
		return "Unknown"
	case KNullable:
		return t.Elem.String() + "?"
	case KArray:
		return fmt.Sprintf("Array<%s>", t.Elem.String())
	case KFuture:
		return fmt.Sprintf("Future<%s>", t.Elem.String())
	case KMap:
		return fmt.Sprintf("Map<%s, %s>", t.Key.String(), t.Value.String())
	case KSet:
		return fmt.Sprintf("Set<%s>", t.Elem.String())
	case KFunction:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		return fmt.Sprintf("(%s) -> %s", strings.Join(parts, ", "), t.Result.String())
	case KClass, KInterface, KEnum, KTypeParam:
		if len(t.Args) == 0 {
			return t.Name
		}
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = a.String()
		}
		return fmt.Sprintf("%s<%s>", t.Name, strings.Join(parts, ", "))
	default:
		return "<invalid>"
	}
}

// Substitute returns a copy of t with every KTypeParam whose Name is a
// key of subst replaced by the mapped concrete type, recursing through
// every composite shape. Used both by the semantic analyzer (resolving
// a generic class's field/method types against a reference's concrete
// type arguments) and by codegen's monomorphization pass, which needs
// nothing more than this one substitution function to specialize a
// template's signatures and field layouts.
func Substitute(t *Type, subst map[string]*Type) *Type {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case KTypeParam:
		if repl, ok := subst[t.Name]; ok {
			return repl
		}
		return t
	case KNullable:
		return Nullable(Substitute(t.Elem, subst))
	case KArray:
		return Array(Substitute(t.Elem, subst))
	case KFuture:
		return Future(Substitute(t.Elem, subst))
	case KSet:
		return Set(Substitute(t.Elem, subst))
	case KMap:
		return Map(Substitute(t.Key, subst), Substitute(t.Value, subst))
	case KFunction:
		params := make([]*Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = Substitute(p, subst)
		}
		return Function(params, Substitute(t.Result, subst))
	case KClass, KInterface:
		if len(t.Args) == 0 {
			return t
		}
		args := make([]*Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = Substitute(a, subst)
		}
		return namedRef(t.Kind, t.Name, args)
	default:
		return t
	}
}

// IsNullable reports whether t is a KNullable wrapper.
func (t *Type) IsNullable() bool {
	return t != nil && t.Kind == KNullable
}

// Underlying returns the wrapped type for a nullable, or t itself
// otherwise — convenient for assignability checks that need to look
// past T? to T.
func (t *Type) Underlying() *Type {
	if t.IsNullable() {
		return t.Elem
	}
	return t
}
