// Package codegen lowers a successfully analyzed chrispp program
// (sema.Result) into the typed SSA module defined by internal/ir.
//
// abi.go carries the fixed runtime-ABI symbol table: name, parameter
// types, and return type for every runtime primitive the emitted IR
// calls. It is metadata only — the runtime library itself lives outside
// this repository — consumed when codegen builds
// `ir.Instr{Op: ir.OpCallExtern}` nodes. The names are a contract
// between the compiler and the runtime; changing one breaks linking.
package codegen

import "github.com/gmofishsauce/chrispp/internal/ir"

// abiFunc is one runtime-ABI entry: a name plus the signature codegen
// uses to declare it as an ir.ExternFunc and to verify call arity.
type abiFunc struct {
	name   string
	params []ir.Type
	result ir.Type
}

var (
	tI64  = ir.Type{Kind: ir.KI64}
	tI32  = ir.Type{Kind: ir.KI32}
	tI8   = ir.Type{Kind: ir.KI8}
	tF64  = ir.Type{Kind: ir.KF64}
	tBool = ir.Type{Kind: ir.KBool}
	tPtr  = ir.Type{Kind: ir.KPtr}
	tVoid = ir.Type{Kind: ir.KVoid}
)

// runtimeABI lists every external symbol an emitted module may call:
// string primitives, array primitives, exception primitives, and
// allocation primitives, in that order.
var runtimeABI = []abiFunc{
	{"print", []ir.Type{tPtr}, tVoid},
	{"strcat", []ir.Type{tPtr, tPtr}, tPtr},
	{"i64_to_string", []ir.Type{tI64}, tPtr},
	{"f64_to_string", []ir.Type{tF64}, tPtr},
	{"bool_to_string", []ir.Type{tBool}, tPtr},
	{"i8_to_string", []ir.Type{tI8}, tPtr},
	{"char_to_string", []ir.Type{tI32}, tPtr},

	{"string_contains", []ir.Type{tPtr, tPtr}, tBool},
	{"string_starts_with", []ir.Type{tPtr, tPtr}, tBool},
	{"string_ends_with", []ir.Type{tPtr, tPtr}, tBool},
	{"string_index_of", []ir.Type{tPtr, tPtr}, tI64},
	{"string_substring", []ir.Type{tPtr, tI64, tI64}, tPtr},
	{"string_replace", []ir.Type{tPtr, tPtr, tPtr}, tPtr},
	{"string_trim", []ir.Type{tPtr}, tPtr},
	{"string_to_upper", []ir.Type{tPtr}, tPtr},
	{"string_to_lower", []ir.Type{tPtr}, tPtr},
	{"string_char_at", []ir.Type{tPtr, tI64}, tI32},
	{"string_split", []ir.Type{tPtr, tPtr, tPtr}, tVoid},
	{"string_len", []ir.Type{tPtr}, tI64},
	{"string_to_int", []ir.Type{tPtr}, tI64},
	{"string_to_float", []ir.Type{tPtr}, tF64},

	{"array_alloc", []ir.Type{tI64, tI64}, tPtr},
	{"array_bounds_check", []ir.Type{tI64, tI64}, tVoid},
	{"array_push", []ir.Type{tPtr, tI64}, tVoid},
	{"array_pop", []ir.Type{tPtr}, tI64},
	{"array_reverse", []ir.Type{tPtr}, tVoid},
	{"array_join", []ir.Type{tPtr, tPtr}, tPtr},
	{"array_map", []ir.Type{tPtr, tPtr}, tPtr},
	{"array_filter", []ir.Type{tPtr, tPtr}, tPtr},
	{"array_foreach", []ir.Type{tPtr, tPtr}, tVoid},

	{"try_begin", nil, tI64},
	{"try_end", nil, tVoid},
	{"throw", []ir.Type{tPtr}, tVoid},
	{"get_exception", nil, tPtr},
	{"get_jmpbuf", []ir.Type{tI64}, tPtr},
	{"setjmp", []ir.Type{tPtr}, tI64},

	{"object_alloc", []ir.Type{tI64}, tPtr},
	{"object_alloc_gc", []ir.Type{tI64}, tPtr},
}

// registerABI declares every runtime-ABI symbol on m, once per module.
func registerABI(m *ir.Module) {
	for _, f := range runtimeABI {
		m.AddExtern(&ir.ExternFunc{Name: f.name, Params: f.params, Result: f.result})
	}
}
