// Package ir defines the typed SSA module the code generator lowers the
// chrispp AST into: a module/function/block/instruction/value data
// model, a Builder with one emission method per instruction shape, and
// a structural verifier. The real target backend and linker live
// outside this repository; this package is the concrete form codegen
// emits into and Verify checks.
//
// Values are small integer handles into a per-function arena rather
// than pointers, so blocks and instructions never need cyclic
// ownership.
package ir

import "fmt"

// TypeKind is the closed set of machine-level shapes the IR reasons
// about: signed/unsigned machine words of various widths, floats, a
// one-bit boolean, an opaque pointer, void, and references to a named
// Struct layout (classes, instantiated generics, tagged-enum payloads).
type TypeKind int

const (
	KI64 TypeKind = iota
	KI32
	KI16
	KI8
	KU32
	KU16
	KU8
	KF64
	KF32
	KBool
	KPtr
	KVoid
	KStruct
)

// Type is the IR-level type of a Value or a struct field. StructName is
// only meaningful when Kind == KStruct.
type Type struct {
	Kind       TypeKind
	StructName string
}

func (t Type) String() string {
	if t.Kind == KStruct {
		return "%" + t.StructName
	}
	names := map[TypeKind]string{
		KI64: "i64", KI32: "i32", KI16: "i16", KI8: "i8",
		KU32: "u32", KU16: "u16", KU8: "u8",
		KF64: "f64", KF32: "f32", KBool: "i1", KPtr: "ptr", KVoid: "void",
	}
	return names[t.Kind]
}

// StructRef converts a struct name into a KStruct Type.
func StructRef(name string) Type { return Type{Kind: KStruct, StructName: name} }

// Op is the closed set of SSA opcodes the code generator emits,
// spanning arithmetic, comparison, load/store, call, branch, phi, cast,
// and alloca.
type Op int

const (
	OpConst Op = iota
	OpAlloca
	OpLoad
	OpStore
	OpFieldAddr  // struct field address: operand0=base ptr, FieldIndex
	OpIndexAddr  // array element address: operand0=data ptr, operand1=index
	OpGlobalAddr // address of a module-level Global, named by GlobalName
	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSMod
	OpUMod
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpNeg
	OpFNeg
	OpNot
	OpAnd
	OpOr
	OpEq
	OpNe
	OpSLt
	OpSLe
	OpSGt
	OpSGe
	OpULt
	OpULe
	OpUGt
	OpUGe
	OpFLt
	OpFLe
	OpFGt
	OpFGe
	OpCall       // Callee = internal function name
	OpCallExtern // Callee = runtime ABI symbol
	OpSIToFP     // signed int -> float
	OpFPToSI     // float -> signed int
	OpIntTrunc   // narrow an integer
	OpIntSExt    // widen a signed integer
	OpIntZExt    // widen an unsigned integer
	OpFPCast     // float widen/narrow
	OpBitcast    // reinterpret payload bits (tagged-enum payload)
	OpPhi        // Operands hold one value per incoming predecessor label in Labels
	OpBr
	OpCondBr // Operands[0] = condition; Labels[0] = then, Labels[1] = else
	OpRet    // Operands[0] = return value, absent for void return
)

var opNames = map[Op]string{
	OpConst: "const", OpAlloca: "alloca", OpLoad: "load", OpStore: "store",
	OpFieldAddr: "field_addr", OpIndexAddr: "index_addr", OpGlobalAddr: "global_addr",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpSDiv: "sdiv", OpUDiv: "udiv",
	OpSMod: "smod", OpUMod: "umod",
	OpFAdd: "fadd", OpFSub: "fsub", OpFMul: "fmul", OpFDiv: "fdiv",
	OpNeg: "neg", OpFNeg: "fneg", OpNot: "not", OpAnd: "and", OpOr: "or",
	OpEq: "eq", OpNe: "ne",
	OpSLt: "slt", OpSLe: "sle", OpSGt: "sgt", OpSGe: "sge",
	OpULt: "ult", OpULe: "ule", OpUGt: "ugt", OpUGe: "uge",
	OpFLt: "flt", OpFLe: "fle", OpFGt: "fgt", OpFGe: "fge",
	OpCall: "call", OpCallExtern: "call_extern",
	OpSIToFP: "sitofp", OpFPToSI: "fptosi", OpIntTrunc: "itrunc",
	OpIntSExt: "isext", OpIntZExt: "izext", OpFPCast: "fpcast", OpBitcast: "bitcast",
	OpPhi: "phi", OpBr: "br", OpCondBr: "condbr", OpRet: "ret",
}

func (op Op) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return "?op"
}

// Value is an opaque handle to a function-local SSA value: either a
// function parameter, an instruction result, or (for OpConst results) an
// immediate. -1 (NoValue) marks the absence of a value, e.g. the
// operand list of a void OpRet.
type Value int

// NoValue marks the absence of an operand or result.
const NoValue Value = -1

// Const describes the immediate payload of an OpConst instruction.
// Exactly one of the fields is meaningful, selected by the const's Type.
type Const struct {
	I64  int64
	F64  float64
	Bool bool
	Str  string
}

// Instr is one SSA instruction: an opcode, a result type, a list of
// operand Values, and a result Value (NoValue for instructions with no
// result, e.g. OpStore/OpBr/OpRet).
type Instr struct {
	Op       Op
	Type     Type
	Operands []Value
	Result   Value

	FieldIndex int      // OpFieldAddr
	Callee     string   // OpCall / OpCallExtern
	GlobalName string   // OpGlobalAddr
	Labels     []string // OpBr (1), OpCondBr (2: then, else), OpPhi (one per operand)
	ConstVal   Const    // OpConst
	allocType  Type     // OpAlloca: the type of the cell (Type is always KPtr)
}

// AllocType returns the element type of an OpAlloca cell.
func (i *Instr) AllocType() Type { return i.allocType }

// Block is one basic block: a label, its ordered instruction list
// (including the terminator as the last entry).
type Block struct {
	Label  string
	Instrs []*Instr
}

// Terminator returns the block's terminating instruction (OpBr, OpCondBr
// or OpRet as its last entry), or nil when the block is empty or its last
// instruction is not a terminator, i.e. the block is still open.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !isTerminator(last.Op) {
		return nil
	}
	return last
}

func isTerminator(op Op) bool {
	return op == OpBr || op == OpCondBr || op == OpRet
}

// Param is one function parameter.
type Param struct {
	Name string
	Type Type
}

// Function is a declared or defined function: its signature plus,
// for a definition, its basic blocks. An ExternFunc has no Blocks.
type Function struct {
	Name    string
	Params  []Param
	Result  Type
	Blocks  []*Block
	nextVal int
}

// NewFunction creates an empty function with the given signature.
func NewFunction(name string, params []Param, result Type) *Function {
	f := &Function{Name: name, Params: params, Result: result}
	f.nextVal = len(params)
	return f
}

// Param returns the Value handle for the i'th parameter.
func (f *Function) Param(i int) Value { return Value(i) }

// NewBlock appends and returns a fresh block with label.
func (f *Function) NewBlock(label string) *Block {
	b := &Block{Label: label}
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Function) newValue() Value {
	v := Value(f.nextVal)
	f.nextVal++
	return v
}

// Field is one struct field: its name and type are tracked at the IR
// level, and its position in the field list is what codegen's field-index
// lookups (symbols.ResolveMember)
// translate directly into OpFieldAddr's FieldIndex.
type Field struct {
	Name string
	Type Type
}

// Struct is a named aggregate layout: a class, an instantiated generic
// class, or a tagged-enum's {tag, payload} pair.
type Struct struct {
	Name   string
	Fields []Field
}

// ExternFunc declares a runtime-ABI symbol the emitted module calls but
// does not define.
type ExternFunc struct {
	Name   string
	Params []Type
	Result Type
}

// Global is a module-level data declaration.
type Global struct {
	Name string
	Type Type
}

// Module is the top-level unit codegen emits into: struct layouts,
// globals, function definitions, and the runtime-ABI externs the
// functions call. BuildID stamps a UUIDv4 so diagnostics and log lines
// from different phases of the same compilation can be correlated.
type Module struct {
	Name      string
	BuildID   string
	Structs   []*Struct
	Globals   []*Global
	Functions []*Function
	Externs   []*ExternFunc

	structIndex map[string]int
	externIndex map[string]int
	funcIndex   map[string]int
}

// NewModule creates an empty module.
func NewModule(name, buildID string) *Module {
	return &Module{
		Name:        name,
		BuildID:     buildID,
		structIndex: make(map[string]int),
		externIndex: make(map[string]int),
		funcIndex:   make(map[string]int),
	}
}

// AddStruct registers a struct layout, keyed by name. Re-adding the same
// name replaces the earlier (placeholder) entry, matching codegen Pass 0
// registering a placeholder body that Pass 1.5 fills in.
func (m *Module) AddStruct(s *Struct) {
	if i, ok := m.structIndex[s.Name]; ok {
		m.Structs[i] = s
		return
	}
	m.structIndex[s.Name] = len(m.Structs)
	m.Structs = append(m.Structs, s)
}

// Struct looks up a previously added struct by name.
func (m *Module) Struct(name string) (*Struct, bool) {
	i, ok := m.structIndex[name]
	if !ok {
		return nil, false
	}
	return m.Structs[i], true
}

// AddExtern registers a runtime-ABI symbol, once per name.
func (m *Module) AddExtern(e *ExternFunc) {
	if _, ok := m.externIndex[e.Name]; ok {
		return
	}
	m.externIndex[e.Name] = len(m.Externs)
	m.Externs = append(m.Externs, e)
}

// Extern looks up a declared runtime-ABI symbol by name.
func (m *Module) Extern(name string) (*ExternFunc, bool) {
	i, ok := m.externIndex[name]
	if !ok {
		return nil, false
	}
	return m.Externs[i], true
}

// AddFunction registers a function definition or declaration.
func (m *Module) AddFunction(f *Function) {
	if i, ok := m.funcIndex[f.Name]; ok {
		m.Functions[i] = f
		return
	}
	m.funcIndex[f.Name] = len(m.Functions)
	m.Functions = append(m.Functions, f)
}

// Function looks up a registered function by name.
func (m *Module) Function(name string) (*Function, bool) {
	i, ok := m.funcIndex[name]
	if !ok {
		return nil, false
	}
	return m.Functions[i], true
}

// AddGlobal registers a module-level global.
func (m *Module) AddGlobal(g *Global) {
	m.Globals = append(m.Globals, g)
}

func (m *Module) hasGlobal(name string) bool {
	for _, g := range m.Globals {
		if g.Name == name {
			return true
		}
	}
	return false
}

// Builder emits instructions into one block of one function, allocating
// fresh result Values as it goes. Each instruction shape gets its own
// typed method rather than one generic Emit(op, operands...) call, so
// malformed operand lists are unrepresentable at the call site.
type Builder struct {
	fn    *Function
	block *Block
}

// NewBuilder creates a Builder that appends instructions to block,
// allocating fresh Values against fn's value arena.
func NewBuilder(fn *Function, block *Block) *Builder {
	return &Builder{fn: fn, block: block}
}

// SetBlock redirects subsequent emission to a different block of the
// same function (used when lowering branches to then/else/join blocks).
func (b *Builder) SetBlock(block *Block) { b.block = block }

// Block returns the block this Builder currently emits into.
func (b *Builder) Block() *Block { return b.block }

func (b *Builder) append(instr *Instr) Value {
	b.block.Instrs = append(b.block.Instrs, instr)
	return instr.Result
}

// ConstI64 emits an integer constant of the given width.
func (b *Builder) ConstI64(typ Type, v int64) Value {
	r := b.fn.newValue()
	return b.append(&Instr{Op: OpConst, Type: typ, Result: r, ConstVal: Const{I64: v}})
}

// ConstF64 emits a float constant.
func (b *Builder) ConstF64(typ Type, v float64) Value {
	r := b.fn.newValue()
	return b.append(&Instr{Op: OpConst, Type: typ, Result: r, ConstVal: Const{F64: v}})
}

// ConstBool emits a boolean constant.
func (b *Builder) ConstBool(v bool) Value {
	r := b.fn.newValue()
	return b.append(&Instr{Op: OpConst, Type: Type{Kind: KBool}, Result: r, ConstVal: Const{Bool: v}})
}

// ConstStr emits a string-literal constant (a ptr-typed value the
// runtime's string representation owns).
func (b *Builder) ConstStr(v string) Value {
	r := b.fn.newValue()
	return b.append(&Instr{Op: OpConst, Type: Type{Kind: KPtr}, Result: r, ConstVal: Const{Str: v}})
}

// Alloca reserves a stack cell for a value of typ, returning a ptr
// Value — every variable declaration gets one at function entry. The
// cell's element type is carried in a dedicated field so Load/Store
// callers can recover it without a side table.
func (b *Builder) Alloca(typ Type) Value {
	r := b.fn.newValue()
	return b.append(&Instr{Op: OpAlloca, Type: Type{Kind: KPtr}, Result: r, allocType: typ})
}

// binop is the shared constructor for every two-operand arithmetic,
// bitwise, or comparison instruction.
func (b *Builder) binop(op Op, typ Type, lhs, rhs Value) Value {
	r := b.fn.newValue()
	return b.append(&Instr{Op: op, Type: typ, Operands: []Value{lhs, rhs}, Result: r})
}

func (b *Builder) Add(typ Type, l, r Value) Value  { return b.binop(OpAdd, typ, l, r) }
func (b *Builder) Sub(typ Type, l, r Value) Value  { return b.binop(OpSub, typ, l, r) }
func (b *Builder) Mul(typ Type, l, r Value) Value  { return b.binop(OpMul, typ, l, r) }
func (b *Builder) SDiv(typ Type, l, r Value) Value { return b.binop(OpSDiv, typ, l, r) }
func (b *Builder) UDiv(typ Type, l, r Value) Value { return b.binop(OpUDiv, typ, l, r) }
func (b *Builder) SMod(typ Type, l, r Value) Value { return b.binop(OpSMod, typ, l, r) }
func (b *Builder) UMod(typ Type, l, r Value) Value { return b.binop(OpUMod, typ, l, r) }
func (b *Builder) FAdd(typ Type, l, r Value) Value { return b.binop(OpFAdd, typ, l, r) }
func (b *Builder) FSub(typ Type, l, r Value) Value { return b.binop(OpFSub, typ, l, r) }
func (b *Builder) FMul(typ Type, l, r Value) Value { return b.binop(OpFMul, typ, l, r) }
func (b *Builder) FDiv(typ Type, l, r Value) Value { return b.binop(OpFDiv, typ, l, r) }
func (b *Builder) And(typ Type, l, r Value) Value  { return b.binop(OpAnd, typ, l, r) }
func (b *Builder) Or(typ Type, l, r Value) Value   { return b.binop(OpOr, typ, l, r) }

func (b *Builder) cmp(op Op, l, r Value) Value {
	return b.binop(op, Type{Kind: KBool}, l, r)
}

func (b *Builder) Eq(l, r Value) Value  { return b.cmp(OpEq, l, r) }
func (b *Builder) Ne(l, r Value) Value  { return b.cmp(OpNe, l, r) }
func (b *Builder) SLt(l, r Value) Value { return b.cmp(OpSLt, l, r) }
func (b *Builder) SLe(l, r Value) Value { return b.cmp(OpSLe, l, r) }
func (b *Builder) SGt(l, r Value) Value { return b.cmp(OpSGt, l, r) }
func (b *Builder) SGe(l, r Value) Value { return b.cmp(OpSGe, l, r) }
func (b *Builder) ULt(l, r Value) Value { return b.cmp(OpULt, l, r) }
func (b *Builder) ULe(l, r Value) Value { return b.cmp(OpULe, l, r) }
func (b *Builder) UGt(l, r Value) Value { return b.cmp(OpUGt, l, r) }
func (b *Builder) UGe(l, r Value) Value { return b.cmp(OpUGe, l, r) }
func (b *Builder) FLt(l, r Value) Value { return b.cmp(OpFLt, l, r) }
func (b *Builder) FLe(l, r Value) Value { return b.cmp(OpFLe, l, r) }
func (b *Builder) FGt(l, r Value) Value { return b.cmp(OpFGt, l, r) }
func (b *Builder) FGe(l, r Value) Value { return b.cmp(OpFGe, l, r) }

func (b *Builder) unop(op Op, typ Type, v Value) Value {
	r := b.fn.newValue()
	return b.append(&Instr{Op: op, Type: typ, Operands: []Value{v}, Result: r})
}

func (b *Builder) Neg(typ Type, v Value) Value  { return b.unop(OpNeg, typ, v) }
func (b *Builder) FNeg(typ Type, v Value) Value { return b.unop(OpFNeg, typ, v) }
func (b *Builder) Not(v Value) Value            { return b.unop(OpNot, Type{Kind: KBool}, v) }

// Load reads typ from the address held in ptr.
func (b *Builder) Load(typ Type, ptr Value) Value {
	r := b.fn.newValue()
	return b.append(&Instr{Op: OpLoad, Type: typ, Operands: []Value{ptr}, Result: r})
}

// Store writes val to the address held in ptr. No result.
func (b *Builder) Store(ptr, val Value) {
	b.append(&Instr{Op: OpStore, Type: Type{Kind: KVoid}, Operands: []Value{ptr, val}, Result: NoValue})
}

// FieldAddr computes the address of field index idx within the struct
// pointed to by base, honoring inherited-field-first layout (the
// ClassTable.ResolveMember order codegen uses to pick idx).
func (b *Builder) FieldAddr(base Value, idx int) Value {
	r := b.fn.newValue()
	return b.append(&Instr{Op: OpFieldAddr, Type: Type{Kind: KPtr}, Operands: []Value{base}, Result: r, FieldIndex: idx})
}

// IndexAddr computes the address of element index within the array data
// pointer data. Callers emit the bounds-check call separately, before
// this instruction.
func (b *Builder) IndexAddr(elemType Type, data, index Value) Value {
	r := b.fn.newValue()
	return b.append(&Instr{Op: OpIndexAddr, Type: Type{Kind: KPtr}, Operands: []Value{data, index}, Result: r})
}

// GlobalAddr materializes the address of a module-level global so the
// surrounding code can Load/Store it like any local cell.
func (b *Builder) GlobalAddr(name string) Value {
	r := b.fn.newValue()
	return b.append(&Instr{Op: OpGlobalAddr, Type: Type{Kind: KPtr}, Result: r, GlobalName: name})
}

// Call emits a direct call to an internal function (another chrispp
// function or method).
func (b *Builder) Call(typ Type, callee string, args ...Value) Value {
	r := NoValue
	if typ.Kind != KVoid {
		r = b.fn.newValue()
	}
	return b.append(&Instr{Op: OpCall, Type: typ, Operands: args, Result: r, Callee: callee})
}

// CallExtern emits a call to a runtime-ABI symbol.
func (b *Builder) CallExtern(typ Type, callee string, args ...Value) Value {
	r := NoValue
	if typ.Kind != KVoid {
		r = b.fn.newValue()
	}
	return b.append(&Instr{Op: OpCallExtern, Type: typ, Operands: args, Result: r, Callee: callee})
}

// Cast emits the appropriate int/float conversion instruction.
func (b *Builder) Cast(op Op, typ Type, v Value) Value {
	r := b.fn.newValue()
	return b.append(&Instr{Op: op, Type: typ, Operands: []Value{v}, Result: r})
}

// Phi emits a PHI node selecting among incoming values by predecessor
// label, for joins where branch arms must converge on one typed value.
func (b *Builder) Phi(typ Type, labels []string, values []Value) Value {
	r := b.fn.newValue()
	return b.append(&Instr{Op: OpPhi, Type: typ, Operands: values, Result: r, Labels: labels})
}

// Br emits an unconditional branch terminator.
func (b *Builder) Br(label string) {
	b.append(&Instr{Op: OpBr, Type: Type{Kind: KVoid}, Result: NoValue, Labels: []string{label}})
}

// CondBr emits a conditional branch terminator.
func (b *Builder) CondBr(cond Value, thenLabel, elseLabel string) {
	b.append(&Instr{Op: OpCondBr, Type: Type{Kind: KVoid}, Operands: []Value{cond}, Result: NoValue, Labels: []string{thenLabel, elseLabel}})
}

// Ret emits a return terminator. Pass NoValue for a void return.
func (b *Builder) Ret(v Value) {
	ops := []Value{}
	if v != NoValue {
		ops = []Value{v}
	}
	b.append(&Instr{Op: OpRet, Type: Type{Kind: KVoid}, Operands: ops, Result: NoValue})
}

// ---------------------------------------------------------------------
// Verifier
// ---------------------------------------------------------------------

// Verify checks the structural invariants of a completed module: every
// block ends in exactly one terminator, every value referenced by an
// instruction is defined before use (or is a function parameter), every
// branch targets a real label, and every call's argument count matches
// its target's declared arity.
func Verify(m *Module) error {
	for _, fn := range m.Functions {
		if err := verifyFunction(m, fn); err != nil {
			return fmt.Errorf("ir: function %s: %w", fn.Name, err)
		}
	}
	return nil
}

func verifyFunction(m *Module, fn *Function) error {
	if len(fn.Blocks) == 0 {
		return nil // declaration only (extern), nothing to verify
	}
	defined := make(map[Value]bool, len(fn.Params))
	for i := range fn.Params {
		defined[Value(i)] = true
	}
	labels := make(map[string]bool, len(fn.Blocks))
	for _, blk := range fn.Blocks {
		if labels[blk.Label] {
			return fmt.Errorf("duplicate block label %q", blk.Label)
		}
		labels[blk.Label] = true
	}

	for _, blk := range fn.Blocks {
		if len(blk.Instrs) == 0 {
			return fmt.Errorf("block %q has no instructions", blk.Label)
		}
		for i, instr := range blk.Instrs {
			isLast := i == len(blk.Instrs)-1
			if isTerminator(instr.Op) != isLast {
				if isTerminator(instr.Op) {
					return fmt.Errorf("block %q: terminator %s is not the last instruction", blk.Label, instr.Op)
				}
				return fmt.Errorf("block %q: missing terminator", blk.Label)
			}
			for _, operand := range instr.Operands {
				if operand == NoValue {
					continue
				}
				if !defined[operand] {
					return fmt.Errorf("block %q: use of undefined value %%%d by %s", blk.Label, operand, instr.Op)
				}
			}
			if instr.Op == OpCondBr || instr.Op == OpBr {
				for _, l := range instr.Labels {
					if !labels[l] {
						return fmt.Errorf("block %q: branch to undefined label %q", blk.Label, l)
					}
				}
			}
			if instr.Op == OpCall || instr.Op == OpCallExtern {
				if err := verifyCallArity(m, instr); err != nil {
					return fmt.Errorf("block %q: %w", blk.Label, err)
				}
			}
			if instr.Op == OpGlobalAddr && !m.hasGlobal(instr.GlobalName) {
				return fmt.Errorf("block %q: reference to undeclared global %q", blk.Label, instr.GlobalName)
			}
			if instr.Result != NoValue {
				defined[instr.Result] = true
			}
		}
	}
	return nil
}

func verifyCallArity(m *Module, instr *Instr) error {
	var params []Type
	found := false
	if instr.Op == OpCallExtern {
		if e, ok := m.Extern(instr.Callee); ok {
			params, found = e.Params, true
		}
	} else {
		if f, ok := m.Function(instr.Callee); ok {
			for _, p := range f.Params {
				params = append(params, p.Type)
			}
			found = true
		}
	}
	if !found {
		return fmt.Errorf("call to undeclared target %q", instr.Callee)
	}
	if len(instr.Operands) != len(params) {
		return fmt.Errorf("call to %q: expected %d argument(s), got %d", instr.Callee, len(params), len(instr.Operands))
	}
	return nil
}
