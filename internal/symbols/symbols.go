// Package symbols implements the lexical scope stack and the class
// registry the semantic analyzer builds and the code generator consumes.
//
// Scope forms a stack of lexical frames, one per block, each a flat
// name->Symbol map with a parent pointer; Define reports an error on
// redefinition within the same frame, while Lookup walks outward through
// parents so shadowing an enclosing binding is always allowed. The class
// registry addresses classes by a numeric ClassHandle into an arena
// slice rather than by pointer, so the parent/interface graph between
// classes never needs cyclic ownership.
package symbols

import (
	"fmt"

	"github.com/gmofishsauce/chrispp/internal/source"
	"github.com/gmofishsauce/chrispp/internal/types"
)

// Symbol is one named binding in a lexical scope.
type Symbol struct {
	Name    string
	Type    *types.Type
	Mutable bool
	Span    source.Span
}

// Scope is one lexical frame: a flat name->Symbol map plus a parent
// pointer. Scopes form a stack whose lifetime matches the traversal of
// the owning syntactic construct.
type Scope struct {
	parent  *Scope
	symbols map[string]Symbol
}

// NewScope creates a scope chained to parent (nil for the outermost/
// global scope).
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, symbols: make(map[string]Symbol)}
}

// Define installs name in this (the innermost) scope. It is an error to
// redefine a name already present in the SAME scope — shadowing an outer
// scope's binding is allowed.
func (s *Scope) Define(name string, typ *types.Type, mutable bool, span source.Span) error {
	if _, exists := s.symbols[name]; exists {
		return fmt.Errorf("symbols: %q is already declared in this scope", name)
	}
	s.symbols[name] = Symbol{Name: name, Type: typ, Mutable: mutable, Span: span}
	return nil
}

// Lookup walks the scope chain from this scope outward and returns the
// first matching symbol.
func (s *Scope) Lookup(name string) (Symbol, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.symbols[name]; ok {
			return sym, true
		}
	}
	return Symbol{}, false
}

// LookupLocal reports whether name is defined in THIS scope only,
// without walking to the parent — used to detect redefinition before
// calling Define.
func (s *Scope) LookupLocal(name string) (Symbol, bool) {
	sym, ok := s.symbols[name]
	return sym, ok
}

// Parent returns the enclosing scope, or nil for the outermost scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// ---------------------------------------------------------------------
// Class / interface / enum registry
// ---------------------------------------------------------------------

// ClassHandle is a numeric reference into a ClassTable, used instead of
// a pointer so the parent chain and interface list never need cyclic
// ownership.
type ClassHandle int

// InvalidHandle marks the absence of a class (e.g. no base class).
const InvalidHandle ClassHandle = -1

// MemberKind distinguishes a field from a method for access-control and
// member-lookup purposes.
type MemberKind int

const (
	KindField MemberKind = iota
	KindMethod
)

// Member is one field or method entry in a class or interface's table.
type Member struct {
	Name       string
	Kind       MemberKind
	Type       *types.Type // field type, or method's function type
	Access     int         // mirrors ast.Access; kept untyped here to avoid an ast<->symbols import cycle
	Mutable    bool        // fields only
}

// ClassInfo is the structural record for one class.
type ClassInfo struct {
	Name         string
	Public       bool
	Shared       bool
	TypeParams   []string
	Parent       ClassHandle // InvalidHandle if none
	Interfaces   []string
	Members      []Member
	IsGeneric    bool // len(TypeParams) > 0 and not yet instantiated
	TemplateName string // for an instantiated generic, the originating template's Name
	ConcreteArgs []*types.Type
}

// InterfaceInfo is the structural record for one interface.
type InterfaceInfo struct {
	Name    string
	Public  bool
	Members []Member
}

// EnumVariantInfo records one enum variant's optional associated type.
type EnumVariantInfo struct {
	Name           string
	AssociatedType *types.Type // nil for a plain (untagged) variant
}

// EnumInfo is the structural record for one enum.
type EnumInfo struct {
	Name     string
	Public   bool
	Variants []EnumVariantInfo
}

// GenericInstantiation records a monomorphized generic class, keyed by
// its mangled name so repeated references to the same concrete
// instantiation (e.g. Box<Int> requested twice) are memoized.
type GenericInstantiation struct {
	TemplateName   string
	MangledName    string
	TypeParamNames []string
	ConcreteArgs   []*types.Type
}

// ClassTable is the arena-backed registry of every class, interface, and
// enum declared in a compilation, plus every generic instantiation
// produced while type-checking references to generic classes.
type ClassTable struct {
	classes       []ClassInfo
	classIndex    map[string]ClassHandle
	interfaces    map[string]InterfaceInfo
	enums         map[string]EnumInfo
	templates     map[string]ClassHandle // generic template classes, kept separate per pass 0
	instantiations map[string]*GenericInstantiation // keyed by MangledName
}

// NewClassTable creates an empty registry.
func NewClassTable() *ClassTable {
	return &ClassTable{
		classIndex:     make(map[string]ClassHandle),
		interfaces:     make(map[string]InterfaceInfo),
		enums:          make(map[string]EnumInfo),
		templates:      make(map[string]ClassHandle),
		instantiations: make(map[string]*GenericInstantiation),
	}
}

// DefineClass registers a new class and returns its handle. It is an
// error to redefine an existing class/interface/enum name.
func (ct *ClassTable) DefineClass(info ClassInfo) (ClassHandle, error) {
	if err := ct.checkNameFree(info.Name); err != nil {
		return InvalidHandle, err
	}
	h := ClassHandle(len(ct.classes))
	ct.classes = append(ct.classes, info)
	ct.classIndex[info.Name] = h
	if len(info.TypeParams) > 0 {
		ct.templates[info.Name] = h
	}
	return h, nil
}

// DefineInterface registers a new interface.
func (ct *ClassTable) DefineInterface(info InterfaceInfo) error {
	if err := ct.checkNameFree(info.Name); err != nil {
		return err
	}
	ct.interfaces[info.Name] = info
	return nil
}

// DefineEnum registers a new enum.
func (ct *ClassTable) DefineEnum(info EnumInfo) error {
	if err := ct.checkNameFree(info.Name); err != nil {
		return err
	}
	ct.enums[info.Name] = info
	return nil
}

func (ct *ClassTable) checkNameFree(name string) error {
	if _, ok := ct.classIndex[name]; ok {
		return fmt.Errorf("symbols: %q is already declared", name)
	}
	if _, ok := ct.interfaces[name]; ok {
		return fmt.Errorf("symbols: %q is already declared", name)
	}
	if _, ok := ct.enums[name]; ok {
		return fmt.Errorf("symbols: %q is already declared", name)
	}
	return nil
}

// Class returns the ClassInfo for h.
func (ct *ClassTable) Class(h ClassHandle) (*ClassInfo, bool) {
	if h < 0 || int(h) >= len(ct.classes) {
		return nil, false
	}
	return &ct.classes[int(h)], true
}

// LookupClass finds a class by name and returns its handle.
func (ct *ClassTable) LookupClass(name string) (ClassHandle, bool) {
	h, ok := ct.classIndex[name]
	return h, ok
}

// LookupInterface finds an interface by name.
func (ct *ClassTable) LookupInterface(name string) (InterfaceInfo, bool) {
	i, ok := ct.interfaces[name]
	return i, ok
}

// LookupEnum finds an enum by name.
func (ct *ClassTable) LookupEnum(name string) (EnumInfo, bool) {
	e, ok := ct.enums[name]
	return e, ok
}

// IsTemplate reports whether name refers to an unsinstantiated generic
// class template.
func (ct *ClassTable) IsTemplate(name string) bool {
	_, ok := ct.templates[name]
	return ok
}

// AncestorChain walks the parent handles from h up to (and including) h
// itself, outermost ancestor last. Used for inherited-member lookup and
// for checking whether a class is assignable to a supertype.
func (ct *ClassTable) AncestorChain(h ClassHandle) []ClassHandle {
	var chain []ClassHandle
	for cur := h; cur != InvalidHandle; {
		chain = append(chain, cur)
		info, ok := ct.Class(cur)
		if !ok {
			break
		}
		cur = info.Parent
	}
	return chain
}

// IsSubclassOf reports whether child's ancestor chain includes parent.
func (ct *ClassTable) IsSubclassOf(child, parent ClassHandle) bool {
	for _, h := range ct.AncestorChain(child) {
		if h == parent {
			return true
		}
	}
	return false
}

// ResolveMember walks h's member table, then its ancestor chain, and
// returns the first member named name.
func (ct *ClassTable) ResolveMember(h ClassHandle, name string) (Member, ClassHandle, bool) {
	for _, anc := range ct.AncestorChain(h) {
		info, ok := ct.Class(anc)
		if !ok {
			continue
		}
		for _, m := range info.Members {
			if m.Name == name {
				return m, anc, true
			}
		}
	}
	return Member{}, InvalidHandle, false
}

// SetClassMembers installs h's parent, implemented-interface list, and
// full field/method table. Called by the semantic analyzer's signature
// pass once inheritance and member types are resolved — the earlier
// name-registration pass only records the placeholder name so
// declarations may reference each other in any textual order.
func (ct *ClassTable) SetClassMembers(h ClassHandle, parent ClassHandle, interfaces []string, members []Member) {
	info := &ct.classes[int(h)]
	info.Parent = parent
	info.Interfaces = interfaces
	info.Members = members
}

// SetClassConcreteArgs sets h's TemplateName and ConcreteArgs.
// Instantiated generics are tracked separately via
// Instantiate/GenericInstantiation, not as a new ClassHandle.
func (ct *ClassTable) SetClassConcreteArgs(h ClassHandle, templateName string, args []*types.Type) {
	info := &ct.classes[int(h)]
	info.TemplateName = templateName
	info.ConcreteArgs = args
}

// SetInterfaceMembers installs name's method table.
func (ct *ClassTable) SetInterfaceMembers(name string, members []Member) {
	info := ct.interfaces[name]
	info.Members = members
	ct.interfaces[name] = info
}

// SetEnumVariants installs name's variant list.
func (ct *ClassTable) SetEnumVariants(name string, variants []EnumVariantInfo) {
	info := ct.enums[name]
	info.Variants = variants
	ct.enums[name] = info
}

// Instantiate records (or returns the memoized) GenericInstantiation for
// templateName applied to args, keyed by mangledName so a repeated
// reference to the same concrete instantiation (e.g. Box<Int> requested
// twice) yields one record.
func (ct *ClassTable) Instantiate(templateName, mangledName string, typeParamNames []string, args []*types.Type) *GenericInstantiation {
	if existing, ok := ct.instantiations[mangledName]; ok {
		return existing
	}
	inst := &GenericInstantiation{
		TemplateName:   templateName,
		MangledName:    mangledName,
		TypeParamNames: typeParamNames,
		ConcreteArgs:   args,
	}
	ct.instantiations[mangledName] = inst
	return inst
}

// Instantiations returns every recorded generic instantiation, in no
// particular order (they are kept in a map) — callers needing
// determinism should sort by MangledName.
func (ct *ClassTable) Instantiations() []*GenericInstantiation {
	out := make([]*GenericInstantiation, 0, len(ct.instantiations))
	for _, inst := range ct.instantiations {
		out = append(out, inst)
	}
	return out
}

// MangleGenericName produces the stable mangled name for a generic class
// instantiated with args, e.g. Box<Int> -> "Box$Int".
func MangleGenericName(templateName string, args []*types.Type) string {
	name := templateName
	for _, a := range args {
		name += "$" + a.String()
	}
	return name
}
