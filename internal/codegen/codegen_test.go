package codegen

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/chrispp/internal/diag"
	"github.com/gmofishsauce/chrispp/internal/ir"
	"github.com/gmofishsauce/chrispp/internal/lexer"
	"github.com/gmofishsauce/chrispp/internal/parser"
	"github.com/gmofishsauce/chrispp/internal/sema"
	"github.com/gmofishsauce/chrispp/internal/source"
)

func generate(t *testing.T, text string) (*ir.Module, *diag.Engine) {
	t.Helper()
	diags := diag.New()
	f := source.New("t.chr", text)
	toks := lexer.Tokenize(f, diags)
	prog := parser.New("t.chr", toks, diags).ParseProgram()
	require.False(t, diags.HasErrors(), "parse diagnostics: %v", diags.Codes())

	res := sema.Analyze(prog, diags)
	require.False(t, diags.HasErrors(), "sema diagnostics: %v", diags.Codes())

	mod := Generate(res, diags, "test-build")
	return mod, diags
}

func funcNames(mod *ir.Module) []string {
	var names []string
	for _, fn := range mod.Functions {
		names = append(names, fn.Name)
	}
	return names
}

// String interpolation inside a print call lowers to strcat chains.
func TestGenerateHelloName(t *testing.T) {
	mod, diags := generate(t, `
func main() {
    var name = "Chris";
    print("Hello, ${name}!");
}
`)
	require.False(t, diags.HasErrors())
	require.NoError(t, ir.Verify(mod))
	assert.Contains(t, funcNames(mod), "main")
}

// A recursive function driven by a range loop: calls, arithmetic,
// comparisons, and for-in lowering all in one program.
func TestGenerateFibonacci(t *testing.T) {
	mod, diags := generate(t, `
func fib(n: Int) -> Int {
    if n <= 1 { return n; }
    return fib(n-1) + fib(n-2);
}
func main() {
    for i in 0..10 {
        print("${fib(i)}");
    }
}
`)
	require.False(t, diags.HasErrors())
	require.NoError(t, ir.Verify(mod))
	assert.Contains(t, funcNames(mod), "fib")
	assert.Contains(t, funcNames(mod), "main")
}

// An exhaustive match over a plain enum lowers to tag comparisons.
func TestGenerateEnumMatch(t *testing.T) {
	mod, diags := generate(t, `
enum Color { Red, Green, Blue }
func main() {
    var c = Color.Green;
    match c {
        Red => print("r")
        Green => print("g")
        Blue => print("b")
    }
}
`)
	require.False(t, diags.HasErrors())
	require.NoError(t, ir.Verify(mod))
}

// The negative case: an inexhaustive match (no wildcard, one variant
// missing) reports exactly one E3023 naming the missing variant.
func TestSemaMatchExhaustivenessMissingVariant(t *testing.T) {
	diags := diag.New()
	f := source.New("t.chr", `
enum Color { Red, Green, Blue }
func main() {
    var c = Color.Green;
    match c {
        Red => print("r")
        Green => print("g")
    }
}
`)
	toks := lexer.Tokenize(f, diags)
	prog := parser.New("t.chr", toks, diags).ParseProgram()
	require.False(t, diags.HasErrors())

	sema.Analyze(prog, diags)
	count := 0
	for _, c := range diags.Codes() {
		if c == "E3023" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

// Monomorphization uniqueness: two distinct instantiations of Box<T>
// produce exactly one struct per (template, type-args) pair.
func TestGenerateGenericBoxMonomorphization(t *testing.T) {
	mod, diags := generate(t, `
class Box<T> {
    public var v: T;
    public func new(v: T) -> Box {
        return Box { v: v };
    }
    public func get() -> T {
        return this.v;
    }
}
func main() {
    var a: Box<Int> = Box.new(42);
    var b: Box<String> = Box.new("hi");
    print(a.get());
    print(b.get());
}
`)
	require.False(t, diags.HasErrors())
	require.NoError(t, ir.Verify(mod))

	var boxStructs []string
	for _, s := range mod.Structs {
		if len(s.Name) >= 4 && s.Name[:4] == "Box$" {
			boxStructs = append(boxStructs, s.Name)
		}
	}
	assert.Len(t, boxStructs, 2, "expected exactly one struct per distinct Box<T> instantiation")
}

// Nil-coalescing on a nullable String evaluates the default lazily.
func TestGenerateNilCoalesce(t *testing.T) {
	mod, diags := generate(t, `
func main() {
    var x: String? = nil;
    print(x ?? "d");
}
`)
	require.False(t, diags.HasErrors())
	require.NoError(t, ir.Verify(mod))
}

// A user-declared Error class takes precedence over the built-in
// message-string binding in the catch clause's type annotation.
func TestGenerateTryCatchFinally(t *testing.T) {
	mod, diags := generate(t, `
class Error {
    public var message: String;
}
func main() {
    try {
        throw "oops";
    } catch (e: Error) {
        print(e);
    } finally {
        print("done");
    }
}
`)
	require.False(t, diags.HasErrors())
	require.NoError(t, ir.Verify(mod))
}

// With no user-declared Error class, a catch annotated `Error` falls
// back to binding the runtime's exception message string.
func TestGenerateTryCatchWithBuiltinErrorBinding(t *testing.T) {
	mod, diags := generate(t, `
func main() {
    try {
        throw "oops";
    } catch (e: Error) {
        print(e);
    } finally {
        print("done");
    }
}
`)
	require.False(t, diags.HasErrors())
	require.NoError(t, ir.Verify(mod))
}

// Tagged enums: construction stores {tag, payload}, match destructuring
// casts the payload back to the variant's declared type.
func TestGenerateTaggedEnumConstructAndDestructure(t *testing.T) {
	mod, diags := generate(t, `
enum Shape { Circle(Float64), Square(Float64), Dot }
func area(s: Shape) -> Float64 {
    return match s {
        Circle(r) => r * r * 3.14,
        Square(w) => w * w,
        Dot => 0.0
    };
}
func main() {
    print("${area(Shape.Circle(2.0))}");
}
`)
	require.False(t, diags.HasErrors())
	require.NoError(t, ir.Verify(mod))

	_, ok := mod.Struct("Enum$Shape")
	assert.True(t, ok, "a tagged enum needs a {tag, payload} struct layout")
}

// Top-level variable declarations become module globals, initialized in
// main's prologue and readable from any function body.
func TestGenerateTopLevelVarBecomesGlobal(t *testing.T) {
	mod, diags := generate(t, `
var counter: Int = 0;
func bump() -> Int {
    counter = counter + 1;
    return counter;
}
func main() {
    print("${bump()}");
}
`)
	require.False(t, diags.HasErrors())
	require.NoError(t, ir.Verify(mod))

	require.Len(t, mod.Globals, 1)
	assert.Equal(t, "counter", mod.Globals[0].Name)
}

// Permuting top-level declarations produces the same set of generated
// function names — declaration order never leaks into the module.
func TestGenerateOrderIndependence(t *testing.T) {
	a := `
func helper() -> Int { return 1; }
func main() -> Int { return helper(); }
`
	b := `
func main() -> Int { return helper(); }
func helper() -> Int { return 1; }
`
	modA, diagsA := generate(t, a)
	modB, diagsB := generate(t, b)
	require.False(t, diagsA.HasErrors())
	require.False(t, diagsB.HasErrors())

	namesA := funcNames(modA)
	namesB := funcNames(modB)
	sortStrings(namesA)
	sortStrings(namesB)
	if diff := cmp.Diff(namesA, namesB); diff != "" {
		t.Errorf("function name sets differ by declaration order (-A +B):\n%s", diff)
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
