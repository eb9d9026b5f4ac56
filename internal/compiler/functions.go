package compiler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/mdx"
	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/types"
)

// FunDef describes a function or operator: how its result type follows
// from its arguments and how a call compiles.
type FunDef struct {
	Name        string
	Syntax      mdx.Syntax
	Description string

	// Resolve returns the result type of a call with args, or a
	// CompileError if the arguments do not fit.
	Resolve func(v mdx.Validator, args []mdx.Exp) (types.Type, error)

	// Compile builds the calc for a resolved call.
	Compile func(c *Compiler, call *mdx.Call) (calc.Calc, error)
}

type funKey struct {
	name   string
	syntax mdx.Syntax
}

// Table maps (name, syntax) to function definitions. Names compare
// case-insensitively.
type Table struct {
	mu   sync.RWMutex
	defs map[funKey]*FunDef
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{defs: make(map[funKey]*FunDef)}
}

// Register adds def. Registering a name and syntax twice is an error.
func (t *Table) Register(def *FunDef) error {
	if def == nil || def.Name == "" || def.Resolve == nil || def.Compile == nil {
		return fmt.Errorf("incomplete function definition")
	}
	k := funKey{name: olap.FoldName(def.Name), syntax: def.Syntax}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.defs[k]; ok {
		return fmt.Errorf("function %s %q already registered", def.Syntax, def.Name)
	}
	t.defs[k] = def
	return nil
}

// Lookup finds the definition for name and syntax.
func (t *Table) Lookup(name string, syntax mdx.Syntax) (*FunDef, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	def, ok := t.defs[funKey{name: olap.FoldName(name), syntax: syntax}]
	return def, ok
}

// Clone returns a table with the same definitions that can be extended
// independently.
func (t *Table) Clone() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := NewTable()
	for k, d := range t.defs {
		out.defs[k] = d
	}
	return out
}

// Defs returns every definition sorted by name, then syntax.
func (t *Table) Defs() []*FunDef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*FunDef, 0, len(t.defs))
	for _, d := range t.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Syntax < out[j].Syntax
	})
	return out
}

// Resolve builds a typed call of name with args, the way a validator
// does after parsing.
func (t *Table) Resolve(v mdx.Validator, name string, syntax mdx.Syntax, args ...mdx.Exp) (*mdx.Call, error) {
	def, ok := t.Lookup(name, syntax)
	if !ok {
		return nil, errorf(ErrUnknownFunction, nil, "no %s function %q", syntax, name)
	}
	for _, a := range args {
		if a == nil || a.Type() == nil {
			return nil, errorf(ErrUnsupportedExp, nil, "untyped argument to %s", name)
		}
	}
	rt, err := def.Resolve(v, args)
	if err != nil {
		return nil, err
	}
	return &mdx.Call{Name: def.Name, Syntax: syntax, Args: args, ResultType: rt}, nil
}

var (
	builtinsOnce sync.Once
	builtins     *Table
)

// Builtins returns the shared table of builtin functions. Functions added
// with Register are visible to every compiler using it.
func Builtins() *Table {
	builtinsOnce.Do(func() {
		builtins = NewTable()
		for _, def := range builtinDefs() {
			if err := builtins.Register(def); err != nil {
				panic(err)
			}
		}
	})
	return builtins
}

// Register adds def to the builtin table.
func Register(def *FunDef) error {
	return Builtins().Register(def)
}

// Resolve builds a typed call against the builtin table.
func Resolve(v mdx.Validator, name string, syntax mdx.Syntax, args ...mdx.Exp) (*mdx.Call, error) {
	return Builtins().Resolve(v, name, syntax, args...)
}

// MustResolve is Resolve for statically known calls. It panics on error.
func MustResolve(v mdx.Validator, name string, syntax mdx.Syntax, args ...mdx.Exp) *mdx.Call {
	call, err := Resolve(v, name, syntax, args...)
	if err != nil {
		panic(err)
	}
	return call
}

func builtinDefs() []*FunDef {
	var defs []*FunDef
	defs = append(defs, setDefs()...)
	defs = append(defs, memberDefs()...)
	defs = append(defs, scalarDefs()...)
	defs = append(defs, parameterDefs()...)
	return defs
}

// checkArity fails with ErrArityMismatch unless lo <= len(args) <= hi.
// A negative hi means unbounded.
func checkArity(name string, args []mdx.Exp, lo, hi int) error {
	n := len(args)
	if n < lo || (hi >= 0 && n > hi) {
		want := fmt.Sprintf("%d", lo)
		switch {
		case hi < 0:
			want = fmt.Sprintf("at least %d", lo)
		case hi != lo:
			want = fmt.Sprintf("%d to %d", lo, hi)
		}
		return &CompileError{
			Code:     ErrArityMismatch,
			Message:  fmt.Sprintf("wrong number of arguments to %s", name),
			Expected: want,
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// expect fails with ErrIncompatibleType unless e converts to one of cats.
func expect(e mdx.Exp, cats ...types.Category) error {
	for _, c := range cats {
		if _, ok := types.CanConvert(e.Type(), c); ok {
			return nil
		}
	}
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.String()
	}
	expected := names[0]
	for _, n := range names[1:] {
		expected += " or " + n
	}
	return incompatible(e, expected)
}

// setElement returns the element type of a set-like argument.
func setElement(e mdx.Exp) types.Type {
	t := e.Type()
	switch t.Category() {
	case types.CategorySet:
		return types.ElementType(t)
	case types.CategoryLevel:
		mt, _ := types.ToMemberType(t)
		return mt
	}
	return t
}
