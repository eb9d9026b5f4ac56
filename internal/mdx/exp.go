package mdx

import (
	"strconv"
	"strings"
	"time"

	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/types"
)

// Exp is a validated expression.
type Exp interface {
	expNode() // Marker method - seals interface to this package

	// Type is the static type resolved by validation.
	Type() types.Type

	// String renders the expression in query syntax.
	String() string
}

// Literal is a constant scalar or symbol.
type Literal struct {
	Value any
	typ   types.Type
}

func (*Literal) expNode() {}

// NumericLiteral is a NUMERIC constant.
func NumericLiteral(v float64) *Literal { return &Literal{Value: v, typ: types.Numeric} }

// IntegerLiteral is an INTEGER constant.
func IntegerLiteral(v int64) *Literal { return &Literal{Value: v, typ: types.Integer} }

// StringLiteral is a STRING constant.
func StringLiteral(v string) *Literal { return &Literal{Value: v, typ: types.String} }

// BooleanLiteral is a BOOLEAN constant.
func BooleanLiteral(v bool) *Literal { return &Literal{Value: v, typ: types.Boolean} }

// DateTimeLiteral is a DATETIME constant.
func DateTimeLiteral(v time.Time) *Literal { return &Literal{Value: v, typ: types.DateTime} }

// NullLiteral is the NULL constant.
func NullLiteral() *Literal { return &Literal{typ: types.Null} }

// SymbolLiteral is a bare keyword argument, such as a type name passed to
// Parameter.
func SymbolLiteral(name string) *Literal { return &Literal{Value: name, typ: types.Symbol} }

func (l *Literal) Type() types.Type { return l.typ }

func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return "CDate(" + strconv.Quote(v.Format(time.RFC3339)) + ")"
	case string:
		if l.typ.Category() == types.CategorySymbol {
			return v
		}
		return strconv.Quote(v)
	}
	return "?"
}

// MemberExpr references a resolved member.
type MemberExpr struct {
	Member olap.Member
}

func (*MemberExpr) expNode() {}

func (m *MemberExpr) Type() types.Type { return types.ForMember(m.Member) }

func (m *MemberExpr) String() string {
	if olap.IsNullMember(m.Member) {
		return "NULL"
	}
	return m.Member.UniqueName()
}

// LevelExpr references a resolved level.
type LevelExpr struct {
	Level olap.Level
}

func (*LevelExpr) expNode() {}

func (l *LevelExpr) Type() types.Type { return types.ForLevel(l.Level) }
func (l *LevelExpr) String() string   { return l.Level.UniqueName() }

// HierarchyExpr references a resolved hierarchy.
type HierarchyExpr struct {
	Hierarchy olap.Hierarchy
}

func (*HierarchyExpr) expNode() {}

func (h *HierarchyExpr) Type() types.Type { return types.ForHierarchy(h.Hierarchy) }
func (h *HierarchyExpr) String() string   { return h.Hierarchy.UniqueName() }

// DimensionExpr references a resolved dimension.
type DimensionExpr struct {
	Dimension olap.Dimension
}

func (*DimensionExpr) expNode() {}

func (d *DimensionExpr) Type() types.Type { return types.ForDimension(d.Dimension) }
func (d *DimensionExpr) String() string   { return d.Dimension.UniqueName() }

// ParameterExpr references a parameter defined elsewhere in the query or
// by the statement.
type ParameterExpr struct {
	Parameter *Parameter
}

func (*ParameterExpr) expNode() {}

func (p *ParameterExpr) Type() types.Type { return p.Parameter.Type }

func (p *ParameterExpr) String() string {
	return "ParamRef(" + strconv.Quote(p.Parameter.Name) + ")"
}

// Syntax is the surface form of a function call.
type Syntax int

const (
	SyntaxFunction    Syntax = iota // Name(a, b)
	SyntaxMethod                    // a.Name(b)
	SyntaxProperty                  // a.Name
	SyntaxInfix                     // a Name b
	SyntaxPrefix                    // Name a
	SyntaxBraces                    // {a, b}
	SyntaxParentheses               // (a, b)
)

var syntaxNames = [...]string{
	SyntaxFunction:    "function",
	SyntaxMethod:      "method",
	SyntaxProperty:    "property",
	SyntaxInfix:       "infix",
	SyntaxPrefix:      "prefix",
	SyntaxBraces:      "braces",
	SyntaxParentheses: "parentheses",
}

func (s Syntax) String() string {
	if int(s) < len(syntaxNames) {
		return syntaxNames[s]
	}
	return "unknown"
}

// ParseSyntax is the inverse of Syntax.String.
func ParseSyntax(s string) (Syntax, bool) {
	for i, name := range syntaxNames {
		if strings.EqualFold(name, s) {
			return Syntax(i), true
		}
	}
	return 0, false
}

// Call is a resolved function or operator application.
type Call struct {
	Name       string
	Syntax     Syntax
	Args       []Exp
	ResultType types.Type
}

func (*Call) expNode() {}

func (c *Call) Type() types.Type { return c.ResultType }

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	switch c.Syntax {
	case SyntaxMethod:
		if len(args) == 0 {
			return c.Name + "()"
		}
		return args[0] + "." + c.Name + "(" + strings.Join(args[1:], ", ") + ")"
	case SyntaxProperty:
		if len(args) == 0 {
			return c.Name
		}
		return args[0] + "." + c.Name
	case SyntaxInfix:
		if len(args) != 2 {
			break
		}
		return "(" + args[0] + " " + c.Name + " " + args[1] + ")"
	case SyntaxPrefix:
		if len(args) != 1 {
			break
		}
		if c.Name == "-" {
			return "-" + args[0]
		}
		return c.Name + " " + args[0]
	case SyntaxBraces:
		return "{" + strings.Join(args, ", ") + "}"
	case SyntaxParentheses:
		return "(" + strings.Join(args, ", ") + ")"
	}
	return c.Name + "(" + strings.Join(args, ", ") + ")"
}

// Walk calls fn for e and, while fn returns true, for its arguments in
// order.
func Walk(e Exp, fn func(Exp) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch e := e.(type) {
	case *Call:
		for _, a := range e.Args {
			Walk(a, fn)
		}
	case *ParameterExpr:
		if e.Parameter.Default != nil {
			Walk(e.Parameter.Default, fn)
		}
	case *Literal, *MemberExpr, *LevelExpr, *HierarchyExpr, *DimensionExpr:
	}
}
