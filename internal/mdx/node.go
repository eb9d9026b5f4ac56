package mdx

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Node is the YAML form of an expression, used by scenario files and the
// command line. Exactly one of its kinds is set.
//
// A plain scalar is shorthand: a bracketed string is a Ref, any other
// string a string literal, and numbers, booleans and null are literals of
// their own kind.
//
//	call: Sum
//	args:
//	  - call: "{}"
//	    args: ["[Time].[2023]", "[Time].[2024]"]
//	  - "[Measures].[Units]"
type Node struct {
	Ref     string   `yaml:"ref,omitempty"`
	Number  *float64 `yaml:"number,omitempty"`
	Integer *int64   `yaml:"integer,omitempty"`
	Text    *string  `yaml:"string,omitempty"`
	Bool    *bool    `yaml:"bool,omitempty"`
	Null    bool     `yaml:"null,omitempty"`
	Param   string   `yaml:"param,omitempty"`

	Call   string  `yaml:"call,omitempty"`
	Syntax string  `yaml:"syntax,omitempty"`
	Args   []*Node `yaml:"args,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		type plain Node
		return value.Decode((*plain)(n))
	}
	switch value.Tag {
	case "!!null":
		n.Null = true
	case "!!bool":
		var b bool
		if err := value.Decode(&b); err != nil {
			return err
		}
		n.Bool = &b
	case "!!int":
		var i int64
		if err := value.Decode(&i); err != nil {
			return err
		}
		n.Integer = &i
	case "!!float":
		var f float64
		if err := value.Decode(&f); err != nil {
			return err
		}
		n.Number = &f
	default:
		if strings.HasPrefix(value.Value, "[") {
			n.Ref = value.Value
		} else {
			s := value.Value
			n.Text = &s
		}
	}
	return nil
}

// NameResolver resolves bracketed unique names to catalog expressions.
type NameResolver interface {
	Resolve(uniqueName string) (Exp, error)
}

// CallResolver types a function call. compiler.Resolve has this shape.
type CallResolver func(v Validator, name string, syntax Syntax, args ...Exp) (*Call, error)

// Build turns n into a validated expression.
func (n *Node) Build(v Validator, names NameResolver, calls CallResolver) (Exp, error) {
	if n == nil {
		// yaml decodes a bare null list item to a nil *Node.
		return NullLiteral(), nil
	}
	if k := n.kinds(); k != 1 {
		return nil, fmt.Errorf("expression must set exactly one kind, got %d", k)
	}
	switch {
	case n.Ref != "":
		return names.Resolve(n.Ref)
	case n.Number != nil:
		return NumericLiteral(*n.Number), nil
	case n.Integer != nil:
		return IntegerLiteral(*n.Integer), nil
	case n.Text != nil:
		return StringLiteral(*n.Text), nil
	case n.Bool != nil:
		return BooleanLiteral(*n.Bool), nil
	case n.Null:
		return NullLiteral(), nil
	case n.Param != "":
		p, ok := v.LookupParameter(n.Param)
		if !ok {
			return nil, fmt.Errorf("unknown parameter %q", n.Param)
		}
		return &ParameterExpr{Parameter: p}, nil
	}

	syntax, err := n.syntax()
	if err != nil {
		return nil, err
	}
	args := make([]Exp, len(n.Args))
	for i, a := range n.Args {
		if args[i], err = a.Build(v, names, calls); err != nil {
			return nil, fmt.Errorf("%s args[%d]: %w", n.Call, i, err)
		}
	}
	return calls(v, n.Call, syntax, args...)
}

func (n *Node) kinds() int {
	k := 0
	for _, set := range []bool{
		n.Ref != "", n.Number != nil, n.Integer != nil, n.Text != nil,
		n.Bool != nil, n.Null, n.Param != "", n.Call != "",
	} {
		if set {
			k++
		}
	}
	return k
}

func (n *Node) syntax() (Syntax, error) {
	if n.Syntax != "" {
		s, ok := ParseSyntax(n.Syntax)
		if !ok {
			return 0, fmt.Errorf("unknown syntax %q", n.Syntax)
		}
		return s, nil
	}
	switch n.Call {
	case "{}":
		return SyntaxBraces, nil
	case "()":
		return SyntaxParentheses, nil
	}
	return SyntaxFunction, nil
}
