package compiler

import (
	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/mdx"
	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/types"
)

func memberDefs() []*FunDef {
	return []*FunDef{
		{
			Name:        "()",
			Syntax:      mdx.SyntaxParentheses,
			Description: "Groups an expression, or builds a tuple from members.",
			Resolve:     resolveParentheses,
			Compile:     compileParentheses,
		},
		{
			Name:        "CurrentMember",
			Syntax:      mdx.SyntaxProperty,
			Description: "Returns the current member of a hierarchy.",
			Resolve: func(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
				if err := checkArity("CurrentMember", args, 1, 1); err != nil {
					return nil, err
				}
				switch args[0].Type().Category() {
				case types.CategoryHierarchy, types.CategoryDimension:
					mt, _ := types.ToMemberType(args[0].Type())
					return mt, nil
				}
				return nil, incompatible(args[0], "HIERARCHY")
			},
			Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
				h, err := c.CompileHierarchy(call.Args[0])
				if err != nil {
					return nil, err
				}
				return newCurrentMember(h), nil
			},
		},
		{
			Name:        "Children",
			Syntax:      mdx.SyntaxProperty,
			Description: "Returns the children of a member.",
			Resolve: func(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
				if err := checkArity("Children", args, 1, 1); err != nil {
					return nil, err
				}
				if err := expect(args[0], types.CategoryMember); err != nil {
					return nil, err
				}
				mt, _ := types.ToMemberType(args[0].Type())
				return types.SetOf(types.MemberOf(mt.Dimension(), mt.Hierarchy(), nil)), nil
			},
			Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
				m, err := c.CompileMember(call.Args[0])
				if err != nil {
					return nil, err
				}
				return &childrenCalc{Base: calc.NewBase("Children", call.ResultType, calc.StyleMutableList, m), member: m}, nil
			},
		},
		{
			Name:        "Parent",
			Syntax:      mdx.SyntaxProperty,
			Description: "Returns the parent of a member.",
			Resolve: func(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
				if err := checkArity("Parent", args, 1, 1); err != nil {
					return nil, err
				}
				if err := expect(args[0], types.CategoryMember); err != nil {
					return nil, err
				}
				mt, _ := types.ToMemberType(args[0].Type())
				return types.MemberOf(mt.Dimension(), mt.Hierarchy(), nil), nil
			},
			Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
				m, err := c.CompileMember(call.Args[0])
				if err != nil {
					return nil, err
				}
				return &parentCalc{Base: calc.NewBase("Parent", call.ResultType, calc.StyleValue, m), member: m}, nil
			},
		},
		{
			Name:        "Name",
			Syntax:      mdx.SyntaxProperty,
			Description: "Returns the name of a member.",
			Resolve: func(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
				if err := checkArity("Name", args, 1, 1); err != nil {
					return nil, err
				}
				if err := expect(args[0], types.CategoryMember); err != nil {
					return nil, err
				}
				return types.String, nil
			},
			Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
				m, err := c.CompileMember(call.Args[0])
				if err != nil {
					return nil, err
				}
				return &nameCalc{Base: calc.NewBase("Name", types.String, calc.StyleValue, m), member: m}, nil
			},
		},
	}
}

func resolveParentheses(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
	if err := checkArity("()", args, 1, -1); err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return args[0].Type(), nil
	}
	elems := make([]types.Type, len(args))
	for i, a := range args {
		if err := expect(a, types.CategoryMember); err != nil {
			return nil, err
		}
		if a.Type().Category() == types.CategoryNull {
			elems[i] = types.UnknownMember
		} else {
			elems[i], _ = types.ToMemberType(a.Type())
		}
		for j := 0; j < i; j++ {
			h := elems[i].Hierarchy()
			if h != nil && olap.SameHierarchy(h, elems[j].Hierarchy()) {
				return nil, errorf(ErrIncompatibleType, a, "tuple has more than one member of %s", h.UniqueName())
			}
		}
	}
	return types.TupleOf(elems...), nil
}

func compileParentheses(c *Compiler, call *mdx.Call) (calc.Calc, error) {
	if len(call.Args) == 1 {
		return c.Compile(call.Args[0])
	}
	members := make([]calc.MemberCalc, len(call.Args))
	children := make([]calc.Calc, len(call.Args))
	constant := true
	for i, a := range call.Args {
		m, err := c.CompileMember(a)
		if err != nil {
			return nil, err
		}
		members[i], children[i] = m, m
		if _, ok := m.(*calc.Constant); !ok {
			constant = false
		}
	}
	if constant {
		t := make(olap.Tuple, len(members))
		for i, m := range members {
			v, _ := m.(*calc.Constant).Value().(olap.Member)
			t[i] = v
		}
		return calc.NewConstant(call.ResultType, t), nil
	}
	return &tupleCalc{Base: calc.NewBase("Tuple", call.ResultType, calc.StyleValue, children...), members: members}, nil
}

// tupleCalc builds a fresh tuple on every evaluation.
type tupleCalc struct {
	calc.Base
	members []calc.MemberCalc
}

func (t *tupleCalc) Evaluate(ev calc.Evaluator) (any, error) { return t.EvaluateTuple(ev) }

func (t *tupleCalc) EvaluateTuple(ev calc.Evaluator) (olap.Tuple, error) {
	out := make(olap.Tuple, len(t.members))
	for i, m := range t.members {
		v, err := m.EvaluateMember(ev)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type childrenCalc struct {
	calc.Base
	noNulls
	member calc.MemberCalc
}

func (c *childrenCalc) Evaluate(ev calc.Evaluator) (any, error) { return c.EvaluateList(ev) }

func (c *childrenCalc) EvaluateList(ev calc.Evaluator) (*calc.TupleList, error) {
	m, err := c.member.EvaluateMember(ev)
	if err != nil {
		return nil, err
	}
	out := calc.NewTupleList(1, 0)
	if olap.IsNullMember(m) {
		return out, nil
	}
	children, err := ev.SchemaReader().MemberChildren(m)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if err := calc.Checkpoint(ev); err != nil {
			return nil, err
		}
		out.AppendMember(child)
	}
	return out, nil
}

// parentCalc returns the parent of a member; the parent of a root member
// is the hierarchy's null member.
type parentCalc struct {
	calc.Base
	member calc.MemberCalc
}

func (p *parentCalc) Evaluate(ev calc.Evaluator) (any, error) { return p.EvaluateMember(ev) }

func (p *parentCalc) EvaluateMember(ev calc.Evaluator) (olap.Member, error) {
	m, err := p.member.EvaluateMember(ev)
	if err != nil {
		return nil, err
	}
	if olap.IsNullMember(m) {
		return m, nil
	}
	if parent := m.Parent(); parent != nil {
		return parent, nil
	}
	return m.Hierarchy().NullMember(), nil
}

type nameCalc struct {
	calc.Base
	member calc.MemberCalc
}

func (n *nameCalc) Evaluate(ev calc.Evaluator) (any, error) {
	m, err := n.member.EvaluateMember(ev)
	if err != nil || olap.IsNullMember(m) {
		return nil, err
	}
	return m.Name(), nil
}

func (n *nameCalc) EvaluateString(ev calc.Evaluator) (string, error) {
	m, err := n.member.EvaluateMember(ev)
	if err != nil || olap.IsNullMember(m) {
		return "", err
	}
	return m.Name(), nil
}
