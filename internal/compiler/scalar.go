package compiler

import (
	"cmp"
	"time"

	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/mdx"
	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/types"
)

func scalarDefs() []*FunDef {
	var defs []*FunDef
	for _, op := range []string{"+", "-", "*", "/"} {
		defs = append(defs, arithmeticDef(op))
	}
	defs = append(defs, &FunDef{
		Name:        "-",
		Syntax:      mdx.SyntaxPrefix,
		Description: "Negates a number.",
		Resolve: func(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
			if err := checkArity("-", args, 1, 1); err != nil {
				return nil, err
			}
			if err := expect(args[0], types.CategoryNumeric); err != nil {
				return nil, err
			}
			return types.Numeric, nil
		},
		Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
			x, err := c.CompileDouble(call.Args[0])
			if err != nil {
				return nil, err
			}
			return &negateCalc{Base: calc.NewBase("Negate", types.Numeric, calc.StyleValue, x), x: x}, nil
		},
	})
	for _, op := range []string{"=", "<>", "<", "<=", ">", ">="} {
		defs = append(defs, comparisonDef(op))
	}
	defs = append(defs,
		logicalDef("AND"),
		logicalDef("OR"),
		&FunDef{
			Name:        "NOT",
			Syntax:      mdx.SyntaxPrefix,
			Description: "Negates a condition.",
			Resolve: func(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
				if err := checkArity("NOT", args, 1, 1); err != nil {
					return nil, err
				}
				if err := expect(args[0], types.CategoryBoolean); err != nil {
					return nil, err
				}
				return types.Boolean, nil
			},
			Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
				x, err := c.CompileBoolean(call.Args[0])
				if err != nil {
					return nil, err
				}
				return &notCalc{Base: calc.NewBase("Not", types.Boolean, calc.StyleValue, x), x: x}, nil
			},
		},
		&FunDef{
			Name:        "IIf",
			Syntax:      mdx.SyntaxFunction,
			Description: "Returns one of two values depending on a condition.",
			Resolve:     resolveIIf,
			Compile:     compileIIf,
		},
	)
	return defs
}

var arithmeticNames = map[string]string{"+": "Plus", "-": "Minus", "*": "Multiply", "/": "Divide"}

func arithmeticDef(op string) *FunDef {
	return &FunDef{
		Name:        op,
		Syntax:      mdx.SyntaxInfix,
		Description: "Numeric " + arithmeticNames[op] + ".",
		Resolve: func(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
			if err := checkArity(op, args, 2, 2); err != nil {
				return nil, err
			}
			for _, a := range args {
				if err := expect(a, types.CategoryNumeric); err != nil {
					return nil, err
				}
			}
			return types.Numeric, nil
		},
		Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
			l, err := c.CompileDouble(call.Args[0])
			if err != nil {
				return nil, err
			}
			r, err := c.CompileDouble(call.Args[1])
			if err != nil {
				return nil, err
			}
			return &arithmeticCalc{
				Base:  calc.NewBase(arithmeticNames[op], types.Numeric, calc.StyleValue, l, r),
				op:    op,
				left:  l,
				right: r,
			}, nil
		},
	}
}

// arithmeticCalc applies a binary operator. For + and - an empty operand
// counts as zero unless both are empty; * and / are empty if any operand
// is, and division by zero is empty.
type arithmeticCalc struct {
	calc.Base
	op          string
	left, right calc.DoubleCalc
}

func (a *arithmeticCalc) Evaluate(ev calc.Evaluator) (any, error) {
	f, err := a.EvaluateDouble(ev)
	if err != nil {
		return nil, err
	}
	return calc.BoxDouble(f), nil
}

func (a *arithmeticCalc) EvaluateDouble(ev calc.Evaluator) (float64, error) {
	l, err := a.left.EvaluateDouble(ev)
	if err != nil {
		return 0, err
	}
	r, err := a.right.EvaluateDouble(ev)
	if err != nil {
		return 0, err
	}
	lnull, rnull := l == calc.DoubleNull, r == calc.DoubleNull
	switch a.op {
	case "+", "-":
		if lnull && rnull {
			return calc.DoubleNull, nil
		}
		if lnull {
			l = 0
		}
		if rnull {
			r = 0
		}
		if a.op == "+" {
			return l + r, nil
		}
		return l - r, nil
	case "*":
		if lnull || rnull {
			return calc.DoubleNull, nil
		}
		return l * r, nil
	default:
		if lnull || rnull || r == 0 {
			return calc.DoubleNull, nil
		}
		return l / r, nil
	}
}

type negateCalc struct {
	calc.Base
	x calc.DoubleCalc
}

func (n *negateCalc) Evaluate(ev calc.Evaluator) (any, error) {
	f, err := n.EvaluateDouble(ev)
	if err != nil {
		return nil, err
	}
	return calc.BoxDouble(f), nil
}

func (n *negateCalc) EvaluateDouble(ev calc.Evaluator) (float64, error) {
	f, err := n.x.EvaluateDouble(ev)
	if err != nil || f == calc.DoubleNull {
		return f, err
	}
	return -f, nil
}

func comparisonDef(op string) *FunDef {
	return &FunDef{
		Name:        op,
		Syntax:      mdx.SyntaxInfix,
		Description: "Compares two values.",
		Resolve: func(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
			if err := checkArity(op, args, 2, 2); err != nil {
				return nil, err
			}
			for _, a := range args {
				if err := expect(a, types.CategoryValue); err != nil {
					return nil, err
				}
			}
			return types.Boolean, nil
		},
		Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
			numeric := true
			for _, a := range call.Args {
				if _, ok := types.CanConvert(a.Type(), types.CategoryNumeric); !ok {
					numeric = false
				}
			}
			to := types.CategoryString
			if numeric {
				to = types.CategoryNumeric
			}
			l, err := c.compileScalarAs(call.Args[0], to)
			if err != nil {
				return nil, err
			}
			r, err := c.compileScalarAs(call.Args[1], to)
			if err != nil {
				return nil, err
			}
			return &comparisonCalc{
				Base:    calc.NewBase("Compare", types.Boolean, calc.StyleValue, l, r),
				op:      op,
				left:    l,
				right:   r,
				numeric: numeric,
			}, nil
		},
	}
}

// comparisonCalc compares numerically when both sides are numbers and as
// strings otherwise. Any empty operand makes the comparison false.
type comparisonCalc struct {
	calc.Base
	op          string
	left, right calc.Calc
	numeric     bool
}

func (c *comparisonCalc) ExplainProps() []string { return []string{"op=" + c.op} }

func (c *comparisonCalc) Evaluate(ev calc.Evaluator) (any, error) { return c.EvaluateBoolean(ev) }

func (c *comparisonCalc) EvaluateBoolean(ev calc.Evaluator) (bool, error) {
	l, err := c.left.Evaluate(ev)
	if err != nil {
		return false, err
	}
	r, err := c.right.Evaluate(ev)
	if err != nil {
		return false, err
	}
	if calc.IsNull(l) || calc.IsNull(r) {
		return false, nil
	}
	var order int
	if c.numeric {
		lf, err := calc.ToDouble(l)
		if err != nil {
			return false, err
		}
		rf, err := calc.ToDouble(r)
		if err != nil {
			return false, err
		}
		order = cmp.Compare(lf, rf)
	} else {
		ls, err := calc.ToString(l)
		if err != nil {
			return false, err
		}
		rs, err := calc.ToString(r)
		if err != nil {
			return false, err
		}
		order = cmp.Compare(ls, rs)
	}
	switch c.op {
	case "=":
		return order == 0, nil
	case "<>":
		return order != 0, nil
	case "<":
		return order < 0, nil
	case "<=":
		return order <= 0, nil
	case ">":
		return order > 0, nil
	default:
		return order >= 0, nil
	}
}

func logicalDef(op string) *FunDef {
	return &FunDef{
		Name:        op,
		Syntax:      mdx.SyntaxInfix,
		Description: "Logical " + op + ".",
		Resolve: func(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
			if err := checkArity(op, args, 2, 2); err != nil {
				return nil, err
			}
			for _, a := range args {
				if err := expect(a, types.CategoryBoolean); err != nil {
					return nil, err
				}
			}
			return types.Boolean, nil
		},
		Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
			l, err := c.CompileBoolean(call.Args[0])
			if err != nil {
				return nil, err
			}
			r, err := c.CompileBoolean(call.Args[1])
			if err != nil {
				return nil, err
			}
			name := "And"
			if op == "OR" {
				name = "Or"
			}
			return &logicalCalc{Base: calc.NewBase(name, types.Boolean, calc.StyleValue, l, r), or: op == "OR", left: l, right: r}, nil
		},
	}
}

// logicalCalc short-circuits: the right operand is only evaluated when
// the left one does not decide the result.
type logicalCalc struct {
	calc.Base
	or          bool
	left, right calc.BooleanCalc
}

func (l *logicalCalc) Evaluate(ev calc.Evaluator) (any, error) { return l.EvaluateBoolean(ev) }

func (l *logicalCalc) EvaluateBoolean(ev calc.Evaluator) (bool, error) {
	b, err := l.left.EvaluateBoolean(ev)
	if err != nil {
		return false, err
	}
	if b == l.or {
		return b, nil
	}
	return l.right.EvaluateBoolean(ev)
}

type notCalc struct {
	calc.Base
	x calc.BooleanCalc
}

func (n *notCalc) Evaluate(ev calc.Evaluator) (any, error) { return n.EvaluateBoolean(ev) }

func (n *notCalc) EvaluateBoolean(ev calc.Evaluator) (bool, error) {
	b, err := n.x.EvaluateBoolean(ev)
	return !b, err
}

func resolveIIf(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
	if err := checkArity("IIf", args, 3, 3); err != nil {
		return nil, err
	}
	if err := expect(args[0], types.CategoryBoolean); err != nil {
		return nil, err
	}
	t := types.CommonType(true, args[1].Type(), args[2].Type())
	if t == nil {
		return nil, incompatible(args[2], args[1].Type().String())
	}
	switch t.Category() {
	case types.CategoryMember:
		return t, nil
	case types.CategoryNull:
		return types.Value, nil
	}
	if !t.Category().IsScalar() {
		return nil, incompatible(args[1], "SCALAR or MEMBER")
	}
	return t, nil
}

func compileIIf(c *Compiler, call *mdx.Call) (calc.Calc, error) {
	cond, err := c.CompileBoolean(call.Args[0])
	if err != nil {
		return nil, err
	}
	branches := make([]calc.Calc, 2)
	for i, a := range call.Args[1:] {
		if call.ResultType.Category() == types.CategoryMember {
			branches[i], err = c.CompileMember(a)
		} else {
			branches[i], err = c.compileScalarAs(a, call.ResultType.Category())
		}
		if err != nil {
			return nil, err
		}
	}
	return &iifCalc{
		Base: calc.NewBase("IIf", call.ResultType, calc.StyleValue, cond, branches[0], branches[1]),
		cond: cond,
		then: branches[0],
		els:  branches[1],
	}, nil
}

// iifCalc evaluates only the chosen branch.
type iifCalc struct {
	calc.Base
	cond      calc.BooleanCalc
	then, els calc.Calc
}

func (i *iifCalc) pick(ev calc.Evaluator) (calc.Calc, error) {
	b, err := i.cond.EvaluateBoolean(ev)
	if err != nil {
		return nil, err
	}
	if b {
		return i.then, nil
	}
	return i.els, nil
}

func (i *iifCalc) Evaluate(ev calc.Evaluator) (any, error) {
	x, err := i.pick(ev)
	if err != nil {
		return nil, err
	}
	return x.Evaluate(ev)
}

func (i *iifCalc) EvaluateDouble(ev calc.Evaluator) (float64, error) {
	x, err := i.pick(ev)
	if err != nil {
		return 0, err
	}
	return x.(calc.DoubleCalc).EvaluateDouble(ev)
}

func (i *iifCalc) EvaluateInteger(ev calc.Evaluator) (int64, error) {
	x, err := i.pick(ev)
	if err != nil {
		return 0, err
	}
	return x.(calc.IntegerCalc).EvaluateInteger(ev)
}

func (i *iifCalc) EvaluateString(ev calc.Evaluator) (string, error) {
	x, err := i.pick(ev)
	if err != nil {
		return "", err
	}
	return x.(calc.StringCalc).EvaluateString(ev)
}

func (i *iifCalc) EvaluateBoolean(ev calc.Evaluator) (bool, error) {
	x, err := i.pick(ev)
	if err != nil {
		return false, err
	}
	return x.(calc.BooleanCalc).EvaluateBoolean(ev)
}

func (i *iifCalc) EvaluateDateTime(ev calc.Evaluator) (time.Time, error) {
	x, err := i.pick(ev)
	if err != nil {
		return time.Time{}, err
	}
	return x.(calc.DateTimeCalc).EvaluateDateTime(ev)
}

func (i *iifCalc) EvaluateMember(ev calc.Evaluator) (olap.Member, error) {
	x, err := i.pick(ev)
	if err != nil {
		return nil, err
	}
	return x.(calc.MemberCalc).EvaluateMember(ev)
}
