package compiler

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/mdx"
	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/types"
)

// ParameterSlot holds the run-time value of one parameter. The compiler
// hands out one slot per parameter; the orchestrator fills it before an
// evaluation and calcs read it.
type ParameterSlot struct {
	index       int
	param       *mdx.Parameter
	defaultCalc calc.Calc

	mu       sync.RWMutex
	value    any
	assigned bool
}

// Index is the slot's position in registration order.
func (s *ParameterSlot) Index() int { return s.index }

// Parameter returns the parameter the slot was registered for.
func (s *ParameterSlot) Parameter() *mdx.Parameter { return s.param }

// DefaultCalc returns the compiled default value.
func (s *ParameterSlot) DefaultCalc() calc.Calc { return s.defaultCalc }

// SetValue assigns a value. A nil value is an explicit null.
func (s *ParameterSlot) SetValue(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.assigned = true
}

// Value returns the assigned value and whether one was assigned.
func (s *ParameterSlot) Value() (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.assigned
}

// Unset reverts the slot to its default.
func (s *ParameterSlot) Unset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = nil
	s.assigned = false
}

type slotRegistry struct {
	mu     sync.Mutex
	slots  []*ParameterSlot
	byName map[string]*ParameterSlot
}

func newSlotRegistry() *slotRegistry {
	return &slotRegistry{byName: make(map[string]*ParameterSlot)}
}

// RegisterParameter returns the slot for p, creating it on first use.
// Registering the same parameter again, or another parameter with the same
// name and type, returns the existing slot. The default value must convert
// to the declared type.
func (c *Compiler) RegisterParameter(p *mdx.Parameter) (*ParameterSlot, error) {
	if p == nil {
		return nil, errorf(ErrUnsupportedExp, nil, "nil parameter")
	}
	if p.Type == nil {
		return nil, &CompileError{Code: ErrParameterType, Message: "parameter has no type", Parameter: p.Name}
	}
	key := olap.FoldName(p.Name)

	c.slots.mu.Lock()
	if s, ok := c.slots.byName[key]; ok {
		c.slots.mu.Unlock()
		if s.param == p || types.Equal(s.param.Type, p.Type) {
			return s, nil
		}
		return nil, &CompileError{
			Code:      ErrParameterType,
			Message:   "parameter redefined with a different type",
			Parameter: p.Name,
			Expected:  s.param.Type.String(),
			Actual:    p.Type.String(),
		}
	}
	c.slots.mu.Unlock()

	var dflt calc.Calc
	if p.Default != nil {
		if _, ok := types.CanConvert(p.Default.Type(), p.Type.Category()); !ok {
			return nil, &CompileError{
				Code:      ErrParameterType,
				Message:   "default value does not match the parameter type",
				Exp:       p.Default,
				Parameter: p.Name,
				Expected:  p.Type.String(),
				Actual:    p.Default.Type().String(),
			}
		}
		x, err := c.CompileAs(p.Default, p.Type, calc.StylesMutableList)
		if err != nil {
			return nil, err
		}
		dflt = x
	} else {
		dflt = calc.NullConstant(p.Type)
	}

	c.slots.mu.Lock()
	defer c.slots.mu.Unlock()
	if s, ok := c.slots.byName[key]; ok {
		return s, nil
	}
	s := &ParameterSlot{index: len(c.slots.slots), param: p, defaultCalc: dflt}
	c.slots.slots = append(c.slots.slots, s)
	c.slots.byName[key] = s
	c.logger.Debug("registered parameter", "name", p.Name, "type", p.Type.String(), "slot", s.index)
	return s, nil
}

// Slots returns the registered slots in registration order.
func (c *Compiler) Slots() []*ParameterSlot {
	c.slots.mu.Lock()
	defer c.slots.mu.Unlock()
	out := make([]*ParameterSlot, len(c.slots.slots))
	copy(out, c.slots.slots)
	return out
}

// LookupSlot finds a registered slot by case-insensitive name.
func (c *Compiler) LookupSlot(name string) (*ParameterSlot, bool) {
	c.slots.mu.Lock()
	defer c.slots.mu.Unlock()
	s, ok := c.slots.byName[olap.FoldName(name)]
	return s, ok
}

// parameterCalc reads a slot, falling back to the default calc.
type parameterCalc struct {
	calc.Base
	slot *ParameterSlot
}

func newParameterCalc(s *ParameterSlot) *parameterCalc {
	style := calc.StyleValue
	if types.IsSet(s.param.Type) {
		style = calc.StyleMutableList
	}
	return &parameterCalc{Base: calc.NewBase("Parameter", s.param.Type, style), slot: s}
}

func (c *parameterCalc) ExplainProps() []string {
	return []string{"parameter=" + c.slot.param.Name}
}

// DependsOn follows the default: an assigned value is context free.
func (c *parameterCalc) DependsOn(h olap.Hierarchy) bool {
	return c.slot.defaultCalc.DependsOn(h)
}

// Evaluate hands sets out as a copy, like EvaluateList.
func (c *parameterCalc) Evaluate(ev calc.Evaluator) (any, error) {
	if types.IsSet(c.Type()) {
		l, err := c.EvaluateList(ev)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return c.value(ev)
}

func (c *parameterCalc) value(ev calc.Evaluator) (any, error) {
	if v, ok := c.slot.Value(); ok {
		return v, nil
	}
	return c.slot.defaultCalc.Evaluate(ev)
}

func (c *parameterCalc) EvaluateDouble(ev calc.Evaluator) (float64, error) {
	v, err := c.value(ev)
	if err != nil {
		return 0, err
	}
	return calc.ToDouble(v)
}

func (c *parameterCalc) EvaluateInteger(ev calc.Evaluator) (int64, error) {
	v, err := c.value(ev)
	if err != nil {
		return 0, err
	}
	return calc.ToInteger(v)
}

func (c *parameterCalc) EvaluateString(ev calc.Evaluator) (string, error) {
	v, err := c.value(ev)
	if err != nil {
		return "", err
	}
	return calc.ToString(v)
}

func (c *parameterCalc) EvaluateBoolean(ev calc.Evaluator) (bool, error) {
	v, err := c.value(ev)
	if err != nil {
		return false, err
	}
	return calc.ToBoolean(v)
}

func (c *parameterCalc) EvaluateDateTime(ev calc.Evaluator) (time.Time, error) {
	v, err := c.value(ev)
	if err != nil {
		return time.Time{}, err
	}
	return calc.ToDateTime(v)
}

func (c *parameterCalc) EvaluateMember(ev calc.Evaluator) (olap.Member, error) {
	v, err := c.value(ev)
	if err != nil || v == nil {
		return nil, err
	}
	m, ok := v.(olap.Member)
	if !ok {
		return nil, fmt.Errorf("parameter %q: %T is not a member", c.slot.param.Name, v)
	}
	return m, nil
}

func (c *parameterCalc) EvaluateTuple(ev calc.Evaluator) (olap.Tuple, error) {
	v, err := c.value(ev)
	if err != nil || v == nil {
		return nil, err
	}
	switch v := v.(type) {
	case olap.Tuple:
		return v, nil
	case olap.Member:
		return olap.Tuple{v}, nil
	}
	return nil, fmt.Errorf("parameter %q: %T is not a tuple", c.slot.param.Name, v)
}

func (c *parameterCalc) EvaluateList(ev calc.Evaluator) (*calc.TupleList, error) {
	v, err := c.value(ev)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case nil:
		return calc.NewTupleList(types.Arity(c.Type()), 0), nil
	case *calc.TupleList:
		return v.Copy(), nil
	}
	return nil, fmt.Errorf("parameter %q: %T is not a set", c.slot.param.Name, v)
}

func parameterDefs() []*FunDef {
	return []*FunDef{
		{
			Name:        "Parameter",
			Syntax:      mdx.SyntaxFunction,
			Description: "Defines a parameter with a name, a type and a default value.",
			Resolve: func(v mdx.Validator, args []mdx.Exp) (types.Type, error) {
				p, err := parameterFromArgs(args)
				if err != nil {
					return nil, err
				}
				if err := defineParameter(v, p); err != nil {
					return nil, err
				}
				return p.Type, nil
			},
			Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
				p, err := parameterFromArgs(call.Args)
				if err != nil {
					return nil, err
				}
				if known, ok := c.validator.LookupParameter(p.Name); ok && types.Equal(known.Type, p.Type) {
					p = known
				}
				slot, err := c.RegisterParameter(p)
				if err != nil {
					return nil, err
				}
				return newParameterCalc(slot), nil
			},
		},
		{
			Name:        "ParamRef",
			Syntax:      mdx.SyntaxFunction,
			Description: "References a parameter defined elsewhere.",
			Resolve: func(v mdx.Validator, args []mdx.Exp) (types.Type, error) {
				if err := checkArity("ParamRef", args, 1, 1); err != nil {
					return nil, err
				}
				name, err := constantString(args[0], "parameter name")
				if err != nil {
					return nil, err
				}
				if p, ok := v.LookupParameter(name); ok {
					return p.Type, nil
				}
				return types.Value, nil
			},
			Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
				name, err := constantString(call.Args[0], "parameter name")
				if err != nil {
					return nil, err
				}
				if slot, ok := c.LookupSlot(name); ok {
					return newParameterCalc(slot), nil
				}
				p, ok := c.validator.LookupParameter(name)
				if !ok {
					return nil, &CompileError{
						Code:      ErrUnknownParameter,
						Message:   "unknown parameter",
						Exp:       call,
						Parameter: name,
					}
				}
				slot, err := c.RegisterParameter(p)
				if err != nil {
					return nil, err
				}
				return newParameterCalc(slot), nil
			},
		},
	}
}

// parameterFromArgs reads Parameter(name, type, default[, description]).
// Name, type and description must be constants.
func parameterFromArgs(args []mdx.Exp) (*mdx.Parameter, error) {
	if err := checkArity("Parameter", args, 3, 4); err != nil {
		return nil, err
	}
	name, err := constantString(args[0], "parameter name")
	if err != nil {
		return nil, err
	}
	t, err := parameterType(args[1])
	if err != nil {
		return nil, err
	}
	p := &mdx.Parameter{Name: name, Type: t, Default: args[2]}
	if len(args) == 4 {
		if p.Description, err = constantString(args[3], "parameter description"); err != nil {
			return nil, err
		}
	}
	if _, ok := types.CanConvert(p.Default.Type(), t.Category()); !ok {
		return nil, &CompileError{
			Code:      ErrParameterType,
			Message:   "default value does not match the parameter type",
			Exp:       p.Default,
			Parameter: name,
			Expected:  t.String(),
			Actual:    p.Default.Type().String(),
		}
	}
	return p, nil
}

func constantString(e mdx.Exp, what string) (string, error) {
	if l, ok := e.(*mdx.Literal); ok {
		if s, ok := l.Value.(string); ok {
			return s, nil
		}
	}
	return "", errorf(ErrMalformedConstant, e, "%s must be a string constant", what)
}

var parameterTypes = map[string]types.Type{
	"NUMERIC":  types.Numeric,
	"INTEGER":  types.Integer,
	"STRING":   types.String,
	"BOOLEAN":  types.Boolean,
	"DATETIME": types.DateTime,
}

// parameterType reads the type argument of Parameter: a type symbol, or a
// level, hierarchy or dimension whose members the parameter ranges over.
func parameterType(e mdx.Exp) (types.Type, error) {
	switch e := e.(type) {
	case *mdx.Literal:
		if s, ok := e.Value.(string); ok {
			for name, t := range parameterTypes {
				if olap.NamesEqual(name, s) {
					return t, nil
				}
			}
		}
	case *mdx.LevelExpr, *mdx.HierarchyExpr, *mdx.DimensionExpr:
		mt, _ := types.ToMemberType(e.Type())
		return mt, nil
	}
	return nil, errorf(ErrMalformedConstant, e, "parameter type must be NUMERIC, INTEGER, STRING, BOOLEAN, DATETIME or a hierarchy")
}

// parameterDefiner is implemented by validators that accept parameters
// defined inside an expression.
type parameterDefiner interface {
	Define(p *mdx.Parameter) error
}

func defineParameter(v mdx.Validator, p *mdx.Parameter) error {
	if known, ok := v.LookupParameter(p.Name); ok {
		if types.Equal(known.Type, p.Type) {
			return nil
		}
		return &CompileError{
			Code:      ErrParameterType,
			Message:   "parameter redefined with a different type",
			Parameter: p.Name,
			Expected:  known.Type.String(),
			Actual:    p.Type.String(),
		}
	}
	if d, ok := v.(parameterDefiner); ok {
		return d.Define(p)
	}
	return nil
}
