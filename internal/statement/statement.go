package statement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/compiler"
	"github.com/roach88/cubist/internal/execution"
	"github.com/roach88/cubist/internal/mdx"
	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/types"
)

// EvaluatorFunc creates the evaluator for one run. ctx is bound to the
// run's execution.
type EvaluatorFunc func(ctx context.Context) calc.Evaluator

// Statement is a compiled expression with its parameter slots.
//
// Thread-safety model:
//   - Execute, Evaluate, SetParameter, ClearParameters: serialized by mu,
//     because the compiled plan is single-writer
//   - Cancel: safe from any goroutine
//   - Plan, Explain, Parameters: read immutable state
type Statement struct {
	exp       mdx.Exp
	plan      calc.Calc
	slots     []*compiler.ParameterSlot
	byName    map[string]*compiler.ParameterSlot
	evaluator EvaluatorFunc

	logger      *slog.Logger
	timeout     time.Duration
	execOpts    []execution.Option
	compileOpts []compiler.Option

	mu      sync.Mutex
	current atomic.Pointer[execution.Execution]
}

// Option configures a Statement.
type Option func(*Statement)

// WithLogger sets the logger. It is also handed to the compiler.
func WithLogger(l *slog.Logger) Option {
	return func(s *Statement) { s.logger = l }
}

// WithTimeout sets the timeout of executions started by Execute. Zero
// falls back to the execution default.
func WithTimeout(d time.Duration) Option {
	return func(s *Statement) { s.timeout = d }
}

// WithExecutionOptions sets options for executions started by the
// statement.
func WithExecutionOptions(opts ...execution.Option) Option {
	return func(s *Statement) { s.execOpts = append(s.execOpts, opts...) }
}

// WithCompilerOptions sets options for the compiler used by Prepare.
func WithCompilerOptions(opts ...compiler.Option) Option {
	return func(s *Statement) { s.compileOpts = append(s.compileOpts, opts...) }
}

// Prepare compiles e and registers its parameters.
//
// Set expressions compile to a null-free list, member and tuple
// expressions to the member or tuple itself, and anything else to a
// scalar. A compile error leaves nothing behind.
func Prepare(v mdx.Validator, e mdx.Exp, newEvaluator EvaluatorFunc, opts ...Option) (*Statement, error) {
	s := &Statement{
		exp:       e,
		evaluator: newEvaluator,
		logger:    slog.Default(),
		byName:    make(map[string]*compiler.ParameterSlot),
	}
	for _, opt := range opts {
		opt(s)
	}
	if e == nil {
		return nil, fmt.Errorf("prepare: nil expression")
	}
	if newEvaluator == nil {
		return nil, fmt.Errorf("prepare: nil evaluator func")
	}

	c := compiler.New(v, append([]compiler.Option{compiler.WithLogger(s.logger)}, s.compileOpts...)...)
	plan, err := compileRoot(c, e)
	if err != nil {
		return nil, err
	}
	s.plan = plan
	s.slots = c.Slots()
	for _, slot := range s.slots {
		s.byName[olap.FoldName(slot.Parameter().Name)] = slot
	}

	s.logger.Debug("statement prepared",
		"expression", e.String(),
		"type", plan.Type().String(),
		"parameters", len(s.slots),
	)
	return s, nil
}

func compileRoot(c *compiler.Compiler, e mdx.Exp) (calc.Calc, error) {
	switch e.Type().Category() {
	case types.CategorySet:
		return c.CompileList(e, false)
	case types.CategoryMember:
		return c.CompileMember(e)
	case types.CategoryTuple:
		return c.CompileTuple(e)
	case types.CategoryLevel, types.CategoryHierarchy, types.CategoryDimension, types.CategoryCube:
		return c.Compile(e)
	}
	return c.CompileScalar(e, false)
}

// Expression returns the prepared expression.
func (s *Statement) Expression() mdx.Exp { return s.exp }

// Plan returns the compiled calc tree.
func (s *Statement) Plan() calc.Calc { return s.plan }

// Explain renders the compiled plan.
func (s *Statement) Explain() string { return calc.ExplainString(s.plan) }

// Parameters returns the statement's parameters in registration order.
func (s *Statement) Parameters() []*mdx.Parameter {
	out := make([]*mdx.Parameter, len(s.slots))
	for i, slot := range s.slots {
		out[i] = slot.Parameter()
	}
	return out
}

// SetParameter binds a value to the parameter called name, matched
// case-insensitively. The value is converted to the parameter's type; nil
// binds an explicit null.
func (s *Statement) SetParameter(name string, value any) error {
	slot, ok := s.byName[olap.FoldName(name)]
	if !ok {
		return &ParameterError{Name: name, Err: ErrUnknownParameter}
	}
	v, err := convertParameter(slot.Parameter().Type, value)
	if err != nil {
		return &ParameterError{Name: slot.Parameter().Name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	slot.SetValue(v)
	return nil
}

// ClearParameters reverts every parameter to its default.
func (s *Statement) ClearParameters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range s.slots {
		slot.Unset()
	}
}

// NewExecution creates a root execution with the statement's timeout and
// execution options. Callers that schedule the run themselves use it
// together with Evaluate.
func (s *Statement) NewExecution(md execution.Metadata) *execution.Execution {
	if md == (execution.Metadata{}) {
		md = execution.NewMetadata("statement", s.exp.String(), execution.PurposeStatement, 0)
	}
	return execution.NewRoot(s.timeout, md, s.execOpts...)
}

// Evaluate runs the plan once. ctx must be bound to an execution by
// execution.Run; the result is a *calc.TupleList for set expressions and
// the boxed value otherwise.
func (s *Statement) Evaluate(ctx context.Context) (any, error) {
	exec, err := execution.Current(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(exec)
	defer s.current.CompareAndSwap(exec, nil)

	if err := exec.CheckCancelOrTimeout(); err != nil {
		return nil, err
	}
	ev := s.evaluator(ctx)
	if types.IsSet(s.plan.Type()) {
		return s.plan.(calc.ListCalc).EvaluateList(ev)
	}
	return s.plan.Evaluate(ev)
}

// Execute runs the plan under a new root execution and ends the execution
// with the outcome. The returned Result is non-nil even when err is not.
func (s *Statement) Execute(ctx context.Context, md execution.Metadata) (*Result, error) {
	exec := s.NewExecution(md)

	var value any
	err := execution.Run(ctx, exec, func(ctx context.Context) error {
		var err error
		value, err = s.Evaluate(ctx)
		return err
	})
	exec.Finish(err)

	res := newResult(exec, value)
	if err != nil {
		s.logger.Debug("statement failed",
			"execution", exec.ID(),
			"state", exec.State().String(),
			"error", err,
		)
		return res, err
	}
	s.logger.Debug("statement executed",
		"execution", exec.ID(),
		"elapsed", exec.Elapsed(),
	)
	return res, nil
}

// Cancel cancels the execution the statement is currently evaluating
// under, if any.
func (s *Statement) Cancel() {
	if e := s.current.Load(); e != nil {
		e.Cancel()
	}
}

func convertParameter(t types.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t.Category() {
	case types.CategoryNumeric:
		return calc.ToDouble(v)
	case types.CategoryInteger:
		return calc.ToInteger(v)
	case types.CategoryString:
		return calc.ToString(v)
	case types.CategoryBoolean:
		return calc.ToBoolean(v)
	case types.CategoryDateTime:
		return calc.ToDateTime(v)
	case types.CategoryMember:
		m, ok := v.(olap.Member)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a member", ErrParameterValue, v)
		}
		if err := checkHierarchy(t.Hierarchy(), m); err != nil {
			return nil, err
		}
		return m, nil
	case types.CategorySet:
		arity := types.Arity(t)
		positions := types.ElementTypes(types.ElementType(t))
		switch v := v.(type) {
		case *calc.TupleList:
			if v.Arity() != arity {
				return nil, fmt.Errorf("%w: set of arity %d, want %d", ErrParameterValue, v.Arity(), arity)
			}
			for _, tuple := range v.Tuples() {
				for i, m := range tuple {
					if i < len(positions) {
						if err := checkHierarchy(positions[i].Hierarchy(), m); err != nil {
							return nil, err
						}
					}
				}
			}
			return v.Copy(), nil
		case []olap.Member:
			if arity != 1 {
				return nil, fmt.Errorf("%w: member list for a set of arity %d", ErrParameterValue, arity)
			}
			l := calc.NewTupleList(1, len(v))
			for _, m := range v {
				if len(positions) > 0 {
					if err := checkHierarchy(positions[0].Hierarchy(), m); err != nil {
						return nil, err
					}
				}
				l.AppendMember(m)
			}
			return l, nil
		}
		return nil, fmt.Errorf("%w: %T is not a set", ErrParameterValue, v)
	}
	return v, nil
}

// checkHierarchy rejects a non-null member outside h. A nil h accepts any
// member.
func checkHierarchy(h olap.Hierarchy, m olap.Member) error {
	if h == nil || olap.IsNullMember(m) || olap.SameHierarchy(h, m.Hierarchy()) {
		return nil
	}
	return fmt.Errorf("%w: %s is not a member of %s", ErrParameterValue, m.UniqueName(), h.UniqueName())
}
