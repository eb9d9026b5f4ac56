package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/compiler"
	"github.com/roach88/cubist/internal/execution"
	"github.com/roach88/cubist/internal/mdx"
	"github.com/roach88/cubist/internal/memcube"
	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/statement"
	"github.com/roach88/cubist/internal/testutil"
	"github.com/roach88/cubist/internal/types"
)

// Option configures how scenarios are prepared.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	functions *compiler.Table
	execOpts  []execution.Option
}

// WithLogger sets the logger for the statement and its executions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFunctions resolves and compiles calls against t instead of the
// builtin table.
func WithFunctions(t *compiler.Table) Option {
	return func(o *options) { o.functions = t }
}

// WithExecutionOptions adds options for the statement's root executions.
// They apply after the deterministic clock and trace id, so they can
// replace them.
func WithExecutionOptions(opts ...execution.Option) Option {
	return func(o *options) { o.execOpts = append(o.execOpts, opts...) }
}

// Prepared is a scenario's statement, compiled and bound, ready to run.
type Prepared struct {
	Scenario  *Scenario
	Cube      *memcube.Cube
	Statement *statement.Statement
}

// Prepare loads the scenario's cube, builds its expression and prepares
// the statement with the scenario's bindings applied.
//
// Executions run under a manual clock that never advances and a fixed
// trace id, so outcomes are reproducible.
func Prepare(s *Scenario, opts ...Option) (*Prepared, error) {
	o := options{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		functions: compiler.Builtins(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cube, err := memcube.LoadFile(s.Cube)
	if err != nil {
		return nil, err
	}
	v, err := memcube.NewValidator(cube)
	if err != nil {
		return nil, err
	}
	for _, decl := range s.Parameters {
		p, err := buildParameter(cube, v, o.functions, decl)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", decl.Name, err)
		}
		if err := v.Define(p); err != nil {
			return nil, err
		}
	}

	exp, err := s.Expression.Build(v, v, o.functions.Resolve)
	if err != nil {
		return nil, fmt.Errorf("expression: %w", err)
	}

	traceID := s.TraceID
	if traceID == "" {
		traceID = s.Name
	}
	execOpts := append([]execution.Option{
		execution.WithClock(testutil.NewManualClock()),
		execution.WithTraceGenerator(testutil.NewFixedTraceGenerator(traceID)),
		execution.WithLogger(o.logger),
	}, o.execOpts...)

	stmt, err := statement.Prepare(v, exp,
		func(ctx context.Context) calc.Evaluator { return memcube.NewEvaluator(ctx, cube) },
		statement.WithLogger(o.logger),
		statement.WithTimeout(s.Timeout),
		statement.WithExecutionOptions(execOpts...),
		statement.WithCompilerOptions(compiler.WithLogger(o.logger), compiler.WithFunctions(o.functions)),
	)
	if err != nil {
		return nil, err
	}

	if err := bind(cube, stmt, s.Bindings); err != nil {
		return nil, err
	}
	return &Prepared{Scenario: s, Cube: cube, Statement: stmt}, nil
}

// Run prepares and executes s once.
//
// Compile errors and execution failures are part of the outcome. The
// returned error reports a scenario that could not be set up: a missing
// cube, an unknown name, a bad binding.
func Run(s *Scenario, opts ...Option) (*Outcome, error) {
	out := &Outcome{Scenario: s.Name}

	p, err := Prepare(s, opts...)
	if err != nil {
		if code := compiler.CodeOf(err); code != "" {
			out.ErrorCode = code
			out.Err = err
			return out, nil
		}
		return nil, err
	}
	out.Plan = p.Statement.Explain()

	md := execution.NewMetadata("harness", s.Name, execution.PurposeStatement, 0)
	res, err := p.Statement.Execute(context.Background(), md)
	out.State = res.State.String()
	if err != nil {
		out.Err = err
		return out, nil
	}
	out.Result = res.String()
	return out, nil
}

func buildParameter(cube *memcube.Cube, v *memcube.Validator, fns *compiler.Table, d ParameterDecl) (*mdx.Parameter, error) {
	t, err := parameterType(cube, d)
	if err != nil {
		return nil, err
	}
	p := &mdx.Parameter{Name: d.Name, Type: t, Description: d.Description}
	if d.Default != nil {
		if p.Default, err = d.Default.Build(v, v, fns.Resolve); err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
	}
	return p, nil
}

func parameterType(cube *memcube.Cube, d ParameterDecl) (types.Type, error) {
	switch d.Type {
	case TypeNumeric:
		return types.Numeric, nil
	case TypeInteger:
		return types.Integer, nil
	case TypeString:
		return types.String, nil
	case TypeBoolean:
		return types.Boolean, nil
	case TypeDateTime:
		return types.DateTime, nil
	case TypeMember, TypeSet:
		h, ok := cube.LookupHierarchy(d.Hierarchy)
		if !ok {
			return nil, fmt.Errorf("hierarchy %s not found in cube %s", d.Hierarchy, cube.Name())
		}
		mt := types.ForHierarchyMember(h)
		if d.Type == TypeSet {
			return types.SetOf(mt), nil
		}
		return mt, nil
	}
	return nil, fmt.Errorf("unknown type %q", d.Type)
}

func bind(cube *memcube.Cube, stmt *statement.Statement, bindings map[string]any) error {
	byName := make(map[string]*mdx.Parameter)
	for _, p := range stmt.Parameters() {
		byName[olap.FoldName(p.Name)] = p
	}
	for name, raw := range bindings {
		p, ok := byName[olap.FoldName(name)]
		if !ok {
			return fmt.Errorf("binding %s: %w", name, statement.ErrUnknownParameter)
		}
		value, err := bindingValue(cube, p.Type, raw)
		if err != nil {
			return fmt.Errorf("binding %s: %w", name, err)
		}
		if err := stmt.SetParameter(name, value); err != nil {
			return err
		}
	}
	return nil
}

// bindingValue turns a YAML value into what SetParameter accepts: members
// for unique names, member slices for lists of them, anything else as is.
func bindingValue(cube *memcube.Cube, t types.Type, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch t.Category() {
	case types.CategoryMember:
		return lookupMember(cube, raw)
	case types.CategorySet:
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("set binding must be a list of unique names, got %T", raw)
		}
		members := make([]olap.Member, len(items))
		for i, item := range items {
			m, err := lookupMember(cube, item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			members[i] = m
		}
		return members, nil
	}
	return raw, nil
}

func lookupMember(cube *memcube.Cube, raw any) (olap.Member, error) {
	name, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("member binding must be a unique name, got %T", raw)
	}
	m, ok := cube.LookupMember(name)
	if !ok {
		return nil, fmt.Errorf("%s not found in cube %s", name, cube.Name())
	}
	return m, nil
}
