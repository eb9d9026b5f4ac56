package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/compiler"
	"github.com/roach88/cubist/internal/execution"
	"github.com/roach88/cubist/internal/harness"
	"github.com/roach88/cubist/internal/monitor"
	"github.com/roach88/cubist/internal/shepherd"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Timeout  time.Duration
	Bindings []string
	Metrics  bool

	// Traces overrides the trace id generator (for testing).
	Traces execution.TraceGenerator
}

// RunOutput is the data of the run command.
type RunOutput struct {
	ExecutionID int64  `json:"execution_id"`
	TraceID     string `json:"trace_id"`
	State       string `json:"state"`
	ElapsedMS   int64  `json:"elapsed_ms"`
	Result      string `json:"result,omitempty"`
}

func (o RunOutput) String() string {
	return o.Result
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <query.yaml>",
		Short: "Execute a query",
		Long: `Compile a query file and execute it on the worker pool.

The execution is tracked by the monitor: with --db (or monitor.database in
the config) its start and end are written to the SQLite execution log.
Interrupting the command cancels the running execution.

Examples:
  cubist run queries/top-items.yaml
  cubist run queries/top-items.yaml --bind Limit=15 --timeout 2s
  cubist run queries/picked.yaml --bind 'Picked=[Product].[Veg],[Product].[Fruit]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "execution log database (overrides monitor.database)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "execution timeout (overrides the query and execution.default_timeout)")
	cmd.Flags().StringArrayVar(&opts.Bindings, "bind", nil, "parameter binding name=value (repeatable)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print execution metrics to stderr (overrides monitor.metrics)")

	return cmd
}

func runQuery(opts *RunOptions, path string, cmd *cobra.Command) error {
	cfg := opts.Settings
	logger := opts.Logger
	out := opts.formatter(cmd)

	s, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load query", err)
	}
	if cmd.Flags().Changed("timeout") {
		s.Timeout = opts.Timeout
	}
	if err := applyBindings(s, opts.Bindings); err != nil {
		return WrapExitError(ExitCommandError, "invalid binding", err)
	}

	reg := prometheus.NewRegistry()
	monOpts := []monitor.Option{
		monitor.WithLogger(logger),
		monitor.WithMetrics(monitor.NewMetrics(reg)),
		monitor.WithQueueSize(cfg.Monitor.QueueSize),
	}
	database := opts.Database
	if database == "" {
		database = cfg.Monitor.Database
	}
	if database != "" {
		store, err := monitor.Open(database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open execution log", err)
		}
		defer store.Close()
		monOpts = append(monOpts, monitor.WithStore(store))
	}
	mon := monitor.New(monOpts...)
	defer mon.Close()

	traces := opts.Traces
	if traces == nil {
		traces = execution.UUIDv7Generator{}
	}
	p, err := harness.Prepare(s,
		harness.WithLogger(logger),
		harness.WithExecutionOptions(
			execution.WithClock(execution.SystemClock{}),
			execution.WithTraceGenerator(traces),
			execution.WithListener(mon),
			execution.WithDefaultTimeout(cfg.Execution.DefaultTimeout),
		),
	)
	if err != nil {
		if code := compiler.CodeOf(err); code != "" {
			_ = out.Error(code, err.Error(), nil, "")
		}
		return WrapExitError(ExitCommandError, "failed to prepare query", err)
	}

	pool, err := shepherd.New(cfg.Shepherd.Workers,
		shepherd.WithLogger(logger),
		shepherd.WithInterval(cfg.Shepherd.Interval),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start workers", err)
	}
	defer pool.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec := p.Statement.NewExecution(execution.NewMetadata("cli", s.Name, execution.PurposeStatement, 0))
	task, err := pool.Submit(ctx, exec, p.Statement.Evaluate)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to submit query", err)
	}
	value, runErr := task.Wait(context.Background())

	data := RunOutput{
		ExecutionID: exec.ID(),
		TraceID:     exec.TraceID(),
		State:       exec.State().String(),
		ElapsedMS:   exec.Elapsed().Milliseconds(),
	}

	if err := pool.Shutdown(context.Background()); err != nil {
		logger.Warn("worker shutdown", "error", err)
	}
	if err := mon.Close(); err != nil {
		logger.Warn("execution log", "error", err)
	}
	if opts.Metrics || cfg.Monitor.Metrics {
		if err := writeMetrics(cmd.ErrOrStderr(), reg); err != nil {
			logger.Warn("metrics", "error", err)
		}
	}

	if runErr != nil {
		code := string(execution.CodeOf(runErr))
		if code == "" {
			code = string(execution.ErrCodeFailed)
		}
		_ = out.Error(code, runErr.Error(), data, data.TraceID)
		return WrapExitError(ExitFailure, "query "+strings.ToLower(data.State), runErr)
	}
	data.Result = calc.FormatValue(value)
	return out.Success(data, data.TraceID)
}

// applyBindings adds name=value pairs to the scenario's bindings. Values
// starting with "[" are unique names, comma-separated for sets; anything
// else is a YAML scalar.
func applyBindings(s *harness.Scenario, pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}
	if s.Bindings == nil {
		s.Bindings = make(map[string]any)
	}
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return fmt.Errorf("%q is not name=value", pair)
		}
		value, err := parseBinding(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		s.Bindings[name] = value
	}
	return nil
}

func parseBinding(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		if !strings.Contains(raw, ",") {
			return raw, nil
		}
		parts := strings.Split(raw, ",")
		names := make([]any, len(parts))
		for i, p := range parts {
			names[i] = strings.TrimSpace(p)
		}
		return names, nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
