package testutil

// FixedTraceGenerator generates the same trace id every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with the same FixedTraceGenerator produces byte-identical
// monitor records.
//
// Unlike execution.FixedGenerator which returns ids in sequence, this
// generator always returns the same id. This is useful when every execution
// of a scenario should share one trace.
//
// Thread-safety: FixedTraceGenerator is stateless and safe for concurrent use.
type FixedTraceGenerator struct {
	token string
}

// NewFixedTraceGenerator creates a new fixed trace id generator.
//
// The id is typically set in the scenario YAML:
//
//	trace_id: "test-trace-00000000-0000-0000-0000-000000000001"
//
// If token is empty, Generate() returns "test-trace-default".
func NewFixedTraceGenerator(token string) *FixedTraceGenerator {
	if token == "" {
		token = "test-trace-default"
	}
	return &FixedTraceGenerator{token: token}
}

// Generate returns the fixed trace id.
//
// Implements execution.TraceGenerator.
func (g *FixedTraceGenerator) Generate() string {
	return g.token
}
