package testutil

import (
	"bytes"
	"context"
	_ "embed"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cubist/internal/execution"
	"github.com/roach88/cubist/internal/memcube"
)

//go:embed testdata/sales.yaml
var salesYAML []byte

// SalesCube returns a fresh copy of the shared test cube.
//
// Time and Product have an All member; Amount totals 59 across all cells
// and [Time].[2024].[Q2] has no facts.
func SalesCube(t testing.TB) *memcube.Cube {
	t.Helper()
	def, err := memcube.Decode(bytes.NewReader(salesYAML))
	require.NoError(t, err)
	c, err := memcube.Build(def)
	require.NoError(t, err)
	return c
}

// RunBound calls fn inside execution.Run with a root execution that never
// times out, and ends the execution with fn's outcome.
func RunBound(t testing.TB, fn func(ctx context.Context) error) error {
	t.Helper()
	e := execution.NewRoot(0, execution.NewMetadata("test", t.Name(), execution.PurposeOther, 0))
	err := execution.Run(context.Background(), e, fn)
	e.Finish(err)
	return err
}

// Evaluate calls fn with an evaluator over cube bound to a fresh execution.
// It fails the test if fn returns an error.
func Evaluate(t testing.TB, cube *memcube.Cube, fn func(ev *memcube.Evaluator) error) {
	t.Helper()
	err := RunBound(t, func(ctx context.Context) error {
		return fn(memcube.NewEvaluator(ctx, cube))
	})
	require.NoError(t, err)
}
