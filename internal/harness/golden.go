package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden runs s, checks its expect clause and compares the outcome
// snapshot against testdata/golden/<name>.golden.
func RunWithGolden(t *testing.T, s *Scenario, opts ...Option) (*Outcome, error) {
	t.Helper()

	o, err := Run(s, opts...)
	if err != nil {
		return nil, err
	}
	if r := Check(s, o); !r.Pass {
		for _, msg := range r.Errors {
			t.Errorf("%s: %s", s.Name, msg)
		}
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, o.Snapshot())
	return o, nil
}
