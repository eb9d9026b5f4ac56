package harness

// Check compares o with the scenario's expect clause.
func Check(s *Scenario, o *Outcome) *Report {
	r := newReport()
	e := s.Expect

	if e.Error != "" {
		if o.ErrorCode != e.Error {
			r.fail("expected compile error %s, got %q (%v)", e.Error, o.ErrorCode, o.Err)
		}
		return r
	}
	if o.ErrorCode != "" {
		r.fail("unexpected compile error: %v", o.Err)
		return r
	}

	state := e.State
	if state == "" {
		state = "DONE"
	}
	if o.State != state {
		r.fail("expected state %s, got %s (%v)", state, o.State, o.Err)
	}
	if e.Result != "" && o.Result != e.Result {
		r.fail("expected result %s, got %s", e.Result, o.Result)
	}
	return r
}
