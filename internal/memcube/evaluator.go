package memcube

import (
	"context"
	"fmt"

	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/olap"
)

// Evaluator holds a current member for every hierarchy of a cube.
//
// Thread-safety: an Evaluator is owned by one evaluation at a time, like
// the calc tree it drives. Fork gives concurrent work its own copy.
type Evaluator struct {
	ctx     context.Context
	cube    *Cube
	current []olap.Member
	undo    []change
}

type change struct {
	ordinal int
	prev    olap.Member
}

var _ calc.Evaluator = (*Evaluator)(nil)

// NewEvaluator creates an evaluator positioned on every hierarchy's
// default member. ctx should be the context passed to execution.Run.
func NewEvaluator(ctx context.Context, cube *Cube) *Evaluator {
	current := make([]olap.Member, len(cube.hierarchies))
	for i, h := range cube.hierarchies {
		current[i] = h.dflt
	}
	return &Evaluator{ctx: ctx, cube: cube, current: current}
}

// Fork returns an evaluator with the same current members bound to ctx.
func (e *Evaluator) Fork(ctx context.Context) *Evaluator {
	current := make([]olap.Member, len(e.current))
	copy(current, e.current)
	return &Evaluator{ctx: ctx, cube: e.cube, current: current}
}

func (e *Evaluator) Context() context.Context        { return e.ctx }
func (e *Evaluator) Cube() olap.Cube                 { return e.cube }
func (e *Evaluator) SchemaReader() olap.SchemaReader { return e.cube }

// CurrentMember returns the current member of h, or h's default member if
// h is not part of the cube.
func (e *Evaluator) CurrentMember(h olap.Hierarchy) olap.Member {
	if i, ok := e.ordinal(h); ok {
		return e.current[i]
	}
	if h == nil {
		return nil
	}
	return h.DefaultMember()
}

// SetContext makes m current in its hierarchy and returns the member it
// replaced. Members of hierarchies outside the cube are ignored.
func (e *Evaluator) SetContext(m olap.Member) olap.Member {
	if m == nil {
		return nil
	}
	i, ok := e.ordinal(m.Hierarchy())
	if !ok {
		return nil
	}
	prev := e.current[i]
	e.current[i] = m
	e.undo = append(e.undo, change{ordinal: i, prev: prev})
	return prev
}

func (e *Evaluator) Savepoint() int { return len(e.undo) }

func (e *Evaluator) Restore(savepoint int) {
	for len(e.undo) > savepoint {
		c := e.undo[len(e.undo)-1]
		e.undo = e.undo[:len(e.undo)-1]
		e.current[c.ordinal] = c.prev
	}
}

func (e *Evaluator) ordinal(h olap.Hierarchy) (int, bool) {
	if h == nil {
		return 0, false
	}
	if mh, ok := h.(*Hierarchy); ok && mh.ordinal < len(e.cube.hierarchies) && e.cube.hierarchies[mh.ordinal] == mh {
		return mh.ordinal, true
	}
	if mh, ok := e.cube.byHierarchy[olap.FoldName(h.UniqueName())]; ok {
		return mh.ordinal, true
	}
	return 0, false
}

// EvaluateCurrent returns the cell at the current context: the fact value
// at a leaf coordinate, the sum of the children's values otherwise, and
// nil when there is nothing underneath or any current member is null.
func (e *Evaluator) EvaluateCurrent() (any, error) {
	coord := make([]*Member, len(e.current))
	for i, m := range e.current {
		if olap.IsNullMember(m) {
			return nil, nil
		}
		mm, ok := m.(*Member)
		if !ok {
			var found bool
			if mm, found = e.cube.LookupMember(m.UniqueName()); !found {
				return nil, fmt.Errorf("member %s is not in cube %s", m.UniqueName(), e.cube.name)
			}
		}
		coord[i] = mm
	}
	v, ok, err := e.rollup(coord)
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

func (e *Evaluator) rollup(coord []*Member) (float64, bool, error) {
	for i, m := range coord {
		if m.IsLeaf() {
			continue
		}
		if err := calc.Checkpoint(e); err != nil {
			return 0, false, err
		}
		var sum float64
		var found bool
		for _, child := range m.children {
			coord[i] = child
			v, ok, err := e.rollup(coord)
			if err != nil {
				coord[i] = m
				return 0, false, err
			}
			if ok {
				sum += v
				found = true
			}
		}
		coord[i] = m
		return sum, found, nil
	}
	v, ok := e.cube.cells[keyOf(coord)]
	return v, ok, nil
}
