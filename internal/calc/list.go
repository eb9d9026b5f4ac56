package calc

import (
	"iter"
	"strings"

	"github.com/roach88/cubist/internal/olap"
)

// TupleList is a materialized set of tuples of one arity.
//
// A frozen list is read-only: Append and Reset panic. Nodes declaring
// StyleList freeze what they return so a caller that mutates it fails
// loudly instead of corrupting the node's state.
type TupleList struct {
	arity  int
	tuples []olap.Tuple
	frozen bool
}

// NewTupleList creates an empty list of the given arity.
func NewTupleList(arity, capacity int) *TupleList {
	return &TupleList{arity: arity, tuples: make([]olap.Tuple, 0, capacity)}
}

// TupleListOf builds a list from tuples, which must all have the same arity.
func TupleListOf(arity int, tuples ...olap.Tuple) *TupleList {
	l := NewTupleList(arity, len(tuples))
	for _, t := range tuples {
		l.Append(t)
	}
	return l
}

func (l *TupleList) Arity() int { return l.arity }
func (l *TupleList) Len() int   { return len(l.tuples) }

// At returns the i'th tuple. The tuple must not be modified.
func (l *TupleList) At(i int) olap.Tuple { return l.tuples[i] }

// Append adds a copy of t.
func (l *TupleList) Append(t olap.Tuple) {
	if l.frozen {
		panic("calc: append to a frozen TupleList")
	}
	if len(t) != l.arity {
		panic("calc: tuple arity does not match list arity")
	}
	l.tuples = append(l.tuples, t.Clone())
}

// AppendMember adds the 1-tuple (m).
func (l *TupleList) AppendMember(m olap.Member) {
	l.Append(olap.Tuple{m})
}

// AppendAll adds every tuple of o.
func (l *TupleList) AppendAll(o *TupleList) {
	for _, t := range o.tuples {
		l.Append(t)
	}
}

// Reset empties the list, keeping its capacity.
func (l *TupleList) Reset() {
	if l.frozen {
		panic("calc: reset of a frozen TupleList")
	}
	clear(l.tuples)
	l.tuples = l.tuples[:0]
}

// Freeze makes the list read-only and returns it.
func (l *TupleList) Freeze() *TupleList {
	l.frozen = true
	return l
}

// Frozen reports whether the list is read-only.
func (l *TupleList) Frozen() bool { return l.frozen }

// Copy returns a mutable list with the same tuples.
func (l *TupleList) Copy() *TupleList {
	out := &TupleList{arity: l.arity, tuples: make([]olap.Tuple, len(l.tuples))}
	copy(out.tuples, l.tuples)
	return out
}

// Tuples returns a copy of the tuples slice.
func (l *TupleList) Tuples() []olap.Tuple {
	out := make([]olap.Tuple, len(l.tuples))
	copy(out, l.tuples)
	return out
}

// All iterates over the tuples in order.
func (l *TupleList) All() iter.Seq2[int, olap.Tuple] {
	return func(yield func(int, olap.Tuple) bool) {
		for i, t := range l.tuples {
			if !yield(i, t) {
				return
			}
		}
	}
}

// Cursor returns a cursor over a snapshot of the list.
func (l *TupleList) Cursor() TupleCursor {
	return &listCursor{arity: l.arity, tuples: l.tuples[:len(l.tuples):len(l.tuples)], pos: -1}
}

// String renders the list as "{(a), (b)}".
func (l *TupleList) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, t := range l.tuples {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
	b.WriteByte('}')
	return b.String()
}

// TupleCursor is a lazy, single-pass sequence of tuples, used like
// bufio.Scanner:
//
//	for c.Next() {
//		use(c.Tuple())
//	}
//	if err := c.Err(); err != nil { ... }
type TupleCursor interface {
	Arity() int
	Next() bool
	Tuple() olap.Tuple
	Err() error
}

type listCursor struct {
	arity  int
	tuples []olap.Tuple
	pos    int
}

func (c *listCursor) Arity() int { return c.arity }

func (c *listCursor) Next() bool {
	if c.pos+1 >= len(c.tuples) {
		c.pos = len(c.tuples)
		return false
	}
	c.pos++
	return true
}

func (c *listCursor) Tuple() olap.Tuple {
	if c.pos < 0 || c.pos >= len(c.tuples) {
		return nil
	}
	return c.tuples[c.pos]
}

func (c *listCursor) Err() error { return nil }

// FuncCursor is a cursor driven by a step function. The function returns
// the next tuple, false once exhausted, or an error, which ends the cursor.
type FuncCursor struct {
	arity int
	step  func() (olap.Tuple, bool, error)
	cur   olap.Tuple
	err   error
	done  bool
}

// NewFuncCursor creates a cursor over step.
func NewFuncCursor(arity int, step func() (olap.Tuple, bool, error)) *FuncCursor {
	return &FuncCursor{arity: arity, step: step}
}

func (c *FuncCursor) Arity() int        { return c.arity }
func (c *FuncCursor) Tuple() olap.Tuple { return c.cur }
func (c *FuncCursor) Err() error        { return c.err }

func (c *FuncCursor) Next() bool {
	if c.done {
		return false
	}
	t, ok, err := c.step()
	if err != nil || !ok {
		c.err = err
		c.cur = nil
		c.done = true
		return false
	}
	c.cur = t
	return true
}

// SkipNulls wraps c so that null tuples are never yielded.
func SkipNulls(c TupleCursor) TupleCursor {
	return NewFuncCursor(c.Arity(), func() (olap.Tuple, bool, error) {
		for c.Next() {
			if t := c.Tuple(); !t.IsNull() {
				return t, true, nil
			}
		}
		return nil, false, c.Err()
	})
}

// Drain reads c to the end into a new mutable list, skipping null tuples.
func Drain(ev Evaluator, c TupleCursor) (*TupleList, error) {
	l := NewTupleList(c.Arity(), 0)
	for c.Next() {
		if err := Checkpoint(ev); err != nil {
			return nil, err
		}
		if t := c.Tuple(); !t.IsNull() {
			l.Append(t)
		}
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	return l, nil
}

// WithoutNulls returns l itself when it holds no null tuple, otherwise a
// new mutable list without them.
func WithoutNulls(l *TupleList) *TupleList {
	first := -1
	for i, t := range l.tuples {
		if t.IsNull() {
			first = i
			break
		}
	}
	if first < 0 {
		return l
	}
	out := NewTupleList(l.arity, len(l.tuples)-1)
	out.tuples = append(out.tuples, l.tuples[:first]...)
	for _, t := range l.tuples[first+1:] {
		if !t.IsNull() {
			out.tuples = append(out.tuples, t)
		}
	}
	return out
}
