package memcube

import (
	"fmt"
	"sync"

	"github.com/roach88/cubist/internal/mdx"
	"github.com/roach88/cubist/internal/olap"
)

// Validator resolves names against a cube and keeps the statement's
// parameter table.
type Validator struct {
	cube *Cube

	mu     sync.RWMutex
	params map[string]*mdx.Parameter
}

var _ mdx.Validator = (*Validator)(nil)

// NewValidator creates a validator for cube with the given parameters.
func NewValidator(cube *Cube, params ...*mdx.Parameter) (*Validator, error) {
	v := &Validator{cube: cube, params: make(map[string]*mdx.Parameter)}
	for _, p := range params {
		if err := v.Define(p); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *Validator) Cube() olap.Cube { return v.cube }

// Define adds a statement parameter. Names are unique case-insensitively.
func (v *Validator) Define(p *mdx.Parameter) error {
	key := olap.FoldName(p.Name)
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, dup := v.params[key]; dup {
		return fmt.Errorf("parameter %q already defined", p.Name)
	}
	v.params[key] = p
	return nil
}

func (v *Validator) LookupParameter(name string) (*mdx.Parameter, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	p, ok := v.params[olap.FoldName(name)]
	return p, ok
}

// Resolve turns a bracketed unique name into a member, level, hierarchy or
// dimension expression, trying them in that order.
func (v *Validator) Resolve(uniqueName string) (mdx.Exp, error) {
	if m, ok := v.cube.LookupMember(uniqueName); ok {
		return &mdx.MemberExpr{Member: m}, nil
	}
	if l, ok := v.cube.LookupLevel(uniqueName); ok {
		return &mdx.LevelExpr{Level: l}, nil
	}
	if h, ok := v.cube.LookupHierarchy(uniqueName); ok {
		return &mdx.HierarchyExpr{Hierarchy: h}, nil
	}
	if d, ok := v.cube.LookupDimension(uniqueName); ok {
		return &mdx.DimensionExpr{Dimension: d}, nil
	}
	return nil, fmt.Errorf("%s not found in cube %s", uniqueName, v.cube.name)
}
