// Package lp builds and solves the linear programs assembled from model
// instances. Problems hold named non-negative variables and named
// constraints; names are stable so dual values and LP-file output stay
// attributable to the model structure that produced them.
package lp

import (
	"errors"
	"fmt"
	"math"
)

// Sense is the relation of a constraint row.
type Sense int

const (
	LE Sense = iota // <=
	GE              // >=
	EQ              // ==
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return "="
	}
}

var (
	// ErrInfeasible is returned when no assignment satisfies the constraints.
	ErrInfeasible = errors.New("lp: problem is infeasible")
	// ErrUnbounded is returned when the objective can decrease without bound.
	ErrUnbounded = errors.New("lp: problem is unbounded")
	// ErrEmpty is returned for a problem with no variables.
	ErrEmpty = errors.New("lp: problem has no variables")
	// ErrMixedIntegerDuals is returned when duals are requested for a
	// problem with integer variables.
	ErrMixedIntegerDuals = errors.New("lp: duals are not defined for problems with integer variables")
)

// Variable is a non-negative decision variable. Upper is +Inf unless
// bounded; Integer marks it for branch and bound.
type Variable struct {
	Name    string
	Upper   float64
	Integer bool
}

// Constraint is one named row. Coefficients are sparse, keyed by
// variable index.
type Constraint struct {
	Name  string
	Sense Sense
	RHS   float64
	coefs map[int]float64
	order []int // insertion order of variable indices
}

// Add accumulates a coefficient for the variable with index v.
func (c *Constraint) Add(v int, coef float64) {
	if coef == 0 {
		return
	}
	if _, ok := c.coefs[v]; !ok {
		c.order = append(c.order, v)
	}
	c.coefs[v] += coef
}

// Problem is a minimization LP (or MILP when integer variables are
// present). Variable and constraint ordering is insertion order and
// assembly is deterministic for a given model instance.
type Problem struct {
	Name string

	vars     []Variable
	varIndex map[string]int

	cons     []*Constraint
	conIndex map[string]int

	objective map[int]float64
	objOrder  []int
}

// NewProblem returns an empty problem with the given name.
func NewProblem(name string) *Problem {
	return &Problem{
		Name:      name,
		varIndex:  make(map[string]int),
		conIndex:  make(map[string]int),
		objective: make(map[int]float64),
	}
}

// Var returns the index for the named variable, creating it on first
// use. New variables are continuous, non-negative, and unbounded above.
func (p *Problem) Var(name string) int {
	if i, ok := p.varIndex[name]; ok {
		return i
	}
	i := len(p.vars)
	p.vars = append(p.vars, Variable{Name: name, Upper: math.Inf(1)})
	p.varIndex[name] = i
	return i
}

// VarName returns the name of the variable with index v.
func (p *Problem) VarName(v int) string { return p.vars[v].Name }

// HasVar reports whether the named variable exists.
func (p *Problem) HasVar(name string) bool {
	_, ok := p.varIndex[name]
	return ok
}

// SetUpper bounds the variable above.
func (p *Problem) SetUpper(v int, upper float64) {
	p.vars[v].Upper = upper
}

// SetInteger marks the variable as integral.
func (p *Problem) SetInteger(v int) {
	p.vars[v].Integer = true
}

// AddObjective accumulates an objective coefficient.
func (p *Problem) AddObjective(v int, coef float64) {
	if coef == 0 {
		return
	}
	if _, ok := p.objective[v]; !ok {
		p.objOrder = append(p.objOrder, v)
	}
	p.objective[v] += coef
}

// ResetObjective clears the objective so a solved problem can be
// re-costed for alternative-objective runs.
func (p *Problem) ResetObjective() {
	p.objective = make(map[int]float64)
	p.objOrder = nil
}

// AddConstraint creates (or returns the existing) named constraint.
// Reusing a name extends the same row, which is how per-slice sums
// accumulate across nested assembly loops.
func (p *Problem) AddConstraint(name string, sense Sense, rhs float64) *Constraint {
	if i, ok := p.conIndex[name]; ok {
		return p.cons[i]
	}
	c := &Constraint{Name: name, Sense: sense, RHS: rhs, coefs: make(map[int]float64)}
	p.conIndex[name] = len(p.cons)
	p.cons = append(p.cons, c)
	return c
}

// Constraint returns the named constraint, or nil.
func (p *Problem) Constraint(name string) *Constraint {
	if i, ok := p.conIndex[name]; ok {
		return p.cons[i]
	}
	return nil
}

// NumVariables returns the variable count.
func (p *Problem) NumVariables() int { return len(p.vars) }

// NumConstraints returns the constraint count.
func (p *Problem) NumConstraints() int { return len(p.cons) }

// HasIntegers reports whether any variable is integral.
func (p *Problem) HasIntegers() bool {
	for _, v := range p.vars {
		if v.Integer {
			return true
		}
	}
	return false
}

// Solution is the result of a successful solve.
type Solution struct {
	Objective float64
	values    []float64
	index     map[string]int
}

// Value returns the solved value of the named variable (0 when absent).
func (s *Solution) Value(name string) float64 {
	if i, ok := s.index[name]; ok {
		return s.values[i]
	}
	return 0
}

// ValueAt returns the solved value by variable index.
func (s *Solution) ValueAt(v int) float64 { return s.values[v] }

// validate checks structural invariants before a solve.
func (p *Problem) validate() error {
	if len(p.vars) == 0 {
		return ErrEmpty
	}
	// Every variable must appear somewhere, or the model assembly
	// produced a variable nothing constrains.
	used := make([]bool, len(p.vars))
	for v := range p.objective {
		used[v] = true
	}
	for _, c := range p.cons {
		for v := range c.coefs {
			used[v] = true
		}
	}
	for i, ok := range used {
		if !ok {
			return fmt.Errorf("lp: variable %s appears in no constraint or objective", p.vars[i].Name)
		}
	}
	return nil
}
