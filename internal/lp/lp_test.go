package lp

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveSimple(t *testing.T) {
	p := NewProblem("simple")
	x := p.Var("x")
	y := p.Var("y")
	p.AddObjective(x, 2)
	p.AddObjective(y, 3)

	c := p.AddConstraint("cover", GE, 10)
	c.Add(x, 1)
	c.Add(y, 1)
	p.SetUpper(x, 6)

	sol, err := p.Solve(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 24.0, sol.Objective, 1e-8)
	assert.InDelta(t, 6.0, sol.Value("x"), 1e-8)
	assert.InDelta(t, 4.0, sol.Value("y"), 1e-8)
}

func TestSolveEquality(t *testing.T) {
	p := NewProblem("eq")
	x := p.Var("x")
	y := p.Var("y")
	p.AddObjective(x, 1)
	p.AddObjective(y, 2)

	c := p.AddConstraint("balance", EQ, 10)
	c.Add(x, 1)
	c.Add(y, 1)

	sol, err := p.Solve(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 10.0, sol.Objective, 1e-8)
	assert.InDelta(t, 10.0, sol.Value("x"), 1e-8)
}

func TestSolveInfeasible(t *testing.T) {
	p := NewProblem("infeasible")
	x := p.Var("x")
	p.AddObjective(x, 1)
	p.AddConstraint("lo", GE, 2).Add(x, 1)
	p.AddConstraint("hi", LE, 1).Add(x, 1)

	_, err := p.Solve(context.Background())
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestSolveUnbounded(t *testing.T) {
	p := NewProblem("unbounded")
	x := p.Var("x")
	p.AddObjective(x, -1)
	p.AddConstraint("lo", GE, 0).Add(x, 1)

	_, err := p.Solve(context.Background())
	assert.ErrorIs(t, err, ErrUnbounded)
}

func TestSolveEmpty(t *testing.T) {
	p := NewProblem("empty")
	_, err := p.Solve(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSolveRejectsUnusedVariable(t *testing.T) {
	p := NewProblem("dangling")
	x := p.Var("x")
	p.Var("orphan")
	p.AddObjective(x, 1)
	p.AddConstraint("lo", GE, 1).Add(x, 1)

	_, err := p.Solve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orphan")
}

func TestSolveWithDuals(t *testing.T) {
	p := NewProblem("duals")
	x := p.Var("x")
	y := p.Var("y")
	p.AddObjective(x, 1)
	p.AddObjective(y, 2)

	bal := p.AddConstraint("balance", EQ, 10)
	bal.Add(x, 1)
	bal.Add(y, 1)
	cap := p.AddConstraint("cap_x", LE, 4)
	cap.Add(x, 1)

	sol, duals, err := p.SolveWithDuals(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 16.0, sol.Objective, 1e-8)

	// Relaxing the balance by one unit adds one unit of y: +2.
	assert.InDelta(t, 2.0, duals["balance"], 1e-6)
	// Relaxing cap_x by one unit swaps a y for an x: -1.
	assert.InDelta(t, -1.0, duals["cap_x"], 1e-6)
}

func TestSolveWithDualsGE(t *testing.T) {
	p := NewProblem("duals-ge")
	x := p.Var("x")
	p.AddObjective(x, 3)
	p.AddConstraint("demand", GE, 5).Add(x, 1)

	sol, duals, err := p.SolveWithDuals(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 15.0, sol.Objective, 1e-8)
	assert.InDelta(t, 3.0, duals["demand"], 1e-6)
}

func TestSolveWithDualsRejectsIntegers(t *testing.T) {
	p := NewProblem("milp")
	x := p.Var("x")
	p.SetInteger(x)
	p.AddObjective(x, 1)
	p.AddConstraint("lo", GE, 1).Add(x, 1)

	_, _, err := p.SolveWithDuals(context.Background())
	assert.ErrorIs(t, err, ErrMixedIntegerDuals)
}

func TestBranchAndBound(t *testing.T) {
	p := NewProblem("bb")
	x := p.Var("x")
	p.SetInteger(x)
	p.AddObjective(x, 1)
	p.AddConstraint("lo", GE, 2.5).Add(x, 1)

	sol, err := p.Solve(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 3.0, sol.Value("x"), 1e-9)
	assert.InDelta(t, 3.0, sol.Objective, 1e-9)
}

func TestBranchAndBoundTwoVars(t *testing.T) {
	// Cover 7.3 units of demand with units of size 2 and 3; unit costs
	// make the relaxation fractional.
	p := NewProblem("bb2")
	a := p.Var("a")
	b := p.Var("b")
	p.SetInteger(a)
	p.SetInteger(b)
	p.AddObjective(a, 5)
	p.AddObjective(b, 6)

	c := p.AddConstraint("cover", GE, 7.3)
	c.Add(a, 2)
	c.Add(b, 3)

	sol, err := p.Solve(context.Background())
	require.NoError(t, err)

	// Optimum is a=1, b=2 (cost 17, covers 8).
	assert.InDelta(t, 17.0, sol.Objective, 1e-6)
	assert.InDelta(t, 1.0, sol.Value("a"), 1e-6)
	assert.InDelta(t, 2.0, sol.Value("b"), 1e-6)
}

func TestBranchAndBoundCancel(t *testing.T) {
	p := NewProblem("bb-cancel")
	x := p.Var("x")
	p.SetInteger(x)
	p.AddObjective(x, 1)
	p.AddConstraint("lo", GE, 2.5).Add(x, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Solve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteLP(t *testing.T) {
	p := NewProblem("write")
	x := p.Var("Capacity(r1,solar,2030)")
	y := p.Var("y")
	p.SetInteger(y)
	p.SetUpper(x, 12)
	p.AddObjective(x, 1.5)
	p.AddObjective(y, 2)

	c := p.AddConstraint("Demand(r1,2030)", GE, 10)
	c.Add(x, 1)
	c.Add(y, -0.5)

	var b strings.Builder
	require.NoError(t, p.WriteLP(&b))
	out := b.String()

	for _, want := range []string{
		"\\ Problem: write",
		"Minimize",
		"Subject To",
		"Demand(r1,2030):",
		">= 10",
		"Bounds",
		"0 <= Capacity(r1,solar,2030) <= 12",
		"Generals",
		"End",
	} {
		assert.Contains(t, out, want)
	}

	var b2 strings.Builder
	require.NoError(t, p.WriteLP(&b2))
	assert.Equal(t, out, b2.String(), "LP output must be deterministic")
}
