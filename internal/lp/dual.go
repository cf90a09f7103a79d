package lp

import (
	"context"
	"fmt"
	"math"
)

// SolveWithDuals solves a pure LP and additionally returns one dual
// value (shadow price) per named constraint, keyed by constraint name.
// The sign convention is d(objective)/d(RHS): relaxing a binding demand
// equality by one unit changes total cost by its dual value.
//
// Duals are obtained by solving the explicit dual program with the same
// simplex; strong duality is checked against the primal objective.
func (p *Problem) SolveWithDuals(ctx context.Context) (*Solution, map[string]float64, error) {
	if p.HasIntegers() {
		return nil, nil, ErrMixedIntegerDuals
	}
	sol, err := p.Solve(ctx)
	if err != nil {
		return nil, nil, err
	}

	duals, dualObj, err := p.solveDual(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("lp: dual solve: %w", err)
	}
	if gap := math.Abs(dualObj - sol.Objective); gap > 1e-6*(1+math.Abs(sol.Objective)) {
		return nil, nil, fmt.Errorf("lp: duality gap %g between primal %g and dual %g", gap, sol.Objective, dualObj)
	}
	return sol, duals, nil
}

// solveDual builds and solves the dual of the problem.
//
// Primal:  min c'x  s.t.  A x = b,  G x <= h,  x >= 0
// Dual:    max b'y + h'z  s.t.  A'y + G'z <= c,  z <= 0,  y free
//
// Upper bounds participate as rows of G; their multipliers are solved
// but not reported. The dual is fed back through the same general-form
// pipeline with w = -z >= 0.
func (p *Problem) solveDual(ctx context.Context) (map[string]float64, float64, error) {
	n := len(p.vars)

	// Assemble primal rows in the same order solveRelaxed uses, keeping
	// the named-constraint positions.
	type ineqRow struct {
		coefs map[int]float64
		rhs   float64
		name  string // "" for bound rows
		geSrc bool   // row came from a negated >= constraint
	}
	var ineqs []ineqRow
	var eqs []ineqRow

	for _, cn := range p.cons {
		switch cn.Sense {
		case LE:
			ineqs = append(ineqs, ineqRow{coefs: cn.coefs, rhs: cn.RHS, name: cn.Name})
		case GE:
			neg := make(map[int]float64, len(cn.coefs))
			for v, coef := range cn.coefs {
				neg[v] = -coef
			}
			ineqs = append(ineqs, ineqRow{coefs: neg, rhs: -cn.RHS, name: cn.Name, geSrc: true})
		case EQ:
			eqs = append(eqs, ineqRow{coefs: cn.coefs, rhs: cn.RHS, name: cn.Name})
		}
	}
	for i := 0; i < n; i++ {
		if up := p.vars[i].Upper; !math.IsInf(up, 1) {
			ineqs = append(ineqs, ineqRow{coefs: map[int]float64{i: 1}, rhs: up})
		}
	}

	nEq := len(eqs)
	nIneq := len(ineqs)

	// Dual variables: y (free, one per equality), w = -z (>= 0, one per
	// inequality). Objective: min -b'y + h'w. Constraints, one per
	// primal variable j: sum_i A[i][j] y_i - sum_k G[k][j] w_k <= c_j.
	dual := NewProblem(p.Name + ".dual")
	yIdx := make([]int, nEq)
	for i := range eqs {
		yIdx[i] = dual.Var(fmt.Sprintf("y%d", i))
	}
	wIdx := make([]int, nIneq)
	for k := range ineqs {
		wIdx[k] = dual.Var(fmt.Sprintf("w%d", k))
	}

	for i, row := range eqs {
		dual.AddObjective(yIdx[i], -row.rhs)
	}
	for k, row := range ineqs {
		dual.AddObjective(wIdx[k], row.rhs)
	}

	rows := make([]*Constraint, n)
	for j := 0; j < n; j++ {
		cj := p.objective[j]
		rows[j] = dual.AddConstraint(fmt.Sprintf("x%d", j), LE, cj)
	}
	for i, row := range eqs {
		for v, coef := range row.coefs {
			rows[v].Add(yIdx[i], coef)
		}
	}
	for k, row := range ineqs {
		for v, coef := range row.coefs {
			rows[v].Add(wIdx[k], -coef)
		}
	}

	// y is free: model it as y = yp - yn with both halves nonnegative.
	// Simpler here: solveRelaxed already treats every dual.Var as
	// nonnegative, so split each y explicitly.
	// (Splitting happens by construction: replace y_i with yp_i - yn_i.)
	for i := range eqs {
		yn := dual.Var(fmt.Sprintf("yn%d", i))
		dual.AddObjective(yn, eqs[i].rhs)
		for j := 0; j < n; j++ {
			if coef, ok := eqs[i].coefs[j]; ok {
				rows[j].Add(yn, -coef)
			}
		}
	}

	dsol, err := dual.solveRelaxed(ctx, nil, nil)
	if err != nil {
		return nil, 0, err
	}

	duals := make(map[string]float64, p.NumConstraints())
	for i, row := range eqs {
		y := dsol.ValueAt(yIdx[i]) - dsol.Value(fmt.Sprintf("yn%d", i))
		duals[row.name] = y
	}
	for k, row := range ineqs {
		if row.name == "" {
			continue
		}
		w := dsol.ValueAt(wIdx[k])
		if row.geSrc {
			// d(obj)/d(rhs) for the original >= row.
			duals[row.name] = w
		} else {
			duals[row.name] = -w
		}
	}

	// Dual objective was minimized as -(b'y + h'z); flip the sign back.
	return duals, -dsol.Objective, nil
}
