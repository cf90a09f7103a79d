package lp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const simplexTol = 1e-10

// Solve minimizes the problem. Pure LPs go straight to the simplex;
// problems with integer variables go through branch and bound.
func (p *Problem) Solve(ctx context.Context) (*Solution, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.HasIntegers() {
		return p.solveBranchAndBound(ctx)
	}
	return p.solveRelaxed(ctx, nil, nil)
}

// solveRelaxed solves the continuous relaxation, with optional
// per-variable bound overrides used by branch and bound. lower and
// upper may be nil (defaults: 0 and the variable's Upper).
func (p *Problem) solveRelaxed(ctx context.Context, lower, upper []float64) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := len(p.vars)
	c := make([]float64, n)
	for v, coef := range p.objective {
		c[v] = coef
	}

	// General form: G x <= h (inequalities and bounds), A x = b.
	var gRows [][]float64
	var h []float64
	var aRows [][]float64
	var b []float64

	row := func(cn *Constraint, negate bool) []float64 {
		r := make([]float64, n)
		for v, coef := range cn.coefs {
			if negate {
				r[v] = -coef
			} else {
				r[v] = coef
			}
		}
		return r
	}

	for _, cn := range p.cons {
		switch cn.Sense {
		case LE:
			gRows = append(gRows, row(cn, false))
			h = append(h, cn.RHS)
		case GE:
			gRows = append(gRows, row(cn, true))
			h = append(h, -cn.RHS)
		case EQ:
			aRows = append(aRows, row(cn, false))
			b = append(b, cn.RHS)
		}
	}

	// Bounds. Convert treats variables as free, so lower bounds
	// (including zero) must be explicit rows.
	for i := 0; i < n; i++ {
		lo := 0.0
		if lower != nil {
			lo = lower[i]
		}
		up := p.vars[i].Upper
		if upper != nil && upper[i] < up {
			up = upper[i]
		}
		if lo > up+simplexTol {
			return nil, ErrInfeasible
		}

		r := make([]float64, n)
		r[i] = -1
		gRows = append(gRows, r)
		h = append(h, -lo)

		if !math.IsInf(up, 1) {
			r := make([]float64, n)
			r[i] = 1
			gRows = append(gRows, r)
			h = append(h, up)
		}
	}

	var g mat.Matrix
	if len(gRows) > 0 {
		g = denseFromRows(gRows, n)
	}
	var a mat.Matrix
	if len(aRows) > 0 {
		a = denseFromRows(aRows, n)
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)

	opt, x, err := lp.Simplex(cStd, aStd, bStd, simplexTol, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return nil, ErrInfeasible
		case errors.Is(err, lp.ErrUnbounded):
			return nil, ErrUnbounded
		default:
			return nil, fmt.Errorf("lp: simplex: %w", err)
		}
	}

	// Convert splits each free variable into a positive and a negative
	// part; recover the originals from the first 2n entries.
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = x[i] - x[n+i]
	}

	index := make(map[string]int, n)
	for i, v := range p.vars {
		index[v.Name] = i
	}
	return &Solution{Objective: opt, values: values, index: index}, nil
}

func denseFromRows(rows [][]float64, cols int) *mat.Dense {
	d := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		d.SetRow(i, r)
	}
	return d
}
