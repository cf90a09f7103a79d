package lp

import (
	"container/heap"
	"context"
	"errors"
	"math"
)

// integerTol is the tolerance for treating a relaxation value as integral.
const integerTol = 1e-6

type bbNode struct {
	lower []float64
	upper []float64
	bound float64 // relaxation objective, lower bound on the subtree
}

type bbQueue []*bbNode

func (q bbQueue) Len() int            { return len(q) }
func (q bbQueue) Less(i, j int) bool  { return q[i].bound < q[j].bound }
func (q bbQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *bbQueue) Push(x any)         { *q = append(*q, x.(*bbNode)) }
func (q *bbQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// solveBranchAndBound solves a problem with integer variables by
// best-first branch and bound on the simplex relaxation. The search is
// context-cancelable between node solves.
func (p *Problem) solveBranchAndBound(ctx context.Context) (*Solution, error) {
	n := len(p.vars)
	rootLower := make([]float64, n)
	rootUpper := make([]float64, n)
	for i, v := range p.vars {
		rootUpper[i] = v.Upper
	}

	rootSol, err := p.solveRelaxed(ctx, rootLower, rootUpper)
	if err != nil {
		return nil, err
	}

	var incumbent *Solution
	queue := &bbQueue{{lower: rootLower, upper: rootUpper, bound: rootSol.Objective}}
	heap.Init(queue)

	for queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := heap.Pop(queue).(*bbNode)
		if incumbent != nil && node.bound >= incumbent.Objective-integerTol {
			continue // cannot improve on the incumbent
		}

		sol, err := p.solveRelaxed(ctx, node.lower, node.upper)
		if err != nil {
			if errors.Is(err, ErrInfeasible) {
				continue
			}
			return nil, err
		}
		if incumbent != nil && sol.Objective >= incumbent.Objective-integerTol {
			continue
		}

		branchVar := -1
		worstFrac := integerTol
		for i, v := range p.vars {
			if !v.Integer {
				continue
			}
			x := sol.values[i]
			frac := math.Abs(x - math.Round(x))
			if frac > worstFrac {
				worstFrac = frac
				branchVar = i
			}
		}

		if branchVar < 0 {
			// Integral within tolerance: round and accept as incumbent.
			for i, v := range p.vars {
				if v.Integer {
					sol.values[i] = math.Round(sol.values[i])
				}
			}
			incumbent = sol
			continue
		}

		x := sol.values[branchVar]

		down := &bbNode{
			lower: append([]float64(nil), node.lower...),
			upper: append([]float64(nil), node.upper...),
			bound: sol.Objective,
		}
		down.upper[branchVar] = math.Floor(x)

		up := &bbNode{
			lower: append([]float64(nil), node.lower...),
			upper: append([]float64(nil), node.upper...),
			bound: sol.Objective,
		}
		up.lower[branchVar] = math.Ceil(x)

		heap.Push(queue, down)
		heap.Push(queue, up)
	}

	if incumbent == nil {
		return nil, ErrInfeasible
	}
	return incumbent, nil
}
