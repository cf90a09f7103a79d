package lp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
)

// WriteLP writes the problem in CPLEX LP format for --keep_lp_file and
// external inspection. Output follows insertion order, so the same
// model instance always produces byte-identical files.
func (p *Problem) WriteLP(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\\ Problem: %s\n", p.Name)
	fmt.Fprintf(bw, "Minimize\n obj:")
	col := 5
	for _, v := range p.objOrder {
		col = writeTerm(bw, col, p.objective[v], p.vars[v].Name)
	}
	fmt.Fprintf(bw, "\nSubject To\n")

	for _, c := range p.cons {
		fmt.Fprintf(bw, " %s:", c.Name)
		col = len(c.Name) + 2
		for _, v := range c.order {
			col = writeTerm(bw, col, c.coefs[v], p.vars[v].Name)
		}
		fmt.Fprintf(bw, " %s %s\n", c.Sense, formatCoef(c.RHS))
	}

	var bounded, integers []int
	for i, v := range p.vars {
		if !math.IsInf(v.Upper, 1) {
			bounded = append(bounded, i)
		}
		if v.Integer {
			integers = append(integers, i)
		}
	}
	if len(bounded) > 0 {
		fmt.Fprintf(bw, "Bounds\n")
		for _, i := range bounded {
			fmt.Fprintf(bw, " 0 <= %s <= %s\n", p.vars[i].Name, formatCoef(p.vars[i].Upper))
		}
	}
	if len(integers) > 0 {
		fmt.Fprintf(bw, "Generals\n")
		for _, i := range integers {
			fmt.Fprintf(bw, " %s\n", p.vars[i].Name)
		}
	}
	fmt.Fprintf(bw, "End\n")
	return bw.Flush()
}

// writeTerm writes one "+ c name" term, folding lines near 72 columns
// the way LP files conventionally do.
func writeTerm(w *bufio.Writer, col int, coef float64, name string) int {
	if coef == 0 {
		return col
	}
	sign := "+"
	if coef < 0 {
		sign = "-"
		coef = -coef
	}
	term := fmt.Sprintf(" %s %s %s", sign, formatCoef(coef), name)
	if col+len(term) > 72 {
		w.WriteString("\n   ")
		col = 3
	}
	w.WriteString(term)
	return col + len(term)
}

func formatCoef(v float64) string {
	return strconv.FormatFloat(v, 'g', 12, 64)
}
