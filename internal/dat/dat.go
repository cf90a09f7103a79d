// Package dat reads and writes the AMPL-style data files that describe
// model instances, and converts SQLite input databases into them.
//
// The supported grammar is the subset the converter emits:
//
//	data ;
//	set time_future := 1990 2000 2010 ;
//	param GlobalDiscountRate := 0.05 ;
//	param Efficiency :=
//	  utopia  imp_coal  coal_mine  1970  coal  1.0
//	  ;
//
// "#" starts a comment that runs to end of line. Parameter rows are
// newline-delimited; the first row fixes the index arity.
package dat

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// File is a parsed data file: named sets and named parameter tables.
type File struct {
	Sets   map[string][]string
	Params map[string]*Param
}

// Param is a parameter table. Arity is the number of index columns; a
// scalar parameter has arity 0 and exactly one row.
type Param struct {
	Name  string
	Arity int
	Rows  []Row
}

// Row is one parameter record: index tuple plus value.
type Row struct {
	Index []string
	Value float64
}

// NewFile returns an empty data file.
func NewFile() *File {
	return &File{
		Sets:   make(map[string][]string),
		Params: make(map[string]*Param),
	}
}

// Set returns the named set, or nil.
func (f *File) Set(name string) []string { return f.Sets[name] }

// Param returns the named parameter table, or nil.
func (f *File) Param(name string) *Param { return f.Params[name] }

// Scalar returns the value of a scalar (arity 0) parameter. ok is false
// when the parameter is absent.
func (f *File) Scalar(name string) (v float64, ok bool) {
	p := f.Params[name]
	if p == nil || p.Arity != 0 || len(p.Rows) == 0 {
		return 0, false
	}
	return p.Rows[0].Value, true
}

// Merge copies every set and parameter of other into f. Parameter rows
// with an identical index replace earlier ones, so later files (or
// scenario-node overrides) shadow earlier data.
func (f *File) Merge(other *File) error {
	for name, vals := range other.Sets {
		f.Sets[name] = mergeSet(f.Sets[name], vals)
	}
	for name, p := range other.Params {
		dst := f.Params[name]
		if dst == nil {
			cp := &Param{Name: p.Name, Arity: p.Arity, Rows: append([]Row(nil), p.Rows...)}
			f.Params[name] = cp
			continue
		}
		if dst.Arity != p.Arity {
			return fmt.Errorf("param %s: arity mismatch (%d vs %d)", name, dst.Arity, p.Arity)
		}
		for _, r := range p.Rows {
			dst.put(r)
		}
	}
	return nil
}

func mergeSet(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range src {
		if !seen[v] {
			dst = append(dst, v)
			seen[v] = true
		}
	}
	return dst
}

func (p *Param) put(r Row) {
	key := strings.Join(r.Index, "\x00")
	for i, have := range p.Rows {
		if strings.Join(have.Index, "\x00") == key {
			p.Rows[i] = r
			return
		}
	}
	p.Rows = append(p.Rows, r)
}

// Lookup returns the value at the given index tuple.
func (p *Param) Lookup(index ...string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	key := strings.Join(index, "\x00")
	for _, r := range p.Rows {
		if strings.Join(r.Index, "\x00") == key {
			return r.Value, true
		}
	}
	return 0, false
}

// ParseFile reads and parses the data file at path.
func ParseFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dat file: %w", err)
	}
	f, err := Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseFiles parses every path and merges the results in order.
func ParseFiles(paths []string) (*File, error) {
	out := NewFile()
	for _, p := range paths {
		f, err := ParseFile(p)
		if err != nil {
			return nil, err
		}
		if err := out.Merge(f); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return out, nil
}

type lineTokens struct {
	line int
	toks []string
}

// tokenize splits the input into per-line token lists, stripping
// comments and separating ":=" and ";" into their own tokens.
func tokenize(input string) []lineTokens {
	var out []lineTokens
	for i, raw := range strings.Split(input, "\n") {
		if idx := strings.Index(raw, "#"); idx >= 0 {
			raw = raw[:idx]
		}
		raw = strings.ReplaceAll(raw, ":=", " := ")
		raw = strings.ReplaceAll(raw, ";", " ; ")
		toks := strings.Fields(raw)
		if len(toks) > 0 {
			out = append(out, lineTokens{line: i + 1, toks: toks})
		}
	}
	return out
}

// Parse parses data file content.
func Parse(input string) (*File, error) {
	f := NewFile()

	// Flatten to a token stream that remembers line numbers.
	type tok struct {
		s    string
		line int
	}
	var stream []tok
	for _, lt := range tokenize(input) {
		for _, s := range lt.toks {
			stream = append(stream, tok{s: s, line: lt.line})
		}
	}

	i := 0
	next := func() (tok, bool) {
		if i >= len(stream) {
			return tok{}, false
		}
		t := stream[i]
		i++
		return t, true
	}

	for {
		t, ok := next()
		if !ok {
			return f, nil
		}
		switch t.s {
		case "data":
			// optional "data ;" header
			if t2, ok := next(); !ok || t2.s != ";" {
				return nil, fmt.Errorf("line %d: expected ';' after 'data'", t.line)
			}
		case "set":
			name, ok := next()
			if !ok {
				return nil, fmt.Errorf("line %d: 'set' missing name", t.line)
			}
			if as, ok := next(); !ok || as.s != ":=" {
				return nil, fmt.Errorf("line %d: set %s: expected ':='", name.line, name.s)
			}
			var vals []string
			for {
				v, ok := next()
				if !ok {
					return nil, fmt.Errorf("line %d: set %s: missing ';'", name.line, name.s)
				}
				if v.s == ";" {
					break
				}
				vals = append(vals, v.s)
			}
			f.Sets[name.s] = mergeSet(f.Sets[name.s], vals)
		case "param":
			name, ok := next()
			if !ok {
				return nil, fmt.Errorf("line %d: 'param' missing name", t.line)
			}
			if as, ok := next(); !ok || as.s != ":=" {
				return nil, fmt.Errorf("line %d: param %s: expected ':='", name.line, name.s)
			}
			// Collect rows: tokens grouped by source line until ";".
			var rows [][]tok
			var cur []tok
			curLine := -1
			done := false
			for !done {
				v, ok := next()
				if !ok {
					return nil, fmt.Errorf("line %d: param %s: missing ';'", name.line, name.s)
				}
				if v.s == ";" {
					done = true
				} else {
					if v.line != curLine && len(cur) > 0 {
						rows = append(rows, cur)
						cur = nil
					}
					curLine = v.line
					cur = append(cur, v)
					continue
				}
				if len(cur) > 0 {
					rows = append(rows, cur)
				}
			}
			if len(rows) == 0 {
				return nil, fmt.Errorf("line %d: param %s: no rows", name.line, name.s)
			}

			arity := len(rows[0]) - 1
			p := f.Params[name.s]
			if p == nil {
				p = &Param{Name: name.s, Arity: arity}
				f.Params[name.s] = p
			} else if p.Arity != arity {
				return nil, fmt.Errorf("line %d: param %s: arity %d does not match earlier arity %d",
					rows[0][0].line, name.s, arity, p.Arity)
			}
			for _, r := range rows {
				if len(r)-1 != arity {
					return nil, fmt.Errorf("line %d: param %s: row has %d fields, want %d",
						r[0].line, name.s, len(r), arity+1)
				}
				last := r[len(r)-1]
				val, err := strconv.ParseFloat(last.s, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: param %s: non-numeric value %q", last.line, name.s, last.s)
				}
				idx := make([]string, arity)
				for j := 0; j < arity; j++ {
					idx[j] = r[j].s
				}
				p.put(Row{Index: idx, Value: val})
			}
		default:
			return nil, fmt.Errorf("line %d: unexpected token %q", t.line, t.s)
		}
	}
}

// Write emits the file in canonical form: header, sets sorted by name,
// then params sorted by name with rows in insertion order. Output is
// deterministic so converted files diff cleanly between runs.
func (f *File) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "data ;\n\n"); err != nil {
		return err
	}
	for _, name := range sortedKeys(f.Sets) {
		vals := f.Sets[name]
		if len(vals) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "set %s :=\n", name); err != nil {
			return err
		}
		for _, v := range vals {
			if _, err := fmt.Fprintf(w, " %s\n", v); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, " ;\n\n"); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(f.Params) {
		p := f.Params[name]
		if len(p.Rows) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "param %s :=\n", name); err != nil {
			return err
		}
		for _, r := range p.Rows {
			cols := append(append([]string(nil), r.Index...), formatValue(r.Value))
			if _, err := fmt.Fprintf(w, " %s\n", strings.Join(cols, "  ")); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, " ;\n\n"); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
