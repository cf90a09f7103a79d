package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/meridian-energy/horizon.plan/internal/dat"
)

// The original-style structure format: sets Stages, Nodes, Scenarios;
// indexed sets Children[node] and StagePeriods[stage]; params NodeStage,
// ConditionalProbability, ScenarioLeafNode. Param values here can be
// words (node and stage names), so the numeric model-data parser does
// not apply; the format gets its own small reader. Node overrides live
// next to the structure file as <node>.dat fragments.
func parseDatFile(path string) (*Tree, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sets, params, err := scanStructure(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	t := &Tree{
		StagePeriods: make(map[string][]int),
		nodes:        make(map[string]*Node),
	}
	t.Stages = sets["Stages"]
	for _, s := range t.Stages {
		periods, err := intValues(sets["StagePeriods["+s+"]"])
		if err != nil {
			return nil, fmt.Errorf("%s: StagePeriods[%s]: %w", path, s, err)
		}
		t.StagePeriods[s] = periods
	}

	for _, name := range sets["Nodes"] {
		t.nodes[name] = &Node{Name: name, Prob: 1}
	}
	for _, kv := range params["NodeStage"] {
		n := t.nodes[kv[0]]
		if n == nil {
			return nil, badTree("NodeStage names unknown node %q", kv[0])
		}
		n.Stage = kv[1]
	}
	for _, kv := range params["ConditionalProbability"] {
		n := t.nodes[kv[0]]
		if n == nil {
			return nil, badTree("ConditionalProbability names unknown node %q", kv[0])
		}
		p, err := strconv.ParseFloat(kv[1], 64)
		if err != nil {
			return nil, badTree("ConditionalProbability for %q: bad value %q", kv[0], kv[1])
		}
		n.Prob = p
	}

	child := make(map[string]bool)
	for _, name := range sets["Nodes"] {
		for _, c := range sets["Children["+name+"]"] {
			cn := t.nodes[c]
			if cn == nil {
				return nil, badTree("Children[%s] names unknown node %q", name, c)
			}
			cn.parent = t.nodes[name]
			t.nodes[name].Children = append(t.nodes[name].Children, cn)
			child[c] = true
		}
	}
	for _, name := range sets["Nodes"] {
		if !child[name] {
			if t.Root != nil {
				return nil, badTree("nodes %q and %q both have no parent", t.Root.Name, name)
			}
			t.Root = t.nodes[name]
		}
	}

	for _, sc := range sets["Scenarios"] {
		t.Scenarios = append(t.Scenarios, &Scenario{Name: sc})
	}
	leafOf := make(map[string]string)
	for _, kv := range params["ScenarioLeafNode"] {
		leafOf[kv[0]] = kv[1]
	}
	for _, sc := range t.Scenarios {
		sc.Leaf = t.nodes[leafOf[sc.Name]]
	}

	// Per-node override fragments, when present on disk.
	dir := filepath.Dir(path)
	for _, n := range t.nodes {
		frag := filepath.Join(dir, n.Name+".dat")
		if _, err := os.Stat(frag); err != nil {
			continue
		}
		f, err := dat.ParseFile(frag)
		if err != nil {
			return nil, fmt.Errorf("override for node %s: %w", n.Name, err)
		}
		n.Override = f
	}
	return t, nil
}

// scanStructure tokenizes "set NAME := values ;" and
// "param NAME := key value ... ;" statements. '#' comments run to end
// of line.
func scanStructure(input string) (map[string][]string, map[string][][2]string, error) {
	var tokens []string
	for _, line := range strings.Split(input, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		tokens = append(tokens, strings.Fields(line)...)
	}

	sets := make(map[string][]string)
	params := make(map[string][][2]string)
	i := 0
	next := func() (string, bool) {
		if i >= len(tokens) {
			return "", false
		}
		tok := tokens[i]
		i++
		return tok, true
	}

	for {
		kw, ok := next()
		if !ok {
			return sets, params, nil
		}
		name, ok := next()
		if !ok {
			return nil, nil, fmt.Errorf("dangling %q at end of file", kw)
		}
		if assign, ok := next(); !ok || assign != ":=" {
			return nil, nil, fmt.Errorf("%s %s: expected :=", kw, name)
		}
		var vals []string
		for {
			tok, ok := next()
			if !ok {
				return nil, nil, fmt.Errorf("%s %s: missing terminating ;", kw, name)
			}
			if tok == ";" {
				break
			}
			vals = append(vals, strings.TrimSuffix(tok, ";"))
			if strings.HasSuffix(tok, ";") {
				break
			}
		}
		switch kw {
		case "set":
			sets[name] = append(sets[name], vals...)
		case "param":
			if len(vals)%2 != 0 {
				return nil, nil, fmt.Errorf("param %s: odd number of tokens", name)
			}
			for j := 0; j < len(vals); j += 2 {
				params[name] = append(params[name], [2]string{vals[j], vals[j+1]})
			}
		default:
			return nil, nil, fmt.Errorf("unexpected keyword %q", kw)
		}
	}
}

func intValues(vals []string) ([]int, error) {
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("non-integer period %q", v)
		}
		out = append(out, n)
	}
	return out, nil
}
