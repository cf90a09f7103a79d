// Package scenario reads scenario-tree structure files and assembles
// extensive-form stochastic instances: one linear program covering every
// scenario, with variables attached to tree nodes so scenarios that
// share history share decisions.
package scenario

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/meridian-energy/horizon.plan/internal/dat"
	"github.com/meridian-energy/horizon.plan/internal/model"
)

// ErrBadTree is returned for structurally invalid scenario trees.
var ErrBadTree = errors.New("scenario: invalid scenario tree")

const probTol = 1e-6

// Node is one vertex of the scenario tree.
type Node struct {
	Name     string
	Stage    string
	Prob     float64 // conditional on the parent
	Children []*Node
	// Override holds this node's sparse parameter fragment, nil when
	// the node carries no overrides.
	Override *dat.File

	parent *Node
}

// Path returns the root→node chain.
func (n *Node) Path() []*Node {
	var out []*Node
	for cur := n; cur != nil; cur = cur.parent {
		out = append(out, cur)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Scenario is one root→leaf realization.
type Scenario struct {
	Name string
	Prob float64 // product of conditional probabilities
	Leaf *Node
}

// Path returns the scenario's root→leaf node chain.
func (s *Scenario) Path() []*Node { return s.Leaf.Path() }

// Tree is a validated scenario tree.
type Tree struct {
	Root         *Node
	Stages       []string         // declaration order
	StagePeriods map[string][]int // model periods per stage
	Scenarios    []*Scenario      // sorted by name

	nodes map[string]*Node
}

// Load reads a scenario structure file, dispatching on extension:
// .yaml/.yml for the nested form, anything else for the original-style
// dat format. Node override fragments are resolved relative to the
// structure file's directory.
func Load(path string) (*Tree, error) {
	var t *Tree
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		t, err = parseYAMLFile(path)
	default:
		t, err = parseDatFile(path)
	}
	if err != nil {
		return nil, err
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Node returns the named node, or nil.
func (t *Tree) Node(name string) *Node { return t.nodes[name] }

func badTree(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadTree, fmt.Sprintf(format, args...))
}

func (t *Tree) validate() error {
	if t.Root == nil {
		return badTree("no root node")
	}
	if len(t.Stages) == 0 {
		return badTree("no stages declared")
	}
	if math.Abs(t.Root.Prob-1) > probTol {
		return badTree("root node %q has probability %g, want 1", t.Root.Name, t.Root.Prob)
	}
	if t.Root.Stage != t.Stages[0] {
		return badTree("root node %q is in stage %q, want first stage %q", t.Root.Name, t.Root.Stage, t.Stages[0])
	}

	stageIdx := make(map[string]int, len(t.Stages))
	for i, s := range t.Stages {
		stageIdx[s] = i
	}
	for _, s := range t.Stages {
		if len(t.StagePeriods[s]) == 0 {
			return badTree("stage %q has no periods", s)
		}
	}

	leaves := make(map[string]*Node)
	var walk func(n *Node, path []string) error
	walk = func(n *Node, path []string) error {
		path = append(path, n.Name)
		si, ok := stageIdx[n.Stage]
		if !ok {
			return badTree("node %q names unknown stage %q", n.Name, n.Stage)
		}
		if n.parent != nil && si != stageIdx[n.parent.Stage]+1 {
			return badTree("node %q (stage %q) does not follow its parent's stage %q", n.Name, n.Stage, n.parent.Stage)
		}
		if len(n.Children) == 0 {
			if si != len(t.Stages)-1 {
				return badTree("leaf %q is in stage %q, not the final stage", n.Name, n.Stage)
			}
			leaves[n.Name] = n
			return nil
		}
		var sum float64
		for _, c := range n.Children {
			sum += c.Prob
		}
		if math.Abs(sum-1) > probTol {
			return badTree("children of %s sum to %g, want 1", strings.Join(path, "/"), sum)
		}
		for _, c := range n.Children {
			if err := walk(c, path); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t.Root, nil); err != nil {
		return err
	}

	if len(t.Scenarios) == 0 {
		return badTree("no scenarios declared")
	}
	named := make(map[string]string) // leaf -> scenario
	for _, sc := range t.Scenarios {
		if sc.Leaf == nil {
			return badTree("scenario %q names no leaf node", sc.Name)
		}
		if _, ok := leaves[sc.Leaf.Name]; !ok {
			return badTree("scenario %q names %q, which is not a leaf", sc.Name, sc.Leaf.Name)
		}
		if prev, ok := named[sc.Leaf.Name]; ok {
			return badTree("leaf %q is named by scenarios %q and %q", sc.Leaf.Name, prev, sc.Name)
		}
		named[sc.Leaf.Name] = sc.Name
		sc.Prob = 1
		for _, n := range sc.Path() {
			sc.Prob *= n.Prob
		}
	}
	for name := range leaves {
		if _, ok := named[name]; !ok {
			return badTree("leaf %q is named by no scenario", name)
		}
	}
	sort.Slice(t.Scenarios, func(i, j int) bool { return t.Scenarios[i].Name < t.Scenarios[j].Name })

	// Overrides may only touch parameters the model loader knows.
	for _, n := range t.nodes {
		if n.Override == nil {
			continue
		}
		for name := range n.Override.Params {
			if !model.KnownParam(name) {
				return badTree("node %q overrides unknown parameter %q", n.Name, name)
			}
		}
	}
	return nil
}

// CheckPeriods verifies that the stages cover the optimize periods in
// order, with no gaps and no extras.
func (t *Tree) CheckPeriods(optimize []int) error {
	var covered []int
	for _, s := range t.Stages {
		covered = append(covered, t.StagePeriods[s]...)
	}
	if len(covered) != len(optimize) {
		return badTree("stages cover %d periods, model has %d", len(covered), len(optimize))
	}
	for i := range covered {
		if covered[i] != optimize[i] {
			return badTree("stage periods %v do not match optimize periods %v", covered, optimize)
		}
	}
	return nil
}

// stageOf maps an owning period to a stage index: exist vintages fall in
// the first stage, periods beyond the last stage in the final one.
func (t *Tree) stageOf(period int) int {
	for i, s := range t.Stages {
		for _, p := range t.StagePeriods[s] {
			if p == period {
				return i
			}
		}
	}
	if len(t.Stages) > 0 && period > t.StagePeriods[t.Stages[len(t.Stages)-1]][0] {
		return len(t.Stages) - 1
	}
	return 0
}

// ScenarioData merges the base data with the scenario's node overrides,
// root to leaf, later nodes shadowing earlier ones.
func (t *Tree) ScenarioData(base *dat.File, sc *Scenario) (*dat.File, error) {
	merged := dat.NewFile()
	if err := merged.Merge(base); err != nil {
		return nil, err
	}
	for _, n := range sc.Path() {
		if n.Override == nil {
			continue
		}
		if err := merged.Merge(n.Override); err != nil {
			return nil, fmt.Errorf("scenario %s: override at node %s: %w", sc.Name, n.Name, err)
		}
	}
	return merged, nil
}
