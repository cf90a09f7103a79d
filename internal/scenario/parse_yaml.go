package scenario

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/meridian-energy/horizon.plan/internal/dat"
	"gopkg.in/yaml.v3"
)

// yamlTree is the nested YAML form of a scenario structure file.
type yamlTree struct {
	Stages []struct {
		Name    string `yaml:"name"`
		Periods []int  `yaml:"periods"`
	} `yaml:"stages"`
	Root      *yamlNode `yaml:"root"`
	Scenarios []struct {
		Name string `yaml:"name"`
		Leaf string `yaml:"leaf"`
	} `yaml:"scenarios"`
}

type yamlNode struct {
	Name        string      `yaml:"name"`
	Stage       string      `yaml:"stage"`
	Probability *float64    `yaml:"probability"`
	Override    string      `yaml:"override"` // dat fragment path
	Data        string      `yaml:"data"`     // inline dat fragment
	Children    []*yamlNode `yaml:"children"`
}

func parseYAMLFile(path string) (*Tree, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var yt yamlTree
	if err := yaml.Unmarshal(raw, &yt); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if yt.Root == nil {
		return nil, badTree("%s: no root node", path)
	}

	t := &Tree{
		StagePeriods: make(map[string][]int),
		nodes:        make(map[string]*Node),
	}
	for _, s := range yt.Stages {
		t.Stages = append(t.Stages, s.Name)
		t.StagePeriods[s.Name] = s.Periods
	}

	dir := filepath.Dir(path)
	var convert func(yn *yamlNode, parent *Node, stage int) (*Node, error)
	convert = func(yn *yamlNode, parent *Node, stage int) (*Node, error) {
		if yn.Name == "" {
			return nil, badTree("%s: node without a name", path)
		}
		if _, ok := t.nodes[yn.Name]; ok {
			return nil, badTree("duplicate node %q", yn.Name)
		}
		n := &Node{Name: yn.Name, Prob: 1, parent: parent}
		if yn.Probability != nil {
			n.Prob = *yn.Probability
		}
		n.Stage = yn.Stage
		if n.Stage == "" && stage < len(t.Stages) {
			// Stage may be omitted; depth decides.
			n.Stage = t.Stages[stage]
		}
		if err := loadYAMLOverride(n, yn, dir); err != nil {
			return nil, err
		}
		t.nodes[n.Name] = n
		for _, yc := range yn.Children {
			c, err := convert(yc, n, stage+1)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, c)
		}
		return n, nil
	}
	root, err := convert(yt.Root, nil, 0)
	if err != nil {
		return nil, err
	}
	t.Root = root

	for _, s := range yt.Scenarios {
		t.Scenarios = append(t.Scenarios, &Scenario{Name: s.Name, Leaf: t.nodes[s.Leaf]})
	}
	return t, nil
}

func loadYAMLOverride(n *Node, yn *yamlNode, dir string) error {
	if yn.Override != "" {
		p := yn.Override
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		f, err := dat.ParseFile(p)
		if err != nil {
			return fmt.Errorf("override for node %s: %w", n.Name, err)
		}
		n.Override = f
	}
	if yn.Data != "" {
		f, err := dat.Parse(yn.Data)
		if err != nil {
			return fmt.Errorf("inline override for node %s: %w", n.Name, err)
		}
		if n.Override == nil {
			n.Override = f
		} else if err := n.Override.Merge(f); err != nil {
			return fmt.Errorf("inline override for node %s: %w", n.Name, err)
		}
	}
	return nil
}
