// Package config parses horizon run-configuration files. The format is
// a flat list of flag-like tokens with "#" comments and brace-delimited
// option groups:
//
//	--input  data/utopia.dat
//	--output data/results.db
//	--scenario base
//	--saveDUALS
//	--mga { slack=0.1 iteration=4 method=integer }
//
// Lexing accumulates every illegal-character span before reporting, so a
// config with several typos fails once with all of them listed.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Weighting methods accepted inside an --mga group.
const (
	MGAInteger    = "integer"
	MGANormalized = "normalized"
	MGARandom     = "random"
)

// Objectives accepted for --moo f1/f2.
const (
	ObjectiveCost      = "cost"
	ObjectiveEmissions = "emissions"
)

// MGAOptions configures modeling-to-generate-alternatives iterations.
type MGAOptions struct {
	Slack      float64
	Iterations int
	Method     string
}

// MOOOptions configures the cost-vs-emissions epsilon-constraint sweep.
type MOOOptions struct {
	F1    string
	F2    string
	C     float64
	NCaps int
}

// Config is a fully parsed and validated run configuration.
type Config struct {
	Path     string
	Inputs   []string
	Output   string
	Scenario string

	Solver  string
	Method  string
	Threads int
	Tee     bool

	SaveDuals    bool
	SaveTextFile bool
	SaveCSV      bool
	KeepLPFile   bool

	HowToCite bool
	Version   bool
	NEOS      bool

	Myopic        bool
	MyopicPeriods int
	KeepMyopicDBs bool

	PathToData string
	PathToLogs string

	MGA *MGAOptions
	MOO *MOOOptions

	mgaTodo []string
	mooTodo []string
}

// Parse reads, lexes, and validates the config file at path. All lex
// errors are reported together; validation errors likewise accumulate.
func Parse(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := parse(string(raw))
	if err != nil {
		return nil, err
	}
	cfg.Path = path

	// Relative inputs resolve against the config file's directory, so a
	// config can be run from anywhere.
	base := filepath.Dir(path)
	for i, in := range cfg.Inputs {
		if !filepath.IsAbs(in) {
			cfg.Inputs[i] = filepath.Join(base, in)
		}
	}
	if cfg.Output != "" && !filepath.IsAbs(cfg.Output) {
		cfg.Output = filepath.Join(base, cfg.Output)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.seedQueues()
	return cfg, nil
}

// parse lexes and applies tokens without touching the filesystem.
// Split out for tests.
func parse(input string) (*Config, error) {
	toks, lexErr := lex(input)
	if lexErr != nil {
		return nil, lexErr
	}

	cfg := &Config{}
	var sawMGPA bool
	for _, t := range toks {
		switch t.name {
		case "input":
			cfg.Inputs = append(cfg.Inputs, t.value)
		case "output":
			cfg.Output = t.value
		case "scenario":
			cfg.Scenario = t.value
		case "solver":
			cfg.Solver = t.value
		case "method":
			cfg.Method = t.value
		case "threads":
			cfg.Threads = atoi(t.value)
		case "tee":
			cfg.Tee = true
		case "saveDUALS":
			cfg.SaveDuals = true
		case "saveTEXTFILE":
			cfg.SaveTextFile = true
		case "saveCSV":
			cfg.SaveCSV = true
		case "keep_lp_file":
			cfg.KeepLPFile = true
		case "how_to_cite":
			cfg.HowToCite = true
		case "version":
			cfg.Version = true
		case "neos":
			cfg.NEOS = true
		case "myopic":
			cfg.Myopic = true
		case "myopic_periods":
			cfg.MyopicPeriods = atoi(t.value)
		case "keep_myopic_databases":
			cfg.KeepMyopicDBs = true
		case "path_to_data":
			cfg.PathToData = t.value
		case "path_to_logs":
			cfg.PathToLogs = t.value
		case "mga_slack":
			cfg.ensureMGA().Slack = atof(t.value)
		case "mga_iteration":
			cfg.ensureMGA().Iterations = atoi(t.value)
		case "mga_method":
			cfg.ensureMGA().Method = t.value
		case "moo_f1":
			cfg.ensureMOO().F1 = t.value
		case "moo_f2":
			cfg.ensureMOO().F2 = t.value
		case "moo_c":
			cfg.ensureMOO().C = atof(t.value)
		case "moo_ncaps":
			cfg.ensureMOO().NCaps = atoi(t.value)
		default:
			if strings.HasPrefix(t.name, "mgpa_") {
				sawMGPA = true
			}
		}
	}
	if sawMGPA {
		return nil, errors.New("--mgpa groups are not supported")
	}
	return cfg, nil
}

func (c *Config) ensureMGA() *MGAOptions {
	if c.MGA == nil {
		c.MGA = &MGAOptions{}
	}
	return c.MGA
}

func (c *Config) ensureMOO() *MOOOptions {
	if c.MOO == nil {
		c.MOO = &MOOOptions{}
	}
	return c.MOO
}

// HasDatabaseInput reports whether any input is a SQLite database that
// needs conversion before model load.
func (c *Config) HasDatabaseInput() bool {
	for _, in := range c.Inputs {
		if isDatabasePath(in) {
			return true
		}
	}
	return false
}

func isDatabasePath(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

func (c *Config) validate() error {
	// --version and --how_to_cite print and exit; the rest of the file
	// need not describe a runnable model.
	if c.Version || c.HowToCite {
		return nil
	}

	var errs []string

	if len(c.Inputs) == 0 {
		errs = append(errs, "input file not specified")
	}
	for _, in := range c.Inputs {
		if _, err := os.Stat(in); err != nil {
			errs = append(errs, fmt.Sprintf("cannot locate input file: %s", in))
		}
	}
	if c.HasDatabaseInput() {
		if c.Output == "" {
			errs = append(errs, "output file not specified")
		} else if _, err := os.Stat(c.Output); err != nil {
			errs = append(errs, fmt.Sprintf("cannot locate output file: %s", c.Output))
		}
		if c.Scenario == "" {
			errs = append(errs, "scenario name not specified")
		}
	}
	if c.NEOS {
		errs = append(errs, "--neos is not supported; remove it from the config")
	}
	if c.Myopic && c.MyopicPeriods < 1 {
		errs = append(errs, "--myopic requires --myopic_periods >= 1")
	}
	if c.MGA != nil {
		if c.MGA.Iterations < 1 {
			errs = append(errs, "--mga requires iteration >= 1")
		}
		if c.MGA.Slack <= 0 {
			errs = append(errs, "--mga requires slack > 0")
		}
		switch c.MGA.Method {
		case MGAInteger, MGANormalized, MGARandom:
		default:
			errs = append(errs, fmt.Sprintf("unknown MGA method %q", c.MGA.Method))
		}
	}
	if c.MOO != nil {
		if c.MOO.NCaps < 1 {
			errs = append(errs, "--moo requires ncaps >= 1")
		}
		if c.MOO.F1 == c.MOO.F2 {
			errs = append(errs, "--moo f1 and f2 must differ")
		}
		if c.MOO.C < 0 || c.MOO.C > 1 {
			errs = append(errs, "--moo c must be in [0, 1]")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config %s:\n  %s", c.Path, strings.Join(errs, "\n  "))
	}
	return nil
}

// seedQueues populates the derived-scenario work queues. MGA iteration i
// solves under the name "<scenario>_mga_<i>"; MOO cap i under
// "<scenario>_moo_<i>".
func (c *Config) seedQueues() {
	if c.MGA != nil {
		for i := 0; i < c.MGA.Iterations; i++ {
			c.mgaTodo = append(c.mgaTodo, fmt.Sprintf("%s_mga_%d", c.Scenario, i))
		}
	}
	if c.MOO != nil {
		for i := 0; i < c.MOO.NCaps; i++ {
			c.mooTodo = append(c.mooTodo, fmt.Sprintf("%s_moo_%d", c.Scenario, i))
		}
	}
}

// NextMGA advances Scenario to the next MGA iteration name. It returns
// false when the queue is exhausted.
func (c *Config) NextMGA() bool {
	if len(c.mgaTodo) == 0 {
		return false
	}
	c.Scenario = c.mgaTodo[0]
	c.mgaTodo = c.mgaTodo[1:]
	return true
}

// NextMOO advances Scenario to the next MOO cap name.
func (c *Config) NextMOO() bool {
	if len(c.mooTodo) == 0 {
		return false
	}
	c.Scenario = c.mooTodo[0]
	c.mooTodo = c.mooTodo[1:]
	return true
}

// String renders the banner summary printed at the start of a run.
func (c *Config) String() string {
	var b strings.Builder
	spacer := strings.Repeat("-", 30) + "\n"
	b.WriteString(spacer)
	fmt.Fprintf(&b, "%26s: %s\n", "Config file", c.Path)
	for i, in := range c.Inputs {
		if i == 0 {
			fmt.Fprintf(&b, "%26s: %s\n", "Input file", in)
		} else {
			fmt.Fprintf(&b, "%26s  %s\n", "", in)
		}
	}
	fmt.Fprintf(&b, "%26s: %s\n", "Output file", c.Output)
	fmt.Fprintf(&b, "%26s: %s\n", "Scenario", c.Scenario)
	fmt.Fprintf(&b, "%26s: %v\n", "CSV output", c.SaveCSV)
	fmt.Fprintf(&b, "%26s: %v\n", "Save duals", c.SaveDuals)
	fmt.Fprintf(&b, "%26s: %v\n", "Myopic scheme", c.Myopic)
	if c.Myopic {
		fmt.Fprintf(&b, "%26s: %d\n", "Myopic periods", c.MyopicPeriods)
		fmt.Fprintf(&b, "%26s: %v\n", "Retain myopic databases", c.KeepMyopicDBs)
	}
	b.WriteString(spacer)
	fmt.Fprintf(&b, "%26s: %s\n", "Selected solver", c.Solver)
	fmt.Fprintf(&b, "%26s: %d\n", "Solver threads", c.Threads)
	fmt.Fprintf(&b, "%26s: %v\n", "Solver log output", c.Tee)
	fmt.Fprintf(&b, "%26s: %v\n", "LP file write status", c.KeepLPFile)
	if c.MGA != nil {
		b.WriteString(spacer)
		fmt.Fprintf(&b, "%26s: %g\n", "MGA slack value", c.MGA.Slack)
		fmt.Fprintf(&b, "%26s: %d\n", "MGA # of iterations", c.MGA.Iterations)
		fmt.Fprintf(&b, "%26s: %s\n", "MGA weighting method", c.MGA.Method)
	}
	if c.MOO != nil {
		b.WriteString(spacer)
		fmt.Fprintf(&b, "%26s: %s\n", "MOO f1", c.MOO.F1)
		fmt.Fprintf(&b, "%26s: %s\n", "MOO f2", c.MOO.F2)
		fmt.Fprintf(&b, "%26s: %g\n", "MOO c parameter", c.MOO.C)
		fmt.Fprintf(&b, "%26s: %d\n", "MOO # of caps", c.MOO.NCaps)
	}
	b.WriteString(spacer)
	return b.String()
}
