package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a config plus any input files it references into a
// temp dir and returns the config path.
func writeConfig(t *testing.T, cfg string, inputs ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, in := range inputs {
		if err := os.WriteFile(filepath.Join(dir, in), []byte("data ;\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(dir, "run.config")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseMinimalDatRun(t *testing.T) {
	path := writeConfig(t, "--input utopia.dat\n--scenario base\n", "utopia.dat")
	cfg, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Inputs) != 1 || filepath.Base(cfg.Inputs[0]) != "utopia.dat" {
		t.Errorf("Inputs = %v", cfg.Inputs)
	}
	if cfg.HasDatabaseInput() {
		t.Error("HasDatabaseInput = true for a .dat input")
	}
}

func TestParseEmptyConfig(t *testing.T) {
	path := writeConfig(t, "# nothing here\n")
	_, err := Parse(path)
	if err == nil || !strings.Contains(err.Error(), "input file not specified") {
		t.Errorf("Parse error = %v, want input-not-specified", err)
	}
}

func TestParseMissingInput(t *testing.T) {
	path := writeConfig(t, "--input nope.dat\n")
	_, err := Parse(path)
	if err == nil || !strings.Contains(err.Error(), "cannot locate input file") {
		t.Errorf("Parse error = %v, want cannot-locate", err)
	}
}

func TestParseDatabaseInputRequiresOutputAndScenario(t *testing.T) {
	path := writeConfig(t, "--input model.sqlite\n", "model.sqlite")
	_, err := Parse(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"output file not specified", "scenario name not specified"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestParseDatabaseRunComplete(t *testing.T) {
	path := writeConfig(t,
		"--input model.sqlite\n--output results.db\n--scenario base\n--saveDUALS\n",
		"model.sqlite", "results.db")
	cfg, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.HasDatabaseInput() || !cfg.SaveDuals {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestParseRejectsNEOS(t *testing.T) {
	path := writeConfig(t, "--input utopia.dat\n--neos\n", "utopia.dat")
	_, err := Parse(path)
	if err == nil || !strings.Contains(err.Error(), "--neos") {
		t.Errorf("Parse error = %v, want neos rejection", err)
	}
}

func TestParseRejectsMGPA(t *testing.T) {
	_, err := parse("--mgpa { f1=cost f2=emissions c=0.5 ncaps=3 slack1=0.1 slack2=0.1 iteration=2 method=integer }\n")
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Errorf("parse error = %v, want mgpa rejection", err)
	}
}

func TestMGAQueue(t *testing.T) {
	path := writeConfig(t,
		"--input utopia.dat\n--scenario base\n--mga { slack=0.1 iteration=3 method=integer }\n",
		"utopia.dat")
	cfg, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var names []string
	for cfg.NextMGA() {
		names = append(names, cfg.Scenario)
	}
	want := []string{"base_mga_0", "base_mga_1", "base_mga_2"}
	if len(names) != len(want) {
		t.Fatalf("scenarios = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("scenario %d = %s, want %s", i, names[i], want[i])
		}
	}
	if cfg.NextMGA() {
		t.Error("NextMGA returned true on an empty queue")
	}
}

func TestMOOValidation(t *testing.T) {
	tests := []struct {
		name string
		moo  string
		want string
	}{
		{"same objectives", "--moo { f1=cost f2=cost c=0.5 ncaps=3 }", "f1 and f2 must differ"},
		{"no caps", "--moo { f1=cost f2=emissions c=0.5 }", "ncaps >= 1"},
		{"c out of range", "--moo { f1=cost f2=emissions c=1.5 ncaps=3 }", "c must be in"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "--input utopia.dat\n--scenario base\n"+tt.moo+"\n", "utopia.dat")
			_, err := Parse(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestStringBanner(t *testing.T) {
	path := writeConfig(t, "--input utopia.dat\n--scenario base\n--saveCSV\n", "utopia.dat")
	cfg, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	banner := cfg.String()
	for _, want := range []string{"Config file", "utopia.dat", "Scenario", "base", "CSV output"} {
		if !strings.Contains(banner, want) {
			t.Errorf("banner missing %q:\n%s", want, banner)
		}
	}
}
