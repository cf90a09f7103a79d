package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Span is a run of illegal characters in a config file. Adjacent illegal
// characters merge into a single span so a stray pasted word reports as
// one error, not one per character.
type Span struct {
	StartLine int
	EndLine   int
	StartPos  int
	EndPos    int
	Value     string
}

// LexError reports every illegal-character span found in a config file.
type LexError struct {
	Spans []Span
}

func (e *LexError) Error() string {
	var b strings.Builder
	b.WriteString("illegal character(s) in config file:\n")
	for _, s := range e.Spans {
		fmt.Fprintf(&b, "  line %d to %d: %q\n", s.StartLine, s.EndLine, s.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}

// lexer states. Option groups (--mga { ... }) switch the token table so
// bare words like "slack" are only meaningful inside their group.
type lexState int

const (
	stateTop lexState = iota
	stateMGA
	stateMOO
	stateMGPA
)

type token struct {
	name  string
	value string // second field for valued tokens, "" for flags
	line  int
}

type rule struct {
	name string
	re   *regexp.Regexp
}

// splitValue extracts the value from a "--option value" or
// "--option=value" match.
func splitValue(s string) string {
	fields := strings.Fields(strings.Replace(s, "=", " ", 1))
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

const pathChars = `[-\\/:.~\w]`

var topRules = []rule{
	{"input", regexp.MustCompile(`\A--input[\s=]+` + pathChars + `+(\.dat|\.db|\.sqlite3|\.sqlite|\.yaml|\.yml)\b`)},
	{"output", regexp.MustCompile(`\A--output[\s=]+` + pathChars + `+(\.db|\.sqlite)\b`)},
	{"scenario", regexp.MustCompile(`\A--scenario[\s=]+\w+\b`)},
	{"path_to_data", regexp.MustCompile(`\A--path_to_data[\s=]+[-\\/:.~\w ]+\b`)},
	{"path_to_logs", regexp.MustCompile(`\A--path_to_logs[\s=]+[-\\/:.~\w ]+\b`)},
	{"how_to_cite", regexp.MustCompile(`\A--how_to_cite\b`)},
	{"version", regexp.MustCompile(`\A--version\b`)},
	{"neos", regexp.MustCompile(`\A--neos\b`)},
	{"solver", regexp.MustCompile(`\A--solver[\s=]+\w+\b`)},
	{"method", regexp.MustCompile(`\A--method[\s=]+\w+\b`)},
	{"threads", regexp.MustCompile(`\A--threads[\s=]+\d+\b`)},
	{"tee", regexp.MustCompile(`\A--tee\b`)},
	{"keep_lp_file", regexp.MustCompile(`\A--keep_lp_file\b`)},
	{"saveCSV", regexp.MustCompile(`\A--saveCSV\b`)},
	{"saveDUALS", regexp.MustCompile(`\A--saveDUALS\b`)},
	{"saveTEXTFILE", regexp.MustCompile(`\A--saveTEXTFILE\b`)},
	// myopic_periods must precede myopic or the shorter token wins.
	{"myopic_periods", regexp.MustCompile(`\A--myopic_periods[\s=]+\d+`)},
	{"myopic", regexp.MustCompile(`\A--myopic\b`)},
	{"keep_myopic_databases", regexp.MustCompile(`\A--keep_myopic_databases\b`)},
	{"begin_mga", regexp.MustCompile(`\A--mga[\s=]+\{`)},
	{"begin_moo", regexp.MustCompile(`\A--moo[\s=]+\{`)},
	{"begin_mgpa", regexp.MustCompile(`\A--mgpa[\s=]+\{`)},
}

var mgaRules = []rule{
	{"mga_slack", regexp.MustCompile(`\Aslack[\s=]+[.\d]+`)},
	{"mga_iteration", regexp.MustCompile(`\Aiteration[\s=]+\d+`)},
	{"mga_method", regexp.MustCompile(`\Amethod[\s=]+(integer|normalized|random)\b`)},
	{"end_group", regexp.MustCompile(`\A\}`)},
}

var mooRules = []rule{
	{"moo_f1", regexp.MustCompile(`\Af1[\s=]+(cost|emissions)\b`)},
	{"moo_f2", regexp.MustCompile(`\Af2[\s=]+(cost|emissions)\b`)},
	{"moo_ncaps", regexp.MustCompile(`\Ancaps[\s=]+\d+`)},
	{"moo_c", regexp.MustCompile(`\Ac[\s=]+[.\d]+`)},
	{"end_group", regexp.MustCompile(`\A\}`)},
}

// MGPA tokens are recognized so the group lexes cleanly; validation
// rejects the group as unsupported.
var mgpaRules = []rule{
	{"mgpa_f1", regexp.MustCompile(`\Af1[\s=]+(cost|emissions)\b`)},
	{"mgpa_f2", regexp.MustCompile(`\Af2[\s=]+(cost|emissions)\b`)},
	{"mgpa_slack1", regexp.MustCompile(`\Aslack1[\s=]+[.\d]+`)},
	{"mgpa_slack2", regexp.MustCompile(`\Aslack2[\s=]+[.\d]+`)},
	{"mgpa_ncaps", regexp.MustCompile(`\Ancaps[\s=]+\d+`)},
	{"mgpa_iteration", regexp.MustCompile(`\Aiteration[\s=]+\d+`)},
	{"mgpa_method", regexp.MustCompile(`\Amethod[\s=]+(integer|normalized|random)\b`)},
	{"mgpa_c", regexp.MustCompile(`\Ac[\s=]+[.\d]+`)},
	{"end_group", regexp.MustCompile(`\A\}`)},
}

var commentRE = regexp.MustCompile(`\A#[^\n]*`)

// lex tokenizes a config file. It never fails fast: illegal characters
// accumulate into spans and lexing continues, so one pass reports every
// problem in the file.
func lex(input string) ([]token, *LexError) {
	var (
		toks  []token
		spans []Span
		state = stateTop
		pos   = 0
		line  = 1
	)

	rulesFor := func() []rule {
		switch state {
		case stateMGA:
			return mgaRules
		case stateMOO:
			return mooRules
		case stateMGPA:
			return mgpaRules
		default:
			return topRules
		}
	}

scan:
	for pos < len(input) {
		c := input[pos]
		if c == ' ' || c == '\t' {
			pos++
			continue
		}
		if c == '\n' {
			line++
			pos++
			continue
		}
		if c == '\r' {
			pos++
			continue
		}
		if m := commentRE.FindString(input[pos:]); m != "" {
			pos += len(m)
			continue
		}

		for _, r := range rulesFor() {
			m := r.re.FindString(input[pos:])
			if m == "" {
				continue
			}
			switch r.name {
			case "begin_mga":
				state = stateMGA
			case "begin_moo":
				state = stateMOO
			case "begin_mgpa":
				state = stateMGPA
			case "end_group":
				state = stateTop
			default:
				toks = append(toks, token{name: r.name, value: splitValue(m), line: line})
			}
			line += strings.Count(m, "\n")
			pos += len(m)
			continue scan
		}

		// Illegal character: extend the previous span when adjacent,
		// otherwise open a new one.
		if n := len(spans); n > 0 && pos-spans[n-1].EndPos == 1 {
			spans[n-1].EndLine = line
			spans[n-1].EndPos = pos
			spans[n-1].Value += string(c)
		} else {
			spans = append(spans, Span{StartLine: line, EndLine: line, StartPos: pos, EndPos: pos, Value: string(c)})
		}
		pos++
	}

	if len(spans) > 0 {
		return toks, &LexError{Spans: spans}
	}
	return toks, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
