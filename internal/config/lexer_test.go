package config

import (
	"strings"
	"testing"
)

func TestLexBasicTokens(t *testing.T) {
	toks, lexErr := lex(`
# a comment
--input data/utopia.dat
--output=data/results.db
--scenario base
--threads 4
--saveDUALS
`)
	if lexErr != nil {
		t.Fatalf("unexpected lex error: %v", lexErr)
	}

	want := []struct {
		name  string
		value string
	}{
		{"input", "data/utopia.dat"},
		{"output", "data/results.db"},
		{"scenario", "base"},
		{"threads", "4"},
		{"saveDUALS", ""},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].name != w.name || toks[i].value != w.value {
			t.Errorf("token %d = %s %q, want %s %q", i, toks[i].name, toks[i].value, w.name, w.value)
		}
	}
}

func TestLexMyopicPeriodsBeforeMyopic(t *testing.T) {
	toks, lexErr := lex("--myopic\n--myopic_periods 2\n")
	if lexErr != nil {
		t.Fatalf("unexpected lex error: %v", lexErr)
	}
	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2: %+v", len(toks), toks)
	}
	if toks[1].name != "myopic_periods" || toks[1].value != "2" {
		t.Errorf("token 1 = %s %q, want myopic_periods 2", toks[1].name, toks[1].value)
	}
}

func TestLexGroupState(t *testing.T) {
	toks, lexErr := lex("--mga { slack=0.1 iteration=4 method=integer }\n--scenario base\n")
	if lexErr != nil {
		t.Fatalf("unexpected lex error: %v", lexErr)
	}
	names := make([]string, len(toks))
	for i, tok := range toks {
		names[i] = tok.name
	}
	got := strings.Join(names, ",")
	want := "mga_slack,mga_iteration,mga_method,scenario"
	if got != want {
		t.Errorf("token names = %s, want %s", got, want)
	}
}

func TestLexIllegalSpansMerge(t *testing.T) {
	// "--bogus" is unknown at top level: every character is illegal and
	// adjacent, so the whole token must report as one span.
	_, lexErr := lex("--bogus\n--scenario base\n")
	if lexErr == nil {
		t.Fatal("expected lex error for unknown option")
	}
	if len(lexErr.Spans) != 1 {
		t.Fatalf("got %d spans, want 1: %+v", len(lexErr.Spans), lexErr.Spans)
	}
	if lexErr.Spans[0].Value != "--bogus" {
		t.Errorf("span value = %q, want %q", lexErr.Spans[0].Value, "--bogus")
	}
	if lexErr.Spans[0].StartLine != 1 || lexErr.Spans[0].EndLine != 1 {
		t.Errorf("span lines = %d..%d, want 1..1", lexErr.Spans[0].StartLine, lexErr.Spans[0].EndLine)
	}
}

func TestLexSeparatedIllegalsAreSeparateSpans(t *testing.T) {
	_, lexErr := lex("@ @\n")
	if lexErr == nil {
		t.Fatal("expected lex error")
	}
	if len(lexErr.Spans) != 2 {
		t.Fatalf("got %d spans, want 2: %+v", len(lexErr.Spans), lexErr.Spans)
	}
}

func TestLexErrorMessageListsAllSpans(t *testing.T) {
	_, lexErr := lex("@\n--scenario base\n!\n")
	if lexErr == nil {
		t.Fatal("expected lex error")
	}
	msg := lexErr.Error()
	if !strings.Contains(msg, `"@"`) || !strings.Contains(msg, `"!"`) {
		t.Errorf("error message missing spans: %s", msg)
	}
	if !strings.Contains(msg, "line 3") {
		t.Errorf("error message missing line of second span: %s", msg)
	}
}

func TestLexDanglingGroupBrace(t *testing.T) {
	// A "{" at top level is not a token: it must surface as a span.
	_, lexErr := lex("--scenario base\n{\n")
	if lexErr == nil {
		t.Fatal("expected lex error for dangling brace")
	}
}
