package kicadsexp

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseSimpleTree(t *testing.T) {
	res := ParseString(`(kicad_symbol_lib (version 20231120) (symbol "R" (property "Reference" "R")))`)
	if !res.Balanced() {
		t.Fatalf("expected balanced input, got unclosed=%d stray=%d", res.Unclosed, res.Stray)
	}

	tree, ok := res.Tree().(*List)
	if !ok {
		t.Fatalf("expected list, got %T", res.Tree())
	}
	if tree.Len() != 3 {
		t.Fatalf("expected 3 elements, got %d", tree.Len())
	}
	if head := tree.Get(0); head != Symbol("kicad_symbol_lib") {
		t.Errorf("head = %v, want kicad_symbol_lib", head)
	}

	sym := tree.Get(2).(*List)
	prop := sym.Get(2).(*List)
	if got := prop.Get(2); got != Symbol("R") {
		t.Errorf("property value = %v, want R", got)
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   \n\t "} {
		res := ParseString(input)
		tree, ok := res.Tree().(*List)
		if !ok || tree.Len() != 0 {
			t.Errorf("ParseString(%q).Tree() = %v, want empty list", input, res.Tree())
		}
	}
}

func TestParseUnbalanced(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantUnclosed int
		wantStray    int
		wantLen      int
	}{
		{
			name:         "missing closing parens",
			input:        `(footprint "X" (pad "1" smd rect`,
			wantUnclosed: 2,
			wantLen:      3,
		},
		{
			name:      "extra closing parens",
			input:     `(footprint "X")))`,
			wantStray: 2,
			wantLen:   2,
		},
		{
			name:      "stray paren before list",
			input:     `) (footprint "X")`,
			wantStray: 1,
			wantLen:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseString(tt.input)
			if res.Unclosed != tt.wantUnclosed {
				t.Errorf("Unclosed = %d, want %d", res.Unclosed, tt.wantUnclosed)
			}
			if res.Stray != tt.wantStray {
				t.Errorf("Stray = %d, want %d", res.Stray, tt.wantStray)
			}
			if got := res.Tree().Len(); got != tt.wantLen {
				t.Errorf("tree length = %d, want %d", got, tt.wantLen)
			}
		})
	}
}

func TestQuotedStringFidelity(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `"hello world"`, "hello world"},
		{"escaped quote", `"say \"hi\""`, `say "hi"`},
		{"escaped backslash", `"C:\\lib\\R.kicad_sym"`, `C:\lib\R.kicad_sym`},
		{"other escapes kept", `"line\nbreak"`, `line\nbreak`},
		{"parens inside", `"(not a list)"`, "(not a list)"},
		{"empty", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseString("(x " + tt.input + ")")
			got := res.Tree().(*List).Get(1)
			if got != Symbol(tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnterminatedString(t *testing.T) {
	res := ParseString(`(x "abc`)
	if !res.Unterminated {
		t.Error("expected Unterminated to be set")
	}
	if got := res.Tree().(*List).Get(1); got != Symbol("abc") {
		t.Errorf("got %v, want abc", got)
	}
}

func TestWhitespaceInvariance(t *testing.T) {
	compact := `(symbol "R 1"(pin passive line(at 0 0 0)(length 2.54))(name "~"))`
	spaced := "(  symbol\n\t\"R 1\"  ( pin passive   line ( at 0 0 0 )\n( length 2.54 ) )\r\n ( name \"~\" ) )  "

	a := ParseString(compact)
	b := ParseString(spaced)
	if !reflect.DeepEqual(a.Tree(), b.Tree()) {
		t.Errorf("trees differ:\n%s\n%s", a.Tree(), b.Tree())
	}
}

func TestStringRoundTrip(t *testing.T) {
	input := `(property "Description" "10k \"thick\" film" (at 0 0 0))`
	first := ParseString(input).Tree()
	second := ParseString(first.String()).Tree()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("round trip changed tree: %s vs %s", first, second)
	}
}

func TestParseLargeNesting(t *testing.T) {
	depth := 50000
	input := strings.Repeat("(a ", depth) + strings.Repeat(")", depth)
	res := ParseString(input)
	if !res.Balanced() {
		t.Fatalf("expected balanced input")
	}
}
