package sexp

import (
	"testing"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/sexp/kicadsexp"
)

func parse(t *testing.T, input string) kicadsexp.Sexp {
	t.Helper()
	res := kicadsexp.ParseString(input)
	if !res.Balanced() {
		t.Fatalf("unbalanced test input %q", input)
	}
	return res.Tree()
}

func TestFindNode(t *testing.T) {
	node := parse(t, `(pad "1" smd rect (at 1 2 90) (size 1.5 0.6) (layers "F.Cu" "F.Mask"))`)

	at, ok := FindNode(node, "at")
	if !ok {
		t.Fatal("expected to find (at ...)")
	}
	pl, err := GetPlacement(at)
	if err != nil {
		t.Fatalf("GetPlacement() error = %v", err)
	}
	if pl.X != 1 || pl.Y != 2 || pl.Angle != 90 {
		t.Errorf("placement = %+v", pl)
	}

	if _, ok := FindNode(node, "drill"); ok {
		t.Error("did not expect (drill ...)")
	}
	// atoms never match
	if _, ok := FindNode(node, "smd"); ok {
		t.Error("FindNode matched a bare atom")
	}
}

func TestFindAllNodes(t *testing.T) {
	node := parse(t, `(symbol "X" (property "A" "1") (pin input line) (property "B" "2"))`)
	props := FindAllNodes(node, "property")
	if len(props) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(props))
	}
	if got := StringAt(props[1], 1, ""); got != "B" {
		t.Errorf("second property key = %q, want B", got)
	}
}

func TestGetStringErrors(t *testing.T) {
	node := parse(t, `(at 1 (nested))`)
	if _, err := GetString(node, 5); err == nil {
		t.Error("expected out of bounds error")
	}
	if _, err := GetString(node, 2); err == nil {
		t.Error("expected error for list element")
	}
	if _, err := GetString(kicadsexp.Symbol("x"), 0); err == nil {
		t.Error("expected error for atom input")
	}
	if _, err := GetFloat(parse(t, `(size abc 1)`), 1); err == nil {
		t.Error("expected float parse error")
	}
}

func TestHasFlag(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{`(pin_numbers hide)`, true},
		{`(pin_numbers (hide yes))`, true},
		{`(pin_numbers (hide))`, true},
		{`(pin_numbers (hide no))`, false},
		{`(pin_numbers)`, false},
		{`(effects (font (size 1 1)))`, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := HasFlag(parse(t, tt.input), "hide"); got != tt.want {
				t.Errorf("HasFlag() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetPoints(t *testing.T) {
	node := parse(t, `(polyline (pts (xy 0 0) (xy 1.5 -2) (xy bad 1)) (stroke (width 0)))`)
	pts := GetPoints(node)
	if len(pts) != 2 {
		t.Fatalf("expected 2 points, got %d", len(pts))
	}
	if pts[1] != (Point{X: 1.5, Y: -2}) {
		t.Errorf("second point = %+v", pts[1])
	}
}

func TestQuarterTurn(t *testing.T) {
	tests := map[float64]float64{0: 0, 90: 90, 180: 180, 270: 270, 360: 0, -90: 270, 89.9: 90, 450: 90}
	for in, want := range tests {
		if got := QuarterTurn(in); got != want {
			t.Errorf("QuarterTurn(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestGetFontSize(t *testing.T) {
	node := parse(t, `(effects (font (size 1.0 1.27)) hide)`)
	h, ok := GetFontSize(node)
	if !ok || h != 1.0 {
		t.Errorf("GetFontSize() = %v, %v", h, ok)
	}
}
