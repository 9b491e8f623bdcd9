package schematic

import (
	"errors"
	"strings"
	"testing"
)

func TestParseMinimalSchematic(t *testing.T) {
	input := `(kicad_sch
		(version 20250114)
		(generator "eeschema")
		(generator_version "9.0")
		(uuid 862335ee-c981-4fe1-9eb9-84db19301dd4)
		(paper "A4")
		(lib_symbols)
		(sheet_instances
			(path "/"
				(page "1")
			)
		)
	)`

	sch, err := Parse(strings.NewReader(input), "root.kicad_sch")
	if err != nil {
		t.Fatalf("Failed to parse schematic: %v", err)
	}

	if sch.Version != 20250114 {
		t.Errorf("Expected version 20250114, got %d", sch.Version)
	}
	if sch.Generator != "eeschema" {
		t.Errorf("Expected generator 'eeschema', got '%s'", sch.Generator)
	}
	if sch.UUID != "862335ee-c981-4fe1-9eb9-84db19301dd4" {
		t.Errorf("UUID = %q", sch.UUID)
	}
	if len(sch.Components) != 0 || len(sch.Sheets) != 0 {
		t.Errorf("expected empty lists, got %d components %d sheets", len(sch.Components), len(sch.Sheets))
	}
}

func TestParseComponents(t *testing.T) {
	input := `(kicad_sch
		(version 20231120)
		(generator "eeschema")
		(uuid root-uuid)
		(lib_symbols
			(symbol "Device:R"
				(property "Reference" "R" (at 0 0 0))
				(pin passive line (at -2.54 0 0) (length 2.54) (name "1") (number "1"))
			)
		)
		(symbol (lib_id "Device:R")
			(at 100 50 0)
			(unit 1)
			(in_bom yes) (on_board yes) (dnp no)
			(uuid sym-uuid-1)
			(property "Reference" "R1" (at 100 45 0))
			(property "Value" "10k" (at 100 55 0))
			(property "Footprint" "Resistor_SMD:R_0603_1608Metric" (at 0 0 0) (effects hide))
			(pin "1" (uuid pin-uuid-1))
		)
		(symbol (lib_id "Device:C")
			(in_bom no) (dnp yes)
			(property "Reference" "C1" (at 0 0 0))
			(property "Value" "100n" (at 0 0 0))
		)
		(symbol (lib_id "Device:D") (attr exclude_from_bom dnp)
			(property "Reference" "D1" (at 0 0 0))
		)
		(symbol (lib_id "power:GND")
			(property "Reference" "#PWR01" (at 0 0 0))
			(property "Value" "GND" (at 0 0 0))
		)
		(symbol (lib_id "Graphic:Logo")
			(property "Value" "logo" (at 0 0 0))
		)
	)`

	sch, err := Parse(strings.NewReader(input), "board.kicad_sch")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// lib_symbols is not a component and the logo has no reference
	if len(sch.Components) != 4 {
		t.Fatalf("expected 4 components, got %d", len(sch.Components))
	}

	r1 := sch.Components[0]
	if r1.Reference != "R1" || r1.Value != "10k" || r1.LibID != "Device:R" || r1.UUID != "sym-uuid-1" {
		t.Errorf("R1 = %+v", r1)
	}
	if r1.Footprint != "Resistor_SMD:R_0603_1608Metric" {
		t.Errorf("R1 footprint = %q", r1.Footprint)
	}
	if r1.DNP || r1.ExcludeFromBOM || r1.Power {
		t.Errorf("R1 flags = %+v", r1)
	}
	if r1.LibraryName() != "Device" {
		t.Errorf("LibraryName() = %q", r1.LibraryName())
	}

	c1 := sch.Components[1]
	if !c1.DNP || !c1.ExcludeFromBOM {
		t.Errorf("C1 flags = %+v", c1)
	}
	d1 := sch.Components[2]
	if !d1.DNP || !d1.ExcludeFromBOM {
		t.Errorf("D1 attr flags = %+v", d1)
	}
	if !sch.Components[3].Power {
		t.Error("expected power symbol")
	}
}

func TestResolveHierarchicalReference(t *testing.T) {
	input := `(kicad_sch (version 20231120)
		(symbol (lib_id "MCU:STM32")
			(property "Reference" "U?" (at 0 0 0))
			(instances (project "X" (path "/abc" (reference "U5") (unit 1))))
		)
	)`

	sch, err := Parse(strings.NewReader(input), "sub.kicad_sch")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	comp := sch.Components[0]

	if got := comp.ResolveReference("/abc"); got != "U5" {
		t.Errorf("ResolveReference(/abc) = %q, want U5", got)
	}
	if got := comp.ResolveReference("/abc/"); got != "U5" {
		t.Errorf("ResolveReference(/abc/) = %q, want U5", got)
	}
	if got := comp.ResolveReference("/other"); got != "U?" {
		t.Errorf("ResolveReference(/other) = %q, want fallback U?", got)
	}
	if !strings.HasPrefix(comp.InstancesRaw, "(instances") || !strings.Contains(comp.InstancesRaw, `"U5"`) {
		t.Errorf("InstancesRaw = %q", comp.InstancesRaw)
	}
	if len(comp.Instances) != 1 || comp.Instances[0].Project != "X" || comp.Instances[0].Unit != 1 {
		t.Errorf("Instances = %+v", comp.Instances)
	}
}

func TestParseSheets(t *testing.T) {
	input := `(kicad_sch (version 20231120)
		(sheet (at 10 10) (size 20 20) (uuid s-1)
			(property "Sheetname" "Power" (at 0 0 0))
			(property "Sheetfile" "power.kicad_sch" (at 0 0 0))
		)
		(sheet (uuid s-2)
			(property "Sheet name" "IO" (at 0 0 0))
			(property "Sheet file" "io.kicad_sch" (at 0 0 0))
		)
		(sheet (uuid s-3) (file "legacy.kicad_sch"))
	)`

	sch, err := Parse(strings.NewReader(input), "root.kicad_sch")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Sheet{
		{UUID: "s-1", Name: "Power", File: "power.kicad_sch"},
		{UUID: "s-2", Name: "IO", File: "io.kicad_sch"},
		{UUID: "s-3", File: "legacy.kicad_sch"},
	}
	if len(sch.Sheets) != len(want) {
		t.Fatalf("expected %d sheets, got %d", len(want), len(sch.Sheets))
	}
	for i, w := range want {
		if sch.Sheets[i] != w {
			t.Errorf("sheet %d = %+v, want %+v", i, sch.Sheets[i], w)
		}
	}
}

func TestParseRejectsOtherRoots(t *testing.T) {
	_, err := Parse(strings.NewReader(`(kicad_pcb (version 20231120))`), "x.kicad_sch")
	if !errors.Is(err, ErrNotSchematic) {
		t.Errorf("expected ErrNotSchematic, got %v", err)
	}
}

func TestJoinUUIDPath(t *testing.T) {
	tests := []struct {
		parent, uuid, want string
	}{
		{"/", "a", "/a"},
		{"", "a", "/a"},
		{"/a", "b", "/a/b"},
		{"/a/", "b", "/a/b"},
		{"/a", "", "/a"},
	}
	for _, tt := range tests {
		if got := JoinUUIDPath(tt.parent, tt.uuid); got != tt.want {
			t.Errorf("JoinUUIDPath(%q, %q) = %q, want %q", tt.parent, tt.uuid, got, tt.want)
		}
	}
}

func TestParseCountsStrayParens(t *testing.T) {
	sch, err := Parse(strings.NewReader(`(kicad_sch (version 20231120)))`), "x.kicad_sch")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if sch.StrayParens != 2 {
		t.Errorf("StrayParens = %d, want 2", sch.StrayParens)
	}
}
