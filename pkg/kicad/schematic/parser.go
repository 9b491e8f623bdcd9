package schematic

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/sexp"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/sexp/kicadsexp"
)

// ErrNotSchematic is returned when the root node is not kicad_sch.
var ErrNotSchematic = errors.New("not a KiCad schematic")

// ParseFile reads and parses a KiCad schematic file
func ParseFile(filename string) (*Schematic, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file, filename)
}

// Parse reads and parses a KiCad schematic from an io.Reader
func Parse(r io.Reader, path string) (*Schematic, error) {
	doc, err := sexp.ReadDocument(r)
	if err != nil {
		return nil, err
	}

	// The root should be a (kicad_sch ...) expression
	root := doc.Tree
	if name := sexp.Head(root); name != "kicad_sch" {
		return nil, fmt.Errorf("%w: expected 'kicad_sch', got %q", ErrNotSchematic, name)
	}

	sch := &Schematic{
		FilePath:    path,
		Components:  []Component{},
		Sheets:      []Sheet{},
		StrayParens: doc.Stray,
	}

	for _, child := range sexp.Args(root) {
		switch sexp.Head(child) {
		case "version":
			sch.Version, _ = sexp.GetInt(child, 1)
		case "generator":
			sch.Generator = sexp.StringAt(child, 1, "")
		case "uuid":
			sch.UUID = sexp.StringAt(child, 1, "")
		case "symbol":
			if comp, ok := parseComponent(child); ok {
				sch.Components = append(sch.Components, comp)
			}
		case "sheet":
			sch.Sheets = append(sch.Sheets, parseSheet(child))
		}
	}

	return sch, nil
}

// parseComponent extracts a placed symbol. Components without a reference
// designator are dropped.
func parseComponent(node kicadsexp.Sexp) (Component, bool) {
	comp := Component{}

	for _, child := range sexp.Args(node) {
		switch sexp.Head(child) {
		case "lib_id":
			comp.LibID = sexp.StringAt(child, 1, "")
		case "uuid":
			comp.UUID = sexp.StringAt(child, 1, "")
		case "property":
			key := sexp.StringAt(child, 1, "")
			value := sexp.StringAt(child, 2, "")
			switch key {
			case "Reference":
				comp.Reference = value
			case "Value":
				comp.Value = value
			case "Footprint":
				comp.Footprint = value
			}
		case "attr":
			if sexp.HasFlag(child, "exclude_from_bom") {
				comp.ExcludeFromBOM = true
			}
			if sexp.HasFlag(child, "dnp") {
				comp.DNP = true
			}
		case "dnp":
			if v := sexp.StringAt(child, 1, "yes"); v == "yes" || v == "true" {
				comp.DNP = true
			}
		case "in_bom":
			if v := sexp.StringAt(child, 1, "yes"); v == "no" || v == "false" {
				comp.ExcludeFromBOM = true
			}
		case "exclude_from_bom":
			comp.ExcludeFromBOM = true
		case "power":
			comp.Power = true
		case "instances":
			comp.InstancesRaw = child.String()
			comp.Instances = parseInstances(child)
		}
	}

	if sexp.HasSymbol(node, "power") || strings.HasPrefix(comp.LibID, "power:") {
		comp.Power = true
	}

	return comp, comp.Reference != ""
}

// parseInstances flattens
//
//	(instances (project "X" (path "/abc" (reference "U5") (unit 1))))
//
// into one Instance per path.
func parseInstances(node kicadsexp.Sexp) []Instance {
	var out []Instance
	for _, project := range sexp.FindAllNodes(node, "project") {
		name := sexp.StringAt(project, 1, "")
		for _, p := range sexp.FindAllNodes(project, "path") {
			out = append(out, parseInstancePath(p, name))
		}
	}
	// KiCad 6 wrote paths directly below (instances ...)
	for _, p := range sexp.FindAllNodes(node, "path") {
		out = append(out, parseInstancePath(p, ""))
	}
	return out
}

func parseInstancePath(node kicadsexp.Sexp, project string) Instance {
	inst := Instance{
		Project: project,
		Path:    sexp.StringAt(node, 1, ""),
	}
	if ref, ok := sexp.FindNode(node, "reference"); ok {
		inst.Reference = sexp.StringAt(ref, 1, "")
	}
	if unit, ok := sexp.FindNode(node, "unit"); ok {
		inst.Unit, _ = sexp.GetInt(unit, 1)
	}
	return inst
}

// parseSheet extracts a sheet's uuid, name and file. The file comes from the
// Sheetfile property (KiCad 6+), "Sheet file" (early 6.0 nightlies) or the
// legacy (file ...) child.
func parseSheet(node kicadsexp.Sexp) Sheet {
	sheet := Sheet{}

	if uuidNode, found := sexp.FindNode(node, "uuid"); found {
		sheet.UUID = sexp.StringAt(uuidNode, 1, "")
	}

	for _, pn := range sexp.FindAllNodes(node, "property") {
		key := sexp.StringAt(pn, 1, "")
		value := sexp.StringAt(pn, 2, "")
		switch key {
		case "Sheetname", "Sheet name":
			sheet.Name = value
		case "Sheetfile", "Sheet file":
			sheet.File = value
		}
	}

	if sheet.File == "" {
		if fileNode, found := sexp.FindNode(node, "file"); found {
			sheet.File = sexp.StringAt(fileNode, 1, "")
		}
	}

	return sheet
}
