package symbol

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/sexp"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/sexp/kicadsexp"
)

// Extension is the file extension of symbol libraries.
const Extension = ".kicad_sym"

// ErrNotSymbolLibrary is returned when the root node is not kicad_symbol_lib.
var ErrNotSymbolLibrary = errors.New("not a KiCad symbol library")

// Library is the parse result for one .kicad_sym file.
type Library struct {
	Name    string
	Path    string
	Symbols []*Symbol
	// StrayParens counts unmatched ')' the reader skipped.
	StrayParens int
}

// LibraryName derives the library name from a file path (its stem).
func LibraryName(path string) string {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(path, `\`, "/")))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseFile reads and parses a KiCad symbol library file
func ParseFile(filename string) (*Library, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file, filename)
}

// Parse reads a symbol library from r. path is recorded on every symbol and
// its stem becomes the library name.
func Parse(r io.Reader, path string) (*Library, error) {
	doc, err := sexp.ReadDocument(r)
	if err != nil {
		return nil, err
	}

	root := doc.Tree
	if name := sexp.Head(root); name != "kicad_symbol_lib" {
		return nil, fmt.Errorf("%w: root is %q", ErrNotSymbolLibrary, name)
	}

	lib := &Library{
		Name:        LibraryName(path),
		Path:        path,
		Symbols:     []*Symbol{},
		StrayParens: doc.Stray,
	}

	for _, node := range sexp.FindAllNodes(root, "symbol") {
		name, err := sexp.GetString(node, 1)
		if err != nil {
			continue
		}
		sym := newSymbol(lib.Name, name, path)
		walkSymbol(node, sym)
		lib.Symbols = append(lib.Symbols, sym)
	}

	return lib, nil
}

// walkSymbol applies every recognized child of node to sym, descending into
// nested unit symbols so their pins and graphics land on the parent.
func walkSymbol(node kicadsexp.Sexp, sym *Symbol) {
	for _, child := range sexp.Args(node) {
		if child.IsLeaf() {
			continue
		}

		switch sexp.Head(child) {
		case "property":
			key, err := sexp.GetString(child, 1)
			if err != nil {
				continue
			}
			sym.setProperty(key, sexp.StringAt(child, 2, ""))

		case "extends":
			sym.Extends = sexp.StringAt(child, 1, "")

		case "pin_numbers":
			sym.ShowPinNumbers = !sexp.HasFlag(child, "hide")

		case "pin_names":
			sym.ShowPinNames = !sexp.HasFlag(child, "hide")
			if offset := sexp.ChildFloat(child, "offset"); offset != nil {
				sym.PinNamesOffset = *offset
			}

		case "pin":
			sym.Pins = append(sym.Pins, parsePin(child))

		case GraphicRectangle, GraphicPolyline, GraphicCircle, GraphicArc, GraphicText:
			sym.Graphics = append(sym.Graphics, parseGraphic(child))

		case "symbol":
			walkSymbol(child, sym)
		}
	}
}

func (s *Symbol) setProperty(key, value string) {
	s.Properties[key] = value
	if key != PropReference && key != PropValue {
		return
	}
	for i := range s.VisualProperties {
		if s.VisualProperties[i].Key == key {
			s.VisualProperties[i].Value = value
			return
		}
	}
	s.VisualProperties = append(s.VisualProperties, Property{Key: key, Value: value})
}

// parsePin parses a pin definition
// Expected format: (pin TYPE STYLE (at x y angle) (length l) [hide]
//
//	(name "N" (effects ...)) (number "1" (effects ...)))
func parsePin(node kicadsexp.Sexp) Pin {
	pin := newPin()
	pin.Type = sexp.StringAt(node, 1, "")
	if style, err := sexp.GetString(node, 2); err == nil {
		pin.Style = style
	}
	pin.Visible = !sexp.HasFlag(node, "hide")

	for _, child := range sexp.Args(node) {
		switch sexp.Head(child) {
		case "at":
			if pl, err := sexp.GetPlacement(child); err == nil {
				pl.Angle = sexp.QuarterTurn(pl.Angle)
				pin.At = pl
			}
		case "length":
			pin.Length = sexp.FloatAt(child, 1, DefaultPinLength)
		case "number":
			pin.Number = sexp.StringAt(child, 1, UnnumberedPinNumber)
			if effects, ok := sexp.FindNode(child, "effects"); ok {
				pin.NumVisible = !sexp.HasFlag(effects, "hide")
				if size, ok := sexp.GetFontSize(effects); ok {
					pin.NumTextSize = size
				}
			}
		case "name":
			pin.Name = sexp.StringAt(child, 1, "")
			if effects, ok := sexp.FindNode(child, "effects"); ok {
				pin.NameVisible = !sexp.HasFlag(effects, "hide")
				if size, ok := sexp.GetFontSize(effects); ok {
					pin.NameTextSize = size
				}
			}
		case "stroke":
			if w := sexp.ChildFloat(child, "width"); w != nil {
				pin.StrokeWidth = w
			}
		case "width":
			// pre-7.0 files put the width directly on the pin
			if w, err := sexp.GetFloat(child, 1); err == nil && pin.StrokeWidth == nil {
				pin.StrokeWidth = &w
			}
		}
	}

	return pin
}

func parseGraphic(node kicadsexp.Sexp) Graphic {
	g := Graphic{
		Kind: sexp.Head(node),
		Raw:  node.String(),
	}

	switch g.Kind {
	case GraphicRectangle:
		g.Start = sexp.ChildPoint(node, "start")
		g.End = sexp.ChildPoint(node, "end")
	case GraphicPolyline:
		g.Points = sexp.GetPoints(node)
	case GraphicCircle:
		g.Center = sexp.ChildPoint(node, "center")
		if r := sexp.ChildFloat(node, "radius"); r != nil {
			g.Radius = *r
		}
	case GraphicArc:
		g.Start = sexp.ChildPoint(node, "start")
		g.Mid = sexp.ChildPoint(node, "mid")
		g.End = sexp.ChildPoint(node, "end")
	case GraphicText:
		g.Text = sexp.StringAt(node, 1, "")
		if at, ok := sexp.FindNode(node, "at"); ok {
			if pl, err := sexp.GetPlacement(at); err == nil {
				g.At = &pl
			}
		}
	}

	return g
}
