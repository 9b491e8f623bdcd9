package footprint

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/sexp"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/sexp/kicadsexp"
)

// ErrNotFootprint is returned when the root node is not footprint.
var ErrNotFootprint = errors.New("not a KiCad footprint")

var knownShapes = map[string]bool{
	ShapeRect:      true,
	ShapeCircle:    true,
	ShapeOval:      true,
	ShapeRoundRect: true,
	ShapeCustom:    true,
}

// layerWildcards lists the concrete layers a wildcard layer implies.
var layerWildcards = map[string][]string{
	"*.Cu":   {"F.Cu", "B.Cu"},
	"*.Mask": {"F.Mask", "B.Mask"},
}

// ParseFile reads and parses a KiCad footprint file
func ParseFile(filename string) (*Module, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file, filename)
}

// Parse reads a footprint from r. path is recorded on the module.
// Expected format: (footprint "name" (layer "F.Cu") (pad ...) (fp_line ...) (model ...))
func Parse(r io.Reader, path string) (*Module, error) {
	doc, err := sexp.ReadDocument(r)
	if err != nil {
		return nil, err
	}

	root := doc.Tree
	if name := sexp.Head(root); name != "footprint" {
		return nil, fmt.Errorf("%w: root is %q", ErrNotFootprint, name)
	}

	mod := &Module{
		Name:        sexp.StringAt(root, 1, ""),
		FilePath:    path,
		Pads:        []Pad{},
		Shapes:      []Shape{},
		StrayParens: doc.Stray,
	}

	items := sexp.Items(root)
	for i := 2; i < len(items); i++ {
		node := items[i]
		switch head := sexp.Head(node); head {
		case "pad":
			pad, err := parsePad(node)
			if err != nil {
				// skip pads that fail to parse
				continue
			}
			mod.Pads = append(mod.Pads, *pad)

		case "fp_line", "fp_rect", "fp_circle", "fp_arc", "fp_poly", "zone":
			mod.Shapes = append(mod.Shapes, parseShape(node))

		case "model":
			mod.Model = sexp.StringAt(node, 1, "")
		}
	}

	return mod, nil
}

// parsePad extracts a pad definition from a footprint
// Expected format: (pad "number" type shape (at x y [angle]) (size w h) (layers ...) ...)
func parsePad(node kicadsexp.Sexp) (*Pad, error) {
	number, err := sexp.GetString(node, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pad number: %w", err)
	}

	pad := &Pad{
		Number:         number,
		Type:           sexp.StringAt(node, 2, ""),
		Shape:          ShapeRect,
		Layers:         []string{},
		RoundRectRatio: DefaultRoundRectRatio,
	}
	if shape := sexp.StringAt(node, 3, ""); knownShapes[shape] {
		pad.Shape = shape
	}

	for _, child := range sexp.Args(node) {
		switch sexp.Head(child) {
		case "at":
			if pl, err := sexp.GetPlacement(child); err == nil {
				pad.At = pl
			}

		case "size":
			pad.Size = sexp.Size{
				Width:  sexp.FloatAt(child, 1, 0),
				Height: sexp.FloatAt(child, 2, 0),
			}

		case "layers":
			pad.Layers = expandLayers(child)

		case "drill":
			pad.Drill = parseDrill(child)

		case "roundrect_rratio":
			pad.RoundRectRatio = sexp.FloatAt(child, 1, DefaultRoundRectRatio)

		case "options":
			if anchor, ok := sexp.FindNode(child, "anchor"); ok {
				pad.AnchorShape = sexp.StringAt(anchor, 1, "")
			}

		case "primitives":
			pad.Primitives = parsePrimitives(child)
		}
	}

	return pad, nil
}

// expandLayers keeps the layers as written and appends the concrete layers
// implied by wildcards.
func expandLayers(node kicadsexp.Sexp) []string {
	layers := []string{}
	seen := make(map[string]bool)
	add := func(l string) {
		if l == "" || seen[l] {
			return
		}
		seen[l] = true
		layers = append(layers, l)
	}

	var wildcards []string
	for _, item := range sexp.Args(node) {
		sym, ok := item.(kicadsexp.Symbol)
		if !ok {
			continue
		}
		add(string(sym))
		if _, ok := layerWildcards[string(sym)]; ok {
			wildcards = append(wildcards, string(sym))
		}
	}
	for _, w := range wildcards {
		for _, l := range layerWildcards[w] {
			add(l)
		}
	}
	return layers
}

// parseDrill handles (drill D), (drill oval W [H]) and the optional
// (offset ...) child.
func parseDrill(node kicadsexp.Sexp) *Drill {
	if sexp.StringAt(node, 1, "") == DrillOval {
		w, err := sexp.GetFloat(node, 2)
		if err != nil {
			return nil
		}
		h := sexp.FloatAt(node, 3, w)
		return &Drill{Kind: DrillOval, Size: sexp.Size{Width: w, Height: h}}
	}

	d, err := sexp.GetFloat(node, 1)
	if err != nil {
		return nil
	}
	return &Drill{Kind: DrillCircular, Size: sexp.Size{Width: d, Height: d}}
}

func parsePrimitives(node kicadsexp.Sexp) []Primitive {
	var prims []Primitive
	for _, child := range sexp.Args(node) {
		switch head := sexp.Head(child); head {
		case "gr_poly", "gr_circle", "gr_line", "gr_arc":
			prims = append(prims, Primitive{
				Type:   head,
				Points: sexp.GetPoints(child),
				Start:  sexp.ChildPoint(child, "start"),
				End:    sexp.ChildPoint(child, "end"),
				Center: sexp.ChildPoint(child, "center"),
				Mid:    sexp.ChildPoint(child, "mid"),
				Width:  widthOf(child),
				Radius: sexp.ChildFloat(child, "radius"),
				Angle:  sexp.ChildFloat(child, "angle"),
			})
		}
	}
	return prims
}

// parseShape extracts a footprint graphic. Width is read from (width W) or
// (stroke (width W)).
func parseShape(node kicadsexp.Sexp) Shape {
	shape := Shape{
		Type:   sexp.Head(node),
		Layer:  DefaultShapeLayer,
		Width:  DefaultShapeWidth,
		Start:  sexp.ChildPoint(node, "start"),
		End:    sexp.ChildPoint(node, "end"),
		Center: sexp.ChildPoint(node, "center"),
		Mid:    sexp.ChildPoint(node, "mid"),
		Angle:  sexp.ChildFloat(node, "angle"),
		Points: sexp.GetPoints(node),
	}

	if layerNode, ok := sexp.FindNode(node, "layer"); ok {
		if layer := sexp.StringAt(layerNode, 1, ""); layer != "" {
			shape.Layer = layer
		}
	}
	if w := widthOf(node); w != nil {
		shape.Width = *w
	}

	if shape.Type == "zone" && shape.Points == nil {
		if poly, ok := sexp.FindNode(node, "polygon"); ok {
			shape.Points = sexp.GetPoints(poly)
		}
	}

	return shape
}

func widthOf(node kicadsexp.Sexp) *float64 {
	if w := sexp.ChildFloat(node, "width"); w != nil {
		return w
	}
	if stroke, ok := sexp.FindNode(node, "stroke"); ok {
		return sexp.ChildFloat(stroke, "width")
	}
	return nil
}
