// Package footprint parses standalone KiCad footprint files (.kicad_mod).
package footprint

import (
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/sexp"
)

// Extension is the file extension of footprint files; LibrarySuffix is the
// directory suffix of footprint libraries.
const (
	Extension     = ".kicad_mod"
	LibrarySuffix = ".pretty"
)

// Defaults applied when the source omits a value.
const (
	DefaultShapeLayer     = "F.Fab"
	DefaultShapeWidth     = 0.15
	DefaultRoundRectRatio = 0.25
)

// Pad types
const (
	PadSMD        = "smd"
	PadThruHole   = "thru_hole"
	PadNPThruHole = "np_thru_hole"
	PadConnect    = "connect"
)

// Pad shapes
const (
	ShapeRect      = "rect"
	ShapeCircle    = "circle"
	ShapeOval      = "oval"
	ShapeRoundRect = "roundrect"
	ShapeCustom    = "custom"
)

// Drill kinds
const (
	DrillCircular = "circular"
	DrillOval     = "oval"
)

// Module is one parsed footprint.
type Module struct {
	Name     string  `json:"name"`
	FilePath string  `json:"file_path"`
	Pads     []Pad   `json:"pads"`
	Shapes   []Shape `json:"shapes"`
	// Model is the raw 3D model reference as written in the file.
	Model string `json:"model,omitempty"`
	// ModelPath is the resolved model file, filled in by the reference resolver.
	ModelPath string `json:"model_path,omitempty"`
	// StrayParens counts unmatched ')' the reader skipped.
	StrayParens int `json:"-"`
}

// Pad represents a footprint pad
type Pad struct {
	Number         string         `json:"number"`
	Type           string         `json:"type"`
	Shape          string         `json:"shape"`
	At             sexp.Placement `json:"at"`
	Size           sexp.Size      `json:"size"`
	Layers         []string       `json:"layers"`
	Drill          *Drill         `json:"drill,omitempty"`
	RoundRectRatio float64        `json:"roundrect_rratio"`
	AnchorShape    string         `json:"anchor_shape,omitempty"`
	Primitives     []Primitive    `json:"primitives,omitempty"`
}

// Drill is a circular or oval hole. Circular drills carry the diameter in
// both dimensions.
type Drill struct {
	Kind string    `json:"kind"`
	Size sexp.Size `json:"size"`
}

// Primitive is one element of a custom pad shape.
type Primitive struct {
	Type   string       `json:"type"`
	Points []sexp.Point `json:"pts,omitempty"`
	Start  *sexp.Point  `json:"start,omitempty"`
	End    *sexp.Point  `json:"end,omitempty"`
	Center *sexp.Point  `json:"center,omitempty"`
	Mid    *sexp.Point  `json:"mid,omitempty"`
	Width  *float64     `json:"width,omitempty"`
	Radius *float64     `json:"radius,omitempty"`
	Angle  *float64     `json:"angle,omitempty"`
}

// Shape is a footprint graphic (fp_line, fp_rect, fp_circle, fp_arc,
// fp_poly) or a zone outline.
type Shape struct {
	Type   string       `json:"type"`
	Layer  string       `json:"layer"`
	Width  float64      `json:"width"`
	Start  *sexp.Point  `json:"start,omitempty"`
	End    *sexp.Point  `json:"end,omitempty"`
	Center *sexp.Point  `json:"center,omitempty"`
	Mid    *sexp.Point  `json:"mid,omitempty"`
	Angle  *float64     `json:"angle,omitempty"`
	Points []sexp.Point `json:"pts,omitempty"`
}

// PadNumbers returns the distinct non-empty pad numbers in order.
func (m *Module) PadNumbers() []string {
	seen := make(map[string]bool, len(m.Pads))
	var nums []string
	for _, p := range m.Pads {
		if p.Number == "" || seen[p.Number] {
			continue
		}
		seen[p.Number] = true
		nums = append(nums, p.Number)
	}
	return nums
}
