// Package symbol parses KiCad symbol libraries (.kicad_sym) into flat
// records suitable for caching and validation, and performs targeted
// single-property edits on library files.
package symbol

import (
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/sexp"
)

// Pin defaults applied when the source omits a value.
const (
	DefaultPinLength    = 2.54
	DefaultTextSize     = 1.27
	DefaultNamesOffset  = 0.508
	UnnumberedPinNumber = "?"
)

// Names of the two properties tracked in VisualProperties.
const (
	PropReference = "Reference"
	PropValue     = "Value"
	PropFootprint = "Footprint"
)

// Symbol is one library symbol with everything the validator needs.
type Symbol struct {
	Library  string `json:"library"`
	Name     string `json:"name"`
	Extends  string `json:"extends,omitempty"`
	FilePath string `json:"file_path"`

	Properties       map[string]string `json:"properties"`
	VisualProperties []Property        `json:"visual_properties"`

	Pins     []Pin     `json:"pins"`
	Graphics []Graphic `json:"graphics"`

	ShowPinNumbers bool    `json:"show_pin_numbers"`
	ShowPinNames   bool    `json:"show_pin_names"`
	PinNamesOffset float64 `json:"pin_names_offset"`
}

// Property is an ordered key/value pair.
type Property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Pin represents a symbol pin
type Pin struct {
	Type   string         `json:"type"`            // input, output, passive, power_in, ...
	Style  string         `json:"style,omitempty"` // line, inverted, clock, ...
	At     sexp.Placement `json:"at"`              // angle snapped to 0/90/180/270
	Length float64        `json:"length"`
	Number string         `json:"number"`
	Name   string         `json:"name"`

	Visible      bool     `json:"visible"`
	NumVisible   bool     `json:"num_visible"`
	NameVisible  bool     `json:"name_visible"`
	NumTextSize  float64  `json:"num_text_size"`
	NameTextSize float64  `json:"name_text_size"`
	StrokeWidth  *float64 `json:"stroke_width,omitempty"`
}

// Graphic kinds
const (
	GraphicRectangle = "rectangle"
	GraphicPolyline  = "polyline"
	GraphicCircle    = "circle"
	GraphicArc       = "arc"
	GraphicText      = "text"
)

// Graphic is a drawing primitive tagged by Kind. Only the fields relevant to
// the kind are set; Raw keeps the source expression verbatim.
type Graphic struct {
	Kind   string          `json:"kind"`
	Start  *sexp.Point     `json:"start,omitempty"`
	Mid    *sexp.Point     `json:"mid,omitempty"`
	End    *sexp.Point     `json:"end,omitempty"`
	Center *sexp.Point     `json:"center,omitempty"`
	Radius float64         `json:"radius,omitempty"`
	Points []sexp.Point    `json:"points,omitempty"`
	Text   string          `json:"text,omitempty"`
	At     *sexp.Placement `json:"at,omitempty"`
	Raw    string          `json:"raw"`
}

// ID returns the "library:name" identifier used by schematics and rules.
func (s *Symbol) ID() string {
	return s.Library + ":" + s.Name
}

// Property returns a property value and whether it is set.
func (s *Symbol) Property(key string) (string, bool) {
	v, ok := s.Properties[key]
	return v, ok
}

// PinNumbers returns the pin numbers in declaration order.
func (s *Symbol) PinNumbers() []string {
	nums := make([]string, 0, len(s.Pins))
	for _, p := range s.Pins {
		nums = append(nums, p.Number)
	}
	return nums
}

func newSymbol(library, name, path string) *Symbol {
	return &Symbol{
		Library:          library,
		Name:             name,
		FilePath:         path,
		Properties:       make(map[string]string),
		VisualProperties: []Property{},
		Pins:             []Pin{},
		Graphics:         []Graphic{},
		ShowPinNumbers:   true,
		ShowPinNames:     true,
		PinNamesOffset:   DefaultNamesOffset,
	}
}

func newPin() Pin {
	return Pin{
		Length:       DefaultPinLength,
		Number:       UnnumberedPinNumber,
		Visible:      true,
		NumVisible:   true,
		NameVisible:  true,
		NumTextSize:  DefaultTextSize,
		NameTextSize: DefaultTextSize,
	}
}
