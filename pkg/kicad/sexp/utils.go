package sexp

import (
	"fmt"
	"strconv"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/sexp/kicadsexp"
)

// S-expression navigation helpers

// Items returns the elements of a list, or nil for atoms.
func Items(s kicadsexp.Sexp) []kicadsexp.Sexp {
	if l, ok := s.(*kicadsexp.List); ok && l != nil {
		return l.Items()
	}
	return nil
}

// Head returns the leading atom of a list (the node name), or "" when s is
// an atom or an empty list or starts with a sub-list.
func Head(s kicadsexp.Sexp) string {
	items := Items(s)
	if len(items) == 0 {
		return ""
	}
	if sym, ok := items[0].(kicadsexp.Symbol); ok {
		return string(sym)
	}
	return ""
}

// Args returns all items in a list excluding the head.
// Example: Args((layers "F.Cu" "B.Cu")) returns ["F.Cu", "B.Cu"]
func Args(s kicadsexp.Sexp) []kicadsexp.Sexp {
	items := Items(s)
	if len(items) <= 1 {
		return nil
	}
	return items[1:]
}

// FindNode searches for a direct child list whose head is key.
// Example: FindNode(pad, "at") finds (at 100 50) in a pad
func FindNode(s kicadsexp.Sexp, key string) (kicadsexp.Sexp, bool) {
	for _, item := range Items(s) {
		if !item.IsLeaf() && Head(item) == key {
			return item, true
		}
	}
	return nil, false
}

// FindAllNodes finds all direct child lists with the given head.
func FindAllNodes(s kicadsexp.Sexp, key string) []kicadsexp.Sexp {
	var results []kicadsexp.Sexp
	for _, item := range Items(s) {
		if !item.IsLeaf() && Head(item) == key {
			results = append(results, item)
		}
	}
	return results
}

// Typed value extraction helpers

// GetString extracts the atom at the given index in a list.
// Index 0 is the key, 1 is first value, etc.
func GetString(s kicadsexp.Sexp, index int) (string, error) {
	items := Items(s)
	if items == nil {
		return "", fmt.Errorf("expected list, got %v", s)
	}
	if index < 0 || index >= len(items) {
		return "", fmt.Errorf("index %d out of bounds (length %d)", index, len(items))
	}
	if sym, ok := items[index].(kicadsexp.Symbol); ok {
		return string(sym), nil
	}
	return "", fmt.Errorf("expected atom at index %d, got list", index)
}

// StringAt is GetString with the error folded into a default.
func StringAt(s kicadsexp.Sexp, index int, def string) string {
	v, err := GetString(s, index)
	if err != nil {
		return def
	}
	return v
}

// GetFloat extracts a float64 value at the given index
func GetFloat(s kicadsexp.Sexp, index int) (float64, error) {
	str, err := GetString(s, index)
	if err != nil {
		return 0, err
	}

	val, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse float %q: %w", str, err)
	}

	return val, nil
}

// FloatAt is GetFloat with the error folded into a default.
func FloatAt(s kicadsexp.Sexp, index int, def float64) float64 {
	v, err := GetFloat(s, index)
	if err != nil {
		return def
	}
	return v
}

// GetInt extracts an int value at the given index
func GetInt(s kicadsexp.Sexp, index int) (int, error) {
	str, err := GetString(s, index)
	if err != nil {
		return 0, err
	}

	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("failed to parse int %q: %w", str, err)
	}

	return val, nil
}

// HasSymbol checks if a list contains a specific atom among its direct
// children (the head included).
func HasSymbol(s kicadsexp.Sexp, symbol string) bool {
	for _, item := range Items(s) {
		if sym, ok := item.(kicadsexp.Symbol); ok && string(sym) == symbol {
			return true
		}
	}
	return false
}

// HasFlag reports whether a boolean marker is set on s, in any of the
// encodings KiCad has used: a bare atom (hide), an empty child list (hide),
// or a yes/no child list (hide yes).
func HasFlag(s kicadsexp.Sexp, flag string) bool {
	for _, item := range Args(s) {
		if sym, ok := item.(kicadsexp.Symbol); ok {
			if string(sym) == flag {
				return true
			}
			continue
		}
		if Head(item) != flag {
			continue
		}
		v, err := GetString(item, 1)
		if err != nil || v == "yes" || v == "true" {
			return true
		}
	}
	return false
}

// YesNo looks for a (key yes|no) child and returns its value and whether it
// was present.
func YesNo(s kicadsexp.Sexp, key string) (value, found bool) {
	node, ok := FindNode(s, key)
	if !ok {
		return false, false
	}
	v := StringAt(node, 1, "yes")
	return v == "yes" || v == "true", true
}

// Domain-specific extraction helpers

// GetPlacement extracts (at X Y [angle]). Coordinates are millimeters and
// the angle is in degrees, as written in KiCad 6+ files.
func GetPlacement(s kicadsexp.Sexp) (Placement, error) {
	x, err := GetFloat(s, 1)
	if err != nil {
		return Placement{}, fmt.Errorf("failed to parse X coordinate: %w", err)
	}
	y, err := GetFloat(s, 2)
	if err != nil {
		return Placement{}, fmt.Errorf("failed to parse Y coordinate: %w", err)
	}
	return Placement{X: x, Y: y, Angle: FloatAt(s, 3, 0)}, nil
}

// GetPoint extracts X,Y from nodes such as (start X Y), (end X Y), (xy X Y).
func GetPoint(s kicadsexp.Sexp) (Point, error) {
	x, err := GetFloat(s, 1)
	if err != nil {
		return Point{}, fmt.Errorf("failed to parse X: %w", err)
	}
	y, err := GetFloat(s, 2)
	if err != nil {
		return Point{}, fmt.Errorf("failed to parse Y: %w", err)
	}
	return Point{X: x, Y: y}, nil
}

// ChildPoint finds the key child and parses it as a point. It returns nil
// when the child is missing or malformed.
func ChildPoint(s kicadsexp.Sexp, key string) *Point {
	node, ok := FindNode(s, key)
	if !ok {
		return nil
	}
	p, err := GetPoint(node)
	if err != nil {
		return nil
	}
	return &p
}

// ChildFloat finds the key child and parses its first argument. It returns
// nil when the child is missing or malformed.
func ChildFloat(s kicadsexp.Sexp, key string) *float64 {
	node, ok := FindNode(s, key)
	if !ok {
		return nil
	}
	v, err := GetFloat(node, 1)
	if err != nil {
		return nil
	}
	return &v
}

// GetPoints collects every (xy X Y) below a (pts ...) child of s.
func GetPoints(s kicadsexp.Sexp) []Point {
	ptsNode, ok := FindNode(s, "pts")
	if !ok {
		return nil
	}
	var pts []Point
	for _, xy := range FindAllNodes(ptsNode, "xy") {
		if p, err := GetPoint(xy); err == nil {
			pts = append(pts, p)
		}
	}
	return pts
}

// GetFontSize returns the height from (effects (font (size H W))), or
// false when no size is present.
func GetFontSize(effects kicadsexp.Sexp) (float64, bool) {
	font, ok := FindNode(effects, "font")
	if !ok {
		return 0, false
	}
	size, ok := FindNode(font, "size")
	if !ok {
		return 0, false
	}
	h, err := GetFloat(size, 1)
	if err != nil {
		return 0, false
	}
	return h, true
}
