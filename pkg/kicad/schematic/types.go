// Package schematic provides parsing for KiCad schematic files (.kicad_sch)
package schematic

import (
	"strings"
)

// Extension is the file extension of schematic sheets.
const Extension = ".kicad_sch"

// Schematic is one parsed sheet file. Only the parts needed to list the
// components and follow the sheet hierarchy are kept.
type Schematic struct {
	FilePath   string      `json:"file_path"`
	Version    int         `json:"version,omitempty"`
	Generator  string      `json:"generator,omitempty"`
	UUID       string      `json:"uuid,omitempty"`
	Components []Component `json:"components"`
	Sheets     []Sheet     `json:"sheets"`
	// StrayParens counts unmatched ')' the reader skipped.
	StrayParens int `json:"-"`
}

// Component is a placed symbol that carries a reference designator.
type Component struct {
	Reference      string `json:"reference"`
	Value          string `json:"value"`
	LibID          string `json:"lib_id"`
	Footprint      string `json:"footprint"`
	UUID           string `json:"uuid,omitempty"`
	ExcludeFromBOM bool   `json:"exclude_from_bom"`
	DNP            bool   `json:"dnp"`
	Power          bool   `json:"power"`
	// InstancesRaw is the (instances ...) subtree exactly as parsed.
	InstancesRaw string     `json:"instances_raw,omitempty"`
	Instances    []Instance `json:"instances,omitempty"`
}

// Instance is one (path "/uuid/..." (reference "R1") (unit 1)) entry of a
// component's instances block.
type Instance struct {
	Project   string `json:"project,omitempty"`
	Path      string `json:"path"`
	Reference string `json:"reference"`
	Unit      int    `json:"unit,omitempty"`
}

// Sheet is a hierarchical sheet placed on a schematic. File is relative to
// the directory of the parent schematic.
type Sheet struct {
	UUID string `json:"uuid"`
	Name string `json:"name,omitempty"`
	File string `json:"file"`
}

// ResolveReference returns the reference designator the component has at
// the given sheet UUID path, falling back to the Reference property when no
// instance matches.
func (c *Component) ResolveReference(uuidPath string) string {
	want := normalizeUUIDPath(uuidPath)
	for _, inst := range c.Instances {
		if inst.Reference != "" && normalizeUUIDPath(inst.Path) == want {
			return inst.Reference
		}
	}
	return c.Reference
}

// LibraryName returns the library part of the lib_id ("Device" for
// "Device:R"), or "" when the lib_id carries no library.
func (c *Component) LibraryName() string {
	lib, _, ok := strings.Cut(c.LibID, ":")
	if !ok {
		return ""
	}
	return lib
}

func normalizeUUIDPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// JoinUUIDPath appends a sheet UUID to a UUID path.
func JoinUUIDPath(parent, uuid string) string {
	parent = normalizeUUIDPath(parent)
	if uuid == "" {
		return parent
	}
	if parent == "/" {
		return "/" + uuid
	}
	return parent + "/" + uuid
}
