package schematic

import (
	"path/filepath"
	"strings"
)

// SheetNode is one sheet in a project's hierarchy.
type SheetNode struct {
	File     string `json:"file"`
	Name     string `json:"name,omitempty"`
	UUIDPath string `json:"uuid_path"`
	// Recursive marks a sheet whose file is already open further up the
	// walk. Its children are not expanded.
	Recursive bool         `json:"recursive,omitempty"`
	Err       string       `json:"error,omitempty"`
	Schematic *Schematic   `json:"-"`
	Children  []*SheetNode `json:"children,omitempty"`
}

// PlacedComponent is a component together with the sheet instance it was
// found on and its reference at that instance.
type PlacedComponent struct {
	Component
	SheetFile string `json:"sheet_file"`
	UUIDPath  string `json:"uuid_path"`
}

// BuildHierarchy parses rootFile and every sheet below it. Sheet files are
// resolved relative to the directory of the schematic that places them.
// Unreadable child sheets are kept as nodes with Err set. The error return
// is reserved for the root file.
func BuildHierarchy(rootFile string) (*SheetNode, error) {
	return BuildHierarchyWith(rootFile, ParseFile)
}

// BuildHierarchyWith is BuildHierarchy with a custom sheet loader, used to
// serve sheets from a cache.
func BuildHierarchyWith(rootFile string, load func(string) (*Schematic, error)) (*SheetNode, error) {
	rootFile = filepath.Clean(rootFile)
	sch, err := load(rootFile)
	if err != nil {
		return nil, err
	}

	root := &SheetNode{
		File:      rootFile,
		UUIDPath:  JoinUUIDPath("/", sch.UUID),
		Schematic: sch,
	}
	visited := map[string]bool{sheetKey(rootFile): true}
	walkSheets(root, visited, load)
	return root, nil
}

func walkSheets(node *SheetNode, visited map[string]bool, load func(string) (*Schematic, error)) {
	dir := filepath.Dir(node.File)
	for _, sheet := range node.Schematic.Sheets {
		if sheet.File == "" {
			continue
		}
		file := sheet.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, filepath.FromSlash(strings.ReplaceAll(file, `\`, "/")))
		}
		file = filepath.Clean(file)

		child := &SheetNode{
			File:     file,
			Name:     sheet.Name,
			UUIDPath: JoinUUIDPath(node.UUIDPath, sheet.UUID),
		}
		node.Children = append(node.Children, child)

		key := sheetKey(file)
		if visited[key] {
			child.Recursive = true
			continue
		}

		sch, err := load(file)
		if err != nil {
			child.Err = err.Error()
			continue
		}
		child.Schematic = sch

		visited[key] = true
		walkSheets(child, visited, load)
		delete(visited, key)
	}
}

// Files returns every sheet file reachable from n, each once, in walk order.
func (n *SheetNode) Files() []string {
	seen := make(map[string]bool)
	var files []string
	n.walk(func(s *SheetNode) {
		if s.Schematic == nil || seen[s.File] {
			return
		}
		seen[s.File] = true
		files = append(files, s.File)
	})
	return files
}

// Flatten lists every component of every sheet instance with its
// reference resolved for that instance. Recursive and unreadable sheets
// contribute nothing.
func (n *SheetNode) Flatten() []PlacedComponent {
	var out []PlacedComponent
	n.walk(func(s *SheetNode) {
		if s.Schematic == nil {
			return
		}
		for _, c := range s.Schematic.Components {
			placed := PlacedComponent{
				Component: c,
				SheetFile: s.File,
				UUIDPath:  s.UUIDPath,
			}
			placed.Reference = c.ResolveReference(s.UUIDPath)
			out = append(out, placed)
		}
	})
	return out
}

func (n *SheetNode) walk(fn func(*SheetNode)) {
	fn(n)
	for _, c := range n.Children {
		c.walk(fn)
	}
}

func sheetKey(path string) string {
	return strings.ToLower(filepath.ToSlash(path))
}
