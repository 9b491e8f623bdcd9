package schematic

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSheet(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestBuildHierarchy(t *testing.T) {
	dir := t.TempDir()
	root := writeSheet(t, dir, "board.kicad_sch", `(kicad_sch (version 20231120) (uuid root)
		(symbol (lib_id "Device:R") (property "Reference" "R1" (at 0 0 0)))
		(sheet (uuid s1) (property "Sheetname" "A" (at 0 0 0)) (property "Sheetfile" "sub/child.kicad_sch" (at 0 0 0)))
		(sheet (uuid s2) (property "Sheetname" "B" (at 0 0 0)) (property "Sheetfile" "sub/child.kicad_sch" (at 0 0 0)))
		(sheet (uuid s3) (property "Sheetfile" "missing.kicad_sch" (at 0 0 0)))
	)`)
	writeSheet(t, dir, "sub/child.kicad_sch", `(kicad_sch (version 20231120) (uuid child)
		(symbol (lib_id "Device:C")
			(property "Reference" "C?" (at 0 0 0))
			(instances (project "board"
				(path "/root/s1" (reference "C1") (unit 1))
				(path "/root/s2" (reference "C2") (unit 1))))
		)
		(sheet (uuid s9) (property "Sheetfile" "../board.kicad_sch" (at 0 0 0)))
	)`)

	tree, err := BuildHierarchy(root)
	if err != nil {
		t.Fatalf("BuildHierarchy() error = %v", err)
	}

	if tree.UUIDPath != "/root" {
		t.Errorf("root UUIDPath = %q", tree.UUIDPath)
	}
	if len(tree.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(tree.Children))
	}

	a := tree.Children[0]
	if a.Name != "A" || a.UUIDPath != "/root/s1" || a.Schematic == nil {
		t.Errorf("sheet A = %+v", a)
	}
	if len(a.Children) != 1 || !a.Children[0].Recursive {
		t.Fatalf("expected recursive back-reference under A, got %+v", a.Children)
	}
	if a.Children[0].Schematic != nil || len(a.Children[0].Children) != 0 {
		t.Error("recursive node must not be expanded")
	}
	if tree.Children[1].Recursive {
		t.Error("reusing a sheet file in a sibling is not recursion")
	}
	if tree.Children[2].Err == "" {
		t.Error("expected error on missing sheet")
	}

	placed := tree.Flatten()
	refs := make([]string, 0, len(placed))
	for _, p := range placed {
		refs = append(refs, p.Reference)
	}
	want := []string{"R1", "C1", "C2"}
	if len(refs) != len(want) {
		t.Fatalf("Flatten() refs = %v, want %v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("Flatten() refs = %v, want %v", refs, want)
			break
		}
	}

	files := tree.Files()
	if len(files) != 2 {
		t.Errorf("Files() = %v, want root and child once each", files)
	}
}

func TestBuildHierarchyMissingRoot(t *testing.T) {
	if _, err := BuildHierarchy(filepath.Join(t.TempDir(), "none.kicad_sch")); err == nil {
		t.Error("expected error for missing root")
	}
}
