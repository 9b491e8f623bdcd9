// Package resolve locates footprint files and their 3D models from
// "LIB:NAME" references.
package resolve

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/logging"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/paths"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/footprint"
)

// ErrNotFound is returned when a footprint or model file cannot be located.
var ErrNotFound = errors.New("file not found")

// LibraryIndex maps a footprint library name to its .pretty directory.
type LibraryIndex interface {
	Path(name string) (string, bool)
}

// modelExtensions are interchangeable 3D model extensions.
var modelExtensions = []string{".stp", ".step", ".wrl", ".wrz"}

// modelDirs are probed below the footprint library's parent directory.
var modelDirs = []string{"3D Model", "3D Models", "3dmodels", "3d_models", "3D", "models"}

// Resolver finds footprints and models.
type Resolver struct {
	Paths *paths.Resolver
	// Libraries is the footprint index. May be nil.
	Libraries LibraryIndex
	// Roots are the configured footprint roots, already resolved.
	Roots  []string
	Logger *zap.Logger
}

// SplitRef splits "LIB:NAME". A reference without a colon has no library.
func SplitRef(ref string) (lib, name string) {
	ref = strings.TrimSpace(ref)
	if i := strings.Index(ref, ":"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}

// FindFootprint returns the path of the .kicad_mod file for ref.
func (r *Resolver) FindFootprint(ref string) (string, error) {
	lib, name := SplitRef(ref)
	if name == "" {
		return "", fmt.Errorf("%w: empty footprint reference %q", ErrNotFound, ref)
	}
	file := name + footprint.Extension

	var candidates []string
	if lib != "" && r.Libraries != nil {
		if dir, ok := r.Libraries.Path(lib); ok {
			candidates = append(candidates, filepath.Join(dir, file))
		}
	}
	for _, root := range r.Roots {
		root = filepath.FromSlash(root)
		if lib != "" {
			candidates = append(candidates,
				filepath.Join(root, lib+footprint.LibrarySuffix, file),
				filepath.Join(root, lib, file))
		}
		candidates = append(candidates, filepath.Join(root, file))
	}

	for _, c := range candidates {
		if isFile(c) {
			return c, nil
		}
	}

	for _, root := range r.Roots {
		if hit := findFile(filepath.FromSlash(root), []string{file}); hit != "" {
			return hit, nil
		}
	}

	return "", fmt.Errorf("%w: footprint %q", ErrNotFound, ref)
}

// Footprint finds and parses the footprint for ref and fills in ModelPath
// when its model can be located.
func (r *Resolver) Footprint(ref string) (*footprint.Module, error) {
	path, err := r.FindFootprint(ref)
	if err != nil {
		return nil, err
	}
	mod, err := footprint.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse footprint %q: %w", ref, err)
	}
	if mod.Model != "" {
		model, err := r.ResolveModel(mod.Model, path)
		if err != nil {
			logging.OrNop(r.Logger).Debug("3D model not resolved",
				zap.String("footprint", ref), zap.String("model", mod.Model), zap.Error(err))
		} else {
			mod.ModelPath = model
		}
	}
	return mod, nil
}

// ResolveModel maps the raw model reference of the footprint stored at
// footprintFile to an existing file. Alternate extensions and the usual
// model directories around the footprint library are tried when the
// referenced file does not exist.
func (r *Resolver) ResolveModel(model, footprintFile string) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", fmt.Errorf("%w: empty model reference", ErrNotFound)
	}

	pr := r.Paths
	if pr == nil {
		pr = paths.New("")
	}
	root := pr.Root()
	expanded := strings.NewReplacer(
		paths.BaseDir, root,
		paths.LegacyBaseDir, root,
		paths.ProjectRoot, root,
		paths.FootprintDir, r.footprintRootFor(footprintFile),
	).Replace(model)
	resolved := filepath.FromSlash(pr.Resolve(expanded))

	if isFile(resolved) {
		return resolved, nil
	}

	names := candidateNames(filepath.Base(filepath.FromSlash(strings.ReplaceAll(model, `\`, "/"))))
	prettyDir := filepath.Dir(footprintFile)
	parent := filepath.Dir(prettyDir)

	dirs := []string{prettyDir, parent}
	for _, d := range modelDirs {
		dirs = append(dirs, filepath.Join(parent, d))
	}
	dirs = append(dirs,
		filepath.Join(prettyDir, "3D Model"),
		filepath.Join(prettyDir, "3D Models"))
	if stem := strings.TrimSuffix(filepath.Base(prettyDir), filepath.Ext(prettyDir)); stem != "" {
		dirs = append(dirs, filepath.Join(parent, stem+".3dshapes"))
	}

	for _, d := range dirs {
		for _, n := range names {
			if p := filepath.Join(d, n); isFile(p) {
				return p, nil
			}
		}
	}

	if hit := findFile(parent, names); hit != "" {
		return hit, nil
	}

	return "", fmt.Errorf("%w: model %q", ErrNotFound, model)
}

// footprintRootFor returns the configured root containing file, or the
// first root.
func (r *Resolver) footprintRootFor(file string) string {
	slashed := filepath.ToSlash(file)
	for _, root := range r.Roots {
		root = paths.Normalize(root)
		if root == "" {
			continue
		}
		prefix := strings.TrimSuffix(root, "/") + "/"
		if strings.HasPrefix(slashed, prefix) || (paths.IsWindows(root) && strings.HasPrefix(strings.ToLower(slashed), strings.ToLower(prefix))) {
			return root
		}
	}
	if len(r.Roots) > 0 {
		return paths.Normalize(r.Roots[0])
	}
	return ""
}

// candidateNames returns base followed by base with each other model
// extension.
func candidateNames(base string) []string {
	names := []string{base}
	ext := filepath.Ext(base)
	known := false
	for _, e := range modelExtensions {
		if strings.EqualFold(e, ext) {
			known = true
		}
	}
	if !known {
		return names
	}
	stem := strings.TrimSuffix(base, ext)
	for _, e := range modelExtensions {
		if !strings.EqualFold(e, ext) {
			names = append(names, stem+e)
		}
	}
	return names
}

// findFile walks root and returns the first file whose name matches one of
// names, ignoring case.
func findFile(root string, names []string) string {
	if root == "" {
		return ""
	}
	var hit string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		for _, n := range names {
			if strings.EqualFold(d.Name(), n) {
				hit = p
				return filepath.SkipAll
			}
		}
		return nil
	})
	return hit
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
