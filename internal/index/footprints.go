package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/cache"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/logging"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/metrics"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/footprint"
)

// FootprintFormatVersion is the format_version of the footprint cache.
const FootprintFormatVersion = 1

type footprintEnvelope struct {
	Meta      cache.Meta        `json:"__meta__"`
	Libraries map[string]string `json:"libraries"`
}

// FootprintIndexer maps footprint library names to their .pretty
// directories.
type FootprintIndexer struct {
	CachePath string
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Libraries is the footprint library map in discovery order.
type Libraries struct {
	order []string
	paths map[string]string
}

// NewLibraries builds a map from name/path pairs in order. The first
// occurrence of a name wins.
func NewLibraries(pairs ...[2]string) *Libraries {
	l := &Libraries{paths: make(map[string]string)}
	for _, p := range pairs {
		l.add(p[0], p[1])
	}
	return l
}

func (l *Libraries) add(name, path string) bool {
	if _, ok := l.paths[name]; ok {
		return false
	}
	l.paths[name] = path
	l.order = append(l.order, name)
	return true
}

// Path returns the .pretty directory of a library.
func (l *Libraries) Path(name string) (string, bool) {
	if l == nil {
		return "", false
	}
	p, ok := l.paths[name]
	return p, ok
}

// Names returns the library names in order.
func (l *Libraries) Names() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.order...)
}

// Len returns the number of libraries.
func (l *Libraries) Len() int {
	if l == nil {
		return 0
	}
	return len(l.order)
}

// Map returns a copy of the name to path map.
func (l *Libraries) Map() map[string]string {
	out := make(map[string]string, l.Len())
	if l == nil {
		return out
	}
	for k, v := range l.paths {
		out[k] = v
	}
	return out
}

// FootprintScan is the outcome of one footprint scan.
type FootprintScan struct {
	Libraries   *Libraries
	Meta        cache.Meta
	Diagnostics []string
	Written     bool
}

// Scan enumerates every .pretty directory under the roots. The cache is
// rewritten only when the library map changed, and never when the new map
// is empty.
func (ix *FootprintIndexer) Scan(roots []string) *FootprintScan {
	start := time.Now()
	log := logging.OrNop(ix.Logger).With(zap.String("indexer", "footprints"))
	defer func() { ix.Metrics.ObserveScan("footprints", time.Since(start)) }()

	res := &FootprintScan{Libraries: NewLibraries()}
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		res.Diagnostics = append(res.Diagnostics, msg)
		log.Warn(msg)
	}

	var dirs []string
	for _, root := range roots {
		dirs = append(dirs, findPrettyDirs(root, warn)...)
	}
	for _, d := range dirs {
		name := strings.TrimSuffix(filepath.Base(d), filepath.Ext(d))
		if !res.Libraries.add(name, d) {
			log.Debug("duplicate footprint library ignored", zap.String("library", name), zap.String("path", d))
		}
	}
	key := strings.Join(roots, ";")

	if res.Libraries.Len() == 0 {
		return res
	}

	var env footprintEnvelope
	loaded := false
	if ix.CachePath != "" {
		if err := cache.Load(ix.CachePath, &env); err != nil {
			if errors.Is(err, cache.ErrNotExist) {
				log.Info("no footprint cache yet", zap.String("path", ix.CachePath))
			} else {
				warn("footprint cache reset: %v", err)
			}
		} else if env.Meta.FormatVersion != FootprintFormatVersion {
			warn("footprint cache reset: format_version %d, want %d", env.Meta.FormatVersion, FootprintFormatVersion)
		} else {
			loaded = true
			if env.Meta.FootprintPath != key {
				warn("footprint cache was built for different roots")
			}
		}
	}

	current := res.Libraries.Map()
	res.Meta = cache.Meta{
		FootprintPath: key,
		FormatVersion: FootprintFormatVersion,
		GeneratedAt:   env.Meta.GeneratedAt,
		EntryCount:    len(current),
		CacheHash:     cache.PathDigest(current),
	}

	if loaded && env.Meta.FootprintPath == key && equalMaps(env.Libraries, current) {
		return res
	}

	res.Meta.GeneratedAt = cache.Timestamp(ix.now())
	if ix.CachePath == "" {
		return res
	}
	err := cache.Save(ix.CachePath, footprintEnvelope{Meta: res.Meta, Libraries: current})
	ix.Metrics.RecordCacheWrite("footprints", err)
	if err != nil {
		res.Meta.Warning = err.Error()
		warn("cache write failed: %v", err)
		return res
	}
	res.Written = true
	return res
}

// Cached returns the library map from the cache without scanning. ok is
// false when the cache is missing, was built for other roots or names a
// library directory that no longer exists.
func (ix *FootprintIndexer) Cached(roots []string) (*Libraries, bool) {
	if ix.CachePath == "" {
		return nil, false
	}
	log := logging.OrNop(ix.Logger).With(zap.String("indexer", "footprints"))
	libs, meta, err := LoadFootprintCache(ix.CachePath)
	if err != nil {
		log.Debug("footprint cache unusable", zap.Error(err))
		return nil, false
	}
	if meta.FootprintPath != strings.Join(roots, ";") || libs.Len() == 0 {
		log.Debug("footprint cache stale", zap.String("roots", meta.FootprintPath))
		return nil, false
	}
	for _, name := range libs.Names() {
		dir, _ := libs.Path(name)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			log.Debug("footprint library gone", zap.String("library", name), zap.String("path", dir))
			return nil, false
		}
	}
	return libs, true
}

// LoadFootprintCache returns the library map stored in the cache, sorted by
// name, and the cache metadata.
func LoadFootprintCache(path string) (*Libraries, cache.Meta, error) {
	var env footprintEnvelope
	if err := cache.Load(path, &env); err != nil {
		return nil, cache.Meta{}, err
	}
	if env.Meta.FormatVersion != FootprintFormatVersion {
		return nil, env.Meta, fmt.Errorf("footprint cache format_version %d, want %d", env.Meta.FormatVersion, FootprintFormatVersion)
	}
	libs := NewLibraries()
	names := make([]string, 0, len(env.Libraries))
	for name := range env.Libraries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		libs.add(name, env.Libraries[name])
	}
	return libs, env.Meta, nil
}

func (ix *FootprintIndexer) now() time.Time {
	if ix.Now != nil {
		return ix.Now()
	}
	return time.Now()
}

// findPrettyDirs walks root for directories named *.pretty without
// descending into them.
func findPrettyDirs(root string, warn func(string, ...any)) []string {
	if root == "" {
		return nil
	}
	root = filepath.FromSlash(root)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	info, err := os.Stat(root)
	if err != nil {
		warn("%s: %v", root, err)
		return nil
	}
	if !info.IsDir() {
		return nil
	}

	var dirs []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			warn("%s: %v", p, err)
			if d != nil && d.IsDir() && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() && strings.EqualFold(filepath.Ext(p), footprint.LibrarySuffix) {
			dirs = append(dirs, p)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		warn("%s: %v", root, err)
	}
	return dirs
}

func equalMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
