// Package index keeps incremental, mtime-keyed caches of parsed symbol
// libraries and of the footprint library directories.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/cache"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/logging"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/metrics"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/symbol"
)

// SymbolFormatVersion is the format_version of the symbol cache.
const SymbolFormatVersion = 3

// FileEntry is the cached parse of one library file.
type FileEntry struct {
	Mtime   float64          `json:"mtime"`
	Symbols []*symbol.Symbol `json:"symbols"`
}

type symbolEnvelope struct {
	Meta  cache.Meta           `json:"__meta__"`
	Files map[string]FileEntry `json:"files"`
}

// ParseFunc parses one library file.
type ParseFunc func(path string) (*symbol.Library, error)

// SymbolIndexer scans symbol library roots and maintains the symbol cache.
// It is not safe for concurrent Scan calls.
type SymbolIndexer struct {
	CachePath  string
	MaxWorkers int
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	// Parse defaults to parsing with the symbol package.
	Parse ParseFunc
	// Now defaults to time.Now.
	Now func() time.Time
}

// SymbolScan is the outcome of one scan.
type SymbolScan struct {
	Store       *Store
	Meta        cache.Meta
	Files       map[string]FileEntry
	Diagnostics []string
	// Parsed lists the files parsed successfully, in submission order.
	Parsed  []string
	Removed []string
	Written bool
}

// Scan enumerates the roots, re-parses stale files and rebuilds the store.
// Failures are reported in Diagnostics; Scan never aborts.
func (ix *SymbolIndexer) Scan(ctx context.Context, roots []string) *SymbolScan {
	start := time.Now()
	log := logging.OrNop(ix.Logger).With(zap.String("indexer", "symbols"))
	defer func() { ix.Metrics.ObserveScan("symbols", time.Since(start)) }()

	res := &SymbolScan{Store: NewStore()}
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		res.Diagnostics = append(res.Diagnostics, msg)
		log.Warn(msg)
	}

	// 1-2. enumerate and key
	files := enumerate(roots, isSymbolLibrary, warn)
	key := strings.Join(files, ";")

	// 3. load
	env, dirty := ix.load(key, warn, log)

	// 4. drop removed files
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}
	for f := range env.Files {
		if !present[f] {
			delete(env.Files, f)
			res.Removed = append(res.Removed, f)
			dirty = true
		}
	}

	// 5. find stale files
	type target struct {
		path  string
		mtime float64
	}
	var targets []target
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			warn("%s: stat failed: %v", f, err)
			continue
		}
		mtime := cache.Mtime(info)
		entry, ok := env.Files[f]
		if !ok || entry.Mtime != mtime || len(entry.Symbols) == 0 {
			targets = append(targets, target{path: f, mtime: mtime})
		}
	}

	// 6. parse
	paths := make([]string, len(targets))
	for i, t := range targets {
		paths[i] = t.path
	}
	results := ix.parseAll(ctx, paths)
	for i, r := range results {
		t := targets[i]
		ix.Metrics.RecordParse("symbols", r.err == nil)
		if r.err != nil {
			warn("%s: %v", t.path, r.err)
			continue
		}
		if r.stray > 0 {
			warn("%s: %d stray ')' ignored", t.path, r.stray)
		}
		env.Files[t.path] = FileEntry{Mtime: t.mtime, Symbols: r.symbols}
		res.Parsed = append(res.Parsed, t.path)
		dirty = true
	}

	// 7. materialize
	for _, f := range files {
		entry, ok := env.Files[f]
		if !ok || len(entry.Symbols) == 0 {
			continue
		}
		lib := symbol.LibraryName(f)
		for _, sym := range entry.Symbols {
			sym.Library = lib
			res.Store.Add(sym)
		}
	}

	// 8. persist
	env.Meta = ix.meta(env, key, env.Meta.GeneratedAt)
	if dirty {
		env.Meta.GeneratedAt = cache.Timestamp(ix.now())
		if ix.CachePath != "" {
			err := cache.Save(ix.CachePath, env)
			ix.Metrics.RecordCacheWrite("symbols", err)
			if err != nil {
				env.Meta.Warning = err.Error()
				warn("cache write failed: %v", err)
			} else {
				res.Written = true
			}
		}
	}

	res.Meta = env.Meta
	res.Files = env.Files
	log.Debug("scan finished",
		zap.Int("files", len(files)),
		zap.Int("parsed", len(res.Parsed)),
		zap.Int("removed", len(res.Removed)),
		zap.Int("symbols", res.Store.Len()),
		zap.Bool("written", res.Written))
	return res
}

// load reads the cache. Unreadable or mismatching caches start empty.
func (ix *SymbolIndexer) load(key string, warn func(string, ...any), log *zap.Logger) (*symbolEnvelope, bool) {
	fresh := &symbolEnvelope{Files: make(map[string]FileEntry)}
	if ix.CachePath == "" {
		return fresh, false
	}

	var env symbolEnvelope
	if err := cache.Load(ix.CachePath, &env); err != nil {
		if errors.Is(err, cache.ErrNotExist) {
			// A missing cache is the normal first-run state and is logged
			// only, so a first scan of clean libraries has no diagnostics.
			log.Info("no symbol cache yet", zap.String("path", ix.CachePath))
			return fresh, false
		}
		warn("symbol cache reset: %v", err)
		return fresh, false
	}
	if env.Meta.FormatVersion != SymbolFormatVersion {
		warn("symbol cache reset: format_version %d, want %d", env.Meta.FormatVersion, SymbolFormatVersion)
		return fresh, false
	}
	if env.Files == nil {
		env.Files = make(map[string]FileEntry)
	}
	dirty := false
	if env.Meta.SymbolPath != key {
		warn("symbol cache was built for a different set of libraries")
		dirty = true
	}
	return &env, dirty
}

func (ix *SymbolIndexer) meta(env *symbolEnvelope, key, generatedAt string) cache.Meta {
	mtimes := make(map[string]float64, len(env.Files))
	for f, e := range env.Files {
		mtimes[f] = e.Mtime
	}
	return cache.Meta{
		SymbolPath:    key,
		FormatVersion: SymbolFormatVersion,
		GeneratedAt:   generatedAt,
		EntryCount:    len(env.Files),
		CacheHash:     cache.MtimeDigest(mtimes),
	}
}

type parseResult struct {
	symbols []*symbol.Symbol
	stray   int
	err     error
}

// parseAll parses paths with at most MaxWorkers goroutines. Results are
// indexed by submission order.
func (ix *SymbolIndexer) parseAll(ctx context.Context, paths []string) []parseResult {
	results := make([]parseResult, len(paths))
	parse := ix.Parse
	if parse == nil {
		parse = symbol.ParseFile
	}

	run := func(i int) {
		if err := ctx.Err(); err != nil {
			results[i].err = fmt.Errorf("cancelled: %w", err)
			return
		}
		lib, err := parse(paths[i])
		if err != nil {
			results[i].err = err
			return
		}
		results[i] = parseResult{symbols: lib.Symbols, stray: lib.StrayParens}
	}

	workers := min(ix.MaxWorkers, len(paths))
	if workers <= 1 {
		for i := range paths {
			run(i)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range paths {
		g.Go(func() error {
			run(i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (ix *SymbolIndexer) now() time.Time {
	if ix.Now != nil {
		return ix.Now()
	}
	return time.Now()
}

func isSymbolLibrary(path string, d fs.DirEntry) bool {
	return !d.IsDir() && strings.EqualFold(filepath.Ext(path), symbol.Extension)
}

// enumerate lists matching files under each root. A root that is itself a
// matching file is included directly. Paths are absolute and unique.
func enumerate(roots []string, match func(string, fs.DirEntry) bool, warn func(string, ...any)) []string {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if seen[p] {
			return
		}
		seen[p] = true
		files = append(files, p)
	}

	for _, root := range roots {
		if root == "" {
			continue
		}
		root = filepath.FromSlash(root)
		info, err := os.Stat(root)
		if err != nil {
			warn("%s: %v", root, err)
			continue
		}
		if !info.IsDir() {
			if match(root, fs.FileInfoToDirEntry(info)) {
				add(root)
			}
			continue
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				warn("%s: %v", p, err)
				if d != nil && d.IsDir() && p != root {
					return filepath.SkipDir
				}
				return nil
			}
			if match(p, d) {
				add(p)
			}
			return nil
		})
		if err != nil {
			warn("%s: %v", root, err)
		}
	}
	return files
}
