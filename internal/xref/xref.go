// Package xref builds the reverse index from library parts and footprints
// to the projects whose schematics use them.
package xref

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/cache"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/logging"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/metrics"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/schematic"
)

// SchematicCacheFile is the file name of the parsed-schematic cache.
const SchematicCacheFile = "schematic_cache.json"

// Metadata is the part of a project record the cross-index reads.
type Metadata struct {
	Location string `yaml:"location" json:"location"`
}

// Project is one registry entry.
type Project struct {
	Metadata Metadata `yaml:"metadata" json:"metadata"`
}

// Registry maps project id to project.
type Registry map[string]Project

// IDs returns the project ids sorted.
func (r Registry) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Index is the cross-index. Project lists keep first-seen order.
type Index struct {
	ProjectIndex   map[string][]string            `json:"project_index"`
	FootprintIndex map[string][]string            `json:"footprint_index"`
	UsageCounts    map[string]map[string]int      `json:"project_usage_counts"`
	FootprintParts map[string]map[string][]string `json:"footprint_parts"`
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		ProjectIndex:   make(map[string][]string),
		FootprintIndex: make(map[string][]string),
		UsageCounts:    make(map[string]map[string]int),
		FootprintParts: make(map[string]map[string][]string),
	}
}

func addOrdered(set []string, v string) []string {
	if slices.Contains(set, v) {
		return set
	}
	return append(set, v)
}

// Add records one placed component of project.
func (ix *Index) Add(project string, c *schematic.Component) {
	if libID := strings.TrimSpace(c.LibID); libID != "" {
		ix.ProjectIndex[libID] = addOrdered(ix.ProjectIndex[libID], project)
		counts, ok := ix.UsageCounts[libID]
		if !ok {
			counts = make(map[string]int)
			ix.UsageCounts[libID] = counts
		}
		counts[project]++
	}

	fp := strings.TrimSpace(c.Footprint)
	if fp == "" || fp == "~" {
		return
	}
	ix.FootprintIndex[fp] = addOrdered(ix.FootprintIndex[fp], project)
	parts, ok := ix.FootprintParts[fp]
	if !ok {
		parts = make(map[string][]string)
		ix.FootprintParts[fp] = parts
	}
	for _, ref := range references(c) {
		parts[project] = addOrdered(parts[project], ref)
	}
}

// ProjectsUsing returns the projects that place libID.
func (ix *Index) ProjectsUsing(libID string) []string {
	return ix.ProjectIndex[libID]
}

// ProjectsUsingFootprint returns the projects that use the footprint ref.
func (ix *Index) ProjectsUsingFootprint(ref string) []string {
	return ix.FootprintIndex[ref]
}

// Usage returns the per-project placement count of libID.
func (ix *Index) Usage(libID string) map[string]int {
	return ix.UsageCounts[libID]
}

// references lists the distinct designators of c across its instances, or
// its Reference property when it has none.
func references(c *schematic.Component) []string {
	var refs []string
	for _, inst := range c.Instances {
		if inst.Reference != "" {
			refs = addOrdered(refs, inst.Reference)
		}
	}
	if len(refs) == 0 && c.Reference != "" {
		refs = append(refs, c.Reference)
	}
	return refs
}

type cacheEntry struct {
	Mtime      float64               `json:"mtime"`
	Components []schematic.Component `json:"components"`
	UUID       string                `json:"uuid,omitempty"`
	Sheets     []schematic.Sheet     `json:"sheets,omitempty"`
}

// Builder rebuilds the cross-index, reusing parsed sheets whose mtime is
// unchanged.
type Builder struct {
	CachePath string
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	// Parse defaults to schematic.ParseFile.
	Parse func(path string) (*schematic.Schematic, error)

	entries map[string]cacheEntry
	loaded  bool
	dirty   bool
}

// Result is the outcome of one build.
type Result struct {
	Index       *Index
	Diagnostics []string
	// Parsed and Cached count the sheets read from disk and from the cache.
	Parsed, Cached int
}

// Build walks the location of every registered project and indexes the
// components of every schematic found.
func (b *Builder) Build(ctx context.Context, registry Registry) *Result {
	log := logging.OrNop(b.Logger)
	res := &Result{Index: NewIndex()}
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		res.Diagnostics = append(res.Diagnostics, msg)
		log.Warn(msg)
	}

	b.loadCache(warn)
	seen := make(map[string]bool)

	for _, id := range registry.IDs() {
		if ctx.Err() != nil {
			warn("cross-index cancelled: %v", ctx.Err())
			break
		}
		loc := strings.TrimSpace(registry[id].Metadata.Location)
		if loc == "" {
			continue
		}
		if info, err := os.Stat(loc); err != nil || !info.IsDir() {
			log.Debug("project location missing", zap.String("project", id), zap.String("location", loc))
			continue
		}

		for _, file := range schematicFiles(loc, warn) {
			seen[file] = true
			sch, cached, err := b.load(file)
			if err != nil {
				warn("%s: %v", file, err)
				continue
			}
			if !cached && sch.StrayParens > 0 {
				warn("%s: %d stray ')' ignored", file, sch.StrayParens)
			}
			components := sch.Components
			b.Metrics.RecordSchematic(cached)
			if cached {
				res.Cached++
			} else {
				res.Parsed++
			}
			for i := range components {
				res.Index.Add(id, &components[i])
			}
		}
	}

	if ctx.Err() == nil {
		for path := range b.entries {
			if !seen[path] {
				delete(b.entries, path)
				b.dirty = true
			}
		}
	}
	b.saveCache(warn)
	return res
}

// Load returns the schematic at path, served from the cache when its mtime
// is unchanged. It fits schematic.BuildHierarchyWith.
func (b *Builder) Load(path string) (*schematic.Schematic, error) {
	b.loadCache(func(string, ...any) {})
	sch, cached, err := b.load(path)
	if err == nil && !cached && sch.StrayParens > 0 {
		logging.OrNop(b.Logger).Warn("stray ')' ignored",
			zap.String("path", path), zap.Int("count", sch.StrayParens))
	}
	return sch, err
}

func (b *Builder) load(path string) (*schematic.Schematic, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, err
	}
	mtime := cache.Mtime(info)
	if e, ok := b.entries[path]; ok && e.Mtime == mtime {
		return &schematic.Schematic{FilePath: path, UUID: e.UUID, Components: e.Components, Sheets: e.Sheets}, true, nil
	}

	parse := b.Parse
	if parse == nil {
		parse = schematic.ParseFile
	}
	sch, err := parse(path)
	if err != nil {
		return nil, false, err
	}
	if sch.Components == nil {
		sch.Components = []schematic.Component{}
	}
	b.entries[path] = cacheEntry{Mtime: mtime, Components: sch.Components, UUID: sch.UUID, Sheets: sch.Sheets}
	b.dirty = true
	return sch, false, nil
}

func (b *Builder) loadCache(warn func(string, ...any)) {
	if b.loaded {
		return
	}
	b.loaded = true
	b.entries = make(map[string]cacheEntry)
	if b.CachePath == "" {
		return
	}
	err := cache.Load(b.CachePath, &b.entries)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrNotExist):
		logging.OrNop(b.Logger).Info("no schematic cache yet", zap.String("path", b.CachePath))
	default:
		warn("schematic cache reset: %v", err)
		b.entries = make(map[string]cacheEntry)
	}
	if b.entries == nil {
		b.entries = make(map[string]cacheEntry)
	}
}

// Save writes pending cache changes.
func (b *Builder) Save() error {
	var saveErr error
	b.saveCache(func(format string, args ...any) { saveErr = fmt.Errorf(format, args...) })
	return saveErr
}

func (b *Builder) saveCache(warn func(string, ...any)) {
	if !b.dirty || b.CachePath == "" {
		return
	}
	err := cache.Save(b.CachePath, b.entries)
	b.Metrics.RecordCacheWrite("schematics", err)
	if err != nil {
		warn("failed to write schematic cache: %v", err)
		return
	}
	b.dirty = false
}

// schematicFiles returns every .kicad_sch below root in walk order.
func schematicFiles(root string, warn func(string, ...any)) []string {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			warn("%s: %v", p, err)
			if d != nil && d.IsDir() && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(p), schematic.Extension) {
			if abs, err := filepath.Abs(p); err == nil {
				p = abs
			}
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		warn("%s: %v", root, err)
	}
	return files
}
