// Package core drives the library scans, validation and cross-indexing.
// An Engine is the single owner of the indexed data and the cache files;
// it is not safe for concurrent use.
package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/config"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/index"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/logging"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/metrics"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/paths"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/resolve"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/validate"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/xref"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/schematic"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/symbol"
)

// Cache file names inside the cache directory.
const (
	SymbolCacheFile    = "symbol_cache.json"
	FootprintCacheFile = "footprint_cache.json"
)

// ErrNotIndexed is returned for libraries or symbols absent from the store.
var ErrNotIndexed = errors.New("not indexed")

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger instead of building one from the config.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRules sets the rule set instead of loading rules_file.
func WithRules(rs *validate.RuleSet) Option {
	return func(e *Engine) { e.rules = rs }
}

// Engine wires the components together.
type Engine struct {
	cfg      *config.Config
	paths    *paths.Resolver
	logger   *zap.Logger
	metrics  *metrics.Metrics
	cacheDir string

	symbols    *index.SymbolIndexer
	footprints *index.FootprintIndexer
	schematics *xref.Builder

	store     *index.Store
	libraries *index.Libraries
	rules     *validate.RuleSet
	crossIdx  *xref.Index
}

// ScanResult combines the outcome of both indexers.
type ScanResult struct {
	Symbols    *index.SymbolScan
	Footprints *index.FootprintScan
}

// Diagnostics returns the warnings of both scans.
func (r *ScanResult) Diagnostics() []string {
	var out []string
	out = append(out, r.Symbols.Diagnostics...)
	out = append(out, r.Footprints.Diagnostics...)
	return out
}

// New builds an engine for cfg. An empty path_root is autodetected from the
// configured paths.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, store: index.NewStore(), libraries: index.NewLibraries(), crossIdx: xref.NewIndex()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		l, err := logging.NewLogger(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		e.logger = l
	}

	root := cfg.PathRoot
	if root != "" {
		root = paths.New("").Expand(root)
	} else {
		root = paths.Autodetect("", cfg.Samples())
		e.logger.Debug("path root autodetected", zap.String("root", root))
	}
	e.paths = paths.New(root)
	e.cacheDir = filepath.FromSlash(e.paths.Resolve(cfg.CacheDir))

	e.symbols = &index.SymbolIndexer{
		CachePath:  filepath.Join(e.cacheDir, SymbolCacheFile),
		MaxWorkers: cfg.MaxWorkers,
		Logger:     e.logger,
		Metrics:    e.metrics,
	}
	e.footprints = &index.FootprintIndexer{
		CachePath: filepath.Join(e.cacheDir, FootprintCacheFile),
		Logger:    e.logger,
		Metrics:   e.metrics,
	}
	e.schematics = &xref.Builder{
		CachePath: filepath.Join(e.cacheDir, xref.SchematicCacheFile),
		Logger:    e.logger,
		Metrics:   e.metrics,
	}
	return e, nil
}

// Paths returns the path resolver.
func (e *Engine) Paths() *paths.Resolver { return e.paths }

// Logger returns the engine logger.
func (e *Engine) Logger() *zap.Logger { return e.logger }

// CacheDir returns the resolved cache directory.
func (e *Engine) CacheDir() string { return e.cacheDir }

// ReportPath returns where the last validation report is kept.
func (e *Engine) ReportPath() string {
	return filepath.Join(e.cacheDir, validate.ReportFile)
}

// Store returns the symbols of the last scan.
func (e *Engine) Store() *index.Store { return e.store }

// Libraries returns the footprint libraries of the last scan.
func (e *Engine) Libraries() *index.Libraries { return e.libraries }

// CrossIndex returns the last built cross-index.
func (e *Engine) CrossIndex() *xref.Index { return e.crossIdx }

// SymbolRoots returns the resolved symbol search paths.
func (e *Engine) SymbolRoots() []string {
	return e.paths.ResolveList(e.cfg.SymbolPaths...)
}

// FootprintRoots returns the resolved footprint search paths.
func (e *Engine) FootprintRoots() []string {
	return e.paths.ResolveList(e.cfg.FootprintPaths...)
}

// Scan refreshes both library indexes.
func (e *Engine) Scan(ctx context.Context) *ScanResult {
	res := &ScanResult{
		Symbols:    e.symbols.Scan(ctx, e.SymbolRoots()),
		Footprints: e.footprints.Scan(e.FootprintRoots()),
	}
	e.store = res.Symbols.Store
	e.libraries = res.Footprints.Libraries
	e.logger.Info("scan complete",
		zap.Int("symbols", e.store.Len()),
		zap.Int("footprint_libraries", e.libraries.Len()),
		zap.Int("parsed", len(res.Symbols.Parsed)),
		zap.Int("diagnostics", len(res.Diagnostics())))
	return res
}

// LoadLibraries fills the footprint library map from the footprint cache
// and scans the footprint roots only when the cache is missing or stale.
// Symbol libraries are not touched. It returns the scan diagnostics.
func (e *Engine) LoadLibraries() []string {
	roots := e.FootprintRoots()
	if libs, ok := e.footprints.Cached(roots); ok {
		e.libraries = libs
		e.logger.Debug("footprint libraries loaded from cache", zap.Int("footprint_libraries", libs.Len()))
		return nil
	}
	res := e.footprints.Scan(roots)
	e.libraries = res.Libraries
	return res.Diagnostics
}

// Resolver returns a footprint resolver over the current footprint index.
func (e *Engine) Resolver() *resolve.Resolver {
	return &resolve.Resolver{
		Paths:     e.paths,
		Libraries: e.libraries,
		Roots:     e.FootprintRoots(),
		Logger:    e.logger,
	}
}

// Rules returns the rule set, loading rules_file on first use. Without a
// rules file the set is empty.
func (e *Engine) Rules() (*validate.RuleSet, error) {
	if e.rules != nil {
		return e.rules, nil
	}
	if e.cfg.RulesFile == "" {
		e.rules = &validate.RuleSet{}
		return e.rules, nil
	}
	rs, err := validate.LoadRules(filepath.FromSlash(e.paths.Resolve(e.cfg.RulesFile)))
	if err != nil {
		return nil, err
	}
	e.rules = rs
	return rs, nil
}

// Validate runs every check over the libraries in scope (all when none are
// given) and stores the report as the last run.
func (e *Engine) Validate(libraries ...string) (*validate.Report, error) {
	rs, err := e.Rules()
	if err != nil {
		return nil, err
	}
	v := &validate.Validator{
		Rules:      rs,
		Footprints: e.Resolver(),
		Logger:     e.logger,
		Metrics:    e.metrics,
	}
	fps := e.libraries
	if len(libraries) > 0 {
		fps = nil
	}
	report := v.Run(e.store, validate.FullOptions(fps, libraries...))
	if err := validate.SaveReport(e.ReportPath(), report); err != nil {
		e.logger.Warn("failed to save validation report", zap.Error(err))
	}
	return report, nil
}

// LastReport loads the report of the previous validation run.
func (e *Engine) LastReport() (*validate.Report, error) {
	return validate.LoadReport(e.ReportPath())
}

// BuildCrossIndex rebuilds the cross-index from the configured projects.
// Project locations may use the path placeholders.
func (e *Engine) BuildCrossIndex(ctx context.Context) *xref.Result {
	registry := make(xref.Registry, len(e.cfg.Projects))
	for id, p := range e.cfg.Projects {
		if p.Metadata.Location != "" {
			p.Metadata.Location = filepath.FromSlash(e.paths.Resolve(p.Metadata.Location))
		}
		registry[id] = p
	}
	res := e.schematics.Build(ctx, registry)
	e.crossIdx = res.Index
	return res
}

// Hierarchy walks the sheet tree below rootFile, reusing cached sheets.
func (e *Engine) Hierarchy(rootFile string) (*schematic.SheetNode, error) {
	node, err := schematic.BuildHierarchyWith(filepath.FromSlash(e.paths.Resolve(rootFile)), e.schematics.Load)
	if err != nil {
		return nil, err
	}
	if err := e.schematics.Save(); err != nil {
		e.logger.Warn("failed to save schematic cache", zap.Error(err))
	}
	return node, nil
}

// SetProperty edits one property of an indexed symbol in its library file.
// The change is picked up by the next Scan.
func (e *Engine) SetProperty(library, name, key, value string) (symbol.WriteResult, error) {
	sym, ok := e.store.Symbol(library, name)
	if !ok {
		return symbol.WriteResult{}, fmt.Errorf("%w: %s:%s", ErrNotIndexed, library, name)
	}
	res, err := symbol.SetProperty(sym.FilePath, name, key, value)
	if err != nil {
		return res, err
	}
	e.logger.Info("property updated",
		zap.String("symbol", sym.ID()), zap.String("key", key), zap.String("backup", res.BackupPath))
	return res, nil
}
