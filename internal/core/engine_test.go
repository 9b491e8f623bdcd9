package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/config"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/metrics"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/validate"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/xref"
)

const deviceLib = `(kicad_symbol_lib (version 20231120) (generator "kicad_symbol_editor")
  (symbol "R"
    (property "Reference" "R" (at 0 0 0))
    (property "Value" "R" (at 0 0 0))
    (property "Footprint" "Resistor_SMD:R_0603" (at 0 0 0))
    (property "MPN" "RC0603" (at 0 0 0))
    (symbol "R_1_1"
      (pin passive line (at 0 3.81 270) (length 1.27) (name "~") (number "1"))
      (pin passive line (at 0 -3.81 90) (length 1.27) (name "~") (number "2"))))
  (symbol "Q"
    (property "Reference" "Q" (at 0 0 0))
    (property "Value" "Q" (at 0 0 0))
    (property "Footprint" "Package_TO_SOT_SMD:SOT-23" (at 0 0 0))
    (symbol "Q_1_1"
      (pin passive line (at 0 0 0) (length 2.54) (name "B") (number "1"))
      (pin passive line (at 0 0 0) (length 2.54) (name "C") (number "2"))
      (pin passive line (at 0 0 0) (length 2.54) (name "E") (number "3"))
      (pin passive line (at 0 0 0) (length 2.54) (name "TAB") (number "4"))))
)
`

const r0603 = `(footprint "R_0603" (layer "F.Cu")
  (pad "1" smd roundrect (at -0.8 0) (size 0.9 0.95) (layers "F.Cu" "F.Paste" "F.Mask") (roundrect_rratio 0.25))
  (pad "2" smd roundrect (at 0.8 0) (size 0.9 0.95) (layers "F.Cu" "F.Paste" "F.Mask") (roundrect_rratio 0.25))
)
`

const sot23 = `(footprint "SOT-23" (layer "F.Cu")
  (pad "1" smd rect (at -1 1) (size 0.9 0.8) (layers "F.Cu"))
  (pad "2" smd rect (at 1 1) (size 0.9 0.8) (layers "F.Cu"))
  (pad "3" smd rect (at 0 -1) (size 0.9 0.8) (layers "F.Cu"))
)
`

const board = `(kicad_sch (version 20231120) (generator "eeschema") (uuid "b-root")
  (symbol (lib_id "Device:R") (at 0 0 0) (uuid "x1")
    (property "Reference" "R7" (at 0 0 0))
    (property "Value" "R" (at 0 0 0))
    (property "Footprint" "Resistor_SMD:R_0603" (at 0 0 0)))
)
`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newWorkspace(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "symbols", "Device.kicad_sym"), deviceLib)
	writeFile(t, filepath.Join(dir, "footprints", "Resistor_SMD.pretty", "R_0603.kicad_mod"), r0603)
	writeFile(t, filepath.Join(dir, "footprints", "Package_TO_SOT_SMD.pretty", "SOT-23.kicad_mod"), sot23)
	writeFile(t, filepath.Join(dir, "rules.yaml"), "global_rules:\n  MPN: ''\n")
	writeFile(t, filepath.Join(dir, "projects", "board", "board.kicad_sch"), board)

	cfg := config.DefaultConfig()
	cfg.PathRoot = dir
	cfg.SymbolPaths = config.PathList{"${BASE_DIR}/symbols"}
	cfg.FootprintPaths = config.PathList{"${PL_VAR}/footprints"}
	cfg.RulesFile = "${BASE_DIR}/rules.yaml"
	cfg.MaxWorkers = 2
	cfg.Projects = xref.Registry{"board": {Metadata: xref.Metadata{Location: "${BASE_DIR}/projects/board"}}}
	return dir, cfg
}

func TestEngineEndToEnd(t *testing.T) {
	dir, cfg := newWorkspace(t)
	m := metrics.New(prometheus.NewRegistry())
	e, err := New(cfg, WithLogger(zap.NewNop()), WithMetrics(m))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".kpm"), e.CacheDir())

	scan := e.Scan(context.Background())
	assert.Empty(t, scan.Diagnostics())
	assert.Equal(t, []string{"Device"}, e.Store().Libraries())
	assert.Equal(t, 2, e.Store().Len())
	assert.Equal(t, []string{"Package_TO_SOT_SMD", "Resistor_SMD"}, e.Libraries().Names())
	assert.FileExists(t, filepath.Join(dir, ".kpm", SymbolCacheFile))
	assert.FileExists(t, filepath.Join(dir, ".kpm", FootprintCacheFile))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FilesParsed.WithLabelValues("symbols")))

	report, err := e.Validate()
	require.NoError(t, err)
	assert.Equal(t, validate.StatusError, report.Status)
	assert.Equal(t, []string{"Device:Q"}, report.Affected)
	var msgs []string
	for _, f := range report.Failures {
		msgs = append(msgs, f.Message)
	}
	assert.ElementsMatch(t, []string{
		"Missing Global Property: 'MPN'",
		"Pin '4' missing from footprint 'Package_TO_SOT_SMD:SOT-23'",
	}, msgs)

	last, err := e.LastReport()
	require.NoError(t, err)
	assert.Equal(t, report.RunID, last.RunID)

	xr := e.BuildCrossIndex(context.Background())
	assert.Empty(t, xr.Diagnostics)
	assert.Equal(t, []string{"board"}, e.CrossIndex().ProjectsUsing("Device:R"))
	assert.Equal(t, []string{"R7"}, e.CrossIndex().FootprintParts["Resistor_SMD:R_0603"]["board"])
	assert.FileExists(t, filepath.Join(dir, ".kpm", xref.SchematicCacheFile))
}

func TestEngineLoadLibrariesSkipsSymbols(t *testing.T) {
	dir, cfg := newWorkspace(t)
	e, err := New(cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	assert.Empty(t, e.LoadLibraries())
	assert.Equal(t, []string{"Package_TO_SOT_SMD", "Resistor_SMD"}, e.Libraries().Names())
	assert.FileExists(t, filepath.Join(dir, ".kpm", FootprintCacheFile))
	assert.NoFileExists(t, filepath.Join(dir, ".kpm", SymbolCacheFile))

	cached, err := New(cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	assert.Empty(t, cached.LoadLibraries())
	path, err := cached.Resolver().FindFootprint("Resistor_SMD:R_0603")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "footprints", "Resistor_SMD.pretty", "R_0603.kicad_mod"), path)
}

func TestEngineSetPropertyRescans(t *testing.T) {
	_, cfg := newWorkspace(t)
	e, err := New(cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	e.Scan(context.Background())

	res, err := e.SetProperty("Device", "Q", "Value", "BC847")
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.FileExists(t, res.BackupPath)

	_, err = e.SetProperty("Device", "Nope", "Value", "x")
	assert.True(t, errors.Is(err, ErrNotIndexed))

	// Force an mtime difference regardless of filesystem timestamp resolution.
	sym, _ := e.Store().Symbol("Device", "Q")
	info, err := os.Stat(sym.FilePath)
	require.NoError(t, err)
	later := info.ModTime().Add(2e9)
	require.NoError(t, os.Chtimes(sym.FilePath, later, later))

	scan := e.Scan(context.Background())
	assert.Len(t, scan.Symbols.Parsed, 1)
	q, _ := e.Store().Symbol("Device", "Q")
	assert.Equal(t, "BC847", q.Properties["Value"])
}

func TestEngineScopedValidationSkipsFootprintLibraries(t *testing.T) {
	_, cfg := newWorkspace(t)
	rs := &validate.RuleSet{}
	e, err := New(cfg, WithLogger(zap.NewNop()), WithRules(rs))
	require.NoError(t, err)
	e.Scan(context.Background())

	report, err := e.Validate("Device")
	require.NoError(t, err)
	assert.Equal(t, validate.ScopeLibrary, report.Scope)
	assert.Equal(t, "Device", report.TargetLib)
	assert.Equal(t, 2, report.Stats.TotalChecked)
}

func TestEngineHierarchy(t *testing.T) {
	dir, cfg := newWorkspace(t)
	e, err := New(cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	node, err := e.Hierarchy("${BASE_DIR}/projects/board/board.kicad_sch")
	require.NoError(t, err)
	assert.Equal(t, "/b-root", node.UUIDPath)
	assert.True(t, strings.HasPrefix(node.File, dir))
	assert.Len(t, node.Flatten(), 1)
}

func TestEngineBadRulesFile(t *testing.T) {
	dir, cfg := newWorkspace(t)
	writeFile(t, filepath.Join(dir, "rules.yaml"), "global_rules:\n  MPN: '('\n")
	e, err := New(cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	_, err = e.Validate()
	assert.Error(t, err)
}
