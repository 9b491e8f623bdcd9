package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/paths"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/xref"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
path_root: /work/libs
symbol_paths: "${BASE_DIR}/symbols; /opt/kicad/symbols\n /opt/kicad/symbols "
footprint_paths:
  - ${BASE_DIR}/footprints
  - "/a;/b"
max_workers: 4
rules_file: ${BASE_DIR}/rules.yaml
projects:
  proj-1:
    metadata:
      location: /work/projects/one
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/work/libs", cfg.PathRoot)
	assert.Equal(t, PathList{"${BASE_DIR}/symbols", "/opt/kicad/symbols", "/opt/kicad/symbols"}, cfg.SymbolPaths)
	assert.Equal(t, PathList{"${BASE_DIR}/footprints", "/a", "/b"}, cfg.FootprintPaths)
	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, DefaultCacheDir, cfg.CacheDir)
	assert.Equal(t, "/work/projects/one", cfg.Projects["proj-1"].Metadata.Location)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), cfg.MaxWorkers)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.NotNil(t, cfg.Projects)
}

func TestLoadRejectsBadInput(t *testing.T) {
	_, err := Load(writeConfig(t, "log:\n  format: xml\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "symbol_paths: {a: b}\n"))
	assert.Error(t, err)
}

func TestValidateClampsWorkers(t *testing.T) {
	cfg := &Config{MaxWorkers: -3}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.MaxWorkers)
	assert.Equal(t, DefaultCacheDir, cfg.CacheDir)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestPortableRoundTrip(t *testing.T) {
	r := paths.New("/work/libs")
	cfg := DefaultConfig()
	cfg.SymbolPaths = PathList{"/work/libs/symbols", "/elsewhere/sym"}
	cfg.FootprintPaths = PathList{"footprints"}
	cfg.RulesFile = "${PL_VAR}/rules.yaml"
	cfg.Projects = xref.Registry{"p": {Metadata: xref.Metadata{Location: "/work/libs/projects/p"}}}

	portable := cfg.Portable(r)
	assert.Equal(t, PathList{"${BASE_DIR}/symbols", "/elsewhere/sym"}, portable.SymbolPaths)
	assert.Equal(t, PathList{"${BASE_DIR}/footprints"}, portable.FootprintPaths)
	assert.Equal(t, "${BASE_DIR}/rules.yaml", portable.RulesFile)
	assert.Equal(t, "${BASE_DIR}/projects/p", portable.Projects["p"].Metadata.Location)
	assert.Equal(t, "/work/libs/projects/p", cfg.Projects["p"].Metadata.Location, "original untouched")

	path := filepath.Join(t.TempDir(), "out", DefaultFile)
	require.NoError(t, Save(path, portable))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, portable.SymbolPaths, loaded.SymbolPaths)
	assert.Equal(t, portable.Projects, loaded.Projects)
	assert.Equal(t, portable.MaxWorkers, loaded.MaxWorkers)
}
