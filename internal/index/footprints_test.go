package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirs(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(p, 0o755))
	}
}

func TestFootprintScan(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	mkdirs(t,
		filepath.Join(a, "Resistor_SMD.pretty"),
		filepath.Join(a, "vendor", "Conn.pretty", "Nested.pretty"),
		filepath.Join(b, "Resistor_SMD.pretty"),
		filepath.Join(b, "Diode.pretty"),
		filepath.Join(b, "not_a_lib"),
	)

	cachePath := filepath.Join(dir, "cache", "footprints.json")
	ix := &FootprintIndexer{CachePath: cachePath}
	res := ix.Scan([]string{a, b})

	assert.Empty(t, res.Diagnostics)
	assert.True(t, res.Written)
	assert.Equal(t, []string{"Resistor_SMD", "Conn", "Diode"}, res.Libraries.Names())

	p, ok := res.Libraries.Path("Resistor_SMD")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(a, "Resistor_SMD.pretty"), p, "first occurrence wins")
	_, ok = res.Libraries.Path("Nested")
	assert.False(t, ok, "pretty directories are not descended into")

	assert.Equal(t, 3, res.Meta.EntryCount)
	assert.Equal(t, FootprintFormatVersion, res.Meta.FormatVersion)

	again := ix.Scan([]string{a, b})
	assert.False(t, again.Written)
	assert.Equal(t, res.Meta.CacheHash, again.Meta.CacheHash)

	mkdirs(t, filepath.Join(b, "LED.pretty"))
	changed := ix.Scan([]string{a, b})
	assert.True(t, changed.Written)
	assert.NotEqual(t, res.Meta.CacheHash, changed.Meta.CacheHash)

	libs, meta, err := LoadFootprintCache(cachePath)
	require.NoError(t, err)
	assert.Equal(t, 4, libs.Len())
	assert.Equal(t, changed.Meta.CacheHash, meta.CacheHash)
}

func TestFootprintCached(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "libs")
	mkdirs(t, filepath.Join(root, "Resistor_SMD.pretty"), filepath.Join(root, "Diode.pretty"))
	ix := &FootprintIndexer{CachePath: filepath.Join(dir, "footprints.json")}

	_, ok := ix.Cached([]string{root})
	assert.False(t, ok, "no cache yet")

	ix.Scan([]string{root})
	libs, ok := ix.Cached([]string{root})
	require.True(t, ok)
	assert.Equal(t, []string{"Diode", "Resistor_SMD"}, libs.Names())
	p, _ := libs.Path("Diode")
	assert.Equal(t, filepath.Join(root, "Diode.pretty"), p)

	_, ok = ix.Cached([]string{root, filepath.Join(dir, "other")})
	assert.False(t, ok, "built for other roots")

	require.NoError(t, os.Remove(filepath.Join(root, "Diode.pretty")))
	_, ok = ix.Cached([]string{root})
	assert.False(t, ok, "library directory removed")
}

func TestFootprintScanEmptyLeavesCache(t *testing.T) {
	dir := t.TempDir()
	mkdirs(t, filepath.Join(dir, "libs", "X.pretty"))
	cachePath := filepath.Join(dir, "footprints.json")

	ix := &FootprintIndexer{CachePath: cachePath}
	require.True(t, ix.Scan([]string{filepath.Join(dir, "libs")}).Written)
	before, err := os.ReadFile(cachePath)
	require.NoError(t, err)

	empty := filepath.Join(dir, "empty")
	mkdirs(t, empty)
	res := ix.Scan([]string{empty})
	assert.Equal(t, 0, res.Libraries.Len())
	assert.False(t, res.Written)

	after, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFootprintScanMissingRoot(t *testing.T) {
	ix := &FootprintIndexer{}
	res := ix.Scan([]string{filepath.Join(t.TempDir(), "nope")})
	assert.Len(t, res.Diagnostics, 1)
	assert.Equal(t, 0, res.Libraries.Len())
}
