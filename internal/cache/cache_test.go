package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Meta      Meta              `json:"__meta__"`
	Libraries map[string]string `json:"libraries"`
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "fp.json")
	in := envelope{
		Meta:      Meta{FootprintPath: "/a;/b", FormatVersion: 1, EntryCount: 1, Warning: "not persisted"},
		Libraries: map[string]string{"Resistor_SMD": "/a/Resistor_SMD.pretty"},
	}
	require.NoError(t, Save(path, in))

	var out envelope
	require.NoError(t, Load(path, &out))
	assert.Equal(t, in.Libraries, out.Libraries)
	assert.Equal(t, 1, out.Meta.FormatVersion)
	assert.Empty(t, out.Meta.Warning)
	assert.Empty(t, out.Meta.SymbolPath)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	var v envelope
	err := Load(filepath.Join(dir, "none.json"), &v)
	assert.True(t, errors.Is(err, ErrNotExist))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	err = Load(bad, &v)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotExist))
}

func TestDigestOrderIndependent(t *testing.T) {
	a := MtimeDigest(map[string]float64{"/x.kicad_sym": 1.5, "/y.kicad_sym": 2})
	b := MtimeDigest(map[string]float64{"/y.kicad_sym": 2, "/x.kicad_sym": 1.5})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, MtimeDigest(map[string]float64{"/x.kicad_sym": 1.5, "/y.kicad_sym": 2.25}))
	assert.NotEqual(t, a, MtimeDigest(map[string]float64{"/x.kicad_sym": 1.5}))
	assert.NotEqual(t, PathDigest(map[string]string{"A": "/a"}), PathDigest(map[string]string{"A": "/b"}))
}
