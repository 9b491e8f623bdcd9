// Package cache reads and writes the JSON cache envelopes kept next to the
// library indexes.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// MetaKey is the envelope key holding Meta.
const MetaKey = "__meta__"

// ErrNotExist is returned by Load when the cache file does not exist.
var ErrNotExist = errors.New("cache file missing")

// Meta is the metadata block of a cache envelope. Exactly one of SymbolPath
// and FootprintPath is set, depending on the cache kind.
type Meta struct {
	SymbolPath    string `json:"symbol_path,omitempty"`
	FootprintPath string `json:"footprint_path,omitempty"`
	FormatVersion int    `json:"format_version"`
	GeneratedAt   string `json:"generated_at"`
	EntryCount    int    `json:"entry_count"`
	CacheHash     string `json:"cache_hash"`
	// Warning holds the last write failure. It is never persisted.
	Warning string `json:"-"`
}

// Load decodes the JSON file at path into v.
func Load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return fmt.Errorf("failed to read cache: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode cache %s: %w", path, err)
	}
	return nil
}

// Save encodes v as indented JSON and replaces the file at path. The parent
// directory is created when missing.
func Save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace cache: %w", err)
	}
	return nil
}

// Mtime returns the modification time of info as float seconds.
func Mtime(info os.FileInfo) float64 {
	return float64(info.ModTime().UnixNano()) / 1e9
}

// Timestamp formats t for GeneratedAt.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// Digest hashes lines after sorting them. Each line is terminated with a
// newline before hashing.
func Digest(lines []string) string {
	sorted := append([]string(nil), lines...)
	sort.Strings(sorted)

	h := sha256.New()
	for _, l := range sorted {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MtimeDigest hashes "file:mtime" pairs.
func MtimeDigest(mtimes map[string]float64) string {
	lines := make([]string, 0, len(mtimes))
	for file, mtime := range mtimes {
		lines = append(lines, file+":"+strconv.FormatFloat(mtime, 'f', -1, 64))
	}
	return Digest(lines)
}

// PathDigest hashes "key:path" pairs.
func PathDigest(paths map[string]string) string {
	lines := make([]string, 0, len(paths))
	for key, p := range paths {
		lines = append(lines, key+":"+p)
	}
	return Digest(lines)
}
