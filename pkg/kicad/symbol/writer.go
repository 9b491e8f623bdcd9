package symbol

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrSymbolNotFound is returned when no (symbol "NAME" ...) block starts a line.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrPropertyNotFound is returned when the symbol block has no matching property line.
	ErrPropertyNotFound = errors.New("property not found")
)

// BackupTimeFormat is the timestamp layout used in backup file names.
const BackupTimeFormat = "20060102-150405"

// WriteResult reports the outcome of SetProperty.
type WriteResult struct {
	Updated    bool
	BackupPath string
}

// propertyLine matches `(property "KEY" "VALUE"` and captures the text
// around the value so it can be replaced in place.
var propertyLine = regexp.MustCompile(`^(\s*\(property\s+"(?:[^"\\]|\\.)*"\s+")((?:[^"\\]|\\.)*)(".*)$`)

// SetProperty rewrites the value of one property of one symbol in a library
// file. The original file is first copied to <file>.<timestamp>.bak next to
// it. The edit is line based: the symbol block must start on its own line
// and the property key and value must sit on the property's first line, as
// KiCad writes them.
func SetProperty(path, symbolName, key, value string) (WriteResult, error) {
	return setProperty(path, symbolName, key, value, time.Now())
}

func setProperty(path, symbolName, key, value string, now time.Time) (WriteResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WriteResult{}, fmt.Errorf("failed to read library: %w", err)
	}

	lines := strings.SplitAfter(string(data), "\n")
	start := findSymbolLine(lines, symbolName)
	if start < 0 {
		return WriteResult{}, fmt.Errorf("%w: %q in %s", ErrSymbolNotFound, symbolName, path)
	}
	end := blockEnd(lines, start)

	keyPrefix := `(property "` + escape(key) + `"`
	target := -1
	for i := start + 1; i <= end; i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), keyPrefix) {
			target = i
			break
		}
	}
	if target < 0 {
		return WriteResult{}, fmt.Errorf("%w: %q on symbol %q", ErrPropertyNotFound, key, symbolName)
	}

	line, eol := splitEOL(lines[target])
	m := propertyLine.FindStringSubmatch(line)
	if m == nil {
		return WriteResult{}, fmt.Errorf("%w: %q on symbol %q has no inline value", ErrPropertyNotFound, key, symbolName)
	}
	lines[target] = m[1] + escape(value) + m[3] + eol

	backup := fmt.Sprintf("%s.%s.bak", path, now.Format(BackupTimeFormat))
	if err := os.WriteFile(backup, data, 0o644); err != nil {
		return WriteResult{}, fmt.Errorf("failed to write backup: %w", err)
	}

	info, err := os.Stat(path)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode().Perm()
	}
	if err := writeFileAtomic(path, []byte(strings.Join(lines, "")), mode); err != nil {
		return WriteResult{BackupPath: backup}, fmt.Errorf("failed to write library: %w", err)
	}

	return WriteResult{Updated: true, BackupPath: backup}, nil
}

func findSymbolLine(lines []string, name string) int {
	prefixes := []string{
		`(symbol "` + escape(name) + `"`,
		`(symbol ` + name + ` `,
	}
	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		for _, p := range prefixes {
			if strings.HasPrefix(trimmed, p) || trimmed == strings.TrimSpace(p) {
				return i
			}
		}
	}
	return -1
}

// blockEnd returns the index of the line on which the list opened on line
// start closes, or the last line when it never closes.
func blockEnd(lines []string, start int) int {
	depth := 0
	for i := start; i < len(lines); i++ {
		inString := false
		escaped := false
		for _, ch := range lines[i] {
			switch {
			case escaped:
				escaped = false
			case ch == '\\' && inString:
				escaped = true
			case ch == '"':
				inString = !inString
			case ch == '(' && !inString:
				depth++
			case ch == ')' && !inString:
				depth--
			}
		}
		if depth <= 0 {
			return i
		}
	}
	return len(lines) - 1
}

func splitEOL(line string) (string, string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	}
	return line, ""
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
