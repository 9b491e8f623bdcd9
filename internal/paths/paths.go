// Package paths resolves configured paths against a movable path root.
//
// Paths written to configuration and cache files use the ${BASE_DIR}
// placeholder for the root so a project tree can be moved between machines.
// Every function here is total: malformed input yields "" or the input
// itself, never an error.
package paths

import (
	"os"
	"path"
	"strings"
)

// Placeholder tokens.
const (
	BaseDir = "${BASE_DIR}"
	// LegacyBaseDir is accepted on read and rewritten to BaseDir.
	LegacyBaseDir = "${PL_VAR}"
	// ProjectRoot is an alias used in 3D model references.
	ProjectRoot = "${PL}"
	// FootprintDir is only honored inside 3D model references.
	FootprintDir = "${PL_FOOTPRINT_DIR}"
)

var placeholderNames = map[string]bool{
	"BASE_DIR":         true,
	"PL_VAR":           true,
	"PL":               true,
	"PL_FOOTPRINT_DIR": true,
}

// Resolver holds the path root. The zero value has no root and resolves
// relative paths to themselves.
type Resolver struct {
	root string

	// Home is substituted for a leading ~. Defaults to the user's home.
	Home string
	// LookupEnv looks up environment variables. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// New returns a Resolver rooted at root.
func New(root string) *Resolver {
	home, _ := os.UserHomeDir()
	return &Resolver{
		root:      Normalize(root),
		Home:      home,
		LookupEnv: os.LookupEnv,
	}
}

// Root returns the normalized path root.
func (r *Resolver) Root() string {
	return r.root
}

// SetRoot replaces the path root.
func (r *Resolver) SetRoot(root string) {
	r.root = Normalize(root)
}

// Normalize returns p with forward slashes, duplicate separators and dot
// segments removed. A UNC prefix (//server) is kept. Empty input yields "".
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, `\`, "/")

	unc := strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "///")
	cleaned := path.Clean(p)
	if unc {
		cleaned = "/" + cleaned
	}
	// keep "C:/" rather than "C:"
	if len(cleaned) == 2 && cleaned[1] == ':' && isLetter(cleaned[0]) {
		cleaned += "/"
	}
	return cleaned
}

// Expand applies ~ and environment variable expansion, then normalizes.
// Placeholder tokens, unset variables and stray '$' are left as written.
func (r *Resolver) Expand(p string) string {
	return Normalize(r.expand(p))
}

func (r *Resolver) expand(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}

	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		if r.Home != "" {
			p = r.Home + p[1:]
		}
	}

	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return expandPercent(expandDollar(p, lookup), lookup)
}

// expandDollar substitutes $NAME and ${NAME}. A reference that names a
// placeholder, is unset or is malformed is copied through unchanged.
func expandDollar(p string, lookup func(string) (string, bool)) string {
	if !strings.Contains(p, "$") {
		return p
	}
	var b strings.Builder
	for i := 0; i < len(p); {
		if p[i] != '$' {
			b.WriteByte(p[i])
			i++
			continue
		}
		name, n := dollarName(p[i+1:])
		ref := p[i : i+1+n]
		i += 1 + n
		if name == "" || placeholderNames[name] {
			b.WriteString(ref)
			continue
		}
		if v, ok := lookup(name); ok {
			b.WriteString(v)
			continue
		}
		b.WriteString(ref)
	}
	return b.String()
}

// dollarName reads the name after a '$'. It returns the name and the number
// of bytes consumed; name is "" when s does not start a valid reference.
func dollarName(s string) (string, int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return "", 0
		}
		return s[1:end], end + 1
	}
	n := 0
	for n < len(s) && isNameByte(s[n]) {
		n++
	}
	return s[:n], n
}

func isNameByte(c byte) bool {
	return c == '_' || isLetter(c) || ('0' <= c && c <= '9')
}

// expandPercent handles Windows style %NAME% references.
func expandPercent(p string, lookup func(string) (string, bool)) string {
	if !strings.Contains(p, "%") {
		return p
	}
	var b strings.Builder
	for {
		start := strings.IndexByte(p, '%')
		if start < 0 {
			break
		}
		end := strings.IndexByte(p[start+1:], '%')
		if end < 0 {
			break
		}
		name := p[start+1 : start+1+end]
		b.WriteString(p[:start])
		if v, ok := lookup(name); ok && name != "" {
			b.WriteString(v)
		} else {
			b.WriteString(p[start : start+end+2])
		}
		p = p[start+end+2:]
	}
	b.WriteString(p)
	return b.String()
}

// Resolve expands p, substitutes the root for ${BASE_DIR} and ${PL_VAR},
// and joins relative results under the root.
func (r *Resolver) Resolve(p string) string {
	p = canonicalTokens(r.expand(p))
	if p == "" {
		return ""
	}

	if strings.Contains(p, BaseDir) {
		if r.root == "" {
			return strings.ReplaceAll(p, `\`, "/")
		}
		p = strings.ReplaceAll(p, BaseDir, r.root)
	}
	p = Normalize(p)

	if IsAbs(p) || r.root == "" {
		return p
	}
	return Join(r.root, p)
}

// Relativize rewrites p relative to the root using the ${BASE_DIR}
// placeholder. Paths already carrying the placeholder are returned as-is.
// Absolute paths that cannot be expressed relative to the root (another
// drive) are returned normalized.
func (r *Resolver) Relativize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}

	p = canonicalTokens(p)
	if strings.Contains(p, BaseDir) {
		return p
	}

	p = Normalize(p)
	if !IsAbs(p) {
		return BaseDir + "/" + p
	}
	if r.root == "" {
		return p
	}

	rel, ok := relative(r.root, p)
	if !ok {
		return p
	}
	if rel == "." {
		return BaseDir
	}
	return BaseDir + "/" + rel
}

// SplitList splits each raw value on ';' and newlines, trims whitespace and
// drops empty elements.
func SplitList(raw ...string) []string {
	var out []string
	for _, s := range raw {
		for _, part := range strings.FieldsFunc(s, func(c rune) bool {
			return c == ';' || c == '\n' || c == '\r'
		}) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ResolveList splits raw, resolves every element and removes duplicates
// case-insensitively, keeping the first occurrence.
func (r *Resolver) ResolveList(raw ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range SplitList(raw...) {
		resolved := r.Resolve(p)
		if resolved == "" {
			continue
		}
		key := strings.ToLower(resolved)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, resolved)
	}
	return out
}

// IsAbs reports whether p is absolute in either POSIX or Windows form.
func IsAbs(p string) bool {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.HasPrefix(p, "/") || isDrivePath(p)
}

// IsWindows reports whether p is a Windows drive or UNC path.
func IsWindows(p string) bool {
	p = strings.ReplaceAll(p, `\`, "/")
	return isDrivePath(p) || (strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "///"))
}

// Join joins elem under base and normalizes the result.
func Join(base string, elem ...string) string {
	parts := append([]string{base}, elem...)
	joined := strings.Join(parts, "/")
	return Normalize(joined)
}

// SamePath compares two paths after normalization, ignoring case when
// either is a Windows path.
func SamePath(a, b string) bool {
	a, b = Normalize(a), Normalize(b)
	if IsWindows(a) || IsWindows(b) {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func canonicalTokens(p string) string {
	return strings.ReplaceAll(p, LegacyBaseDir, BaseDir)
}

func isDrivePath(p string) bool {
	return len(p) >= 2 && isLetter(p[0]) && p[1] == ':' && (len(p) == 2 || p[2] == '/')
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// relative computes target relative to base. Both must be absolute. It
// fails when they live on different volumes.
func relative(base, target string) (string, bool) {
	base, target = Normalize(base), Normalize(target)
	windows := IsWindows(base) || IsWindows(target)
	eq := func(a, b string) bool { return a == b }
	if windows {
		eq = strings.EqualFold
	}

	if windows && !eq(volume(base), volume(target)) {
		return "", false
	}

	bs := segments(base)
	ts := segments(target)
	i := 0
	for i < len(bs) && i < len(ts) && eq(bs[i], ts[i]) {
		i++
	}

	var out []string
	for range bs[i:] {
		out = append(out, "..")
	}
	out = append(out, ts[i:]...)
	if len(out) == 0 {
		return ".", true
	}
	return strings.Join(out, "/"), true
}

// volume returns the drive ("C:") or UNC share ("//server/share") prefix.
func volume(p string) string {
	if isDrivePath(p) {
		return p[:2]
	}
	if strings.HasPrefix(p, "//") {
		parts := strings.SplitN(p[2:], "/", 3)
		if len(parts) >= 2 {
			return "//" + parts[0] + "/" + parts[1]
		}
		return p
	}
	return ""
}

func segments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
