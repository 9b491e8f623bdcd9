// Package kicadsexp provides a tolerant S-expression reader for KiCad files.
// Unlike general-purpose sexp libraries, it keeps quoted strings intact and
// does not abort on unbalanced input: stray closing parens are skipped and
// lists still open at EOF are closed implicitly, with both counted in the
// returned Result.
package kicadsexp

import (
	"io"
	"strings"
)

// Sexp represents an S-expression node.
// It is either a leaf (Symbol) or a list (*List).
type Sexp interface {
	// IsLeaf returns true if this is an atom (not a list)
	IsLeaf() bool

	// Len returns the number of elements in a list (1 for atoms)
	Len() int

	// String returns the string representation
	String() string
}

// Symbol represents an atom: a bare token or the unescaped content of a
// quoted string.
type Symbol string

func (s Symbol) IsLeaf() bool { return true }
func (s Symbol) Len() int     { return 1 }

// String renders the atom, quoting it when it would not survive a re-read as
// a bare token.
func (s Symbol) String() string {
	str := string(s)
	if str == "" || strings.ContainsAny(str, " \t\r\n()\"\\") {
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
		return `"` + r.Replace(str) + `"`
	}
	return str
}

// List represents a list of S-expressions
type List struct {
	elements []Sexp
}

// NewList builds a list from the given elements.
func NewList(elements ...Sexp) *List {
	return &List{elements: elements}
}

func (l *List) IsLeaf() bool { return false }

func (l *List) Len() int {
	return len(l.elements)
}

func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, elem := range l.elements {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(elem.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Get returns the element at the given index
func (l *List) Get(index int) Sexp {
	if index < 0 || index >= len(l.elements) {
		return nil
	}
	return l.elements[index]
}

// Items returns the list elements. The slice is shared; callers must not
// modify it.
func (l *List) Items() []Sexp {
	return l.elements
}

func (l *List) append(s Sexp) {
	l.elements = append(l.elements, s)
}

// Result is the outcome of reading one input.
type Result struct {
	// Root holds every top-level expression of the input.
	Root *List
	// Unclosed is the number of lists still open at EOF.
	Unclosed int
	// Stray is the number of ')' tokens with no open list to close.
	Stray int
	// Unterminated is set when the input ended inside a quoted string.
	Unterminated bool
}

// Tree returns the first top-level expression, or an empty list when the
// input held none.
func (r *Result) Tree() Sexp {
	if r == nil || r.Root == nil || r.Root.Len() == 0 {
		return NewList()
	}
	return r.Root.Get(0)
}

// Balanced reports whether the input closed every list it opened and had no
// stray closing parens.
func (r *Result) Balanced() bool {
	return r.Unclosed == 0 && r.Stray == 0 && !r.Unterminated
}

// Parse reads S-expressions from an io.Reader. The only errors returned are
// read errors from r; malformed structure is reported through Result.
func Parse(r io.Reader) (*Result, error) {
	return NewParser(r).ParseAll()
}

// ParseString parses S-expressions from a string (convenience function)
func ParseString(s string) *Result {
	res, _ := Parse(strings.NewReader(s))
	return res
}
