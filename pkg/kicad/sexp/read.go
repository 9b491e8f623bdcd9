package sexp

import (
	"errors"
	"fmt"
	"io"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/sexp/kicadsexp"
)

// ErrMalformed is returned when the input ends with lists still open or
// inside a quoted string.
var ErrMalformed = errors.New("malformed s-expression")

// Document is a parsed file: its first top-level expression plus the count of
// stray closing parens the reader skipped.
type Document struct {
	Tree  kicadsexp.Sexp
	Stray int
}

// ReadDocument parses r and checks that the input is balanced. Stray
// closing parens are tolerated and reported through Document.Stray.
func ReadDocument(r io.Reader) (*Document, error) {
	res, err := kicadsexp.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read s-expression: %w", err)
	}
	if res.Unterminated {
		return nil, fmt.Errorf("%w: unterminated string", ErrMalformed)
	}
	if res.Unclosed > 0 {
		return nil, fmt.Errorf("%w: %d unclosed list(s)", ErrMalformed, res.Unclosed)
	}
	return &Document{Tree: res.Tree(), Stray: res.Stray}, nil
}
