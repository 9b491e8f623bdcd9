package kicadsexp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// TokenType classifies a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenLeftParen
	TokenRightParen
	TokenSymbol
	TokenString
)

// Token is one lexical token. Line is 1-based.
type Token struct {
	Type  TokenType
	Value string
	Line  int
	// Unterminated is set on a TokenString that ran into EOF.
	Unterminated bool
}

// Lexer splits KiCad S-expression text into tokens.
type Lexer struct {
	r    *bufio.Reader
	line int
}

// NewLexer returns a lexer reading from r.
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{r: bufio.NewReader(r), line: 1}
}

// NextToken returns the next token, or a TokenEOF token at end of input.
func (l *Lexer) NextToken() (Token, error) {
	ch, err := l.skipSpace()
	if errors.Is(err, io.EOF) {
		return Token{Type: TokenEOF, Line: l.line}, nil
	}
	if err != nil {
		return Token{}, l.wrap(err)
	}

	switch ch {
	case '(':
		return Token{Type: TokenLeftParen, Value: "(", Line: l.line}, nil
	case ')':
		return Token{Type: TokenRightParen, Value: ")", Line: l.line}, nil
	case '"':
		return l.quoted()
	}
	if err := l.r.UnreadRune(); err != nil {
		return Token{}, l.wrap(err)
	}
	return l.atom()
}

func (l *Lexer) wrap(err error) error {
	return fmt.Errorf("line %d: %w", l.line, err)
}

func (l *Lexer) next() (rune, error) {
	ch, _, err := l.r.ReadRune()
	if err == nil && ch == '\n' {
		l.line++
	}
	return ch, err
}

// skipSpace consumes whitespace and returns the first other rune.
func (l *Lexer) skipSpace() (rune, error) {
	for {
		ch, err := l.next()
		if err != nil || !unicode.IsSpace(ch) {
			return ch, err
		}
	}
}

// quoted reads the rest of a string after its opening quote. Only \" and
// \\ are unescaped. A string cut off by EOF is returned as read so far.
func (l *Lexer) quoted() (Token, error) {
	tok := Token{Type: TokenString, Line: l.line}
	var sb strings.Builder
	escaped := false
	for {
		ch, err := l.next()
		if errors.Is(err, io.EOF) {
			if escaped {
				sb.WriteRune('\\')
			}
			tok.Value = sb.String()
			tok.Unterminated = true
			return tok, nil
		}
		if err != nil {
			return Token{}, l.wrap(err)
		}

		switch {
		case escaped:
			if ch != '"' && ch != '\\' {
				sb.WriteRune('\\')
			}
			sb.WriteRune(ch)
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '"':
			tok.Value = sb.String()
			return tok, nil
		default:
			sb.WriteRune(ch)
		}
	}
}

// atom reads a bare token up to whitespace, a paren or EOF.
func (l *Lexer) atom() (Token, error) {
	tok := Token{Type: TokenSymbol, Line: l.line}
	var sb strings.Builder
	for {
		ch, err := l.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Token{}, l.wrap(err)
		}
		if unicode.IsSpace(ch) || ch == '(' || ch == ')' {
			if ch == '\n' {
				l.line--
			}
			if err := l.r.UnreadRune(); err != nil {
				return Token{}, l.wrap(err)
			}
			break
		}
		sb.WriteRune(ch)
	}
	tok.Value = sb.String()
	return tok, nil
}
