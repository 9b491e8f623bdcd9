package kicadsexp

import (
	"io"
)

// Parser builds a tree from lexer tokens using an explicit stack of open
// lists, so deeply nested zone fills cannot exhaust the goroutine stack.
type Parser struct {
	lexer *Lexer
}

// NewParser creates a new parser from an io.Reader
func NewParser(r io.Reader) *Parser {
	return &Parser{
		lexer: NewLexer(r),
	}
}

// ParseAll parses all top-level S-expressions from the input.
func (p *Parser) ParseAll() (*Result, error) {
	root := NewList()
	res := &Result{Root: root}
	stack := []*List{root}

	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}

		switch tok.Type {
		case TokenEOF:
			res.Unclosed = len(stack) - 1
			return res, nil

		case TokenLeftParen:
			child := NewList()
			stack[len(stack)-1].append(child)
			stack = append(stack, child)

		case TokenRightParen:
			if len(stack) == 1 {
				res.Stray++
				continue
			}
			stack = stack[:len(stack)-1]

		case TokenSymbol, TokenString:
			if tok.Unterminated {
				res.Unterminated = true
			}
			stack[len(stack)-1].append(Symbol(tok.Value))
		}
	}
}
