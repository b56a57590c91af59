package keyword

import (
	"fmt"
	"strings"
)

// Expression is a compiled keyword expression. The zero value and a nil
// *Expression match everything.
type Expression struct {
	source string
	root   node
}

// Compile parses expr. Precedence from loosest to tightest is or, and, not.
// Adjacent operands without an operator are joined with and. An empty or
// blank expression compiles to the identity filter.
//
//	expr    = orExpr
//	orExpr  = andExpr { "or" andExpr }
//	andExpr = notExpr { ["and"] notExpr }
//	notExpr = "not" notExpr | primary
//	primary = WORD | "(" orExpr ")"
func Compile(expr string) (*Expression, error) {
	p := &parser{expr: expr, tokens: tokenize(expr)}
	if p.peek().kind == tokEOF {
		return &Expression{source: expr}, nil
	}

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorAt(tok, "unexpected "+tok.describe())
	}
	return &Expression{source: expr, root: root}, nil
}

// Match reports whether candidate satisfies the expression. Each word is a
// case-insensitive substring test against candidate.
func (e *Expression) Match(candidate string) bool {
	if e == nil || e.root == nil {
		return true
	}
	return e.root.match(strings.ToLower(candidate))
}

// IsEmpty reports whether the expression selects everything.
func (e *Expression) IsEmpty() bool {
	return e == nil || e.root == nil
}

// String returns the fully parenthesized form of the expression.
func (e *Expression) String() string {
	if e.IsEmpty() {
		return ""
	}
	return e.root.String()
}

// Source returns the expression as written.
func (e *Expression) Source() string {
	if e == nil {
		return ""
	}
	return e.source
}

// Filter returns the candidates that match expr, preserving order.
func Filter(expr *Expression, candidates []string) []string {
	var out []string
	for _, c := range candidates {
		if expr.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

type parser struct {
	expr   string
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorAt(tok token, msg string) *ParseError {
	return &ParseError{Expr: p.expr, Pos: tok.pos, Token: tok.text, Msg: msg}
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokAnd:
			p.next()
		case tokWord, tokNot, tokLParen:
			// implicit and
		default:
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
}

func (p *parser) parseNot() (node, error) {
	if p.peek().kind == tokNot {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokWord:
		return termNode{word: strings.ToLower(tok.text)}, nil
	case tokLParen:
		if closing := p.peek(); closing.kind == tokRParen {
			return nil, p.errorAt(closing, "empty parentheses")
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing := p.next()
		if closing.kind != tokRParen {
			return nil, p.errorAt(closing, fmt.Sprintf("expected \")\" to close \"(\" at position %d, found %s", tok.pos, closing.describe()))
		}
		return inner, nil
	case tokEOF:
		return nil, p.errorAt(tok, "expected a word, \"not\" or \"(\" but found end of input")
	default:
		return nil, p.errorAt(tok, "unexpected "+tok.describe())
	}
}
