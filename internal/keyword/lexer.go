package keyword

import (
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	// pos is the byte offset of the token in the expression.
	pos int
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokWord:
		return "word " + quote(t.text)
	default:
		return quote(t.text)
	}
}

func quote(s string) string {
	return `"` + s + `"`
}

// tokenize splits on whitespace and treats parentheses as tokens of their own,
// so "(a" and "b)" are two tokens each. Operators are the lowercase words
// and, or and not; any other spelling is a bare word.
func tokenize(expr string) []token {
	var tokens []token
	i := 0
	for i < len(expr) {
		r, size := utf8.DecodeRuneInString(expr[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i += size
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i += size
		default:
			start := i
			for i < len(expr) {
				r, size = utf8.DecodeRuneInString(expr[i:])
				if unicode.IsSpace(r) || r == '(' || r == ')' {
					break
				}
				i += size
			}
			word := expr[start:i]
			tokens = append(tokens, token{kind: wordKind(word), text: word, pos: start})
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(expr)})
}

func wordKind(word string) tokenKind {
	switch word {
	case "and":
		return tokAnd
	case "or":
		return tokOr
	case "not":
		return tokNot
	default:
		return tokWord
	}
}
