package keyword

import "strings"

// node is one element of a parsed expression tree. match receives the
// candidate already lowercased.
type node interface {
	match(candidate string) bool
	String() string
}

type termNode struct {
	word string
}

func (n termNode) match(candidate string) bool {
	return strings.Contains(candidate, n.word)
}

func (n termNode) String() string {
	return n.word
}

type andNode struct {
	left, right node
}

func (n andNode) match(candidate string) bool {
	return n.left.match(candidate) && n.right.match(candidate)
}

func (n andNode) String() string {
	return "(" + n.left.String() + " and " + n.right.String() + ")"
}

type orNode struct {
	left, right node
}

func (n orNode) match(candidate string) bool {
	return n.left.match(candidate) || n.right.match(candidate)
}

func (n orNode) String() string {
	return "(" + n.left.String() + " or " + n.right.String() + ")"
}

type notNode struct {
	operand node
}

func (n notNode) match(candidate string) bool {
	return !n.operand.match(candidate)
}

func (n notNode) String() string {
	return "not " + n.operand.String()
}
