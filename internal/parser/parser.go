package parser

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

var ErrUnknownDialect = errors.New("unknown selector dialect")

// Node is an element of a parsed document that can be queried with the
// locator dialect of the parser that produced it.
type Node interface {
	Query(path string) ([]Node, error)
	// Text returns the node's text content. ok is false when the node has
	// no text at all, which is different from text that is only whitespace.
	Text() (text string, ok bool)
}

type Parser interface {
	Parse(content string) (Node, error)
	Dialect() string
}

// New returns the parser for a locator dialect: "xpath" or "css".
func New(dialect string) (Parser, error) {
	switch dialect {
	case DialectXPath:
		return XPath{}, nil
	case DialectCSS:
		return CSS{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}
}

// nodeText concatenates the text nodes below n.
func nodeText(n *html.Node) (string, bool) {
	var b strings.Builder
	found := false

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			found = true
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return b.String(), found
}
