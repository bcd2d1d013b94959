package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DialectCSS = "css"

// The same few locators are compiled for every row of every page.
var compiledSelectors = newSelectorCache(256)

func newSelectorCache(size int) *lru.Cache[string, cascadia.Selector] {
	cache, err := lru.New[string, cascadia.Selector](size)
	if err != nil {
		panic(err)
	}
	return cache
}

func compileSelector(path string) (cascadia.Selector, error) {
	if sel, ok := compiledSelectors.Get(path); ok {
		return sel, nil
	}

	sel, err := cascadia.Compile(path)
	if err != nil {
		return nil, err
	}
	compiledSelectors.Add(path, sel)
	return sel, nil
}

// CSS parses documents into nodes queried with CSS selectors.
type CSS struct{}

func (CSS) Dialect() string { return DialectCSS }

func (CSS) Parse(content string) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return cssNode{sel: doc.Selection}, nil
}

type cssNode struct {
	sel *goquery.Selection
}

// Query compiles the selector up front because goquery.Find silently
// matches nothing on a malformed selector.
func (c cssNode) Query(path string) ([]Node, error) {
	matcher, err := compileSelector(path)
	if err != nil {
		return nil, fmt.Errorf("invalid css selector %q: %w", path, err)
	}

	found := c.sel.FindMatcher(matcher)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, cssNode{sel: s})
	})
	return nodes, nil
}

func (c cssNode) Text() (string, bool) {
	if c.sel.Length() == 0 {
		return "", false
	}
	return nodeText(c.sel.Nodes[0])
}
