package extract

import (
	"fmt"
	"strconv"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// XPathEngine evaluates XPath 1.0 expressions via antchfx/xpath.
type XPathEngine struct{}

// Kind implements Engine.
func (XPathEngine) Kind() Kind { return KindXPath }

// Select compiles and evaluates expr. Node-set results become one Match per
// node in document order; string, number, and boolean results become a single
// value Match.
func (XPathEngine) Select(root *html.Node, expr string) (matches []Match, err error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile xpath %q: %w", expr, err)
	}
	defer func() {
		if r := recover(); r != nil {
			matches = nil
			err = fmt.Errorf("evaluate xpath %q: %v", expr, r)
		}
	}()

	switch res := compiled.Evaluate(htmlquery.CreateXPathNavigator(root)).(type) {
	case *xpath.NodeIterator:
		for res.MoveNext() {
			nav, ok := res.Current().(*htmlquery.NodeNavigator)
			if !ok {
				continue
			}
			switch nav.NodeType() {
			case xpath.AttributeNode, xpath.TextNode, xpath.CommentNode:
				matches = append(matches, valueMatch(nav.Value()))
			default:
				matches = append(matches, xpathNode{node: nav.Current()})
			}
		}
	case string:
		if res != "" {
			matches = append(matches, valueMatch(res))
		}
	case float64:
		matches = append(matches, valueMatch(strconv.FormatFloat(res, 'f', -1, 64)))
	case bool:
		matches = append(matches, valueMatch(strconv.FormatBool(res)))
	}
	return matches, nil
}

type xpathNode struct {
	node *html.Node
}

func (m xpathNode) Text() string {
	return htmlquery.InnerText(m.node)
}

func (m xpathNode) Attr(name string) (string, bool) {
	if !htmlquery.ExistsAttr(m.node, name) {
		return "", false
	}
	return htmlquery.SelectAttr(m.node, name), true
}

func (xpathNode) Value() (string, bool) { return "", false }
