package extract

import "golang.org/x/net/html"

// Match is one selector hit. Element hits expose text and attributes; hits on
// attribute nodes, text nodes, or scalar XPath results expose only Value.
type Match interface {
	Text() string
	Attr(name string) (string, bool)
	Value() (string, bool)
}

// Engine evaluates expressions of one Kind against a parsed document.
type Engine interface {
	Kind() Kind
	Select(root *html.Node, expr string) ([]Match, error)
}

type valueMatch string

func (v valueMatch) Text() string { return string(v) }
func (valueMatch) Attr(string) (string, bool) { return "", false }
func (v valueMatch) Value() (string, bool) { return string(v), true }
