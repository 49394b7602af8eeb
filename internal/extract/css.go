package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// CSSEngine evaluates CSS selectors with goquery. Selectors are compiled with
// cascadia first so syntax errors surface instead of silently matching nothing.
type CSSEngine struct{}

// Kind implements Engine.
func (CSSEngine) Kind() Kind { return KindCSS }

// Select returns every element matching expr in document order.
func (CSSEngine) Select(root *html.Node, expr string) ([]Match, error) {
	sel, err := cascadia.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile css selector %q: %w", expr, err)
	}
	found := goquery.NewDocumentFromNode(root).FindMatcher(sel)
	matches := make([]Match, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		matches = append(matches, cssMatch{sel: s})
	})
	return matches, nil
}

type cssMatch struct {
	sel *goquery.Selection
}

func (m cssMatch) Text() string { return m.sel.Text() }
func (m cssMatch) Attr(name string) (string, bool) { return m.sel.Attr(name) }
func (cssMatch) Value() (string, bool) { return "", false }
