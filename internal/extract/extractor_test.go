package extract

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const searchPage = `<html><body>
<div class="results">
  <a class="result" href="/p/abc123">ABC123 widget</a>
  <a class="result" href="/p/abc124">ABC124 widget</a>
  <a class="other">no href</a>
</div>
</body></html>`

const productPage = `<html><body>
<ul class="crumbs">
  <li><a href="/c">Cat</a></li>
  <li>  Sub  </li>
  <li>   </li>
  <li>Item</li>
</ul>
<div class="gallery">
  <img class="shot" src="img/one.png">
  <img class="shot" src="https://cdn.example.com/two.png">
  <img class="shot">
  <img class="shot" src="/abs/three.png">
</div>
</body></html>`

type messages struct {
	mu   sync.Mutex
	msgs []string
}

func (m *messages) Report(message string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, message)
}

func (m *messages) joined() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.msgs, "\n")
}

func TestSingleLinkXPathResolvesAgainstPageOrigin(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil)
	got, ok := e.SingleLink([]byte(searchPage), XPath("//a[@class='result']"), "", "https://ex.test/search?q=ABC123", nil)
	require.True(t, ok)
	assert.Equal(t, "https://ex.test/p/abc123", got)
}

func TestSingleLinkCSSUsesExplicitBase(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil)
	got, ok := e.SingleLink([]byte(searchPage), CSS("a.result"), "https://shop.example.com/", "https://ex.test/search", nil)
	require.True(t, ok)
	assert.Equal(t, "https://shop.example.com/p/abc123", got)
}

func TestSingleLinkAttributeAndStringResults(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil)
	got, ok := e.SingleLink([]byte(searchPage), XPath("(//a[@class='result'])[2]/@href"), "", "https://ex.test/", nil)
	require.True(t, ok)
	assert.Equal(t, "https://ex.test/p/abc124", got)

	got, ok = e.SingleLink([]byte(searchPage), XPath("string(//a[@class='result']/@href)"), "", "https://ex.test/", nil)
	require.True(t, ok)
	assert.Equal(t, "https://ex.test/p/abc123", got)
}

func TestSingleLinkMisses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sel     Selector
		wantMsg string
	}{
		{name: "css no match", sel: CSS(".nonexistent"), wantMsg: "Link not found with CSS selector: .nonexistent"},
		{name: "xpath no match", sel: XPath("//a[@id='none']"), wantMsg: "Link not found with XPath: //a[@id='none']"},
		{name: "element without href", sel: CSS("a.other"), wantMsg: "Link not found with CSS selector: a.other"},
		{name: "malformed xpath", sel: XPath("//a[@class="), wantMsg: "Error during link extraction (xpath)"},
		{name: "malformed css", sel: CSS("a[href"), wantMsg: "Error during link extraction (css)"},
		{name: "unknown kind", sel: Selector{Expr: "a", Kind: Kind("regex")}, wantMsg: "Invalid extraction method: regex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rep := &messages{}
			got, ok := NewExtractor(nil).SingleLink([]byte(searchPage), tt.sel, "", "https://ex.test/", rep)
			assert.False(t, ok)
			assert.Empty(t, got)
			assert.Contains(t, rep.joined(), tt.wantMsg)
		})
	}
}

func TestSingleLinkEmptySelector(t *testing.T) {
	t.Parallel()

	rep := &messages{}
	_, ok := NewExtractor(nil).SingleLink([]byte(searchPage), CSS("  "), "", "https://ex.test/", rep)
	assert.False(t, ok)
	assert.Empty(t, rep.joined())
}

func TestTextListSkipsEmpty(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil)
	for _, sel := range []Selector{XPath("//ul[@class='crumbs']/li"), CSS("ul.crumbs > li")} {
		got := e.TextList([]byte(productPage), sel, nil)
		assert.Equal(t, []string{"Cat", "Sub", "Item"}, got, sel.Kind)
	}
}

func TestTextListNoMatchAndErrors(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil)
	assert.Empty(t, e.TextList([]byte(productPage), CSS(".nonexistent"), nil))

	rep := &messages{}
	assert.Empty(t, e.TextList([]byte(productPage), XPath("//li[position("), rep))
	assert.Contains(t, rep.joined(), "Error during data extraction (xpath)")
}

func TestImageLinks(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil)
	want := []string{
		"https://shop.example.com/img/one.png",
		"https://cdn.example.com/two.png",
		"https://shop.example.com/abs/three.png",
	}

	got := e.ImageLinks([]byte(productPage), XPath("//img[@class='shot']/@src"), "", "https://shop.example.com/p/1", nil)
	assert.Equal(t, want, got)

	got = e.ImageLinks([]byte(productPage), CSS("div.gallery img"), "", "https://shop.example.com/p/1", nil)
	assert.Equal(t, want, got)

	got = e.ImageLinks([]byte(productPage), XPath("//div[@class='gallery']/img"), "", "https://shop.example.com/p/1", nil)
	assert.Equal(t, want, got)
}

func TestImageLinksAreAbsolute(t *testing.T) {
	t.Parallel()

	body := []byte(`<img src="data:image/png;base64,AAAA"><img src="x.png"><img src="//cdn.test/y.png">`)
	got := NewExtractor(nil).ImageLinks(body, CSS("img"), "https://a.com/p/", "", nil)
	assert.Equal(t, []string{"https://a.com/p/x.png", "https://cdn.test/y.png"}, got)

	got = NewExtractor(nil).ImageLinks(body, CSS("img"), "", "", nil)
	assert.Empty(t, got)
}

func TestTextListReadsNestedText(t *testing.T) {
	t.Parallel()

	body := []byte(`<ul class="crumbs"><li><a href="/c">Cat</a></li><li> <b>Sub</b> </li><li></li></ul>`)
	e := NewExtractor(nil)
	assert.Equal(t, []string{"Cat", "Sub"}, e.TextList(body, XPath("//ul[@class='crumbs']/li"), nil))
	assert.Equal(t, []string{"Cat", "Sub"}, e.TextList(body, CSS("ul.crumbs li"), nil))
}

func TestLinksWithStrayPercent(t *testing.T) {
	t.Parallel()

	body := []byte(`<a class="p" href="/deals/50%-off">deal</a>` +
		`<img src="https://b.com/sale/50%-off.png"><img src="img/100%.png">`)
	e := NewExtractor(nil)

	got := e.ImageLinks(body, CSS("img"), "", "https://a.com/p/1", nil)
	assert.Equal(t, []string{"https://b.com/sale/50%-off.png", "https://a.com/img/100%25.png"}, got)

	got = e.ImageLinks(body, XPath("//img/@src"), "", "https://a.com/p/1", nil)
	assert.Equal(t, []string{"https://b.com/sale/50%-off.png", "https://a.com/img/100%25.png"}, got)

	link, ok := e.SingleLink(body, CSS("a.p"), "", "https://a.com/search", nil)
	require.True(t, ok)
	assert.Equal(t, "https://a.com/deals/50%25-off", link)
}

func TestImageLinksNoMatch(t *testing.T) {
	t.Parallel()

	got := NewExtractor(nil).ImageLinks([]byte(productPage), CSS(".nonexistent"), "", "https://a.com", nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

type upperEngine struct{}

func (upperEngine) Kind() Kind { return Kind("tag") }

func (upperEngine) Select(root *html.Node, expr string) ([]Match, error) {
	var out []Match
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == expr {
			for _, a := range n.Attr {
				if a.Key == "href" {
					out = append(out, valueMatch(a.Val))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out, nil
}

func TestCustomEngineNeedsNoCallSiteChanges(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil, XPathEngine{}, CSSEngine{}, upperEngine{})
	require.True(t, e.Supports(Kind("tag")))
	got, ok := e.SingleLink([]byte(searchPage), Selector{Expr: "a", Kind: Kind("tag")}, "", "https://ex.test/", nil)
	require.True(t, ok)
	assert.Equal(t, "https://ex.test/p/abc123", got)
}

type panicEngine struct{}

func (panicEngine) Kind() Kind { return KindCSS }

func (panicEngine) Select(*html.Node, string) ([]Match, error) {
	panic("evaluator exploded")
}

func TestEvaluatorPanicIsContained(t *testing.T) {
	t.Parallel()

	rep := &messages{}
	got := NewExtractor(nil, panicEngine{}).TextList([]byte(productPage), CSS("li"), rep)
	assert.Nil(t, got)
	assert.Contains(t, rep.joined(), "evaluator exploded")
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindXPath, ParseKind(""))
	assert.Equal(t, KindXPath, ParseKind(" XPath "))
	assert.Equal(t, KindCSS, ParseKind("CSS"))
	assert.Equal(t, KindCSS, ParseKind("css selector"))
	assert.Equal(t, Kind("regex"), ParseKind("regex"))
	assert.Equal(t, "CSS selector", KindCSS.Label())
}
