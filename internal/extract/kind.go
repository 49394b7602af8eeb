package extract

import "strings"

// Kind tags the selector language.
type Kind string

// Supported selector kinds.
const (
	KindXPath Kind = "xpath"
	KindCSS   Kind = "css"
)

// ParseKind normalizes raw into a Kind. Empty input means XPath. Unknown
// values are preserved so they can be reported at evaluation time.
func ParseKind(raw string) Kind {
	k := strings.ToLower(strings.TrimSpace(raw))
	switch k {
	case "":
		return KindXPath
	case "css selector", "css_selector":
		return KindCSS
	default:
		return Kind(k)
	}
}

// Label is the human-facing name used in progress messages.
func (k Kind) Label() string {
	switch k {
	case KindXPath:
		return "XPath"
	case KindCSS:
		return "CSS selector"
	default:
		return string(k)
	}
}

// Selector pairs an expression with its language.
type Selector struct {
	Expr string
	Kind Kind
}

// IsZero reports whether no expression is configured.
func (s Selector) IsZero() bool {
	return strings.TrimSpace(s.Expr) == ""
}

// XPath is shorthand for an XPath Selector.
func XPath(expr string) Selector {
	return Selector{Expr: expr, Kind: KindXPath}
}

// CSS is shorthand for a CSS Selector.
func CSS(expr string) Selector {
	return Selector{Expr: expr, Kind: KindCSS}
}
