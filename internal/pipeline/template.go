package pipeline

import (
	"fmt"
	"net/url"
	"strings"
)

// Placeholder names accepted in a search URL template. All of them stand for
// the identifier.
var placeholderNames = map[string]bool{
	"mpn":        true,
	"id":         true,
	"identifier": true,
}

type segment struct {
	literal string
	slot    bool
}

// SearchTemplate is a parsed search URL template such as
// "https://example.com/search?q={mpn}". Literal braces are written "{{" and "}}".
type SearchTemplate struct {
	raw      string
	segments []segment
}

// NewSearchTemplate parses raw. It must contain at least one placeholder and
// no unknown or unbalanced braces.
func NewSearchTemplate(raw string) (SearchTemplate, error) {
	t := SearchTemplate{raw: raw}
	var lit strings.Builder
	slots := 0
	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; c {
		case '{':
			if i+1 < len(raw) && raw[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(raw[i+1:], '}')
			if end < 0 {
				return SearchTemplate{}, templateError(raw, fmt.Sprintf("unclosed '{' at offset %d", i))
			}
			name := strings.ToLower(strings.TrimSpace(raw[i+1 : i+1+end]))
			if !placeholderNames[name] {
				return SearchTemplate{}, templateError(raw, fmt.Sprintf("unknown placeholder {%s}", raw[i+1:i+1+end]))
			}
			if lit.Len() > 0 {
				t.segments = append(t.segments, segment{literal: lit.String()})
				lit.Reset()
			}
			t.segments = append(t.segments, segment{slot: true})
			slots++
			i += end + 1
		case '}':
			if i+1 < len(raw) && raw[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return SearchTemplate{}, templateError(raw, fmt.Sprintf("unmatched '}' at offset %d", i))
		default:
			lit.WriteByte(c)
		}
	}
	if lit.Len() > 0 {
		t.segments = append(t.segments, segment{literal: lit.String()})
	}
	if slots == 0 {
		return SearchTemplate{}, templateError(raw, "missing {mpn} placeholder")
	}
	return t, nil
}

func templateError(raw, msg string) error {
	return &ConfigError{Field: "search_url_template", Message: fmt.Sprintf("%s in %q", msg, raw)}
}

// Format substitutes the query-escaped identifier into every placeholder.
func (t SearchTemplate) Format(identifier string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(identifier), "+", "%20")
	var b strings.Builder
	for _, s := range t.segments {
		if s.slot {
			b.WriteString(escaped)
			continue
		}
		b.WriteString(s.literal)
	}
	return b.String()
}

func (t SearchTemplate) String() string {
	return t.raw
}
