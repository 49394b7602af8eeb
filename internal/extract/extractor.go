package extract

import (
	"bytes"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/product-scraper/internal/links"
	"github.com/JakeFAU/product-scraper/internal/metrics"
	"github.com/JakeFAU/product-scraper/internal/progress"
)

// Selector evaluation results used for metrics labels.
const (
	resultMatch       = "match"
	resultMiss        = "miss"
	resultError       = "error"
	resultInvalidKind = "invalid_kind"
)

// Extractor dispatches selectors to the Engine registered for their Kind.
type Extractor struct {
	engines map[Kind]Engine
	logger  *zap.Logger
}

// NewExtractor builds an Extractor. With no engines it registers the XPath and
// CSS engines.
func NewExtractor(logger *zap.Logger, engines ...Engine) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(engines) == 0 {
		engines = []Engine{XPathEngine{}, CSSEngine{}}
	}
	e := &Extractor{engines: make(map[Kind]Engine, len(engines)), logger: logger}
	for _, eng := range engines {
		e.engines[eng.Kind()] = eng
	}
	return e
}

// Supports reports whether an Engine is registered for k.
func (e *Extractor) Supports(k Kind) bool {
	_, ok := e.engines[k]
	return ok
}

// SingleLink returns the href of the first match resolved against base, or
// against the origin of pageURL when base is empty. The boolean is false on a
// miss, on a match without href, or on any evaluation error.
func (e *Extractor) SingleLink(body []byte, sel Selector, base, pageURL string, rep progress.Reporter) (string, bool) {
	rep = progress.OrNop(rep)
	matches, ok := e.evaluate(body, sel, "link", rep)
	if !ok {
		return "", false
	}
	ref := ""
	if len(matches) > 0 {
		ref = strings.TrimSpace(reference(matches[0], "href"))
	}
	if ref == "" {
		metrics.ObserveSelector(string(sel.Kind), resultMiss)
		rep.Report(fmt.Sprintf("Link not found with %s: %s", sel.Kind.Label(), sel.Expr), 90)
		return "", false
	}
	resolved, err := links.Resolve(base, pageURL, ref)
	if err != nil {
		metrics.ObserveSelector(string(sel.Kind), resultError)
		e.logger.Warn("resolve product link failed", zap.String("href", ref), zap.Error(err))
		rep.Report(fmt.Sprintf("Error during link extraction (%s): %v", sel.Kind, err), 100)
		return "", false
	}
	metrics.ObserveSelector(string(sel.Kind), resultMatch)
	return resolved, true
}

// TextList returns the trimmed text of every match in document order. Matches
// with no text are skipped rather than returned as empty strings.
func (e *Extractor) TextList(body []byte, sel Selector, rep progress.Reporter) []string {
	rep = progress.OrNop(rep)
	matches, ok := e.evaluate(body, sel, "data", rep)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if text := strings.TrimSpace(m.Text()); text != "" {
			out = append(out, text)
		}
	}
	e.observeCount(sel.Kind, len(out))
	return out
}

// ImageLinks returns one absolute URL per match in document order. Value
// matches (for example an XPath ending in /@src) are used as-is; element
// matches contribute their src attribute and are skipped when it is missing.
// References that cannot be made absolute are dropped.
func (e *Extractor) ImageLinks(body []byte, sel Selector, base, pageURL string, rep progress.Reporter) []string {
	rep = progress.OrNop(rep)
	matches, ok := e.evaluate(body, sel, "image link", rep)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		ref := strings.TrimSpace(reference(m, "src"))
		if ref == "" {
			continue
		}
		resolved, err := links.Resolve(base, pageURL, ref)
		if err != nil || !links.IsAbsolute(resolved) {
			e.logger.Debug("skipping unresolvable image reference", zap.String("src", ref), zap.Error(err))
			continue
		}
		out = append(out, resolved)
	}
	e.observeCount(sel.Kind, len(out))
	return out
}

func (e *Extractor) observeCount(kind Kind, n int) {
	if n == 0 {
		metrics.ObserveSelector(string(kind), resultMiss)
		return
	}
	metrics.ObserveSelector(string(kind), resultMatch)
}

// evaluate parses body and runs sel. It returns false when the selector is
// empty, the kind is unknown, or evaluation failed; failures are reported.
func (e *Extractor) evaluate(body []byte, sel Selector, what string, rep progress.Reporter) (matches []Match, ok bool) {
	if sel.IsZero() {
		return nil, false
	}
	engine, found := e.engines[sel.Kind]
	if !found {
		metrics.ObserveSelector(string(sel.Kind), resultInvalidKind)
		rep.Report(fmt.Sprintf("Invalid extraction method: %s", sel.Kind), 100)
		return nil, false
	}

	defer func() {
		if r := recover(); r != nil {
			matches, ok = nil, false
			e.fail(fmt.Errorf("%v", r), sel, what, rep)
		}
	}()

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		e.fail(fmt.Errorf("parse html: %w", err), sel, what, rep)
		return nil, false
	}
	matches, err = engine.Select(root, sel.Expr)
	if err != nil {
		e.fail(err, sel, what, rep)
		return nil, false
	}
	return matches, true
}

func (e *Extractor) fail(err error, sel Selector, what string, rep progress.Reporter) {
	metrics.ObserveSelector(string(sel.Kind), resultError)
	e.logger.Warn("selector evaluation failed",
		zap.String("selector", sel.Expr),
		zap.String("kind", string(sel.Kind)),
		zap.String("target", what),
		zap.Error(err),
	)
	rep.Report(fmt.Sprintf("Error during %s extraction (%s): %v", what, sel.Kind, err), 100)
}

func reference(m Match, attr string) string {
	if v, ok := m.Value(); ok {
		return v
	}
	v, _ := m.Attr(attr)
	return v
}
