// Package extract evaluates XPath or CSS selectors against fetched HTML and
// turns the matches into text, a single resolved link, or a list of resolved
// image links. Each selector kind is served by one Engine; call sites only
// ever see the Kind tag, so adding a kind means registering another Engine.
//
// Selector problems never escape this package: parse failures, compile
// errors, and evaluator panics all degrade to "no match" and are reported to
// the progress Reporter supplied by the caller.
package extract
