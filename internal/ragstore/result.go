package ragstore

import "fmt"

// RawResult is whatever the opaque vector/graph store hands back from
// a search call. The store's return shape is heterogeneous by design
// (spec.md §4.3); rather than duck-typing on it with reflection the
// way the original source did (hasattr(result, "text")), this module
// follows spec.md §9's remapping and models it as an explicit sum
// type with exactly one projection function, ProjectToString.
type RawResult struct {
	text      string
	hasText   bool
	keyedText string
	hasKeyed  bool
	opaque    any
}

// TextResult wraps a result that already carries an explicit text
// attribute — the store's preferred shape.
func TextResult(text string) RawResult {
	return RawResult{text: text, hasText: true}
}

// KeyedTextResult wraps a result shaped as a mapping with a "text" key.
func KeyedTextResult(text string) RawResult {
	return RawResult{keyedText: text, hasKeyed: true}
}

// OpaqueResult wraps any other value the store returns; it falls back
// to the value's canonical string form.
func OpaqueResult(v any) RawResult {
	return RawResult{opaque: v}
}

// maxProjectedLength is the truncation bound for the opaque fallback
// projection (spec.md §4.3 "truncated at 500 characters with
// ellipsis").
const maxProjectedLength = 500

// ProjectToString is the gateway's single projection function: prefer
// an explicit text attribute, then a "text" key, otherwise the value's
// canonical string form truncated at 500 characters with an ellipsis.
func ProjectToString(r RawResult) string {
	if r.hasText {
		return r.text
	}
	if r.hasKeyed {
		return r.keyedText
	}

	s := fmt.Sprintf("%v", r.opaque)
	if len(s) <= maxProjectedLength {
		return s
	}
	return s[:maxProjectedLength] + "..."
}
