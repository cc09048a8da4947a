// Package flow handles parsing and representation of recorded user flow files.
package flow

import "strings"

// Selector kind prefixes used by the recorder selector grammar.
const (
	SelectorCSS    = "css"
	SelectorXPath  = "xpath"
	SelectorARIA   = "aria"
	SelectorText   = "text"
	SelectorPierce = "pierce"
)

// Selectors holds the alternative selectors recorded for one element.
// Each inner list is a selector chain: consecutive entries descend into
// iframes or shadow roots. The outer list members are fallbacks, tried in
// recorded order until one resolves.
type Selectors [][]string

// Describe returns the innermost entry of the first selector for progress output.
func (s Selectors) Describe() string {
	if len(s) == 0 || len(s[0]) == 0 {
		return "<none>"
	}
	return s[0][len(s[0])-1]
}

// IsEmpty reports whether no selector was recorded.
func (s Selectors) IsEmpty() bool {
	for _, chain := range s {
		if len(chain) > 0 {
			return false
		}
	}
	return true
}

// SplitSelector splits a recorded selector into its kind prefix and value.
// Unprefixed selectors are CSS.
func SplitSelector(sel string) (kind, value string) {
	for _, k := range []string{SelectorXPath, SelectorARIA, SelectorText, SelectorPierce, SelectorCSS} {
		prefix := k + "/"
		if strings.HasPrefix(sel, prefix) {
			return k, sel[len(prefix):]
		}
	}
	return SelectorCSS, sel
}
