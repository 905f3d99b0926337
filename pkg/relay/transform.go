package relay

import "regexp"

// Transform post-processes the accumulated assistant content before it is
// treated as final. Transforms must be pure and idempotent.
type Transform func(string) string

var citationPattern = regexp.MustCompile(`<sup>\d+</sup>`)

// StripCitations removes inline citation markup such as "<sup>3</sup>".
// Removal is repeated until nothing matches so nested markup cannot survive
// a single pass.
func StripCitations(s string) string {
	for {
		out := citationPattern.ReplaceAllString(s, "")
		if out == s {
			return out
		}
		s = out
	}
}

// Chain composes transforms left to right.
func Chain(ts ...Transform) Transform {
	return func(s string) string {
		for _, t := range ts {
			if t != nil {
				s = t(s)
			}
		}
		return s
	}
}
