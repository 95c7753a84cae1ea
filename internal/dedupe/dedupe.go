// Package dedupe strips prompt context that a generation backend echoed
// back at the start of its suggestion.
package dedupe

import "strings"

// StripContext removes any leading portion of suggestion that repeats the
// tail of context. The backend is prompted with a context window ending at
// the cursor and sometimes repeats part or all of it before continuing, so
// this runs on every incremental chunk to keep echoed text from ever being
// shown. Comparison is rune-wise so multi-byte text never splits
// mid-character. The result is stable under repeated application.
func StripContext(suggestion, context string) string {
	if context == "" || suggestion == "" {
		return suggestion
	}

	if strings.HasPrefix(suggestion, context) {
		return suggestion[len(context):]
	}

	ctxRunes := []rune(context)
	sugRunes := []rune(suggestion)

	// Longest overlap first: context "Hello wor" + suggestion
	// "world is great" should yield "ld is great", not strip a shorter
	// accidental match.
	max := len(ctxRunes)
	if len(sugRunes) < max {
		max = len(sugRunes)
	}
	for i := max; i > 0; i-- {
		tail := ctxRunes[len(ctxRunes)-i:]
		if string(sugRunes[:i]) == string(tail) {
			return string(sugRunes[i:])
		}
	}
	return suggestion
}
